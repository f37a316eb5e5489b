package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/contract-ace/smartace/buildinfo"
	"github.com/contract-ace/smartace/pkg/database"
	"github.com/contract-ace/smartace/pkg/telemetry"
	"github.com/contract-ace/smartace/pkg/telemetry/publisher"
	"github.com/contract-ace/smartace/pkg/telemetry/storage"
)

var rootCmd = &cobra.Command{
	Use:   "smartace",
	Short: "smartace translates a Solidity AST bundle into a C model",
	Long:  `smartace is the Solidity-to-C model translator's command-line front door`,
}

// moduleCloser shuts down a wired-up module during graceful process exit.
type moduleCloser func(ctx context.Context) error

func main() {
	rootCmd.PersistentFlags().String("dir", "${HOME}/.smartace", "directory where state (run history, metrics) is kept")
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newNodeID returns a fresh dash-free UUID, used as the node identity for
// telemetry and as the run ID of each translation.
func newNodeID() string {
	return strings.Replace(uuid.NewString(), "-", "", -1)
}

// configureTelemetry wires the local metrics store, run-history database
// and (if enabled) the background publisher, returning a closer that must
// run before process exit.
func configureTelemetry(
	dirPath string,
	nodeID string,
	cfg TelemetryPublisherConfig,
) (*database.SQLiteDB, moduleCloser, error) {
	dbURL := fmt.Sprintf(
		"file://%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL",
		path.Join(dirPath, "runs.db"),
	)
	runsDB, err := database.Open(dbURL, attribute.String("database", "runs"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening run history database: %s", err)
	}

	metricsDBURL := fmt.Sprintf(
		"file://%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL",
		path.Join(dirPath, "metrics.db"),
	)
	metricsStore, err := storage.New(metricsDBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating metrics store: %s", err)
	}
	telemetry.SetMetricStore(metricsStore)

	ctx, cls := context.WithTimeout(context.Background(), time.Second)
	defer cls()
	if err := telemetry.Collect(ctx, buildinfo.GetSummary()); err != nil {
		return nil, nil, fmt.Errorf("collect git summary: %s", err)
	}

	var metricsPublisher *publisher.Publisher
	var bqExporter *publisher.BigQueryExporter
	if cfg.Enabled {
		exporter, err := publisher.NewHTTPExporter(cfg.MetricsHubURL, cfg.MetricsHubAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("creating metrics http exporter: %s", err)
		}
		publishingInterval, err := time.ParseDuration(cfg.PublishingInterval)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing publishing interval: %s", err)
		}

		var exp publisher.MetricsExporter = exporter
		if cfg.BigQueryEnabled {
			bqExporter, err = publisher.NewBigQueryExporter(context.Background(), cfg.BigQueryProject, cfg.BigQueryDataset, cfg.BigQueryTable)
			if err != nil {
				return nil, nil, fmt.Errorf("creating bigquery exporter: %s", err)
			}
			exp = bqExporter
		}

		metricsPublisher = publisher.NewPublisher(metricsStore, exp, nodeID, publishingInterval)
		metricsPublisher.Start()
	}

	closer := func(ctx context.Context) error {
		if cfg.Enabled {
			metricsPublisher.Close()
		}
		if bqExporter != nil {
			if err := bqExporter.Close(); err != nil {
				return fmt.Errorf("closing bigquery exporter: %s", err)
			}
		}
		if err := metricsStore.Close(); err != nil {
			return fmt.Errorf("closing metrics store: %s", err)
		}
		return nil
	}
	return runsDB, closer, nil
}

// handleInterrupt blocks until SIGINT/SIGTERM, then runs teardown and
// returns.
func handleInterrupt(teardown func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("received interrupt, shutting down")
	teardown()
}
