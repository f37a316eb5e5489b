package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/contract-ace/smartace/buildinfo"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/driver"
	"github.com/contract-ace/smartace/pkg/database"
	"github.com/contract-ace/smartace/pkg/logging"
	"github.com/contract-ace/smartace/pkg/metrics"
	"github.com/contract-ace/smartace/pkg/telemetry"
)

var translateCmd = &cobra.Command{
	Use:   "translate [roots...]",
	Short: "translate an AST bundle into a C model",
	Long:  `translate reads a JSON AST bundle and emits the C translation unit rooted at the named contracts`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranslate,
}

func init() {
	translateCmd.Flags().String("bundle", "-", "path to the AST bundle JSON (- for stdin)")
	translateCmd.Flags().String("out", "-", "path to write the emitted C unit (- for stdout)")
}

func runTranslate(cmd *cobra.Command, roots []string) error {
	cfg, dirPath := setupConfig(cmd)
	logging.SetupLogger(buildinfo.Version, cfg.Log.Debug, cfg.Log.Human)

	if err := metrics.SetupInstrumentation(":"+cfg.Metrics.Port, "smartace:translate"); err != nil {
		return fmt.Errorf("setting up instrumentation: %s", err)
	}

	nodeID := newNodeID()
	runsDB, closeTelemetry, err := configureTelemetry(dirPath, nodeID, cfg.TelemetryPublisher)
	if err != nil {
		return fmt.Errorf("configuring telemetry: %s", err)
	}
	defer func() {
		ctx, cls := context.WithTimeout(context.Background(), 10*time.Second)
		defer cls()
		if err := closeTelemetry(ctx); err != nil {
			log.Error().Err(err).Msg("closing telemetry module")
		}
		if err := runsDB.Close(); err != nil {
			log.Error().Err(err).Msg("closing run history database")
		}
	}()

	bundlePath, _ := cmd.Flags().GetString("bundle")
	outPath, _ := cmd.Flags().GetString("out")

	started := time.Now()
	result, err := translateOne(bundlePath, roots, driver.Config{
		MapDepth:        cfg.MapDepth,
		PersistentUsers: cfg.PersistentUsers,
		ConcreteUsers:   cfg.ConcreteUsers,
		GlobalContracts: cfg.GlobalContracts,
		AuxAddresses:    cfg.AuxAddresses,
	})
	duration := time.Since(started)

	runID := newNodeID()
	success := err == nil && result != nil && len(result.Violations) == 0

	rec := database.RunRecord{
		RunID:          runID,
		StartedAt:      started.UTC(),
		Roots:          roots,
		Success:        success,
		DurationMillis: duration.Milliseconds(),
	}
	if result != nil {
		rec.ContractCount = result.ContractCount
		rec.MapRecordCount = result.MapRecordCount
		rec.AddressDomainSize = result.AddressDomainSize
		rec.ViolationCount = len(result.Violations)
		if success {
			rec.OutputBytes = len(result.Output)
			sum := sha256.Sum256([]byte(result.Output))
			rec.OutputSHA256 = hex.EncodeToString(sum[:])
		}
	}
	if recErr := runsDB.RecordRun(context.Background(), rec); recErr != nil {
		log.Error().Err(recErr).Msg("recording run history")
	}

	metricCtx, metricCls := context.WithTimeout(context.Background(), time.Second)
	defer metricCls()
	if collErr := telemetry.Collect(metricCtx, runSummary{run: rec}); collErr != nil {
		log.Error().Err(collErr).Msg("collecting run summary metric")
	}

	if err != nil {
		return fmt.Errorf("translating: %s", err)
	}
	if len(result.Violations) > 0 {
		for _, v := range result.Violations {
			fmt.Fprintln(os.Stderr, v.Error())
		}
		return fmt.Errorf("%d analysis violation(s)", len(result.Violations))
	}

	return writeOutput(outPath, result.Output)
}

// translateOne loads the bundle at bundlePath and runs the driver over it.
func translateOne(bundlePath string, roots []string, cfg driver.Config) (*driver.Result, error) {
	r, err := openInput(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %s", err)
	}
	defer r.Close()

	bundle, err := ast.LoadBundle(r)
	if err != nil {
		return nil, fmt.Errorf("loading bundle: %s", err)
	}

	return driver.Run(bundle, roots, cfg)
}

func openInput(p string) (*os.File, error) {
	if p == "-" {
		return os.Stdin, nil
	}
	return os.Open(p)
}

func writeOutput(p, content string) error {
	if p == "-" {
		_, err := fmt.Fprint(os.Stdout, content)
		return err
	}
	return os.WriteFile(p, []byte(content), 0o644)
}

// runSummary adapts a database.RunRecord to telemetry.RunSummary.
type runSummary struct {
	run database.RunRecord
}

func (s runSummary) GetRunID() string          { return s.run.RunID }
func (s runSummary) GetContractCount() int     { return s.run.ContractCount }
func (s runSummary) GetMapRecordCount() int    { return s.run.MapRecordCount }
func (s runSummary) GetAddressDomainSize() int { return s.run.AddressDomainSize }
func (s runSummary) GetViolationCount() int    { return s.run.ViolationCount }
func (s runSummary) GetSuccess() bool          { return s.run.Success }
func (s runSummary) GetOutputBytes() int       { return s.run.OutputBytes }
func (s runSummary) GetOutputSHA256() string   { return s.run.OutputSHA256 }
func (s runSummary) GetDurationMillis() int64  { return s.run.DurationMillis }
