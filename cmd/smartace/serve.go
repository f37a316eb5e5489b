package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-limiter/httplimit"
	"github.com/sethvargo/go-limiter/memorystore"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/contract-ace/smartace/buildinfo"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/driver"
	"github.com/contract-ace/smartace/pkg/database"
	"github.com/contract-ace/smartace/pkg/errors"
	"github.com/contract-ace/smartace/pkg/logging"
	"github.com/contract-ace/smartace/pkg/metrics"
	"github.com/contract-ace/smartace/pkg/telemetry"
	"github.com/contract-ace/smartace/pkg/telemetry/runcollector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run a long-lived HTTP server fielding translate requests",
	Long:  `serve fields repeated translate requests over HTTP, one single-threaded driver.Run per request`,
	Args:  cobra.ExactArgs(0),
	RunE:  runServe,
}

// translateRequest is the wire shape of a POST /translate body.
type translateRequest struct {
	Bundle json.RawMessage `json:"bundle"`
	Roots  []string        `json:"roots"`

	MapDepth        int  `json:"mapDepth"`
	PersistentUsers int  `json:"persistentUsers"`
	ConcreteUsers   bool `json:"concreteUsers"`
	GlobalContracts bool `json:"globalContracts"`
	AuxAddresses    int  `json:"auxAddresses"`
}

// translateResponse is the wire shape of a successful or violation-carrying
// POST /translate response.
type translateResponse struct {
	Output     string   `json:"output,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

type server struct {
	counters *runcollector.Counters
	runsDB   *database.SQLiteDB
	group    singleflight.Group
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, dirPath := setupConfig(cmd)
	logging.SetupLogger(buildinfo.Version, cfg.Log.Debug, cfg.Log.Human)

	if err := metrics.SetupInstrumentation(":"+cfg.Metrics.Port, "smartace:serve"); err != nil {
		return fmt.Errorf("setting up instrumentation: %s", err)
	}

	nodeID := newNodeID()
	runsDB, closeTelemetry, err := configureTelemetry(dirPath, nodeID, cfg.TelemetryPublisher)
	if err != nil {
		return fmt.Errorf("configuring telemetry: %s", err)
	}

	counters := runcollector.NewCounters()
	collector, err := runcollector.New(counters, 15*time.Second)
	if err != nil {
		return fmt.Errorf("creating run collector: %s", err)
	}
	collectorCtx, cancelCollector := context.WithCancel(context.Background())

	srv := &server{counters: counters, runsDB: runsDB}

	limitInterval, err := time.ParseDuration(cfg.Serve.RateLimInterval)
	if err != nil {
		return fmt.Errorf("parsing rate limit interval: %s", err)
	}
	rateLimit, err := rateLimitMiddleware(cfg.Serve.MaxRequestPerInterval, limitInterval)
	if err != nil {
		return fmt.Errorf("creating rate limiter: %s", err)
	}

	r := mux.NewRouter()
	r.PathPrefix("/").Methods(http.MethodOptions)
	sub := r.Path("/translate").Subrouter()
	sub.HandleFunc("", srv.handleTranslate).Methods(http.MethodPost)
	sub.Use(rateLimit)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Serve.Port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      r,
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		log.Info().Str("port", cfg.Serve.Port).Msg("serving translate requests")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %s", err)
		}
		return nil
	})
	eg.Go(func() error {
		collector.Start(collectorCtx)
		return nil
	})

	handleInterrupt(func() {
		ctx, cls := context.WithTimeout(context.Background(), 10*time.Second)
		defer cls()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutting down http server")
		}

		cancelCollector()

		if err := closeTelemetry(ctx); err != nil {
			log.Error().Err(err).Msg("closing telemetry module")
		}
		if err := runsDB.Close(); err != nil {
			log.Error().Err(err).Msg("closing run history database")
		}
	})

	return eg.Wait()
}

func (s *server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body")
		return
	}
	if len(req.Roots) == 0 {
		writeError(w, http.StatusBadRequest, "roots must be non-empty")
		return
	}

	key := dedupeKey(req)
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.translate(r.Context(), req)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := result.(*driver.Result)
	violationCount := len(res.Violations)
	s.counters.RecordRequest(violationCount)

	resp := translateResponse{}
	if violationCount > 0 {
		resp.Violations = make([]string, violationCount)
		for i, v := range res.Violations {
			resp.Violations[i] = v.Error()
		}
	} else {
		resp.Output = res.Output
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) translate(ctx context.Context, req translateRequest) (*driver.Result, error) {
	started := time.Now()

	bundle, err := ast.LoadBundle(bytes.NewReader(req.Bundle))
	if err != nil {
		return nil, fmt.Errorf("loading bundle: %s", err)
	}

	result, err := driver.Run(bundle, req.Roots, driver.Config{
		MapDepth:        req.MapDepth,
		PersistentUsers: req.PersistentUsers,
		ConcreteUsers:   req.ConcreteUsers,
		GlobalContracts: req.GlobalContracts,
		AuxAddresses:    req.AuxAddresses,
	})
	if err != nil {
		return nil, err
	}

	runID := newNodeID()
	success := len(result.Violations) == 0
	rec := database.RunRecord{
		RunID:             runID,
		StartedAt:         started.UTC(),
		Roots:             req.Roots,
		ContractCount:     result.ContractCount,
		MapRecordCount:    result.MapRecordCount,
		AddressDomainSize: result.AddressDomainSize,
		ViolationCount:    len(result.Violations),
		Success:           success,
		DurationMillis:    time.Since(started).Milliseconds(),
	}
	if success {
		rec.OutputBytes = len(result.Output)
		sum := sha256.Sum256([]byte(result.Output))
		rec.OutputSHA256 = hex.EncodeToString(sum[:])
	}
	if err := s.runsDB.RecordRun(ctx, rec); err != nil {
		log.Error().Err(err).Msg("recording run history")
	}
	if err := telemetry.Collect(ctx, runSummary{run: rec}); err != nil {
		log.Error().Err(err).Msg("collecting run summary metric")
	}

	return result, nil
}

// dedupeKey identifies a request uniquely by its bundle contents, roots and
// config, so a burst of CI jobs translating the same commit and config only
// pays for one driver.Run.
func dedupeKey(req translateRequest) string {
	h := sha256.New()
	_, _ = h.Write(req.Bundle)
	_, _ = fmt.Fprintf(h, "|%v|%d|%d|%v|%v|%d",
		req.Roots, req.MapDepth, req.PersistentUsers, req.ConcreteUsers, req.GlobalContracts, req.AuxAddresses)
	return hex.EncodeToString(h.Sum(nil))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errors.ServiceError{Message: msg})
}

// rateLimitMiddleware bounds the rate of /translate requests per remote
// address, preferring X-Forwarded-For when a load balancer set it.
func rateLimitMiddleware(maxRPI uint64, interval time.Duration) (mux.MiddlewareFunc, error) {
	store, err := memorystore.New(&memorystore.Config{
		Tokens:   maxRPI,
		Interval: interval,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memorystore: %s", err)
	}

	m, err := httplimit.NewMiddleware(store, extractClientIP)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter middleware: %s", err)
	}

	return func(next http.Handler) http.Handler {
		return m.Handle(next)
	}, nil
}

func extractClientIP(r *http.Request) (string, error) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.Split(xff, ",")[0], nil
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("getting ip from remote addr: %s", err)
	}
	return ip, nil
}
