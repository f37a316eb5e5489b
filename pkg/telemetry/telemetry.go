package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

var (
	metricStore MetricStore
	log         zerolog.Logger

	mu   = &sync.Mutex{}
	once sync.Once
)

func init() {
	log = logger.With().
		Str("component", "telemetry").
		Logger()
}

// MetricStore specifies the methods for persisting a metric.
type MetricStore interface {
	StoreMetric(context.Context, Metric) error
	Close() error
}

// SetMetricStore sets the store implementation.
// Only the first call will have an effect. If Collect is called without setting a MetricStore, it will be a noop.
func SetMetricStore(s MetricStore) {
	once.Do(func() {
		metricStore = s
	})
}

// GitSummary is satisfied by anything that can describe the running binary's
// build provenance (buildinfo.GetSummary's return value).
type GitSummary interface {
	GetGitCommit() string
	GetGitBranch() string
	GetGitState() string
	GetGitSummary() string
	GetBuildDate() string
	GetBinaryVersion() string
}

// RunSummary is satisfied by anything that can describe the outcome of one
// translation run (cmd/smartace/translate.go builds one from a driver.Result).
type RunSummary interface {
	GetRunID() string
	GetContractCount() int
	GetMapRecordCount() int
	GetAddressDomainSize() int
	GetViolationCount() int
	GetSuccess() bool
	GetOutputBytes() int
	GetOutputSHA256() string
	GetDurationMillis() int64
}

// ServerSnapshot is satisfied by anything that can describe the daemon's
// cumulative counters at a point in time (runcollector's periodic tick in
// the serve daemon).
type ServerSnapshot interface {
	GetRequestsServed() int64
	GetViolationsTotal() int64
	GetUptimeMillis() int64
}

// Collect collects the metric by persisting locally for later publication.
// If Collect is called before setting the metric store, it logs a warning and drops the metric without persisting it.
func Collect(ctx context.Context, metric interface{}) error {
	mu.Lock()
	defer mu.Unlock()
	if metricStore == nil {
		log.Warn().Msg("no metric store was set")
		return nil
	}

	switch v := metric.(type) {
	case RunSummary:
		if err := metricStore.StoreMetric(ctx, Metric{
			Version:   1,
			Timestamp: time.Now().UTC(),
			Type:      RunSummaryType,
			Payload: RunSummaryMetric{
				Version:           RunSummaryMetricV1,
				RunID:             v.GetRunID(),
				ContractCount:     v.GetContractCount(),
				MapRecordCount:    v.GetMapRecordCount(),
				AddressDomainSize: v.GetAddressDomainSize(),
				ViolationCount:    v.GetViolationCount(),
				Success:           v.GetSuccess(),
				OutputBytes:       v.GetOutputBytes(),
				OutputSHA256:      v.GetOutputSHA256(),
				DurationMillis:    v.GetDurationMillis(),
			},
		}); err != nil {
			return errors.Errorf("store run summary metric: %s", err)
		}
		return nil
	case GitSummary:
		if err := metricStore.StoreMetric(ctx, Metric{
			Version:   1,
			Timestamp: time.Now().UTC(),
			Type:      GitSummaryType,
			Payload: GitSummaryMetric{
				Version:       GitSummaryMetricV1,
				GitCommit:     v.GetGitCommit(),
				GitBranch:     v.GetGitBranch(),
				GitState:      v.GetGitState(),
				GitSummary:    v.GetGitSummary(),
				BuildDate:     v.GetBuildDate(),
				BinaryVersion: v.GetBinaryVersion(),
			},
		}); err != nil {
			return errors.Errorf("store git summary metric: %s", err)
		}
		return nil
	case ServerSnapshot:
		if err := metricStore.StoreMetric(ctx, Metric{
			Version:   1,
			Timestamp: time.Now().UTC(),
			Type:      ServerSnapshotType,
			Payload: ServerSnapshotMetric{
				Version:         ServerSnapshotMetricV1,
				RequestsServed:  v.GetRequestsServed(),
				ViolationsTotal: v.GetViolationsTotal(),
				UptimeMillis:    v.GetUptimeMillis(),
			},
		}); err != nil {
			return errors.Errorf("store server snapshot metric: %s", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown metric type %T", v)
	}
}
