package telemetry

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// MetricType defines the metric type.
type MetricType int

const (
	// RunSummaryType is the type for the RunSummaryMetric.
	RunSummaryType MetricType = iota
	// GitSummaryType is the type for the GitSummaryMetric.
	GitSummaryType
	// ServerSnapshotType is the type for the ServerSnapshotMetric.
	ServerSnapshotType
)

// Metric defines a metric.
type Metric struct {
	RowID     int64       `json:"-"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MetricType  `json:"type"`
	Payload   interface{} `json:"payload"`
}

// Serialize serializes the metric.
func (m Metric) Serialize() ([]byte, error) {
	b, err := json.Marshal(m.Payload)
	if err != nil {
		return []byte(nil), errors.Errorf("marshal: %s", err)
	}

	return b, nil
}

// GitSummaryMetricVersion is a type for versioning GitSummary metrics.
type GitSummaryMetricVersion int64

// GitSummaryMetricV1 is the V1 version of GitSummary metric.
const GitSummaryMetricV1 GitSummaryMetricVersion = iota

// GitSummaryMetric contains Git information of the binary.
type GitSummaryMetric struct {
	Version GitSummaryMetricVersion `json:"version"`

	GitCommit     string `json:"git_commit"`
	GitBranch     string `json:"git_branch"`
	GitState      string `json:"git_state"`
	GitSummary    string `json:"git_summary"`
	BuildDate     string `json:"build_date"`
	BinaryVersion string `json:"binary_version"`
}

// RunSummaryMetricVersion is a type for versioning RunSummary metrics.
type RunSummaryMetricVersion int64

// RunSummaryMetricV1 is the V1 version of RunSummary metric.
const RunSummaryMetricV1 RunSummaryMetricVersion = iota

// RunSummaryMetric contains the outcome of one translation run.
type RunSummaryMetric struct {
	Version RunSummaryMetricVersion `json:"version"`

	RunID             string `json:"run_id"`
	ContractCount     int    `json:"contract_count"`
	MapRecordCount    int    `json:"map_record_count"`
	AddressDomainSize int    `json:"address_domain_size"`
	ViolationCount    int    `json:"violation_count"`
	Success           bool   `json:"success"`
	OutputBytes       int    `json:"output_bytes"`
	OutputSHA256      string `json:"output_sha256"`
	DurationMillis    int64  `json:"duration_millis"`
}

// ServerSnapshotMetricVersion is a type for versioning ServerSnapshot metrics.
type ServerSnapshotMetricVersion int64

// ServerSnapshotMetricV1 is the V1 version of ServerSnapshot metric.
const ServerSnapshotMetricV1 ServerSnapshotMetricVersion = iota

// ServerSnapshotMetric contains periodic daemon-mode counters.
type ServerSnapshotMetric struct {
	Version ServerSnapshotMetricVersion `json:"version"`

	RequestsServed  int64 `json:"requests_served"`
	ViolationsTotal int64 `json:"violations_total"`
	UptimeMillis    int64 `json:"uptime_millis"`
}
