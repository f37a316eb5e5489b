package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectWithoutStore(t *testing.T) {
	metricStore = nil
	require.NoError(t, Collect(context.Background(), fakeRunSummary))
}

func TestCollectMockedStore(t *testing.T) {
	t.Run("run summary", func(t *testing.T) {
		s := &store{}
		metricStore = s

		require.False(t, s.called)
		err := Collect(context.Background(), fakeRunSummary)
		require.NoError(t, err)
		require.True(t, s.called)
	})
	t.Run("git summary", func(t *testing.T) {
		s := &store{}
		metricStore = s

		require.False(t, s.called)
		err := Collect(context.Background(), fakeGitSummary)
		require.NoError(t, err)
		require.True(t, s.called)
	})
	t.Run("server snapshot", func(t *testing.T) {
		s := &store{}
		metricStore = s

		require.False(t, s.called)
		err := Collect(context.Background(), fakeServerSnapshot{requestsServed: 10, violationsTotal: 2, uptimeMillis: 1000})
		require.NoError(t, err)
		require.True(t, s.called)
	})
}

func TestCollectUnknownMetric(t *testing.T) {
	s := &store{}
	metricStore = s

	err := Collect(context.Background(), struct{}{})
	require.Error(t, err)
	require.ErrorContains(t, err, "unknown metric")
}

type fakeRunSummaryMetric struct {
	runID string
}

func (f fakeRunSummaryMetric) GetRunID() string            { return f.runID }
func (f fakeRunSummaryMetric) GetContractCount() int       { return 3 }
func (f fakeRunSummaryMetric) GetMapRecordCount() int      { return 2 }
func (f fakeRunSummaryMetric) GetAddressDomainSize() int   { return 5 }
func (f fakeRunSummaryMetric) GetViolationCount() int      { return 0 }
func (f fakeRunSummaryMetric) GetSuccess() bool            { return true }
func (f fakeRunSummaryMetric) GetOutputBytes() int         { return 1024 }
func (f fakeRunSummaryMetric) GetOutputSHA256() string     { return "abcdefgh" }
func (f fakeRunSummaryMetric) GetDurationMillis() int64    { return 42 }

var fakeRunSummary = fakeRunSummaryMetric{runID: "fake-run-id"}

type fakeGitSummaryMetric struct{}

func (fakeGitSummaryMetric) GetGitCommit() string     { return "fakeGitCommit" }
func (fakeGitSummaryMetric) GetGitBranch() string     { return "fakeGitBranch" }
func (fakeGitSummaryMetric) GetGitState() string      { return "fakeGitState" }
func (fakeGitSummaryMetric) GetGitSummary() string    { return "fakeGitSummary" }
func (fakeGitSummaryMetric) GetBuildDate() string     { return "fakeGitDate" }
func (fakeGitSummaryMetric) GetBinaryVersion() string { return "fakeBinaryVersion" }

var fakeGitSummary = fakeGitSummaryMetric{}

type fakeServerSnapshot struct {
	requestsServed  int64
	violationsTotal int64
	uptimeMillis    int64
}

func (f fakeServerSnapshot) GetRequestsServed() int64  { return f.requestsServed }
func (f fakeServerSnapshot) GetViolationsTotal() int64 { return f.violationsTotal }
func (f fakeServerSnapshot) GetUptimeMillis() int64    { return f.uptimeMillis }

type store struct {
	called bool
}

func (db *store) StoreMetric(_ context.Context, _ Metric) error {
	db.called = true
	return nil
}

func (db *store) Close() error {
	return nil
}
