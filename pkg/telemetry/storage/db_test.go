package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/testhelpers"
	"github.com/contract-ace/smartace/pkg/telemetry"
)

func TestCollectSqliteStore(t *testing.T) {
	t.Run("run summary", func(t *testing.T) {
		dbURI := testhelpers.Sqlite3URI(t)
		s, err := New(dbURI)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		telemetry.SetMetricStore(s)

		err = telemetry.Collect(context.Background(), runSummary{})
		require.NoError(t, err)

		var version, typ, published int
		var timestamp int64
		var payload string
		row := s.sqlDB.QueryRowContext(context.Background(),
			"SELECT version, timestamp, type, payload, published FROM system_metrics LIMIT 1")
		require.NoError(t, row.Scan(&version, &timestamp, &typ, &payload, &published))

		require.Equal(t, 0, published)
		require.Equal(t, int(telemetry.RunSummaryType), typ)

		var runSummaryMetric telemetry.RunSummaryMetric
		require.NoError(t, json.Unmarshal([]byte(payload), &runSummaryMetric))
		require.Equal(t, runSummary{}.GetRunID(), runSummaryMetric.RunID)
		require.Equal(t, runSummary{}.GetContractCount(), runSummaryMetric.ContractCount)
	})
}

func TestFetchAndMarkPublished(t *testing.T) {
	dbURI := testhelpers.Sqlite3URI(t)
	s, err := New(dbURI)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.StoreMetric(ctx, telemetry.Metric{
		Version: 1,
		Type:    telemetry.GitSummaryType,
		Payload: telemetry.GitSummaryMetric{GitCommit: "abc123"},
	}))

	metrics, err := s.FetchUnpublishedMetrics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	payload, ok := metrics[0].Payload.(*telemetry.GitSummaryMetric)
	require.True(t, ok)
	require.Equal(t, "abc123", payload.GitCommit)

	require.NoError(t, s.MarkAsPublished(ctx, []int64{metrics[0].RowID}))

	metrics, err = s.FetchUnpublishedMetrics(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, metrics)
}

type runSummary struct{}

func (runSummary) GetRunID() string          { return "run-1" }
func (runSummary) GetContractCount() int     { return 2 }
func (runSummary) GetMapRecordCount() int    { return 1 }
func (runSummary) GetAddressDomainSize() int { return 4 }
func (runSummary) GetViolationCount() int    { return 0 }
func (runSummary) GetSuccess() bool          { return true }
func (runSummary) GetOutputBytes() int       { return 512 }
func (runSummary) GetOutputSHA256() string   { return "deadbeef" }
func (runSummary) GetDurationMillis() int64  { return 7 }
