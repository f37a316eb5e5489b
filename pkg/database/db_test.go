package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/testhelpers"
)

func TestRecordAndFetchRuns(t *testing.T) {
	dbURI := testhelpers.Sqlite3URI(t)
	db, err := Open(dbURI)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	rec := RunRecord{
		RunID:          "run-1",
		StartedAt:      time.Now().UTC().Truncate(time.Millisecond),
		Roots:          []string{"A", "B"},
		ContractCount:  2,
		ViolationCount: 0,
		Success:        true,
		OutputBytes:    1024,
		OutputSHA256:   "deadbeef",
		DurationMillis: 15,
	}
	require.NoError(t, db.RecordRun(ctx, rec))

	runs, err := db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, rec.RunID, runs[0].RunID)
	require.Equal(t, rec.Roots, runs[0].Roots)
	require.Equal(t, rec.ContractCount, runs[0].ContractCount)
	require.Equal(t, rec.OutputSHA256, runs[0].OutputSHA256)
	require.True(t, rec.StartedAt.Equal(runs[0].StartedAt))
}

func TestRecentRunsOrdersNewestFirst(t *testing.T) {
	dbURI := testhelpers.Sqlite3URI(t)
	db, err := Open(dbURI)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, db.RecordRun(ctx, RunRecord{RunID: "older", StartedAt: base, Roots: []string{"A"}}))
	require.NoError(t, db.RecordRun(ctx, RunRecord{RunID: "newer", StartedAt: base.Add(time.Second), Roots: []string{"A"}}))

	runs, err := db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "newer", runs[0].RunID)
	require.Equal(t, "older", runs[1].RunID)
}
