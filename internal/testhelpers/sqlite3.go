// Package testhelpers collects small fixtures shared by package tests,
// adapted from the teacher's top-level tests package.
package testhelpers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Sqlite3URI returns a URI to spin up an in-memory SQLite database that
// outlives the individual connection opened against it (cache=shared), and
// registers a cleanup that tears it down when t finishes.
func Sqlite3URI(t *testing.T) string {
	dbURI := "file::" + uuid.NewString() + ":?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dbURI)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})

	return dbURI
}
