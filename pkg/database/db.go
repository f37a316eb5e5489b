// Package database stores the run history of a translator instance: one row
// per translate invocation (batch mode or a serve daemon's handled request),
// replacing the teacher's sqlc-generated Queries with a small hand-written
// API over the same otelsql/golang-migrate/go-sqlite3 stack, since this
// repo's schema is a single narrow table rather than the teacher's generated
// query surface.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3" // migration for sqlite3
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/contract-ace/smartace/pkg/database/migrations"
	"github.com/contract-ace/smartace/pkg/metrics"
)

// RunRecord is one persisted translation run.
type RunRecord struct {
	RunID             string
	StartedAt         time.Time
	Roots             []string
	ContractCount     int
	MapRecordCount    int
	AddressDomainSize int
	ViolationCount    int
	Success           bool
	OutputBytes       int
	OutputSHA256      string
	DurationMillis    int64
}

// SQLiteDB is the run-history store, backed by database/sql.
type SQLiteDB struct {
	URI string
	DB  *sql.DB
	Log zerolog.Logger
}

// Open opens a new SQLite database and applies any pending migrations.
func Open(path string, attributes ...attribute.KeyValue) (*SQLiteDB, error) {
	log := logger.With().
		Str("component", "db").
		Logger()

	attributes = append(attributes, metrics.BaseAttrs...)
	sqlDB, err := otelsql.Open("sqlite3", path, otelsql.WithAttributes(attributes...))
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %s", err)
	}

	if err := otelsql.RegisterDBStatsMetrics(sqlDB, otelsql.WithAttributes(
		attributes...,
	)); err != nil {
		return nil, fmt.Errorf("registering dbstats: %s", err)
	}

	database := &SQLiteDB{
		URI: path,
		DB:  sqlDB,
		Log: log,
	}

	if err := database.executeMigration(path); err != nil {
		return nil, fmt.Errorf("initializing db connection: %s", err)
	}

	return database, nil
}

// RecordRun persists one completed translation run.
func (db *SQLiteDB) RecordRun(ctx context.Context, r RunRecord) error {
	roots, err := json.Marshal(r.Roots)
	if err != nil {
		return fmt.Errorf("marshal roots: %s", err)
	}

	_, err = db.DB.ExecContext(ctx,
		`INSERT INTO runs
			("run_id", "started_at", "roots", "contract_count", "map_record_count",
			 "address_domain_size", "violation_count", "success", "output_bytes",
			 "output_sha256", "duration_millis")
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11)`,
		r.RunID, r.StartedAt.UnixMilli(), string(roots), r.ContractCount, r.MapRecordCount,
		r.AddressDomainSize, r.ViolationCount, r.Success, r.OutputBytes, r.OutputSHA256, r.DurationMillis,
	)
	if err != nil {
		return fmt.Errorf("insert into runs: %s", err)
	}

	return nil
}

// RecentRuns returns the most recent runs, newest first, up to limit.
func (db *SQLiteDB) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := db.DB.QueryContext(ctx,
		`SELECT run_id, started_at, roots, contract_count, map_record_count,
			address_domain_size, violation_count, success, output_bytes,
			output_sha256, duration_millis
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %s", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			db.Log.Error().Err(err).Msg("closing query rows")
		}
	}()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedAt int64
		var roots string
		if err := rows.Scan(&r.RunID, &startedAt, &roots, &r.ContractCount, &r.MapRecordCount,
			&r.AddressDomainSize, &r.ViolationCount, &r.Success, &r.OutputBytes,
			&r.OutputSHA256, &r.DurationMillis); err != nil {
			return nil, fmt.Errorf("scan run row: %s", err)
		}
		r.StartedAt = time.UnixMilli(startedAt)
		if err := json.Unmarshal([]byte(roots), &r.Roots); err != nil {
			return nil, fmt.Errorf("unmarshal roots: %s", err)
		}
		out = append(out, r)
	}

	return out, nil
}

// Close closes the database.
func (db *SQLiteDB) Close() error {
	return db.DB.Close()
}

// executeMigration runs the db migrations against the SQLite database at dbURI.
func (db *SQLiteDB) executeMigration(dbURI string) error {
	d, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("creating source driver: %s", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, "sqlite3://"+dbURI)
	if err != nil {
		return fmt.Errorf("creating migration: %s", err)
	}
	defer func() {
		if _, err := m.Close(); err != nil {
			db.Log.Error().Err(err).Msg("closing db migration")
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migration up: %s", err)
	}

	version, dirty, err := m.Version()
	db.Log.Info().
		Uint("dbVersion", version).
		Bool("dirty", dirty).
		Err(err).
		Msg("database migration executed")

	return nil
}
