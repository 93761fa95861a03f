// Package manifest records pipeline runs in a SQLite audit trail: which
// stages ran, with what parameters, and how the cache behaved. The
// manifest is write-behind bookkeeping only; cache freshness is decided
// by file presence, never by this database.
package manifest

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the manifest database.
type DB struct {
	*sql.DB
}

// StageRun is one recorded stage execution.
type StageRun struct {
	ID          string
	RunID       string
	Stage       string
	Params      string
	CacheHits   int64
	CacheMisses int64
	Duration    time.Duration
	StartedAt   time.Time
}

// Open opens (creating if needed) the manifest database and applies any
// pending migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest db: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Not closing m: that would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// NewRunID returns a fresh identifier shared by all stage records of one
// pipeline invocation.
func NewRunID() string {
	return uuid.NewString()
}

// RecordStageRun appends one stage execution to the audit trail.
func (db *DB) RecordStageRun(r StageRun) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO stage_runs (id, run_id, stage, params, cache_hits, cache_misses, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.Stage, r.Params,
		r.CacheHits, r.CacheMisses, r.Duration.Milliseconds(),
		r.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record stage run: %w", err)
	}
	return nil
}

// ListRuns returns recorded stage executions, newest first, up to limit.
// A limit of zero or less returns everything.
func (db *DB) ListRuns(limit int) ([]StageRun, error) {
	q := `
		SELECT id, run_id, stage, params, cache_hits, cache_misses, duration_ms, started_at
		FROM stage_runs
		ORDER BY started_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		var r StageRun
		var durMs int64
		var started string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Stage, &r.Params, &r.CacheHits, &r.CacheMisses, &durMs, &started); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		r.Duration = time.Duration(durMs) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			r.StartedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	return out, nil
}
