package objectstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryInterval = 50 * time.Millisecond

// migration is one forward-only DDL step, in the teacher's
// internal/storage/sqlite/migrations.go style: an ordered list of named,
// idempotent steps applied in sequence against schema_migrations.
type migration struct {
	name string
	fn   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{
		name: "001_create_objects",
		fn: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS objects (
					bucket       TEXT NOT NULL,
					key          TEXT NOT NULL,
					content_type TEXT NOT NULL DEFAULT '',
					payload      BLOB NOT NULL,
					updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (bucket, key)
				)
			`)
			return err
		},
	},
	{
		name: "002_create_object_index",
		fn: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS object_index (
					bucket     TEXT NOT NULL,
					index_name TEXT NOT NULL,
					term       TEXT NOT NULL,
					key        TEXT NOT NULL,
					PRIMARY KEY (bucket, index_name, term, key)
				)
			`)
			return err
		},
	},
	{
		name: "003_create_object_index_key_lookup",
		fn: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_object_index_by_key
				ON object_index (bucket, key)
			`)
			return err
		},
	},
}

// migrate applies every not-yet-applied migration in order, guarded by a
// cross-process advisory lock on path+".lock" so two processes opening the
// same store file concurrently can't race each other through DDL (the
// teacher's own migration runner instead uses a SQLite BEGIN EXCLUSIVE
// transaction for this; the flock-based file lock here is adapted from
// cmd/bd/sync.go's use of gofrs/flock to coordinate concurrent bd
// processes against the same repository).
func migrate(ctx context.Context, path string, db *sql.DB) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("objectstore: acquire migration lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("objectstore: could not acquire migration lock for %s", path)
	}
	defer lock.Unlock()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name        TEXT PRIMARY KEY,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("objectstore: create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		row := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, m.name)
		if err := row.Scan(&applied); err != nil {
			return fmt.Errorf("objectstore: check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("objectstore: begin migration %s: %w", m.name, err)
		}
		if err := m.fn(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("objectstore: apply migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("objectstore: record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("objectstore: commit migration %s: %w", m.name, err)
		}
	}
	return nil
}
