package tracking

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents one schema change of the tracking database.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_experiments_and_runs",
		SQL: `
			CREATE TABLE experiments (
				experiment_id     INTEGER PRIMARY KEY AUTOINCREMENT,
				name              TEXT NOT NULL UNIQUE,
				artifact_location TEXT NOT NULL,
				creation_time     INTEGER NOT NULL
			);
			CREATE TABLE runs (
				run_id        TEXT PRIMARY KEY,
				experiment_id INTEGER NOT NULL REFERENCES experiments(experiment_id),
				status        TEXT NOT NULL,
				start_time    INTEGER NOT NULL,
				end_time      INTEGER,
				artifact_uri  TEXT NOT NULL
			);`,
	},
	{
		Version: 2,
		Name:    "create_params_and_metrics",
		SQL: `
			CREATE TABLE params (
				run_id TEXT NOT NULL REFERENCES runs(run_id),
				key    TEXT NOT NULL,
				value  TEXT NOT NULL,
				PRIMARY KEY (run_id, key)
			);
			CREATE TABLE metrics (
				run_id    TEXT NOT NULL REFERENCES runs(run_id),
				key       TEXT NOT NULL,
				value     REAL NOT NULL,
				timestamp INTEGER NOT NULL,
				step      INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX idx_metrics_run_key ON metrics(run_id, key);`,
	},
	{
		Version: 3,
		Name:    "create_artifacts",
		SQL: `
			CREATE TABLE artifacts (
				run_id TEXT NOT NULL REFERENCES runs(run_id),
				path   TEXT NOT NULL,
				size   INTEGER NOT NULL,
				PRIMARY KEY (run_id, path)
			);`,
	},
}

// migrate applies every migration newer than the recorded schema version.
func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// withTx executes fn within a database transaction.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
