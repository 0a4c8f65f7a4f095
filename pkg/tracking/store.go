// Package tracking records experiment runs: hyperparameters, metrics and
// artifacts. Runs live in a local SQLite database laid out like an MLflow
// tracking store; artifacts are copied under the store's artifact root.
package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sarthakverma11/mlops-project-template/pkg/ctxlog"
)

const sqliteScheme = "sqlite:///"

var (
	// ErrRunNotFound is returned when resuming an unknown run id.
	ErrRunNotFound = errors.New("tracking: run not found")
	// ErrParamConflict is returned when a parameter is logged twice with
	// different values.
	ErrParamConflict = errors.New("tracking: parameter already logged with a different value")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// Store is a tracking database plus the directory holding run artifacts.
type Store struct {
	db           *sql.DB
	artifactRoot string
}

// DBPath resolves a tracking URI to a database file path. Accepted forms are
// "sqlite:///relative/path.db", "sqlite:////absolute/path.db" and a bare path.
func DBPath(uri string) (string, error) {
	switch {
	case uri == "":
		return "", errors.New("tracking: empty tracking uri")
	case strings.HasPrefix(uri, sqliteScheme):
		p := strings.TrimPrefix(uri, sqliteScheme)
		if p == "" {
			return "", fmt.Errorf("tracking: no database path in %q", uri)
		}
		return p, nil
	case strings.Contains(uri, "://"):
		return "", fmt.Errorf("tracking: unsupported tracking uri %q", uri)
	default:
		return uri, nil
	}
}

// Open connects to the tracking database named by uri, creating it and its
// schema when needed. Artifacts are stored next to the database file.
func Open(ctx context.Context, uri string) (*Store, error) {
	path, err := DBPath(uri)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tracking: create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tracking: open %s: %w", path, err)
	}
	// A single connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("tracking: %s: %w", pragma, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracking: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("Tracking store opened.", "path", path)
	return &Store{db: db, artifactRoot: dir}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// StartRun creates a RUNNING run in experiment, creating the experiment on
// first use.
func (s *Store) StartRun(ctx context.Context, experiment string) (*Run, error) {
	if experiment == "" {
		experiment = "Default"
	}
	expID, err := s.experimentID(ctx, experiment)
	if err != nil {
		return nil, err
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	artifactDir := filepath.Join(s.artifactRoot, strconv.FormatInt(expID, 10), id, "artifacts")
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, experiment_id, status, start_time, artifact_uri) VALUES (?, ?, ?, ?, ?)",
		id, expID, string(StatusRunning), nowMillis(), artifactDir)
	if err != nil {
		return nil, fmt.Errorf("tracking: create run: %w", err)
	}

	ctxlog.FromContext(ctx).Info("Tracking run started.", "run_id", id, "experiment", experiment)
	return &Run{store: s, id: id, experimentID: expID, artifactDir: artifactDir}, nil
}

// ResumeRun attaches to an existing run.
func (s *Store) ResumeRun(ctx context.Context, runID string) (*Run, error) {
	var (
		expID       int64
		artifactDir string
	)
	row := s.db.QueryRowContext(ctx, "SELECT experiment_id, artifact_uri FROM runs WHERE run_id = ?", runID)
	if err := row.Scan(&expID, &artifactDir); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("tracking: resume run: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Tracking run resumed.", "run_id", runID)
	return &Run{store: s, id: runID, experimentID: expID, artifactDir: artifactDir}, nil
}

// RunStatus returns the recorded status of a run.
func (s *Store) RunStatus(ctx context.Context, runID string) (Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, "SELECT status FROM runs WHERE run_id = ?", runID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return "", fmt.Errorf("tracking: run status: %w", err)
	}
	return Status(status), nil
}

// Params returns the parameters logged for a run.
func (s *Store) Params(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM params WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("tracking: query params: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("tracking: scan param: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Metrics returns the latest value of every metric logged for a run.
func (s *Store) Metrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM metrics WHERE run_id = ? ORDER BY timestamp, step, rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("tracking: query metrics: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var (
			k string
			v float64
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("tracking: scan metric: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Artifacts returns the artifact paths recorded for a run, relative to its
// artifact directory.
func (s *Store) Artifacts(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM artifacts WHERE run_id = ? ORDER BY path", runID)
	if err != nil {
		return nil, fmt.Errorf("tracking: query artifacts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("tracking: scan artifact: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) experimentID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT experiment_id FROM experiments WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("tracking: look up experiment %q: %w", name, err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO experiments (name, artifact_location, creation_time) VALUES (?, ?, ?)",
		name, s.artifactRoot, nowMillis())
	if err != nil {
		return 0, fmt.Errorf("tracking: create experiment %q: %w", name, err)
	}
	return res.LastInsertId()
}

func nowMillis() int64 { return time.Now().UnixMilli() }
