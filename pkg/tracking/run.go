package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Tracker is the subset of a run used by training code.
type Tracker interface {
	LogParam(ctx context.Context, key string, value any) error
	LogMetric(ctx context.Context, key string, value float64) error
	LogArtifact(ctx context.Context, path string) error
}

// Run is an open tracking run.
type Run struct {
	store        *Store
	id           string
	experimentID int64
	artifactDir  string
}

var _ Tracker = (*Run)(nil)

func (r *Run) ID() string          { return r.id }
func (r *Run) ExperimentID() int64 { return r.experimentID }
func (r *Run) ArtifactDir() string { return r.artifactDir }

// LogParam records a parameter. Logging the same key again is accepted only
// with an identical value.
func (r *Run) LogParam(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("tracking: empty param key")
	}
	v := formatValue(value)
	return withTx(ctx, r.store.db, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, "SELECT value FROM params WHERE run_id = ? AND key = ?", r.id, key).Scan(&existing)
		switch {
		case err == nil:
			if existing != v {
				return fmt.Errorf("%w: %s=%q, got %q", ErrParamConflict, key, existing, v)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("tracking: read param %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)", r.id, key, v); err != nil {
			return fmt.Errorf("tracking: log param %s: %w", key, err)
		}
		return nil
	})
}

// LogMetric appends a metric value at step 0.
func (r *Run) LogMetric(ctx context.Context, key string, value float64) error {
	if key == "" {
		return errors.New("tracking: empty metric key")
	}
	_, err := r.store.db.ExecContext(ctx,
		"INSERT INTO metrics (run_id, key, value, timestamp, step) VALUES (?, ?, ?, ?, 0)",
		r.id, key, value, nowMillis())
	if err != nil {
		return fmt.Errorf("tracking: log metric %s: %w", key, err)
	}
	return nil
}

// LogArtifact copies the file at path into the run's artifact directory.
func (r *Run) LogArtifact(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if err := os.MkdirAll(r.artifactDir, 0o755); err != nil {
		return fmt.Errorf("tracking: create artifact directory: %w", err)
	}
	size, err := copyFile(path, filepath.Join(r.artifactDir, name))
	if err != nil {
		return fmt.Errorf("tracking: log artifact %s: %w", path, err)
	}
	_, err = r.store.db.ExecContext(ctx,
		"INSERT INTO artifacts (run_id, path, size) VALUES (?, ?, ?) ON CONFLICT (run_id, path) DO UPDATE SET size = excluded.size",
		r.id, name, size)
	if err != nil {
		return fmt.Errorf("tracking: record artifact %s: %w", name, err)
	}
	return nil
}

// End marks the run terminated with status.
func (r *Run) End(ctx context.Context, status Status) error {
	_, err := r.store.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, end_time = ? WHERE run_id = ?", string(status), nowMillis(), r.id)
	if err != nil {
		return fmt.Errorf("tracking: end run: %w", err)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
