// Package journal persists the outcome of every part of every run to SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/walker"
)

const maxErrorBytes = 64 * 1024

// timeLayout is fixed-width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// StartRun inserts a running run row and returns its ID.
func (s *Store) StartRun(ctx context.Context, frequency handler.Frequency, configPath string) (string, error) {
	if !frequency.Valid() {
		return "", fmt.Errorf("invalid frequency %q", frequency)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(id, frequency, config_path, status, started_at)
VALUES(?, ?, ?, ?, ?);
`, id, string(frequency), nullString(configPath), StatusRunning, now)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// Record appends e to its run. A zero Seq is assigned the next free sequence.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return fmt.Errorf("run id is empty")
	}
	if e.ContentType == "" {
		return fmt.Errorf("content type is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if len(e.Error) > maxErrorBytes {
		e.Error = e.Error[:maxErrorBytes]
	}

	var seq any = e.Seq
	if e.Seq <= 0 {
		seq = nil
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO part_outcomes(
  id, run_id, seq, kind, content_type, filename, module, outcome, digest, error, created_at
)
VALUES(
  ?, ?, COALESCE(?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM part_outcomes WHERE run_id = ?)),
  ?, ?, ?, ?, ?, ?, ?, ?
);
`, e.ID, e.RunID, seq, e.RunID,
		e.Kind, e.ContentType, nullString(e.Filename), nullString(e.Module), e.Outcome,
		nullString(e.Digest), nullString(e.Error), e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// FinishRun marks a run completed, or cancelled when sum says so, and stores
// its summary.
func (s *Store) FinishRun(ctx context.Context, runID string, sum walker.Summary) error {
	status := StatusCompleted
	if sum.Cancelled {
		status = StatusCancelled
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, finished_at = ?,
    parts = ?, materialized = ?, materialize_failed = ?,
    handled = ?, skipped = ?, failed = ?, unhandled = ?
WHERE id = ?;
`, status, now,
		sum.Parts, sum.Materialized, sum.MaterializeFailed,
		sum.Handled, sum.Skipped, sum.Failed, sum.Unhandled,
		runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, frequency, config_path, status, started_at, finished_at,
       parts, materialized, materialize_failed, handled, skipped, failed, unhandled
FROM runs
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r           Run
			configPath  sql.NullString
			statusS     string
			startedAtS  string
			finishedAtS sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Frequency, &configPath, &statusS, &startedAtS, &finishedAtS,
			&r.Summary.Parts, &r.Summary.Materialized, &r.Summary.MaterializeFailed,
			&r.Summary.Handled, &r.Summary.Skipped, &r.Summary.Failed, &r.Summary.Unhandled,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = Status(statusS)
		r.Summary.Cancelled = r.Status == StatusCancelled
		r.ConfigPath = configPath.String
		if t, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
			r.StartedAt = t
		}
		if finishedAtS.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finishedAtS.String); err == nil {
				r.FinishedAt = &t
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Outcomes returns the entries of a run in sequence order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, seq, kind, content_type, filename, module, outcome, digest, error, created_at
FROM part_outcomes
WHERE run_id = ?
ORDER BY seq ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                                   Entry
			filename, module, digest, errorText sql.NullString
			createdAtS                          string
		)
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.Seq, &e.Kind, &e.ContentType, &filename, &module,
			&e.Outcome, &digest, &errorText, &createdAtS,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Filename = filename.String
		e.Module = module.String
		e.Digest = digest.String
		e.Error = errorText.String
		if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
