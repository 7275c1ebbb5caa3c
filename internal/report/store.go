package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id               TEXT PRIMARY KEY,
	status               TEXT NOT NULL,
	started_at           TEXT NOT NULL,
	finished_at          TEXT NOT NULL,
	sample_count         INTEGER NOT NULL,
	failure_count        INTEGER NOT NULL,
	mean_text_accuracy   REAL NOT NULL,
	mean_layout_accuracy REAL,
	total_latency_ms     INTEGER NOT NULL
);`

// Store keeps a run-history index in SQLite so mean metrics can be
// compared across runs without re-reading report directories.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenStore opens (creating if needed) the run-history database at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run db: %w", err)
	}
	if _, err := db.ExecContext(ctx, runsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	logger.Info("store.opened", "path", path)
	return &Store{db: db, log: logger}, nil
}

// RecordRun inserts one completed (or failed) run into the index.
func (s *Store) RecordRun(ctx context.Context, sum RunSummary) error {
	var layout any
	if sum.MeanLayoutAccuracy != nil {
		layout = *sum.MeanLayoutAccuracy
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, started_at, finished_at, sample_count,
			failure_count, mean_text_accuracy, mean_layout_accuracy, total_latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID,
		sum.Status,
		sum.StartedAt.UTC().Format(time.RFC3339),
		sum.FinishedAt.UTC().Format(time.RFC3339),
		sum.SampleCount,
		sum.FailureCount,
		sum.MeanTextAccuracy,
		layout,
		sum.TotalLatencyMS,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.log.Info("store.run_recorded", "run_id", sum.RunID, "status", sum.Status)
	return nil
}

// RunCount reports how many runs the index holds.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
