package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"doceval/internal/score"
)

// Failure records one sample that did not produce a scored report, with
// the pipeline stage that rejected it.
type Failure struct {
	SampleID string `json:"sample_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// RunSummary aggregates one full pass over a corpus. It is the only
// per-run entity that outlives the run.
type RunSummary struct {
	RunID              string    `json:"run_id"`
	Status             string    `json:"status"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	SampleCount        int       `json:"sample_count"`
	FailureCount       int       `json:"failure_count"`
	MeanTextAccuracy   float64   `json:"mean_text_accuracy"`
	MeanLayoutAccuracy *float64  `json:"mean_layout_accuracy"`
	TotalLatencyMS     int64     `json:"total_latency_ms"`
	Failures           []Failure `json:"failures"`
}

// Writer persists per-sample reports and the run summary into a single
// output directory, file names keyed by sample id for reproducible
// diffing across runs.
type Writer struct {
	dir string
	log *slog.Logger
}

func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, log: logger}, nil
}

func (w *Writer) Dir() string { return w.dir }

// WriteReport writes one sample's metric report as <sample_id>.report.json.
func (w *Writer) WriteReport(r score.Report) error {
	path := filepath.Join(w.dir, r.SampleID+".report.json")
	if err := writeJSON(path, r); err != nil {
		return err
	}
	w.log.Info("report.written", "sample_id", r.SampleID, "path", path)
	return nil
}

// WriteSummary writes the run summary as run_summary.json.
func (w *Writer) WriteSummary(s RunSummary) error {
	path := filepath.Join(w.dir, "run_summary.json")
	if err := writeJSON(path, s); err != nil {
		return err
	}
	w.log.Info("report.summary_written",
		"run_id", s.RunID,
		"samples", s.SampleCount,
		"failures", s.FailureCount,
		"path", path,
	)
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
