package eval

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"doceval/internal/corpus"
	"doceval/internal/document"
	"doceval/internal/inference"
	"doceval/internal/report"
	"doceval/internal/score"
)

// Run states. A run fails only on setup-level errors; per-sample failures
// are recorded in the summary and the run still completes.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Inferencer drives one sample through the remote endpoint.
type Inferencer interface {
	Infer(ctx context.Context, sample corpus.Sample) inference.Response
}

// Normalizer converts a raw inference response into a canonical Document.
type Normalizer interface {
	Normalize(resp inference.Response) (document.Document, error)
}

// Orchestrator coordinates corpus discovery, inference, normalization and
// scoring across a bounded worker pool, then persists the results.
type Orchestrator struct {
	logger  *slog.Logger
	repo    *corpus.Repository
	client  Inferencer
	norm    Normalizer
	writer  *report.Writer
	store   *report.Store
	workers int
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithStore attaches a run-history index updated on completion.
func WithStore(s *report.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

func NewOrchestrator(logger *slog.Logger, repo *corpus.Repository, client Inferencer, norm Normalizer, writer *report.Writer, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		logger:  logger,
		repo:    repo,
		client:  client,
		norm:    norm,
		writer:  writer,
		workers: 4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// result is one worker's per-sample outcome, returned as a value and
// merged by the single collector. Exactly one of report/failure is set.
type result struct {
	report  *score.Report
	failure *report.Failure
}

// Run executes one full evaluation pass. referenceDir may be empty, in
// which case samples are normalized and reported structurally without
// similarity scores. The returned error is non-nil only for setup-level
// failures; the summary then carries StateFailed.
func (o *Orchestrator) Run(ctx context.Context, samplesDir, referenceDir string) (report.RunSummary, error) {
	sum := report.RunSummary{
		RunID:     uuid.New().String(),
		Status:    StatePending,
		StartedAt: time.Now().UTC(),
		Failures:  []report.Failure{},
	}

	samples, err := o.repo.List(samplesDir)
	if err != nil {
		sum.Status = StateFailed
		sum.FinishedAt = time.Now().UTC()
		o.logger.Error("eval.setup_failed", "run_id", sum.RunID, "error", err)
		return sum, err
	}

	var refs *corpus.ReferenceSet
	if referenceDir != "" {
		refs, err = corpus.LoadReferenceSet(referenceDir)
		if err != nil {
			sum.Status = StateFailed
			sum.FinishedAt = time.Now().UTC()
			o.logger.Error("eval.setup_failed", "run_id", sum.RunID, "error", err)
			return sum, err
		}
	}

	sum.Status = StateRunning
	sum.SampleCount = len(samples)
	o.logger.Info("eval.run_started",
		"run_id", sum.RunID,
		"samples", len(samples),
		"workers", o.workers,
		"scored", refs != nil,
	)

	jobs := make(chan corpus.Sample)
	results := make(chan result)

	// dispatcher: stops handing out samples once ctx is cancelled;
	// in-flight attempts finish or time out on their own.
	go func() {
		defer close(jobs)
		for _, s := range samples {
			select {
			case <-ctx.Done():
				o.logger.Warn("eval.dispatch_cancelled", "run_id", sum.RunID)
				return
			case jobs <- s:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for s := range jobs {
				results <- o.evaluate(ctx, s, refs)
			}
		}(i + 1)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// single collector: workers return values, nothing shares the
	// accumulator.
	var reports []score.Report
	for res := range results {
		if res.failure != nil {
			sum.Failures = append(sum.Failures, *res.failure)
			continue
		}
		reports = append(reports, *res.report)
	}

	// deterministic output regardless of scheduling order
	sort.Slice(reports, func(i, j int) bool { return reports[i].SampleID < reports[j].SampleID })
	sort.Slice(sum.Failures, func(i, j int) bool { return sum.Failures[i].SampleID < sum.Failures[j].SampleID })

	sum.FailureCount = len(sum.Failures)
	o.aggregate(&sum, reports, refs != nil)

	for _, r := range reports {
		if err := o.writer.WriteReport(r); err != nil {
			o.logger.Error("eval.report_write_failed", "run_id", sum.RunID, "sample_id", r.SampleID, "error", err)
		}
	}

	sum.Status = StateCompleted
	sum.FinishedAt = time.Now().UTC()
	if err := o.writer.WriteSummary(sum); err != nil {
		o.logger.Error("eval.summary_write_failed", "run_id", sum.RunID, "error", err)
	}
	if len(reports) > 0 {
		if err := o.writer.WriteXLSX(sum, reports); err != nil {
			o.logger.Error("eval.xlsx_write_failed", "run_id", sum.RunID, "error", err)
		}
	}
	if o.store != nil {
		if err := o.store.RecordRun(ctx, sum); err != nil {
			o.logger.Error("eval.store_failed", "run_id", sum.RunID, "error", err)
		}
	}

	o.logger.Info("eval.run_completed",
		"run_id", sum.RunID,
		"samples", sum.SampleCount,
		"failures", sum.FailureCount,
		"mean_text_accuracy", sum.MeanTextAccuracy,
		"elapsed_ms", sum.FinishedAt.Sub(sum.StartedAt).Milliseconds(),
	)
	return sum, nil
}

// evaluate runs the full per-sample pipeline. Failures at any stage are
// converted into failure records here, at the pipeline boundary.
func (o *Orchestrator) evaluate(ctx context.Context, s corpus.Sample, refs *corpus.ReferenceSet) result {
	resp := o.client.Infer(ctx, s)
	if resp.Status != inference.StatusSuccess {
		return result{failure: &report.Failure{SampleID: s.ID, Stage: "inference", Reason: resp.FailureReason}}
	}

	doc, err := o.norm.Normalize(resp)
	if err != nil {
		o.logger.Warn("eval.sample.failed", "sample_id", s.ID, "stage", "normalization", "error", err)
		return result{failure: &report.Failure{SampleID: s.ID, Stage: "normalization", Reason: err.Error()}}
	}

	var rep score.Report
	if refs != nil {
		ref, found, err := refs.Lookup(s.ID)
		if err != nil {
			return result{failure: &report.Failure{SampleID: s.ID, Stage: "reference", Reason: err.Error()}}
		}
		if !found {
			return result{failure: &report.Failure{SampleID: s.ID, Stage: "reference", Reason: "no reference document"}}
		}
		rep = score.Score(doc, ref)
	} else {
		rep = score.Report{SampleID: s.ID}
	}

	rep.BlockStats = kindStats(doc)
	rep.LatencyMS = resp.Latency.Milliseconds()
	rep.Attempts = resp.Attempts
	return result{report: &rep}
}

// aggregate fills the run-level means. Layout accuracy stays nil unless
// at least one sample measured it; text accuracy is only meaningful for
// scored (reference-backed) runs.
func (o *Orchestrator) aggregate(sum *report.RunSummary, reports []score.Report, scored bool) {
	if len(reports) == 0 {
		return
	}
	var textSum, layoutSum float64
	layoutN := 0
	for _, r := range reports {
		textSum += r.Aggregate.TextAccuracy
		sum.TotalLatencyMS += r.LatencyMS
		if r.Aggregate.LayoutAccuracy != nil {
			layoutSum += *r.Aggregate.LayoutAccuracy
			layoutN++
		}
	}
	if scored {
		sum.MeanTextAccuracy = textSum / float64(len(reports))
	}
	if layoutN > 0 {
		mean := layoutSum / float64(layoutN)
		sum.MeanLayoutAccuracy = &mean
	}
}

func kindStats(doc document.Document) map[string]int {
	counts := doc.KindCounts()
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[string(k)] = v
	}
	return out
}
