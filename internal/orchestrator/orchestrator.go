// Package orchestrator drives batch sweeps: discover work items, generate
// a run per item, and follow up on finished runs with notifications and
// defect filing. One bad item never sinks the batch.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"qaflow/internal/generator"
	"qaflow/internal/metrics"
	"qaflow/internal/model"
	"qaflow/internal/notify"
	"qaflow/internal/tracker"
)

// RunGenerator is the slice of the generator the orchestrator needs.
type RunGenerator interface {
	Generate(ctx context.Context, item model.WorkItem) (*generator.Result, error)
}

// StatusReader resolves the canonical view of a finished run.
type StatusReader interface {
	GetStatus(ctx context.Context, runID string) (*model.StatusView, error)
}

// Options tunes orchestrator behavior.
type Options struct {
	// Query selects eligible work items in the tracker.
	Query string
	// FileDefects enables defect creation for failed high-risk runs.
	FileDefects bool
	// CommentOnItems enables result comments on the originating items.
	CommentOnItems bool
}

// pendingRun is a generated run whose execution outcome has not been
// observed yet.
type pendingRun struct {
	RunID      string
	WorkItemID string
	Title      string
	HighRisk   bool
}

// Orchestrator owns the discover→generate→follow-up cycle.
type Orchestrator struct {
	tracker   tracker.Tracker
	generator RunGenerator
	status    StatusReader
	notifier  notify.Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	opts      Options

	mu      sync.Mutex
	pending []pendingRun
}

func New(t tracker.Tracker, g RunGenerator, s StatusReader, n notify.Notifier, logger *slog.Logger, m *metrics.Metrics, opts Options) *Orchestrator {
	return &Orchestrator{
		tracker:   t,
		generator: g,
		status:    s,
		notifier:  n,
		logger:    logger,
		metrics:   m,
		opts:      opts,
	}
}

// RunBatch performs one sweep: fetch eligible items and generate a run
// for each. Generation failures are recorded in the summary and never
// abort the batch. Execution happens out of band; finished runs are
// picked up by ReviewPending on a later cycle.
func (o *Orchestrator) RunBatch(ctx context.Context) (*model.BatchSummary, error) {
	batch := &model.BatchSummary{StartedAt: time.Now().UTC()}

	items, err := o.tracker.SearchItems(ctx, o.opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work items: %w", err)
	}
	o.logger.Info("Batch started", "items", len(items), "query", o.opts.Query)

	for _, item := range items {
		result, scenarios := o.processItem(ctx, item)
		batch.Results = append(batch.Results, result)
		batch.Processed++
		batch.Scenarios += scenarios
		if result.Generated {
			batch.Generated++
		} else {
			batch.Failed++
		}
		if o.metrics != nil {
			o.metrics.BatchItemsProcessed.Inc()
		}
	}

	batch.FinishedAt = time.Now().UTC()
	if o.metrics != nil {
		o.metrics.BatchesTotal.Inc()
	}
	o.logger.Info("Batch finished",
		"processed", batch.Processed,
		"generated", batch.Generated,
		"failed", batch.Failed,
		"duration", batch.FinishedAt.Sub(batch.StartedAt))

	o.notifyBatch(ctx, batch)
	return batch, nil
}

// processItem generates one run for the item. A panic inside generation
// is contained to this item.
func (o *Orchestrator) processItem(ctx context.Context, item model.WorkItem) (res model.ItemResult, scenarios int) {
	res = model.ItemResult{WorkItemID: item.ID, Title: item.Title}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic while processing work item", "work_item", item.ID, "panic", r)
			res.Generated = false
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	result, err := o.generator.Generate(ctx, item)
	if err != nil {
		o.logger.Error("Generation failed", "work_item", item.ID, "error", err)
		res.Error = err.Error()
		return res, 0
	}

	res.Generated = true
	res.RunID = result.RunID
	res.HighRisk = hasHighRisk(result.Artifact)
	if result.Artifact != nil {
		scenarios = len(result.Artifact.Scenarios)
	}

	o.mu.Lock()
	o.pending = append(o.pending, pendingRun{
		RunID:      result.RunID,
		WorkItemID: item.ID,
		Title:      item.Title,
		HighRisk:   res.HighRisk,
	})
	o.mu.Unlock()

	return res, scenarios
}

// ReviewPending checks the status of previously generated runs. Runs
// still reporting not_found stay pending; finished runs are followed up
// with a comment and, for failed high-risk runs, a defect.
func (o *Orchestrator) ReviewPending(ctx context.Context) {
	if o.status == nil {
		return
	}

	o.mu.Lock()
	runs := o.pending
	o.pending = nil
	o.mu.Unlock()

	var stillPending []pendingRun
	for _, run := range runs {
		view, err := o.status.GetStatus(ctx, run.RunID)
		if err != nil {
			o.logger.Warn("Status lookup failed, keeping run pending", "run_id", run.RunID, "error", err)
			stillPending = append(stillPending, run)
			continue
		}
		if view.Status == model.StatusNotFound {
			stillPending = append(stillPending, run)
			continue
		}
		o.followUp(ctx, run, view)
	}

	o.mu.Lock()
	o.pending = append(stillPending, o.pending...)
	o.mu.Unlock()
}

// followUp comments on the work item and files a defect for failed
// high-risk runs. Both are best-effort.
func (o *Orchestrator) followUp(ctx context.Context, run pendingRun, view *model.StatusView) {
	o.logger.Info("Run finished", "run_id", run.RunID, "work_item", run.WorkItemID, "status", view.Status)

	if o.opts.CommentOnItems && run.WorkItemID != "" {
		comment := formatRunComment(run, view)
		if err := o.tracker.AddComment(ctx, run.WorkItemID, comment); err != nil {
			o.logger.Warn("Failed to comment on work item", "work_item", run.WorkItemID, "error", err)
		}
	}

	if o.opts.FileDefects && run.HighRisk && view.Status == model.StatusFailed {
		defect := tracker.Defect{
			Summary:     fmt.Sprintf("Automated QA run failed: %s", run.Title),
			Description: formatDefectDescription(run, view),
			WorkItemID:  run.WorkItemID,
			RunID:       run.RunID,
			Labels:      []string{"high-risk"},
		}
		key, err := o.tracker.CreateDefect(ctx, defect)
		if err != nil {
			o.logger.Error("Failed to file defect", "run_id", run.RunID, "error", err)
			return
		}
		o.logger.Info("Defect filed", "run_id", run.RunID, "defect", key)
	}
}

// Run loops RunBatch plus ReviewPending on a ticker until the context is
// cancelled. The in-flight batch finishes before Run returns.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep := func() {
		if _, err := o.RunBatch(ctx); err != nil {
			o.logger.Error("Batch sweep failed", "error", err)
		}
		o.ReviewPending(ctx)
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Orchestrator stopped")
			return ctx.Err()
		case <-ticker.C:
			sweep()
		}
	}
}

// notifyBatch sends the batch summary. Delivery failures are logged only.
func (o *Orchestrator) notifyBatch(ctx context.Context, batch *model.BatchSummary) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, notify.FormatBatchSummary(*batch)); err != nil {
		o.logger.Warn("Batch notification failed", "error", err)
	}
}

func hasHighRisk(artifact *model.GeneratedArtifact) bool {
	if artifact == nil {
		return false
	}
	for _, s := range artifact.Scenarios {
		if s.RiskLevel == model.RiskHigh {
			return true
		}
	}
	return false
}

func formatRunComment(run pendingRun, view *model.StatusView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Automated QA run %s finished with status %s.", run.RunID, view.Status)
	if view.Summary != nil {
		fmt.Fprintf(&sb, " %d passed, %d failed, %d skipped.",
			view.Summary.Passed, view.Summary.Failed, view.Summary.Skipped)
	}
	for _, r := range view.Reports {
		fmt.Fprintf(&sb, " Report: %s", r.URL)
	}
	return sb.String()
}

func formatDefectDescription(run pendingRun, view *model.StatusView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s for work item %s failed.\n", run.RunID, run.WorkItemID)
	if view.Summary != nil {
		fmt.Fprintf(&sb, "%d of %d checks failed.\n", view.Summary.Failed, view.Summary.Total)
	}
	for _, r := range view.Reports {
		fmt.Fprintf(&sb, "Report: %s\n", r.URL)
	}
	for _, l := range view.Logs {
		fmt.Fprintf(&sb, "Log: %s\n", l.URL)
	}
	for _, s := range view.Screenshots {
		fmt.Fprintf(&sb, "Screenshot: %s\n", s.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}
