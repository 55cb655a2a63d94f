package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qaflow/internal/metrics"
	"qaflow/internal/model"
	"qaflow/internal/queue"
	"qaflow/internal/sandbox"
	"qaflow/internal/store"
)

// DefaultRunnerCommand invokes the Playwright runner on the materialized
// script. {script} is substituted by the sandbox.
var DefaultRunnerCommand = []string{"npx", "playwright", "test", "{script}"}

// Executor runs stored scripts inside a sandbox, harvests the evidence,
// and publishes the authoritative RunSummary. It is idempotent per RunID:
// every upload is keyed by a deterministic path and overwrites.
type Executor struct {
	store     store.ArtifactStore
	sandbox   sandbox.Sandbox
	classify  Classifier
	events    queue.Queue // optional, best-effort
	runnerCmd []string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Options tune an Executor; zero values fall back to defaults.
type Options struct {
	Classifier    Classifier
	Events        queue.Queue
	RunnerCommand []string
	Timeout       time.Duration
	Metrics       *metrics.Metrics
}

// New creates an Executor.
func New(s store.ArtifactStore, sb sandbox.Sandbox, logger *slog.Logger, opts Options) *Executor {
	e := &Executor{
		store:     s,
		sandbox:   sb,
		classify:  opts.Classifier,
		events:    opts.Events,
		runnerCmd: opts.RunnerCommand,
		timeout:   opts.Timeout,
		logger:    logger,
		metrics:   opts.Metrics,
	}
	if e.classify == nil {
		e.classify = DefaultClassifier
	}
	if len(e.runnerCmd) == 0 {
		e.runnerCmd = DefaultRunnerCommand
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Minute
	}
	return e
}

// evidenceFile is one harvested file before upload. Content is held in
// memory because the sandbox working directory is deleted right after the
// run, before uploads finish.
type evidenceFile struct {
	name     string // path relative to the working directory
	content  []byte
	category string
}

// Execute runs the envelope's script and returns the RunSummary it wrote.
// A run that fails inside the sandbox still yields a summary with
// Status=error; only storage failures surface as errors, because they
// leave the run in an ambiguous partial state the caller must know about.
func (e *Executor) Execute(ctx context.Context, env model.ExecuteEnvelope) (*model.RunSummary, error) {
	logger := e.logger.With("run_id", env.RunID, "work_item", env.WorkItemID)
	started := time.Now()

	summary := &model.RunSummary{
		RunID:       env.RunID,
		WorkItemID:  env.WorkItemID,
		Screenshots: []model.EvidenceItem{},
		Logs:        []model.EvidenceItem{},
		Reports:     []model.EvidenceItem{},
		ExecutedAt:  started.UTC(),
	}

	result, files, runErr := e.runScript(ctx, env, logger)
	if runErr != nil {
		var se *storageError
		if errors.As(runErr, &se) {
			return nil, runErr
		}
		// Sandbox or script-resolution failure: report it, don't lose it.
		summary.Status = model.StatusError
		summary.Error = runErr.Error()
	}

	if result != nil {
		files = append(files,
			evidenceFile{name: "stdout.log", content: []byte(result.Stdout), category: store.CategoryLogs},
			evidenceFile{name: "stderr.log", content: []byte(result.Stderr), category: store.CategoryLogs},
		)
	}

	// A structured report beats the exit code.
	reportSummary := e.findReportSummary(files)
	summary.Summary = reportSummary

	if summary.Status != model.StatusError {
		if result.TimedOut {
			summary.Status = model.StatusError
			summary.Error = fmt.Sprintf("execution timed out after %s", e.timeout)
		} else {
			summary.Status = deriveStatus(reportSummary, result.ExitCode)
		}
	}

	if uploadErr := e.uploadEvidence(ctx, env.RunID, files, summary, logger); uploadErr != nil {
		// Partial evidence: downgrade to error but still write the
		// summary so the run never looks "still running" forever.
		summary.Status = model.StatusError
		if summary.Error == "" {
			summary.Error = uploadErr.Error()
		}
	}

	// RunSummary is written last: its presence is the completion signal
	// the aggregator relies on.
	if err := e.writeSummary(ctx, summary); err != nil {
		return nil, err
	}

	e.publishEvent(ctx, summary, logger)

	if e.metrics != nil {
		e.metrics.ExecutionsTotal.WithLabelValues(string(summary.Status)).Inc()
		e.metrics.ExecutionDuration.Observe(time.Since(started).Seconds())
	}
	logger.Info("Execution complete", "status", summary.Status, "duration", time.Since(started))
	return summary, nil
}

// storageError marks failures that threaten data integrity and must
// propagate instead of being folded into an error-status summary.
type storageError struct{ err error }

func (s *storageError) Error() string { return s.err.Error() }
func (s *storageError) Unwrap() error { return s.err }

// runScript resolves the script, materializes it into an isolated working
// directory, runs the sandbox, and harvests the produced files.
func (e *Executor) runScript(ctx context.Context, env model.ExecuteEnvelope, logger *slog.Logger) (*sandbox.RunResult, []evidenceFile, error) {
	script, err := store.GetBytes(ctx, e.store, env.ScriptLocation)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("script not found at %s: %w", env.ScriptLocation, err)
		}
		return nil, nil, &storageError{fmt.Errorf("failed to resolve script %s: %w", env.ScriptLocation, err)}
	}

	workDir, err := os.MkdirTemp("", "qaflow-run-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sandbox workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	scriptName := filepath.Base(env.ScriptLocation)
	if err := os.WriteFile(filepath.Join(workDir, scriptName), script, 0o644); err != nil {
		return nil, nil, fmt.Errorf("failed to materialize script: %w", err)
	}

	logger.Info("Running script in sandbox", "workdir", workDir, "timeout", e.timeout)
	result, err := e.sandbox.Run(ctx, sandbox.RunSpec{
		WorkDir:    workDir,
		ScriptPath: scriptName,
		Command:    e.runnerCmd,
		Timeout:    e.timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sandbox launch failed: %w", err)
	}

	files := e.harvest(workDir, scriptName, logger)
	return result, files, nil
}

// harvest walks the working directory and classifies every file the
// runner produced. Files are read into memory here because the working
// directory is deleted before upload completes.
func (e *Executor) harvest(workDir, scriptName string, logger *slog.Logger) []evidenceFile {
	var files []evidenceFile
	err := filepath.WalkDir(workDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(workDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == scriptName {
			return nil
		}
		category, ok := e.classify(name)
		if !ok {
			logger.Debug("Skipping unclassified file", "name", name)
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("Failed to read evidence file", "name", name, "error", err)
			return nil
		}
		files = append(files, evidenceFile{name: name, content: content, category: category})
		return nil
	})
	if err != nil {
		logger.Warn("Evidence harvest incomplete", "error", err)
	}
	return files
}

// findReportSummary scans structured JSON reports for a result summary.
func (e *Executor) findReportSummary(files []evidenceFile) *model.Summary {
	for _, f := range files {
		if f.category != store.CategoryReports || !strings.HasSuffix(f.name, ".json") {
			continue
		}
		if s, ok := extractSummary(f.content); ok {
			return s
		}
	}
	return nil
}

// uploadEvidence uploads every harvested file under the run namespace and
// records the resulting locations in the summary. It keeps going after
// individual failures so partial evidence is preserved.
func (e *Executor) uploadEvidence(ctx context.Context, runID string, files []evidenceFile, summary *model.RunSummary, logger *slog.Logger) error {
	var failed []string
	for _, f := range files {
		key := store.EvidenceKey(runID, f.category, f.name)
		url, err := store.PutBytes(ctx, e.store, key, f.content, contentTypeFor(f.name))
		if err != nil {
			logger.Error("Evidence upload failed", "key", key, "error", err)
			failed = append(failed, f.name)
			continue
		}

		item := model.EvidenceItem{
			Name:        f.name,
			URL:         url,
			Size:        int64(len(f.content)),
			ContentType: contentTypeFor(f.name),
		}
		switch f.category {
		case store.CategoryScreenshots:
			summary.Screenshots = append(summary.Screenshots, item)
		case store.CategoryLogs:
			summary.Logs = append(summary.Logs, item)
		case store.CategoryReports:
			item.Type = reportType(f.name)
			summary.Reports = append(summary.Reports, item)
		}
		if e.metrics != nil {
			e.metrics.EvidenceUploaded.WithLabelValues(f.category).Inc()
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to upload %d evidence file(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func (e *Executor) writeSummary(ctx context.Context, summary *model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	key := store.SummaryKey(summary.RunID)
	if _, err := store.PutBytes(ctx, e.store, key, data, "application/json"); err != nil {
		return &storageError{fmt.Errorf("failed to write run summary %s: %w", key, err)}
	}
	return nil
}

// publishEvent emits a best-effort status event after the summary is
// durable. Publish failure never invalidates the run.
func (e *Executor) publishEvent(ctx context.Context, summary *model.RunSummary, logger *slog.Logger) {
	if e.events == nil {
		return
	}
	event := model.StatusEvent{
		RunID:      summary.RunID,
		WorkItemID: summary.WorkItemID,
		Status:     summary.Status,
		ExecutedAt: summary.ExecutedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn("Failed to marshal status event", "error", err)
		return
	}
	if err := e.events.Enqueue(ctx, payload); err != nil {
		logger.Warn("Failed to publish status event", "error", err)
	}
}
