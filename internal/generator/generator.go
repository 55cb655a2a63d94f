package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qaflow/internal/agent"
	"qaflow/internal/metrics"
	"qaflow/internal/model"
	"qaflow/internal/queue"
	"qaflow/internal/store"
)

/// Result is the outcome of one successful generation: a freshly minted
// RunID with the script already durable in the artifact store and an
// executor envelope enqueued.
type Result struct {
	RunID          string
	ScriptLocation string
	Artifact       *model.GeneratedArtifact
}

// Generator turns a work item into exploratory scenarios plus one
// executable script, persists the script, and hands off to the executor
// queue.
type Generator struct {
	agent   agent.Agent
	store   store.ArtifactStore
	queue   queue.Queue
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Generator. The queue is the executor stage input queue.
func New(a agent.Agent, s store.ArtifactStore, q queue.Queue, logger *slog.Logger, m *metrics.Metrics) *Generator {
	return &Generator{agent: a, store: s, queue: q, logger: logger, metrics: m}
}

// strategy is one way to obtain a complete artifact from the model.
// Strategies are tried in order; the first success wins.
type strategy struct {
	name string
	run  func(ctx context.Context, item model.WorkItem) (*model.GeneratedArtifact, error)
}

func (g *Generator) strategies() []strategy {
	return []strategy{
		{name: "combined", run: g.generateCombined},
		{name: "separate", run: g.generateSeparate},
	}
}

// Generate mints a RunID, produces the artifact, stores the script, and
// enqueues the executor envelope. The script write always happens before
/// the enqueue: once the executor dequeues, the script is resolvable.
func (g *Generator) Generate(ctx context.Context, item model.WorkItem) (*Result, error) {
	runID := uuid.NewString()
	logger := g.logger.With("run_id", runID, "work_item", item.ID)
	started := time.Now()

	artifact, err := g.produce(ctx, item, logger)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RunsGenerated.WithLabelValues("failed").Inc()
		}
		return nil, fmt.Errorf("generation failed for work item %s: %w", item.ID, err)
	}

	scriptKey := store.ScriptKey(runID)
	if _, err := store.PutBytes(ctx, g.store, scriptKey, []byte(artifact.Script), "text/javascript"); err != nil {
		if g.metrics != nil {
			g.metrics.RunsGenerated.WithLabelValues("failed").Inc()
		}
		return nil, fmt.Errorf("failed to store script for run %s: %w", runID, err)
	}
	logger.Info("Script stored", "key", scriptKey, "scenarios", len(artifact.Scenarios))

	envelope := model.ExecuteEnvelope{
		RunID:          runID,
		ScriptLocation: scriptKey,
		WorkItemID:     item.ID,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal executor envelope: %w", err)
	}
	if err := g.queue.Enqueue(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue executor job for run %s: %w", runID, err)
	}

	if g.metrics != nil {
		g.metrics.RunsGenerated.WithLabelValues("generated").Inc()
		g.metrics.GenerationDuration.Observe(time.Since(started).Seconds())
	}
	logger.Info("Executor job enqueued", "duration", time.Since(started))

	return &Result{RunID: runID, ScriptLocation: scriptKey, Artifact: artifact}, nil
}

// produce tries each strategy in order until one yields a valid artifact.
func (g *Generator) produce(ctx context.Context, item model.WorkItem, logger *slog.Logger) (*model.GeneratedArtifact, error) {
	var lastErr error
	for _, s := range g.strategies() {
		artifact, err := s.run(ctx, item)
		if err == nil {
			return artifact, nil
		}
		logger.Warn("Generation strategy failed", "strategy", s.name, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("all generation strategies failed: %w", lastErr)
}

// generateCombined asks for scenarios and script in a single call.
func (g *Generator) generateCombined(ctx context.Context, item model.WorkItem) (*model.GeneratedArtifact, error) {
	raw, err := g.agent.Send(ctx, combinedPrompt(item))
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return parseCombined(raw)
}

/// generateSeparate is the fallback: scenarios-only then script-only.
func (g *Generator) generateSeparate(ctx context.Context, item model.WorkItem) (*model.GeneratedArtifact, error) {
	rawScenarios, err := g.agent.Send(ctx, scenariosPrompt(item))
	if err != nil {
		return nil, fmt.Errorf("scenario call failed: %w", err)
	}
	scenarios, err := parseScenarios(rawScenarios)
	if err != nil {
		return nil, err
	}

	rawScript, err := g.agent.Send(ctx, scriptPrompt(item))
	if err != nil {
		return nil, fmt.Errorf("script call failed: %w", err)
	}
	script, err := parseScript(rawScript)
	if err != nil {
		return nil, err
	}

	return &model.GeneratedArtifact{Scenarios: scenarios, Script: script}, nil
}
