package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"qaflow/internal/model"
	"qaflow/internal/store"
)

// Aggregator reconstructs the canonical result view for a run. It is a
// pure reader: safe to call arbitrarily often and concurrently.
type Aggregator struct {
	store  store.ArtifactStore
	logger *slog.Logger
}

func NewAggregator(s store.ArtifactStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: s, logger: logger}
}

// GetStatus builds a StatusView for the run. The RunSummary document is
// authoritative when present; evidence discovered by listing the run
// namespace fills in when it is absent or unreadable, so partially
// uploaded runs still surface their evidence. An absent summary yields
// status "not_found", which legitimately means "still running" or
// "unknown RunID" — never a pipeline error.
func (a *Aggregator) GetStatus(ctx context.Context, runID string) (*model.StatusView, error) {
	view := &model.StatusView{
		RunID:       runID,
		Status:      model.StatusNotFound,
		Screenshots: []model.EvidenceItem{},
		Logs:        []model.EvidenceItem{},
		Reports:     []model.EvidenceItem{},
		RetrievedAt: time.Now().UTC(),
	}

	// List independently of the summary, so a summary that never landed
	// does not hide evidence that did.
	discovered, err := a.discoverEvidence(ctx, runID)
	if err != nil {
		return nil, err
	}

	summary, err := a.readSummary(ctx, runID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		view.Screenshots = discovered[store.CategoryScreenshots]
		view.Logs = discovered[store.CategoryLogs]
		view.Reports = discovered[store.CategoryReports]
		return view, nil
	}

	view.WorkItemID = summary.WorkItemID
	view.Status = summary.Status
	view.Summary = summary.Summary
	view.ExecutedAt = summary.ExecutedAt
	// The summary's own references are curated; prefer them.
	view.Screenshots = orFallback(summary.Screenshots, discovered[store.CategoryScreenshots])
	view.Logs = orFallback(summary.Logs, discovered[store.CategoryLogs])
	view.Reports = orFallback(summary.Reports, discovered[store.CategoryReports])
	return view, nil
}

// readSummary loads the RunSummary document. Absent or corrupt documents
// both come back nil: the caller falls back to the independent listing.
func (a *Aggregator) readSummary(ctx context.Context, runID string) (*model.RunSummary, error) {
	data, err := store.GetBytes(ctx, a.store, store.SummaryKey(runID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		a.logger.Warn("Run summary is unreadable, falling back to listing", "run_id", runID, "error", err)
		return nil, nil
	}
	return &summary, nil
}

// discoverEvidence lists the run's evidence prefixes directly.
func (a *Aggregator) discoverEvidence(ctx context.Context, runID string) (map[string][]model.EvidenceItem, error) {
	out := map[string][]model.EvidenceItem{
		store.CategoryScreenshots: {},
		store.CategoryLogs:        {},
		store.CategoryReports:     {},
	}
	for category := range out {
		prefix := path.Join(runID, category) + "/"
		objs, err := a.store.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range objs {
			item := model.EvidenceItem{
				Name:        strings.TrimPrefix(obj.Key, prefix),
				URL:         obj.URL,
				Size:        obj.Size,
				ContentType: obj.ContentType,
			}
			if category == store.CategoryReports {
				item.Type = "json"
				if strings.HasSuffix(obj.Key, ".html") {
					item.Type = "html"
				}
			}
			out[category] = append(out[category], item)
		}
	}
	return out, nil
}

func orFallback(primary, fallback []model.EvidenceItem) []model.EvidenceItem {
	if len(primary) > 0 {
		return primary
	}
	if fallback == nil {
		return []model.EvidenceItem{}
	}
	return fallback
}
