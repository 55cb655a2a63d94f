// Package tracker integrates with the issue tracker that owns the work
// items the pipeline tests. The tracker is the system of record; this
// package only reads items and files defects back.
package tracker

import (
	"context"

	"qaflow/internal/model"
)

// Defect describes a bug report filed after a failed run.
type Defect struct {
	Summary     string
	Description string
	WorkItemID  string
	RunID       string
	Labels      []string
}

// Tracker is the surface the orchestrator needs from an issue tracker.
type Tracker interface {
	// SearchItems returns the work items matching a JQL-style query.
	SearchItems(ctx context.Context, query string) ([]model.WorkItem, error)
	// GetItem fetches a single work item by key.
	GetItem(ctx context.Context, id string) (*model.WorkItem, error)
	// CreateDefect files a defect and returns its key.
	CreateDefect(ctx context.Context, defect Defect) (string, error)
	// AddComment appends a comment to an existing item.
	AddComment(ctx context.Context, id, comment string) error
}
