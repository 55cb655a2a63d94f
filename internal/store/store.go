package store

import (
	"context"
	"errors"
	"io"
	"path"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("artifact not found")

// ObjectInfo describes one stored artifact as returned by List.
type ObjectInfo struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

// ArtifactStore is durable, key-addressed blob storage. All mutation is
// overwrite-by-key, so concurrent writers for the same run converge on the
// same content instead of corrupting each other.
type ArtifactStore interface {
	// Put stores the content under key and returns a resolvable URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Get opens the content stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns all objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Evidence categories used as key path segments under a run namespace.
const (
	CategoryScreenshots = "screenshots"
	CategoryLogs        = "logs"
	CategoryReports     = "reports"
)

// ScriptName is the canonical filename of the generated test script.
const ScriptName = "test.spec.js"

// summaryName is the completion document written last by the executor.
const summaryName = "summary.json"

// ScriptKey returns the storage key of the generated script for a run.
func ScriptKey(runID string) string {
	return path.Join(runID, ScriptName)
}

// EvidenceKey returns the storage key of a harvested evidence file.
func EvidenceKey(runID, category, name string) string {
	return path.Join(runID, category, name)
}

// SummaryKey returns the storage key of the RunSummary document.
func SummaryKey(runID string) string {
	return path.Join(runID, summaryName)
}

// GetBytes reads the full content stored under key.
func GetBytes(ctx context.Context, s ArtifactStore, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
