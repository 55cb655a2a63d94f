package model

import "time"

// Status classifies the outcome of a pipeline run.
type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusError    Status = "error"
	StatusUnknown  Status = "unknown"
	StatusNotFound Status = "not_found"
)

// RiskLevel rates how likely a scenario is to surface a defect.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// WorkItem is an immutable snapshot of a tracker issue that needs testing.
// The tracker owns the item; the pipeline only reads it.
type WorkItem struct {
	ID          string            `json:"workItemId"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	URL         string            `json:"url,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Assignee    string            `json:"assignee,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Scenario is one exploratory test idea produced by the generator.
type Scenario struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FocusAreas  []string  `json:"focusAreas,omitempty"`
	RiskLevel   RiskLevel `json:"riskLevel"`
}

// GeneratedArtifact is the generator output for one run: the exploratory
// scenarios plus the single executable script.
type GeneratedArtifact struct {
	Scenarios []Scenario `json:"scenarios"`
	Script    string     `json:"script"`
}

// ExecuteEnvelope is the queue message handed from generator to executor.
// It must be self-sufficient: the executor resolves everything else from
// the artifact store.
type ExecuteEnvelope struct {
	RunID          string            `json:"runId"`
	ScriptLocation string            `json:"scriptLocation"`
	WorkItemID     string            `json:"workItemId,omitempty"`
	Options        map[string]string `json:"options,omitempty"`
}

// Summary holds the structured counts extracted from a test report.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Duration int `json:"duration"`
}

// EvidenceItem is a single harvested file uploaded to the artifact store.
type EvidenceItem struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Type        string `json:"type,omitempty"`
}

// RunSummary is the authoritative completion document for a run. It is
// written last, after every evidence upload, so its presence means the run
// is complete.
type RunSummary struct {
	RunID       string         `json:"runId"`
	WorkItemID  string         `json:"workItemId,omitempty"`
	Status      Status         `json:"status"`
	Summary     *Summary       `json:"summary"`
	Screenshots []EvidenceItem `json:"screenshots"`
	Logs        []EvidenceItem `json:"logs"`
	Reports     []EvidenceItem `json:"reports"`
	Error       string         `json:"error,omitempty"`
	ExecutedAt  time.Time      `json:"executedAt"`
}

// StatusView is the read-side projection served by the aggregator. It is
// always recomputed from the RunSummary document plus an independent
// evidence listing, never stored.
type StatusView struct {
	RunID       string         `json:"runId"`
	WorkItemID  string         `json:"workItemId,omitempty"`
	Status      Status         `json:"status"`
	Summary     *Summary       `json:"summary"`
	Screenshots []EvidenceItem `json:"screenshots"`
	Logs        []EvidenceItem `json:"logs"`
	Reports     []EvidenceItem `json:"reports"`
	ExecutedAt  time.Time      `json:"executedAt,omitempty"`
	RetrievedAt time.Time      `json:"retrievedAt"`
}

// StatusEvent is the best-effort message published after a RunSummary is
// durably written. The RunSummary document stays authoritative.
type StatusEvent struct {
	RunID      string    `json:"runId"`
	WorkItemID string    `json:"workItemId,omitempty"`
	Status     Status    `json:"status"`
	ExecutedAt time.Time `json:"executedAt"`
}

// ItemResult records the per-item outcome of a batch sweep.
type ItemResult struct {
	WorkItemID string `json:"workItemId"`
	Title      string `json:"title"`
	RunID      string `json:"runId,omitempty"`
	Generated  bool   `json:"generated"`
	Error      string `json:"error,omitempty"`
	HighRisk   bool   `json:"highRisk,omitempty"`
}

// BatchSummary aggregates one orchestrator sweep. Execution happens out of
// band, so the batch only tracks generation outcomes.
type BatchSummary struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Processed  int          `json:"processed"`
	Generated  int          `json:"generated"`
	Failed     int          `json:"failed"`
	Scenarios  int          `json:"scenarios"`
	Results    []ItemResult `json:"results"`
}
