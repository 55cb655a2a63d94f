package executor

import (
	"encoding/json"

	"qaflow/internal/model"
)

// extractSummary pulls a pass/fail/skip/total/duration summary out of a
// structured report if one is present. Runners disagree on shape, so a few
// known layouts are tried; the first non-empty one wins.
func extractSummary(data []byte) (*model.Summary, bool) {
	if s, ok := nestedSummary(data); ok {
		return s, true
	}
	if s, ok := playwrightStats(data); ok {
		return s, true
	}
	if s, ok := flatSummary(data); ok {
		return s, true
	}
	return nil, false
}

// nestedSummary handles {"summary": {"total": ..., "passed": ...}}.
func nestedSummary(data []byte) (*model.Summary, bool) {
	var doc struct {
		Summary *model.Summary `json:"summary"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Summary == nil {
		return nil, false
	}
	return validated(doc.Summary)
}

// playwrightStats handles the Playwright JSON reporter shape:
// {"stats": {"expected": N, "unexpected": N, "skipped": N, "duration": ms}}.
func playwrightStats(data []byte) (*model.Summary, bool) {
	var doc struct {
		Stats *struct {
			Expected   int     `json:"expected"`
			Unexpected int     `json:"unexpected"`
			Flaky      int     `json:"flaky"`
			Skipped    int     `json:"skipped"`
			Duration   float64 `json:"duration"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Stats == nil {
		return nil, false
	}
	s := &model.Summary{
		Passed:   doc.Stats.Expected + doc.Stats.Flaky,
		Failed:   doc.Stats.Unexpected,
		Skipped:  doc.Stats.Skipped,
		Duration: int(doc.Stats.Duration),
	}
	s.Total = s.Passed + s.Failed + s.Skipped
	return validated(s)
}

// flatSummary handles {"total": ..., "passed": ..., "failed": ...}.
func flatSummary(data []byte) (*model.Summary, bool) {
	var s model.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return validated(&s)
}

// validated rejects summaries with no counts at all; an all-zero summary
// means the report did not actually carry results.
func validated(s *model.Summary) (*model.Summary, bool) {
	if s.Total == 0 && s.Passed == 0 && s.Failed == 0 && s.Skipped == 0 {
		return nil, false
	}
	if s.Total == 0 {
		s.Total = s.Passed + s.Failed + s.Skipped
	}
	return s, true
}

// deriveStatus implements the two-tier precedence: a structured summary is
// more trustworthy than a bare exit code, because a runner can exit 0 with
// internal soft failures.
func deriveStatus(summary *model.Summary, exitCode int) model.Status {
	if summary != nil {
		switch {
		case summary.Failed > 0:
			return model.StatusFailed
		case summary.Passed > 0:
			return model.StatusPassed
		default:
			return model.StatusUnknown
		}
	}
	if exitCode == 0 {
		return model.StatusPassed
	}
	return model.StatusFailed
}
