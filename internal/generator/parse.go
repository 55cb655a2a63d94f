package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"qaflow/internal/model"
)

var codeFenceRegex = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// stripCodeFence returns the content of the first fenced block, or the
// input unchanged. Models routinely wrap JSON in markdown fences.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRegex.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// normalizeRisk clamps a model-supplied risk level to the known set.
func normalizeRisk(r model.RiskLevel) model.RiskLevel {
	switch model.RiskLevel(strings.ToLower(string(r))) {
	case model.RiskLow:
		return model.RiskLow
	case model.RiskHigh:
		return model.RiskHigh
	default:
		return model.RiskMedium
	}
}

// parseCombined parses a {"scenarios": [...], "script": "..."} reply.
func parseCombined(raw string) (*model.GeneratedArtifact, error) {
	var artifact model.GeneratedArtifact
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &artifact); err != nil {
		return nil, fmt.Errorf("combined response is not valid JSON: %w", err)
	}
	if artifact.Script == "" {
		return nil, fmt.Errorf("combined response has no script")
	}
	if len(artifact.Scenarios) == 0 {
		return nil, fmt.Errorf("combined response has no scenarios")
	}
	for i := range artifact.Scenarios {
		artifact.Scenarios[i].RiskLevel = normalizeRisk(artifact.Scenarios[i].RiskLevel)
	}
	return &artifact, nil
}

// parseScenarios parses a bare JSON array of scenarios.
func parseScenarios(raw string) ([]model.Scenario, error) {
	var scenarios []model.Scenario
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &scenarios); err != nil {
		return nil, fmt.Errorf("scenario response is not valid JSON: %w", err)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("scenario response is empty")
	}
	for i := range scenarios {
		scenarios[i].RiskLevel = normalizeRisk(scenarios[i].RiskLevel)
	}
	return scenarios, nil
}

// parseScript extracts the script text from a script-only reply.
func parseScript(raw string) (string, error) {
	script := stripCodeFence(raw)
	if script == "" {
		return "", fmt.Errorf("script response is empty")
	}
	return script, nil
}
