package generator

import (
	"fmt"
	"strings"

	"qaflow/internal/model"
)

func describeItem(item model.WorkItem) string {
	var sb strings.Builder
	title := item.Title
	if title == "" {
		title = "(untitled work item)"
	}
	fmt.Fprintf(&sb, "Work item %s: %s\n", item.ID, title)
	if item.Description != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n", item.Description)
	}
	if item.URL != "" {
		fmt.Fprintf(&sb, "Target URL: %s\n", item.URL)
	}
	if len(item.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(item.Tags, ", "))
	}
	return sb.String()
}

const scenarioSchema = `Each scenario must be an object with:
- "title": short name
- "description": what to explore and what could break
- "focusAreas": array of strings (e.g. "validation", "error handling")
- "riskLevel": one of "low", "medium", "high"`

const scriptRequirements = `The script must be a self-contained Playwright test file (JavaScript).
It must run with "npx playwright test", write screenshots for key states, and
emit a JSON report. Do not require any setup beyond installed browsers.`

// combinedPrompt asks for scenarios and the script in one call.
func combinedPrompt(item model.WorkItem) string {
	return fmt.Sprintf(`You are an exploratory QA engineer.

%s
Produce 3 to 5 exploratory test scenarios and one automated test script for
this work item.

%s

%s

Respond with a single JSON object and nothing else:
{"scenarios": [...], "script": "<full script text>"}`,
		describeItem(item), scenarioSchema, scriptRequirements)
}

// scenariosPrompt is the first half of the fallback path.
func scenariosPrompt(item model.WorkItem) string {
	return fmt.Sprintf(`You are an exploratory QA engineer.

%s
Produce 3 to 5 exploratory test scenarios for this work item.

%s

Respond with a JSON array of scenario objects and nothing else.`,
		describeItem(item), scenarioSchema)
}

// scriptPrompt is the second half of the fallback path.
func scriptPrompt(item model.WorkItem) string {
	return fmt.Sprintf(`You are an exploratory QA engineer.

%s
Write one automated test script for this work item.

%s

Respond with the script text only, optionally inside a code fence.`,
		describeItem(item), scriptRequirements)
}
