// Package notify delivers batch results to chat channels. Delivery is
// best-effort: a failed notification never fails the batch.
package notify

import (
	"context"
	"fmt"
	"strings"

	"qaflow/internal/model"
)

// Notifier sends a plain text message to a channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// FormatBatchSummary renders a batch result as a chat message.
func FormatBatchSummary(batch model.BatchSummary) string {
	var sb strings.Builder
	icon := ":white_check_mark:"
	if batch.Failed > 0 {
		icon = ":x:"
	}
	fmt.Fprintf(&sb, "%s QA batch finished: %d items processed, %d runs generated (%d scenarios), %d failed\n",
		icon, batch.Processed, batch.Generated, batch.Scenarios, batch.Failed)
	for _, r := range batch.Results {
		if r.Generated {
			continue
		}
		line := fmt.Sprintf("• %s %q", r.WorkItemID, r.Title)
		if r.Error != "" {
			line += ": " + r.Error
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
