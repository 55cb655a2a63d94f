package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// SlackWebhookNotifier sends notifications to Slack via an Incoming Webhook.
type SlackWebhookNotifier struct {
	WebhookURL string
	Client     *http.Client
}

var _ Notifier = (*SlackWebhookNotifier)(nil)

// NewSlackWebhookNotifier creates a new SlackWebhookNotifier.
func NewSlackWebhookNotifier(webhookURL string) *SlackWebhookNotifier {
	return &SlackWebhookNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends a message to the configured Slack webhook.
func (s *SlackWebhookNotifier) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	payload := map[string]string{
		"text": message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack notification failed with status: %s", resp.Status)
	}

	return nil
}

// slackAPI is the subset of the Slack client used here.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackAPINotifier posts messages through the Slack Web API with a bot
// token, which allows posting to any channel the bot is a member of.
type SlackAPINotifier struct {
	api       slackAPI
	channelID string
}

var _ Notifier = (*SlackAPINotifier)(nil)

// NewSlackAPINotifier creates a notifier backed by the Slack Web API.
func NewSlackAPINotifier(botToken, channelID string) *SlackAPINotifier {
	return &SlackAPINotifier{
		api:       slack.New(botToken),
		channelID: channelID,
	}
}

// Notify posts the message to the configured channel.
func (s *SlackAPINotifier) Notify(ctx context.Context, message string) error {
	if s.channelID == "" {
		return fmt.Errorf("slack channel is not configured")
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}
