package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qaflow/internal/model"
)

// JiraClient talks to the Jira Cloud REST API (v3).
type JiraClient struct {
	BaseURL    string
	Username   string
	APIToken   string
	ProjectKey string
	HTTPClient *http.Client
}

var _ Tracker = (*JiraClient)(nil)

// NewJiraClient creates a Jira-backed tracker.
func NewJiraClient(baseURL, username, apiToken, projectKey string) *JiraClient {
	return &JiraClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		APIToken:   apiToken,
		ProjectKey: projectKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Authenticate verifies the credentials by calling the Current User endpoint.
func (c *JiraClient) Authenticate(ctx context.Context) error {
	url := fmt.Sprintf("%s/rest/api/3/myself", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	return nil
}

// SearchItems searches issues using JQL and maps them to work items.
func (c *JiraClient) SearchItems(ctx context.Context, jql string) ([]model.WorkItem, error) {
	url := fmt.Sprintf("%s/rest/api/3/search/jql", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("jql", jql)
	q.Add("fields", "summary,description,status,labels,assignee")
	req.URL.RawQuery = q.Encode()

	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to search issues with status: %d", resp.StatusCode)
	}

	var result struct {
		Issues []map[string]interface{} `json:"issues"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	items := make([]model.WorkItem, 0, len(result.Issues))
	for _, issue := range result.Issues {
		items = append(items, c.toWorkItem(issue))
	}
	return items, nil
}

// GetItem fetches a single issue by key.
func (c *JiraClient) GetItem(ctx context.Context, id string) (*model.WorkItem, error) {
	url := fmt.Sprintf("%s/rest/api/3/issue/%s", c.BaseURL, id)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch issue with status: %d", resp.StatusCode)
	}

	var issue map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	item := c.toWorkItem(issue)
	return &item, nil
}

// CreateDefect files a Bug issue and returns its key.
func (c *JiraClient) CreateDefect(ctx context.Context, defect Defect) (string, error) {
	url := fmt.Sprintf("%s/rest/api/3/issue", c.BaseURL)

	labels := append([]string{"qaflow"}, defect.Labels...)
	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project": map[string]interface{}{
				"key": c.ProjectKey,
			},
			"summary":     defect.Summary,
			"labels":      labels,
			"description": adfParagraph(defect.Description),
			"issuetype": map[string]interface{}{
				"name": "Bug",
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create defect with status: %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Key, nil
}

// AddComment adds a comment to an issue. The text is wrapped in ADF
// (Atlassian Document Format) to preserve formatting.
func (c *JiraClient) AddComment(ctx context.Context, id, comment string) error {
	url := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.BaseURL, id)

	payload := map[string]interface{}{
		"body": adfParagraph(comment),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to add comment with status: %d", resp.StatusCode)
	}

	return nil
}

func (c *JiraClient) toWorkItem(issue map[string]interface{}) model.WorkItem {
	key, _ := issue["key"].(string)
	item := model.WorkItem{ID: key}
	if key != "" {
		item.URL = fmt.Sprintf("%s/browse/%s", c.BaseURL, key)
	}

	fields, ok := issue["fields"].(map[string]interface{})
	if !ok {
		return item
	}

	item.Title, _ = fields["summary"].(string)
	if desc, ok := fields["description"].(map[string]interface{}); ok {
		item.Description = strings.TrimSpace(extractTextFromADF(desc))
	}
	if labels, ok := fields["labels"].([]interface{}); ok {
		for _, l := range labels {
			if s, ok := l.(string); ok {
				item.Tags = append(item.Tags, s)
			}
		}
	}
	if assignee, ok := fields["assignee"].(map[string]interface{}); ok {
		item.Assignee, _ = assignee["displayName"].(string)
	}
	if status, ok := fields["status"].(map[string]interface{}); ok {
		if name, _ := status["name"].(string); name != "" {
			item.Metadata = map[string]string{"status": name}
		}
	}
	return item
}

// adfParagraph wraps plain text in a minimal ADF document.
func adfParagraph(text string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []map[string]interface{}{
			{
				"type": "paragraph",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": text,
					},
				},
			},
		},
	}
}

func extractTextFromADF(node map[string]interface{}) string {
	var sb strings.Builder

	if text, ok := node["text"].(string); ok {
		sb.WriteString(text)
	}

	if content, ok := node["content"].([]interface{}); ok {
		for _, child := range content {
			if childMap, ok := child.(map[string]interface{}); ok {
				sb.WriteString(extractTextFromADF(childMap))
				if childMap["type"] == "paragraph" {
					sb.WriteString("\n")
				}
			}
		}
	}

	return sb.String()
}
