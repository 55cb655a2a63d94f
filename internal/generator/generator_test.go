package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/agent"
	"qaflow/internal/model"
	"qaflow/internal/queue"
	"qaflow/internal/store"
)

const combinedResponse = `{
	"scenarios": [
		{"title": "Happy path login", "description": "Valid credentials", "focusAreas": ["auth"], "riskLevel": "low"},
		{"title": "SQL injection", "description": "Quote characters in fields", "focusAreas": ["security"], "riskLevel": "HIGH"},
		{"title": "Empty submit", "description": "Submit with no input", "focusAreas": ["validation"], "riskLevel": "bogus"}
	],
	"script": "const { test } = require('@playwright/test');\ntest('login', async () => {});"
}`

// memQueue is a minimal in-memory Queue for generator tests.
type memQueue struct {
	payloads [][]byte
	err      error
}

func (m *memQueue) Enqueue(ctx context.Context, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, payload)
	return nil
}
func (m *memQueue) Dequeue(ctx context.Context) (*queue.Message, error) { return nil, queue.ErrEmpty }
func (m *memQueue) Ack(ctx context.Context, id int64) error             { return nil }
func (m *memQueue) Nack(ctx context.Context, id int64) error            { return nil }
func (m *memQueue) Close() error                                        { return nil }

// failingStore rejects all writes, to verify nothing gets enqueued when
// the script cannot be made durable.
type failingStore struct{}

func (f *failingStore) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) (string, error) {
	return "", fmt.Errorf("disk on fire")
}
func (f *failingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, store.ErrNotFound
}
func (f *failingStore) List(ctx context.Context, prefix string) ([]store.ObjectInfo, error) {
	return nil, nil
}

func newTestGenerator(t *testing.T, a agent.Agent) (*Generator, store.ArtifactStore, *memQueue) {
	t.Helper()
	s, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	q := &memQueue{}
	return New(a, s, q, slog.Default(), nil), s, q
}

func TestGenerate_CombinedSuccess(t *testing.T) {
	mock := &agent.MockAgent{Responses: []string{combinedResponse}}
	g, s, q := newTestGenerator(t, mock)

	item := model.WorkItem{ID: "42", Title: "Login form"}
	res, err := g.Generate(context.Background(), item)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.RunID+"/test.spec.js", res.ScriptLocation)
	assert.Equal(t, 1, mock.Calls())

	// Risk levels are normalized to the known set.
	require.Len(t, res.Artifact.Scenarios, 3)
	assert.Equal(t, model.RiskLow, res.Artifact.Scenarios[0].RiskLevel)
	assert.Equal(t, model.RiskHigh, res.Artifact.Scenarios[1].RiskLevel)
	assert.Equal(t, model.RiskMedium, res.Artifact.Scenarios[2].RiskLevel)

	// Script is durable under the run namespace.
	data, err := store.GetBytes(context.Background(), s, res.ScriptLocation)
	require.NoError(t, err)
	assert.Contains(t, string(data), "require('@playwright/test')")

	// Envelope enqueued, self-sufficient for the executor.
	require.Len(t, q.payloads, 1)
	var env model.ExecuteEnvelope
	require.NoError(t, json.Unmarshal(q.payloads[0], &env))
	assert.Equal(t, res.RunID, env.RunID)
	assert.Equal(t, res.ScriptLocation, env.ScriptLocation)
	assert.Equal(t, "42", env.WorkItemID)
}

func TestGenerate_FencedJSONIsAccepted(t *testing.T) {
	mock := &agent.MockAgent{Responses: []string{"```json\n" + combinedResponse + "\n```"}}
	g, _, q := newTestGenerator(t, mock)

	_, err := g.Generate(context.Background(), model.WorkItem{ID: "1", Title: "t"})
	require.NoError(t, err)
	assert.Len(t, q.payloads, 1)
}

func TestGenerate_FallsBackToSeparateCalls(t *testing.T) {
	scenarios := `[{"title": "a", "description": "b", "riskLevel": "medium"},
		{"title": "c", "description": "d", "riskLevel": "high"},
		{"title": "e", "description": "f", "riskLevel": "low"}]`
	script := "```javascript\nconst { test } = require('@playwright/test');\n```"

	mock := &agent.MockAgent{Responses: []string{"not json at all", scenarios, script}}
	g, _, q := newTestGenerator(t, mock)

	res, err := g.Generate(context.Background(), model.WorkItem{ID: "7", Title: "Checkout"})
	require.NoError(t, err)

	// One failed combined call plus two fallback calls.
	assert.Equal(t, 3, mock.Calls())
	assert.Len(t, res.Artifact.Scenarios, 3)
	assert.Contains(t, res.Artifact.Script, "@playwright/test")
	assert.Len(t, q.payloads, 1)
}

func TestGenerate_AllStrategiesFailEnqueuesNothing(t *testing.T) {
	mock := &agent.MockAgent{Err: errors.New("model unreachable")}
	g, _, q := newTestGenerator(t, mock)

	_, err := g.Generate(context.Background(), model.WorkItem{ID: "9", Title: "Broken"})
	require.Error(t, err)
	assert.Empty(t, q.payloads, "no orphaned envelopes for failed generations")
}

func TestGenerate_StorageFailureEnqueuesNothing(t *testing.T) {
	mock := &agent.MockAgent{Responses: []string{combinedResponse}}
	q := &memQueue{}
	g := New(mock, &failingStore{}, q, slog.Default(), nil)

	_, err := g.Generate(context.Background(), model.WorkItem{ID: "9", Title: "x"})
	require.Error(t, err)
	assert.Empty(t, q.payloads, "write-before-enqueue: no envelope without a durable script")
}

func TestGenerate_UntitledItemGetsPlaceholder(t *testing.T) {
	mock := &agent.MockAgent{Responses: []string{combinedResponse}}
	g, _, _ := newTestGenerator(t, mock)

	_, err := g.Generate(context.Background(), model.WorkItem{ID: "5"})
	require.NoError(t, err)
	assert.Contains(t, mock.Prompts[0], "(untitled work item)")
}

func TestParseCombined_Rejections(t *testing.T) {
	cases := map[string]string{
		"no script":    `{"scenarios": [{"title": "a"}], "script": ""}`,
		"no scenarios": `{"scenarios": [], "script": "x"}`,
		"not json":     `here are your scenarios:`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseCombined(raw)
			assert.Error(t, err)
		})
	}
}
