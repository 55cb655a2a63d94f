package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/model"
	"qaflow/internal/queue"
	"qaflow/internal/sandbox"
	"qaflow/internal/store"
)

// stubQueue records acks and nacks for consumer tests.
type stubQueue struct {
	acked  []int64
	nacked []int64
}

func (s *stubQueue) Enqueue(ctx context.Context, payload []byte) error { return nil }
func (s *stubQueue) Dequeue(ctx context.Context) (*queue.Message, error) {
	return nil, queue.ErrEmpty
}
func (s *stubQueue) Ack(ctx context.Context, id int64) error {
	s.acked = append(s.acked, id)
	return nil
}
func (s *stubQueue) Nack(ctx context.Context, id int64) error {
	s.nacked = append(s.nacked, id)
	return nil
}
func (s *stubQueue) Close() error { return nil }

func TestConsumer_HandleAcksSuccessfulRun(t *testing.T) {
	e, s := newTestExecutor(t, &fakeSandbox{result: sandbox.RunResult{ExitCode: 0}})
	env := storeScript(t, s, "run-consumer")
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	q := &stubQueue{}
	c := NewConsumer(q, e, slog.Default(), time.Millisecond)

	c.handle(context.Background(), &queue.Message{ID: 7, Payload: payload, Attempts: 1})

	assert.Equal(t, []int64{7}, q.acked)
	assert.Empty(t, q.nacked)
}

func TestConsumer_HandleDropsMalformedEnvelope(t *testing.T) {
	e, _ := newTestExecutor(t, &fakeSandbox{})
	q := &stubQueue{}
	c := NewConsumer(q, e, slog.Default(), time.Millisecond)

	c.handle(context.Background(), &queue.Message{ID: 9, Payload: []byte("{{not json"), Attempts: 1})

	// Retrying a malformed envelope cannot help; it is dropped, not nacked.
	assert.Equal(t, []int64{9}, q.acked)
	assert.Empty(t, q.nacked)
}

func TestConsumer_TimedOutRunIsStillAcked(t *testing.T) {
	// A timeout produces an error-status RunSummary, not a consumer crash
	// or an endless redelivery loop.
	e, s := newTestExecutor(t, &fakeSandbox{
		result: sandbox.RunResult{ExitCode: -1, TimedOut: true},
	})
	env := storeScript(t, s, "run-consumer-timeout")
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	q := &stubQueue{}
	c := NewConsumer(q, e, slog.Default(), time.Millisecond)
	c.handle(context.Background(), &queue.Message{ID: 3, Payload: payload, Attempts: 1})

	assert.Equal(t, []int64{3}, q.acked)

	data, err := store.GetBytes(context.Background(), s, store.SummaryKey("run-consumer-timeout"))
	require.NoError(t, err)
	var summary model.RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, model.StatusError, summary.Status)
}

func TestConsumer_RunStopsOnContextCancel(t *testing.T) {
	e, _ := newTestExecutor(t, &fakeSandbox{})
	q := &stubQueue{}
	c := NewConsumer(q, e, slog.Default(), time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsumer_EndToEndWithSQLiteQueue(t *testing.T) {
	e, s := newTestExecutor(t, &fakeSandbox{
		files:  map[string]string{"results.json": playwrightReport},
		result: sandbox.RunResult{ExitCode: 0},
	})
	env := storeScript(t, s, "run-e2e")
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	q, err := queue.NewSQLiteQueue(queue.QueueExecute, queue.Config{DSN: t.TempDir() + "/q.db"})
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Enqueue(context.Background(), payload))

	c := NewConsumer(q, e, slog.Default(), 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	// Message consumed and acked.
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, queue.ErrEmpty)

	// RunSummary written.
	_, err = store.GetBytes(context.Background(), s, store.SummaryKey("run-e2e"))
	assert.NoError(t, err)
}
