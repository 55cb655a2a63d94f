package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, cfg Config) *SQLiteQueue {
	t.Helper()
	cfg.DSN = filepath.Join(t.TempDir(), "queue.db")
	q, err := NewSQLiteQueue("execute", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestSQLiteQueue_EnqueueDequeueAck(t *testing.T) {
	q := newTestQueue(t, Config{})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte(`{"runId":"r1"}`)))

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"runId":"r1"}`, string(msg.Payload))
	assert.Equal(t, 1, msg.Attempts)

	require.NoError(t, q.Ack(ctx, msg.ID))

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSQLiteQueue_FIFOOrder(t *testing.T) {
	q := newTestQueue(t, Config{})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("first")))
	require.NoError(t, q.Enqueue(ctx, []byte("second")))

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(msg.Payload))

	msg2, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(msg2.Payload))
}

func TestSQLiteQueue_ClaimedMessageIsInvisible(t *testing.T) {
	q := newTestQueue(t, Config{Visibility: time.Minute})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("one")))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// Still claimed: a second consumer sees an empty queue.
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSQLiteQueue_RedeliveryAfterVisibilityTimeout(t *testing.T) {
	q := newTestQueue(t, Config{Visibility: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("crash-me")))

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.Attempts)

	// Consumer "crashes": no ack. After the deadline the message comes back.
	time.Sleep(20 * time.Millisecond)

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, redelivered.ID)
	assert.Equal(t, 2, redelivered.Attempts)
}

func TestSQLiteQueue_NackReleasesImmediately(t *testing.T) {
	q := newTestQueue(t, Config{Visibility: time.Minute})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("retry-me")))

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, msg.ID))

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, redelivered.ID)
}

func TestSQLiteQueue_MaxAttemptsDeadLetters(t *testing.T) {
	q := newTestQueue(t, Config{Visibility: time.Minute, MaxAttempts: 2})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("poison")))

	for i := 0; i < 2; i++ {
		msg, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.Nack(ctx, msg.ID))
	}

	// Third delivery would exceed MaxAttempts: parked, not redelivered.
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSQLiteQueue_Depth(t *testing.T) {
	q := newTestQueue(t, Config{})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("a")))
	require.NoError(t, q.Enqueue(ctx, []byte("b")))

	n, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNew_UnsupportedBackend(t *testing.T) {
	_, err := New("execute", Config{Backend: "kafka"})
	assert.Error(t, err)
}
