package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"qaflow/internal/model"
	"qaflow/internal/queue"
)

// Consumer drains the execute queue and feeds envelopes to an Executor.
// Delivery is at-least-once: a crash between Execute and Ack redelivers
// the envelope, which is safe because Execute overwrites by key.
type Consumer struct {
	queue        queue.Queue
	executor     *Executor
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewConsumer creates a Consumer polling at the given interval when the
// queue is empty.
func NewConsumer(q queue.Queue, e *Executor, logger *slog.Logger, pollInterval time.Duration) *Consumer {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Consumer{queue: q, executor: e, logger: logger, pollInterval: pollInterval}
}

// Run processes messages until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Executor consumer started", "poll_interval", c.pollInterval)
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("Executor consumer shutting down")
			return err
		}

		msg, err := c.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				select {
				case <-ctx.Done():
					continue
				case <-time.After(c.pollInterval):
					continue
				}
			}
			c.logger.Error("Failed to dequeue", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.pollInterval):
			}
			continue
		}

		c.handle(ctx, msg)
	}
}

// handle executes one delivery. Panics in the executor must not kill the
// consumer loop; the message is released for redelivery instead.
func (c *Consumer) handle(ctx context.Context, msg *queue.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Executor panicked", "message_id", msg.ID, "panic", r)
			_ = c.queue.Nack(ctx, msg.ID)
		}
	}()

	var env model.ExecuteEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		// Malformed envelope: retrying cannot help, drop it.
		c.logger.Error("Dropping malformed envelope", "message_id", msg.ID, "error", err)
		_ = c.queue.Ack(ctx, msg.ID)
		return
	}

	logger := c.logger.With("run_id", env.RunID, "attempt", msg.Attempts)
	if msg.Attempts > 1 {
		logger.Warn("Redelivered envelope, re-executing idempotently")
	}

	if _, err := c.executor.Execute(ctx, env); err != nil {
		// Storage failure: the run state is ambiguous, let the queue
		// redeliver after the visibility timeout.
		logger.Error("Execution failed", "error", err)
		_ = c.queue.Nack(ctx, msg.ID)
		return
	}

	if err := c.queue.Ack(ctx, msg.ID); err != nil {
		logger.Error("Failed to ack message", "error", err)
	}
}
