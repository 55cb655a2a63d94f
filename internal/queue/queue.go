package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage queue names. One FIFO queue per pipeline hand-off.
const (
	QueueExecute = "execute"
	QueueEvents  = "events"
)

// ErrEmpty is returned by Dequeue when no message is ready.
var ErrEmpty = errors.New("queue is empty")

// Message is one claimed delivery. Attempts counts deliveries including
// this one, so consumers can spot redeliveries.
type Message struct {
	ID       int64
	Payload  []byte
	Attempts int
}

// Queue is an at-least-once FIFO channel between pipeline stages. A claimed
// message that is not acked before its visibility deadline is redelivered,
// so consumers must be idempotent.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	// Dequeue claims the oldest ready message, or returns ErrEmpty.
	Dequeue(ctx context.Context) (*Message, error)
	// Ack removes a claimed message permanently.
	Ack(ctx context.Context, id int64) error
	// Nack releases a claimed message for immediate redelivery.
	Nack(ctx context.Context, id int64) error
	Close() error
}

// Config selects and parameterizes a queue backend.
type Config struct {
	// Backend is "sqlite" or "postgres". Empty defaults to sqlite.
	Backend string
	// DSN is the sqlite file path or postgres connection string.
	DSN string
	// Visibility is how long a claimed message stays invisible before
	// it is considered abandoned and redelivered.
	Visibility time.Duration
	// MaxAttempts dead-letters a message after this many deliveries.
	// Zero means unlimited.
	MaxAttempts int
}

func (c Config) visibility() time.Duration {
	if c.Visibility <= 0 {
		return 5 * time.Minute
	}
	return c.Visibility
}

// New creates a queue with the given name on the configured backend.
func New(name string, cfg Config) (Queue, error) {
	switch strings.ToLower(cfg.Backend) {
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return NewPostgresQueue(name, cfg)
	case "sqlite", "sqlite3", "":
		if cfg.DSN == "" {
			cfg.DSN = ".qaflow.db"
		}
		return NewSQLiteQueue(name, cfg)
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Backend)
	}
}
