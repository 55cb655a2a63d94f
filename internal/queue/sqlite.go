package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteQueue implements Queue on a local SQLite database. It is the
// default backend for single-host deployments and tests.
type SQLiteQueue struct {
	db   *sql.DB
	name string
	cfg  Config

	// SQLite has no row locking; serialize claims within the process.
	mu sync.Mutex
}

// NewSQLiteQueue opens the database and applies migrations.
func NewSQLiteQueue(name string, cfg Config) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping queue database: %w", err)
	}

	q := &SQLiteQueue{db: db, name: name, cfg: cfg}
	if err := q.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate queue database: %w", err)
	}
	return q, nil
}

func (q *SQLiteQueue) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS queue_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue TEXT NOT NULL,
		payload BLOB NOT NULL,
		state TEXT NOT NULL DEFAULT 'ready',
		attempts INTEGER NOT NULL DEFAULT 0,
		visible_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_queue_ready ON queue_messages (queue, state, visible_at, id);
	`
	_, err := q.db.Exec(query)
	return err
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, payload []byte) error {
	query := `INSERT INTO queue_messages (queue, payload, state, visible_at) VALUES (?, ?, 'ready', ?)`
	if _, err := q.db.ExecContext(ctx, query, q.name, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	for {
		// Ready messages, plus claimed ones whose visibility deadline
		// passed (consumer crashed before acking).
		row := q.db.QueryRowContext(ctx, `
			SELECT id, payload, attempts FROM queue_messages
			WHERE queue = ?
			  AND (state = 'ready' OR (state = 'claimed' AND visible_at <= ?))
			ORDER BY id ASC LIMIT 1`, q.name, now)

		var msg Message
		if err := row.Scan(&msg.ID, &msg.Payload, &msg.Attempts); err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrEmpty
			}
			return nil, fmt.Errorf("failed to claim message: %w", err)
		}

		msg.Attempts++
		if q.cfg.MaxAttempts > 0 && msg.Attempts > q.cfg.MaxAttempts {
			// Poison message: park it instead of redelivering forever.
			if _, err := q.db.ExecContext(ctx,
				`UPDATE queue_messages SET state = 'dead' WHERE id = ?`, msg.ID); err != nil {
				return nil, fmt.Errorf("failed to dead-letter message: %w", err)
			}
			continue
		}

		deadline := now.Add(q.cfg.visibility())
		if _, err := q.db.ExecContext(ctx,
			`UPDATE queue_messages SET state = 'claimed', attempts = ?, visible_at = ? WHERE id = ?`,
			msg.Attempts, deadline, msg.ID); err != nil {
			return nil, fmt.Errorf("failed to claim message: %w", err)
		}
		return &msg, nil
	}
}

func (q *SQLiteQueue) Ack(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to ack message %d: %w", id, err)
	}
	return nil
}

func (q *SQLiteQueue) Nack(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages SET state = 'ready', visible_at = ? WHERE id = ?`,
		time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to nack message %d: %w", id, err)
	}
	return nil
}

// Depth reports the number of messages waiting or claimed, for metrics.
func (q *SQLiteQueue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_messages WHERE queue = ? AND state != 'dead'`, q.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}
