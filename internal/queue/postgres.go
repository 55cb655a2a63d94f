package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresQueue implements Queue on PostgreSQL for multi-host deployments.
// Claims use FOR UPDATE SKIP LOCKED so concurrent consumers never fight
// over the same message.
type PostgresQueue struct {
	db   *sql.DB
	name string
	cfg  Config
}

// NewPostgresQueue opens the database and applies migrations.
func NewPostgresQueue(name string, cfg Config) (*PostgresQueue, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping queue database: %w", err)
	}

	q := &PostgresQueue{db: db, name: name, cfg: cfg}
	if err := q.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate queue database: %w", err)
	}
	return q, nil
}

func (q *PostgresQueue) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS queue_messages (
			id BIGSERIAL PRIMARY KEY,
			queue TEXT NOT NULL,
			payload BYTEA NOT NULL,
			state TEXT NOT NULL DEFAULT 'ready',
			attempts INTEGER NOT NULL DEFAULT 0,
			visible_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_queue_ready ON queue_messages (queue, state, visible_at, id);`,
	}
	for _, query := range queries {
		if _, err := q.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (q *PostgresQueue) Enqueue(ctx context.Context, payload []byte) error {
	query := `INSERT INTO queue_messages (queue, payload, state, visible_at) VALUES ($1, $2, 'ready', $3)`
	if _, err := q.db.ExecContext(ctx, query, q.name, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin claim: %w", err)
		}

		now := time.Now().UTC()
		row := tx.QueryRowContext(ctx, `
			SELECT id, payload, attempts FROM queue_messages
			WHERE queue = $1
			  AND (state = 'ready' OR (state = 'claimed' AND visible_at <= $2))
			ORDER BY id ASC LIMIT 1
			FOR UPDATE SKIP LOCKED`, q.name, now)

		var msg Message
		if err := row.Scan(&msg.ID, &msg.Payload, &msg.Attempts); err != nil {
			tx.Rollback()
			if err == sql.ErrNoRows {
				return nil, ErrEmpty
			}
			return nil, fmt.Errorf("failed to claim message: %w", err)
		}

		msg.Attempts++
		if q.cfg.MaxAttempts > 0 && msg.Attempts > q.cfg.MaxAttempts {
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue_messages SET state = 'dead' WHERE id = $1`, msg.ID); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to dead-letter message: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit dead-letter: %w", err)
			}
			continue
		}

		deadline := now.Add(q.cfg.visibility())
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_messages SET state = 'claimed', attempts = $1, visible_at = $2 WHERE id = $3`,
			msg.Attempts, deadline, msg.ID); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to claim message: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit claim: %w", err)
		}
		return &msg, nil
	}
}

func (q *PostgresQueue) Ack(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to ack message %d: %w", id, err)
	}
	return nil
}

func (q *PostgresQueue) Nack(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages SET state = 'ready', visible_at = $1 WHERE id = $2`,
		time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to nack message %d: %w", id, err)
	}
	return nil
}

// Depth reports the number of messages waiting or claimed, for metrics.
func (q *PostgresQueue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_messages WHERE queue = $1 AND state != 'dead'`, q.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (q *PostgresQueue) Close() error {
	return q.db.Close()
}
