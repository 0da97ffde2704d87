package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresConfig tunes the Postgres-backed transport.
type PostgresConfig struct {
	Queue      string        // logical queue name within the shared table
	Visibility time.Duration // lease duration before a message redelivers
	MaxReceive int           // dead-letter ceiling; 0 disables it
}

// DefaultPostgresConfig returns the standard transport tuning.
func DefaultPostgresConfig(queue string) PostgresConfig {
	return PostgresConfig{
		Queue:      queue,
		Visibility: 5 * time.Minute,
	}
}

// PostgresTransport implements Transport on a Postgres table using
// FOR UPDATE SKIP LOCKED leases. Receiving a message advances its lease
// instead of removing it, so a crashed consumer's messages redeliver once
// the lease lapses.
type PostgresTransport struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

// NewPostgresTransport wraps an existing pool. The caller owns the pool.
func NewPostgresTransport(pool *pgxpool.Pool, cfg PostgresConfig) *PostgresTransport {
	if cfg.Visibility <= 0 {
		cfg.Visibility = DefaultPostgresConfig(cfg.Queue).Visibility
	}
	return &PostgresTransport{pool: pool, cfg: cfg}
}

const queueSchema = `
CREATE TABLE IF NOT EXISTS queue_messages (
	id            BIGSERIAL PRIMARY KEY,
	queue         TEXT NOT NULL,
	body          BYTEA NOT NULL,
	enqueued_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	visible_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	receive_count INT NOT NULL DEFAULT 0,
	dead          BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_queue_messages_claim
	ON queue_messages (queue, visible_at) WHERE NOT dead;
`

// EnsureSchema creates the queue table if it does not exist.
func (t *PostgresTransport) EnsureSchema(ctx context.Context) error {
	if _, err := t.pool.Exec(ctx, queueSchema); err != nil {
		return fmt.Errorf("create queue schema: %w", err)
	}
	return nil
}

// Send enqueues a message body, immediately visible.
func (t *PostgresTransport) Send(ctx context.Context, body []byte) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO queue_messages (queue, body) VALUES ($1, $2)`,
		t.cfg.Queue, body)
	if err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	return nil
}

const claimSQL = `
WITH next AS (
	SELECT id FROM queue_messages
	WHERE queue = $1 AND NOT dead AND visible_at <= now()
	ORDER BY enqueued_at, id
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE queue_messages m
SET visible_at = now() + make_interval(secs => $3),
    receive_count = m.receive_count + 1
FROM next
WHERE m.id = next.id
RETURNING m.id, m.body, m.receive_count
`

// Receive leases up to max visible messages. Messages over the dead-letter
// ceiling are parked instead of returned.
func (t *PostgresTransport) Receive(ctx context.Context, max int) ([]Message, error) {
	rows, err := t.pool.Query(ctx, claimSQL,
		t.cfg.Queue, max, t.cfg.Visibility.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	var exhausted []int64
	for rows.Next() {
		var id int64
		var body []byte
		var count int
		if err := rows.Scan(&id, &body, &count); err != nil {
			return nil, fmt.Errorf("scan claimed message: %w", err)
		}
		if t.cfg.MaxReceive > 0 && count > t.cfg.MaxReceive {
			exhausted = append(exhausted, id)
			continue
		}
		messages = append(messages, Message{
			Receipt:      strconv.FormatInt(id, 10),
			Body:         body,
			ReceiveCount: count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read claimed messages: %w", err)
	}

	for _, id := range exhausted {
		if err := t.park(ctx, id); err != nil {
			log.Error().Err(err).Int64("message_id", id).Msg("failed to park dead-lettered message")
		}
	}
	return messages, nil
}

// park marks a message dead so it stops redelivering but stays inspectable.
func (t *PostgresTransport) park(ctx context.Context, id int64) error {
	_, err := t.pool.Exec(ctx,
		`UPDATE queue_messages SET dead = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark message dead: %w", err)
	}
	log.Warn().Int64("message_id", id).Str("queue", t.cfg.Queue).
		Msg("message exceeded receive ceiling, parked as dead")
	return nil
}

// Delete removes a message permanently. Deleting an already-removed receipt
// is not an error.
func (t *PostgresTransport) Delete(ctx context.Context, receipt string) error {
	id, err := strconv.ParseInt(receipt, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed receipt %q: %w", receipt, err)
	}
	tag, err := t.pool.Exec(ctx,
		`DELETE FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Debug().Int64("message_id", id).Msg("delete matched no message")
	}
	return nil
}

var _ Transport = (*PostgresTransport)(nil)
