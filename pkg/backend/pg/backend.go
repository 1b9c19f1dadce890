package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

const (
	claimQuery = `
		UPDATE scheduler_messages
		SET visible_at = now() + make_interval(secs => $2), receive_count = receive_count + 1
		WHERE id = (
			SELECT id FROM scheduler_messages
			WHERE topic = $1 AND visible_at <= now()
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, body, receive_count`

	insertQuery  = `INSERT INTO scheduler_messages (id, topic, body) VALUES ($1, $2, $3)`
	ensureQuery  = `INSERT INTO scheduler_topics (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	deleteQuery  = `DELETE FROM scheduler_messages WHERE id = $1`
	releaseQuery = `UPDATE scheduler_messages SET visible_at = now() WHERE id = $1`
	countQuery   = `SELECT count(*) FROM scheduler_messages WHERE topic = $1 AND visible_at <= now()`
)

// Backend is a PostgreSQL queue. Claimed rows become invisible for the
// visibility timeout; Release makes them visible again immediately.
type Backend struct {
	pool              *pgxpool.Pool
	visibilityTimeout time.Duration
}

// New creates a backend on an existing pool. Run Migrate first.
func New(pool *pgxpool.Pool, cfg Config) (*Backend, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	timeout := cfg.VisibilityTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Backend{pool: pool, visibilityTimeout: timeout}, nil
}

// Get claims the oldest visible message of a topic.
func (b *Backend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	var (
		id       uuid.UUID
		body     []byte
		receives int
	)
	err := b.pool.QueryRow(ctx, claimQuery, topic, b.visibilityTimeout.Seconds()).Scan(&id, &body, &receives)
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message from %q: %w", topic, err)
	}
	return &Message{pool: b.pool, id: id, body: body, receives: receives}, nil
}

// Put inserts a message into a provisioned topic.
func (b *Backend) Put(ctx context.Context, topic string, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	_, err := b.pool.Exec(ctx, insertQuery, uuid.New(), topic, body)
	if IsForeignKeyViolationError(err) {
		return fmt.Errorf("put message to %q: %w", topic, scheduler.ErrTopicNotFound)
	}
	if err != nil {
		return fmt.Errorf("put message to %q: %w", topic, err)
	}
	return nil
}

// TopicEnsureExists inserts the topic row if it is missing.
func (b *Backend) TopicEnsureExists(ctx context.Context, topic string) error {
	if _, err := b.pool.Exec(ctx, ensureQuery, topic); err != nil {
		return fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	return nil
}

// Len returns the number of messages currently visible in a topic.
func (b *Backend) Len(ctx context.Context, topic string) (int64, error) {
	var n int64
	if err := b.pool.QueryRow(ctx, countQuery, topic).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages in %q: %w", topic, err)
	}
	return n, nil
}

// Message is a claimed row
type Message struct {
	pool     *pgxpool.Pool
	id       uuid.UUID
	body     []byte
	receives int
}

func (m *Message) ID() string   { return m.id.String() }
func (m *Message) Body() []byte { return m.body }

// ReceiveCount reports how many times the message has been claimed, this delivery included.
func (m *Message) ReceiveCount() int { return m.receives }

// Del removes the row.
func (m *Message) Del(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, deleteQuery, m.id); err != nil {
		return fmt.Errorf("delete message %s: %w", m.id, err)
	}
	return nil
}

// Release makes the row visible to the next poll.
func (m *Message) Release(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, releaseQuery, m.id); err != nil {
		return fmt.Errorf("release message %s: %w", m.id, err)
	}
	return nil
}
