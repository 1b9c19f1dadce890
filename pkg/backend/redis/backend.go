package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Backend stores every topic as a pair of Redis lists. Get atomically moves
// the oldest entry from the ready list to the processing list with LMOVE.
// Del removes it from the processing list and Release moves it back to the
// head of the ready list.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Redis backend on top of an existing client.
func New(client redis.UniversalClient, cfg Config) (*Backend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "taskscheduler"
	}
	return &Backend{client: client, prefix: prefix}, nil
}

// releaseScript removes the entry from the processing list and, if it was
// there, pushes it to the head of the ready list in one step.
var releaseScript = redis.NewScript(`
if redis.call("LREM", KEYS[1], 1, ARGV[1]) > 0 then
	return redis.call("LPUSH", KEYS[2], ARGV[1])
end
return 0
`)

type envelope struct {
	ID   string `json:"id"`
	Body []byte `json:"body"`
}

func (b *Backend) topicsKey() string { return b.prefix + ":topics" }

func (b *Backend) readyKey(topic string) string { return b.prefix + ":topic:" + topic + ":ready" }

func (b *Backend) processingKey(topic string) string {
	return b.prefix + ":topic:" + topic + ":processing"
}

// Get claims the oldest entry of a topic. An empty list is reported as (nil, nil).
func (b *Backend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	raw, err := b.client.LMove(ctx, b.readyKey(topic), b.processingKey(topic), "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message from %q: %w", topic, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Drop the entry so it does not block the topic forever.
		_ = b.client.LRem(context.WithoutCancel(ctx), b.processingKey(topic), 1, raw).Err()
		return nil, errors.Join(ErrMalformedMessage, err)
	}

	return &Message{backend: b, topic: topic, raw: raw, env: env}, nil
}

// Put appends a message to a provisioned topic.
func (b *Backend) Put(ctx context.Context, topic string, body []byte) error {
	ok, err := b.client.SIsMember(ctx, b.topicsKey(), topic).Result()
	if err != nil {
		return fmt.Errorf("check topic %q: %w", topic, err)
	}
	if !ok {
		return fmt.Errorf("put message to %q: %w", topic, scheduler.ErrTopicNotFound)
	}

	raw, err := json.Marshal(envelope{ID: uuid.NewString(), Body: body})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := b.client.RPush(ctx, b.readyKey(topic), raw).Err(); err != nil {
		return fmt.Errorf("put message to %q: %w", topic, err)
	}
	return nil
}

// TopicEnsureExists registers the topic in the topics set.
func (b *Backend) TopicEnsureExists(ctx context.Context, topic string) error {
	if err := b.client.SAdd(ctx, b.topicsKey(), topic).Err(); err != nil {
		return fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	return nil
}

// Topics returns every provisioned topic.
func (b *Backend) Topics(ctx context.Context) ([]string, error) {
	return b.client.SMembers(ctx, b.topicsKey()).Result()
}

// Len returns the number of ready entries in a topic.
func (b *Backend) Len(ctx context.Context, topic string) (int64, error) {
	return b.client.LLen(ctx, b.readyKey(topic)).Result()
}

// Recover moves entries left in the processing list by a crashed process back
// to the head of the ready list. It must not run while handlers are polling the topic.
func (b *Backend) Recover(ctx context.Context, topic string) (int, error) {
	var n int
	for {
		err := b.client.LMove(ctx, b.processingKey(topic), b.readyKey(topic), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover topic %q: %w", topic, err)
		}
		n++
	}
}

// Message is an entry claimed from the processing list
type Message struct {
	backend *Backend
	topic   string
	raw     string
	env     envelope
}

func (m *Message) ID() string   { return m.env.ID }
func (m *Message) Body() []byte { return m.env.Body }

// Del removes the entry from the processing list.
func (m *Message) Del(ctx context.Context) error {
	if err := m.backend.client.LRem(ctx, m.backend.processingKey(m.topic), 1, m.raw).Err(); err != nil {
		return fmt.Errorf("delete message %s: %w", m.env.ID, err)
	}
	return nil
}

// Release moves the entry back to the head of the ready list.
// Nothing is pushed if the entry is no longer being processed.
func (m *Message) Release(ctx context.Context) error {
	keys := []string{m.backend.processingKey(m.topic), m.backend.readyKey(m.topic)}
	if err := releaseScript.Run(ctx, m.backend.client, keys, m.raw).Err(); err != nil {
		return fmt.Errorf("release message %s: %w", m.env.ID, err)
	}
	return nil
}
