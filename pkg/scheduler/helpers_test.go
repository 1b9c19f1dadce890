package scheduler_test

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// fakeBackend is an in-memory backend that records every call made by the engine.
type fakeBackend struct {
	mu       sync.Mutex
	topics   map[string]bool
	queues   map[string][]*fakeMessage
	gets     int
	deleted  []string
	released []string
	seq      int

	getErr     error
	delErr     error
	releaseErr error
	ensureErr  map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		topics:    make(map[string]bool),
		queues:    make(map[string][]*fakeMessage),
		ensureErr: make(map[string]error),
	}
}

func (b *fakeBackend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gets++
	if b.getErr != nil {
		return nil, b.getErr
	}
	q := b.queues[topic]
	if len(q) == 0 {
		return nil, nil
	}
	msg := q[0]
	b.queues[topic] = q[1:]
	return msg, nil
}

func (b *fakeBackend) Put(ctx context.Context, topic string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.topics[topic] {
		return fmt.Errorf("put %q: %w", topic, scheduler.ErrTopicNotFound)
	}
	b.seq++
	b.queues[topic] = append(b.queues[topic], &fakeMessage{
		id:    fmt.Sprintf("m-%d", b.seq),
		topic: topic,
		body:  body,
		b:     b,
	})
	return nil
}

func (b *fakeBackend) TopicEnsureExists(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureErr[topic]; err != nil {
		return err
	}
	b.topics[topic] = true
	return nil
}

func (b *fakeBackend) push(topic string, bodies ...string) {
	b.mu.Lock()
	b.topics[topic] = true
	b.mu.Unlock()
	for _, body := range bodies {
		_ = b.Put(context.Background(), topic, []byte(body))
	}
}

func (b *fakeBackend) getCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

func (b *fakeBackend) deletedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.deleted)
}

func (b *fakeBackend) releasedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.released)
}

func (b *fakeBackend) pending(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[topic])
}

func (b *fakeBackend) setGetErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getErr = err
}

type fakeMessage struct {
	id    string
	topic string
	body  []byte
	b     *fakeBackend
}

func (m *fakeMessage) ID() string   { return m.id }
func (m *fakeMessage) Body() []byte { return m.body }

func (m *fakeMessage) Del(ctx context.Context) error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.deleted = append(m.b.deleted, m.id)
	return m.b.delErr
}

// Release puts the message back at the head of its topic.
func (m *fakeMessage) Release(ctx context.Context) error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.released = append(m.b.released, m.id)
	if m.b.releaseErr != nil {
		return m.b.releaseErr
	}
	m.b.queues[m.topic] = append([]*fakeMessage{m}, m.b.queues[m.topic]...)
	return nil
}

// structural backends used by the validator tests

type dynMessage struct {
	id   string
	body []byte
	b    *dynBackend
}

func (m dynMessage) ID() string                        { return m.id }
func (m dynMessage) Body() []byte                      { return m.body }
func (m dynMessage) Del(ctx context.Context) error     { m.b.record("del:" + m.id); return nil }
func (m dynMessage) Release(ctx context.Context) error { m.b.record("release:" + m.id); return nil }

// dynBackend returns a concrete message type, so it does not implement
// scheduler.Backend and has to go through the reflection adapter.
type dynBackend struct {
	mu    sync.Mutex
	items []dynMessage
	log   []string
}

func (b *dynBackend) Get(ctx context.Context, topic string) (*dynMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil, nil
	}
	m := b.items[0]
	b.items = b.items[1:]
	m.b = b
	return &m, nil
}

func (b *dynBackend) Put(ctx context.Context, topic string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, dynMessage{id: fmt.Sprintf("d-%d", len(b.items)+1), body: body})
	return nil
}

func (b *dynBackend) TopicEnsureExists(ctx context.Context, topic string) error { return nil }

func (b *dynBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, call)
}

func (b *dynBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.log)
}

type noGetBackend struct{}

type onlyGetBackend struct{}

func (onlyGetBackend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	return nil, nil
}

type getPutBackend struct{ onlyGetBackend }

func (getPutBackend) Put(ctx context.Context, topic string, body []byte) error { return nil }

type wrongGetBackend struct{}

func (wrongGetBackend) Get(topic string) ([]byte, error)                          { return nil, nil }
func (wrongGetBackend) Put(ctx context.Context, topic string, body []byte) error  { return nil }
func (wrongGetBackend) TopicEnsureExists(ctx context.Context, topic string) error { return nil }

type noDelMessage struct{}

func (noDelMessage) ID() string                        { return "" }
func (noDelMessage) Body() []byte                      { return nil }
func (noDelMessage) Release(ctx context.Context) error { return nil }

type noDelBackend struct{}

func (noDelBackend) Get(ctx context.Context, topic string) (noDelMessage, error) { return noDelMessage{}, nil }
func (noDelBackend) Put(ctx context.Context, topic string, body []byte) error    { return nil }
func (noDelBackend) TopicEnsureExists(ctx context.Context, topic string) error   { return nil }

type noReleaseMessage struct{}

func (noReleaseMessage) ID() string                    { return "" }
func (noReleaseMessage) Body() []byte                  { return nil }
func (noReleaseMessage) Del(ctx context.Context) error { return nil }

type noReleaseBackend struct{}

func (noReleaseBackend) Get(ctx context.Context, topic string) (*noReleaseMessage, error) {
	return nil, nil
}
func (noReleaseBackend) Put(ctx context.Context, topic string, body []byte) error  { return nil }
func (noReleaseBackend) TopicEnsureExists(ctx context.Context, topic string) error { return nil }

type bareMessage struct{}

func (bareMessage) Del(ctx context.Context) error     { return nil }
func (bareMessage) Release(ctx context.Context) error { return nil }

type bareMessageBackend struct{}

func (bareMessageBackend) Get(ctx context.Context, topic string) (bareMessage, error) {
	return bareMessage{}, nil
}
func (bareMessageBackend) Put(ctx context.Context, topic string, body []byte) error  { return nil }
func (bareMessageBackend) TopicEnsureExists(ctx context.Context, topic string) error { return nil }

type valueMessage struct{}

func (valueMessage) ID() string                        { return "" }
func (valueMessage) Body() []byte                      { return nil }
func (valueMessage) Del(ctx context.Context) error     { return nil }
func (valueMessage) Release(ctx context.Context) error { return nil }

type valueMessageBackend struct{}

func (valueMessageBackend) Get(ctx context.Context, topic string) (valueMessage, error) {
	return valueMessage{}, nil
}
func (valueMessageBackend) Put(ctx context.Context, topic string, body []byte) error  { return nil }
func (valueMessageBackend) TopicEnsureExists(ctx context.Context, topic string) error { return nil }
