package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Backend is an in-process queue backend for tests and local development.
// Released messages go back to the head of their topic.
type Backend struct {
	mu         sync.Mutex
	topics     map[string]*topic
	autoCreate bool
}

type topic struct {
	ready    []*entry
	inFlight map[string]*entry
}

type entry struct {
	id   string
	body []byte
}

// Option configures the memory backend
type Option func(*Backend)

// WithAutoCreateTopics lets Put create topics on first use instead of
// failing with scheduler.ErrTopicNotFound.
func WithAutoCreateTopics() Option {
	return func(b *Backend) {
		b.autoCreate = true
	}
}

// New creates an empty memory backend
func New(opts ...Option) *Backend {
	b := &Backend{topics: make(map[string]*topic)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get claims the oldest ready message of a topic.
// Unknown topics are reported as empty.
func (b *Backend) Get(ctx context.Context, name string) (scheduler.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok || len(t.ready) == 0 {
		return nil, nil
	}

	e := t.ready[0]
	t.ready = t.ready[1:]
	t.inFlight[e.id] = e

	return &Message{backend: b, topic: name, entry: e}, nil
}

// Put appends a message to a topic.
func (b *Backend) Put(ctx context.Context, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok {
		if !b.autoCreate {
			return fmt.Errorf("put message to %q: %w", name, scheduler.ErrTopicNotFound)
		}
		t = b.createLocked(name)
	}

	t.ready = append(t.ready, &entry{
		id:   uuid.NewString(),
		body: slices.Clone(body),
	})
	return nil
}

// TopicEnsureExists creates the topic if it is missing.
func (b *Backend) TopicEnsureExists(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.topics[name]; !ok {
		b.createLocked(name)
	}
	return nil
}

// Topics returns the provisioned topic names in sorted order.
func (b *Backend) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of ready messages in a topic.
func (b *Backend) Len(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[name]; ok {
		return len(t.ready)
	}
	return 0
}

// InFlight returns the number of claimed messages not yet deleted or released.
func (b *Backend) InFlight(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[name]; ok {
		return len(t.inFlight)
	}
	return 0
}

func (b *Backend) createLocked(name string) *topic {
	t := &topic{inFlight: make(map[string]*entry)}
	b.topics[name] = t
	return t
}

// Message is a claimed memory backend message
type Message struct {
	backend *Backend
	topic   string
	entry   *entry
}

func (m *Message) ID() string   { return m.entry.id }
func (m *Message) Body() []byte { return m.entry.body }

// Del drops the message. Deleting twice is a no-op.
func (m *Message) Del(ctx context.Context) error {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()

	if t, ok := m.backend.topics[m.topic]; ok {
		delete(t.inFlight, m.entry.id)
	}
	return nil
}

// Release puts the message back at the head of its topic.
// Releasing a message that is no longer in flight is a no-op.
func (m *Message) Release(ctx context.Context) error {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()

	t, ok := m.backend.topics[m.topic]
	if !ok {
		return nil
	}
	if _, claimed := t.inFlight[m.entry.id]; !claimed {
		return nil
	}
	delete(t.inFlight, m.entry.id)
	t.ready = slices.Insert(t.ready, 0, m.entry)
	return nil
}
