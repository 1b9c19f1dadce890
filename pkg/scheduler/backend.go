package scheduler

import (
	"context"
	"fmt"
)

// Message is a single delivery handed out by a backend.
// The engine calls exactly one of Del or Release per retrieved message.
type Message interface {
	ID() string
	Body() []byte

	// Del acknowledges the message and removes it permanently
	Del(ctx context.Context) error

	// Release returns the message to its topic for redelivery
	Release(ctx context.Context) error
}

// Getter retrieves at most one undelivered message for a topic.
// An empty topic is reported as (nil, nil) or as an error matching ErrNoMessage.
type Getter interface {
	Get(ctx context.Context, topic string) (Message, error)
}

// Putter submits a new message to a topic.
type Putter interface {
	Put(ctx context.Context, topic string, body []byte) error
}

// TopicEnsurer idempotently provisions a topic.
type TopicEnsurer interface {
	TopicEnsureExists(ctx context.Context, topic string) error
}

// Backend is the queue contract the scheduler polls.
type Backend interface {
	Getter
	Putter
	TopicEnsurer
}

// Resubmit implements Release for backends without a native release primitive:
// the message is deleted and an equivalent body is put back onto the topic.
// The redelivered message gets a new identifier and goes to the back of the topic.
func Resubmit(ctx context.Context, p Putter, topic string, msg Message) error {
	if err := msg.Del(ctx); err != nil {
		return fmt.Errorf("resubmit message %s: delete: %w", msg.ID(), err)
	}
	if err := p.Put(ctx, topic, msg.Body()); err != nil {
		return fmt.Errorf("resubmit message %s to topic %q: %w", msg.ID(), topic, err)
	}
	return nil
}
