package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Backend is a MongoDB queue. Claimed documents stay hidden for the
// visibility timeout; Release makes them visible again immediately.
type Backend struct {
	topics            *mongo.Collection
	messages          *mongo.Collection
	visibilityTimeout time.Duration
	now               func() time.Time
}

type messageDoc struct {
	ID           string    `bson:"_id"`
	Topic        string    `bson:"topic"`
	Body         []byte    `bson:"body"`
	CreatedAt    time.Time `bson:"created_at"`
	VisibleAt    time.Time `bson:"visible_at"`
	ReceiveCount int       `bson:"receive_count"`
}

// New creates a backend in the given database.
func New(db *mongo.Database, cfg Config) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "scheduler"
	}
	timeout := cfg.VisibilityTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Backend{
		topics:            db.Collection(prefix + "_topics"),
		messages:          db.Collection(prefix + "_messages"),
		visibilityTimeout: timeout,
		now:               time.Now,
	}, nil
}

// EnsureIndexes creates the index used by Get.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	_, err := b.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "topic", Value: 1},
			{Key: "visible_at", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create poll index: %w", err)
	}
	return nil
}

// Get claims the oldest visible document of a topic.
func (b *Backend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	now := b.now().UTC()

	var doc messageDoc
	err := b.messages.FindOneAndUpdate(ctx,
		bson.D{
			{Key: "topic", Value: topic},
			{Key: "visible_at", Value: bson.D{{Key: "$lte", Value: now}}},
		},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "visible_at", Value: now.Add(b.visibilityTimeout)}}},
			{Key: "$inc", Value: bson.D{{Key: "receive_count", Value: 1}}},
		},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message from %q: %w", topic, err)
	}

	return &Message{backend: b, doc: doc}, nil
}

// Put inserts a message into a provisioned topic.
func (b *Backend) Put(ctx context.Context, topic string, body []byte) error {
	n, err := b.topics.CountDocuments(ctx, bson.D{{Key: "_id", Value: topic}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check topic %q: %w", topic, err)
	}
	if n == 0 {
		return fmt.Errorf("put message to %q: %w", topic, scheduler.ErrTopicNotFound)
	}

	if body == nil {
		body = []byte{}
	}
	now := b.now().UTC()
	_, err = b.messages.InsertOne(ctx, messageDoc{
		ID:        uuid.NewString(),
		Topic:     topic,
		Body:      body,
		CreatedAt: now,
		VisibleAt: now,
	})
	if err != nil {
		return fmt.Errorf("put message to %q: %w", topic, err)
	}
	return nil
}

// TopicEnsureExists upserts the topic document.
func (b *Backend) TopicEnsureExists(ctx context.Context, topic string) error {
	_, err := b.topics.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: topic}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: b.now().UTC()}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	return nil
}

// Message is a claimed document
type Message struct {
	backend *Backend
	doc     messageDoc
}

func (m *Message) ID() string   { return m.doc.ID }
func (m *Message) Body() []byte { return m.doc.Body }

// ReceiveCount reports how many times the message has been claimed, this delivery included.
func (m *Message) ReceiveCount() int { return m.doc.ReceiveCount }

// Del removes the document.
func (m *Message) Del(ctx context.Context) error {
	if _, err := m.backend.messages.DeleteOne(ctx, bson.D{{Key: "_id", Value: m.doc.ID}}); err != nil {
		return fmt.Errorf("delete message %s: %w", m.doc.ID, err)
	}
	return nil
}

// Release makes the document visible to the next poll.
func (m *Message) Release(ctx context.Context) error {
	_, err := m.backend.messages.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: m.doc.ID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "visible_at", Value: m.backend.now().UTC()}}}},
	)
	if err != nil {
		return fmt.Errorf("release message %s: %w", m.doc.ID, err)
	}
	return nil
}
