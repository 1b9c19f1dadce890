package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskscheduler/pkg/backend/internal/awsutil"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Client is the subset of the S3 API the backend uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const markerName = ".topic"

// Backend spools messages as objects under <prefix>/<topic>/messages/.
// Object keys sort by creation time, so listing returns the oldest first.
// S3 has no way to hide an object, so claimed keys are leased in memory and
// Release is implemented with scheduler.Resubmit.
type Backend struct {
	client    Client
	bucket    string
	prefix    string
	batchSize int32
	now       func() time.Time

	mu     sync.Mutex
	leased map[string]struct{}
}

// Option configures the S3 backend
type Option func(*options)

type options struct {
	client        Client
	configOptions []func(*config.LoadOptions) error
	clientOptions []func(*s3.Options)
}

// WithClient uses a pre-configured client instead of building one from Config.
func WithClient(client Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithConfigOption adds an AWS config load option.
func WithConfigOption(opt func(*config.LoadOptions) error) Option {
	return func(o *options) {
		o.configOptions = append(o.configOptions, opt)
	}
}

// WithClientOption adds an S3 client option.
func WithClientOption(opt func(*s3.Options)) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opt)
	}
}

// New creates an S3 spool backend.
func New(ctx context.Context, cfg Config, opts ...Option) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: region is required", ErrInvalidConfig)
		}
		awsCfg, err := awsutil.LoadConfig(ctx, awsutil.Credentials{
			Region:      cfg.Region,
			AccessKeyID: cfg.AccessKeyID,
			SecretKey:   cfg.SecretKey,
		}, o.configOptions...)
		if err != nil {
			return nil, err
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range o.clientOptions {
				opt(so)
			}
		})
	}

	batch := cfg.ListBatchSize
	if batch <= 0 {
		batch = 100
	}

	return &Backend{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		batchSize: batch,
		now:       time.Now,
		leased:    make(map[string]struct{}),
	}, nil
}

func (b *Backend) topicPrefix(topic string) (string, error) {
	if topic == "" || strings.Contains(topic, "/") || strings.Contains(topic, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopicName, topic)
	}
	if b.prefix == "" {
		return topic + "/", nil
	}
	return b.prefix + "/" + topic + "/", nil
}

// Get claims the oldest message object not already leased by this process.
func (b *Backend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	base, err := b.topicPrefix(topic)
	if err != nil {
		return nil, err
	}

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(base + "messages/"),
		MaxKeys: aws.Int32(b.batchSize),
	})
	if err != nil {
		return nil, classifyError(err, "list messages")
	}

	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if !b.lease(key) {
			continue
		}

		body, err := b.read(ctx, key)
		if errors.Is(err, scheduler.ErrNoMessage) {
			// Deleted by another consumer between list and read.
			b.unlease(key)
			continue
		}
		if err != nil {
			b.unlease(key)
			return nil, err
		}

		return &Message{backend: b, topic: topic, key: key, body: body}, nil
	}

	return nil, nil
}

func (b *Backend) read(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, scheduler.ErrNoMessage
		}
		return nil, classifyError(err, "get message")
	}
	defer func() { _ = obj.Body.Close() }()

	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read message %s: %w", key, err)
	}
	return body, nil
}

// Put writes a message object into a provisioned topic.
func (b *Backend) Put(ctx context.Context, topic string, body []byte) error {
	base, err := b.topicPrefix(topic)
	if err != nil {
		return err
	}

	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(base + markerName),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("put message to %q: %w", topic, scheduler.ErrTopicNotFound)
		}
		return fmt.Errorf("put message to %q: %w", topic, classifyError(err, "check topic"))
	}

	key := fmt.Sprintf("%smessages/%020d-%s", base, b.now().UnixNano(), uuid.NewString())
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put message to %q: %w", topic, classifyError(err, "put message"))
	}
	return nil
}

// TopicEnsureExists writes the topic marker object.
func (b *Backend) TopicEnsureExists(ctx context.Context, topic string) error {
	base, err := b.topicPrefix(topic)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(base + markerName),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("ensure topic %q: %w", topic, classifyError(err, "put topic marker"))
	}
	return nil
}

func (b *Backend) lease(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, taken := b.leased[key]; taken {
		return false
	}
	b.leased[key] = struct{}{}
	return true
}

func (b *Backend) unlease(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.leased, key)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	switch awsutil.ErrorCode(err) {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// classifyError converts S3 errors to package sentinels.
func classifyError(err error, operation string) error {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, operation)
	}

	switch code := awsutil.ErrorCode(err); code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrBucketNotFound, operation)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
	case "SlowDown", "ServiceUnavailable":
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, operation)
	case "":
		return fmt.Errorf("%s operation failed: %w", operation, err)
	default:
		return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
	}
}

// Message is a leased message object
type Message struct {
	backend *Backend
	topic   string
	key     string
	body    []byte
}

func (m *Message) ID() string   { return m.key }
func (m *Message) Body() []byte { return m.body }

// Del deletes the object and drops the lease.
func (m *Message) Del(ctx context.Context) error {
	_, err := m.backend.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.backend.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", m.key, classifyError(err, "delete message"))
	}
	m.backend.unlease(m.key)
	return nil
}

// Release deletes the object and writes its body back as a new message at
// the end of the topic.
func (m *Message) Release(ctx context.Context) error {
	return scheduler.Resubmit(ctx, m.backend, m.topic, m)
}
