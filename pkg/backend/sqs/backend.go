package sqs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dmitrymomot/taskscheduler/pkg/backend/internal/awsutil"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Client is the subset of the SQS API the backend uses.
type Client interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

const (
	encodingAttr   = "content-transfer-encoding"
	encodingBase64 = "base64"
)

var queueNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)

// Backend maps every topic to an SQS queue named QueuePrefix+topic.
// Release sets the message visibility timeout to zero.
type Backend struct {
	client      Client
	prefix      string
	waitSeconds int32
	visibility  int32

	mu   sync.RWMutex
	urls map[string]string
}

// Option configures the SQS backend
type Option func(*options)

type options struct {
	client        Client
	configOptions []func(*config.LoadOptions) error
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

// New creates an SQS backend.
func New(ctx context.Context, cfg Config, opts ...Option) (*Backend, error) {
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
		client = sqs.NewFromConfig(awsCfg, func(so *sqs.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	return &Backend{
		client:      client,
		prefix:      cfg.QueuePrefix,
		waitSeconds: int32(min(cfg.WaitTime.Seconds(), 20)),
		visibility:  int32(cfg.VisibilityTimeout.Seconds()),
		urls:        make(map[string]string),
	}, nil
}

func (b *Backend) queueName(topic string) (string, error) {
	name := b.prefix + topic
	if !queueNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopicName, name)
	}
	return name, nil
}

// queueURL resolves and caches the URL of a topic's queue.
func (b *Backend) queueURL(ctx context.Context, topic string) (string, error) {
	b.mu.RLock()
	url, ok := b.urls[topic]
	b.mu.RUnlock()
	if ok {
		return url, nil
	}

	name, err := b.queueName(topic)
	if err != nil {
		return "", err
	}
	out, err := b.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", classifyError(err, "get queue url")
	}

	url = aws.ToString(out.QueueUrl)
	b.mu.Lock()
	b.urls[topic] = url
	b.mu.Unlock()
	return url, nil
}

// Get receives at most one message. Topics without a queue are reported as empty.
func (b *Backend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	url, err := b.queueURL(ctx, topic)
	if errors.Is(err, scheduler.ErrTopicNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	in := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   1,
		WaitTimeSeconds:       b.waitSeconds,
		MessageAttributeNames: []string{encodingAttr},
	}
	if b.visibility > 0 {
		in.VisibilityTimeout = b.visibility
	}
	out, err := b.client.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, classifyError(err, "receive message")
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	raw := out.Messages[0]
	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}

	return &Message{
		client:   b.client,
		queueURL: url,
		id:       aws.ToString(raw.MessageId),
		receipt:  aws.ToString(raw.ReceiptHandle),
		body:     body,
	}, nil
}

// Put sends a message. Bodies that are not valid UTF-8 are base64 encoded.
func (b *Backend) Put(ctx context.Context, topic string, body []byte) error {
	url, err := b.queueURL(ctx, topic)
	if err != nil {
		return fmt.Errorf("put message to %q: %w", topic, err)
	}

	in := &sqs.SendMessageInput{QueueUrl: aws.String(url)}
	if utf8.Valid(body) {
		in.MessageBody = aws.String(string(body))
	} else {
		in.MessageBody = aws.String(base64.StdEncoding.EncodeToString(body))
		in.MessageAttributes = map[string]types.MessageAttributeValue{
			encodingAttr: {DataType: aws.String("String"), StringValue: aws.String(encodingBase64)},
		}
	}

	if _, err := b.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("put message to %q: %w", topic, classifyError(err, "send message"))
	}
	return nil
}

// TopicEnsureExists creates the topic's queue. CreateQueue is idempotent for
// identical attributes.
func (b *Backend) TopicEnsureExists(ctx context.Context, topic string) error {
	name, err := b.queueName(topic)
	if err != nil {
		return err
	}

	out, err := b.client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return fmt.Errorf("ensure topic %q: %w", topic, classifyError(err, "create queue"))
	}

	b.mu.Lock()
	b.urls[topic] = aws.ToString(out.QueueUrl)
	b.mu.Unlock()
	return nil
}

func decodeBody(m types.Message) ([]byte, error) {
	body := aws.ToString(m.Body)
	attr, ok := m.MessageAttributes[encodingAttr]
	if !ok || aws.ToString(attr.StringValue) != encodingBase64 {
		return []byte(body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	return decoded, nil
}

// classifyError maps SQS errors to the scheduler and package sentinels.
func classifyError(err error, operation string) error {
	var missing *types.QueueDoesNotExist
	if errors.As(err, &missing) {
		return fmt.Errorf("%s: %w", operation, scheduler.ErrTopicNotFound)
	}

	switch code := awsutil.ErrorCode(err); code {
	case "AWS.SimpleQueueService.NonExistentQueue", "QueueDoesNotExist":
		return fmt.Errorf("%s: %w", operation, scheduler.ErrTopicNotFound)
	case "AccessDenied", "AccessDeniedException":
		return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
	case "":
		return fmt.Errorf("%s: %w", operation, err)
	default:
		return fmt.Errorf("%s failed (code: %s): %w", operation, code, err)
	}
}

// Message is a received SQS message
type Message struct {
	client   Client
	queueURL string
	id       string
	receipt  string
	body     []byte
}

func (m *Message) ID() string   { return m.id }
func (m *Message) Body() []byte { return m.body }

// Del deletes the message using its receipt handle.
func (m *Message) Del(ctx context.Context) error {
	_, err := m.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(m.queueURL),
		ReceiptHandle: aws.String(m.receipt),
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", m.id, classifyError(err, "delete message"))
	}
	return nil
}

// Release makes the message visible again immediately.
func (m *Message) Release(ctx context.Context) error {
	_, err := m.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(m.queueURL),
		ReceiptHandle:     aws.String(m.receipt),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("release message %s: %w", m.id, classifyError(err, "change visibility"))
	}
	return nil
}
