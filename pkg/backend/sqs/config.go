package sqs

import "time"

// Config holds the SQS connection and delivery settings.
type Config struct {
	Region      string `env:"SQS_REGION" envDefault:"us-east-1"`
	AccessKeyID string `env:"SQS_ACCESS_KEY_ID"`
	SecretKey   string `env:"SQS_SECRET_KEY"`
	Endpoint    string `env:"SQS_ENDPOINT"` // Endpoint points the client at an SQS-compatible service such as LocalStack or ElasticMQ.

	QueuePrefix       string        `env:"SQS_QUEUE_PREFIX"` // QueuePrefix is prepended to every topic to form the queue name.
	WaitTime          time.Duration `env:"SQS_WAIT_TIME" envDefault:"0s"`
	VisibilityTimeout time.Duration `env:"SQS_VISIBILITY_TIMEOUT" envDefault:"5m"`
}
