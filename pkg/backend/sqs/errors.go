package sqs

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid sqs configuration")
	ErrInvalidTopicName = errors.New("topic is not a valid sqs queue name")
	ErrAccessDenied     = errors.New("sqs access denied")
	ErrMalformedMessage = errors.New("malformed sqs message body")
)
