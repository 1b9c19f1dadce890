package s3

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid s3 configuration")
	ErrInvalidTopicName   = errors.New("topic is not a valid s3 key segment")
	ErrBucketNotFound     = errors.New("s3 bucket not found")
	ErrAccessDenied       = errors.New("s3 access denied")
	ErrServiceUnavailable = errors.New("s3 service unavailable")
)
