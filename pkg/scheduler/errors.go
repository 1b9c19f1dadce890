package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBackend is matched by every backend validation failure.
	ErrInvalidBackend = errors.New("invalid queue backend")

	// ErrNoMessage is returned by backends when a topic has nothing to deliver.
	// The engine treats it the same as a nil message.
	ErrNoMessage = errors.New("no message available")

	// ErrTopicNotFound is wrapped by backends when a topic was never provisioned.
	ErrTopicNotFound = errors.New("topic does not exist")

	// ErrEmptyTopic is returned when registering a handler without a topic
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrNilJob is returned when registering a handler without a job function
	ErrNilJob = errors.New("job function cannot be nil")

	// ErrNegativeInterval is returned when a polling interval is below zero
	ErrNegativeInterval = errors.New("polling interval cannot be negative")

	// ErrSchedulerClosed is returned when the scheduler has been stopped
	ErrSchedulerClosed = errors.New("scheduler is stopped")

	// ErrJobPanicked is reported to the failure path when a job function panics
	ErrJobPanicked = errors.New("job function panicked")
)

// Capability names reported by ValidationError, in the order they are checked.
const (
	CapabilityBackend           = "backend"
	CapabilityGet               = "get"
	CapabilityPut               = "put"
	CapabilityTopicEnsureExists = "topicEnsureExists"
	CapabilityDel               = "del"
	CapabilityRelease           = "release"
	CapabilityMessage           = "message"
)

// ValidationError identifies the first capability a backend is missing.
type ValidationError struct {
	Capability string
	Reason     string
}

func newValidationError(capability, reason string) *ValidationError {
	return &ValidationError{Capability: capability, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid queue backend: missing capability %q: %s", e.Capability, e.Reason)
}

// Is reports ErrInvalidBackend so callers can use errors.Is without a type assertion.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidBackend
}
