package scheduler

import (
	"context"
	"time"
)

// State is the position of a handler in its poll cycle.
type State string

const (
	StatePolling     State = "polling"
	StateDispatching State = "dispatching"
	StateScheduled   State = "scheduled"
	StateAsleep      State = "asleep"
	StateRemoved     State = "removed"
)

// Done is the completion signal handed to a job function.
// A nil error reports success; only the first call counts.
type Done func(err error)

// JobFunc processes one message body for a topic and must eventually call done.
// The function may return before calling done; the handler does no other work
// until the signal fires.
type JobFunc func(ctx context.Context, topic string, body []byte, done Done)

// Sync adapts a blocking function to a JobFunc, signalling its returned error.
func Sync(fn func(ctx context.Context, topic string, body []byte) error) JobFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, topic string, body []byte, done Done) {
		done(fn(ctx, topic, body))
	}
}

// HandlerInfo is a point-in-time snapshot of a registered handler.
type HandlerInfo struct {
	ID              string        `json:"id"`
	Topic           string        `json:"topic"`
	Interval        time.Duration `json:"interval"`
	ImmediateRepoll bool          `json:"immediate_repoll"`
	PollFailures    int           `json:"poll_failures"`
	Asleep          bool          `json:"asleep"`
	State           State         `json:"state"`
	Processed       uint64        `json:"processed"`
	Failed          uint64        `json:"failed"`
	RegisteredAt    time.Time     `json:"registered_at"`
	LastPollAt      *time.Time    `json:"last_poll_at,omitempty"`
}

// handler is the registry entry for one (topic, job) subscription.
// Mutable fields are guarded by Scheduler.mu.
type handler struct {
	id           string
	topic        string
	job          JobFunc
	interval     time.Duration
	immediate    bool
	registeredAt time.Time

	pollFailures int
	asleep       bool
	state        State
	processed    uint64
	failed       uint64
	lastPollAt   time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func (h *handler) info() HandlerInfo {
	info := HandlerInfo{
		ID:              h.id,
		Topic:           h.topic,
		Interval:        h.interval,
		ImmediateRepoll: h.immediate,
		PollFailures:    h.pollFailures,
		Asleep:          h.asleep,
		State:           h.state,
		Processed:       h.processed,
		Failed:          h.failed,
		RegisteredAt:    h.registeredAt,
	}
	if !h.lastPollAt.IsZero() {
		t := h.lastPollAt
		info.LastPollAt = &t
	}
	return info
}
