// Package scheduler polls a pluggable queue backend on behalf of topic handlers
// and dispatches every retrieved message to a user supplied job function.
//
// Backend is the queue contract (Get, Put, TopicEnsureExists) and Message
// carries the lifecycle of one delivery (Del, Release). Handlers are added,
// removed and woken by an opaque identifier. Every awake handler owns one
// goroutine that polls, dispatches, acknowledges or releases, then waits.
//
// # Poll cycle
//
// Each cycle asks the backend for one message. A successful job deletes the
// message and resets the handler's failure counter. A failed job releases the
// message for redelivery and increments the counter. An empty poll increments
// the counter as well, and once the counter reaches the suicide threshold the
// handler falls asleep and issues no more polls until WakeUpHandler is called.
// Only empty polls can put a handler to sleep; failing jobs keep being retried.
//
// The next cycle is scheduled only after the current one has resolved, so a
// slow job or a slow backend can never cause overlapping polls for the same
// handler.
//
// # Usage
//
//	import (
//	    "context"
//	    "time"
//
//	    "github.com/dmitrymomot/taskscheduler/pkg/backend/memory"
//	    "github.com/dmitrymomot/taskscheduler/pkg/scheduler"
//	)
//
//	func example(ctx context.Context) error {
//	    s, err := scheduler.New(memory.New(), scheduler.WithSuicideThreshold(10))
//	    if err != nil {
//	        return err
//	    }
//	    defer s.Stop()
//
//	    if err := s.EnsureTopicExists(ctx, "emails"); err != nil {
//	        return err
//	    }
//
//	    id, err := s.AddTopicHandler("emails", scheduler.Sync(
//	        func(ctx context.Context, topic string, body []byte) error {
//	            return send(ctx, body)
//	        }), time.Second)
//	    if err != nil {
//	        return err
//	    }
//
//	    // Later, after the handler fell asleep on an empty topic:
//	    s.WakeUpHandler(id)
//	    return nil
//	}
//
// # Backends
//
// Statically typed backends implement Backend directly. Backends loaded at
// runtime can be checked with ValidateBackend or passed to NewFromAny, which
// reports the first missing capability as a *ValidationError. Backends with
// no native release primitive implement Message.Release with Resubmit.
//
// # Error Handling
//
// Only construction fails hard. Empty polls and job failures are counted,
// backend errors are logged, and in every case the handler keeps polling.
package scheduler
