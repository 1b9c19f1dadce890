package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/taskscheduler/pkg/logger"
)

// run drives one handler until it is removed, stopped or falls asleep.
// The next cycle only starts after the previous one has fully resolved,
// so polls for the same handler never overlap.
func (s *Scheduler) run(h *handler) {
	defer s.wg.Done()

	for {
		if !s.transition(h, StatePolling) {
			return
		}

		delay, ok := s.cycle(h)
		if !ok {
			return
		}

		if !s.wait(h, delay) {
			return
		}
	}
}

// cycle performs one poll and returns the delay before the next one.
// ok is false when the loop must stop.
func (s *Scheduler) cycle(h *handler) (delay time.Duration, ok bool) {
	msg, err := s.backend.Get(h.ctx, h.topic)
	if h.ctx.Err() != nil {
		if err == nil && !isNilValue(msg) {
			s.release(h, msg)
		}
		return 0, false
	}

	s.mu.Lock()
	h.lastPollAt = time.Now()
	s.mu.Unlock()

	switch {
	case errors.Is(err, ErrNoMessage), err == nil && isNilValue(msg):
		return s.handleEmpty(h)
	case err != nil:
		s.logger.Error("failed to poll topic",
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.Error(err))
		return s.reschedule(h), true
	}

	if !s.transition(h, StateDispatching) {
		s.release(h, msg)
		return 0, false
	}

	return s.dispatch(h, msg)
}

// handleEmpty counts an empty poll and decides between sleeping and rescheduling.
func (s *Scheduler) handleEmpty(h *handler) (time.Duration, bool) {
	s.mu.Lock()
	if h.ctx.Err() != nil {
		s.mu.Unlock()
		return 0, false
	}

	h.pollFailures++
	if s.suicideThreshold > 0 && h.pollFailures >= s.suicideThreshold {
		h.asleep = true
		h.state = StateAsleep
		info := h.info()
		s.mu.Unlock()

		s.logger.Info("topic handler fell asleep",
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.PollFailures(info.PollFailures))

		if s.onSleep != nil {
			s.onSleep(info)
		}
		return 0, false
	}

	h.state = StateScheduled
	s.mu.Unlock()

	return h.interval, true
}

// handleFailure counts a failed job. Failures never put a handler to sleep.
func (s *Scheduler) handleFailure(h *handler) time.Duration {
	s.mu.Lock()
	h.pollFailures++
	s.mu.Unlock()

	return s.reschedule(h)
}

// reschedule schedules the next poll after the regular interval without
// touching the failure counter.
func (s *Scheduler) reschedule(h *handler) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.state != StateRemoved {
		h.state = StateScheduled
	}
	return h.interval
}

// dispatch hands the message to the job and applies the lifecycle operation
// matching the outcome.
func (s *Scheduler) dispatch(h *handler, msg Message) (time.Duration, bool) {
	start := time.Now()
	result := make(chan error, 1)
	var once sync.Once
	done := func(err error) {
		once.Do(func() { result <- err })
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job function panicked",
					logger.HandlerID(h.id),
					logger.Topic(h.topic),
					logger.MessageID(msg.ID()),
					slog.Any("panic", r))
				done(fmt.Errorf("%w: %v", ErrJobPanicked, r))
			}
		}()
		jobCtx := logger.WithContextAttrs(h.ctx,
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.MessageID(msg.ID()))
		h.job(jobCtx, h.topic, msg.Body(), done)
	}()

	// The message stays claimed until the job signals, even if the handler
	// is removed meanwhile. The job sees its context cancelled.
	var jobErr error
	select {
	case jobErr = <-result:
	case <-h.ctx.Done():
		s.logger.Warn("handler stopped while job in flight, waiting for completion",
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.MessageID(msg.ID()))
		jobErr = <-result
	}
	stopped := h.ctx.Err() != nil

	// Lifecycle calls outlive removal so the message is never left in flight.
	ctx := context.WithoutCancel(h.ctx)

	if jobErr == nil {
		if err := msg.Del(ctx); err != nil {
			s.logger.Error("failed to delete message",
				logger.HandlerID(h.id),
				logger.Topic(h.topic),
				logger.MessageID(msg.ID()),
				logger.Error(err))
		}

		s.mu.Lock()
		h.pollFailures = 0
		h.processed++
		if h.state != StateRemoved {
			h.state = StateScheduled
		}
		s.mu.Unlock()

		s.logger.Debug("message processed",
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.MessageID(msg.ID()),
			logger.Duration(time.Since(start)))

		if stopped {
			return 0, false
		}
		if h.immediate {
			return 0, true
		}
		return h.interval, true
	}

	s.logger.Warn("job failed, releasing message",
		logger.HandlerID(h.id),
		logger.Topic(h.topic),
		logger.MessageID(msg.ID()),
		logger.Duration(time.Since(start)),
		logger.Error(jobErr))

	if err := msg.Release(ctx); err != nil {
		s.logger.Error("failed to release message",
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.MessageID(msg.ID()),
			logger.Error(err))
	}

	s.mu.Lock()
	h.failed++
	s.mu.Unlock()

	delay := s.handleFailure(h)
	return delay, !stopped
}

// release returns a message that will not be dispatched.
func (s *Scheduler) release(h *handler, msg Message) {
	if err := msg.Release(context.WithoutCancel(h.ctx)); err != nil {
		s.logger.Error("failed to release message",
			logger.HandlerID(h.id),
			logger.Topic(h.topic),
			logger.MessageID(msg.ID()),
			logger.Error(err))
	}
}

// transition records the handler state unless the handler was cancelled.
func (s *Scheduler) transition(h *handler, state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ctx.Err() != nil {
		return false
	}
	h.state = state
	return true
}

// wait blocks for the scheduling delay, returning false if the handler is cancelled first.
func (s *Scheduler) wait(h *handler, delay time.Duration) bool {
	if delay <= 0 {
		return h.ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-h.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
