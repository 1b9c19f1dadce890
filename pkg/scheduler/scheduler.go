package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/taskscheduler/pkg/async"
	"github.com/dmitrymomot/taskscheduler/pkg/logger"
)

// Scheduler polls a queue backend on behalf of registered topic handlers.
// Each handler runs its own strictly sequential poll cycle.
type Scheduler struct {
	backend  Backend
	handlers map[string]*handler
	mu       sync.Mutex
	wg       sync.WaitGroup

	suicideThreshold int
	defaultInterval  time.Duration
	logger           *slog.Logger
	newID            func() string
	onSleep          func(HandlerInfo)

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New creates a scheduler bound to the given backend.
// A nil backend fails validation and no scheduler is returned.
func New(backend Backend, opts ...Option) (*Scheduler, error) {
	if err := ValidateBackend(backend); err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		backend:          backend,
		handlers:         make(map[string]*handler),
		suicideThreshold: options.suicideThreshold,
		defaultInterval:  options.defaultInterval,
		logger:           options.logger.With(logger.Component("scheduler")),
		newID:            options.newID,
		onSleep:          options.onSleep,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

// NewFromAny validates a dynamically supplied backend and creates a scheduler for it.
// The candidate's message type may be any concrete type exposing the Message methods.
func NewFromAny(candidate any, opts ...Option) (*Scheduler, error) {
	if b, ok := candidate.(Backend); ok {
		return New(b, opts...)
	}
	rb, err := inspectBackend(candidate)
	if err != nil {
		return nil, err
	}
	return New(rb, opts...)
}

// DefaultInterval returns the interval callers should use when none is configured.
func (s *Scheduler) DefaultInterval() time.Duration {
	return s.defaultInterval
}

// AddTopicHandler registers a job for a topic and starts polling it in the background.
// It returns the handler identifier used by RemoveTopicHandler and WakeUpHandler.
// If the generated identifier is already registered the call is a no-op returning it.
func (s *Scheduler) AddTopicHandler(topic string, job JobFunc, interval time.Duration, opts ...HandlerOption) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", ErrEmptyTopic
	}
	if job == nil {
		return "", ErrNilJob
	}
	if interval < 0 {
		return "", ErrNegativeInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSchedulerClosed
	}

	id := s.newID()
	if _, exists := s.handlers[id]; exists {
		s.logger.Debug("handler identifier collision, keeping existing handler",
			logger.HandlerID(id),
			logger.Topic(topic))
		return id, nil
	}

	h := &handler{
		id:           id,
		topic:        topic,
		job:          job,
		interval:     interval,
		registeredAt: time.Now(),
		state:        StatePolling,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ctx, h.cancel = context.WithCancel(s.ctx)

	s.handlers[id] = h
	s.startLocked(h)

	s.logger.Info("topic handler added",
		logger.HandlerID(id),
		logger.Topic(topic),
		slog.Duration("interval", interval))

	return id, nil
}

// RemoveTopicHandler stops a handler and forgets it.
// It returns false if the identifier is unknown.
func (s *Scheduler) RemoveTopicHandler(id string) bool {
	s.mu.Lock()
	h, ok := s.handlers[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.handlers, id)
	h.state = StateRemoved
	h.cancel()
	s.mu.Unlock()

	s.logger.Info("topic handler removed",
		logger.HandlerID(id),
		logger.Topic(h.topic))

	return true
}

// WakeUpHandler resumes polling for a sleeping handler and resets its failure counter.
// Unknown identifiers and handlers that are awake are ignored.
func (s *Scheduler) WakeUpHandler(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handlers[id]
	if !ok || !h.asleep || s.closed {
		return
	}

	h.asleep = false
	h.pollFailures = 0
	h.state = StatePolling
	s.startLocked(h)

	s.logger.Info("topic handler woken up",
		logger.HandlerID(id),
		logger.Topic(h.topic))
}

// Handler returns a snapshot of one registered handler.
func (s *Scheduler) Handler(id string) (HandlerInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handlers[id]
	if !ok {
		return HandlerInfo{}, false
	}
	return h.info(), true
}

// Handlers returns snapshots of all registered handlers ordered by registration time.
func (s *Scheduler) Handlers() []HandlerInfo {
	return s.collect(func(*handler) bool { return true })
}

// TopicHandlers returns snapshots of the handlers watching a topic.
func (s *Scheduler) TopicHandlers(topic string) []HandlerInfo {
	return s.collect(func(h *handler) bool { return h.topic == topic })
}

func (s *Scheduler) collect(keep func(*handler) bool) []HandlerInfo {
	s.mu.Lock()
	infos := make([]HandlerInfo, 0, len(s.handlers))
	for _, h := range s.handlers {
		if keep(h) {
			infos = append(infos, h.info())
		}
	}
	s.mu.Unlock()

	slices.SortFunc(infos, func(a, b HandlerInfo) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// EnsureTopicExists provisions a topic on the backend.
func (s *Scheduler) EnsureTopicExists(ctx context.Context, topic string) error {
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopic
	}
	if err := s.backend.TopicEnsureExists(ctx, topic); err != nil {
		return fmt.Errorf("ensure topic %q exists: %w", topic, err)
	}
	return nil
}

// EnsureTopicsExist provisions several topics concurrently.
// All failures are returned joined together.
func (s *Scheduler) EnsureTopicsExist(ctx context.Context, topics ...string) error {
	futures := make([]*async.Future[string], 0, len(topics))
	for _, topic := range topics {
		futures = append(futures, async.Async(ctx, topic, func(ctx context.Context, topic string) (string, error) {
			return topic, s.EnsureTopicExists(ctx, topic)
		}))
	}
	_, err := async.WaitAll(futures...)
	return err
}

// SendMessage submits a message body to a topic.
func (s *Scheduler) SendMessage(ctx context.Context, topic string, body []byte) error {
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopic
	}
	if err := s.backend.Put(ctx, topic, body); err != nil {
		return fmt.Errorf("send message to topic %q: %w", topic, err)
	}
	return nil
}

// Stop cancels every handler and waits for their loops to exit.
// A job in flight sees its context cancelled; Stop returns only after it has
// signalled and its message was deleted or released, so jobs must honour ctx.
// Handlers stay listed with state StateRemoved.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, h := range s.handlers {
		h.state = StateRemoved
	}
	s.cancel()
	s.mu.Unlock()

	s.logger.Info("scheduler stopping, waiting for handlers to finish")
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Run returns a function suitable for errgroup that stops the scheduler once ctx is done.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		s.Stop()
		return nil
	}
}

// startLocked launches the poll loop for h. Callers must hold s.mu.
func (s *Scheduler) startLocked(h *handler) {
	s.wg.Add(1)
	go s.run(h)
}
