package scheduler

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Config holds the environment-driven scheduler settings
type Config struct {
	SuicideThreshold int           `env:"SCHEDULER_SUICIDE_THRESHOLD" envDefault:"0"`
	DefaultInterval  time.Duration `env:"SCHEDULER_DEFAULT_INTERVAL" envDefault:"1s"`
}

// Option is a functional option for configuring a Scheduler
type Option func(*options)

type options struct {
	suicideThreshold int
	defaultInterval  time.Duration
	logger           *slog.Logger
	newID            func() string
	onSleep          func(HandlerInfo)
}

func defaultOptions() *options {
	return &options{
		defaultInterval: time.Second,
		logger:          slog.Default(),
		newID:           uuid.NewString,
	}
}

// WithConfig applies values loaded from the environment
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.SuicideThreshold >= 0 {
			o.suicideThreshold = cfg.SuicideThreshold
		}
		if cfg.DefaultInterval > 0 {
			o.defaultInterval = cfg.DefaultInterval
		}
	}
}

// WithSuicideThreshold sets how many consecutive unproductive polls put a
// handler to sleep. Zero disables sleeping.
func WithSuicideThreshold(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.suicideThreshold = n
		}
	}
}

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator replaces the random UUID handler identifiers.
// Generated identifiers that collide with a registered handler are not re-registered.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithSleepHook registers a callback invoked each time a handler falls asleep.
// It runs on the handler's goroutine after the loop has stopped, so it may call WakeUpHandler.
func WithSleepHook(fn func(HandlerInfo)) Option {
	return func(o *options) {
		o.onSleep = fn
	}
}

// HandlerOption tunes a single topic handler
type HandlerOption func(*handler)

// WithImmediateRepoll polls again without waiting after a successful job,
// which drains a backlog faster than the regular interval.
func WithImmediateRepoll() HandlerOption {
	return func(h *handler) {
		h.immediate = true
	}
}
