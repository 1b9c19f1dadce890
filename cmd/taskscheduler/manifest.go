package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/taskscheduler/pkg/config"
	"github.com/dmitrymomot/taskscheduler/pkg/logger"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Action is what a manifest handler does with each message.
type Action string

const (
	ActionLog     Action = "log"
	ActionForward Action = "forward"
	ActionFail    Action = "fail"
)

var (
	ErrInvalidManifest = errors.New("invalid handler manifest")
	ErrRejected        = errors.New("message rejected by handler")
)

// Manifest lists the topics to provision and the handlers to register at startup.
type Manifest struct {
	Topics   []string      `yaml:"topics"`
	Handlers []HandlerSpec `yaml:"handlers"`
}

// HandlerSpec describes one handler. A zero interval uses the scheduler default.
type HandlerSpec struct {
	Topic     string        `yaml:"topic"`
	Interval  time.Duration `yaml:"interval"`
	Action    Action        `yaml:"action"`
	Target    string        `yaml:"target"`
	Immediate bool          `yaml:"immediate"`
}

// loadManifest reads and validates the manifest. An empty path yields an empty manifest.
func loadManifest(path string) (Manifest, error) {
	var m Manifest
	if path == "" {
		return m, nil
	}
	if err := config.LoadYAML(path, &m); err != nil {
		return m, err
	}
	return m, m.Validate()
}

// Validate checks every handler entry and reports all problems at once.
func (m Manifest) Validate() error {
	var errs []error
	for i, t := range m.Topics {
		if strings.TrimSpace(t) == "" {
			errs = append(errs, fmt.Errorf("topics[%d]: %w", i, scheduler.ErrEmptyTopic))
		}
	}
	for i, h := range m.Handlers {
		if strings.TrimSpace(h.Topic) == "" {
			errs = append(errs, fmt.Errorf("handlers[%d]: %w", i, scheduler.ErrEmptyTopic))
		}
		if h.Interval < 0 {
			errs = append(errs, fmt.Errorf("handlers[%d]: %w", i, scheduler.ErrNegativeInterval))
		}
		switch h.Action {
		case ActionLog, ActionFail, "":
		case ActionForward:
			if strings.TrimSpace(h.Target) == "" {
				errs = append(errs, fmt.Errorf("handlers[%d]: forward requires a target topic", i))
			} else if h.Target == h.Topic {
				errs = append(errs, fmt.Errorf("handlers[%d]: cannot forward topic %q to itself", i, h.Topic))
			}
		default:
			errs = append(errs, fmt.Errorf("handlers[%d]: unknown action %q", i, h.Action))
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidManifest}, errs...)...)
	}
	return nil
}

// AllTopics returns every topic the manifest references, deduplicated in order of appearance.
func (m Manifest) AllTopics() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range m.Topics {
		add(t)
	}
	for _, h := range m.Handlers {
		add(h.Topic)
		if h.Action == ActionForward {
			add(h.Target)
		}
	}
	return out
}

// sender is the part of the scheduler a forwarding job needs.
type sender interface {
	SendMessage(ctx context.Context, topic string, body []byte) error
}

// jobFor builds the job function for a handler entry.
func jobFor(spec HandlerSpec, s sender, log *slog.Logger) scheduler.JobFunc {
	switch spec.Action {
	case ActionForward:
		return scheduler.Sync(func(ctx context.Context, topic string, body []byte) error {
			return s.SendMessage(ctx, spec.Target, body)
		})
	case ActionFail:
		return scheduler.Sync(func(ctx context.Context, topic string, body []byte) error {
			return ErrRejected
		})
	default:
		return scheduler.Sync(func(ctx context.Context, topic string, body []byte) error {
			log.InfoContext(ctx, "message received",
				slog.Int("size", len(body)),
				slog.String("body", preview(body)))
			return nil
		})
	}
}

// register provisions the manifest topics and adds its handlers.
func register(ctx context.Context, s *scheduler.Scheduler, m Manifest, log *slog.Logger) error {
	if err := s.EnsureTopicsExist(ctx, m.AllTopics()...); err != nil {
		return fmt.Errorf("provision topics: %w", err)
	}

	for _, spec := range m.Handlers {
		var opts []scheduler.HandlerOption
		if spec.Immediate {
			opts = append(opts, scheduler.WithImmediateRepoll())
		}
		interval := spec.Interval
		if interval == 0 {
			interval = s.DefaultInterval()
		}

		id, err := s.AddTopicHandler(spec.Topic, jobFor(spec, s, log), interval, opts...)
		if err != nil {
			return fmt.Errorf("register handler for topic %q: %w", spec.Topic, err)
		}
		log.Info("topic handler registered",
			logger.HandlerID(id),
			logger.Topic(spec.Topic),
			slog.String("action", string(actionName(spec.Action))),
			slog.Duration("interval", interval))
	}
	return nil
}

func actionName(a Action) Action {
	if a == "" {
		return ActionLog
	}
	return a
}

func preview(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
