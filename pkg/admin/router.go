package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskscheduler/pkg/logger"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Scheduler is the part of *scheduler.Scheduler the admin API drives.
type Scheduler interface {
	Handlers() []scheduler.HandlerInfo
	TopicHandlers(topic string) []scheduler.HandlerInfo
	Handler(id string) (scheduler.HandlerInfo, bool)
	WakeUpHandler(id string)
	RemoveTopicHandler(id string) bool
	EnsureTopicExists(ctx context.Context, topic string) error
	SendMessage(ctx context.Context, topic string, body []byte) error
}

// Option configures the admin router
type Option func(*api)

// WithLogger sets the logger for request and error logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *api) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHealthChecks registers readiness probes for GET /healthz.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(a *api) {
		a.checks = append(a.checks, checks...)
	}
}

// WithMaxBodyBytes caps submitted message bodies. Zero or less keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(a *api) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

type api struct {
	scheduler Scheduler
	logger    *slog.Logger
	checks    []HealthCheck
	maxBody   int64
}

// Router builds the admin HTTP API:
//
//	GET    /healthz
//	GET    /handlers[?topic=name]
//	GET    /handlers/{id}
//	POST   /handlers/{id}/wake
//	DELETE /handlers/{id}
//	PUT    /topics/{topic}
//	POST   /topics/{topic}/messages
func Router(s Scheduler, opts ...Option) chi.Router {
	a := &api{
		scheduler: s,
		logger:    slog.Default(),
		maxBody:   1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("admin"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/healthz", HealthCheckHandler(a.logger, a.checks...))

	r.Route("/handlers", func(r chi.Router) {
		r.Get("/", a.listHandlers)
		r.Get("/{id}", a.getHandler)
		r.Post("/{id}/wake", a.wakeHandler)
		r.Delete("/{id}", a.removeHandler)
	})

	r.Route("/topics/{topic}", func(r chi.Router) {
		r.Put("/", a.ensureTopic)
		r.Post("/messages", a.sendMessage)
	})

	return r
}

func (a *api) listHandlers(w http.ResponseWriter, r *http.Request) {
	var infos []scheduler.HandlerInfo
	if topic := r.URL.Query().Get("topic"); topic != "" {
		infos = a.scheduler.TopicHandlers(topic)
	} else {
		infos = a.scheduler.Handlers()
	}
	a.respond(w, r, http.StatusOK, Response{Data: infos, Meta: &Meta{Total: len(infos)}})
}

func (a *api) getHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := a.scheduler.Handler(id)
	if !ok {
		a.fail(w, r, fmt.Errorf("%w: %s", ErrHandlerNotFound, id))
		return
	}
	a.respond(w, r, http.StatusOK, Response{Data: info})
}

// wakeHandler always succeeds; waking an unknown or awake handler is a no-op.
func (a *api) wakeHandler(w http.ResponseWriter, r *http.Request) {
	a.scheduler.WakeUpHandler(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) removeHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.scheduler.RemoveTopicHandler(id) {
		a.fail(w, r, fmt.Errorf("%w: %s", ErrHandlerNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) ensureTopic(w http.ResponseWriter, r *http.Request) {
	if err := a.scheduler.EnsureTopicExists(r.Context(), chi.URLParam(r, "topic")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) sendMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		a.fail(w, r, err)
		return
	}

	if err := a.scheduler.SendMessage(r.Context(), chi.URLParam(r, "topic"), body); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) respond(w http.ResponseWriter, r *http.Request, status int, body Response) {
	if err := writeJSON(w, status, body); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to write response", logger.Error(err))
	}
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "admin request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err))
	}
	a.respond(w, r, status, Response{Error: &ErrorDetail{Code: code, Message: err.Error()}})
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		a.logger.DebugContext(r.Context(), "admin request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logger.Duration(time.Since(start)))
	})
}
