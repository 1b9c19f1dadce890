package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/taskscheduler/pkg/logger"
)

// HealthCheck is a dependency probe such as a backend ping.
type HealthCheck func(ctx context.Context) error

// HealthCheckHandler serves liveness and readiness.
//
//   - With no checks it returns 200 OK with body "ALIVE".
//   - Otherwise every check runs with the request context; if all succeed it
//     returns 200 OK with body "READY", else 503 with body "NOT_READY".
func HealthCheckHandler(log *slog.Logger, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
