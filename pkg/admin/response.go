package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// Response is the JSON envelope every admin endpoint returns.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Meta  *Meta        `json:"meta,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// Meta describes list responses
type Meta struct {
	Total int `json:"total"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// errorStatus maps domain errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrHandlerNotFound):
		return http.StatusNotFound, "handler_not_found"
	case errors.Is(err, scheduler.ErrTopicNotFound):
		return http.StatusNotFound, "topic_not_found"
	case errors.Is(err, scheduler.ErrEmptyTopic):
		return http.StatusBadRequest, "invalid_topic"
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, scheduler.ErrSchedulerClosed):
		return http.StatusServiceUnavailable, "scheduler_stopped"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
