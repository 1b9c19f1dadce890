package admin

import "errors"

var (
	// ErrStart indicates that the server failed to start.
	ErrStart = errors.New("failed to start admin server")
	// ErrShutdown indicates that graceful shutdown failed.
	ErrShutdown = errors.New("failed to shutdown admin server gracefully")
	// ErrHandlerNotFound is reported for unknown handler identifiers.
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrBodyTooLarge is reported when a submitted message exceeds the size limit.
	ErrBodyTooLarge = errors.New("message body too large")
)
