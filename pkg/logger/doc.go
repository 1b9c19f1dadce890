// Package logger builds *slog.Logger instances for the scheduler and its
// backends and provides the attribute helpers used across the module.
//
// New creates a JSON or text logger configured by functional options. Every
// logger it returns is wrapped in LogHandlerDecorator, which injects
// attributes carried by the context passed to the *Context logging methods.
// The scheduler stores the handler id, topic and message id in the context it
// hands to job functions, so a job that logs with its context is tagged
// automatically.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "taskscheduler"),
//	    logger.WithLevelName(os.Getenv("LOG_LEVEL")),
//	)
//	logger.SetAsDefault(log)
//
//	log.Info("topic handler added",
//	    logger.Topic("emails"),
//	    logger.HandlerID(id),
//	)
//
// Error and Errors return empty attributes for nil errors, so they can be
// passed unconditionally.
package logger
