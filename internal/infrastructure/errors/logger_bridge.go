package errors

import (
	"fmt"

	"scrollguard/internal/infrastructure/logging"
)

// LoggerBridge adapts the logging.Logger interface to RetryLogger
type LoggerBridge struct {
	logger logging.Logger
}

// NewLoggerBridge creates a new bridge from logging.Logger to RetryLogger
func NewLoggerBridge(logger logging.Logger) RetryLogger {
	return &LoggerBridge{logger: logger}
}

// Printf implements RetryLogger interface by delegating to the logging.Logger
func (b *LoggerBridge) Printf(format string, v ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(fmt.Sprintf(format, v...))
	}
}

// SetDefaultRetryLogger routes retry messages to logger, or to the default logger when nil
func SetDefaultRetryLogger(logger logging.Logger) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	SetRetryLogger(NewLoggerBridge(logger))
}
