package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger interface for store operations
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Level orders log severities
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively. Unknown names map to info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// DefaultLogger writes one JSON object per line
type DefaultLogger struct {
	mu    sync.Mutex
	out   *log.Logger
	level Level
}

// NewDefaultLogger creates a logger that writes info and above to stderr
func NewDefaultLogger() Logger {
	return NewLogger(os.Stderr, LevelInfo)
}

// NewLogger creates a logger writing entries at or above level to w
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		out:   log.New(w, "", 0),
		level: level,
	}
}

// logEntry represents a structured log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
}

// fieldsToMap converts the variadic fields slice to a map
// Expected format: key1, value1, key2, value2, ...
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			if key, ok := fields[i].(string); ok {
				result[key] = normalizeField(fields[i+1])
			} else {
				result[fmt.Sprintf("field_%d", i/2)] = fields[i]
				result[fmt.Sprintf("field_%d_value", i/2)] = normalizeField(fields[i+1])
			}
		} else {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
		}
	}

	return result
}

// errors marshal to {} otherwise
func normalizeField(v interface{}) interface{} {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

// logStructured logs a message with structured JSON format
func (l *DefaultLogger) logStructured(level Level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Fields:    fieldsToMap(fields),
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		fallbackFields := fmt.Sprintf("%v", fields)
		fallbackEntry := logEntry{
			Timestamp: entry.Timestamp,
			Level:     entry.Level,
			Message:   msg,
			Fields: map[string]interface{}{
				"original_fields": fallbackFields,
				"marshal_error":   err.Error(),
			},
		}

		if jsonBytes, err = json.Marshal(fallbackEntry); err != nil {
			l.out.Printf("[%s] %s %s", entry.Level, msg, fallbackFields)
			return
		}
	}

	l.out.Println(string(jsonBytes))
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.logStructured(LevelDebug, msg, fields)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.logStructured(LevelInfo, msg, fields)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.logStructured(LevelWarn, msg, fields)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.logStructured(LevelError, msg, fields)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// CodedError is implemented by classified store errors (declared here to avoid
// an import cycle with the errors package)
type CodedError interface {
	Error() string
	GetCode() string
	IsRetryable() bool
	GetContext() map[string]string
	GetTimestamp() time.Time
}

// LogStoreError logs a failed store operation with its classification
func LogStoreError(logger Logger, err error, operation string, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	if err == nil {
		return
	}

	var fields []interface{}
	if codedErr, ok := asCodedError(err); ok {
		fields = []interface{}{
			"operation", operation,
			"error_code", codedErr.GetCode(),
			"retryable", codedErr.IsRetryable(),
			"timestamp", codedErr.GetTimestamp(),
		}
		for k, v := range codedErr.GetContext() {
			fields = append(fields, k, v)
		}
	} else {
		fields = []interface{}{
			"operation", operation,
			"error_type", fmt.Sprintf("%T", err),
		}
	}

	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Error(fmt.Sprintf("Store error: %s", err.Error()), fields...)
}

// asCodedError walks the Unwrap chain looking for a CodedError
func asCodedError(err error) (CodedError, bool) {
	for err != nil {
		if coded, ok := err.(CodedError); ok {
			return coded, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// LogStoreOperation logs a completed store operation with its duration
func LogStoreOperation(logger Logger, operation string, duration time.Duration, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	fields := []interface{}{
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	}

	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Debug(fmt.Sprintf("Store operation completed: %s", operation), fields...)
}

// LogError is shorthand for LogStoreError
func LogError(logger Logger, err error, operation string, context map[string]interface{}) {
	LogStoreError(logger, err, operation, context)
}

// LogOperation is shorthand for LogStoreOperation
func LogOperation(logger Logger, operation string, duration time.Duration, context map[string]interface{}) {
	LogStoreOperation(logger, operation, duration, context)
}
