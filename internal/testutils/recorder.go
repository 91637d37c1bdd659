// Package testutils holds test doubles shared across packages
package testutils

import (
	"fmt"
	"strings"
	"sync"
)

// LogCall is one captured log invocation
type LogCall struct {
	Level  string
	Msg    string
	Fields []any
}

// FieldMap converts the alternating key-value fields to a map. Malformed
// pairs are reported as an error after the well-formed ones are collected.
func (c LogCall) FieldMap() (map[string]any, error) {
	out := make(map[string]any, len(c.Fields)/2)
	var problems []string
	for i := 0; i < len(c.Fields); i += 2 {
		if i+1 >= len(c.Fields) {
			problems = append(problems, fmt.Sprintf("missing value for key at index %d", i))
			continue
		}
		key, ok := c.Fields[i].(string)
		if !ok {
			problems = append(problems, fmt.Sprintf("key at index %d is %T, not string", i, c.Fields[i]))
			continue
		}
		out[key] = c.Fields[i+1]
	}
	if len(problems) > 0 {
		return out, fmt.Errorf("malformed log fields: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

// RecordingLogger captures log calls for assertions. Safe for concurrent use.
type RecordingLogger struct {
	mu    sync.Mutex
	calls []LogCall
}

func (r *RecordingLogger) record(level, msg string, fields []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, LogCall{Level: level, Msg: msg, Fields: fields})
}

func (r *RecordingLogger) Debug(msg string, fields ...any) { r.record("DEBUG", msg, fields) }
func (r *RecordingLogger) Info(msg string, fields ...any)  { r.record("INFO", msg, fields) }
func (r *RecordingLogger) Warn(msg string, fields ...any)  { r.record("WARN", msg, fields) }
func (r *RecordingLogger) Error(msg string, fields ...any) { r.record("ERROR", msg, fields) }

// Calls returns the captured calls at level, or all calls if level is empty
func (r *RecordingLogger) Calls(level string) []LogCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []LogCall
	for _, c := range r.calls {
		if level == "" || c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether any call at level has a message containing substr
func (r *RecordingLogger) Contains(level, substr string) bool {
	_, ok := r.Find(level, substr)
	return ok
}

// Find returns the first call at level whose message contains substr
func (r *RecordingLogger) Find(level, substr string) (LogCall, bool) {
	for _, c := range r.Calls(level) {
		if strings.Contains(c.Msg, substr) {
			return c, true
		}
	}
	return LogCall{}, false
}
