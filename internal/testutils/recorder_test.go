package testutils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCall_FieldMap(t *testing.T) {
	tests := []struct {
		name     string
		fields   []any
		expected map[string]any
		wantErr  string
	}{
		{name: "empty", fields: nil, expected: map[string]any{}},
		{name: "pairs", fields: []any{"key", "reports", "attempts", 8}, expected: map[string]any{"key": "reports", "attempts": 8}},
		{name: "odd length", fields: []any{"key", "reports", "orphan"}, expected: map[string]any{"key": "reports"}, wantErr: "missing value for key at index 2"},
		{name: "non-string key", fields: []any{42, "x", "ok", true}, expected: map[string]any{"ok": true}, wantErr: "key at index 0 is int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LogCall{Fields: tt.fields}.FieldMap()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRecordingLogger(t *testing.T) {
	r := &RecordingLogger{}
	r.Debug("opened", "path", ":memory:")
	r.Warn("skipped undecodable row", "key", "bad")
	r.Error("Store error: boom")

	assert.Len(t, r.Calls(""), 3)
	assert.Len(t, r.Calls("WARN"), 1)
	assert.True(t, r.Contains("ERROR", "boom"))
	assert.False(t, r.Contains("INFO", "boom"))

	call, ok := r.Find("WARN", "undecodable")
	require.True(t, ok)
	fields, err := call.FieldMap()
	require.NoError(t, err)
	assert.Equal(t, "bad", fields["key"])
}

func TestRecordingLogger_Concurrent(t *testing.T) {
	r := &RecordingLogger{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Info("tick")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Calls("INFO"), 20)
}
