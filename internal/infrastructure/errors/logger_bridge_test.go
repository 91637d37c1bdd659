package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"scrollguard/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerBridge_ReportsRetries(t *testing.T) {
	rec := &testutils.RecordingLogger{}
	SetDefaultRetryLogger(rec)
	t.Cleanup(func() { SetRetryLogger(nil) })

	config := DefaultRetryConfig()
	config.InitialDelay = time.Millisecond
	config.Jitter = false

	calls := 0
	err := WithRetryContext(context.Background(), config, func() error {
		calls++
		if calls == 1 {
			return NewStoreError("open", errors.New("locked"), ErrCodeBusy)
		}
		return nil
	}, "connect")

	require.NoError(t, err)
	assert.True(t, rec.Contains("WARN", "Store operation 'connect' failed (attempt 1/3)"))
	assert.True(t, rec.Contains("WARN", "succeeded after 2 attempts"))
}
