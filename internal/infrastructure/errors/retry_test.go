package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() *RetryConfig {
	config := DefaultRetryConfig()
	config.InitialDelay = 1 * time.Millisecond
	config.Jitter = false
	return config
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, config.InitialDelay)
	assert.Equal(t, 5*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.True(t, config.Jitter)
	assert.ElementsMatch(t,
		[]ErrorCode{ErrCodeBusy, ErrCodeTimeout, ErrCodeStorageUnavailable},
		config.RetryableErrors)
}

func TestWithRetry_Success(t *testing.T) {
	callCount := 0
	err := WithRetry(context.Background(), DefaultRetryConfig(), func() error {
		callCount++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestWithRetry_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		callCount++
		if callCount < 3 {
			return NewStoreError("open", errors.New("database is locked"), ErrCodeBusy)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestWithRetry_NonRetryableError(t *testing.T) {
	callCount := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		callCount++
		return NewStoreError("get", errors.New("not found"), ErrCodeNotFound)
	})

	require.Error(t, err)
	assert.Equal(t, 1, callCount)
	assert.True(t, IsNotFound(err))
}

func TestWithRetry_MaxAttemptsExceeded(t *testing.T) {
	config := fastRetryConfig()
	callCount := 0
	err := WithRetry(context.Background(), config, func() error {
		callCount++
		return NewStoreError("open", errors.New("not ready"), ErrCodeStorageUnavailable)
	})

	require.Error(t, err)
	assert.Equal(t, config.MaxAttempts, callCount)
	assert.Contains(t, err.Error(), "operation 'anonymous' failed after 3 attempts")
	assert.True(t, IsStorageUnavailable(err))
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig()
	config.Jitter = false

	callCount := 0
	err := WithRetryContext(ctx, config, func() error {
		callCount++
		if callCount == 1 {
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
		}
		return NewStoreError("open", errors.New("busy"), ErrCodeBusy)
	}, "connect")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "operation 'connect' cancelled during retry")
	assert.Equal(t, 1, callCount)
}

func TestWithRetry_NilConfig(t *testing.T) {
	callCount := 0
	err := WithRetry(context.Background(), nil, func() error {
		callCount++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestShouldRetry(t *testing.T) {
	config := DefaultRetryConfig()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"busy", NewStoreError("t", errors.New("locked"), ErrCodeBusy), true},
		{"timeout", NewStoreError("t", errors.New("timeout"), ErrCodeTimeout), true},
		{"unavailable", NewStoreError("t", errors.New("closed"), ErrCodeStorageUnavailable), true},
		{"not found", NewStoreError("t", errors.New("missing"), ErrCodeNotFound), false},
		{"decode", NewStoreError("t", errors.New("bad shape"), ErrCodeDecode), false},
		{"plain error", errors.New("regular error"), false},
		{"conflict not in config", NewStoreError("t", errors.New("cas"), ErrCodeConflict), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldRetry(tt.err, config))
		})
	}
}

func TestCalculateDelay(t *testing.T) {
	config := &RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second},
		{5, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, calculateDelay(tt.attempt, config), "attempt %d", tt.attempt)
	}
}

func TestCalculateDelay_WithJitter(t *testing.T) {
	config := &RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}

	delay := calculateDelay(0, config)
	assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
	assert.LessOrEqual(t, delay, 125*time.Millisecond)
}

func TestRetryQuick(t *testing.T) {
	callCount := 0
	err := RetryQuick(context.Background(), func() error {
		callCount++
		return NewStoreError("t", errors.New("closed"), ErrCodeStorageUnavailable)
	})

	require.Error(t, err)
	assert.Equal(t, 1, callCount, "RetryQuick only retries busy and timeout")
}
