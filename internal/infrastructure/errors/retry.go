package errors

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// RetryLogger defines the interface for logging retry operations
type RetryLogger interface {
	Printf(format string, v ...interface{})
}

// RetryConfig holds configuration for caller-side retry logic.
// Store operations never retry internally; callers opt in with these helpers.
type RetryConfig struct {
	MaxAttempts     int           // Maximum number of attempts
	InitialDelay    time.Duration // Initial delay between attempts
	MaxDelay        time.Duration // Maximum delay between attempts
	BackoffFactor   float64       // Exponential backoff factor
	Jitter          bool          // Whether to add jitter to delays
	RetryableErrors []ErrorCode   // Error codes worth another attempt
}

var retryLogger RetryLogger

// DefaultRetryConfig returns a retry configuration with sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		RetryableErrors: []ErrorCode{
			ErrCodeBusy,
			ErrCodeTimeout,
			ErrCodeStorageUnavailable,
		},
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// SetRetryLogger sets the package-level logger for retry operations
func SetRetryLogger(logger RetryLogger) {
	retryLogger = logger
}

func logRetryMessage(format string, v ...interface{}) {
	if retryLogger != nil {
		retryLogger.Printf(format, v...)
	}
}

func withRetryImpl(ctx context.Context, config *RetryConfig, operation RetryableOperation, operationName string) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if operationName == "" {
		operationName = "anonymous"
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				logRetryMessage("Store operation '%s' succeeded after %d attempts", operationName, attempt+1)
			}
			return nil
		}

		lastErr = err

		if !shouldRetry(err, config) {
			return err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateDelay(attempt, config)
		logRetryMessage("Store operation '%s' failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempt+1, config.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation '%s' cancelled during retry: %w", operationName, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation '%s' failed after %d attempts: %w", operationName, config.MaxAttempts, lastErr)
}

// WithRetry executes an operation with retry logic
func WithRetry(ctx context.Context, config *RetryConfig, operation RetryableOperation) error {
	return withRetryImpl(ctx, config, operation, "")
}

// WithRetryContext executes a named operation with retry logic
func WithRetryContext(ctx context.Context, config *RetryConfig, operation RetryableOperation, operationName string) error {
	return withRetryImpl(ctx, config, operation, operationName)
}

// RetryQuick provides a quick retry configuration for fast operations
func RetryQuick(ctx context.Context, operation RetryableOperation) error {
	config := &RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
		RetryableErrors: []ErrorCode{
			ErrCodeBusy,
			ErrCodeTimeout,
		},
	}
	return WithRetry(ctx, config, operation)
}

func shouldRetry(err error, config *RetryConfig) bool {
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		return false
	}
	if !storeErr.IsRetryable() {
		return false
	}
	return slices.Contains(config.RetryableErrors, storeErr.Code)
}

func calculateDelay(attempt int, config *RetryConfig) time.Duration {
	multiplier := 1.0
	for range attempt {
		multiplier *= config.BackoffFactor
	}

	delay := time.Duration(float64(config.InitialDelay) * multiplier)

	// Up to 25% jitter, applied before the cap
	if config.Jitter && delay > 0 {
		jitterAmount := time.Duration(float64(delay) * 0.25)
		if jitterAmount > 0 {
			delay += time.Duration(time.Now().UnixNano() % int64(jitterAmount))
		}
	}

	return min(delay, config.MaxDelay)
}
