package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode classifies store failures
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeNotFound
	ErrCodeValidation
	ErrCodeStorageUnavailable
	ErrCodeStorageIO
	ErrCodeDecode
	ErrCodeInvalidImport
	ErrCodeQuotaExceeded
	ErrCodeConflict
	ErrCodeBusy
	ErrCodeTimeout
	ErrCodePermission
	ErrCodeCorruption
	ErrCodeSchema
	ErrCodeInternal
)

// String returns a string representation of the error code
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeValidation:
		return "VALIDATION"
	case ErrCodeStorageUnavailable:
		return "STORAGE_UNAVAILABLE"
	case ErrCodeStorageIO:
		return "STORAGE_IO"
	case ErrCodeDecode:
		return "DECODE"
	case ErrCodeInvalidImport:
		return "INVALID_IMPORT_FORMAT"
	case ErrCodeQuotaExceeded:
		return "QUOTA_EXCEEDED"
	case ErrCodeConflict:
		return "CONFLICT"
	case ErrCodeBusy:
		return "BUSY"
	case ErrCodeTimeout:
		return "TIMEOUT"
	case ErrCodePermission:
		return "PERMISSION"
	case ErrCodeCorruption:
		return "CORRUPTION"
	case ErrCodeSchema:
		return "SCHEMA"
	case ErrCodeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// StoreError is a classified store failure with operation context
type StoreError struct {
	Op        string            // operation name
	Err       error             // underlying error
	Code      ErrorCode         // error classification
	Retryable bool              // whether a caller may retry
	Context   map[string]string // additional context information
	Timestamp time.Time         // when the error occurred
}

func (e *StoreError) Error() string {
	if e == nil {
		return "store error"
	}

	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Code != ErrCodeUnknown {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code.String()))
	}

	if e.Retryable {
		parts = append(parts, "retryable=true")
	}

	// Context keys are sorted so messages are stable
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
		}
	}

	contextStr := ""
	if len(parts) > 0 {
		contextStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}

	if e.Err != nil {
		return e.Err.Error() + contextStr
	}
	return "store error" + contextStr
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *StoreError by code, otherwise defers to the wrapped error
func (e *StoreError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*StoreError); ok {
		return e.Code == t.Code
	}
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable
func (e *StoreError) IsRetryable() bool {
	if e == nil {
		return false
	}
	return e.Retryable
}

// GetCode returns the error code as a string (for the logging package)
func (e *StoreError) GetCode() string {
	if e == nil {
		return ErrCodeUnknown.String()
	}
	return e.Code.String()
}

// GetContext returns the error context (for the logging package)
func (e *StoreError) GetContext() map[string]string {
	if e == nil || e.Context == nil {
		return make(map[string]string)
	}
	return e.Context
}

// GetTimestamp returns the error timestamp (for the logging package)
func (e *StoreError) GetTimestamp() time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.Timestamp
}

// WithContext adds context information to the error by mutating the receiver.
// Not safe once the error has been shared between goroutines.
func (e *StoreError) WithContext(key, value string) *StoreError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// NewStoreError creates a new store error with the given parameters
func NewStoreError(op string, err error, code ErrorCode) *StoreError {
	return &StoreError{
		Op:        op,
		Err:       err,
		Code:      code,
		Retryable: isRetryableCode(code),
		Context:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// NewStoreErrorWithContext creates a new store error with additional context
func NewStoreErrorWithContext(op string, err error, code ErrorCode, context map[string]string) *StoreError {
	storeErr := NewStoreError(op, err, code)
	if context != nil {
		storeErr.Context = make(map[string]string, len(context))
		for k, v := range context {
			storeErr.Context[k] = v
		}
	}
	return storeErr
}

// isRetryableCode reports whether a caller can expect a later attempt to succeed.
// The store never retries on its own.
func isRetryableCode(code ErrorCode) bool {
	switch code {
	case ErrCodeStorageUnavailable, ErrCodeBusy, ErrCodeTimeout, ErrCodeConflict:
		return true
	default:
		return false
	}
}

// CodeOf returns the code of the first StoreError in err's chain
func CodeOf(err error) ErrorCode {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return ErrCodeUnknown
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound checks if the error is a "not found" error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsStorageUnavailable checks if the store was used before initialization finished
func IsStorageUnavailable(err error) bool { return hasCode(err, ErrCodeStorageUnavailable) }

// IsStorageIO checks if the error is a medium failure
func IsStorageIO(err error) bool { return hasCode(err, ErrCodeStorageIO) }

// IsDecode checks if a stored value failed shape validation
func IsDecode(err error) bool { return hasCode(err, ErrCodeDecode) }

// IsInvalidImport checks if an import document was rejected before commit
func IsInvalidImport(err error) bool { return hasCode(err, ErrCodeInvalidImport) }

// IsQuotaExceeded checks if the medium rejected a write for lack of space
func IsQuotaExceeded(err error) bool { return hasCode(err, ErrCodeQuotaExceeded) }

// IsConflict checks if a compare-and-swap write lost the race
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsBusy checks if the error is a busy/locked error
func IsBusy(err error) bool { return hasCode(err, ErrCodeBusy) }

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsCorruption checks if the error is a corruption error
func IsCorruption(err error) bool { return hasCode(err, ErrCodeCorruption) }

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Retryable
	}
	return false
}
