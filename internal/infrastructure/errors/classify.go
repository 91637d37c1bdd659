package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ClassifyError classifies medium errors into store error codes
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}

	// Already classified
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}

	// Driver-specific codes are the most accurate source
	if code := classifySQLiteError(err); code != ErrCodeUnknown {
		return code
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrCodeNotFound
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return ErrCodeStorageUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTimeout
	}

	// Fall back to message matching for wrapped or driver-less errors
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "database is closed"):
		return ErrCodeStorageUnavailable
	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "database table is locked"):
		return ErrCodeBusy
	case strings.Contains(errStr, "database or disk is full"), strings.Contains(errStr, "no space left"):
		return ErrCodeQuotaExceeded
	case strings.Contains(errStr, "database disk image is malformed"):
		return ErrCodeCorruption
	case strings.Contains(errStr, "no such table"), strings.Contains(errStr, "no such column"):
		return ErrCodeSchema
	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "readonly database"):
		return ErrCodePermission
	case strings.Contains(errStr, "disk i/o error"), strings.Contains(errStr, "unable to open database"):
		return ErrCodeStorageIO
	default:
		return ErrCodeUnknown
	}
}

// WrapStorageError wraps a medium failure. Anything the classifier cannot
// name more precisely is reported as a StorageIOError.
func WrapStorageError(op string, err error) error {
	return WrapStorageErrorWithContext(op, err, nil)
}

// WrapStorageErrorWithContext wraps a medium failure with additional context
func WrapStorageErrorWithContext(op string, err error, contextMap map[string]string) error {
	if err == nil {
		return nil
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	code := ClassifyError(err)
	if code == ErrCodeUnknown {
		code = ErrCodeStorageIO
	}
	return NewStoreErrorWithContext(op, err, code, contextMap)
}

// HandleNotFound creates a standardized not found error
func HandleNotFound(op string, resource string, identifier string) error {
	contextMap := map[string]string{
		"resource":   resource,
		"identifier": identifier,
	}
	return NewStoreErrorWithContext(op, sql.ErrNoRows, ErrCodeNotFound, contextMap)
}

// HandleValidationError creates a standardized validation error
func HandleValidationError(op string, field string, value string, reason string) error {
	contextMap := map[string]string{
		"field":  field,
		"value":  value,
		"reason": reason,
	}
	return NewStoreErrorWithContext(op, errors.New("validation failed"), ErrCodeValidation, contextMap)
}

// HandleUnavailable creates the error returned when the store is used before
// initialization has completed
func HandleUnavailable(op string, details string) error {
	contextMap := map[string]string{
		"details": details,
	}
	return NewStoreErrorWithContext(op, errors.New("storage unavailable"), ErrCodeStorageUnavailable, contextMap)
}

// HandleDecodeError creates a standardized error for a stored value that fails
// shape validation
func HandleDecodeError(op string, resource string, cause error) error {
	contextMap := map[string]string{
		"resource": resource,
	}
	return NewStoreErrorWithContext(op, fmt.Errorf("decode %s: %w", resource, cause), ErrCodeDecode, contextMap)
}

// HandleInvalidImport creates the error returned when an import document fails
// pre-commit validation
func HandleInvalidImport(op string, field string, cause error) error {
	contextMap := map[string]string{
		"field": field,
	}
	return NewStoreErrorWithContext(op, fmt.Errorf("invalid import format: %w", cause), ErrCodeInvalidImport, contextMap)
}

// HandleConflictError creates a standardized error for a lost compare-and-swap
func HandleConflictError(op string, resource string, attempts int) error {
	contextMap := map[string]string{
		"resource": resource,
		"attempts": fmt.Sprintf("%d", attempts),
	}
	return NewStoreErrorWithContext(op, errors.New("concurrent update conflict"), ErrCodeConflict, contextMap)
}
