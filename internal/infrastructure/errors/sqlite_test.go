package errors

import (
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestClassifySQLiteError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"nil error", nil, ErrCodeUnknown},
		{"non-sqlite error", errors.New("some other error"), ErrCodeUnknown},
		{"unique constraint", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrCodeValidation},
		{"generic constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, ErrCodeValidation},
		{"disk full", sqlite3.Error{Code: sqlite3.ErrFull}, ErrCodeQuotaExceeded},
		{"corrupt", sqlite3.Error{Code: sqlite3.ErrCorrupt}, ErrCodeCorruption},
		{"not a database", sqlite3.Error{Code: sqlite3.ErrNotADB}, ErrCodeCorruption},
		{"read only", sqlite3.Error{Code: sqlite3.ErrReadonly}, ErrCodePermission},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, ErrCodeBusy},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, ErrCodeBusy},
		{"io error", sqlite3.Error{Code: sqlite3.ErrIoErr}, ErrCodeStorageIO},
		{"cannot open", sqlite3.Error{Code: sqlite3.ErrCantOpen}, ErrCodeStorageIO},
		{"schema", sqlite3.Error{Code: sqlite3.ErrSchema}, ErrCodeSchema},
		{"misuse", sqlite3.Error{Code: sqlite3.ErrMisuse}, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifySQLiteError(tt.err))
		})
	}
}
