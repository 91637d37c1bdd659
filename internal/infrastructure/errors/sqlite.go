package errors

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// classifySQLiteError classifies errors from either supported driver.
// Returns ErrCodeUnknown if err does not come from a SQLite driver.
func classifySQLiteError(err error) ErrorCode {
	if code := classifyMattnError(err); code != ErrCodeUnknown {
		return code
	}
	return classifyModerncError(err)
}

// classifyMattnError classifies github.com/mattn/go-sqlite3 errors
func classifyMattnError(err error) ErrorCode {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return ErrCodeUnknown
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey,
		sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
		return ErrCodeValidation
	}

	return classifyPrimaryCode(int(sqliteErr.Code))
}

// classifyModerncError classifies modernc.org/sqlite errors
func classifyModerncError(err error) ErrorCode {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return ErrCodeUnknown
	}
	// Extended codes carry the primary code in the low byte
	return classifyPrimaryCode(sqliteErr.Code() & 0xff)
}

// classifyPrimaryCode maps a primary SQLite result code onto the taxonomy.
// Both drivers expose the same numeric codes.
func classifyPrimaryCode(code int) ErrorCode {
	switch code {
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_MISMATCH, sqlite3lib.SQLITE_TOOBIG:
		return ErrCodeValidation
	case sqlite3lib.SQLITE_FULL:
		return ErrCodeQuotaExceeded
	case sqlite3lib.SQLITE_CORRUPT, sqlite3lib.SQLITE_NOTADB:
		return ErrCodeCorruption
	case sqlite3lib.SQLITE_PERM, sqlite3lib.SQLITE_AUTH, sqlite3lib.SQLITE_READONLY:
		return ErrCodePermission
	case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
		return ErrCodeBusy
	case sqlite3lib.SQLITE_IOERR, sqlite3lib.SQLITE_CANTOPEN, sqlite3lib.SQLITE_NOLFS, sqlite3lib.SQLITE_PROTOCOL:
		return ErrCodeStorageIO
	case sqlite3lib.SQLITE_SCHEMA:
		return ErrCodeSchema
	case sqlite3lib.SQLITE_MISUSE, sqlite3lib.SQLITE_INTERNAL:
		return ErrCodeInternal
	case sqlite3lib.SQLITE_INTERRUPT:
		return ErrCodeTimeout
	default:
		return ErrCodeUnknown
	}
}
