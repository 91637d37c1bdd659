package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/types"
)

// Blob is one versioned entry of the key-value namespace
type Blob struct {
	Key       types.BlobKey
	Value     json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

func checkBlobKey(op string, key types.BlobKey) error {
	if !key.Valid() {
		return repoerrors.HandleValidationError(op, "key", string(key), "not in the blob namespace")
	}
	return nil
}

func checkBlobValue(op string, key types.BlobKey, value json.RawMessage) error {
	if len(value) == 0 || !json.Valid(value) {
		return repoerrors.HandleValidationError(op, "value", string(key), "value must be valid JSON")
	}
	return nil
}

func (s *SQLiteStore) blobError(op string, err error, key types.BlobKey) error {
	storeErr := repoerrors.WrapStorageErrorWithContext(op, err, map[string]string{"key": string(key)})
	logging.LogError(s.logger, storeErr, op, nil)
	return storeErr
}

// GetBlob returns the stored blob for key
func (s *SQLiteStore) GetBlob(ctx context.Context, key types.BlobKey) (Blob, bool, error) {
	const op = "GetBlob"
	if err := s.gate.check(op); err != nil {
		return Blob{}, false, err
	}
	if err := checkBlobKey(op, key); err != nil {
		return Blob{}, false, err
	}

	var (
		value     string
		version   int64
		updatedAt int64
	)
	err := s.q.QueryRowContext(ctx,
		"SELECT value, version, updated_at FROM blobs WHERE key = ?", string(key),
	).Scan(&value, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{Key: key}, false, nil
	}
	if err != nil {
		return Blob{}, false, s.blobError(op, err, key)
	}

	return Blob{
		Key:       key,
		Value:     json.RawMessage(value),
		Version:   version,
		UpdatedAt: time.UnixMilli(updatedAt),
	}, true, nil
}

// SetBlob replaces the value and bumps the version
func (s *SQLiteStore) SetBlob(ctx context.Context, key types.BlobKey, value json.RawMessage) error {
	const op = "SetBlob"
	if err := s.gate.check(op); err != nil {
		return err
	}
	if err := checkBlobKey(op, key); err != nil {
		return err
	}
	if err := checkBlobValue(op, key, value); err != nil {
		return err
	}
	start := time.Now()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO blobs (key, value, version, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = blobs.version + 1,
			updated_at = excluded.updated_at`,
		string(key), string(value), s.now().UnixMilli())
	if err != nil {
		return s.blobError(op, err, key)
	}

	logging.LogOperation(s.logger, op, time.Since(start), map[string]interface{}{"key": string(key), "bytes": len(value)})
	return nil
}

// RemoveBlob deletes the given keys. Missing keys are not an error.
func (s *SQLiteStore) RemoveBlob(ctx context.Context, keys ...types.BlobKey) error {
	const op = "RemoveBlob"
	if err := s.gate.check(op); err != nil {
		return err
	}
	for _, key := range keys {
		if err := checkBlobKey(op, key); err != nil {
			return err
		}
	}
	for _, key := range keys {
		if _, err := s.q.ExecContext(ctx, "DELETE FROM blobs WHERE key = ?", string(key)); err != nil {
			return s.blobError(op, err, key)
		}
	}
	return nil
}

// CompareAndSetBlob writes value only when the stored version equals expectedVersion
func (s *SQLiteStore) CompareAndSetBlob(ctx context.Context, key types.BlobKey, value json.RawMessage, expectedVersion int64) (bool, error) {
	const op = "CompareAndSetBlob"
	if err := s.gate.check(op); err != nil {
		return false, err
	}
	if err := checkBlobKey(op, key); err != nil {
		return false, err
	}
	if err := checkBlobValue(op, key, value); err != nil {
		return false, err
	}
	if expectedVersion < 0 {
		return false, repoerrors.HandleValidationError(op, "expectedVersion", string(key), "cannot be negative")
	}

	var (
		res sql.Result
		err error
	)
	now := s.now().UnixMilli()
	if expectedVersion == 0 {
		res, err = s.q.ExecContext(ctx,
			"INSERT INTO blobs (key, value, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT(key) DO NOTHING",
			string(key), string(value), now)
	} else {
		res, err = s.q.ExecContext(ctx,
			"UPDATE blobs SET value = ?, version = version + 1, updated_at = ? WHERE key = ? AND version = ?",
			string(value), now, string(key), expectedVersion)
	}
	if err != nil {
		return false, s.blobError(op, err, key)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, s.blobError(op, err, key)
	}
	return n == 1, nil
}
