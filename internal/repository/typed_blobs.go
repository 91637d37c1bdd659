package repository

import (
	"context"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/types"
)

// MaxUpdateAttempts bounds the compare-and-swap loop of UpdateBlob
const MaxUpdateAttempts = 8

// LoadBlob decodes the blob stored under key, or returns def with version 0
// when it was never written
func LoadBlob[T any](ctx context.Context, kv KeyValueStore, key types.BlobKey, c codec.Codec[T], def T) (T, int64, error) {
	blob, found, err := kv.GetBlob(ctx, key)
	if err != nil {
		return def, 0, err
	}
	if !found {
		return def, 0, nil
	}

	v, err := c.Decode(blob.Value)
	if err != nil {
		var zero T
		return zero, 0, repoerrors.HandleDecodeError("LoadBlob", string(key), err)
	}
	return v, blob.Version, nil
}

// SaveBlob encodes v and replaces the blob (last writer wins)
func SaveBlob[T any](ctx context.Context, kv KeyValueStore, key types.BlobKey, c codec.Codec[T], v T) error {
	data, err := c.Encode(v)
	if err != nil {
		return repoerrors.NewStoreErrorWithContext("SaveBlob", err, repoerrors.ErrCodeValidation, map[string]string{
			"key": string(key),
		})
	}
	return kv.SetBlob(ctx, key, data)
}

// UpdateBlob applies fn as a read-modify-write guarded by the blob version.
// fn may run more than once and must not have side effects beyond its
// argument, which is freshly decoded (or built by newDefault) on every
// attempt. Returns the value that was written.
func UpdateBlob[T any](ctx context.Context, kv KeyValueStore, key types.BlobKey, c codec.Codec[T], newDefault func() T, fn func(T) (T, error)) (T, error) {
	var zero T
	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		current, version, err := LoadBlob(ctx, kv, key, c, newDefault())
		if err != nil {
			return zero, err
		}

		next, err := fn(current)
		if err != nil {
			return zero, err
		}

		data, err := c.Encode(next)
		if err != nil {
			return zero, repoerrors.NewStoreErrorWithContext("UpdateBlob", err, repoerrors.ErrCodeValidation, map[string]string{
				"key": string(key),
			})
		}

		ok, err := kv.CompareAndSetBlob(ctx, key, data, version)
		if err != nil {
			return zero, err
		}
		if ok {
			return next, nil
		}
		if err := ctx.Err(); err != nil {
			return zero, repoerrors.WrapStorageError("UpdateBlob", err)
		}
	}
	return zero, repoerrors.HandleConflictError("UpdateBlob", string(key), MaxUpdateAttempts)
}
