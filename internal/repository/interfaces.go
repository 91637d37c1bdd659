package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"scrollguard/internal/types"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DocumentStore exposes the four indexed collections
type DocumentStore interface {
	DailyMetrics() *Collection[types.DailyMetric]
	Patterns() *Collection[types.BehaviorPattern]
	Sites() *Collection[types.SiteActivity]
	Reports() *Collection[types.Report]
}

// KeyValueStore is the versioned blob namespace
type KeyValueStore interface {
	// GetBlob returns the raw blob. found is false when the key was never written.
	GetBlob(ctx context.Context, key types.BlobKey) (blob Blob, found bool, err error)
	// SetBlob replaces the whole value. Concurrent writers: last writer wins.
	SetBlob(ctx context.Context, key types.BlobKey, value json.RawMessage) error
	RemoveBlob(ctx context.Context, keys ...types.BlobKey) error
	// CompareAndSetBlob writes only if the stored version equals expectedVersion.
	// An expectedVersion of 0 means the key must not exist yet.
	CompareAndSetBlob(ctx context.Context, key types.BlobKey, value json.RawMessage, expectedVersion int64) (bool, error)
}

// Store is the complete local data store
type Store interface {
	DocumentStore
	KeyValueStore

	// WithTransaction runs fn against a store bound to one SQL transaction.
	// fn must only use the store it is given.
	WithTransaction(ctx context.Context, fn func(tx Store) error) error
}
