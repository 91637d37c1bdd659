package services

import (
	"context"
	"testing"
	"time"

	"scrollguard/internal/database"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"

	"github.com/stretchr/testify/require"
)

// setupStore returns an open store over a migrated in-memory database
func setupStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	dbService := database.NewSQLiteService(logging.NopLogger{})
	ctx := context.Background()
	require.NoError(t, dbService.Connect(ctx, database.TestConfig()))
	require.NoError(t, dbService.Migrate(ctx))
	t.Cleanup(func() { dbService.Close() })

	store := repository.NewSQLiteStore(dbService, repository.NewGate(), logging.NopLogger{})
	store.Gate().Open()
	return store
}

// clockAt returns a clock fixed at noon UTC of the given date
func clockAt(t *testing.T, date string) FixedClock {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return FixedClock{T: day.Add(12 * time.Hour)}
}

// millis returns the epoch milliseconds of an RFC 3339 timestamp
func millis(t *testing.T, ts string) int64 {
	t.Helper()
	v, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	return v.UnixMilli()
}
