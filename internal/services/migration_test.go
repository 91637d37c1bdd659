package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobVersions(t *testing.T, store repository.KeyValueStore) map[types.BlobKey]int64 {
	t.Helper()
	out := map[types.BlobKey]int64{}
	for _, key := range types.BlobKeys {
		blob, _, err := store.GetBlob(context.Background(), key)
		require.NoError(t, err)
		out[key] = blob.Version
	}
	return out
}

func TestMigrationManager_FreshInstall(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	mm := NewMigrationManager(store, logging.NopLogger{})

	version, err := mm.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, mm.Run(ctx))

	version, err = mm.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, version)
	assert.Equal(t, mm.TargetVersion(), version)

	prefs, _, err := repository.LoadBlob(ctx, store, types.BlobPreferences, codec.Preferences, types.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPreferences(), prefs)

	nudges, _, err := repository.LoadBlob(ctx, store, types.BlobNudgeSettings, codec.NudgeSettings, types.NudgeSettings{})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultNudgeSettings(), nudges)

	tabs, _, err := repository.LoadBlob(ctx, store, types.BlobTabGroupingSettings, codec.TabGroupingSettings, types.TabGroupingSettings{})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTabGroupingSettings(), tabs)
}

func TestMigrationManager_SecondRunIsNoOp(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	mm := NewMigrationManager(store, logging.NopLogger{})

	require.NoError(t, mm.Run(ctx))
	before := blobVersions(t, store)

	require.NoError(t, mm.Run(ctx))
	assert.Equal(t, before, blobVersions(t, store))
}

func TestMigrationManager_KeepsExistingBlobs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	prefs := types.DefaultPreferences()
	prefs.RetentionDays = 30
	require.NoError(t, repository.SaveBlob(ctx, store, types.BlobPreferences, codec.Preferences, prefs))

	require.NoError(t, NewMigrationManager(store, logging.NopLogger{}).Run(ctx))

	got, _, err := repository.LoadBlob(ctx, store, types.BlobPreferences, codec.Preferences, types.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, 30, got.RetentionDays)
}

func TestMigrationManager_NormalizesJournalTags(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBlob(ctx, types.BlobJournal, json.RawMessage(`{
		"2025-02-01": [{"id":"j1","timestamp":1,"date":"2025-02-01","text":"walk","tags":[" Focus","focus","","Work"]}]
	}`)))

	require.NoError(t, NewMigrationManager(store, logging.NopLogger{}).Run(ctx))

	journal, _, err := repository.LoadBlob(ctx, store, types.BlobJournal, codec.Journal, map[string][]types.JournalEntry{})
	require.NoError(t, err)
	require.Len(t, journal["2025-02-01"], 1)
	assert.Equal(t, []string{"focus", "work"}, journal["2025-02-01"][0].Tags)
}

func TestMigrationManager_FailedStepDoesNotAdvance(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	attempts := 0
	failing := errors.New("disk hiccup")
	steps := []MigrationStep{
		DefaultMigrationSteps()[0],
		{Name: "flaky", Apply: func(context.Context, repository.Store) error {
			attempts++
			if attempts == 1 {
				return failing
			}
			return nil
		}},
	}
	mm := NewMigrationManagerWithSteps(store, steps, logging.NopLogger{})

	err := mm.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, failing)

	version, err := mm.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version, "first step committed, second did not")

	require.NoError(t, mm.Run(ctx))
	version, err = mm.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, 2, attempts)
}

func TestMigrationManager_RejectsNewerSchema(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, repository.SaveBlob(ctx, store, types.BlobSchemaVersion, codec.SchemaVersion, 99))

	err := NewMigrationManager(store, logging.NopLogger{}).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, repoerrors.ErrCodeSchema, repoerrors.CodeOf(err))
}

func TestMigrationManager_RunsBeforeGateOpens(t *testing.T) {
	store := setupStore(t)
	store.Gate().Close()
	ctx := context.Background()

	err := NewMigrationManager(store, logging.NopLogger{}).Run(ctx)
	assert.True(t, repoerrors.IsStorageUnavailable(err))

	require.NoError(t, NewMigrationManager(store.Bootstrap(), logging.NopLogger{}).Run(ctx))
	store.Gate().Open()

	version, err := NewMigrationManager(store, logging.NopLogger{}).CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, version)
}
