package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// MigrationStep moves the stored data from one schema version to the next.
// Steps may run more than once and must be safe to repeat.
type MigrationStep struct {
	Name  string
	Apply func(ctx context.Context, store repository.Store) error
}

// DefaultMigrationSteps returns the registered data migrations in order.
// Step i moves the schema version from i to i+1.
func DefaultMigrationSteps() []MigrationStep {
	return []MigrationStep{
		{Name: "default preferences", Apply: ensureBlob(types.BlobPreferences, codec.Preferences, types.DefaultPreferences)},
		{Name: "default nudge settings", Apply: ensureBlob(types.BlobNudgeSettings, codec.NudgeSettings, types.DefaultNudgeSettings)},
		{Name: "default tab grouping settings", Apply: ensureBlob(types.BlobTabGroupingSettings, codec.TabGroupingSettings, types.DefaultTabGroupingSettings)},
		{Name: "normalize journal tags", Apply: normalizeJournalTags},
	}
}

// MigrationManager applies the data migrations tracked by the schemaVersion blob
type MigrationManager struct {
	store  repository.Store
	steps  []MigrationStep
	logger logging.Logger
}

// NewMigrationManager creates a manager with the default steps. store must
// accept operations before the readiness gate opens.
func NewMigrationManager(store repository.Store, logger logging.Logger) *MigrationManager {
	return NewMigrationManagerWithSteps(store, DefaultMigrationSteps(), logger)
}

// NewMigrationManagerWithSteps creates a manager with custom steps
func NewMigrationManagerWithSteps(store repository.Store, steps []MigrationStep, logger logging.Logger) *MigrationManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MigrationManager{store: store, steps: steps, logger: logger}
}

// TargetVersion is the schema version this build expects
func (m *MigrationManager) TargetVersion() int {
	return len(m.steps)
}

// CurrentVersion returns the persisted schema version, 0 on a fresh install
func (m *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	version, _, err := repository.LoadBlob(ctx, m.store, types.BlobSchemaVersion, codec.SchemaVersion, 0)
	return version, err
}

// Run applies pending steps one at a time, persisting the version after each.
// A failed step leaves the version where it was.
func (m *MigrationManager) Run(ctx context.Context) error {
	const op = "MigrationManager.Run"

	version, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	target := m.TargetVersion()
	if version > target {
		return repoerrors.NewStoreErrorWithContext(op,
			fmt.Errorf("stored schema version %d is newer than supported version %d", version, target),
			repoerrors.ErrCodeSchema, map[string]string{"version": strconv.Itoa(version)})
	}
	if version == target {
		m.logger.Debug("Data schema up to date", "version", version)
		return nil
	}

	for version < target {
		step := m.steps[version]
		start := time.Now()

		if err := step.Apply(ctx, m.store); err != nil {
			storeErr := repoerrors.NewStoreErrorWithContext(op, err, repoerrors.ClassifyError(err), map[string]string{
				"step":    step.Name,
				"version": strconv.Itoa(version),
			})
			logging.LogError(m.logger, storeErr, op, nil)
			return storeErr
		}
		if err := repository.SaveBlob(ctx, m.store, types.BlobSchemaVersion, codec.SchemaVersion, version+1); err != nil {
			return err
		}

		version++
		m.logger.Info("Applied data migration",
			"step", step.Name,
			"version", version,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// ensureBlob writes the default value only when key was never written
func ensureBlob[T any](key types.BlobKey, c codec.Codec[T], def func() T) func(context.Context, repository.Store) error {
	return func(ctx context.Context, store repository.Store) error {
		_, found, err := store.GetBlob(ctx, key)
		if err != nil || found {
			return err
		}
		data, err := c.Encode(def())
		if err != nil {
			return err
		}
		// A concurrent writer that got there first wins
		_, err = store.CompareAndSetBlob(ctx, key, data, 0)
		return err
	}
}

func normalizeJournalTags(ctx context.Context, store repository.Store) error {
	journal, _, err := repository.LoadBlob(ctx, store, types.BlobJournal, codec.Journal, map[string][]types.JournalEntry(nil))
	if err != nil {
		return err
	}
	if !journalNeedsNormalizing(journal) {
		return nil
	}

	_, err = repository.UpdateBlob(ctx, store, types.BlobJournal, codec.Journal,
		func() map[string][]types.JournalEntry { return map[string][]types.JournalEntry{} },
		func(j map[string][]types.JournalEntry) (map[string][]types.JournalEntry, error) {
			for date, entries := range j {
				for i := range entries {
					entries[i].Tags = types.NormalizeTags(entries[i].Tags)
				}
				j[date] = entries
			}
			return j, nil
		})
	return err
}

func journalNeedsNormalizing(journal map[string][]types.JournalEntry) bool {
	for _, entries := range journal {
		for _, e := range entries {
			if !slices.Equal(e.Tags, types.NormalizeTags(e.Tags)) {
				return true
			}
		}
	}
	return false
}
