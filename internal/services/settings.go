package services

import (
	"context"

	"scrollguard/internal/codec"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// SettingsService reads and updates the singleton settings blobs. Updates
// are compare-and-swap guarded so concurrent panels do not lose changes.
type SettingsService struct {
	store  repository.KeyValueStore
	logger logging.Logger
}

// NewSettingsService creates a settings service
func NewSettingsService(store repository.KeyValueStore, logger logging.Logger) *SettingsService {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SettingsService{store: store, logger: logger}
}

// Preferences returns the stored preferences or the install defaults
func (s *SettingsService) Preferences(ctx context.Context) (types.Preferences, error) {
	prefs, _, err := repository.LoadBlob(ctx, s.store, types.BlobPreferences, codec.Preferences, types.DefaultPreferences())
	return prefs, err
}

// UpdatePreferences applies fn to the current preferences
func (s *SettingsService) UpdatePreferences(ctx context.Context, fn func(types.Preferences) (types.Preferences, error)) (types.Preferences, error) {
	return updateSetting(ctx, s, types.BlobPreferences, codec.Preferences, types.DefaultPreferences, fn)
}

// NudgeSettings returns the stored nudge settings or the install defaults
func (s *SettingsService) NudgeSettings(ctx context.Context) (types.NudgeSettings, error) {
	n, _, err := repository.LoadBlob(ctx, s.store, types.BlobNudgeSettings, codec.NudgeSettings, types.DefaultNudgeSettings())
	return n, err
}

// UpdateNudgeSettings applies fn to the current nudge settings
func (s *SettingsService) UpdateNudgeSettings(ctx context.Context, fn func(types.NudgeSettings) (types.NudgeSettings, error)) (types.NudgeSettings, error) {
	return updateSetting(ctx, s, types.BlobNudgeSettings, codec.NudgeSettings, types.DefaultNudgeSettings, fn)
}

// TabGroupingSettings returns the stored tab grouping settings or the install defaults
func (s *SettingsService) TabGroupingSettings(ctx context.Context) (types.TabGroupingSettings, error) {
	tg, _, err := repository.LoadBlob(ctx, s.store, types.BlobTabGroupingSettings, codec.TabGroupingSettings, types.DefaultTabGroupingSettings())
	return tg, err
}

// UpdateTabGroupingSettings applies fn to the current tab grouping settings
func (s *SettingsService) UpdateTabGroupingSettings(ctx context.Context, fn func(types.TabGroupingSettings) (types.TabGroupingSettings, error)) (types.TabGroupingSettings, error) {
	return updateSetting(ctx, s, types.BlobTabGroupingSettings, codec.TabGroupingSettings, types.DefaultTabGroupingSettings, fn)
}

func updateSetting[T any](ctx context.Context, s *SettingsService, key types.BlobKey, c codec.Codec[T], def func() T, fn func(T) (T, error)) (T, error) {
	v, err := repository.UpdateBlob(ctx, s.store, key, c, def, fn)
	if err != nil {
		logging.LogError(s.logger, err, "UpdateSettings", map[string]interface{}{"key": string(key)})
		return v, err
	}
	s.logger.Info("Settings updated", "key", string(key))
	return v, nil
}
