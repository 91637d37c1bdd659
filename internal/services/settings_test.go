package services

import (
	"context"
	"errors"
	"testing"

	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_DefaultsUntilWritten(t *testing.T) {
	svc := NewSettingsService(setupStore(t), logging.NopLogger{})
	ctx := context.Background()

	prefs, err := svc.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPreferences(), prefs)

	nudges, err := svc.NudgeSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultNudgeSettings(), nudges)

	tabs, err := svc.TabGroupingSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTabGroupingSettings(), tabs)
}

func TestSettingsService_Update(t *testing.T) {
	store := setupStore(t)
	svc := NewSettingsService(store, logging.NopLogger{})
	ctx := context.Background()

	updated, err := svc.UpdatePreferences(ctx, func(p types.Preferences) (types.Preferences, error) {
		p.RetentionDays = 30
		return p, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.RetentionDays)

	prefs, err := svc.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, prefs.RetentionDays)
	assert.Equal(t, types.DefaultPreferences().DailyGoalMinutes, prefs.DailyGoalMinutes)

	_, err = svc.UpdateNudgeSettings(ctx, func(n types.NudgeSettings) (types.NudgeSettings, error) {
		n.QuietHoursStart = 24
		return n, nil
	})
	assert.True(t, repoerrors.IsValidation(err))

	refused := errors.New("refused")
	_, err = svc.UpdateTabGroupingSettings(ctx, func(types.TabGroupingSettings) (types.TabGroupingSettings, error) {
		return types.TabGroupingSettings{}, refused
	})
	assert.ErrorIs(t, err, refused)

	_, found, err := store.GetBlob(ctx, types.BlobNudgeSettings)
	require.NoError(t, err)
	assert.False(t, found)
}
