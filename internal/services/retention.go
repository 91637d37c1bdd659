package services

import (
	"context"
	"errors"
	"time"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// RetentionManager deletes data older than the retention window from both
// stores. SiteActivity is cumulative per domain and is never swept.
type RetentionManager struct {
	store       repository.Store
	clock       Clock
	logger      logging.Logger
	defaultDays int
}

// NewRetentionManager creates a retention manager over store
func NewRetentionManager(store repository.Store, clock Clock, logger logging.Logger) *RetentionManager {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionManager{
		store:       store,
		clock:       clock,
		logger:      logger,
		defaultDays: types.DefaultRetentionDays,
	}
}

// SetDefaultWindow sets the window used when Preferences leave retentionDays unset
func (rm *RetentionManager) SetDefaultWindow(days int) {
	if days > 0 {
		rm.defaultDays = days
	}
}

// Cutoff returns the first day kept by a sweep with the given window
func (rm *RetentionManager) Cutoff(windowDays int) time.Time {
	return startOfDay(rm.clock.Now()).AddDate(0, 0, -windowDays)
}

// ApplyRetention removes everything dated before today minus windowDays.
// Steps run independently; a failed step is logged and the sweep goes on,
// so the returned result is meaningful even when an error is returned.
func (rm *RetentionManager) ApplyRetention(ctx context.Context, windowDays int) (types.RetentionResult, error) {
	const op = "ApplyRetention"
	if windowDays < 0 {
		return types.RetentionResult{}, repoerrors.HandleValidationError(op, "windowDays", "", "cannot be negative")
	}
	start := time.Now()

	cutoffDay := rm.Cutoff(windowDays)
	cutoff := types.DateKey(cutoffDay)
	cutoffMillis := cutoffDay.UnixMilli()
	result := types.RetentionResult{Cutoff: cutoff}

	var errs []error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			logging.LogError(rm.logger, err, op+"."+name, map[string]interface{}{"cutoff": cutoff})
			errs = append(errs, err)
		}
	}

	step("dailyMetrics", func() (err error) {
		result.MetricsDeleted, err = rm.store.DailyMetrics().DeleteKeysBelow(ctx, cutoff)
		return err
	})
	step("behaviorPatterns", func() (err error) {
		result.PatternsDeleted, err = rm.store.Patterns().DeleteBelow(ctx, repository.IndexStartTime, cutoffMillis)
		return err
	})
	step("reports", func() (err error) {
		result.ReportsDeleted, err = rm.store.Reports().DeleteBelow(ctx, repository.IndexGeneratedAt, cutoffMillis)
		return err
	})
	step("reportArchive", func() (err error) {
		result.ArchiveDaysPruned, err = pruneBuckets[types.Report](ctx, rm.store, types.BlobReports, codec.ReportArchive, cutoff)
		return err
	})
	step("journal", func() (err error) {
		result.JournalDaysPruned, err = pruneBuckets[types.JournalEntry](ctx, rm.store, types.BlobJournal, codec.Journal, cutoff)
		return err
	})

	rm.logger.Info("Retention sweep completed",
		"cutoff", cutoff,
		"metrics_deleted", result.MetricsDeleted,
		"patterns_deleted", result.PatternsDeleted,
		"reports_deleted", result.ReportsDeleted,
		"archive_days_pruned", result.ArchiveDaysPruned,
		"journal_days_pruned", result.JournalDaysPruned,
		"failed_steps", len(errs),
		"duration_ms", time.Since(start).Milliseconds())

	return result, errors.Join(errs...)
}

// ApplyConfiguredRetention sweeps with the window from the Preferences blob
func (rm *RetentionManager) ApplyConfiguredRetention(ctx context.Context) (types.RetentionResult, error) {
	days, err := rm.Window(ctx)
	if err != nil {
		return types.RetentionResult{}, err
	}
	return rm.ApplyRetention(ctx, days)
}

// Window returns the configured retention window in days
func (rm *RetentionManager) Window(ctx context.Context) (int, error) {
	prefs, _, err := repository.LoadBlob(ctx, rm.store, types.BlobPreferences, codec.Preferences, types.Preferences{})
	if err != nil {
		return 0, err
	}
	if prefs.RetentionDays > 0 {
		return prefs.RetentionDays, nil
	}
	return rm.defaultDays, nil
}

// pruneBuckets drops date buckets keyed before cutoff. Nothing is written
// when no bucket qualifies.
func pruneBuckets[E any](ctx context.Context, kv repository.KeyValueStore, key types.BlobKey, c codec.Codec[map[string][]E], cutoff string) (int, error) {
	current, _, err := repository.LoadBlob(ctx, kv, key, c, nil)
	if err != nil {
		return 0, err
	}
	if countBefore(current, cutoff) == 0 {
		return 0, nil
	}

	pruned := 0
	_, err = repository.UpdateBlob(ctx, kv, key, c,
		func() map[string][]E { return map[string][]E{} },
		func(m map[string][]E) (map[string][]E, error) {
			pruned = 0
			for date := range m {
				if date < cutoff {
					delete(m, date)
					pruned++
				}
			}
			return m, nil
		})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

func countBefore[V any](m map[string]V, cutoff string) int {
	n := 0
	for date := range m {
		if date < cutoff {
			n++
		}
	}
	return n
}
