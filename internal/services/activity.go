package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// ActivityService records the writes of the detection and aggregation
// collaborators: daily rollups, detected patterns and site visits
type ActivityService struct {
	store  repository.DocumentStore
	clock  Clock
	logger logging.Logger
}

// NewActivityService creates an activity service
func NewActivityService(store repository.DocumentStore, clock Clock, logger logging.Logger) *ActivityService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ActivityService{store: store, clock: clock, logger: logger}
}

// SaveDailyMetric replaces the rollup for m.Date
func (a *ActivityService) SaveDailyMetric(ctx context.Context, m types.DailyMetric) error {
	return a.store.DailyMetrics().Put(ctx, m)
}

// RecordPattern stores a detected episode, assigning an id and start time
// when the detector left them empty
func (a *ActivityService) RecordPattern(ctx context.Context, p types.BehaviorPattern) (types.BehaviorPattern, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.StartTime == 0 {
		p.StartTime = a.clock.Now().UnixMilli()
	}
	p = p.Canonical()
	if err := a.store.Patterns().Put(ctx, p); err != nil {
		return types.BehaviorPattern{}, err
	}
	a.logger.Debug("Pattern recorded", "id", p.ID, "type", string(p.Type))
	return p, nil
}

// RecentPatterns returns the latest patterns by start time, optionally of one type
func (a *ActivityService) RecentPatterns(ctx context.Context, kind types.PatternType, limit int) ([]types.BehaviorPattern, error) {
	if kind == "" {
		return a.store.Patterns().GetRecentByIndex(ctx, repository.IndexStartTime, limit)
	}

	patterns, err := a.store.Patterns().QueryByIndex(ctx, repository.IndexType, string(kind))
	if err != nil {
		return nil, err
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].StartTime != patterns[j].StartTime {
			return patterns[i].StartTime > patterns[j].StartTime
		}
		return patterns[i].ID > patterns[j].ID
	})
	if limit >= 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns, nil
}

// RecordSiteVisit merges update into the stored activity for its domain.
// Concurrent visits to the same domain are last writer wins.
func (a *ActivityService) RecordSiteVisit(ctx context.Context, update types.SiteActivity) (types.SiteActivity, error) {
	update.Domain = types.NormalizeDomain(update.Domain)
	existing, found, err := a.store.Sites().Get(ctx, update.Domain)
	if err != nil {
		return types.SiteActivity{}, err
	}

	merged := update
	if found {
		merged = MergeSiteActivity(existing, update)
	}
	if err := a.store.Sites().Put(ctx, merged); err != nil {
		return types.SiteActivity{}, err
	}
	return merged, nil
}

// TopSites returns the domains with the most time spent
func (a *ActivityService) TopSites(ctx context.Context, limit int) ([]types.SiteActivity, error) {
	sites, err := a.store.Sites().All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sites, func(i, j int) bool { return sites[i].Duration > sites[j].Duration })
	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}
	return sites, nil
}

// MergeSiteActivity folds an increment into the cumulative record. Durations
// and visits add up; a later lastVisit or a non-empty category replaces the
// stored value.
func MergeSiteActivity(existing, update types.SiteActivity) types.SiteActivity {
	merged := existing
	merged.Duration += update.Duration
	merged.Visits += update.Visits
	if update.Category != "" {
		merged.Category = update.Category
	}
	if update.LastVisit > merged.LastVisit {
		merged.LastVisit = update.LastVisit
	}
	return merged
}
