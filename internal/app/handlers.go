package app

import (
	"context"
	"encoding/json"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/types"
)

const (
	defaultStatsDays   = 7
	defaultRecentLimit = 20
)

var (
	emptyObject = struct{}{}
	emptyList   = []struct{}{}
)

type daysRequest struct {
	Days int `json:"days"`
}

type rangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type retentionRequest struct {
	WindowDays *int `json:"windowDays"`
}

type journalRequest struct {
	Text string     `json:"text"`
	Mood types.Mood `json:"mood"`
	Tags []string   `json:"tags"`
}

type patternsRequest struct {
	Type  types.PatternType `json:"type"`
	Limit int               `json:"limit"`
}

type limitRequest struct {
	Limit int `json:"limit"`
}

// StorageUsage is the GET_STORAGE_USAGE reply
type StorageUsage struct {
	types.QuotaUsage
	NearLimit bool `json:"nearLimit"`
}

// ready returns the wired components or StorageUnavailable before Startup
// has finished
func (a *App) ready(op string) (*components, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.components == nil || !a.gate.IsOpen() {
		return nil, repoerrors.HandleUnavailable(op, "store is not initialized")
	}
	return a.components, nil
}

// on wraps a handler body with the readiness check and payload decoding
func on[P any](a *App, t MessageType, fn func(ctx context.Context, c *components, p P) (any, error)) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		c, err := a.ready(string(t))
		if err != nil {
			return nil, err
		}
		p, err := decodePayload[P](string(t), payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, c, p)
	}
}

// onRaw is on without payload decoding
func onRaw(a *App, t MessageType, fn func(ctx context.Context, c *components, payload json.RawMessage) (any, error)) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		c, err := a.ready(string(t))
		if err != nil {
			return nil, err
		}
		return fn(ctx, c, payload)
	}
}

func (a *App) registerHandlers() {
	r := a.router

	r.Handle(MsgGetProductivityStats, on(a, MsgGetProductivityStats, func(ctx context.Context, c *components, p daysRequest) (any, error) {
		if p.Days == 0 {
			p.Days = defaultStatsDays
		}
		return c.aggregator.ProductivityStats(ctx, p.Days)
	}), emptyObject)

	r.Handle(MsgGetHistoricalActivity, on(a, MsgGetHistoricalActivity, func(ctx context.Context, c *components, p rangeRequest) (any, error) {
		if p.From == "" && p.To == "" {
			days := p.Days
			if days <= 0 {
				days = defaultStatsDays
			}
			now := a.clock.Now()
			p.From = types.DateKey(now.AddDate(0, 0, -(days - 1)))
			p.To = types.DateKey(now)
		}
		return c.aggregator.HistoricalActivity(ctx, p.From, p.To)
	}), emptyList)

	r.Handle(MsgGetKnowledgeGraph, on(a, MsgGetKnowledgeGraph, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		return c.aggregator.KnowledgeGraph(ctx)
	}), emptyObject)

	r.Handle(MsgGetRAGContext, on(a, MsgGetRAGContext, func(ctx context.Context, c *components, p queryRequest) (any, error) {
		return c.aggregator.RAGContext(ctx, p.Query, p.Limit)
	}), emptyObject)

	r.Handle(MsgGetStorageUsage, on(a, MsgGetStorageUsage, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		u, err := c.quota.Usage(ctx)
		if err != nil {
			return nil, err
		}
		return StorageUsage{QuotaUsage: u, NearLimit: c.quota.NearLimit(u)}, nil
	}), emptyObject)

	r.Handle(MsgExportData, on(a, MsgExportData, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		return c.exports.ExportAll(ctx)
	}), emptyObject)

	r.HandleWrite(MsgImportData, onRaw(a, MsgImportData, func(ctx context.Context, c *components, payload json.RawMessage) (any, error) {
		if err := c.exports.ImportAll(ctx, payload); err != nil {
			return nil, err
		}
		return emptyObject, nil
	}), emptyObject)

	r.Handle(MsgApplyRetention, on(a, MsgApplyRetention, func(ctx context.Context, c *components, p retentionRequest) (any, error) {
		if p.WindowDays == nil {
			return c.retention.ApplyConfiguredRetention(ctx)
		}
		return c.retention.ApplyRetention(ctx, *p.WindowDays)
	}), emptyObject)

	r.HandleWrite(MsgAddJournalEntry, on(a, MsgAddJournalEntry, func(ctx context.Context, c *components, p journalRequest) (any, error) {
		return c.journal.AddEntry(ctx, p.Text, p.Mood, p.Tags)
	}), emptyObject)

	r.Handle(MsgGetJournalEntries, on(a, MsgGetJournalEntries, func(ctx context.Context, c *components, p rangeRequest) (any, error) {
		if p.From == "" && p.To == "" {
			today := types.DateKey(a.clock.Now())
			p.From, p.To = today, today
		}
		return c.journal.Entries(ctx, p.From, p.To)
	}), emptyList)

	r.Handle(MsgSearchJournal, on(a, MsgSearchJournal, func(ctx context.Context, c *components, p queryRequest) (any, error) {
		return c.journal.Search(ctx, p.Query, p.Limit)
	}), emptyList)

	r.HandleWrite(MsgSaveDailyMetric, onRaw(a, MsgSaveDailyMetric, func(ctx context.Context, c *components, payload json.RawMessage) (any, error) {
		m, err := codec.DailyMetrics.Decode(payload)
		if err != nil {
			return nil, repoerrors.HandleValidationError(string(MsgSaveDailyMetric), "payload", "", err.Error())
		}
		if err := c.activity.SaveDailyMetric(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	}), emptyObject)

	r.HandleWrite(MsgRecordPattern, on(a, MsgRecordPattern, func(ctx context.Context, c *components, p types.BehaviorPattern) (any, error) {
		return c.activity.RecordPattern(ctx, p)
	}), emptyObject)

	r.Handle(MsgGetRecentPatterns, on(a, MsgGetRecentPatterns, func(ctx context.Context, c *components, p patternsRequest) (any, error) {
		if p.Limit <= 0 {
			p.Limit = defaultRecentLimit
		}
		return c.activity.RecentPatterns(ctx, p.Type, p.Limit)
	}), emptyList)

	r.HandleWrite(MsgSaveSiteActivity, on(a, MsgSaveSiteActivity, func(ctx context.Context, c *components, p types.SiteActivity) (any, error) {
		return c.activity.RecordSiteVisit(ctx, p)
	}), emptyObject)

	r.Handle(MsgGetTopSites, on(a, MsgGetTopSites, func(ctx context.Context, c *components, p limitRequest) (any, error) {
		return c.activity.TopSites(ctx, p.Limit)
	}), emptyList)

	r.HandleWrite(MsgSaveReport, on(a, MsgSaveReport, func(ctx context.Context, c *components, p types.Report) (any, error) {
		return c.reports.Save(ctx, p)
	}), emptyObject)

	r.Handle(MsgGetRecentReports, on(a, MsgGetRecentReports, func(ctx context.Context, c *components, p limitRequest) (any, error) {
		if p.Limit <= 0 {
			p.Limit = defaultRecentLimit
		}
		return c.reports.Recent(ctx, p.Limit)
	}), emptyList)

	r.HandleWrite(MsgClearReports, on(a, MsgClearReports, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		if err := c.reports.ClearReports(ctx); err != nil {
			return nil, err
		}
		return emptyObject, nil
	}), emptyObject)

	r.Handle(MsgGetPreferences, on(a, MsgGetPreferences, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		return c.settings.Preferences(ctx)
	}), emptyObject)

	r.HandleWrite(MsgUpdatePreferences, onRaw(a, MsgUpdatePreferences, func(ctx context.Context, c *components, payload json.RawMessage) (any, error) {
		return c.settings.UpdatePreferences(ctx, patch[types.Preferences](MsgUpdatePreferences, payload))
	}), emptyObject)

	r.Handle(MsgGetNudgeSettings, on(a, MsgGetNudgeSettings, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		return c.settings.NudgeSettings(ctx)
	}), emptyObject)

	r.HandleWrite(MsgUpdateNudgeSettings, onRaw(a, MsgUpdateNudgeSettings, func(ctx context.Context, c *components, payload json.RawMessage) (any, error) {
		return c.settings.UpdateNudgeSettings(ctx, patch[types.NudgeSettings](MsgUpdateNudgeSettings, payload))
	}), emptyObject)

	r.Handle(MsgGetTabGroupingSettings, on(a, MsgGetTabGroupingSettings, func(ctx context.Context, c *components, _ struct{}) (any, error) {
		return c.settings.TabGroupingSettings(ctx)
	}), emptyObject)

	r.HandleWrite(MsgUpdateTabGroupingSettings, onRaw(a, MsgUpdateTabGroupingSettings, func(ctx context.Context, c *components, payload json.RawMessage) (any, error) {
		return c.settings.UpdateTabGroupingSettings(ctx, patch[types.TabGroupingSettings](MsgUpdateTabGroupingSettings, payload))
	}), emptyObject)
}

// patch overlays the fields present in payload onto the current value
func patch[T any](t MessageType, payload json.RawMessage) func(T) (T, error) {
	return func(current T) (T, error) {
		if len(payload) == 0 {
			return current, nil
		}
		if err := json.Unmarshal(payload, &current); err != nil {
			return current, repoerrors.HandleValidationError(string(t), "payload", "", err.Error())
		}
		return current, nil
	}
}
