package repository

import (
	"scrollguard/internal/codec"
	"scrollguard/internal/types"
)

// Index names accepted by QueryByIndex, GetRecentByIndex and DeleteBelow
const (
	IndexType        = "type"
	IndexStartTime   = "startTime"
	IndexGeneratedAt = "generatedAt"
)

var dailyMetricsSchema = &schema[types.DailyMetric]{
	name:     "daily_metrics",
	table:    "daily_metrics",
	keyOf:    func(m types.DailyMetric) string { return m.Date },
	codec:    codec.DailyMetrics,
	validKey: types.ValidateDateKey,
}

var patternsSchema = &schema[types.BehaviorPattern]{
	name:  "behavior_patterns",
	table: "behavior_patterns",
	keyOf: func(p types.BehaviorPattern) string { return p.ID },
	codec: codec.Patterns,
	indexes: map[string]index[types.BehaviorPattern]{
		IndexType: {
			column:  "type",
			kind:    indexText,
			valueOf: func(p types.BehaviorPattern) any { return string(p.Type) },
		},
		IndexStartTime: {
			column:  "start_time",
			kind:    indexInteger,
			valueOf: func(p types.BehaviorPattern) any { return p.StartTime },
		},
	},
	// startTime never changes once stored
	immutable: "behavior_patterns.start_time = excluded.start_time",
}

var sitesSchema = &schema[types.SiteActivity]{
	name:         "site_activity",
	table:        "site_activity",
	keyOf:        func(s types.SiteActivity) string { return s.Domain },
	codec:        codec.Sites,
	normalizeKey: types.NormalizeDomain,
}

var reportsSchema = &schema[types.Report]{
	name:  "reports",
	table: "reports",
	keyOf: func(r types.Report) string { return r.ID },
	codec: codec.Reports,
	indexes: map[string]index[types.Report]{
		IndexGeneratedAt: {
			column:  "generated_at",
			kind:    indexInteger,
			valueOf: func(r types.Report) any { return r.GeneratedAt },
		},
	},
	// reports are immutable; re-putting identical content is a no-op
	immutable: "reports.value = excluded.value",
}
