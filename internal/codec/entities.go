package codec

import (
	"scrollguard/internal/types"
)

// Per-entity codecs. Required lists name the fields that must be present and
// non-null in the storable form.
var (
	DailyMetrics = Record[types.DailyMetric]{
		Entity:   "DailyMetric",
		Required: []string{"date", "totalTime", "productiveTime", "distractedTime", "interventions"},
	}

	Patterns = Record[types.BehaviorPattern]{
		Entity:   "BehaviorPattern",
		Required: []string{"id", "type", "startTime", "duration"},
	}

	Sites = Record[types.SiteActivity]{
		Entity:   "SiteActivity",
		Required: []string{"domain", "duration", "visits", "lastVisit"},
	}

	Reports = Record[types.Report]{
		Entity:   "Report",
		Required: []string{"id", "generatedAt", "insights"},
	}

	JournalEntries = Record[types.JournalEntry]{
		Entity:   "JournalEntry",
		Required: []string{"id", "timestamp", "date", "text"},
	}

	Preferences = Record[types.Preferences]{
		Entity:   "Preferences",
		Required: []string{"retentionDays", "trackingEnabled"},
	}

	NudgeSettings = Record[types.NudgeSettings]{
		Entity:   "NudgeSettings",
		Required: []string{"enabled", "thresholdMinutes", "cooldownMinutes"},
	}

	TabGroupingSettings = Record[types.TabGroupingSettings]{
		Entity:   "TabGroupingSettings",
		Required: []string{"enabled", "strategy"},
	}

	// ReportArchive is the reports blob. Keys are the generation date in the
	// writer's location, so element dates are not cross-checked.
	ReportArchive = Buckets[types.Report]{
		Entity:   "reports",
		Element:  Reports,
		ValidKey: types.ValidateDateKey,
	}

	// Journal is the journal blob
	Journal = Buckets[types.JournalEntry]{
		Entity:   "journal",
		Element:  JournalEntries,
		KeyOf:    func(e types.JournalEntry) string { return e.Date },
		ValidKey: types.ValidateDateKey,
	}

	SchemaVersion = Version{}
)
