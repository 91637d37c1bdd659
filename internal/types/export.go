package types

// ExportFormatVersion is the version tag written into every export document
const ExportFormatVersion = 1

// ExportDocument is the portable snapshot of the whole dataset
type ExportDocument struct {
	Version             int                  `json:"version"`
	ExportDate          string               `json:"exportDate"`
	Reports             ReportArchive        `json:"reports"`
	Journal             Journal              `json:"journal"`
	Preferences         Preferences          `json:"preferences"`
	NudgeSettings       NudgeSettings        `json:"nudgeSettings"`
	TabGroupingSettings *TabGroupingSettings `json:"tabGroupingSettings,omitempty"`
	DailyMetrics        []DailyMetric        `json:"dailyMetrics"`
	BehaviorPatterns    []BehaviorPattern    `json:"behaviorPatterns"`
	SiteActivity        []SiteActivity       `json:"siteActivity"`
	ReportRecords       []Report             `json:"reportRecords"`
}

// QuotaUsage reports how much of the device quota the store occupies
type QuotaUsage struct {
	BytesUsed      int64   `json:"bytesUsed"`
	BytesAvailable int64   `json:"bytesAvailable"`
	PercentageUsed float64 `json:"percentageUsed"`
}

// RetentionResult summarizes one retention sweep
type RetentionResult struct {
	Cutoff            string `json:"cutoff"`
	MetricsDeleted    int64  `json:"metricsDeleted"`
	PatternsDeleted   int64  `json:"patternsDeleted"`
	ReportsDeleted    int64  `json:"reportsDeleted"`
	ArchiveDaysPruned int    `json:"archiveDaysPruned"`
	JournalDaysPruned int    `json:"journalDaysPruned"`
}

// Removed is the number of records and buckets the sweep deleted
func (r RetentionResult) Removed() int64 {
	return r.MetricsDeleted + r.PatternsDeleted + r.ReportsDeleted + int64(r.ArchiveDaysPruned) + int64(r.JournalDaysPruned)
}
