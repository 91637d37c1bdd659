package types

import (
	"errors"
	"fmt"
)

// BlobKey names one entry of the fixed key-value namespace
type BlobKey string

const (
	BlobReports             BlobKey = "reports"
	BlobJournal             BlobKey = "journal"
	BlobPreferences         BlobKey = "preferences"
	BlobSchemaVersion       BlobKey = "schemaVersion"
	BlobNudgeSettings       BlobKey = "nudgeSettings"
	BlobTabGroupingSettings BlobKey = "tabGroupingSettings"
)

// BlobKeys lists the whole namespace in a stable order
var BlobKeys = []BlobKey{
	BlobReports,
	BlobJournal,
	BlobPreferences,
	BlobSchemaVersion,
	BlobNudgeSettings,
	BlobTabGroupingSettings,
}

// Valid reports whether the key belongs to the namespace
func (k BlobKey) Valid() bool {
	for _, known := range BlobKeys {
		if k == known {
			return true
		}
	}
	return false
}

// DefaultRetentionDays is used when Preferences does not override it
const DefaultRetentionDays = 90

// Preferences holds user preferences
type Preferences struct {
	RetentionDays         int      `json:"retentionDays"`
	TrackingEnabled       bool     `json:"trackingEnabled"`
	DailyGoalMinutes      int      `json:"dailyGoalMinutes"`
	ProductiveCategories  []string `json:"productiveCategories"`
	DistractingCategories []string `json:"distractingCategories"`
}

// DefaultPreferences returns the preferences of a fresh install
func DefaultPreferences() Preferences {
	return Preferences{
		RetentionDays:         DefaultRetentionDays,
		TrackingEnabled:       true,
		DailyGoalMinutes:      240,
		ProductiveCategories:  []string{"work", "learning", "reference"},
		DistractingCategories: []string{"social", "video", "shopping", "news"},
	}
}

// Validate checks the preferences invariants
func (p Preferences) Validate() error {
	if p.RetentionDays < 0 {
		return fmt.Errorf("retentionDays cannot be negative, got %d", p.RetentionDays)
	}
	if p.DailyGoalMinutes < 0 {
		return fmt.Errorf("dailyGoalMinutes cannot be negative, got %d", p.DailyGoalMinutes)
	}
	return nil
}

// EffectiveRetentionDays returns the retention window, falling back to the default
func (p Preferences) EffectiveRetentionDays() int {
	if p.RetentionDays <= 0 {
		return DefaultRetentionDays
	}
	return p.RetentionDays
}

// NudgeSettings configures the intervention nudges
type NudgeSettings struct {
	Enabled          bool `json:"enabled"`
	ThresholdMinutes int  `json:"thresholdMinutes"`
	CooldownMinutes  int  `json:"cooldownMinutes"`
	QuietHoursStart  int  `json:"quietHoursStart"`
	QuietHoursEnd    int  `json:"quietHoursEnd"`
}

// DefaultNudgeSettings returns the nudge settings of a fresh install
func DefaultNudgeSettings() NudgeSettings {
	return NudgeSettings{
		Enabled:          true,
		ThresholdMinutes: 15,
		CooldownMinutes:  30,
		QuietHoursStart:  22,
		QuietHoursEnd:    7,
	}
}

// Validate checks the nudge settings invariants
func (n NudgeSettings) Validate() error {
	if n.ThresholdMinutes < 0 || n.CooldownMinutes < 0 {
		return errors.New("thresholdMinutes and cooldownMinutes cannot be negative")
	}
	if n.QuietHoursStart < 0 || n.QuietHoursStart > 23 || n.QuietHoursEnd < 0 || n.QuietHoursEnd > 23 {
		return errors.New("quiet hours must be between 0 and 23")
	}
	return nil
}

// TabGroupingSettings configures the tab grouping collaborator
type TabGroupingSettings struct {
	Enabled      bool   `json:"enabled"`
	Strategy     string `json:"strategy"`
	AutoCollapse bool   `json:"autoCollapse"`
}

// DefaultTabGroupingSettings returns the tab grouping settings of a fresh install
func DefaultTabGroupingSettings() TabGroupingSettings {
	return TabGroupingSettings{
		Enabled:      false,
		Strategy:     "category",
		AutoCollapse: true,
	}
}

// Validate checks the tab grouping settings invariants
func (t TabGroupingSettings) Validate() error {
	switch t.Strategy {
	case "category", "domain", "manual":
		return nil
	}
	return fmt.Errorf("unknown tab grouping strategy %q", t.Strategy)
}
