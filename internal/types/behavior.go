package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of every date key in the store (ISO 8601 calendar form)
const DateLayout = "2006-01-02"

// PatternType classifies a detected behavior episode
type PatternType string

const (
	PatternDoomscroll    PatternType = "doomscroll"
	PatternShopping      PatternType = "shopping"
	PatternMultitask     PatternType = "multitask"
	PatternBinge         PatternType = "binge"
	PatternRabbitHole    PatternType = "rabbit_hole"
	PatternContextSwitch PatternType = "context_switch"
)

var knownPatternTypes = map[PatternType]bool{
	PatternDoomscroll:    true,
	PatternShopping:      true,
	PatternMultitask:     true,
	PatternBinge:         true,
	PatternRabbitHole:    true,
	PatternContextSwitch: true,
}

// Valid reports whether the pattern type is one the detection engine emits
func (p PatternType) Valid() bool {
	return knownPatternTypes[p]
}

// Mood is the optional self-reported mood attached to a journal entry
type Mood string

const (
	MoodGreat   Mood = "great"
	MoodGood    Mood = "good"
	MoodNeutral Mood = "neutral"
	MoodLow     Mood = "low"
	MoodBad     Mood = "bad"
)

// Valid reports whether the mood is a known value
func (m Mood) Valid() bool {
	switch m {
	case MoodGreat, MoodGood, MoodNeutral, MoodLow, MoodBad:
		return true
	}
	return false
}

// DailyMetric is the per-day rollup written by the aggregation collaborator.
// All durations are in milliseconds.
type DailyMetric struct {
	Date           string `json:"date"`
	TotalTime      int64  `json:"totalTime"`
	ProductiveTime int64  `json:"productiveTime"`
	DistractedTime int64  `json:"distractedTime"`
	Interventions  int    `json:"interventions"`
}

// Validate checks the invariants of a daily metric record
func (m DailyMetric) Validate() error {
	if err := ValidateDateKey(m.Date); err != nil {
		return err
	}
	if m.TotalTime < 0 || m.ProductiveTime < 0 || m.DistractedTime < 0 {
		return errors.New("durations cannot be negative")
	}
	if m.Interventions < 0 {
		return errors.New("interventions cannot be negative")
	}
	return nil
}

// BehaviorPattern is one detected episode. StartTime is epoch milliseconds
// and never changes once the pattern is stored.
type BehaviorPattern struct {
	ID        string          `json:"id"`
	Type      PatternType     `json:"type"`
	StartTime int64           `json:"startTime"`
	Duration  int64           `json:"duration"`
	Context   json.RawMessage `json:"context,omitempty"`
}

// Validate checks the invariants of a behavior pattern
func (p BehaviorPattern) Validate() error {
	if p.ID == "" {
		return errors.New("id cannot be empty")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}
	if p.StartTime <= 0 {
		return errors.New("startTime must be a positive epoch millisecond value")
	}
	if p.Duration < 0 {
		return errors.New("duration cannot be negative")
	}
	if len(p.Context) > 0 && !json.Valid(p.Context) {
		return errors.New("context is not valid JSON")
	}
	return nil
}

// Canonical returns p with Context in compact form, the form it is stored in
func (p BehaviorPattern) Canonical() BehaviorPattern {
	p.Context = compactJSON(p.Context)
	return p
}

// SiteActivity is the cumulative activity for one domain
type SiteActivity struct {
	Domain    string `json:"domain"`
	Duration  int64  `json:"duration"`
	Visits    int    `json:"visits"`
	Category  string `json:"category"`
	LastVisit int64  `json:"lastVisit"`
}

// Validate checks the invariants of a site activity record
func (s SiteActivity) Validate() error {
	if s.Domain == "" {
		return errors.New("domain cannot be empty")
	}
	if s.Domain != NormalizeDomain(s.Domain) {
		return fmt.Errorf("domain %q is not normalized", s.Domain)
	}
	if s.Duration < 0 || s.Visits < 0 {
		return errors.New("duration and visits cannot be negative")
	}
	if s.LastVisit < 0 {
		return errors.New("lastVisit cannot be negative")
	}
	return nil
}

// Report is a generated summary. Insights is an opaque payload owned by
// the reporting collaborator.
type Report struct {
	ID          string          `json:"id"`
	GeneratedAt int64           `json:"generatedAt"`
	Period      string          `json:"period,omitempty"`
	Insights    json.RawMessage `json:"insights"`
}

// Validate checks the invariants of a report
func (r Report) Validate() error {
	if r.ID == "" {
		return errors.New("id cannot be empty")
	}
	if r.GeneratedAt <= 0 {
		return errors.New("generatedAt must be a positive epoch millisecond value")
	}
	if len(r.Insights) == 0 || !json.Valid(r.Insights) {
		return errors.New("insights must be valid JSON")
	}
	return nil
}

// Canonical returns r with Insights in compact form, the form it is stored in
func (r Report) Canonical() Report {
	r.Insights = compactJSON(r.Insights)
	return r
}

// Date returns the calendar date the report was generated on, in loc
func (r Report) Date(loc *time.Location) string {
	return time.UnixMilli(r.GeneratedAt).In(loc).Format(DateLayout)
}

// JournalEntry is a user-authored note. Entries are appended to the bucket
// of their Date and never mutated afterwards.
type JournalEntry struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Date      string   `json:"date"`
	Text      string   `json:"text"`
	Mood      Mood     `json:"mood,omitempty"`
	Tags      []string `json:"tags"`
}

// Validate checks the invariants of a journal entry
func (e JournalEntry) Validate() error {
	if e.ID == "" {
		return errors.New("id cannot be empty")
	}
	if e.Timestamp <= 0 {
		return errors.New("timestamp must be a positive epoch millisecond value")
	}
	if err := ValidateDateKey(e.Date); err != nil {
		return err
	}
	if e.Text == "" {
		return errors.New("text cannot be empty")
	}
	if e.Mood != "" && !e.Mood.Valid() {
		return fmt.Errorf("unknown mood %q", e.Mood)
	}
	return nil
}

// ReportArchive is the reports blob: generated reports bucketed by date
type ReportArchive map[string][]Report

// Journal is the journal blob: entries bucketed by date, in append order
type Journal map[string][]JournalEntry

// ValidateDateKey checks that key is a zero-padded YYYY-MM-DD calendar date
func ValidateDateKey(key string) error {
	if len(key) != len(DateLayout) {
		return fmt.Errorf("date key %q must be exactly %d characters", key, len(DateLayout))
	}
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return fmt.Errorf("date key %q is not a calendar date: %w", key, err)
	}
	if t.Format(DateLayout) != key {
		return fmt.Errorf("date key %q is not in canonical form", key)
	}
	return nil
}

// DateKey formats t as a date key in t's location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns the epoch milliseconds of midnight for the date key in loc
func StartOfDay(key string, loc *time.Location) (int64, error) {
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// compactJSON strips insignificant whitespace. Invalid input is returned
// unchanged for Validate to reject.
func compactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return json.RawMessage(buf.Bytes())
}
