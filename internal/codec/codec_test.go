package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"scrollguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Codec[types.DailyMetric]               = DailyMetrics
	_ Codec[map[string][]types.JournalEntry] = Journal
	_ Codec[int]                             = SchemaVersion
	_ Codec[types.TabGroupingSettings]       = TabGroupingSettings
)

func TestRecord_RoundTrip(t *testing.T) {
	metric := types.DailyMetric{Date: "2025-03-09", TotalTime: 3600000, ProductiveTime: 1800000, DistractedTime: 900000, Interventions: 2}

	data, err := DailyMetrics.Encode(metric)
	require.NoError(t, err)

	decoded, err := DailyMetrics.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, metric, decoded)
}

func TestRecord_Decode_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"missing date", `{"totalTime":1,"productiveTime":0,"distractedTime":0,"interventions":0}`, "date"},
		{"null total", `{"date":"2025-01-01","totalTime":null,"productiveTime":0,"distractedTime":0,"interventions":0}`, "totalTime"},
		{"missing interventions", `{"date":"2025-01-01","totalTime":1,"productiveTime":0,"distractedTime":0}`, "interventions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DailyMetrics.Decode([]byte(tt.input))
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.field, decodeErr.Field)
			assert.Equal(t, "DailyMetric", decodeErr.Entity)
		})
	}
}

func TestRecord_Decode_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{"date":`},
		{"null document", `null`},
		{"array document", `[]`},
		{"short date", `{"date":"2025-1-01","totalTime":1,"productiveTime":0,"distractedTime":0,"interventions":0}`},
		{"impossible date", `{"date":"2025-02-30","totalTime":1,"productiveTime":0,"distractedTime":0,"interventions":0}`},
		{"negative time", `{"date":"2025-01-01","totalTime":-1,"productiveTime":0,"distractedTime":0,"interventions":0}`},
		{"wrong type", `{"date":"2025-01-01","totalTime":"long","productiveTime":0,"distractedTime":0,"interventions":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DailyMetrics.Decode([]byte(tt.input))
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestRecord_Encode_RejectsInvalid(t *testing.T) {
	_, err := Patterns.Encode(types.BehaviorPattern{ID: "p1", Type: "sleepwalk", StartTime: 1})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, err.Error(), "unknown pattern type")
}

func TestPatterns_KeepContextVerbatim(t *testing.T) {
	input := `{"id":"p1","type":"doomscroll","startTime":1700000000000,"duration":60000,"context":{"site":"example.com","scrolls":42}}`

	p, err := Patterns.Decode([]byte(input))
	require.NoError(t, err)
	assert.JSONEq(t, `{"site":"example.com","scrolls":42}`, string(p.Context))

	out, err := Patterns.Encode(p)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestJournalEntries_TagsOptional(t *testing.T) {
	e, err := JournalEntries.Decode([]byte(`{"id":"j1","timestamp":1700000000000,"date":"2023-11-14","text":"calm day"}`))
	require.NoError(t, err)
	assert.Empty(t, e.Tags)
	assert.Equal(t, types.Mood(""), e.Mood)

	_, err = JournalEntries.Decode([]byte(`{"id":"j1","timestamp":1700000000000,"date":"2023-11-14","text":"x","mood":"ecstatic"}`))
	assert.Error(t, err)
}

func TestRecord_DecodeList(t *testing.T) {
	list, err := Sites.DecodeList([]byte(`[{"domain":"example.com","duration":10,"visits":1,"category":"news","lastVisit":5}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "example.com", list[0].Domain)

	_, err = Sites.DecodeList([]byte(`null`))
	assert.Error(t, err)

	_, err = Sites.DecodeList([]byte(`[{"domain":"Example.COM","duration":10,"visits":1,"category":"news","lastVisit":5}]`))
	assert.ErrorContains(t, err, "element 0")
}

func TestJournal_Buckets(t *testing.T) {
	journal := types.Journal{
		"2025-01-02": {
			{ID: "a", Timestamp: 1735776000000, Date: "2025-01-02", Text: "first", Tags: []string{"focus"}},
			{ID: "b", Timestamp: 1735779600000, Date: "2025-01-02", Text: "second", Tags: []string{}},
		},
	}

	data, err := Journal.Encode(journal)
	require.NoError(t, err)

	decoded, err := Journal.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string][]types.JournalEntry(journal), decoded)
}

func TestJournal_Buckets_RejectsMisfiledEntry(t *testing.T) {
	input := `{"2025-01-02":[{"id":"a","timestamp":1,"date":"2025-01-03","text":"x","tags":[]}]}`

	_, err := Journal.Decode([]byte(input))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "2025-01-02[0]", decodeErr.Field)
}

func TestJournal_Buckets_RejectsBadKey(t *testing.T) {
	_, err := Journal.Decode([]byte(`{"yesterday":[]}`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "yesterday", decodeErr.Field)

	_, err = Journal.Decode([]byte(`null`))
	assert.Error(t, err)
}

func TestReportArchive_ElementDecodeErrorIsWrapped(t *testing.T) {
	_, err := ReportArchive.Decode([]byte(`{"2025-01-02":[{"id":"r1","generatedAt":1}]}`))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "reports", decodeErr.Entity)

	var inner *DecodeError
	require.True(t, errors.As(decodeErr.Err, &inner))
	assert.Equal(t, "insights", inner.Field)
}

func TestReportArchive_EncodeNilIsEmptyObject(t *testing.T) {
	data, err := ReportArchive.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSchemaVersion(t *testing.T) {
	data, err := SchemaVersion.Encode(3)
	require.NoError(t, err)
	assert.Equal(t, "3", string(data))

	v, err := SchemaVersion.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	for _, bad := range []string{`null`, `"3"`, `-1`, `1.5`} {
		_, err := SchemaVersion.Decode([]byte(bad))
		assert.Error(t, err, bad)
	}

	_, err = SchemaVersion.Encode(-1)
	assert.Error(t, err)
}

func TestSettingsCodecs(t *testing.T) {
	prefs := types.DefaultPreferences()
	data, err := Preferences.Encode(prefs)
	require.NoError(t, err)

	decoded, err := Preferences.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, prefs, decoded)

	_, err = TabGroupingSettings.Decode([]byte(`{"enabled":true,"strategy":"alphabetical","autoCollapse":false}`))
	assert.Error(t, err)

	raw, err := json.Marshal(types.DefaultNudgeSettings())
	require.NoError(t, err)
	_, err = NudgeSettings.Decode(raw)
	assert.NoError(t, err)
}

func TestRecord_DecodeCompactsOpaqueJSON(t *testing.T) {
	p, err := Patterns.Decode([]byte(`{"id":"p1","type":"rabbit_hole","startTime":10,"duration":0,"context":{"url": "a",  "depth": [1, 2]}}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"url":"a","depth":[1,2]}`), p.Context)

	r, err := Reports.Decode([]byte(`{"id":"r1","generatedAt":10,"insights":[ "x" ]}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`["x"]`), r.Insights)
}
