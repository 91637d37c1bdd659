package services

import (
	"context"
	"encoding/json"
	"testing"

	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAggregator_ProductivityStats(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	clock := clockAt(t, "2025-04-10")
	activity := NewActivityService(store, clock, logging.NopLogger{})

	for _, m := range []types.DailyMetric{
		{Date: "2025-04-03", TotalTime: 9999, ProductiveTime: 9999},
		{Date: "2025-04-09", TotalTime: 4000, ProductiveTime: 1000, DistractedTime: 2000, Interventions: 1},
		{Date: "2025-04-10", TotalTime: 4000, ProductiveTime: 2000, DistractedTime: 1000, Interventions: 2},
	} {
		require.NoError(t, activity.SaveDailyMetric(ctx, m))
	}
	for _, p := range []types.BehaviorPattern{
		{ID: "in", Type: types.PatternDoomscroll, StartTime: millis(t, "2025-04-09T09:00:00Z")},
		{ID: "also-in", Type: types.PatternDoomscroll, StartTime: millis(t, "2025-04-10T09:00:00Z")},
		{ID: "out", Type: types.PatternDoomscroll, StartTime: millis(t, "2025-04-01T09:00:00Z")},
		{ID: "binge", Type: types.PatternBinge, StartTime: millis(t, "2025-04-10T10:00:00Z")},
	} {
		_, err := activity.RecordPattern(ctx, p)
		require.NoError(t, err)
	}

	stats, err := NewStoreAggregator(store, clock).ProductivityStats(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, "2025-04-09", stats.From)
	assert.Equal(t, "2025-04-10", stats.To)
	assert.Equal(t, 2, stats.Days)
	assert.Equal(t, int64(8000), stats.TotalTime)
	assert.Equal(t, int64(3000), stats.ProductiveTime)
	assert.Equal(t, int64(3000), stats.DistractedTime)
	assert.Equal(t, 3, stats.Interventions)
	assert.Equal(t, 37.5, stats.ProductivityScore)
	assert.Equal(t, map[types.PatternType]int{types.PatternDoomscroll: 2, types.PatternBinge: 1}, stats.PatternCounts)

	_, err = NewStoreAggregator(store, clock).ProductivityStats(ctx, 0)
	assert.True(t, repoerrors.IsValidation(err))
}

func TestStoreAggregator_HistoricalActivity(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	for _, date := range []string{"2025-04-01", "2025-04-02", "2025-04-03"} {
		require.NoError(t, store.DailyMetrics().Put(ctx, types.DailyMetric{Date: date}))
	}

	history, err := NewStoreAggregator(store, nil).HistoricalActivity(ctx, "2025-04-02", "2025-04-30")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2025-04-02", history[0].Date)
}

func TestStoreAggregator_KnowledgeGraph(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	for _, s := range []types.SiteActivity{
		{Domain: "a.example", Duration: 10, Visits: 1, Category: "news"},
		{Domain: "b.example", Duration: 20, Visits: 2, Category: "news"},
		{Domain: "c.example", Duration: 5, Visits: 1},
	} {
		require.NoError(t, store.Sites().Put(ctx, s))
	}

	graph, err := NewStoreAggregator(store, nil).KnowledgeGraph(ctx)
	require.NoError(t, err)

	assert.Equal(t, []types.GraphNode{
		{ID: "a.example", Kind: "domain", Duration: 10, Visits: 1},
		{ID: "b.example", Kind: "domain", Duration: 20, Visits: 2},
		{ID: "c.example", Kind: "domain", Duration: 5, Visits: 1},
		{ID: "category:news", Kind: "category", Duration: 30, Visits: 3},
	}, graph.Nodes)
	assert.Equal(t, []types.GraphEdge{
		{From: "a.example", To: "category:news", Weight: 10},
		{From: "b.example", To: "category:news", Weight: 20},
	}, graph.Edges)
}

func TestStoreAggregator_RAGContext(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	clock := clockAt(t, "2025-04-10")

	journal := NewJournalService(store, clock, logging.NopLogger{})
	_, err := journal.AddEntry(ctx, "Too much video tonight", types.MoodLow, []string{"video"})
	require.NoError(t, err)
	_, err = journal.AddEntry(ctx, "Great reading session", types.MoodGreat, nil)
	require.NoError(t, err)

	reports := NewReportService(store, clock, logging.NopLogger{})
	_, err = reports.Save(ctx, types.Report{ID: "r1", Insights: json.RawMessage(`{"summary":"Video dominated the evening"}`)})
	require.NoError(t, err)
	_, err = reports.Save(ctx, types.Report{ID: "r2", GeneratedAt: clock.T.UnixMilli() - 1, Insights: json.RawMessage(`{"summary":"calm"}`)})
	require.NoError(t, err)

	require.NoError(t, store.DailyMetrics().Put(ctx, types.DailyMetric{Date: "2025-04-10", TotalTime: 1}))

	rag, err := NewStoreAggregator(store, clock).RAGContext(ctx, "video", 5)
	require.NoError(t, err)

	assert.Equal(t, "video", rag.Query)
	require.Len(t, rag.Journal, 1)
	assert.Equal(t, "Too much video tonight", rag.Journal[0].Text)
	require.Len(t, rag.Reports, 1)
	assert.Equal(t, "r1", rag.Reports[0].ID)
	assert.Empty(t, rag.Patterns)
	assert.Len(t, rag.Metrics, 1)
}
