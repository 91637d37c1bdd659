package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// Aggregator answers the read-only insight queries
type Aggregator interface {
	ProductivityStats(ctx context.Context, days int) (types.ProductivityStats, error)
	HistoricalActivity(ctx context.Context, from, to string) ([]types.DailyMetric, error)
	KnowledgeGraph(ctx context.Context) (types.KnowledgeGraph, error)
	RAGContext(ctx context.Context, query string, limit int) (types.RAGContext, error)
}

// StoreAggregator composes the insight queries from stored data
type StoreAggregator struct {
	store repository.Store
	clock Clock
}

// NewStoreAggregator creates the default aggregator
func NewStoreAggregator(store repository.Store, clock Clock) *StoreAggregator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StoreAggregator{store: store, clock: clock}
}

// ProductivityStats sums the last days daily metrics, today included, and
// counts the patterns detected in the same window
func (a *StoreAggregator) ProductivityStats(ctx context.Context, days int) (types.ProductivityStats, error) {
	if days <= 0 {
		return types.ProductivityStats{}, repoerrors.HandleValidationError("GetProductivityStats", "days", "", "must be positive")
	}

	today := startOfDay(a.clock.Now())
	from := today.AddDate(0, 0, -(days - 1))
	stats := types.ProductivityStats{
		From:          types.DateKey(from),
		To:            types.DateKey(today),
		PatternCounts: map[types.PatternType]int{},
	}

	metrics, err := a.store.DailyMetrics().GetRange(ctx, stats.From, stats.To)
	if err != nil {
		return types.ProductivityStats{}, err
	}
	for _, m := range metrics {
		stats.Days++
		stats.TotalTime += m.TotalTime
		stats.ProductiveTime += m.ProductiveTime
		stats.DistractedTime += m.DistractedTime
		stats.Interventions += m.Interventions
	}
	if stats.TotalTime > 0 {
		stats.ProductivityScore = math.Round(float64(stats.ProductiveTime)/float64(stats.TotalTime)*1000) / 10
	}

	patterns, err := a.store.Patterns().QueryFrom(ctx, repository.IndexStartTime, from.UnixMilli())
	if err != nil {
		return types.ProductivityStats{}, err
	}
	for _, p := range patterns {
		stats.PatternCounts[p.Type]++
	}
	return stats, nil
}

// HistoricalActivity returns the daily metrics between from and to inclusive
func (a *StoreAggregator) HistoricalActivity(ctx context.Context, from, to string) ([]types.DailyMetric, error) {
	return a.store.DailyMetrics().GetRange(ctx, from, to)
}

// KnowledgeGraph links every domain to its category. Domains without a
// category are left unconnected.
func (a *StoreAggregator) KnowledgeGraph(ctx context.Context) (types.KnowledgeGraph, error) {
	sites, err := a.store.Sites().All(ctx)
	if err != nil {
		return types.KnowledgeGraph{}, err
	}

	graph := types.KnowledgeGraph{Nodes: []types.GraphNode{}, Edges: []types.GraphEdge{}}
	categories := map[string]*types.GraphNode{}
	for _, s := range sites {
		graph.Nodes = append(graph.Nodes, types.GraphNode{ID: s.Domain, Kind: "domain", Duration: s.Duration, Visits: s.Visits})
		if s.Category == "" {
			continue
		}
		id := "category:" + s.Category
		node, ok := categories[id]
		if !ok {
			node = &types.GraphNode{ID: id, Kind: "category"}
			categories[id] = node
		}
		node.Duration += s.Duration
		node.Visits += s.Visits
		graph.Edges = append(graph.Edges, types.GraphEdge{From: s.Domain, To: id, Weight: s.Duration})
	}

	ids := make([]string, 0, len(categories))
	for id := range categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		graph.Nodes = append(graph.Nodes, *categories[id])
	}
	return graph, nil
}

// RAGContext gathers the records most relevant to query: matching journal
// entries and reports plus the latest patterns and metrics
func (a *StoreAggregator) RAGContext(ctx context.Context, query string, limit int) (types.RAGContext, error) {
	if limit <= 0 {
		limit = 10
	}
	out := types.RAGContext{Query: query}

	journal, _, err := repository.LoadBlob(ctx, a.store, types.BlobJournal, codec.Journal, newJournal())
	if err != nil {
		return types.RAGContext{}, err
	}
	for _, entries := range journal {
		for _, e := range entries {
			if matchesQuery(query, append([]string{e.Text}, e.Tags...)...) {
				out.Journal = append(out.Journal, e)
			}
		}
	}
	sort.Slice(out.Journal, func(i, j int) bool { return out.Journal[i].Timestamp > out.Journal[j].Timestamp })
	out.Journal = truncate(out.Journal, limit)

	reports, err := a.store.Reports().GetRecentByIndex(ctx, repository.IndexGeneratedAt, limit)
	if err != nil {
		return types.RAGContext{}, err
	}
	for _, r := range reports {
		if matchesQuery(query, r.Period, string(r.Insights)) {
			out.Reports = append(out.Reports, r)
		}
	}

	if out.Patterns, err = a.store.Patterns().GetRecentByIndex(ctx, repository.IndexStartTime, limit); err != nil {
		return types.RAGContext{}, err
	}

	today := startOfDay(a.clock.Now())
	if out.Metrics, err = a.store.DailyMetrics().GetRange(ctx,
		types.DateKey(today.AddDate(0, 0, -(limit-1))), types.DateKey(today)); err != nil {
		return types.RAGContext{}, err
	}

	if out.Journal == nil {
		out.Journal = []types.JournalEntry{}
	}
	if out.Reports == nil {
		out.Reports = []types.Report{}
	}
	return out, nil
}

// matchesQuery reports whether every word of query occurs in one of fields,
// ignoring case. An empty query matches everything.
func matchesQuery(query string, fields ...string) bool {
	fold := cases.Fold()
	words := strings.Fields(fold.String(query))
	if len(words) == 0 {
		return true
	}
	haystack := fold.String(strings.Join(fields, " "))
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
