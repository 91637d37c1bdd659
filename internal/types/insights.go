package types

// ProductivityStats summarizes the daily metrics of a trailing window
type ProductivityStats struct {
	From              string              `json:"from"`
	To                string              `json:"to"`
	Days              int                 `json:"days"`
	TotalTime         int64               `json:"totalTime"`
	ProductiveTime    int64               `json:"productiveTime"`
	DistractedTime    int64               `json:"distractedTime"`
	Interventions     int                 `json:"interventions"`
	ProductivityScore float64             `json:"productivityScore"`
	PatternCounts     map[PatternType]int `json:"patternCounts"`
}

// GraphNode is a domain or a category in the knowledge graph
type GraphNode struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Duration int64  `json:"duration"`
	Visits   int    `json:"visits"`
}

// GraphEdge links a domain to its category, weighted by time spent
type GraphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int64  `json:"weight"`
}

// KnowledgeGraph relates visited domains to their categories
type KnowledgeGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// RAGContext is the retrieval context handed to the insight generator
type RAGContext struct {
	Query    string            `json:"query"`
	Journal  []JournalEntry    `json:"journal"`
	Reports  []Report          `json:"reports"`
	Patterns []BehaviorPattern `json:"patterns"`
	Metrics  []DailyMetric     `json:"metrics"`
}
