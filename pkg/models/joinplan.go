package models

// JoinType is the join flavor emitted for a skeleton edge.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
)

// SkeletonJoin is one join edge of a skeleton, directed for ON-clause
// emission.
type SkeletonJoin struct {
	FromTable  string   `json:"from_table"`
	FromColumn string   `json:"from_column"`
	ToTable    string   `json:"to_table"`
	ToColumn   string   `json:"to_column"`
	JoinType   JoinType `json:"join_type"`
}

// SkeletonScore breaks down a skeleton's combined score. Lower combined
// is better.
type SkeletonScore struct {
	HopCount          int     `json:"hop_count"`
	SemanticAlignment float64 `json:"semantic_alignment"`
	ColumnCoverage    float64 `json:"column_coverage"`
	Combined          float64 `json:"combined"`
}

// JoinSkeleton is a connected tables-and-joins subgraph proposed as the
// JOIN portion of the final SQL.
type JoinSkeleton struct {
	Tables       []string       `json:"tables"`
	Joins        []SkeletonJoin `json:"joins"`
	Score        float64        `json:"score"`
	SQLFragment  string         `json:"sql_fragment"`
	ScoreDetails SkeletonScore  `json:"score_details"`
}

// GraphStats records the size of the FK graph the planner worked on.
type GraphStats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// JoinPlan is the planner's output: ranked skeletons plus cross-module
// diagnostics.
type JoinPlan struct {
	Skeletons           []JoinSkeleton `json:"skeletons"`
	GraphStats          GraphStats     `json:"graph_stats"`
	CrossModuleDetected bool           `json:"cross_module_detected"`
	BridgeTables        []string       `json:"bridge_tables,omitempty"`
	ModulesUsed         []string       `json:"modules_used,omitempty"`
}

// Best returns the lowest-combined skeleton, or nil when the plan is empty.
func (p *JoinPlan) Best() *JoinSkeleton {
	if p == nil || len(p.Skeletons) == 0 {
		return nil
	}
	return &p.Skeletons[0]
}
