package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

func newTestPlanner() *Planner {
	return New(Options{TopK: 3, DefaultCap: 6, RelevantCap: 12}, zap.NewNop())
}

func packetOf(tables []string, edges []models.FKEdge) *models.SchemaContextPacket {
	entries := make([]models.TableEntry, len(tables))
	for i, t := range tables {
		entries[i] = models.TableEntry{TableName: t}
	}
	return &models.SchemaContextPacket{Tables: entries, FKEdges: edges}
}

func bundleOf(tables ...string) *models.SchemaLinkBundle {
	b := &models.SchemaLinkBundle{LinkedColumns: map[string][]models.LinkedColumn{}}
	for _, t := range tables {
		b.LinkedTables = append(b.LinkedTables, models.LinkedTable{Table: t, Relevance: 0.5})
	}
	return b
}

func TestPlan_ProjectSpendSkeleton(t *testing.T) {
	ResetModuleCache()
	packet := packetOf(
		[]string{"projects", "project_budgets", "project_expenses", "budgets"},
		[]models.FKEdge{
			edge("project_budgets", "project_id", "projects", "project_id"),
			edge("project_expenses", "project_id", "projects", "project_id"),
			edge("budgets", "department_id", "projects", "department_id"),
		},
	)
	bundle := bundleOf("projects", "project_budgets", "project_expenses")

	plan := newTestPlanner().Plan(packet, bundle)

	require.NotEmpty(t, plan.Skeletons)
	best := plan.Skeletons[0]
	assert.ElementsMatch(t, []string{"projects", "project_budgets", "project_expenses"}, best.Tables)
	assert.NotContains(t, best.Tables, "budgets")
	assert.Len(t, best.Joins, 2)
}

func TestPlan_DiamondProducesTwoSkeletons(t *testing.T) {
	ResetModuleCache()
	packet := packetOf(
		[]string{"A", "B", "C", "D"},
		[]models.FKEdge{
			edge("A", "x", "B", "x"),
			edge("A", "x", "C", "x"),
			edge("B", "x", "D", "x"),
			edge("C", "x", "D", "x"),
		},
	)
	bundle := bundleOf("A", "D")

	plan := newTestPlanner().Plan(packet, bundle)

	require.Len(t, plan.Skeletons, 2)
	for _, s := range plan.Skeletons {
		assert.Len(t, s.Joins, 2)
	}
	assert.NotEqual(t, plan.Skeletons[0].Tables, plan.Skeletons[1].Tables)
}

func TestPlan_SkeletonJoinsAreInputEdges(t *testing.T) {
	ResetModuleCache()
	edges := []models.FKEdge{
		edge("a", "x", "b", "x"),
		edge("b", "x", "c", "x"),
		edge("c", "x", "d", "x"),
		edge("a", "x", "d", "x"),
	}
	packet := packetOf([]string{"a", "b", "c", "d"}, edges)

	plan := newTestPlanner().Plan(packet, bundleOf("a", "c"))

	inputKeys := map[string]bool{}
	for _, e := range edges {
		inputKeys[e.Key()] = true
	}
	require.NotEmpty(t, plan.Skeletons)
	for _, s := range plan.Skeletons {
		for _, j := range s.Joins {
			key := models.FKEdge{FromTable: j.FromTable, FromColumn: j.FromColumn, ToTable: j.ToTable, ToColumn: j.ToColumn}.Key()
			assert.True(t, inputKeys[key], "join %s must be an input FK edge", key)
		}
	}
}

func TestPlan_SingleRequiredTable(t *testing.T) {
	ResetModuleCache()
	packet := packetOf([]string{"employees", "departments"}, []models.FKEdge{
		edge("employees", "department_id", "departments", "department_id"),
	})

	plan := newTestPlanner().Plan(packet, bundleOf("employees"))

	require.Len(t, plan.Skeletons, 1)
	assert.Equal(t, []string{"employees"}, plan.Skeletons[0].Tables)
	assert.Empty(t, plan.Skeletons[0].Joins)
	assert.Equal(t, "employees", plan.Skeletons[0].SQLFragment)
}

func TestPlan_UnreachableRequiredTables(t *testing.T) {
	ResetModuleCache()
	packet := packetOf([]string{"a", "b", "c", "d"}, []models.FKEdge{
		edge("a", "x", "b", "x"),
		edge("c", "x", "d", "x"),
	})

	plan := newTestPlanner().Plan(packet, bundleOf("a", "d"))

	assert.Empty(t, plan.Skeletons)
	assert.Equal(t, 4, plan.GraphStats.Nodes)
	assert.Equal(t, 2, plan.GraphStats.Edges)
}

func TestPlan_SQLFragmentFormat(t *testing.T) {
	ResetModuleCache()
	packet := packetOf([]string{"orders", "order_lines"}, []models.FKEdge{
		edge("order_lines", "order_id", "orders", "order_id"),
	})

	plan := newTestPlanner().Plan(packet, bundleOf("orders", "order_lines"))

	require.NotEmpty(t, plan.Skeletons)
	assert.Equal(t,
		"orders\nJOIN order_lines ON order_lines.order_id = orders.order_id",
		plan.Skeletons[0].SQLFragment)
}

func TestPlan_CrossModuleBridges(t *testing.T) {
	ResetModuleCache()
	packet := &models.SchemaContextPacket{
		Tables: []models.TableEntry{
			{TableName: "employees", Module: "hr"},
			{TableName: "cost_centers", Module: "common"},
			{TableName: "gl_entries", Module: "finance"},
		},
		FKEdges: []models.FKEdge{
			edge("employees", "cost_center_id", "cost_centers", "cost_center_id"),
			edge("gl_entries", "cost_center_id", "cost_centers", "cost_center_id"),
		},
	}

	plan := newTestPlanner().Plan(packet, bundleOf("employees", "gl_entries"))

	assert.True(t, plan.CrossModuleDetected)
	assert.Equal(t, []string{"finance", "hr"}, plan.ModulesUsed)
	assert.Equal(t, []string{"cost_centers"}, plan.BridgeTables)
}

func TestPlan_ScoringPrefersLinkedIntermediates(t *testing.T) {
	ResetModuleCache()
	// Two 2-hop routes from src to dst; only the "linked" intermediate is in
	// the bundle, so its skeleton must win on semantic alignment.
	packet := packetOf([]string{"src", "linked", "unlinked", "dst"}, []models.FKEdge{
		edge("src", "x", "linked", "x"),
		edge("linked", "x", "dst", "x"),
		edge("src", "x", "unlinked", "x"),
		edge("unlinked", "x", "dst", "x"),
	})
	bundle := bundleOf("src", "dst", "linked")
	// linked is in the bundle but has zero relevance so it is not required.
	bundle.LinkedTables[2].Relevance = 0

	plan := newTestPlanner().Plan(packet, bundle)

	require.Len(t, plan.Skeletons, 2)
	assert.Contains(t, plan.Skeletons[0].Tables, "linked")
	assert.Less(t, plan.Skeletons[0].ScoreDetails.Combined, plan.Skeletons[1].ScoreDetails.Combined)
	assert.Equal(t, 1.0, plan.Skeletons[0].ScoreDetails.SemanticAlignment)
	assert.Equal(t, 0.0, plan.Skeletons[1].ScoreDetails.SemanticAlignment)
}

func TestPlan_Deterministic(t *testing.T) {
	ResetModuleCache()
	packet := packetOf([]string{"a", "b", "c", "d", "e"}, []models.FKEdge{
		edge("a", "x", "b", "x"),
		edge("b", "x", "c", "x"),
		edge("a", "x", "d", "x"),
		edge("d", "x", "c", "x"),
		edge("c", "x", "e", "x"),
	})
	bundle := bundleOf("a", "c", "e")

	first := newTestPlanner().Plan(packet, bundle)
	for i := 0; i < 5; i++ {
		again := newTestPlanner().Plan(packet, bundle)
		assert.Equal(t, first, again)
	}
}
