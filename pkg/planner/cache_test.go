package planner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

func TestModuleSubgraphs_PartitionsEdges(t *testing.T) {
	ResetModuleCache()
	tablesByModule := map[string][]string{
		"hr":      {"employees", "departments"},
		"finance": {"gl_entries"},
	}
	edges := []models.FKEdge{
		edge("employees", "department_id", "departments", "department_id"),
		edge("gl_entries", "employee_id", "employees", "employee_id"),
	}

	subgraphs := ModuleSubgraphs(tablesByModule, edges)

	require.Len(t, subgraphs, 2)
	hr := subgraphs["hr"]
	assert.Equal(t, []string{"departments", "employees"}, hr.Tables)
	// The cross-module edge appears in both touching subgraphs.
	assert.Equal(t, 2, hr.Graph.Stats().Edges)
	assert.Equal(t, 1, subgraphs["finance"].Graph.Stats().Edges)
}

func TestModuleSubgraphs_ServesFromCacheOnSameKey(t *testing.T) {
	ResetModuleCache()
	tablesByModule := map[string][]string{"hr": {"employees"}}
	edges := []models.FKEdge{edge("employees", "x", "departments", "x")}

	first := ModuleSubgraphs(tablesByModule, edges)
	second := ModuleSubgraphs(tablesByModule, edges)

	// Same map instance means the cache answered.
	assert.Same(t, first["hr"], second["hr"])
}

func TestModuleSubgraphs_RebuildsOnKeyChange(t *testing.T) {
	ResetModuleCache()
	tablesByModule := map[string][]string{"hr": {"employees"}}

	first := ModuleSubgraphs(tablesByModule, []models.FKEdge{
		edge("employees", "x", "departments", "x"),
	})
	second := ModuleSubgraphs(tablesByModule, []models.FKEdge{
		edge("employees", "x", "positions", "x"),
	})

	assert.NotSame(t, first["hr"], second["hr"])
	assert.True(t, second["hr"].Graph.HasNode("positions"))
}

func TestModuleSubgraphs_ConcurrentMissesAreBenign(t *testing.T) {
	ResetModuleCache()
	tablesByModule := map[string][]string{"hr": {"employees"}}
	edges := []models.FKEdge{edge("employees", "x", "departments", "x")}

	var wg sync.WaitGroup
	results := make([]map[string]*ModuleSubgraph, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = ModuleSubgraphs(tablesByModule, edges)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r["hr"])
		assert.True(t, r["hr"].Graph.HasNode("employees"))
	}
}

func TestResetModuleCache(t *testing.T) {
	tablesByModule := map[string][]string{"hr": {"employees"}}
	edges := []models.FKEdge{edge("employees", "x", "departments", "x")}

	first := ModuleSubgraphs(tablesByModule, edges)
	ResetModuleCache()
	second := ModuleSubgraphs(tablesByModule, edges)

	assert.NotSame(t, first["hr"], second["hr"])
}
