package planner

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// ModuleSubgraph is the per-module slice of the FK graph: the module's
// tables plus every edge with at least one endpoint in the module, so
// cross-module edges appear in both touching subgraphs.
type ModuleSubgraph struct {
	Module string
	Tables []string
	Graph  *Graph
}

// subgraphCache memoizes module subgraphs process-wide. The key is a
// stable hash of the sorted edge 4-tuples plus the module partition, so a
// schema change invalidates implicitly on key mismatch. Two concurrent
// misses may race to build; the second builder's result is discarded,
// which is benign because both are functionally equal.
type subgraphCache struct {
	mu    sync.RWMutex
	key   uint64
	built map[string]*ModuleSubgraph
}

var moduleCache = &subgraphCache{}

// ResetModuleCache clears the process-wide subgraph cache. For tests.
func ResetModuleCache() {
	moduleCache.mu.Lock()
	defer moduleCache.mu.Unlock()
	moduleCache.key = 0
	moduleCache.built = nil
}

// ModuleSubgraphs partitions tables by module and returns the per-module
// subgraphs, serving from cache when the edge set and partition match.
func ModuleSubgraphs(tablesByModule map[string][]string, edges []models.FKEdge) map[string]*ModuleSubgraph {
	key := subgraphKey(tablesByModule, edges)

	moduleCache.mu.RLock()
	if moduleCache.key == key && moduleCache.built != nil {
		built := moduleCache.built
		moduleCache.mu.RUnlock()
		return built
	}
	moduleCache.mu.RUnlock()

	built := buildModuleSubgraphs(tablesByModule, edges)

	moduleCache.mu.Lock()
	// A concurrent builder may have won the race; last writer wins.
	moduleCache.key = key
	moduleCache.built = built
	moduleCache.mu.Unlock()

	return built
}

func buildModuleSubgraphs(tablesByModule map[string][]string, edges []models.FKEdge) map[string]*ModuleSubgraph {
	moduleOf := make(map[string]string)
	for module, tables := range tablesByModule {
		for _, t := range tables {
			moduleOf[t] = module
		}
	}

	subgraphs := make(map[string]*ModuleSubgraph, len(tablesByModule))
	for module, tables := range tablesByModule {
		var moduleEdges []models.FKEdge
		for _, e := range edges {
			if moduleOf[e.FromTable] == module || moduleOf[e.ToTable] == module {
				moduleEdges = append(moduleEdges, e)
			}
		}
		g := BuildGraph(moduleEdges)
		for _, t := range tables {
			g.AddNode(t)
		}
		sorted := make([]string, len(tables))
		copy(sorted, tables)
		sort.Strings(sorted)
		subgraphs[module] = &ModuleSubgraph{Module: module, Tables: sorted, Graph: g}
	}
	return subgraphs
}

func subgraphKey(tablesByModule map[string][]string, edges []models.FKEdge) uint64 {
	keys := make([]string, 0, len(edges))
	for _, e := range edges {
		keys = append(keys, e.Key())
	}
	sort.Strings(keys)

	modules := make([]string, 0, len(tablesByModule))
	for m := range tablesByModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	h := fnv.New64a()
	for _, k := range keys {
		fmt.Fprint(h, k, ";")
	}
	for _, m := range modules {
		tables := make([]string, len(tablesByModule[m]))
		copy(tables, tablesByModule[m])
		sort.Strings(tables)
		fmt.Fprint(h, m, "=", tables, ";")
	}
	return h.Sum64()
}
