// Package planner builds join skeletons over the packet's FK graph.
package planner

import (
	"sort"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// Graph is the FK graph of one packet: undirected adjacency for
// pathfinding, with the directed edges retained for ON-clause emission.
// Cycles and self-referencing tables are legal.
type Graph struct {
	nodes     map[string]bool
	adjacency map[string][]string
	// directed keeps the first FK edge seen for each unordered table pair,
	// used when emitting join conditions.
	directed map[[2]string]models.FKEdge
	edges    []models.FKEdge
}

// BuildGraph constructs a graph from FK edges, deduplicating by the full
// 4-tuple. Self-referencing edges add the node but no usable path edge.
func BuildGraph(edges []models.FKEdge) *Graph {
	g := &Graph{
		nodes:     make(map[string]bool),
		adjacency: make(map[string][]string),
		directed:  make(map[[2]string]models.FKEdge),
	}

	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true

		g.nodes[e.FromTable] = true
		g.nodes[e.ToTable] = true
		if e.FromTable == e.ToTable {
			continue
		}
		g.edges = append(g.edges, e)

		pair := pairKey(e.FromTable, e.ToTable)
		if _, ok := g.directed[pair]; !ok {
			g.directed[pair] = e
			g.adjacency[e.FromTable] = append(g.adjacency[e.FromTable], e.ToTable)
			g.adjacency[e.ToTable] = append(g.adjacency[e.ToTable], e.FromTable)
		}
	}

	for table := range g.adjacency {
		sort.Strings(g.adjacency[table])
	}
	return g
}

// AddNode registers a table with no edges, so unreachable packet tables
// still count in graph stats.
func (g *Graph) AddNode(table string) {
	g.nodes[table] = true
}

// HasNode reports whether the table is in the graph.
func (g *Graph) HasNode(table string) bool {
	return g.nodes[table]
}

// Neighbors returns the sorted adjacent tables.
func (g *Graph) Neighbors(table string) []string {
	return g.adjacency[table]
}

// Degree returns the number of distinct adjacent tables.
func (g *Graph) Degree(table string) int {
	return len(g.adjacency[table])
}

// EdgeBetween returns the retained directed FK edge for an unordered pair.
func (g *Graph) EdgeBetween(a, b string) (models.FKEdge, bool) {
	e, ok := g.directed[pairKey(a, b)]
	return e, ok
}

// Stats returns node and edge counts.
func (g *Graph) Stats() models.GraphStats {
	return models.GraphStats{Nodes: len(g.nodes), Edges: len(g.edges)}
}

// Edges returns the deduplicated directed edges.
func (g *Graph) Edges() []models.FKEdge {
	return g.edges
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
