package planner

import (
	"sort"
)

// hub fan-out threshold above which a table is treated as a hub even
// without an explicit flag.
const hubDegreeThreshold = 8

// searchGraph wraps a Graph with the dynamic hub-capping policy applied
// during pathfinding.
type searchGraph struct {
	graph       *Graph
	relevant    map[string]bool
	hubFlags    map[string]bool
	defaultCap  int
	relevantCap int
}

// isHub reports whether a table is a hub: explicit flag or FK degree above
// the threshold.
func (s *searchGraph) isHub(table string) bool {
	return s.hubFlags[table] || s.graph.Degree(table) > hubDegreeThreshold
}

// neighbors returns the tables reachable from table, capped when table is
// a hub. Relevant neighbors are kept first; ties break alphabetically so
// pathfinding is deterministic.
func (s *searchGraph) neighbors(table string) []string {
	all := s.graph.Neighbors(table)
	if !s.isHub(table) {
		return all
	}

	limit := s.defaultCap
	if s.relevant[table] {
		limit = s.relevantCap
	}
	if limit <= 0 || len(all) <= limit {
		return all
	}

	sorted := make([]string, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := s.relevant[sorted[i]], s.relevant[sorted[j]]
		if ri != rj {
			return ri
		}
		return sorted[i] < sorted[j]
	})
	return sorted[:limit]
}

// bannedEdge is an undirected edge exclusion used by path deviation.
type bannedEdge [2]string

func banEdge(a, b string) bannedEdge {
	if a < b {
		return bannedEdge{a, b}
	}
	return bannedEdge{b, a}
}

// shortestPath runs a BFS from src to dst with uniform edge weight,
// honoring banned nodes and edges. Returns nil when dst is unreachable.
func (s *searchGraph) shortestPath(src, dst string, bannedNodes map[string]bool, bannedEdges map[bannedEdge]bool) []string {
	if src == dst {
		return []string{src}
	}
	if bannedNodes[src] || bannedNodes[dst] {
		return nil
	}

	prev := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range s.neighbors(current) {
			if bannedNodes[next] || bannedEdges[banEdge(current, next)] {
				continue
			}
			if _, visited := prev[next]; visited {
				continue
			}
			prev[next] = current
			if next == dst {
				return reconstruct(prev, src, dst)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstruct(prev map[string]string, src, dst string) []string {
	var path []string
	for at := dst; at != ""; at = prev[at] {
		path = append(path, at)
		if at == src {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// kShortestPaths enumerates up to k loop-free paths between src and dst in
// increasing hop count using Yen-style deviation: each accepted path
// spawns candidates by banning one edge (and the preceding root nodes) and
// re-running a constrained BFS from the spur node.
func (s *searchGraph) kShortestPaths(src, dst string, k int) [][]string {
	first := s.shortestPath(src, dst, nil, nil)
	if first == nil {
		return nil
	}
	accepted := [][]string{first}
	seen := map[string]bool{pathSignature(first): true}
	var candidates [][]string

	for len(accepted) < k {
		base := accepted[len(accepted)-1]

		for i := 0; i < len(base)-1; i++ {
			spur := base[i]
			root := base[:i+1]

			bannedEdges := make(map[bannedEdge]bool)
			for _, p := range accepted {
				if len(p) > i+1 && samePrefix(p, root) {
					bannedEdges[banEdge(p[i], p[i+1])] = true
				}
			}
			bannedNodes := make(map[string]bool)
			for _, t := range root[:i] {
				bannedNodes[t] = true
			}

			tail := s.shortestPath(spur, dst, bannedNodes, bannedEdges)
			if tail == nil {
				continue
			}
			candidate := append(append([]string{}, root[:i]...), tail...)
			if hasRepeat(candidate) {
				continue
			}
			sig := pathSignature(candidate)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			candidates = append(candidates, candidate)
		}

		if len(candidates) == 0 {
			break
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			if len(candidates[a]) != len(candidates[b]) {
				return len(candidates[a]) < len(candidates[b])
			}
			return pathSignature(candidates[a]) < pathSignature(candidates[b])
		})
		accepted = append(accepted, candidates[0])
		candidates = candidates[1:]
	}
	return accepted
}

func samePrefix(path, root []string) bool {
	if len(path) < len(root) {
		return false
	}
	for i := range root {
		if path[i] != root[i] {
			return false
		}
	}
	return true
}

func hasRepeat(path []string) bool {
	seen := make(map[string]bool, len(path))
	for _, t := range path {
		if seen[t] {
			return true
		}
		seen[t] = true
	}
	return false
}

func pathSignature(path []string) string {
	sig := ""
	for i, t := range path {
		if i > 0 {
			sig += ">"
		}
		sig += t
	}
	return sig
}
