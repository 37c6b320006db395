package planner

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

const (
	semanticAlignmentWeight = 0.5
	columnCoverageWeight    = 0.3

	// skeletonCandidateCap bounds combinatorial growth before scoring.
	skeletonCandidateCap = 24
)

// Options holds planner knobs.
type Options struct {
	// TopK is the number of skeletons returned.
	TopK int
	// DefaultCap limits a hub's neighbors during pathfinding when the hub
	// itself is not a required table.
	DefaultCap int
	// RelevantCap applies instead when the hub is required.
	RelevantCap int
}

func (o *Options) normalize() {
	if o.TopK <= 0 {
		o.TopK = 3
	}
	if o.DefaultCap <= 0 {
		o.DefaultCap = 6
	}
	if o.RelevantCap <= 0 {
		o.RelevantCap = 12
	}
}

// Planner builds ranked join skeletons for a packet.
type Planner struct {
	opts   Options
	logger *zap.Logger
}

// New creates a join planner.
func New(opts Options, logger *zap.Logger) *Planner {
	opts.normalize()
	return &Planner{opts: opts, logger: logger.Named("planner")}
}

// Plan connects the required tables through the packet FK graph and
// returns up to TopK scored skeletons, best (lowest combined) first.
// Every emitted join is one of the packet's FK edges.
func (p *Planner) Plan(packet *models.SchemaContextPacket, bundle *models.SchemaLinkBundle) *models.JoinPlan {
	graph := BuildGraph(packet.FKEdges)
	plan := &models.JoinPlan{GraphStats: graph.Stats()}

	required := requiredTables(packet, bundle)
	if len(required) == 0 {
		return plan
	}

	moduleOf := make(map[string]string, len(packet.Tables))
	hubFlags := make(map[string]bool, len(packet.Tables))
	for _, t := range packet.Tables {
		moduleOf[t.TableName] = t.Module
		if t.IsHub {
			hubFlags[t.TableName] = true
		}
	}

	plan.ModulesUsed = modulesOf(required, moduleOf)
	plan.CrossModuleDetected = len(plan.ModulesUsed) >= 2

	inGraph := make([]string, 0, len(required))
	for _, t := range required {
		if graph.HasNode(t) {
			inGraph = append(inGraph, t)
		}
	}

	// Single required table: a skeleton with no joins.
	if len(required) == 1 || len(inGraph) <= 1 {
		root := required[0]
		if len(inGraph) == 1 {
			root = inGraph[0]
		}
		plan.Skeletons = []models.JoinSkeleton{{
			Tables:      []string{root},
			SQLFragment: root,
			ScoreDetails: models.SkeletonScore{
				SemanticAlignment: 1.0,
			},
		}}
		if len(required) > 1 {
			// More than one required table but at most one is connected:
			// there is no connecting subgraph to report.
			plan.Skeletons = nil
		}
		return plan
	}

	search := &searchGraph{
		graph:       graph,
		relevant:    toSet(inGraph),
		hubFlags:    hubFlags,
		defaultCap:  p.opts.DefaultCap,
		relevantCap: p.opts.RelevantCap,
	}

	pairPaths := p.collectPairPaths(search, inGraph)
	if len(pairPaths) == 0 {
		return plan
	}

	linkedSet := map[string]bool{}
	if bundle != nil {
		linkedSet = bundle.LinkedTableSet()
	}
	requiredSet := toSet(inGraph)

	candidates := enumerateSelections(pairPaths)
	seen := make(map[string]bool, len(candidates))
	var skeletons []models.JoinSkeleton
	for _, selection := range candidates {
		skeleton, ok := p.buildSkeleton(graph, inGraph[0], selection)
		if !ok {
			continue
		}
		sig := skeletonSignature(skeleton)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		p.scoreSkeleton(&skeleton, requiredSet, linkedSet, bundle)
		skeletons = append(skeletons, skeleton)
	}

	sort.SliceStable(skeletons, func(i, j int) bool {
		if skeletons[i].ScoreDetails.Combined != skeletons[j].ScoreDetails.Combined {
			return skeletons[i].ScoreDetails.Combined < skeletons[j].ScoreDetails.Combined
		}
		return skeletonSignature(skeletons[i]) < skeletonSignature(skeletons[j])
	})
	if len(skeletons) > p.opts.TopK {
		skeletons = skeletons[:p.opts.TopK]
	}
	plan.Skeletons = skeletons

	if plan.CrossModuleDetected {
		plan.BridgeTables = p.detectBridges(packet, search, inGraph, moduleOf)
	}

	p.logger.Debug("join planning complete",
		zap.Int("required", len(required)),
		zap.Int("skeletons", len(plan.Skeletons)),
		zap.Bool("cross_module", plan.CrossModuleDetected))

	return plan
}

// requiredTables picks the tables the skeleton must connect: linked tables
// with positive relevance when a bundle exists, otherwise all packet
// tables, in their existing order.
func requiredTables(packet *models.SchemaContextPacket, bundle *models.SchemaLinkBundle) []string {
	if bundle != nil && len(bundle.LinkedTables) > 0 {
		var required []string
		for _, t := range bundle.LinkedTables {
			if t.Relevance > 0 && packet.HasTable(t.Table) {
				required = append(required, t.Table)
			}
		}
		if len(required) > 0 {
			return required
		}
	}
	return packet.TableNames()
}

// pairPathSet is the K-shortest paths for one required pair.
type pairPathSet struct {
	paths [][]string
}

func (p *Planner) collectPairPaths(search *searchGraph, required []string) []pairPathSet {
	var sets []pairPathSet
	for i := 0; i < len(required); i++ {
		for j := i + 1; j < len(required); j++ {
			paths := search.kShortestPaths(required[i], required[j], p.opts.TopK)
			if len(paths) == 0 {
				continue
			}
			sets = append(sets, pairPathSet{paths: paths})
		}
	}
	return sets
}

// enumerateSelections yields path selections in roughly increasing total
// hop count: the all-shortest base first, then single-pair deviations
// whose alternative path uses a different set of intermediate tables.
func enumerateSelections(pairPaths []pairPathSet) [][][]string {
	base := make([][]string, len(pairPaths))
	for i, set := range pairPaths {
		base[i] = set.paths[0]
	}
	selections := [][][]string{base}

	type variant struct {
		selection [][]string
		extraHops int
	}
	var variants []variant
	for i, set := range pairPaths {
		baseIntermediates := intermediateSet(set.paths[0])
		for _, alt := range set.paths[1:] {
			if sameSet(intermediateSet(alt), baseIntermediates) {
				continue
			}
			sel := make([][]string, len(base))
			copy(sel, base)
			sel[i] = alt
			variants = append(variants, variant{
				selection: sel,
				extraHops: len(alt) - len(set.paths[0]),
			})
		}
	}
	sort.SliceStable(variants, func(a, b int) bool {
		return variants[a].extraHops < variants[b].extraHops
	})
	for _, v := range variants {
		if len(selections) >= skeletonCandidateCap {
			break
		}
		selections = append(selections, v.selection)
	}
	return selections
}

// buildSkeleton unions the selected paths into one subgraph and emits the
// joins in BFS order from the root.
func (p *Planner) buildSkeleton(graph *Graph, root string, selection [][]string) (models.JoinSkeleton, bool) {
	adjacency := make(map[string]map[string]bool)
	nodes := make(map[string]bool)
	link := func(a, b string) {
		if adjacency[a] == nil {
			adjacency[a] = make(map[string]bool)
		}
		if adjacency[b] == nil {
			adjacency[b] = make(map[string]bool)
		}
		adjacency[a][b] = true
		adjacency[b][a] = true
	}
	for _, path := range selection {
		for i, t := range path {
			nodes[t] = true
			if i > 0 {
				link(path[i-1], t)
			}
		}
	}
	if !nodes[root] {
		return models.JoinSkeleton{}, false
	}

	// BFS join order from the root.
	var joins []models.SkeletonJoin
	var order []string
	visited := map[string]bool{root: true}
	queue := []string{root}
	order = append(order, root)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		neighbors := make([]string, 0, len(adjacency[current]))
		for n := range adjacency[current] {
			neighbors = append(neighbors, n)
		}
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			edge, ok := graph.EdgeBetween(current, next)
			if !ok {
				return models.JoinSkeleton{}, false
			}
			joins = append(joins, models.SkeletonJoin{
				FromTable:  edge.FromTable,
				FromColumn: edge.FromColumn,
				ToTable:    edge.ToTable,
				ToColumn:   edge.ToColumn,
				JoinType:   models.JoinInner,
			})
			order = append(order, next)
			queue = append(queue, next)
		}
	}
	if len(order) != len(nodes) {
		// Disconnected union; cannot emit a single join chain.
		return models.JoinSkeleton{}, false
	}

	var fragment strings.Builder
	fragment.WriteString(root)
	for i, t := range order[1:] {
		j := joins[i]
		fragment.WriteString("\nJOIN " + t + " ON " +
			j.FromTable + "." + j.FromColumn + " = " + j.ToTable + "." + j.ToColumn)
	}

	return models.JoinSkeleton{
		Tables:      order,
		Joins:       joins,
		SQLFragment: fragment.String(),
	}, true
}

func (p *Planner) scoreSkeleton(s *models.JoinSkeleton, required, linked map[string]bool, bundle *models.SchemaLinkBundle) {
	hops := len(s.Joins)

	intermediates := 0
	aligned := 0
	for _, t := range s.Tables {
		if required[t] {
			continue
		}
		intermediates++
		if linked[t] {
			aligned++
		}
	}
	alignment := 1.0
	if intermediates > 0 {
		alignment = float64(aligned) / float64(intermediates)
	}

	coverage := 0.0
	if bundle != nil {
		columns := make(map[string]bool)
		for _, j := range s.Joins {
			columns[j.FromColumn] = true
			columns[j.ToColumn] = true
		}
		if len(columns) > 0 {
			covered := 0
			for c := range columns {
				if bundle.HasLinkedColumn(c) {
					covered++
				}
			}
			coverage = float64(covered) / float64(len(columns))
		}
	}

	combined := float64(hops) - semanticAlignmentWeight*alignment - columnCoverageWeight*coverage
	s.ScoreDetails = models.SkeletonScore{
		HopCount:          hops,
		SemanticAlignment: alignment,
		ColumnCoverage:    coverage,
		Combined:          combined,
	}
	s.Score = combined
}

// detectBridges finds intermediate tables sitting on shortest paths
// between required tables of different modules that have FK edges touching
// both modules. The per-module subgraphs come from the process-wide cache.
func (p *Planner) detectBridges(packet *models.SchemaContextPacket, search *searchGraph, required []string, moduleOf map[string]string) []string {
	tablesByModule := make(map[string][]string)
	for _, t := range packet.Tables {
		if t.Module != "" {
			tablesByModule[t.Module] = append(tablesByModule[t.Module], t.TableName)
		}
	}
	subgraphs := ModuleSubgraphs(tablesByModule, packet.FKEdges)

	touches := func(table, module string) bool {
		sg, ok := subgraphs[module]
		return ok && sg.Graph.Degree(table) > 0
	}

	bridges := make(map[string]bool)
	for i := 0; i < len(required); i++ {
		for j := i + 1; j < len(required); j++ {
			ma, mb := moduleOf[required[i]], moduleOf[required[j]]
			if ma == "" || mb == "" || ma == mb {
				continue
			}
			path := search.shortestPath(required[i], required[j], nil, nil)
			for _, t := range path {
				if t == required[i] || t == required[j] {
					continue
				}
				if touches(t, ma) && touches(t, mb) {
					bridges[t] = true
				}
			}
		}
	}

	sorted := make([]string, 0, len(bridges))
	for t := range bridges {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)
	return sorted
}

func skeletonSignature(s models.JoinSkeleton) string {
	keys := make([]string, len(s.Joins))
	for i, j := range s.Joins {
		keys[i] = j.FromTable + "." + j.FromColumn + ">" + j.ToTable + "." + j.ToColumn
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

func intermediateSet(path []string) map[string]bool {
	set := make(map[string]bool)
	for i := 1; i < len(path)-1; i++ {
		set[path[i]] = true
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

func modulesOf(tables []string, moduleOf map[string]string) []string {
	seen := make(map[string]bool)
	var modules []string
	for _, t := range tables {
		m := moduleOf[t]
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		modules = append(modules, m)
	}
	sort.Strings(modules)
	return modules
}
