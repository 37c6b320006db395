package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// neighborDecay scales a seed's similarity onto its expanded neighbors.
const neighborDecay = 0.8

// ExpandOptions bounds the FK expansion stage.
type ExpandOptions struct {
	FKExpansionLimit int
	MaxTables        int
	HubFKCap         int
}

// ExpandResult is the expander's output.
type ExpandResult struct {
	Tables          []models.TableEntry
	HubTablesCapped []string
}

// Expander grows the retrieved set with direct FK neighbors, capping hub
// fan-out so a central table cannot flood the packet.
type Expander struct {
	store  repositories.SchemaStore
	logger *zap.Logger
}

// NewExpander creates an FK expander.
func NewExpander(store repositories.SchemaStore, logger *zap.Logger) *Expander {
	return &Expander{store: store, logger: logger.Named("fk_expander")}
}

// Expand visits up to FKExpansionLimit seeds in descending retrieval
// similarity and appends their direct FK neighbors. Hub seeds keep at most
// HubFKCap neighbors, preferring non-hubs with low fan-out. Growth stops
// when MaxTables is reached. The input order is preserved; neighbors are
// appended after the retrieved tables.
func (e *Expander) Expand(ctx context.Context, tables []models.TableEntry, opts ExpandOptions) (*ExpandResult, error) {
	result := &ExpandResult{Tables: tables}
	if opts.MaxTables > 0 && len(tables) >= opts.MaxTables {
		return result, nil
	}

	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t.TableName] = true
	}

	seeds := make([]models.TableEntry, len(tables))
	copy(seeds, tables)
	sort.SliceStable(seeds, func(i, j int) bool {
		return seeds[i].Similarity > seeds[j].Similarity
	})
	if opts.FKExpansionLimit > 0 && len(seeds) > opts.FKExpansionLimit {
		seeds = seeds[:opts.FKExpansionLimit]
	}

	for _, seed := range seeds {
		if opts.MaxTables > 0 && len(result.Tables) >= opts.MaxTables {
			break
		}

		neighbors, err := e.store.GetFKNeighbors(ctx, seed.TableName)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			e.logger.Warn("fk neighbor fetch failed, skipping seed",
				zap.String("table", seed.TableName), zap.Error(err))
			continue
		}

		if seed.IsHub && opts.HubFKCap > 0 && len(neighbors) > opts.HubFKCap {
			neighbors = capHubNeighbors(neighbors, opts.HubFKCap)
			result.HubTablesCapped = append(result.HubTablesCapped, seed.TableName)
		}

		for _, n := range neighbors {
			if present[n.TableName] {
				continue
			}
			if opts.MaxTables > 0 && len(result.Tables) >= opts.MaxTables {
				break
			}
			present[n.TableName] = true
			result.Tables = append(result.Tables, models.TableEntry{
				TableName:   n.TableName,
				TableSchema: n.TableSchema,
				Module:      n.Module,
				Gloss:       n.Gloss,
				Similarity:  seed.Similarity * neighborDecay,
				Source:      models.SourceFKExpansion,
				IsHub:       n.IsHub,
				FKDegree:    n.FKDegree,
			})
		}
	}
	return result, nil
}

// capHubNeighbors keeps the cap most joinable neighbors: non-hubs first,
// then ascending FK degree, alphabetical on ties.
func capHubNeighbors(neighbors []repositories.RetrievedTable, limit int) []repositories.RetrievedTable {
	sorted := make([]repositories.RetrievedTable, len(neighbors))
	copy(sorted, neighbors)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsHub != sorted[j].IsHub {
			return !sorted[i].IsHub
		}
		if sorted[i].FKDegree != sorted[j].FKDegree {
			return sorted[i].FKDegree < sorted[j].FKDegree
		}
		return sorted[i].TableName < sorted[j].TableName
	})
	return sorted[:limit]
}
