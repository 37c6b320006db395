package retrieval

import (
	"sort"

	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// rrfK is the standard Reciprocal Rank Fusion constant.
const rrfK = 60

// FusedTable is one table after rank fusion of the cosine and lexical
// result lists.
type FusedTable struct {
	repositories.RetrievedTable
	RRFScore float64
	Source   models.TableSource
}

// FuseRRF combines a cosine-ranked and a lexically-ranked result list with
// Reciprocal Rank Fusion. Every fused entry receives a contribution from
// both lists; a table absent from one list contributes a phantom rank of
// len(list)+1 on that side. Tables present in both lists are tagged hybrid,
// cosine-only tables retrieval, lexical-only tables bm25. Ties break on
// table name for determinism.
func FuseRRF(cosine, lexical []repositories.RetrievedTable, maxTables int) []FusedTable {
	cosRank := rankOf(cosine)
	lexRank := rankOf(lexical)

	merged := make(map[string]repositories.RetrievedTable, len(cosine)+len(lexical))
	for _, t := range cosine {
		merged[t.TableName] = t
	}
	for _, t := range lexical {
		if existing, ok := merged[t.TableName]; ok {
			// Prefer the cosine row; it carries the true similarity.
			merged[t.TableName] = existing
		} else {
			merged[t.TableName] = t
		}
	}

	fused := make([]FusedTable, 0, len(merged))
	for name, t := range merged {
		cr, inCos := cosRank[name]
		lr, inLex := lexRank[name]
		if !inCos {
			cr = len(cosine) + 1
		}
		if !inLex {
			lr = len(lexical) + 1
		}

		var source models.TableSource
		switch {
		case inCos && inLex:
			source = models.SourceHybrid
		case inCos:
			source = models.SourceRetrieval
		default:
			source = models.SourceBM25
		}

		fused = append(fused, FusedTable{
			RetrievedTable: t,
			RRFScore:       1.0/float64(rrfK+cr) + 1.0/float64(rrfK+lr),
			Source:         source,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		return fused[i].TableName < fused[j].TableName
	})

	if maxTables > 0 && len(fused) > maxTables {
		fused = fused[:maxTables]
	}
	return fused
}

func rankOf(tables []repositories.RetrievedTable) map[string]int {
	ranks := make(map[string]int, len(tables))
	for i, t := range tables {
		if _, seen := ranks[t.TableName]; !seen {
			ranks[t.TableName] = i + 1
		}
	}
	return ranks
}
