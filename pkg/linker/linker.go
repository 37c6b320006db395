package linker

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

const (
	matchFloor     = 0.5
	relevanceFloor = 0.1

	matchCountWeight = 0.3
	bestScoreWeight  = 0.4
	similarityWeight = 0.3
)

// valueHintHints are the column type hints a quoted literal can plausibly
// live in.
var valueHintHints = map[models.TypeHint]bool{
	models.HintNameLabel:  true,
	models.HintText:       true,
	models.HintStatusEnum: true,
	models.HintCategory:   true,
	models.HintCode:       true,
}

// Options controls linking behavior.
type Options struct {
	// GlossesEnabled enriches column synonyms with abbreviations, plural
	// variants and type hints. When off, matching falls back to bare
	// column-name tokens.
	GlossesEnabled bool
}

// Linker grounds keyphrases against the packet schema.
type Linker struct {
	logger *zap.Logger
}

// New creates a schema linker.
func New(logger *zap.Logger) *Linker {
	return &Linker{logger: logger.Named("linker")}
}

// Link produces the grounded bundle for a question over a packet. The
// columnsByTable map must cover the packet tables; glosses may be
// pre-generated and passed via the glosses argument, otherwise they are
// derived here.
func (l *Linker) Link(question string, packet *models.SchemaContextPacket, columnsByTable map[string][]models.ColumnMeta, glosses map[string][]models.ColumnGloss, opts Options) *models.SchemaLinkBundle {
	if glosses == nil {
		if opts.GlossesEnabled {
			glosses = GenerateGlosses(columnsByTable)
		} else {
			glosses = BareGlosses(columnsByTable)
		}
	}

	phrases := ExtractKeyphrases(question)

	bundle := &models.SchemaLinkBundle{
		LinkedColumns: make(map[string][]models.LinkedColumn),
	}

	matchedPhrases := make(map[string]bool)

	// Per-table column matching: best-scoring phrase per column.
	type colMatch struct {
		column  string
		score   float64
		concept string
	}
	for _, entry := range packet.Tables {
		tableGlosses := glosses[entry.TableName]
		if len(tableGlosses) == 0 {
			continue
		}

		best := make(map[string]colMatch)
		for _, phrase := range phrases {
			if phrase.IsQuotedValue || phrase.IsNumber {
				continue
			}
			for _, g := range tableGlosses {
				score := scorePhrase(phrase.Text, g)
				if score < matchFloor {
					continue
				}
				matchedPhrases[phrase.Text] = true
				if prev, ok := best[g.ColumnName]; !ok || score > prev.score {
					best[g.ColumnName] = colMatch{column: g.ColumnName, score: score, concept: phrase.Text}
				}
			}
		}

		if len(best) == 0 && entry.Similarity < relevanceFloor/similarityWeight {
			continue
		}

		maxScore := 0.0
		cols := make([]models.LinkedColumn, 0, len(best))
		for _, m := range best {
			if m.score > maxScore {
				maxScore = m.score
			}
			cols = append(cols, models.LinkedColumn{Column: m.column, Relevance: m.score, Concept: m.concept})
		}
		sort.Slice(cols, func(i, j int) bool {
			if cols[i].Relevance != cols[j].Relevance {
				return cols[i].Relevance > cols[j].Relevance
			}
			return cols[i].Column < cols[j].Column
		})

		relevance := matchCountWeight*float64(len(best)) +
			bestScoreWeight*maxScore +
			similarityWeight*entry.Similarity
		if relevance < relevanceFloor {
			continue
		}

		reason := fmt.Sprintf("%d column matches", len(best))
		if len(cols) > 0 {
			reason += fmt.Sprintf(", best %q→%s (%.2f)", cols[0].Concept, cols[0].Column, cols[0].Relevance)
		}

		bundle.LinkedTables = append(bundle.LinkedTables, models.LinkedTable{
			Table:     entry.TableName,
			Relevance: relevance,
			Reason:    reason,
		})
		if len(cols) > 0 {
			bundle.LinkedColumns[entry.TableName] = cols
		}
	}

	sort.Slice(bundle.LinkedTables, func(i, j int) bool {
		if bundle.LinkedTables[i].Relevance != bundle.LinkedTables[j].Relevance {
			return bundle.LinkedTables[i].Relevance > bundle.LinkedTables[j].Relevance
		}
		return bundle.LinkedTables[i].Table < bundle.LinkedTables[j].Table
	})

	// Join hints: straight projection of packet FK edges.
	for _, e := range packet.FKEdges {
		bundle.JoinHints = append(bundle.JoinHints, models.JoinHint{
			From: e.FromTable + "." + e.FromColumn,
			To:   e.ToTable + "." + e.ToColumn,
			Via:  e.FromColumn,
		})
	}

	// Value hints: every quoted literal paired with every plausible column.
	for _, phrase := range phrases {
		if !phrase.IsQuotedValue {
			continue
		}
		for _, entry := range packet.Tables {
			for _, g := range glosses[entry.TableName] {
				if valueHintHints[g.TypeHint] {
					bundle.ValueHints = append(bundle.ValueHints, models.ValueHint{
						Value:        phrase.Text,
						LikelyColumn: g.ColumnName,
						LikelyTable:  entry.TableName,
					})
				}
			}
		}
	}

	// Unsupported concepts: unmatched plain unigrams.
	for _, phrase := range phrases {
		if phrase.IsQuotedValue || phrase.IsNumber || phrase.IsMetric || phrase.IsBigram {
			continue
		}
		if !matchedPhrases[phrase.Text] {
			bundle.UnsupportedConcepts = append(bundle.UnsupportedConcepts, phrase.Text)
		}
	}

	bundle.ColumnRedirects = detectColumnRedirects(packet.FKEdges, columnsByTable)
	bundle.ConfusableWarnings = detectConfusables(question, bundle.LinkedTables)

	l.logger.Debug("schema linking complete",
		zap.Int("linked_tables", len(bundle.LinkedTables)),
		zap.Int("value_hints", len(bundle.ValueHints)),
		zap.Int("unsupported", len(bundle.UnsupportedConcepts)))

	return bundle
}

// scorePhrase scores one phrase against one column gloss. The score is the
// maximum of synonym, column-token, and type-hint evidence.
func scorePhrase(phrase string, g models.ColumnGloss) float64 {
	score := 0.0

	for syn := range g.Synonyms {
		switch {
		case phrase == syn:
			return 1.0
		case len(phrase) >= 3 && (strings.HasPrefix(syn, phrase) || strings.HasPrefix(phrase, syn)):
			if score < 0.8 {
				score = 0.8
			}
		case len(phrase) >= 4 && (strings.Contains(syn, phrase) || strings.Contains(phrase, syn)):
			if score < 0.7 {
				score = 0.7
			}
		}
	}

	for _, tok := range snakeTokens(strings.ToLower(g.ColumnName)) {
		switch {
		case phrase == tok:
			return 1.0
		case len(phrase) >= 3 && strings.HasPrefix(tok, phrase):
			if score < 0.8 {
				score = 0.8
			}
		}
	}

	if len(phrase) >= 3 && strings.Contains(string(g.TypeHint), phrase) {
		if score < 0.5 {
			score = 0.5
		}
	}

	return score
}
