package rerank

import (
	"regexp"
	"strings"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

const (
	tableScoreWeight  = 0.4
	columnScoreWeight = 0.6
)

// schemaVocabulary is the known-tables and known-columns view the adherence
// signal checks candidate references against.
type schemaVocabulary struct {
	tables      map[string]bool
	columnsBy   map[string]map[string]bool
	bareColumns map[string]bool
}

// buildVocabulary unions the packet tables with the linked tables, and the
// packet's m_schema columns with the linker's columns.
func buildVocabulary(packet *models.SchemaContextPacket, bundle *models.SchemaLinkBundle) schemaVocabulary {
	v := schemaVocabulary{
		tables:      make(map[string]bool),
		columnsBy:   make(map[string]map[string]bool),
		bareColumns: make(map[string]bool),
	}
	addColumn := func(table, column string) {
		table, column = strings.ToLower(table), strings.ToLower(column)
		if v.columnsBy[table] == nil {
			v.columnsBy[table] = make(map[string]bool)
		}
		v.columnsBy[table][column] = true
		v.bareColumns[column] = true
	}

	if packet != nil {
		for _, t := range packet.Tables {
			v.tables[strings.ToLower(t.TableName)] = true
			for _, col := range parseMSchemaColumns(t.MSchema) {
				addColumn(t.TableName, col)
			}
		}
	}
	if bundle != nil {
		for _, t := range bundle.LinkedTables {
			v.tables[strings.ToLower(t.Table)] = true
		}
		for table, cols := range bundle.LinkedColumns {
			for _, c := range cols {
				addColumn(table, c.Column)
			}
		}
	}
	return v
}

// parseMSchemaColumns reads the column names out of a rendered m_schema
// line of the form "name (col: type PK, col: type FK→ref, ...)".
func parseMSchemaColumns(mschema string) []string {
	open := strings.Index(mschema, "(")
	end := strings.LastIndex(mschema, ")")
	if open < 0 || end <= open {
		return nil
	}
	var cols []string
	for _, part := range strings.Split(mschema[open+1:end], ",") {
		name, _, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// adherenceScore measures how many of the candidate's table and column
// references resolve against the vocabulary. Empty reference sets score 1.0.
func adherenceScore(refs queryRefs, vocab schemaVocabulary) float64 {
	tableScore := 1.0
	if len(refs.tables) > 0 {
		found := 0
		for _, t := range refs.tables {
			if vocab.tables[t] {
				found++
			}
		}
		tableScore = float64(found) / float64(len(refs.tables))
	}

	columnScore := 1.0
	if len(refs.columns) > 0 {
		found := 0
		for _, c := range refs.columns {
			if columnKnown(c, refs.aliases, vocab) {
				found++
			}
		}
		columnScore = float64(found) / float64(len(refs.columns))
	}

	return tableScoreWeight*tableScore + columnScoreWeight*columnScore
}

func columnKnown(c columnRef, aliases map[string]string, vocab schemaVocabulary) bool {
	if c.qualifier == "" {
		return vocab.bareColumns[c.column]
	}
	table := c.qualifier
	if resolved, ok := aliases[c.qualifier]; ok {
		table = resolved
	}
	if cols, ok := vocab.columnsBy[table]; ok {
		return cols[c.column]
	}
	// Unknown qualifier; fall back to the bare set rather than punish an
	// alias the extractor failed to resolve.
	return vocab.bareColumns[c.column]
}

// joinMatchScore compares the candidate's ON conditions with the planned
// skeletons and keeps the best ratio. No plan means no signal, 1.0.
func joinMatchScore(refs queryRefs, plan *models.JoinPlan) float64 {
	if plan == nil || len(plan.Skeletons) == 0 {
		return 1.0
	}
	best := 0.0
	for _, skeleton := range plan.Skeletons {
		if len(skeleton.Joins) == 0 && len(refs.joins) == 0 {
			best = 1.0
			break
		}
		denominator := len(refs.joins)
		if len(skeleton.Joins) > denominator {
			denominator = len(skeleton.Joins)
		}
		if denominator == 0 {
			continue
		}
		matched := 0
		for _, j := range skeleton.Joins {
			for _, extracted := range refs.joins {
				if extracted.matches(
					strings.ToLower(j.FromTable), strings.ToLower(j.FromColumn),
					strings.ToLower(j.ToTable), strings.ToLower(j.ToColumn)) {
					matched++
					break
				}
			}
		}
		if ratio := float64(matched) / float64(denominator); ratio > best {
			best = ratio
		}
	}
	return best
}

// aggregation kinds inferred from the question or observed in the SQL.
const (
	aggUnknown = "unknown"
	aggList    = "list"
	aggCount   = "count"
	aggSum     = "sum"
	aggAvg     = "avg"
	aggMin     = "min"
	aggMax     = "max"
)

var questionAggCues = []struct {
	kind string
	cues []string
}{
	{aggCount, []string{"how many", "count", "number of"}},
	{aggSum, []string{"total", "sum"}},
	{aggAvg, []string{"average", "avg", "mean"}},
	{aggMin, []string{"min", "lowest", "smallest", "least"}},
	{aggMax, []string{"max", "highest", "largest", "greatest", "most"}},
	{aggList, []string{"list", "show", "display", "all "}},
}

var (
	aggFuncPattern   = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MIN|MAX)\s*\(`)
	groupByPattern   = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	orderByPattern   = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	groupingCues     = []string{" by ", " per ", " for each ", " breakdown"}
	orderingCues     = []string{"top ", "bottom ", "rank", "sort", "highest", "lowest"}
)

// ExpectedAggregation classifies the aggregation intent of a question:
// count, sum, avg, min, max, list, or unknown. The reranker's result-shape
// signal and the response trace share this classification.
func ExpectedAggregation(question string) string {
	return expectedAggregation(question)
}

func expectedAggregation(question string) string {
	lower := strings.ToLower(question)
	for _, entry := range questionAggCues {
		for _, cue := range entry.cues {
			if strings.Contains(lower, cue) {
				return entry.kind
			}
		}
	}
	return aggUnknown
}

func actualAggregation(sqlText string) string {
	m := aggFuncPattern.FindStringSubmatch(sqlText)
	if m == nil {
		return aggList
	}
	return strings.ToLower(m[1])
}

// resultShapeScore compares the aggregation shape the question asks for
// with the shape the SQL produces, with GROUP BY and ORDER BY adjustments.
func resultShapeScore(question, sqlText string) float64 {
	expected := expectedAggregation(question)
	actual := actualAggregation(sqlText)

	var score float64
	switch {
	case expected == aggUnknown:
		score = 0.5
	case expected == actual:
		score = 1.0
	case expected != aggList && actual != aggList:
		score = 0.3
	default:
		score = 0.0
	}

	lower := strings.ToLower(question)
	expectGroup := containsAny(lower, groupingCues) && expected != aggList && expected != aggUnknown
	hasGroup := groupByPattern.MatchString(sqlText)
	if expectGroup && hasGroup {
		score += 0.1
	} else if expectGroup && !hasGroup {
		score -= 0.2
	}

	if containsAny(lower, orderingCues) && orderByPattern.MatchString(sqlText) {
		score += 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
