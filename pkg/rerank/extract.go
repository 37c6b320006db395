// Package rerank reorders generated SQL candidates with additive bonus
// signals. It never rejects a candidate; a signal that cannot be computed
// scores neutral.
package rerank

import (
	"strings"

	sqlgate "github.com/groundline-ai/groundline-engine/pkg/sql"
)

// keywords excluded from alias and bare-column extraction.
var reservedWords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "ON": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true,
	"CROSS": true, "AND": true, "OR": true, "NOT": true, "AS": true,
	"GROUP": true, "ORDER": true, "BY": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "FETCH": true, "FIRST": true, "NEXT": true, "ROWS": true,
	"ONLY": true, "DISTINCT": true, "UNION": true, "ALL": true, "IN": true,
	"IS": true, "NULL": true, "LIKE": true, "ILIKE": true, "BETWEEN": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"ASC": true, "DESC": true, "USING": true, "WITH": true, "EXISTS": true,
	"TRUE": true, "FALSE": true,
}

// columnRef is a column reference found in the candidate. Qualifier is the
// alias or table written before the dot, empty for bare references.
type columnRef struct {
	qualifier string
	column    string
}

// joinCondition is one `a.c = b.d` equality from an ON clause, with
// aliases resolved to table names.
type joinCondition struct {
	leftTable, leftColumn   string
	rightTable, rightColumn string
}

// matches reports equality in either column order.
func (j joinCondition) matches(fromTable, fromCol, toTable, toCol string) bool {
	if j.leftTable == fromTable && j.leftColumn == fromCol &&
		j.rightTable == toTable && j.rightColumn == toCol {
		return true
	}
	return j.leftTable == toTable && j.leftColumn == toCol &&
		j.rightTable == fromTable && j.rightColumn == fromCol
}

// queryRefs is everything the bonus signals need from one candidate.
type queryRefs struct {
	tables  []string
	aliases map[string]string
	columns []columnRef
	joins   []joinCondition
}

// word is one lexical unit of the literal-stripped candidate text.
type word struct {
	text  string
	punct byte // nonzero for single-char punctuation tokens
}

func lex(sqlText string) []word {
	stripped := sqlgate.NormalText(sqlText)
	var words []word
	i := 0
	for i < len(stripped) {
		c := stripped[i]
		switch {
		case isIdent(c):
			j := i
			for j < len(stripped) && isIdent(stripped[j]) {
				j++
			}
			words = append(words, word{text: stripped[i:j]})
			i = j
		case c == '.' || c == ',' || c == '(' || c == ')' || c == '=' || c == ';' || c == '*':
			words = append(words, word{text: string(c), punct: c})
			i++
		default:
			i++
		}
	}
	return words
}

func isIdent(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// extractRefs pulls table references, the alias map, column references, and
// join conditions out of one candidate. Extraction is lexical; subqueries
// contribute their references to the same flat sets.
func extractRefs(sqlText string) queryRefs {
	refs := queryRefs{aliases: make(map[string]string)}
	refs.tables = sqlgate.ExtractTables(sqlText)

	words := lex(sqlText)
	extractAliases(words, &refs)
	extractColumns(words, &refs)
	extractJoins(words, &refs)
	return refs
}

// extractAliases scans FROM/JOIN clauses for `table alias` and
// `table AS alias` forms.
func extractAliases(words []word, refs *queryRefs) {
	for i := 0; i < len(words); i++ {
		upper := strings.ToUpper(words[i].text)
		if upper != "FROM" && upper != "JOIN" {
			continue
		}
		table, next, ok := readName(words, i+1)
		if !ok {
			continue
		}
		j := next
		if j < len(words) && strings.EqualFold(words[j].text, "AS") {
			j++
		}
		if j < len(words) && words[j].punct == 0 && !reservedWords[strings.ToUpper(words[j].text)] {
			refs.aliases[strings.ToLower(words[j].text)] = table
		}
	}
}

// readName consumes a possibly schema-qualified identifier and returns the
// unqualified, lowercased name.
func readName(words []word, i int) (string, int, bool) {
	if i >= len(words) || words[i].punct != 0 || reservedWords[strings.ToUpper(words[i].text)] {
		return "", i, false
	}
	name := words[i].text
	i++
	for i+1 < len(words) && words[i].punct == '.' && words[i+1].punct == 0 {
		name = words[i+1].text
		i += 2
	}
	return strings.ToLower(name), i, true
}

// extractColumns collects qualified `q.col` references everywhere, and bare
// references in column positions: after SELECT, WHERE, ON, HAVING, BY, or a
// comma. Function calls and reserved words are skipped.
func extractColumns(words []word, refs *queryRefs) {
	seen := make(map[string]bool)
	add := func(qualifier, column string) {
		key := qualifier + "." + column
		if seen[key] {
			return
		}
		seen[key] = true
		refs.columns = append(refs.columns, columnRef{qualifier: qualifier, column: column})
	}

	inFromClause := false
	for i := 0; i < len(words); i++ {
		w := words[i]
		if w.punct != 0 {
			continue
		}
		upper := strings.ToUpper(w.text)
		switch upper {
		case "FROM", "JOIN":
			inFromClause = true
			continue
		case "SELECT", "WHERE", "ON", "HAVING", "BY":
			inFromClause = false
			continue
		}
		if reservedWords[upper] {
			continue
		}

		// Qualified reference.
		if i+2 < len(words) && words[i+1].punct == '.' && words[i+2].punct == 0 {
			add(strings.ToLower(w.text), strings.ToLower(words[i+2].text))
			i += 2
			continue
		}
		// Part of a qualified reference already consumed, a function call,
		// or a table position.
		if i+1 < len(words) && (words[i+1].punct == '.' || words[i+1].punct == '(') {
			continue
		}
		if inFromClause {
			continue
		}
		if bareColumnPosition(words, i) {
			add("", strings.ToLower(w.text))
		}
	}
}

// bareColumnPosition reports whether the previous meaningful token puts the
// word in a column position.
func bareColumnPosition(words []word, i int) bool {
	for j := i - 1; j >= 0; j-- {
		prev := words[j]
		if prev.punct == ',' || prev.punct == '(' || prev.punct == '=' {
			return true
		}
		if prev.punct != 0 {
			return false
		}
		switch strings.ToUpper(prev.text) {
		case "SELECT", "WHERE", "ON", "HAVING", "BY", "AND", "OR":
			return true
		}
		return false
	}
	return false
}

// extractJoins pulls `a.c = b.d` equalities out of ON clauses, following
// AND-compound conditions, and resolves aliases to table names.
func extractJoins(words []word, refs *queryRefs) {
	resolve := func(qualifier string) string {
		if table, ok := refs.aliases[qualifier]; ok {
			return table
		}
		return qualifier
	}

	for i := 0; i < len(words); i++ {
		if words[i].punct != 0 || !strings.EqualFold(words[i].text, "ON") {
			continue
		}
		j := i + 1
		for j < len(words) {
			// Expect q.c = q.c, AND-chained.
			lq, lc, next, ok := readQualified(words, j)
			if !ok {
				break
			}
			if next >= len(words) || words[next].punct != '=' {
				break
			}
			rq, rc, next2, ok := readQualified(words, next+1)
			if !ok {
				break
			}
			refs.joins = append(refs.joins, joinCondition{
				leftTable: resolve(lq), leftColumn: lc,
				rightTable: resolve(rq), rightColumn: rc,
			})
			j = next2
			if j < len(words) && strings.EqualFold(words[j].text, "AND") {
				j++
				continue
			}
			break
		}
		i = j - 1
	}
}

func readQualified(words []word, i int) (string, string, int, bool) {
	if i+2 >= len(words) || words[i].punct != 0 || words[i+1].punct != '.' || words[i+2].punct != 0 {
		return "", "", i, false
	}
	if reservedWords[strings.ToUpper(words[i].text)] {
		return "", "", i, false
	}
	return strings.ToLower(words[i].text), strings.ToLower(words[i+2].text), i + 3, true
}
