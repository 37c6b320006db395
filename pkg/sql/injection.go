package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// sqlKeywords are words never usable as aliases or bare column names.
var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "ON": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true,
	"CROSS": true, "AND": true, "OR": true, "NOT": true, "AS": true,
	"GROUP": true, "ORDER": true, "BY": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "FETCH": true, "FIRST": true, "NEXT": true, "ROWS": true,
	"ONLY": true, "DISTINCT": true, "UNION": true, "ALL": true, "IN": true,
	"IS": true, "NULL": true, "LIKE": true, "ILIKE": true, "BETWEEN": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"ASC": true, "DESC": true, "USING": true, "WITH": true, "EXISTS": true,
}

// scanLiterals runs the injection heuristic over each single-quoted literal
// and returns at most one advisory issue. Detection is best-effort; it
// never fails a candidate because aggregate questions legitimately quote
// odd-looking values.
func scanLiterals(sqlText string) *models.LintIssue {
	for _, r := range Tokenize(sqlText) {
		if r.Kind != RegionSingleQuote {
			continue
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(r.Text, "'"), "'")
		inner = strings.ReplaceAll(inner, "''", "'")
		if len(inner) < 4 {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(inner); isSQLi {
			return &models.LintIssue{
				Code:     CodeSuspiciousLiteral,
				Severity: SeverityWarning,
				Message:  "string literal matches an injection fingerprint " + string(fingerprint),
			}
		}
	}
	return nil
}
