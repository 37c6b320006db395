package rerank

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
	sqlgate "github.com/groundline-ai/groundline-engine/pkg/sql"
)

const valueCheckTimeout = time.Second

// valueCheck is one literal comparison extracted from a candidate.
type valueCheck struct {
	table  string
	column string
	value  string
}

// extractValueChecks pulls `col = 'v'` and `col IN ('v1', ...)` comparisons
// from the candidate. LIKE/ILIKE comparisons are skipped because patterns
// are not verifiable values. The table is resolved through the alias map
// when qualified, or taken from a single-table FROM clause when bare.
func extractValueChecks(sqlText string, refs queryRefs, packet *models.SchemaContextPacket) []valueCheck {
	literals := singleQuotedLiterals(sqlText)
	if len(literals) == 0 {
		return nil
	}

	resolveTable := func(qualifier string) string {
		if qualifier == "" {
			if len(refs.tables) == 1 {
				return refs.tables[0]
			}
			return ""
		}
		if table, ok := refs.aliases[qualifier]; ok {
			return table
		}
		return qualifier
	}

	words := lex(sqlText)
	var checks []valueCheck
	literalIdx := 0
	for i := 0; i < len(words) && literalIdx < len(literals); i++ {
		if words[i].punct != '=' && !strings.EqualFold(words[i].text, "IN") {
			continue
		}
		if i == 0 {
			continue
		}
		// The literal was stripped from the word stream, so an `=` whose
		// right side still shows an identifier compares columns, not values.
		if words[i].punct == '=' && i+1 < len(words) &&
			words[i+1].punct == 0 && !reservedWords[strings.ToUpper(words[i+1].text)] {
			continue
		}
		qualifier, column, ok := columnBefore(words, i-1)
		if !ok {
			continue
		}
		table := resolveTable(qualifier)
		if table == "" || packet == nil || !packet.HasTable(table) {
			continue
		}
		count := 1
		if strings.EqualFold(words[i].text, "IN") {
			count = inListSize(sqlText, words, i)
		}
		for n := 0; n < count && literalIdx < len(literals); n++ {
			checks = append(checks, valueCheck{table: table, column: column, value: literals[literalIdx]})
			literalIdx++
		}
	}
	return checks
}

// columnBefore reads a column reference ending at position i, returning its
// qualifier when present.
func columnBefore(words []word, i int) (string, string, bool) {
	if i < 0 || words[i].punct != 0 || reservedWords[strings.ToUpper(words[i].text)] {
		return "", "", false
	}
	column := strings.ToLower(words[i].text)
	if i >= 2 && words[i-1].punct == '.' && words[i-2].punct == 0 {
		return strings.ToLower(words[i-2].text), column, true
	}
	return "", column, true
}

// inListSize counts the literals inside the parenthesized IN list. The word
// stream has literals stripped, so the count comes from the commas.
func inListSize(sqlText string, words []word, i int) int {
	j := i + 1
	if j >= len(words) || words[j].punct != '(' {
		return 0
	}
	commas := 0
	for j++; j < len(words) && words[j].punct != ')'; j++ {
		if words[j].punct == ',' {
			commas++
			continue
		}
		return 0 // subquery or column list, not stripped literals
	}
	return commas + 1
}

// singleQuotedLiterals returns the unescaped literal values in order of
// appearance, excluding those following a LIKE or ILIKE.
func singleQuotedLiterals(sqlText string) []string {
	var literals []string
	prevNormal := ""
	for _, r := range sqlgate.Tokenize(sqlText) {
		switch r.Kind {
		case sqlgate.RegionNormal:
			prevNormal = r.Text
		case sqlgate.RegionSingleQuote:
			trimmed := strings.TrimSpace(prevNormal)
			fields := strings.Fields(strings.ToUpper(trimmed))
			if len(fields) > 0 {
				last := fields[len(fields)-1]
				if last == "LIKE" || last == "ILIKE" {
					continue
				}
			}
			inner := strings.TrimSuffix(strings.TrimPrefix(r.Text, "'"), "'")
			literals = append(literals, strings.ReplaceAll(inner, "''", "'"))
		}
	}
	return literals
}

// verifyValues probes each extracted literal against the store and returns
// verified/total. Probe errors count as unverified without penalizing the
// score denominator. No checkable values scores neutral 1.0.
func verifyValues(ctx context.Context, store repositories.SchemaStore, checks []valueCheck) (float64, int) {
	if len(checks) == 0 || store == nil {
		return 1.0, 0
	}

	var mu sync.Mutex
	verified := 0
	attempted := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, check := range checks {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, valueCheckTimeout)
			defer cancel()
			exists, err := store.ValueExists(probeCtx, check.table, check.column, check.value)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				return nil // unverified, not penalized
			}
			attempted++
			if exists {
				verified++
			}
			return nil
		})
	}
	_ = g.Wait()

	if attempted == 0 {
		return 1.0, len(checks)
	}
	return float64(verified) / float64(attempted), len(checks)
}
