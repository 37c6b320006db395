package sql

import (
	"fmt"
	"strings"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// Issue codes form a closed taxonomy; downstream repair depends on it.
const (
	CodeNoSelect           = "NO_SELECT"
	CodeMultipleStatements = "MULTIPLE_STATEMENTS"
	CodeMissingSemicolon   = "MISSING_SEMICOLON"
	CodeDangerousKeyword   = "DANGEROUS_KEYWORD"
	CodeDangerousFunction  = "DANGEROUS_FUNCTION"
	CodeTableNotAllowed    = "TABLE_NOT_ALLOWED"
	CodeMissingLimit       = "MISSING_LIMIT"
	CodeTooManyJoins       = "TOO_MANY_JOINS"
	CodeSuspiciousLiteral  = "SUSPICIOUS_LITERAL"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityFailFast = "fail_fast"
)

// dangerousKeywords are rejected anywhere in NORMAL regions, whole-word,
// case-insensitive. DDL, writes, DCL, TCL and server-side execution.
var dangerousKeywords = map[string]bool{
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true, "RENAME": true,
	"INSERT": true, "UPDATE": true, "DELETE": true,
	"GRANT": true, "REVOKE": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true, "SAVEPOINT": true,
	"COPY": true, "EXECUTE": true, "PREPARE": true,
}

// dangerousFunctions are rejected when called, i.e. when the identifier is
// immediately followed by an opening parenthesis.
var dangerousFunctions = map[string]bool{
	"pg_read_file": true, "pg_read_binary_file": true, "pg_ls_dir": true,
	"lo_export": true, "lo_import": true,
	"pg_sleep": true, "pg_terminate_backend": true, "pg_cancel_backend": true,
	"pg_reload_conf": true, "pg_rotate_logfile": true,
}

const dangerousFunctionPrefix = "dblink"

// reserved words never treated as table names after FROM/JOIN.
var reservedAfterFrom = map[string]bool{
	"SELECT": true, "LATERAL": true, "ONLY": true, "UNNEST": true,
	"GENERATE_SERIES": true, "VALUES": true,
}

// Options configures the validator rules.
type Options struct {
	// MaxLimit is the LIMIT value appended when RequireLimit is set and the
	// statement has none.
	MaxLimit int
	// MaxJoins is the join count above which a warning is raised.
	MaxJoins int
	// RequireLimit enables the auto-LIMIT fix.
	RequireLimit bool
}

func (o *Options) normalize() {
	if o.MaxLimit <= 0 {
		o.MaxLimit = 1000
	}
	if o.MaxJoins <= 0 {
		o.MaxJoins = 5
	}
}

// Validator is the static gate applied to each candidate before reranking.
// It never rejects the request; fail-fast issues eject the candidate only.
type Validator struct {
	opts Options
}

// NewValidator creates a validator with the given options.
func NewValidator(opts Options) *Validator {
	opts.normalize()
	return &Validator{opts: opts}
}

// Validate runs the ordered rule set over one candidate. allowedTables is
// the lowercased set of tables the candidate may reference; nil disables
// the allowlist rule. Valid means no error or fail-fast issue;
// ExecutableSafely means no fail-fast issue.
func (v *Validator) Validate(sqlText string, allowedTables map[string]bool) models.LintResult {
	result := models.LintResult{AutoFixedSQL: strings.TrimSpace(sqlText)}
	tokens := tokenizeWords(sqlText)

	// Rule 1: the statement must be a SELECT.
	if first, ok := firstWord(tokens); !ok || !strings.EqualFold(first, "SELECT") {
		result.Issues = append(result.Issues, models.LintIssue{
			Code:     CodeNoSelect,
			Severity: SeverityFailFast,
			Message:  "statement must start with SELECT",
			Action:   "reject",
		})
	}

	// Rule 2: a single statement. One semicolon is tolerated when nothing
	// but whitespace or comments follows it.
	if multipleStatements(sqlText) {
		result.Issues = append(result.Issues, models.LintIssue{
			Code:     CodeMultipleStatements,
			Severity: SeverityFailFast,
			Message:  "multiple statements are not allowed",
			Action:   "reject",
		})
	}

	// Rule 3: normalize the terminator.
	if terminatorIndex(result.AutoFixedSQL) < 0 {
		result.AutoFixedSQL = strings.TrimRight(result.AutoFixedSQL, " \t\n\r") + ";"
		result.Issues = append(result.Issues, models.LintIssue{
			Code:     CodeMissingSemicolon,
			Severity: SeverityInfo,
			Message:  "appended missing statement terminator",
			Action:   "auto_fixed",
		})
	}

	// Rules 4 and 5: dangerous keywords and function calls. Only NORMAL
	// tokens reach this point, so anything quoted or commented is invisible.
	for i, t := range tokens {
		if t.quoted {
			continue
		}
		upper := strings.ToUpper(t.text)
		if upper == "SELECT" && i == 0 {
			continue
		}
		if dangerousKeywords[upper] {
			result.Issues = append(result.Issues, models.LintIssue{
				Code:     CodeDangerousKeyword,
				Severity: SeverityFailFast,
				Message:  fmt.Sprintf("dangerous keyword %s is not allowed", upper),
				Action:   "reject",
			})
			continue
		}
		lower := strings.ToLower(t.text)
		if (dangerousFunctions[lower] || strings.HasPrefix(lower, dangerousFunctionPrefix)) &&
			i+1 < len(tokens) && tokens[i+1].text == "(" {
			result.Issues = append(result.Issues, models.LintIssue{
				Code:     CodeDangerousFunction,
				Severity: SeverityFailFast,
				Message:  fmt.Sprintf("function %s is not allowed", lower),
				Action:   "reject",
			})
		}
	}

	// Rule 6: table allowlist.
	if allowedTables != nil {
		for _, table := range extractTablesFromTokens(tokens) {
			if !allowedTables[table] {
				result.Issues = append(result.Issues, models.LintIssue{
					Code:     CodeTableNotAllowed,
					Severity: SeverityError,
					Message:  fmt.Sprintf("table %s is not in the schema context", table),
					Action:   "rewrite",
				})
			}
		}
	}

	// Rule 7: auto-LIMIT before the terminator.
	if v.opts.RequireLimit && !hasRowLimit(tokens) {
		fixed := result.AutoFixedSQL
		if idx := terminatorIndex(fixed); idx >= 0 {
			result.AutoFixedSQL = fmt.Sprintf("%s LIMIT %d;%s",
				strings.TrimRight(fixed[:idx], " \t\n\r"), v.opts.MaxLimit, fixed[idx+1:])
		} else {
			result.AutoFixedSQL = fmt.Sprintf("%s LIMIT %d;",
				strings.TrimRight(fixed, " \t\n\r"), v.opts.MaxLimit)
		}
		result.Issues = append(result.Issues, models.LintIssue{
			Code:     CodeMissingLimit,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("appended LIMIT %d", v.opts.MaxLimit),
			Action:   "auto_fixed",
		})
	}

	// Rule 8: join count is advisory only.
	if joins := countJoins(tokens); joins > v.opts.MaxJoins {
		result.Issues = append(result.Issues, models.LintIssue{
			Code:     CodeTooManyJoins,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d joins exceeds the advisory maximum of %d", joins, v.opts.MaxJoins),
		})
	}

	if issue := scanLiterals(sqlText); issue != nil {
		result.Issues = append(result.Issues, *issue)
	}

	result.Valid = true
	result.ExecutableSafely = true
	for _, issue := range result.Issues {
		switch issue.Severity {
		case SeverityFailFast:
			result.Valid = false
			result.ExecutableSafely = false
		case SeverityError:
			result.Valid = false
		}
	}
	return result
}

// firstWord returns the first word token, skipping punctuation.
func firstWord(tokens []token) (string, bool) {
	for _, t := range tokens {
		if t.quoted || !isWordChar(t.text[0]) {
			continue
		}
		return t.text, true
	}
	return "", false
}

// terminatorIndex returns the byte offset of the first NORMAL-region
// semicolon, or -1 when the statement has no terminator.
func terminatorIndex(sqlText string) int {
	for _, r := range Tokenize(sqlText) {
		if r.Kind != RegionNormal {
			continue
		}
		if i := strings.IndexByte(r.Text, ';'); i >= 0 {
			return r.Start + i
		}
	}
	return -1
}

// multipleStatements reports whether a NORMAL-region semicolon is followed
// by anything other than whitespace or comments.
func multipleStatements(sqlText string) bool {
	terminated := false
	for _, r := range Tokenize(sqlText) {
		switch r.Kind {
		case RegionLineComment, RegionBlockComment:
			continue
		case RegionNormal:
			for _, c := range r.Text {
				if terminated {
					if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
						return true
					}
					continue
				}
				if c == ';' {
					terminated = true
				}
			}
		default:
			if terminated {
				return true
			}
		}
	}
	return false
}

// ExtractTables collects the table names referenced after FROM and JOIN,
// lowercased, schema prefix stripped, deduplicated in first-seen order.
// Subqueries after FROM contribute nothing at the opening parenthesis; their
// inner FROM/JOIN clauses are scanned like any other.
func ExtractTables(sqlText string) []string {
	return extractTablesFromTokens(tokenizeWords(sqlText))
}

func extractTablesFromTokens(tokens []token) []string {
	var tables []string
	seen := make(map[string]bool)

	add := func(name string) {
		name = strings.ToLower(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		tables = append(tables, name)
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.quoted || (!strings.EqualFold(t.text, "FROM") && !strings.EqualFold(t.text, "JOIN")) {
			continue
		}
		j := i + 1
		for j < len(tokens) {
			name, next, ok := readTableName(tokens, j)
			if !ok {
				break
			}
			add(name)
			// Skip an alias, then continue through a comma-separated FROM list.
			j = skipAlias(tokens, next)
			if j < len(tokens) && tokens[j].text == "," && strings.EqualFold(t.text, "FROM") {
				j++
				continue
			}
			break
		}
	}
	return tables
}

// readTableName consumes one possibly schema-qualified name starting at
// position i and returns the unqualified table name.
func readTableName(tokens []token, i int) (string, int, bool) {
	if i >= len(tokens) {
		return "", i, false
	}
	t := tokens[i]
	if !t.quoted {
		if !isWordChar(t.text[0]) || reservedAfterFrom[strings.ToUpper(t.text)] {
			return "", i, false
		}
	}
	name := t.text
	i++
	for i+1 < len(tokens) && tokens[i].text == "." {
		name = tokens[i+1].text
		i += 2
	}
	return name, i, true
}

// skipAlias advances past an optional `AS alias` or bare alias token.
func skipAlias(tokens []token, i int) int {
	if i < len(tokens) && strings.EqualFold(tokens[i].text, "AS") && !tokens[i].quoted {
		i++
	}
	if i < len(tokens) && (tokens[i].quoted || (isWordChar(tokens[i].text[0]) && !sqlKeywords[strings.ToUpper(tokens[i].text)])) {
		i++
	}
	return i
}

// hasRowLimit reports whether the statement already bounds its result set
// via LIMIT or FETCH FIRST/NEXT.
func hasRowLimit(tokens []token) bool {
	for i, t := range tokens {
		if t.quoted {
			continue
		}
		upper := strings.ToUpper(t.text)
		if upper == "LIMIT" {
			return true
		}
		if upper == "FETCH" && i+1 < len(tokens) {
			next := strings.ToUpper(tokens[i+1].text)
			if next == "FIRST" || next == "NEXT" {
				return true
			}
		}
	}
	return false
}

func countJoins(tokens []token) int {
	joins := 0
	for _, t := range tokens {
		if !t.quoted && strings.EqualFold(t.text, "JOIN") {
			joins++
		}
	}
	return joins
}

// repairInstructions maps issue codes to the imperative phrasing the repair
// endpoint expects.
var repairInstructions = map[string]string{
	CodeNoSelect:           "Rewrite the query as a single SELECT statement",
	CodeMultipleStatements: "Emit exactly one SQL statement",
	CodeDangerousKeyword:   "Remove DDL, DML write, and transaction-control keywords; the query must be read-only",
	CodeDangerousFunction:  "Remove calls to server administration functions",
	CodeTableNotAllowed:    "Reference only the tables listed in the schema context",
	CodeTooManyJoins:       "Reduce the number of joined tables",
	CodeSuspiciousLiteral:  "Replace suspicious string literals with plain constant values",
}

// CompressIssues maps issues to short repair instructions, deduplicated in
// order. Auto-fixed informational issues produce nothing.
func CompressIssues(issues []models.LintIssue) []string {
	var out []string
	seen := make(map[string]bool)
	for _, issue := range issues {
		instruction, ok := repairInstructions[issue.Code]
		if !ok || seen[instruction] {
			continue
		}
		seen[instruction] = true
		out = append(out, instruction)
	}
	return out
}
