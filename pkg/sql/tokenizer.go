// Package sql provides the static validation gate applied to generated
// candidates: a region tokenizer, an ordered rule set, and a literal
// injection heuristic.
package sql

import (
	"strings"
)

// RegionKind classifies a contiguous span of a SQL string.
type RegionKind int

const (
	RegionNormal RegionKind = iota
	RegionSingleQuote
	RegionDoubleQuote
	RegionDollarQuote
	RegionLineComment
	RegionBlockComment
)

// Region is one tokenizer span. Text includes the delimiters for quote and
// comment regions so offsets stay aligned with the input.
type Region struct {
	Kind  RegionKind
	Start int
	Text  string
}

// Tokenize splits sql into regions in a single linear pass. Unterminated
// quotes and comments close at end of input, so tokenization always
// terminates.
func Tokenize(sql string) []Region {
	var regions []Region
	var state RegionKind
	start := 0
	dollarTag := ""

	flush := func(end int, kind RegionKind) {
		if end > start {
			regions = append(regions, Region{Kind: kind, Start: start, Text: sql[start:end]})
		}
		start = end
	}

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch state {
		case RegionNormal:
			switch {
			case c == '\'':
				flush(i, RegionNormal)
				state = RegionSingleQuote
				i++
			case c == '"':
				flush(i, RegionNormal)
				state = RegionDoubleQuote
				i++
			case c == '$':
				if tag, ok := dollarQuoteOpen(sql[i:]); ok {
					flush(i, RegionNormal)
					state = RegionDollarQuote
					dollarTag = tag
					i += len(tag) + 2
				} else {
					i++
				}
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				flush(i, RegionNormal)
				state = RegionLineComment
				i += 2
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				flush(i, RegionNormal)
				state = RegionBlockComment
				i += 2
			default:
				i++
			}
		case RegionSingleQuote:
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					i += 2 // '' escape stays inside the literal
				} else {
					i++
					flush(i, RegionSingleQuote)
					state = RegionNormal
				}
			} else {
				i++
			}
		case RegionDoubleQuote:
			if c == '"' {
				if i+1 < len(sql) && sql[i+1] == '"' {
					i += 2
				} else {
					i++
					flush(i, RegionDoubleQuote)
					state = RegionNormal
				}
			} else {
				i++
			}
		case RegionDollarQuote:
			closer := "$" + dollarTag + "$"
			if c == '$' && strings.HasPrefix(sql[i:], closer) {
				i += len(closer)
				flush(i, RegionDollarQuote)
				state = RegionNormal
			} else {
				i++
			}
		case RegionLineComment:
			if c == '\n' {
				i++
				flush(i, RegionLineComment)
				state = RegionNormal
			} else {
				i++
			}
		case RegionBlockComment:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				i += 2
				flush(i, RegionBlockComment)
				state = RegionNormal
			} else {
				i++
			}
		}
	}
	flush(len(sql), state)
	return regions
}

// dollarQuoteOpen reports whether s begins a dollar-quote opener $tag$ and
// returns the tag, which may be empty.
func dollarQuoteOpen(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[1:i], true
		}
		if !isIdentChar(c) {
			return "", false
		}
	}
	return "", false
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// NormalText returns sql with every non-NORMAL region replaced by spaces of
// equal length, so byte offsets into the result map back to the input.
// Rule scans operate on this view only.
func NormalText(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	for _, r := range Tokenize(sql) {
		if r.Kind == RegionNormal {
			b.WriteString(r.Text)
		} else {
			b.WriteString(strings.Repeat(" ", len(r.Text)))
		}
	}
	return b.String()
}

// token is one lexical unit from the NORMAL regions, plus double-quoted
// identifiers. Quoted tokens keep their inner text verbatim.
type token struct {
	text   string
	quoted bool
}

// tokenize lexes word and punctuation tokens from sql. String literals and
// comments contribute nothing; double-quoted regions yield one quoted token
// with the "" escape collapsed.
func tokenizeWords(sql string) []token {
	var tokens []token
	for _, r := range Tokenize(sql) {
		switch r.Kind {
		case RegionDoubleQuote:
			inner := strings.TrimSuffix(strings.TrimPrefix(r.Text, `"`), `"`)
			tokens = append(tokens, token{text: strings.ReplaceAll(inner, `""`, `"`), quoted: true})
		case RegionNormal:
			i := 0
			s := r.Text
			for i < len(s) {
				c := s[i]
				switch {
				case isWordChar(c):
					j := i
					for j < len(s) && isWordChar(s[j]) {
						j++
					}
					tokens = append(tokens, token{text: s[i:j]})
					i = j
				case c == '(' || c == ')' || c == ',' || c == ';' || c == '.' || c == '=' || c == '*':
					tokens = append(tokens, token{text: string(c)})
					i++
				default:
					i++
				}
			}
		}
	}
	return tokens
}

func isWordChar(c byte) bool {
	return isIdentChar(c)
}
