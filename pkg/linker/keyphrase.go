package linker

import (
	"regexp"
	"strings"
)

// Keyphrase is one extracted question phrase.
type Keyphrase struct {
	Text          string
	IsQuotedValue bool
	IsNumber      bool
	IsMetric      bool
	IsBigram      bool
}

var (
	singleQuotedPattern = regexp.MustCompile(`'([^']+)'`)
	doubleQuotedPattern = regexp.MustCompile(`"([^"]+)"`)
	numberPattern       = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	nonAlnumPattern     = regexp.MustCompile(`[^a-z0-9\s]`)
)

// stopwords is the domain stopword set filtered from keyphrases.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"for": true, "to": true, "with": true, "by": true, "and": true,
	"or": true, "what": true, "which": true, "who": true, "whose": true,
	"show": true, "list": true, "find": true, "get": true, "give": true,
	"me": true, "all": true, "are": true, "is": true, "was": true,
	"were": true, "how": true, "many": true, "much": true, "each": true,
	"per": true, "from": true, "that": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "their": true,
	"there": true, "than": true, "more": true, "please": true, "i": true,
	"we": true, "they": true, "it": true, "its": true, "this": true,
	"these": true, "those": true, "be": true, "been": true, "as": true,
	"at": true, "any": true, "not": true, "no": true,
}

// metricWords mark aggregation-style phrases.
var metricWords = map[string]bool{
	"total": true, "sum": true, "average": true, "avg": true, "mean": true,
	"max": true, "maximum": true, "min": true, "minimum": true,
	"count": true, "number": true, "top": true, "bottom": true,
	"highest": true, "lowest": true, "most": true, "least": true,
	"largest": true, "smallest": true,
}

// ExtractKeyphrases pulls quoted literals first, then tokenizes the
// remaining text into stopword-filtered unigrams and consecutive
// non-stopword bigrams.
func ExtractKeyphrases(question string) []Keyphrase {
	var phrases []Keyphrase
	seen := make(map[string]bool)

	add := func(p Keyphrase) {
		key := p.Text
		if p.IsQuotedValue {
			key = "'" + key
		}
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		phrases = append(phrases, p)
	}

	rest := question
	for _, pattern := range []*regexp.Regexp{singleQuotedPattern, doubleQuotedPattern} {
		for _, m := range pattern.FindAllStringSubmatch(rest, -1) {
			add(Keyphrase{Text: m[1], IsQuotedValue: true})
		}
		rest = pattern.ReplaceAllString(rest, " ")
	}

	cleaned := nonAlnumPattern.ReplaceAllString(strings.ToLower(rest), " ")
	tokens := strings.Fields(cleaned)

	var kept []string
	for _, tok := range tokens {
		if stopwords[tok] {
			kept = append(kept, "") // break bigram chains at stopwords
			continue
		}
		kept = append(kept, tok)
		add(Keyphrase{
			Text:     tok,
			IsNumber: numberPattern.MatchString(tok),
			IsMetric: metricWords[tok],
		})
	}

	for i := 0; i+1 < len(kept); i++ {
		if kept[i] == "" || kept[i+1] == "" {
			continue
		}
		add(Keyphrase{
			Text:     kept[i] + " " + kept[i+1],
			IsBigram: true,
			IsMetric: metricWords[kept[i]] || metricWords[kept[i+1]],
		})
	}

	return phrases
}
