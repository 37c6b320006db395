// Package router classifies a question into at most a handful of domain
// modules before retrieval, so downstream stages can filter a large schema.
package router

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// Method records how a routing decision was reached.
type Method string

const (
	MethodKeyword   Method = "keyword"
	MethodEmbedding Method = "embedding"
	MethodHybrid    Method = "hybrid"
)

const (
	keywordScoreWeight   = 0.15
	keywordConfidence    = 0.20
	fallbackMinimum      = 0.30
	defaultMaxModules    = 3
	centroidFetchPadding = 2
)

// ModuleChoice is one routed module with its confidence.
type ModuleChoice struct {
	Module     string  `json:"module"`
	Confidence float64 `json:"confidence"`
	Combined   float64 `json:"-"`
	KeywordHit int     `json:"keyword_hits"`
}

// Result is the router's decision. An empty Modules slice means no module
// filtering downstream.
type Result struct {
	Modules []ModuleChoice `json:"modules"`
	Method  Method         `json:"method"`
}

// ModuleFilter returns the routed module names, or nil when routing
// declined to filter.
func (r *Result) ModuleFilter() []string {
	if r == nil || len(r.Modules) == 0 {
		return nil
	}
	names := make([]string, len(r.Modules))
	for i, m := range r.Modules {
		names[i] = m.Module
	}
	return names
}

// Router scores question text against module keywords and module centroid
// embeddings.
type Router struct {
	store  repositories.SchemaStore
	logger *zap.Logger
}

// New creates a module router.
func New(store repositories.SchemaStore, logger *zap.Logger) *Router {
	return &Router{store: store, logger: logger.Named("router")}
}

// Route classifies the question into at most maxModules modules.
// A missing or unreachable vector store degrades to keyword-only scoring;
// routing never fails the request.
func (r *Router) Route(ctx context.Context, question string, embedding []float32, maxModules int) *Result {
	if maxModules <= 0 {
		maxModules = defaultMaxModules
	}

	hits := keywordHits(question)

	sims, err := r.store.ModuleSimilarities(ctx, embedding, maxModules+centroidFetchPadding)
	if err != nil {
		r.logger.Warn("module centroid lookup unavailable, using keywords only", zap.Error(err))
		return keywordOnlyResult(hits, maxModules)
	}

	simByModule := make(map[string]float64, len(sims))
	for _, s := range sims {
		simByModule[s.Module] = s.Similarity
	}

	// Union of embedding candidates and keyword-hit modules.
	candidates := make(map[string]bool)
	for m := range simByModule {
		candidates[m] = true
	}
	for m, n := range hits {
		if n > 0 {
			candidates[m] = true
		}
	}

	totalHits := 0
	choices := make([]ModuleChoice, 0, len(candidates))
	for m := range candidates {
		kw := hits[m]
		totalHits += kw
		sim := simByModule[m]
		choices = append(choices, ModuleChoice{
			Module:     m,
			Combined:   sim + keywordScoreWeight*float64(kw),
			Confidence: max(sim, keywordConfidence*float64(kw)),
			KeywordHit: kw,
		})
	}

	sortChoices(choices)
	if len(choices) > maxModules {
		choices = choices[:maxModules]
	}

	// Fallback: a question with no keyword evidence and weak embedding
	// confidence gets no module filter at all.
	if totalHits == 0 && (len(choices) == 0 || choices[0].Confidence < fallbackMinimum) {
		return &Result{Method: MethodEmbedding}
	}

	method := MethodHybrid
	if totalHits == 0 {
		method = MethodEmbedding
	}
	return &Result{Modules: choices, Method: method}
}

func keywordOnlyResult(hits map[string]int, maxModules int) *Result {
	choices := make([]ModuleChoice, 0, len(hits))
	for m, n := range hits {
		if n == 0 {
			continue
		}
		choices = append(choices, ModuleChoice{
			Module:     m,
			Combined:   keywordScoreWeight * float64(n),
			Confidence: keywordConfidence * float64(n),
			KeywordHit: n,
		})
	}
	if len(choices) == 0 {
		return &Result{Method: MethodKeyword}
	}
	sortChoices(choices)
	if len(choices) > maxModules {
		choices = choices[:maxModules]
	}
	return &Result{Modules: choices, Method: MethodKeyword}
}

func sortChoices(choices []ModuleChoice) {
	sort.Slice(choices, func(i, j int) bool {
		if choices[i].Combined != choices[j].Combined {
			return choices[i].Combined > choices[j].Combined
		}
		return choices[i].Module < choices[j].Module
	})
}

// keywordHits counts keyword matches per module. Multi-word keywords match
// as substrings; single words match tokens or substrings of the question.
func keywordHits(question string) map[string]int {
	lower := strings.ToLower(question)
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		tokens[tok] = true
	}

	hits := make(map[string]int, len(moduleKeywords))
	for module, keywords := range moduleKeywords {
		n := 0
		for _, kw := range keywords {
			if tokens[kw] || strings.Contains(lower, kw) {
				n++
			}
		}
		hits[module] = n
	}
	return hits
}
