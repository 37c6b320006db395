package rerank

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/config"
	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// valueCheckCandidates is how many leading candidates get value probes.
const valueCheckCandidates = 2

// Context carries everything the bonus signals read. Store is optional and
// only consulted when VerifyValues is set.
type Context struct {
	Question     string
	Packet       *models.SchemaContextPacket
	Bundle       *models.SchemaLinkBundle
	Plan         *models.JoinPlan
	VerifyValues bool
}

// Reranker applies additive bonuses to candidate scores and reorders them.
// Best-effort throughout: a signal that panics scores neutral 1.0.
type Reranker struct {
	weights config.RerankerConfig
	store   repositories.SchemaStore
	logger  *zap.Logger
}

// New creates a reranker. store may be nil when value verification is off.
func New(weights config.RerankerConfig, store repositories.SchemaStore, logger *zap.Logger) *Reranker {
	return &Reranker{weights: weights, store: store, logger: logger.Named("reranker")}
}

// Rerank scores and reorders the candidates. The input slice is not
// mutated; the result holds the same candidates, bonuses applied, sorted
// descending by score with deterministic tie-breaks.
func (r *Reranker) Rerank(ctx context.Context, candidates []models.SQLCandidate, rctx Context) models.RerankResult {
	out := make([]models.SQLCandidate, len(candidates))
	copy(out, candidates)

	vocab := buildVocabulary(rctx.Packet, rctx.Bundle)

	for i := range out {
		refs := extractRefs(out[i].SQL)

		adherence := r.safeSignal("schema_adherence", func() float64 {
			return adherenceScore(refs, vocab)
		})
		joinMatch := r.safeSignal("join_match", func() float64 {
			return joinMatchScore(refs, rctx.Plan)
		})
		resultShape := r.safeSignal("result_shape", func() float64 {
			return resultShapeScore(rctx.Question, out[i].SQL)
		})

		out[i].ScoreBreakdown = models.ScoreBreakdown{
			SchemaAdherence: adherence,
			JoinMatch:       joinMatch,
			ResultShape:     resultShape,
		}
		bonus := adherence*r.weights.SchemaAdherenceWeight +
			joinMatch*r.weights.JoinMatchWeight +
			resultShape*r.weights.ResultShapeWeight
		out[i].ScoreBreakdown.BonusTotal = bonus
		out[i].Score += bonus
	}

	sortCandidates(out)

	details := models.RerankDetails{
		CandidatesScored: len(out),
		PlanAvailable:    rctx.Plan != nil,
		BundleAvailable:  rctx.Bundle != nil,
	}

	if rctx.VerifyValues && r.store != nil {
		details.VerificationUsed = true
		details.ValueChecksRun = r.applyValueBonuses(ctx, out, rctx)
		sortCandidates(out)
	}

	r.logger.Debug("candidates reranked",
		zap.Int("candidates", len(out)),
		zap.Int("value_checks", details.ValueChecksRun))

	return models.RerankResult{Candidates: out, Details: details}
}

// applyValueBonuses probes literal values for the leading candidates after
// the initial bonuses and folds the result into their scores.
func (r *Reranker) applyValueBonuses(ctx context.Context, out []models.SQLCandidate, rctx Context) int {
	limit := valueCheckCandidates
	if len(out) < limit {
		limit = len(out)
	}
	checksRun := 0
	for i := 0; i < limit; i++ {
		refs := extractRefs(out[i].SQL)
		checks := extractValueChecks(out[i].SQL, refs, rctx.Packet)
		score, run := verifyValues(ctx, r.store, checks)
		checksRun += run
		out[i].ScoreBreakdown.ValueVerification = score
		bonus := score * r.weights.ValueVerificationWeight
		out[i].ScoreBreakdown.BonusTotal += bonus
		out[i].Score += bonus
	}
	return checksRun
}

// sortCandidates orders by descending score; ties prefer non-rejected, then
// candidates that passed EXPLAIN, then original index.
func sortCandidates(out []models.SQLCandidate) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Rejected != out[j].Rejected {
			return !out[i].Rejected
		}
		if out[i].ExplainPassed != out[j].ExplainPassed {
			return out[i].ExplainPassed
		}
		return out[i].Index < out[j].Index
	})
}

// safeSignal shields the pipeline from a signal implementation fault; the
// candidate keeps a neutral score for that signal.
func (r *Reranker) safeSignal(name string, fn func() float64) (score float64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("rerank signal panicked, scoring neutral",
				zap.String("signal", name), zap.Any("panic", rec))
			score = 1.0
		}
	}()
	return fn()
}
