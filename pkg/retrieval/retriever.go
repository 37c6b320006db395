// Package retrieval narrows the table universe with hybrid dense+lexical
// search and bounded FK neighborhood expansion.
package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/groundline-ai/groundline-engine/pkg/apperrors"
	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// Options holds retriever knobs.
type Options struct {
	TopK         int
	Threshold    float64
	MaxTables    int
	LexicalOn    bool
	QueryTimeout time.Duration
}

func (o *Options) normalize() {
	if o.TopK <= 0 {
		o.TopK = 40
	}
	if o.Threshold == 0 {
		o.Threshold = 0.25
	}
	if o.MaxTables <= 0 {
		o.MaxTables = 40
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 5 * time.Second
	}
}

// Result is the retriever's output: ordered table entries plus diagnostics.
type Result struct {
	Tables               []models.TableEntry
	CandidatesConsidered int
	FromLexical          int
	FromHybrid           int
}

// Retriever runs the hybrid retrieval stage.
type Retriever struct {
	store  repositories.SchemaStore
	logger *zap.Logger
}

// New creates a hybrid retriever.
func New(store repositories.SchemaStore, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, logger: logger.Named("retriever")}
}

// Retrieve fires the cosine and lexical searches concurrently, fuses them
// with RRF, and returns up to MaxTables entries in descending fused rank.
// A missing lexical index degrades to cosine-only with a warning; a cosine
// failure propagates as recoverable.
func (r *Retriever) Retrieve(ctx context.Context, question string, embedding []float32, moduleFilter []string, opts Options) (*Result, error) {
	opts.normalize()

	var cosine, lexical []repositories.RetrievedTable

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		qctx, cancel := context.WithTimeout(gctx, opts.QueryTimeout)
		defer cancel()
		rows, err := r.store.SearchTablesByEmbedding(qctx, embedding, opts.TopK, opts.Threshold, moduleFilter)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return apperrors.Wrap(err, apperrors.KindCancelled, false)
			}
			return apperrors.Wrap(err, apperrors.KindUnavailable, true).WithContext("stage", "cosine")
		}
		cosine = rows
		return nil
	})
	g.Go(func() error {
		if !opts.LexicalOn {
			return nil
		}
		qctx, cancel := context.WithTimeout(gctx, opts.QueryTimeout)
		defer cancel()
		rows, err := r.store.SearchTablesLexical(qctx, question, opts.TopK, moduleFilter)
		if err != nil {
			if errors.Is(err, repositories.ErrLexicalIndexMissing) {
				r.logger.Warn("lexical index unavailable, degrading to cosine only")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return apperrors.Wrap(err, apperrors.KindCancelled, false)
			}
			// Lexical is an optional signal.
			r.logger.Warn("lexical search failed, degrading to cosine only", zap.Error(err))
			return nil
		}
		lexical = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := FuseRRF(cosine, lexical, opts.MaxTables)

	result := &Result{
		Tables:               make([]models.TableEntry, 0, len(fused)),
		CandidatesConsidered: len(cosine) + len(lexical),
	}
	for _, f := range fused {
		similarity := f.Similarity
		if f.Source == models.SourceBM25 {
			// Lexical-only rows have no cosine similarity; the fused score
			// is the only comparable relevance signal.
			similarity = f.RRFScore
		}
		switch f.Source {
		case models.SourceBM25:
			result.FromLexical++
		case models.SourceHybrid:
			result.FromHybrid++
		}
		result.Tables = append(result.Tables, models.TableEntry{
			TableName:   f.TableName,
			TableSchema: f.TableSchema,
			Module:      f.Module,
			Gloss:       f.Gloss,
			Similarity:  similarity,
			Source:      f.Source,
			IsHub:       f.IsHub,
			FKDegree:    f.FKDegree,
		})
	}
	return result, nil
}
