// Package services wires the grounding stages into the question pipeline.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/apperrors"
	"github.com/groundline-ai/groundline-engine/pkg/config"
	"github.com/groundline-ai/groundline-engine/pkg/linker"
	"github.com/groundline-ai/groundline-engine/pkg/logging"
	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/planner"
	"github.com/groundline-ai/groundline-engine/pkg/rerank"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
	"github.com/groundline-ai/groundline-engine/pkg/retrieval"
	"github.com/groundline-ai/groundline-engine/pkg/router"
	"github.com/groundline-ai/groundline-engine/pkg/sidecar"
	sqlgate "github.com/groundline-ai/groundline-engine/pkg/sql"
)

// Generator is the slice of the sidecar client the pipeline uses.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateSQL(ctx context.Context, req *sidecar.GenerateRequest) (*sidecar.GenerateResponse, error)
	RepairSQL(ctx context.Context, req *sidecar.RepairRequest) (*sidecar.GenerateResponse, error)
	InvalidateCache(ctx context.Context, databaseID string)
}

// Trace is the diagnostic block returned with a successful answer.
type Trace struct {
	QueryID       string               `json:"query_id"`
	RoutedModules []string             `json:"routed_modules,omitempty"`
	RoutingMethod string               `json:"routing_method,omitempty"`
	Retrieval     models.RetrievalMeta `json:"retrieval"`
	TablesPacked  int                  `json:"tables_packed"`
	LinkedTables  int                  `json:"linked_tables"`
	Skeletons     int                  `json:"skeletons"`
	CrossModule   bool                 `json:"cross_module"`
	Intent        string               `json:"intent"`
	Candidates    int                  `json:"candidates"`
	Repaired      int                  `json:"repaired"`
	Rerank        models.RerankDetails `json:"rerank"`
	SidecarTrace  string               `json:"sidecar_trace,omitempty"`
}

// Answer is the success surface of the pipeline.
type Answer struct {
	SQL   string `json:"sql"`
	Trace *Trace `json:"trace"`
}

// Pipeline chains the grounding stages for one question at a time.
// Instances are safe for concurrent use; all per-question state lives on
// the stack.
type Pipeline struct {
	cfg       *config.Config
	store     repositories.SchemaStore
	generator Generator

	router    *router.Router
	retriever *retrieval.Retriever
	expander  *retrieval.Expander
	linker    *linker.Linker
	planner   *planner.Planner
	validator *sqlgate.Validator
	reranker  *rerank.Reranker

	logger *zap.Logger
}

// NewPipeline builds the pipeline from configuration.
func NewPipeline(cfg *config.Config, store repositories.SchemaStore, generator Generator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		generator: generator,
		router:    router.New(store, logger),
		retriever: retrieval.New(store, logger),
		expander:  retrieval.NewExpander(store, logger),
		linker:    linker.New(logger),
		planner: planner.New(planner.Options{
			TopK:        cfg.Planner.TopK,
			DefaultCap:  cfg.Planner.DefaultCap,
			RelevantCap: cfg.Planner.RelevantCap,
		}, logger),
		validator: sqlgate.NewValidator(sqlgate.Options{
			MaxLimit:     cfg.Validator.MaxLimit,
			MaxJoins:     cfg.Validator.MaxJoins,
			RequireLimit: cfg.Validator.RequireLimit,
		}),
		reranker: rerank.New(cfg.Reranker, store, logger),
		logger:   logger.Named("pipeline"),
	}
}

// Answer runs the full stage chain for one question. On failure the
// returned error always carries an apperrors kind; the handler maps it to
// the error surface without leaking store messages.
func (p *Pipeline) Answer(ctx context.Context, databaseID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, false, "question must not be empty")
	}

	log := p.logger.With(zap.String("database_id", databaseID))
	features := p.cfg.Features

	embedding, err := p.generator.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	trace := &Trace{Intent: rerank.ExpectedAggregation(question)}

	var moduleFilter []string
	if features.ModuleRouter {
		routed := p.router.Route(ctx, question, embedding, p.cfg.Retrieval.MaxModules)
		moduleFilter = routed.ModuleFilter()
		trace.RoutedModules = moduleFilter
		trace.RoutingMethod = string(routed.Method)
	}

	retrieved, err := p.retriever.Retrieve(ctx, question, embedding, moduleFilter, retrieval.Options{
		TopK:         p.cfg.Retrieval.TopK,
		Threshold:    p.cfg.Retrieval.Threshold,
		MaxTables:    p.cfg.Retrieval.MaxTables,
		LexicalOn:    features.BM25Search,
		QueryTimeout: time.Duration(p.cfg.Retrieval.QueryTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if len(retrieved.Tables) == 0 {
		return nil, apperrors.New(apperrors.KindNotFound, false,
			"no schema tables matched the question")
	}

	expanded, err := p.expander.Expand(ctx, retrieved.Tables, retrieval.ExpandOptions{
		FKExpansionLimit: p.cfg.Retrieval.FKExpansionLimit,
		MaxTables:        p.cfg.Retrieval.MaxTables,
		HubFKCap:         p.cfg.Retrieval.HubFKCap,
	})
	if err != nil {
		return nil, err
	}

	packet, columnsByTable, err := p.assemblePacket(ctx, databaseID, question, retrieved, expanded)
	if err != nil {
		return nil, err
	}
	trace.QueryID = packet.QueryID
	trace.Retrieval = packet.RetrievalMeta
	trace.TablesPacked = len(packet.Tables)

	var bundle *models.SchemaLinkBundle
	if features.SchemaLinker {
		bundle = p.linker.Link(question, packet, columnsByTable, nil, linker.Options{
			GlossesEnabled: features.Glosses,
		})
		trace.LinkedTables = len(bundle.LinkedTables)
	}

	var plan *models.JoinPlan
	if features.JoinPlanner {
		plan = p.planner.Plan(packet, bundle)
		trace.Skeletons = len(plan.Skeletons)
		trace.CrossModule = plan.CrossModuleDetected
	}

	generated, err := p.generator.GenerateSQL(ctx, &sidecar.GenerateRequest{
		Question:      question,
		SchemaContext: packet,
		LinkedBundle:  bundle,
		JoinPlan:      plan,
		Prompt:        BuildPrompt(packet, bundle, plan),
	})
	if err != nil {
		return nil, err
	}
	trace.SidecarTrace = generated.Trace

	candidates := p.validateCandidates(generated.SQLCandidates, packet)
	trace.Candidates = len(candidates)
	trace.Repaired = p.repairRound(ctx, candidates, packet)

	if features.Reranker {
		result := p.reranker.Rerank(ctx, candidates, rerank.Context{
			Question:     question,
			Packet:       packet,
			Bundle:       bundle,
			Plan:         plan,
			VerifyValues: features.ValueVerification,
		})
		candidates = result.Candidates
		trace.Rerank = result.Details
	}

	best, ok := pickBest(candidates)
	if !ok {
		return nil, apperrors.New(apperrors.KindValidationFailed, true,
			"no generated candidate passed the SQL gate")
	}

	log.Info("question answered",
		zap.String("query_id", packet.QueryID),
		zap.String("intent", trace.Intent),
		zap.Int("tables", trace.TablesPacked),
		zap.Int("candidates", trace.Candidates),
		zap.String("sql", logging.SanitizeSQL(best.SQL)))

	return &Answer{SQL: best.SQL, Trace: trace}, nil
}

// InvalidateCache drops the local module-subgraph cache and forwards the
// invalidation to the sidecar.
func (p *Pipeline) InvalidateCache(ctx context.Context, databaseID string) {
	planner.ResetModuleCache()
	p.generator.InvalidateCache(ctx, databaseID)
	p.logger.Info("caches invalidated", zap.String("database_id", databaseID))
}

// assemblePacket fetches columns and FK edges for the expanded table set
// and renders the m-schema lines. Both fetches are mandatory.
func (p *Pipeline) assemblePacket(ctx context.Context, databaseID, question string, retrieved *retrieval.Result, expanded *retrieval.ExpandResult) (*models.SchemaContextPacket, map[string][]models.ColumnMeta, error) {
	tables := expanded.Tables
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.TableName
	}

	columnsByTable, err := p.store.GetColumns(ctx, names)
	if err != nil {
		return nil, nil, err
	}
	edges, err := p.store.GetFKEdges(ctx, names)
	if err != nil {
		return nil, nil, err
	}

	meta := models.RetrievalMeta{
		CandidatesConsidered: retrieved.CandidatesConsidered,
		Threshold:            p.cfg.Retrieval.Threshold,
		FromLexical:          retrieved.FromLexical,
		FromHybrid:           retrieved.FromHybrid,
		HubTablesCapped:      expanded.HubTablesCapped,
	}
	for i := range tables {
		tables[i].MSchema = models.BuildMSchema(tables[i].TableName, columnsByTable[tables[i].TableName])
		switch tables[i].Source {
		case models.SourceFKExpansion:
			meta.FromFKExpansion++
		default:
			meta.FromRetrieval++
		}
	}

	packet := &models.SchemaContextPacket{
		QueryID:       uuid.NewString(),
		DatabaseID:    databaseID,
		Question:      question,
		Tables:        tables,
		FKEdges:       edges,
		Modules:       models.ModulesOf(tables),
		RetrievalMeta: meta,
		CreatedAt:     time.Now().UTC(),
	}
	return packet, columnsByTable, nil
}

// validateCandidates runs the static gate over each raw candidate. The
// gate ejects candidates, never the request.
func (p *Pipeline) validateCandidates(raw []sidecar.RawCandidate, packet *models.SchemaContextPacket) []models.SQLCandidate {
	allowed := allowedTables(packet)
	candidates := make([]models.SQLCandidate, len(raw))
	for i, rc := range raw {
		lint := p.validator.Validate(rc.SQL, allowed)
		candidates[i] = models.SQLCandidate{
			SQL:             lint.AutoFixedSQL,
			Index:           rc.Index,
			Score:           rc.Score,
			StructuralValid: lint.Valid,
			LintResult:      &lint,
		}
		if !lint.ExecutableSafely {
			candidates[i].Rejected = true
			candidates[i].RejectionReason = firstFailure(lint.Issues)
		}
	}
	return candidates
}

// repairRound sends each invalid candidate through one /repair_sql round
// with the compressed validator instructions, re-validating the result.
// Returns the number of candidates that became valid.
func (p *Pipeline) repairRound(ctx context.Context, candidates []models.SQLCandidate, packet *models.SchemaContextPacket) int {
	allowed := allowedTables(packet)
	repaired := 0
	for i := range candidates {
		c := &candidates[i]
		if c.LintResult == nil || c.LintResult.Valid {
			continue
		}
		instructions := sqlgate.CompressIssues(c.LintResult.Issues)
		if len(instructions) == 0 {
			continue
		}
		resp, err := p.generator.RepairSQL(ctx, &sidecar.RepairRequest{
			SQL:           c.SQL,
			Errors:        instructions,
			SchemaContext: packet,
		})
		if err != nil || resp == nil || len(resp.SQLCandidates) == 0 {
			p.logger.Warn("repair round failed", zap.Int("candidate", c.Index), zap.Error(err))
			continue
		}
		lint := p.validator.Validate(resp.SQLCandidates[0].SQL, allowed)
		if !lint.Valid {
			continue
		}
		c.SQL = lint.AutoFixedSQL
		c.LintResult = &lint
		c.StructuralValid = true
		c.Rejected = false
		c.RejectionReason = ""
		repaired++
	}
	return repaired
}

func allowedTables(packet *models.SchemaContextPacket) map[string]bool {
	allowed := make(map[string]bool, len(packet.Tables))
	for _, t := range packet.Tables {
		allowed[strings.ToLower(t.TableName)] = true
	}
	return allowed
}

func firstFailure(issues []models.LintIssue) string {
	for _, issue := range issues {
		if issue.Severity == sqlgate.SeverityFailFast {
			return issue.Message
		}
	}
	return ""
}

// pickBest returns the first candidate that is both unrejected and valid.
func pickBest(candidates []models.SQLCandidate) (models.SQLCandidate, bool) {
	for _, c := range candidates {
		if !c.Rejected && c.LintResult != nil && c.LintResult.Valid {
			return c, true
		}
	}
	return models.SQLCandidate{}, false
}
