package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// centroidStore stubs only the module-similarity lookup.
type centroidStore struct {
	scores []repositories.ModuleScore
	err    error
}

var _ repositories.SchemaStore = (*centroidStore)(nil)

func (s *centroidStore) ModuleSimilarities(context.Context, []float32, int) ([]repositories.ModuleScore, error) {
	return s.scores, s.err
}

func (s *centroidStore) SearchTablesByEmbedding(context.Context, []float32, int, float64, []string) ([]repositories.RetrievedTable, error) {
	return nil, nil
}
func (s *centroidStore) SearchTablesLexical(context.Context, string, int, []string) ([]repositories.RetrievedTable, error) {
	return nil, nil
}
func (s *centroidStore) GetTables(context.Context, []string) (map[string]repositories.RetrievedTable, error) {
	return nil, nil
}
func (s *centroidStore) GetColumns(context.Context, []string) (map[string][]models.ColumnMeta, error) {
	return nil, nil
}
func (s *centroidStore) GetFKEdges(context.Context, []string) ([]models.FKEdge, error) {
	return nil, nil
}
func (s *centroidStore) GetFKNeighbors(context.Context, string) ([]repositories.RetrievedTable, error) {
	return nil, nil
}
func (s *centroidStore) ValueExists(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func TestRoute_HybridCombinesKeywordsAndCentroids(t *testing.T) {
	store := &centroidStore{scores: []repositories.ModuleScore{
		{Module: "hr", Similarity: 0.40},
		{Module: "finance", Similarity: 0.35},
	}}
	r := New(store, zap.NewNop())

	result := r.Route(context.Background(), "average salary by department", nil, 3)

	require.NotEmpty(t, result.Modules)
	assert.Equal(t, MethodHybrid, result.Method)
	assert.Equal(t, "hr", result.Modules[0].Module)
	assert.Greater(t, result.Modules[0].KeywordHit, 0)
}

func TestRoute_KeywordOnlyWhenCentroidsUnavailable(t *testing.T) {
	store := &centroidStore{err: repositories.ErrModuleEmbeddingsMissing}
	r := New(store, zap.NewNop())

	result := r.Route(context.Background(), "open purchase orders from vendors", nil, 3)

	assert.Equal(t, MethodKeyword, result.Method)
	require.NotEmpty(t, result.Modules)
	assert.Equal(t, "procurement", result.Modules[0].Module)
}

func TestRoute_FallbackToNoFilterOnWeakEvidence(t *testing.T) {
	store := &centroidStore{scores: []repositories.ModuleScore{
		{Module: "hr", Similarity: 0.10},
		{Module: "assets", Similarity: 0.08},
	}}
	r := New(store, zap.NewNop())

	// No ERP keywords and all centroid confidences below the floor.
	result := r.Route(context.Background(), "what is the answer", nil, 3)

	assert.Empty(t, result.Modules)
	assert.Nil(t, result.ModuleFilter())
}

func TestRoute_CapsModuleCount(t *testing.T) {
	store := &centroidStore{scores: []repositories.ModuleScore{
		{Module: "hr", Similarity: 0.9},
		{Module: "finance", Similarity: 0.8},
		{Module: "sales", Similarity: 0.7},
		{Module: "assets", Similarity: 0.6},
	}}
	r := New(store, zap.NewNop())

	result := r.Route(context.Background(), "salary invoice order asset", nil, 2)

	assert.Len(t, result.Modules, 2)
}

func TestKeywordHits_TokensAndPhrases(t *testing.T) {
	hits := keywordHits("Total purchase order value per vendor")

	assert.Greater(t, hits["procurement"], 0)
	assert.Zero(t, hits["hr"])
}
