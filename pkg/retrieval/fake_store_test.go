package retrieval

import (
	"context"

	"github.com/groundline-ai/groundline-engine/pkg/models"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
)

// fakeStore implements repositories.SchemaStore with overridable behavior.
type fakeStore struct {
	cosine      func() ([]repositories.RetrievedTable, error)
	lexical     func() ([]repositories.RetrievedTable, error)
	neighbors   map[string][]repositories.RetrievedTable
	neighborErr error
}

var _ repositories.SchemaStore = (*fakeStore)(nil)

func (f *fakeStore) SearchTablesByEmbedding(context.Context, []float32, int, float64, []string) ([]repositories.RetrievedTable, error) {
	if f.cosine == nil {
		return nil, nil
	}
	return f.cosine()
}

func (f *fakeStore) SearchTablesLexical(context.Context, string, int, []string) ([]repositories.RetrievedTable, error) {
	if f.lexical == nil {
		return nil, nil
	}
	return f.lexical()
}

func (f *fakeStore) ModuleSimilarities(context.Context, []float32, int) ([]repositories.ModuleScore, error) {
	return nil, nil
}

func (f *fakeStore) GetTables(context.Context, []string) (map[string]repositories.RetrievedTable, error) {
	return nil, nil
}

func (f *fakeStore) GetColumns(context.Context, []string) (map[string][]models.ColumnMeta, error) {
	return nil, nil
}

func (f *fakeStore) GetFKEdges(context.Context, []string) ([]models.FKEdge, error) {
	return nil, nil
}

func (f *fakeStore) GetFKNeighbors(_ context.Context, table string) ([]repositories.RetrievedTable, error) {
	if f.neighborErr != nil {
		return nil, f.neighborErr
	}
	return f.neighbors[table], nil
}

func (f *fakeStore) ValueExists(context.Context, string, string, string) (bool, error) {
	return false, nil
}
