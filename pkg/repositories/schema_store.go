// Package repositories provides data access for the external schema store.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/groundline-ai/groundline-engine/pkg/database"
	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// ErrLexicalIndexMissing signals that rag.schema_tables has no
// search_vector column. The lexical stage degrades to empty results.
var ErrLexicalIndexMissing = errors.New("lexical index missing: rag.schema_tables has no search_vector column")

// ErrModuleEmbeddingsMissing signals that rag.module_embeddings is absent
// or empty. The router degrades to keyword-only scoring.
var ErrModuleEmbeddingsMissing = errors.New("module embeddings unavailable")

// RetrievedTable is one row of a cosine or lexical table search.
type RetrievedTable struct {
	TableSchema string
	TableName   string
	Module      string
	Gloss       string
	FKDegree    int
	IsHub       bool
	Similarity  float64
}

// ModuleScore is the cosine similarity of the question against one module
// centroid embedding.
type ModuleScore struct {
	Module     string
	Similarity float64
}

// SchemaStore provides read access to the rag.* contract tables.
type SchemaStore interface {
	// SearchTablesByEmbedding returns up to topK tables whose embedding has
	// cosine similarity >= threshold against the question embedding,
	// ordered by descending similarity. An empty modules slice means no
	// module filter.
	SearchTablesByEmbedding(ctx context.Context, embedding []float32, topK int, threshold float64, modules []string) ([]RetrievedTable, error)

	// SearchTablesLexical ranks tables by full-text relevance of the
	// question over name + gloss + column names. Returns
	// ErrLexicalIndexMissing when the store has no search_vector column.
	SearchTablesLexical(ctx context.Context, question string, topK int, modules []string) ([]RetrievedTable, error)

	// ModuleSimilarities returns cosine similarity of the question embedding
	// against every module centroid, best first, truncated to limit.
	ModuleSimilarities(ctx context.Context, embedding []float32, limit int) ([]ModuleScore, error)

	// GetTables returns metadata for the named tables, keyed by table name.
	GetTables(ctx context.Context, names []string) (map[string]RetrievedTable, error)

	// GetColumns returns the columns of the named tables in ordinal order,
	// keyed by table name.
	GetColumns(ctx context.Context, tables []string) (map[string][]models.ColumnMeta, error)

	// GetFKEdges returns the FK edges with both endpoints among the named
	// tables.
	GetFKEdges(ctx context.Context, tables []string) ([]models.FKEdge, error)

	// GetFKNeighbors returns the direct FK neighbors of a table, outgoing
	// and incoming, with their metadata.
	GetFKNeighbors(ctx context.Context, table string) ([]RetrievedTable, error)

	// ValueExists probes whether the literal value occurs in table.column.
	ValueExists(ctx context.Context, table, column, value string) (bool, error)
}

type schemaStore struct {
	db *database.DB
}

// NewSchemaStore creates a SchemaStore over the given pool.
func NewSchemaStore(db *database.DB) SchemaStore {
	return &schemaStore{db: db}
}

var _ SchemaStore = (*schemaStore)(nil)

// vectorLiteral renders an embedding in pgvector input syntax.
func vectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (s *schemaStore) SearchTablesByEmbedding(ctx context.Context, embedding []float32, topK int, threshold float64, modules []string) ([]RetrievedTable, error) {
	query := `
		SELECT t.table_schema, t.table_name, t.module, t.table_gloss,
		       t.fk_degree, t.is_hub,
		       1 - (e.embedding <=> $1::vector) AS similarity
		FROM rag.schema_embeddings e
		JOIN rag.schema_tables t
		  ON t.table_schema = e.table_schema AND t.table_name = e.table_name
		WHERE e.entity_type = 'table'
		  AND 1 - (e.embedding <=> $1::vector) >= $2`

	args := []any{vectorLiteral(embedding), threshold}
	if len(modules) > 0 {
		query += " AND t.module = ANY($3)"
		args = append(args, modules)
	}
	query += fmt.Sprintf(" ORDER BY e.embedding <=> $1::vector LIMIT %d", topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cosine table search failed: %w", err)
	}
	defer rows.Close()

	return scanRetrievedTables(rows)
}

func (s *schemaStore) SearchTablesLexical(ctx context.Context, question string, topK int, modules []string) ([]RetrievedTable, error) {
	query := `
		SELECT t.table_schema, t.table_name, t.module, t.table_gloss,
		       t.fk_degree, t.is_hub,
		       ts_rank(t.search_vector, websearch_to_tsquery('english', $1)) AS similarity
		FROM rag.schema_tables t
		WHERE t.search_vector @@ websearch_to_tsquery('english', $1)`

	args := []any{question}
	if len(modules) > 0 {
		query += " AND t.module = ANY($2)"
		args = append(args, modules)
	}
	query += fmt.Sprintf(" ORDER BY similarity DESC LIMIT %d", topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		if isUndefinedColumn(err) {
			return nil, ErrLexicalIndexMissing
		}
		return nil, fmt.Errorf("lexical table search failed: %w", err)
	}
	defer rows.Close()

	return scanRetrievedTables(rows)
}

func (s *schemaStore) ModuleSimilarities(ctx context.Context, embedding []float32, limit int) ([]ModuleScore, error) {
	query := fmt.Sprintf(`
		SELECT module_name, 1 - (embedding <=> $1::vector) AS similarity
		FROM rag.module_embeddings
		ORDER BY embedding <=> $1::vector
		LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, query, vectorLiteral(embedding))
	if err != nil {
		if isUndefinedTable(err) {
			return nil, ErrModuleEmbeddingsMissing
		}
		return nil, fmt.Errorf("module similarity query failed: %w", err)
	}
	defer rows.Close()

	scores := make([]ModuleScore, 0, limit)
	for rows.Next() {
		var m ModuleScore
		if err := rows.Scan(&m.Module, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan module score: %w", err)
		}
		scores = append(scores, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating module scores: %w", err)
	}
	if len(scores) == 0 {
		return nil, ErrModuleEmbeddingsMissing
	}
	return scores, nil
}

func (s *schemaStore) GetTables(ctx context.Context, names []string) (map[string]RetrievedTable, error) {
	rows, err := s.db.Query(ctx, `
		SELECT table_schema, table_name, module, table_gloss, fk_degree, is_hub,
		       0.0 AS similarity
		FROM rag.schema_tables
		WHERE table_name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("table metadata query failed: %w", err)
	}
	defer rows.Close()

	tables, err := scanRetrievedTables(rows)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]RetrievedTable, len(tables))
	for _, t := range tables {
		byName[t.TableName] = t
	}
	return byName, nil
}

func (s *schemaStore) GetColumns(ctx context.Context, tables []string) (map[string][]models.ColumnMeta, error) {
	rows, err := s.db.Query(ctx, `
		SELECT table_name, column_name, data_type, is_pk, is_fk,
		       COALESCE(fk_target_table, ''), COALESCE(fk_target_column, ''),
		       COALESCE(inferred_gloss, ''), ordinal_pos
		FROM rag.schema_columns
		WHERE table_name = ANY($1)
		ORDER BY table_name, ordinal_pos`, tables)
	if err != nil {
		return nil, fmt.Errorf("column metadata query failed: %w", err)
	}
	defer rows.Close()

	byTable := make(map[string][]models.ColumnMeta)
	for rows.Next() {
		var c models.ColumnMeta
		if err := rows.Scan(&c.TableName, &c.ColumnName, &c.DataType, &c.IsPK, &c.IsFK,
			&c.FKTargetTable, &c.FKTargetCol, &c.InferredGloss, &c.OrdinalPos); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		byTable[c.TableName] = append(byTable[c.TableName], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return byTable, nil
}

func (s *schemaStore) GetFKEdges(ctx context.Context, tables []string) ([]models.FKEdge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT table_name, column_name, ref_table_name, ref_column_name
		FROM rag.schema_fks
		WHERE table_name = ANY($1) AND ref_table_name = ANY($1)
		ORDER BY table_name, column_name, ref_table_name`, tables)
	if err != nil {
		return nil, fmt.Errorf("fk edge query failed: %w", err)
	}
	defer rows.Close()

	var edges []models.FKEdge
	for rows.Next() {
		var e models.FKEdge
		if err := rows.Scan(&e.FromTable, &e.FromColumn, &e.ToTable, &e.ToColumn); err != nil {
			return nil, fmt.Errorf("failed to scan fk edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fk edges: %w", err)
	}
	return edges, nil
}

func (s *schemaStore) GetFKNeighbors(ctx context.Context, table string) ([]RetrievedTable, error) {
	// Outgoing references plus incoming referencers, joined with table
	// metadata. DISTINCT because a pair of tables may share several FKs.
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT t.table_schema, t.table_name, t.module, t.table_gloss,
		       t.fk_degree, t.is_hub, 0.0 AS similarity
		FROM rag.schema_tables t
		WHERE t.table_name IN (
			SELECT ref_table_name FROM rag.schema_fks WHERE table_name = $1
			UNION
			SELECT table_name FROM rag.schema_fks WHERE ref_table_name = $1
		) AND t.table_name <> $1
		ORDER BY t.table_name`, table)
	if err != nil {
		return nil, fmt.Errorf("fk neighbor query failed: %w", err)
	}
	defer rows.Close()

	return scanRetrievedTables(rows)
}

func (s *schemaStore) ValueExists(ctx context.Context, table, column, value string) (bool, error) {
	// Identifiers cannot be bound as parameters; quote them instead. The
	// caller has already resolved table and column against the packet, so
	// this never sees attacker-controlled identifiers.
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = $1 LIMIT 1`,
		quoteIdentifier(table), quoteIdentifier(column))

	var one int
	err := s.db.QueryRow(ctx, query, value).Scan(&one)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("value probe failed: %w", err)
	}
	return true, nil
}

func scanRetrievedTables(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]RetrievedTable, error) {
	var tables []RetrievedTable
	for rows.Next() {
		var t RetrievedTable
		if err := rows.Scan(&t.TableSchema, &t.TableName, &t.Module, &t.Gloss,
			&t.FKDegree, &t.IsHub, &t.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42703"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
