package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TableSource records which retrieval stage produced a table entry.
type TableSource int

const (
	SourceRetrieval TableSource = iota
	SourceFKExpansion
	SourceBM25
	SourceHybrid
)

func (s TableSource) String() string {
	switch s {
	case SourceRetrieval:
		return "retrieval"
	case SourceFKExpansion:
		return "fk_expansion"
	case SourceBM25:
		return "bm25"
	case SourceHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// FKEdge is a directed foreign-key edge between two packet tables.
type FKEdge struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// Key returns the deduplication key for the edge (the full 4-tuple).
func (e FKEdge) Key() string {
	return e.FromTable + "." + e.FromColumn + ">" + e.ToTable + "." + e.ToColumn
}

// ColumnMeta is one column of a store table, as read from rag.schema_columns.
type ColumnMeta struct {
	TableName     string
	ColumnName    string
	DataType      string
	IsPK          bool
	IsFK          bool
	FKTargetTable string
	FKTargetCol   string
	InferredGloss string
	OrdinalPos    int
}

// TableEntry is one table in a schema context packet, ordered by descending
// retrieval relevance.
type TableEntry struct {
	TableName   string      `json:"table_name"`
	TableSchema string      `json:"table_schema"`
	Module      string      `json:"module"`
	Gloss       string      `json:"gloss"`
	MSchema     string      `json:"m_schema"`
	Similarity  float64     `json:"similarity"`
	Source      TableSource `json:"source"`
	IsHub       bool        `json:"is_hub"`
	FKDegree    int         `json:"fk_degree"`
}

// RetrievalMeta carries packet diagnostics.
type RetrievalMeta struct {
	CandidatesConsidered int      `json:"candidates_considered"`
	Threshold            float64  `json:"threshold"`
	FromRetrieval        int      `json:"from_retrieval"`
	FromFKExpansion      int      `json:"from_fk_expansion"`
	FromLexical          int      `json:"from_lexical"`
	FromHybrid           int      `json:"from_hybrid"`
	HubTablesCapped      []string `json:"hub_tables_capped,omitempty"`
}

// SchemaContextPacket is the grounded schema bundle handed from retrieval
// to generation. Table names are unique within a packet and every fk_edges
// endpoint is a packet table.
type SchemaContextPacket struct {
	QueryID       string        `json:"query_id"`
	DatabaseID    string        `json:"database_id"`
	Question      string        `json:"question"`
	Tables        []TableEntry  `json:"tables"`
	FKEdges       []FKEdge      `json:"fk_edges"`
	Modules       []string      `json:"modules"`
	RetrievalMeta RetrievalMeta `json:"retrieval_meta"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TableNames returns the packet's table names in retrieval order.
func (p *SchemaContextPacket) TableNames() []string {
	names := make([]string, len(p.Tables))
	for i, t := range p.Tables {
		names[i] = t.TableName
	}
	return names
}

// HasTable reports whether the packet contains the named table.
func (p *SchemaContextPacket) HasTable(name string) bool {
	for _, t := range p.Tables {
		if t.TableName == name {
			return true
		}
	}
	return false
}

// BuildMSchema renders the compact textual schema for one table:
// "name (col: type [PK] [FK→ref], ...)".
func BuildMSchema(table string, cols []ColumnMeta) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		s := c.ColumnName + ": " + c.DataType
		if c.IsPK {
			s += " PK"
		}
		if c.IsFK && c.FKTargetTable != "" {
			s += " FK→" + c.FKTargetTable
		}
		parts = append(parts, s)
	}
	return fmt.Sprintf("%s (%s)", table, strings.Join(parts, ", "))
}

// ModulesOf collects the sorted distinct module tags of the entries.
func ModulesOf(tables []TableEntry) []string {
	seen := make(map[string]bool)
	var modules []string
	for _, t := range tables {
		if t.Module == "" || seen[t.Module] {
			continue
		}
		seen[t.Module] = true
		modules = append(modules, t.Module)
	}
	sort.Strings(modules)
	return modules
}
