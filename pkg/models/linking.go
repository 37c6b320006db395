package models

// LinkedTable is a table the linker grounded against the question.
type LinkedTable struct {
	Table     string  `json:"table"`
	Relevance float64 `json:"relevance"`
	Reason    string  `json:"reason"`
}

// LinkedColumn is a grounded column within a linked table.
type LinkedColumn struct {
	Column    string  `json:"column"`
	Relevance float64 `json:"relevance"`
	Concept   string  `json:"concept"`
}

// JoinHint is a packet FK edge projected into prompt form.
type JoinHint struct {
	From string `json:"from"` // "table.column"
	To   string `json:"to"`
	Via  string `json:"via"` // joining column on the child side
}

// ValueHint pairs a quoted question literal with a plausible column.
type ValueHint struct {
	Value        string `json:"value"`
	LikelyColumn string `json:"likely_column"`
	LikelyTable  string `json:"likely_table"`
}

// ColumnRedirect warns that a column the question needs lives on the
// parent side of an FK edge, not on the child the model may pick.
type ColumnRedirect struct {
	ChildTable  string `json:"child_table"`
	ParentTable string `json:"parent_table"`
	Column      string `json:"column"`
	Category    string `json:"category"`
	JoinKey     string `json:"join_key"`
}

// ConfusableWarning flags a linked table that is commonly mistaken for
// another when certain keywords appear in the question.
type ConfusableWarning struct {
	Table        string `json:"table"`
	ConfusesWith string `json:"confuses_with"`
	Hint         string `json:"hint"`
}

// SchemaLinkBundle is the linker's grounded output. Relevance values are
// only comparable within a single bundle.
type SchemaLinkBundle struct {
	LinkedTables        []LinkedTable             `json:"linked_tables"`
	LinkedColumns       map[string][]LinkedColumn `json:"linked_columns"`
	JoinHints           []JoinHint                `json:"join_hints"`
	ValueHints          []ValueHint               `json:"value_hints"`
	UnsupportedConcepts []string                  `json:"unsupported_concepts"`
	ColumnRedirects     []ColumnRedirect          `json:"column_redirects,omitempty"`
	ConfusableWarnings  []ConfusableWarning       `json:"confusable_warnings,omitempty"`
}

// LinkedTableSet returns the linked table names as a set.
func (b *SchemaLinkBundle) LinkedTableSet() map[string]bool {
	set := make(map[string]bool, len(b.LinkedTables))
	for _, t := range b.LinkedTables {
		set[t.Table] = true
	}
	return set
}

// HasLinkedColumn reports whether the named column is linked on any table.
func (b *SchemaLinkBundle) HasLinkedColumn(column string) bool {
	for _, cols := range b.LinkedColumns {
		for _, c := range cols {
			if c.Column == column {
				return true
			}
		}
	}
	return false
}
