package models

// TypeHint is the semantic category inferred for a column from its name
// and data type.
type TypeHint string

const (
	HintIdentifier TypeHint = "identifier"
	HintDate       TypeHint = "date/timestamp"
	HintMonetary   TypeHint = "monetary"
	HintQuantity   TypeHint = "quantity"
	HintNameLabel  TypeHint = "name/label"
	HintStatusEnum TypeHint = "status_enum"
	HintCategory   TypeHint = "type/category"
	HintCode       TypeHint = "code"
	HintPercentage TypeHint = "percentage"
	HintText       TypeHint = "text"
	HintBoolean    TypeHint = "boolean"
	HintGeneral    TypeHint = "general"
)

// ColumnGloss is the statically derived description of one column.
type ColumnGloss struct {
	TableName   string
	ColumnName  string
	Description string
	Synonyms    map[string]bool
	TypeHint    TypeHint
	IsPK        bool
	IsFK        bool
	FKTarget    string
	DataType    string
}
