package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

func col(table, name, dataType string) models.ColumnMeta {
	return models.ColumnMeta{TableName: table, ColumnName: name, DataType: dataType}
}

func TestHintForColumn_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name     string
		dataType string
		want     models.TypeHint
	}{
		// Exact name map beats the type family.
		{"status", "text", models.HintStatusEnum},
		{"salary", "numeric", models.HintMonetary},
		// Suffix rules.
		{"hire_date", "date", models.HintDate},
		{"updated_at", "timestamptz", models.HintDate},
		{"unit_price", "numeric", models.HintMonetary},
		{"line_qty", "integer", models.HintQuantity},
		{"last_name", "varchar", models.HintNameLabel},
		{"employee_id", "integer", models.HintIdentifier},
		{"discount_pct", "numeric", models.HintPercentage},
		// Boolean prefixes.
		{"is_active", "boolean", models.HintBoolean},
		{"has_attachments", "boolean", models.HintBoolean},
		// Type-family fallback.
		{"weight", "numeric", models.HintQuantity},
		{"notes", "text", models.HintText},
		{"payload", "jsonb", models.HintGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GenerateGloss(col("t", tt.name, tt.dataType))
			assert.Equal(t, tt.want, g.TypeHint)
		})
	}
}

func TestGenerateGloss_SynonymsCarryAbbreviationsAndInflections(t *testing.T) {
	g := GenerateGloss(col("departments", "dept_id", "integer"))

	for _, syn := range []string{"dept_id", "dept", "department", "id"} {
		assert.True(t, g.Synonyms[syn], "missing synonym %q", syn)
	}

	// Reverse direction: full word column gains the abbreviation.
	g = GenerateGloss(col("departments", "department_name", "varchar"))
	assert.True(t, g.Synonyms["dept"])
	assert.True(t, g.Synonyms["departments"])
	assert.True(t, g.Synonyms["names"])
}

func TestGenerateGloss_KeyDescriptions(t *testing.T) {
	pk := GenerateGloss(models.ColumnMeta{
		TableName: "employees", ColumnName: "employee_id", DataType: "integer", IsPK: true,
	})
	assert.Equal(t, "Primary key. employee id (identifier)", pk.Description)
	assert.True(t, pk.IsPK)

	fk := GenerateGloss(models.ColumnMeta{
		TableName: "employees", ColumnName: "department_id", DataType: "integer",
		IsFK: true, FKTargetTable: "departments",
	})
	assert.Contains(t, fk.Description, "Foreign key → departments")
	assert.Equal(t, "departments", fk.FKTarget)
}

func TestGenerateGlosses_CoversEveryTable(t *testing.T) {
	glosses := GenerateGlosses(map[string][]models.ColumnMeta{
		"employees":   {col("employees", "employee_id", "integer"), col("employees", "salary", "numeric")},
		"departments": {col("departments", "department_name", "varchar")},
	})

	require.Len(t, glosses, 2)
	assert.Len(t, glosses["employees"], 2)
	assert.Len(t, glosses["departments"], 1)
}

func TestBareGlosses_NoEnrichment(t *testing.T) {
	glosses := BareGlosses(map[string][]models.ColumnMeta{
		"items": {col("items", "qty", "integer")},
	})

	require.Len(t, glosses["items"], 1)
	g := glosses["items"][0]
	assert.Equal(t, models.HintGeneral, g.TypeHint)
	assert.True(t, g.Synonyms["qty"])
	// No abbreviation expansion in bare mode.
	assert.False(t, g.Synonyms["quantity"])
	assert.Empty(t, g.Description)
}
