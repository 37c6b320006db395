package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRefs_TablesAliasesColumnsJoins(t *testing.T) {
	sql := `SELECT e.last_name, d.department_name
FROM employees e
JOIN departments d ON e.department_id = d.department_id
WHERE e.salary > 50000;`

	refs := extractRefs(sql)

	assert.ElementsMatch(t, []string{"employees", "departments"}, refs.tables)
	assert.Equal(t, map[string]string{"e": "employees", "d": "departments"}, refs.aliases)

	assert.Contains(t, refs.columns, columnRef{qualifier: "e", column: "last_name"})
	assert.Contains(t, refs.columns, columnRef{qualifier: "d", column: "department_name"})
	assert.Contains(t, refs.columns, columnRef{qualifier: "e", column: "salary"})

	require.Len(t, refs.joins, 1)
	assert.Equal(t, joinCondition{
		leftTable: "employees", leftColumn: "department_id",
		rightTable: "departments", rightColumn: "department_id",
	}, refs.joins[0])
}

func TestExtractRefs_AsAliasAndSchemaQualifier(t *testing.T) {
	refs := extractRefs("SELECT t.employee_id FROM erp.employees AS t;")

	assert.Equal(t, []string{"employees"}, refs.tables)
	assert.Equal(t, "employees", refs.aliases["t"])
	assert.Contains(t, refs.columns, columnRef{qualifier: "t", column: "employee_id"})
}

func TestExtractRefs_CompoundOnCondition(t *testing.T) {
	sql := `SELECT a.id FROM rates a
JOIN rates_history b ON a.currency = b.currency AND a.valid_from = b.valid_from;`

	refs := extractRefs(sql)

	require.Len(t, refs.joins, 2)
	assert.Equal(t, "rates", refs.joins[0].leftTable)
	assert.Equal(t, "rates_history", refs.joins[0].rightTable)
	assert.Equal(t, "valid_from", refs.joins[1].leftColumn)
}

func TestExtractColumns_BareReferencesAndFunctionCalls(t *testing.T) {
	refs := extractRefs("SELECT department_id, COUNT(employee_id) FROM employees GROUP BY department_id;")

	assert.Contains(t, refs.columns, columnRef{column: "department_id"})
	assert.Contains(t, refs.columns, columnRef{column: "employee_id"})
	// COUNT is a call, not a column; employees sits in table position.
	for _, c := range refs.columns {
		assert.NotEqual(t, "count", c.column)
		assert.NotEqual(t, "employees", c.column)
	}
}

func TestExtractColumns_LiteralsAreInvisible(t *testing.T) {
	refs := extractRefs("SELECT name FROM statuses WHERE label = 'FROM x JOIN y';")

	assert.Equal(t, []string{"statuses"}, refs.tables)
	assert.Contains(t, refs.columns, columnRef{column: "label"})
}

func TestJoinCondition_MatchesEitherOrder(t *testing.T) {
	j := joinCondition{
		leftTable: "orders", leftColumn: "customer_id",
		rightTable: "customers", rightColumn: "customer_id",
	}

	assert.True(t, j.matches("orders", "customer_id", "customers", "customer_id"))
	assert.True(t, j.matches("customers", "customer_id", "orders", "customer_id"))
	assert.False(t, j.matches("orders", "customer_id", "vendors", "vendor_id"))
}
