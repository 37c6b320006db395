package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

func promptPacket() *models.SchemaContextPacket {
	return &models.SchemaContextPacket{
		Question: "average salary by department",
		Tables: []models.TableEntry{
			{
				TableName: "employees",
				Module:    "hr",
				Gloss:     "Employee master data",
				MSchema:   "employees (employee_id: integer PK, salary: numeric, department_id: integer FK→departments)",
			},
			{
				TableName: "departments",
				Module:    "hr",
				MSchema:   "departments (department_id: integer PK, department_name: varchar)",
			},
		},
		FKEdges: []models.FKEdge{{
			FromTable: "employees", FromColumn: "department_id",
			ToTable: "departments", ToColumn: "department_id",
		}},
		Modules: []string{"hr"},
	}
}

func TestBuildPrompt_SchemaAndEdges(t *testing.T) {
	prompt := BuildPrompt(promptPacket(), nil, nil)

	assert.True(t, strings.HasPrefix(prompt, "Question: average salary by department\n"))
	assert.Contains(t, prompt, "-- Employee master data\n")
	assert.Contains(t, prompt, "employees (employee_id: integer PK")
	assert.Contains(t, prompt, "employees.department_id -> departments.department_id")
	assert.Contains(t, prompt, "single read-only PostgreSQL SELECT statement")
}

func TestBuildPrompt_BundleSections(t *testing.T) {
	bundle := &models.SchemaLinkBundle{
		LinkedTables: []models.LinkedTable{
			{Table: "employees", Relevance: 1.2, Reason: "2 column matches"},
		},
		ValueHints: []models.ValueHint{
			{Value: "Engineering", LikelyTable: "departments", LikelyColumn: "department_name"},
		},
		ColumnRedirects: []models.ColumnRedirect{
			{ChildTable: "order_lines", ParentTable: "orders", Column: "order_date", JoinKey: "order_id"},
		},
		ConfusableWarnings: []models.ConfusableWarning{
			{Table: "employee_salaries", ConfusesWith: "employees", Hint: "the current salary is employees.salary"},
		},
		UnsupportedConcepts: []string{"weather"},
	}

	prompt := BuildPrompt(promptPacket(), bundle, nil)

	assert.Contains(t, prompt, "- employees (2 column matches)")
	assert.Contains(t, prompt, "- 'Engineering' likely matches departments.department_name")
	assert.Contains(t, prompt, "- order_date lives on orders, not order_lines; join via order_id")
	assert.Contains(t, prompt, "- the current salary is employees.salary")
	assert.Contains(t, prompt, "do not invent columns for these): weather")
}

func TestBuildPrompt_PlanAndNotes(t *testing.T) {
	plan := &models.JoinPlan{
		Skeletons: []models.JoinSkeleton{{
			SQLFragment: "employees\nJOIN departments ON employees.department_id = departments.department_id",
		}},
		BridgeTables: []string{"cost_centers"},
	}

	prompt := BuildPrompt(promptPacket(), nil, plan)

	assert.Contains(t, prompt, "Suggested join paths, best first:\n")
	assert.Contains(t, prompt, "JOIN departments ON employees.department_id = departments.department_id")
	assert.Contains(t, prompt, "Cross-module bridge tables: cost_centers")
	// hr module notes ride along with the packet.
	assert.Contains(t, prompt, "current salary is employees.salary")
}

func TestBuildPrompt_SectionOrderIsStable(t *testing.T) {
	bundle := &models.SchemaLinkBundle{
		LinkedTables: []models.LinkedTable{{Table: "employees", Reason: "match"}},
	}
	plan := &models.JoinPlan{Skeletons: []models.JoinSkeleton{{SQLFragment: "employees"}}}

	prompt := BuildPrompt(promptPacket(), bundle, plan)

	markers := []string{
		"Question:",
		"Schema context:",
		"Foreign keys:",
		"Grounded tables:",
		"Suggested join paths",
		"Domain notes:",
		"Write a single read-only",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", m)
		assert.Greater(t, idx, last, "section %q out of order", m)
		last = idx
	}
}

func TestBuildPrompt_EmptySkeletonsOmitJoinSection(t *testing.T) {
	prompt := BuildPrompt(promptPacket(), nil, &models.JoinPlan{})

	assert.NotContains(t, prompt, "Suggested join paths")
}
