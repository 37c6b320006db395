package linker

import (
	"strings"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// confusableEntry describes a table commonly mistaken for another when
// certain phrases appear in the question.
type confusableEntry struct {
	confusesWith string
	triggers     []string
	hint         string
}

// confusableTables is maintained by hand from observed generation mistakes
// on the ERP schema.
var confusableTables = map[string]confusableEntry{
	"employee_salaries": {
		confusesWith: "employees",
		triggers:     []string{"current salary", "salary", "earn"},
		hint:         "employee_salaries is the salary change history; the current salary is employees.salary",
	},
	"project_budgets": {
		confusesWith: "budgets",
		triggers:     []string{"budget"},
		hint:         "project_budgets is per-project planning; company-level budgets live in budgets/budget_lines",
	},
	"budgets": {
		confusesWith: "project_budgets",
		triggers:     []string{"project budget", "project cost"},
		hint:         "budgets is the finance ledger budget; per-project figures live in project_budgets",
	},
	"sales_orders": {
		confusesWith: "purchase_orders",
		triggers:     []string{"purchase", "vendor", "supplier"},
		hint:         "sales_orders are customer orders; buying from vendors is purchase_orders",
	},
	"purchase_orders": {
		confusesWith: "sales_orders",
		triggers:     []string{"customer", "sold", "revenue"},
		hint:         "purchase_orders are vendor orders; customer revenue lives in sales_orders/order_lines",
	},
	"asset_locations": {
		confusesWith: "warehouse_locations",
		triggers:     []string{"warehouse", "bin", "stock"},
		hint:         "asset_locations track fixed assets; inventory bins are warehouse_locations",
	},
	"stock_transfers": {
		confusesWith: "asset_transfers",
		triggers:     []string{"asset"},
		hint:         "stock_transfers move inventory; equipment moves are asset_transfers",
	},
}

// detectConfusables warns when a linked table has a confusable sibling and
// a trigger phrase appears in the question.
func detectConfusables(question string, linked []models.LinkedTable) []models.ConfusableWarning {
	lower := strings.ToLower(question)
	var warnings []models.ConfusableWarning
	for _, t := range linked {
		entry, ok := confusableTables[t.Table]
		if !ok {
			continue
		}
		for _, trigger := range entry.triggers {
			if strings.Contains(lower, trigger) {
				warnings = append(warnings, models.ConfusableWarning{
					Table:        t.Table,
					ConfusesWith: entry.confusesWith,
					Hint:         entry.hint,
				})
				break
			}
		}
	}
	return warnings
}
