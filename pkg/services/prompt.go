package services

import (
	"fmt"
	"strings"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// moduleNotes are ERP conventions the generator keeps getting wrong
// without an explicit reminder. Keyed by module tag.
var moduleNotes = map[string][]string{
	"hr": {
		"employees.status uses 'active', 'on_leave', 'terminated'",
		"current salary is employees.salary; employee_salaries is the change history",
	},
	"finance": {
		"amounts are stored in minor units only in gl_entries; invoice tables use decimal",
		"fiscal periods join through fiscal_periods.period_id",
	},
	"sales": {
		"sales_orders.status uses 'draft', 'confirmed', 'shipped', 'invoiced', 'cancelled'",
		"revenue comes from order_lines joined to sales_orders, not from invoices alone",
	},
	"procurement": {
		"purchase_orders are vendor-facing; customer orders live in sales_orders",
	},
	"inventory": {
		"on-hand quantity is stock_levels.quantity_on_hand per warehouse_locations bin",
	},
	"projects": {
		"project spend joins projects to project_expenses via project_budgets",
	},
	"assets": {
		"asset_locations track fixed assets, not warehouse inventory",
	},
}

// BuildPrompt renders the grounding context into the prompt block sent to
// the generation sidecar. Section order is stable so generation traces
// diff cleanly across runs.
func BuildPrompt(packet *models.SchemaContextPacket, bundle *models.SchemaLinkBundle, plan *models.JoinPlan) string {
	var b strings.Builder

	b.WriteString("Question: " + packet.Question + "\n\n")

	b.WriteString("Schema context:\n")
	for _, t := range packet.Tables {
		if t.Gloss != "" {
			b.WriteString("-- " + t.Gloss + "\n")
		}
		b.WriteString(t.MSchema + "\n")
	}

	if len(packet.FKEdges) > 0 {
		b.WriteString("\nForeign keys:\n")
		for _, e := range packet.FKEdges {
			fmt.Fprintf(&b, "%s.%s -> %s.%s\n", e.FromTable, e.FromColumn, e.ToTable, e.ToColumn)
		}
	}

	if bundle != nil {
		writeBundle(&b, bundle)
	}

	if plan != nil && len(plan.Skeletons) > 0 {
		b.WriteString("\nSuggested join paths, best first:\n")
		for _, s := range plan.Skeletons {
			b.WriteString(s.SQLFragment + "\n\n")
		}
		if len(plan.BridgeTables) > 0 {
			b.WriteString("Cross-module bridge tables: " + strings.Join(plan.BridgeTables, ", ") + "\n")
		}
	}

	if notes := domainNotes(packet.Modules); len(notes) > 0 {
		b.WriteString("\nDomain notes:\n")
		for _, note := range notes {
			b.WriteString("- " + note + "\n")
		}
	}

	b.WriteString("\nWrite a single read-only PostgreSQL SELECT statement answering the question. " +
		"Use only the tables and columns above.\n")
	return b.String()
}

func writeBundle(b *strings.Builder, bundle *models.SchemaLinkBundle) {
	if len(bundle.LinkedTables) > 0 {
		b.WriteString("\nGrounded tables:\n")
		for _, t := range bundle.LinkedTables {
			fmt.Fprintf(b, "- %s (%s)\n", t.Table, t.Reason)
		}
	}
	if len(bundle.ValueHints) > 0 {
		b.WriteString("\nLiteral values from the question:\n")
		for _, v := range bundle.ValueHints {
			fmt.Fprintf(b, "- '%s' likely matches %s.%s\n", v.Value, v.LikelyTable, v.LikelyColumn)
		}
	}
	if len(bundle.ColumnRedirects) > 0 {
		b.WriteString("\nColumn locations:\n")
		for _, r := range bundle.ColumnRedirects {
			fmt.Fprintf(b, "- %s lives on %s, not %s; join via %s\n",
				r.Column, r.ParentTable, r.ChildTable, r.JoinKey)
		}
	}
	if len(bundle.ConfusableWarnings) > 0 {
		b.WriteString("\nCommonly confused tables:\n")
		for _, w := range bundle.ConfusableWarnings {
			b.WriteString("- " + w.Hint + "\n")
		}
	}
	if len(bundle.UnsupportedConcepts) > 0 {
		b.WriteString("\nConcepts with no schema match (do not invent columns for these): " +
			strings.Join(bundle.UnsupportedConcepts, ", ") + "\n")
	}
}

// domainNotes collects the notes for the packet's modules in module order.
func domainNotes(modules []string) []string {
	var notes []string
	for _, m := range modules {
		notes = append(notes, moduleNotes[m]...)
	}
	return notes
}
