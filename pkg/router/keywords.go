package router

// moduleKeywords maps each ERP module to the vocabulary that signals it.
// Multi-word entries match as substrings of the lowercased question;
// single words match whole tokens or substrings.
var moduleKeywords = map[string][]string{
	"hr": {
		"employee", "employees", "staff", "worker", "workers", "people",
		"hire", "hired", "salary", "salaries", "pay", "compensation",
		"department", "departments", "position", "positions", "benefit",
		"benefits", "leave", "pto", "vacation", "sick", "certification",
		"certifications", "performance", "review", "reviews", "rating",
		"training", "course", "courses", "emergency contact",
	},
	"finance": {
		"account", "accounts", "general ledger", "gl", "journal",
		"journal entry", "debit", "credit", "budget", "budgets",
		"fiscal year", "fiscal period", "bank", "deposit", "withdrawal",
		"tax", "taxes", "vat",
	},
	"sales": {
		"customer", "customers", "client", "clients", "order", "orders",
		"sale", "sales", "sold", "quote", "quotes", "quotation",
		"opportunity", "opportunities", "deal", "deals", "pipeline",
		"region", "regions", "territory", "territories",
	},
	"procurement": {
		"vendor", "vendors", "supplier", "suppliers", "purchase order",
		"purchase orders", "po", "requisition", "requisitions",
		"procurement", "goods receipt", "receiving", "received",
		"vendor invoice", "bill", "bills",
	},
	"inventory": {
		"product", "products", "item", "items", "sku", "inventory",
		"stock", "on hand", "warehouse", "warehouses", "bin", "bins",
		"transfer", "transfers", "adjustment", "adjustments", "reorder",
		"unit of measure", "uom",
	},
	"projects": {
		"project", "projects", "phase", "phases", "task", "tasks",
		"milestone", "milestones", "timesheet", "timesheets",
		"hours logged", "time entry", "allocation", "expense", "expenses",
		"assignment", "assignments",
	},
	"assets": {
		"asset", "assets", "fixed asset", "equipment", "depreciation",
		"maintenance", "repair", "asset transfer", "serial number",
		"useful life",
	},
	"common": {
		"country", "countries", "state", "states", "province", "city",
		"cities", "address", "addresses", "currency", "currencies",
		"exchange rate", "business unit", "cost center", "cost centers",
		"audit log", "attachment", "attachments",
	},
}
