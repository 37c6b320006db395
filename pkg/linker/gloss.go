// Package linker grounds question keyphrases against packet tables and
// columns so generation cannot hallucinate schema elements.
package linker

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// abbreviations maps common column-name shorthand to its expansion.
// Synonym sets carry both directions.
var abbreviations = map[string]string{
	"qty":   "quantity",
	"amt":   "amount",
	"emp":   "employee",
	"dept":  "department",
	"num":   "number",
	"no":    "number",
	"addr":  "address",
	"desc":  "description",
	"pct":   "percent",
	"avg":   "average",
	"acct":  "account",
	"mgr":   "manager",
	"cust":  "customer",
	"prod":  "product",
	"proj":  "project",
	"cat":   "category",
	"loc":   "location",
	"curr":  "currency",
	"dob":   "birth date",
	"uom":   "unit of measure",
}

// nameHints maps exact column names to a type hint, ahead of suffix and
// type-family rules.
var nameHints = map[string]models.TypeHint{
	"salary":        models.HintMonetary,
	"price":         models.HintMonetary,
	"cost":          models.HintMonetary,
	"amount":        models.HintMonetary,
	"budget":        models.HintMonetary,
	"revenue":       models.HintMonetary,
	"total":         models.HintMonetary,
	"balance":       models.HintMonetary,
	"quantity":      models.HintQuantity,
	"qty":           models.HintQuantity,
	"hours":         models.HintQuantity,
	"rating":        models.HintQuantity,
	"status":        models.HintStatusEnum,
	"state":         models.HintStatusEnum,
	"name":          models.HintNameLabel,
	"title":         models.HintNameLabel,
	"label":         models.HintNameLabel,
	"email":         models.HintText,
	"phone":         models.HintText,
	"description":   models.HintText,
	"comments":      models.HintText,
	"code":          models.HintCode,
	"sku":           models.HintCode,
	"iso_code":      models.HintCode,
	"category":      models.HintCategory,
	"type":          models.HintCategory,
	"exchange_rate": models.HintPercentage,
}

// suffixHints is checked in order; first match wins.
var suffixHints = []struct {
	suffix string
	hint   models.TypeHint
}{
	{"_id", models.HintIdentifier},
	{"_date", models.HintDate},
	{"_at", models.HintDate},
	{"_amount", models.HintMonetary},
	{"_cost", models.HintMonetary},
	{"_price", models.HintMonetary},
	{"_salary", models.HintMonetary},
	{"_qty", models.HintQuantity},
	{"_quantity", models.HintQuantity},
	{"_count", models.HintQuantity},
	{"_hours", models.HintQuantity},
	{"_name", models.HintNameLabel},
	{"_title", models.HintNameLabel},
	{"_status", models.HintStatusEnum},
	{"_type", models.HintCategory},
	{"_category", models.HintCategory},
	{"_code", models.HintCode},
	{"_percent", models.HintPercentage},
	{"_pct", models.HintPercentage},
	{"_flag", models.HintBoolean},
	{"_email", models.HintText},
	{"_addr", models.HintText},
	{"_address", models.HintText},
	{"_desc", models.HintText},
	{"_description", models.HintText},
	{"_number", models.HintCode},
}

// GenerateGloss derives the static gloss for one column.
func GenerateGloss(col models.ColumnMeta) models.ColumnGloss {
	name := strings.ToLower(col.ColumnName)
	hint := hintForColumn(name, col.DataType)

	tokens := snakeTokens(name)
	synonyms := synonymSet(name, tokens)

	var desc strings.Builder
	if col.IsPK {
		desc.WriteString("Primary key. ")
	}
	if col.IsFK && col.FKTargetTable != "" {
		desc.WriteString("Foreign key → " + col.FKTargetTable + ". ")
	}
	desc.WriteString(strings.Join(tokens, " "))
	desc.WriteString(" (" + string(hint) + ")")

	return models.ColumnGloss{
		TableName:   col.TableName,
		ColumnName:  col.ColumnName,
		Description: desc.String(),
		Synonyms:    synonyms,
		TypeHint:    hint,
		IsPK:        col.IsPK,
		IsFK:        col.IsFK,
		FKTarget:    col.FKTargetTable,
		DataType:    col.DataType,
	}
}

// GenerateGlosses builds glosses for every column of every packet table.
func GenerateGlosses(columnsByTable map[string][]models.ColumnMeta) map[string][]models.ColumnGloss {
	glosses := make(map[string][]models.ColumnGloss, len(columnsByTable))
	for table, cols := range columnsByTable {
		list := make([]models.ColumnGloss, 0, len(cols))
		for _, c := range cols {
			list = append(list, GenerateGloss(c))
		}
		glosses[table] = list
	}
	return glosses
}

// BareGlosses builds minimal glosses (name tokens only, no abbreviation or
// hint enrichment) for when the glosses feature is disabled.
func BareGlosses(columnsByTable map[string][]models.ColumnMeta) map[string][]models.ColumnGloss {
	glosses := make(map[string][]models.ColumnGloss, len(columnsByTable))
	for table, cols := range columnsByTable {
		list := make([]models.ColumnGloss, 0, len(cols))
		for _, c := range cols {
			name := strings.ToLower(c.ColumnName)
			syns := map[string]bool{name: true}
			for _, tok := range snakeTokens(name) {
				syns[tok] = true
			}
			list = append(list, models.ColumnGloss{
				TableName:  c.TableName,
				ColumnName: c.ColumnName,
				Synonyms:   syns,
				TypeHint:   models.HintGeneral,
				IsPK:       c.IsPK,
				IsFK:       c.IsFK,
				FKTarget:   c.FKTargetTable,
				DataType:   c.DataType,
			})
		}
		glosses[table] = list
	}
	return glosses
}

func hintForColumn(name, dataType string) models.TypeHint {
	if h, ok := nameHints[name]; ok {
		return h
	}
	for _, s := range suffixHints {
		if strings.HasSuffix(name, s.suffix) {
			return s.hint
		}
	}
	if strings.HasPrefix(name, "is_") || strings.HasPrefix(name, "has_") {
		return models.HintBoolean
	}
	return hintForType(strings.ToLower(dataType))
}

func hintForType(dataType string) models.TypeHint {
	switch {
	case strings.Contains(dataType, "int"),
		strings.Contains(dataType, "numeric"),
		strings.Contains(dataType, "decimal"),
		strings.Contains(dataType, "float"),
		strings.Contains(dataType, "double"),
		strings.Contains(dataType, "real"):
		return models.HintQuantity
	case strings.Contains(dataType, "date"), strings.Contains(dataType, "time"):
		return models.HintDate
	case strings.Contains(dataType, "bool"):
		return models.HintBoolean
	case strings.Contains(dataType, "text"), strings.Contains(dataType, "char"):
		return models.HintText
	default:
		return models.HintGeneral
	}
}

func snakeTokens(name string) []string {
	parts := strings.Split(name, "_")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// synonymSet is the lowercased column name, its snake tokens, abbreviation
// expansions, and singular/plural variants of each token.
func synonymSet(name string, tokens []string) map[string]bool {
	syns := map[string]bool{name: true}
	for _, tok := range tokens {
		syns[tok] = true
		if full, ok := abbreviations[tok]; ok {
			syns[full] = true
		}
		for abbr, full := range abbreviations {
			if full == tok {
				syns[abbr] = true
			}
		}
		if s := inflection.Singular(tok); s != "" {
			syns[s] = true
		}
		if p := inflection.Plural(tok); p != "" {
			syns[p] = true
		}
	}
	return syns
}
