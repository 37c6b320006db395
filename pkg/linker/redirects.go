package linker

import (
	"regexp"

	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// redirectCategories are column patterns that commonly live on the parent
// side of an FK edge while the model reaches for them on the child.
var redirectCategories = []struct {
	category string
	pattern  *regexp.Regexp
}{
	{"date", regexp.MustCompile(`date|_at$`)},
	{"employee", regexp.MustCompile(`^(employee_id|emp_id|worker_id)$`)},
	{"status", regexp.MustCompile(`^(status|status_code)$`)},
}

// detectColumnRedirects emits a redirect warning for each FK edge whose
// parent has an important column the child lacks. Prompt assembly turns
// these into join-to-parent advisories.
func detectColumnRedirects(edges []models.FKEdge, columnsByTable map[string][]models.ColumnMeta) []models.ColumnRedirect {
	var redirects []models.ColumnRedirect
	for _, edge := range edges {
		parentCols := columnsByTable[edge.ToTable]
		childCols := columnsByTable[edge.FromTable]
		if len(parentCols) == 0 {
			continue
		}

		for _, cat := range redirectCategories {
			parentMatch := firstMatching(parentCols, cat.pattern)
			if parentMatch == "" {
				continue
			}
			if firstMatching(childCols, cat.pattern) != "" {
				continue
			}
			redirects = append(redirects, models.ColumnRedirect{
				ChildTable:  edge.FromTable,
				ParentTable: edge.ToTable,
				Column:      parentMatch,
				Category:    cat.category,
				JoinKey:     edge.FromColumn,
			})
		}
	}
	return redirects
}

func firstMatching(cols []models.ColumnMeta, pattern *regexp.Regexp) string {
	for _, c := range cols {
		if pattern.MatchString(c.ColumnName) {
			return c.ColumnName
		}
	}
	return ""
}
