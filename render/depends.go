package render

import (
	"sort"
	"strings"

	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/sqlast"
)

// Dependencies returns m's upstream model names: m.DependsOn unioned
// with every table reference found in m.Query that is not itself a
// CTE name bound within the query (modelmeta.Model.DependsOn's doc:
// "in addition to any inferred from the query's table references").
// Names are deduplicated and returned in sorted order so callers get a
// stable parent list to build a dependency graph from.
func Dependencies(m *modelmeta.Model) []string {
	seen := map[string]bool{}
	for _, d := range m.DependsOn {
		seen[d] = true
	}
	if m.Query != nil {
		collectTableRefs(m.Query, map[string]bool{}, seen)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// collectTableRefs walks st, adding any referenced table name to refs
// unless it is bound as a CTE name visible at that point (tracked via
// boundCTEs, a set scoped to the statement it was declared in and its
// descendants).
func collectTableRefs(st sqlast.Statement, boundCTEs map[string]bool, refs map[string]bool) {
	switch n := st.(type) {
	case *sqlast.Union:
		collectTableRefs(n.Left, boundCTEs, refs)
		collectTableRefs(n.Right, boundCTEs, refs)
	case *sqlast.Select:
		local := boundCTEs
		if n.With != nil {
			local = cloneBoundSet(boundCTEs)
			for _, cte := range n.With.CTEs {
				local[strings.ToLower(cte.Name)] = true
			}
			for _, cte := range n.With.CTEs {
				collectTableRefs(cte.Subquery, local, refs)
			}
		}
		for _, te := range n.From {
			collectTableExprRefs(te, local, refs)
		}
	}
}

func collectTableExprRefs(te sqlast.TableExpr, boundCTEs map[string]bool, refs map[string]bool) {
	switch n := te.(type) {
	case *sqlast.TableName:
		name := n.String()
		if !boundCTEs[strings.ToLower(name)] {
			refs[name] = true
		}
	case *sqlast.AliasedTableExpr:
		collectTableExprRefs(n.Expr, boundCTEs, refs)
	case *sqlast.JoinTableExpr:
		collectTableExprRefs(n.Left, boundCTEs, refs)
		collectTableExprRefs(n.Right, boundCTEs, refs)
	case *sqlast.ParenTableExpr:
		for _, e := range n.Exprs {
			collectTableExprRefs(e, boundCTEs, refs)
		}
	case *sqlast.Subquery:
		collectTableRefs(n.Select, boundCTEs, refs)
	}
}

func cloneBoundSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s)+1)
	for k := range s {
		out[k] = true
	}
	return out
}
