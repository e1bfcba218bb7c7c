package render

import (
	"strings"

	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/sqlast"
)

// injectIncrementalFilter implements spec.md §4.D step 6: for
// INCREMENTAL_BY_TIME models, descend into each SELECT node of the
// rendered query and inject a time-column predicate restricting
// tc to [win.Start, win.End] — into WHERE if the select has no GROUP
// BY, otherwise into HAVING. The conversion of the boundary values
// respects tc's declared format (spec.md §8 scenario 7).
func injectIncrementalFilter(st sqlast.Statement, tc *modelmeta.TimeColumn, win Window) sqlast.Statement {
	switch n := st.(type) {
	case *sqlast.Union:
		return &sqlast.Union{
			Left:  injectIncrementalFilter(n.Left, tc, win),
			Right: injectIncrementalFilter(n.Right, tc, win),
			Type:  n.Type,
		}
	case *sqlast.Select:
		return injectIntoSelect(n, tc, win)
	default:
		return st
	}
}

func injectIntoSelect(sel *sqlast.Select, tc *modelmeta.TimeColumn, win Window) *sqlast.Select {
	out := *sel
	if out.With != nil {
		withCopy := *out.With
		ctes := make([]*sqlast.CTE, len(withCopy.CTEs))
		for i, cte := range withCopy.CTEs {
			c := *cte
			c.Subquery = injectIntoSelect(cte.Subquery, tc, win)
			ctes[i] = &c
		}
		withCopy.CTEs = ctes
		out.With = &withCopy
	}

	pred := buildTimePredicate(tc, win)
	if out.Group == nil {
		out.Where = &sqlast.Where{Type: "where", Expr: andExpr(out.Where, pred)}
	} else {
		out.Having = &sqlast.Where{Type: "having", Expr: andExpr(out.Having, pred)}
	}
	return &out
}

func andExpr(existing *sqlast.Where, pred sqlast.Expr) sqlast.Expr {
	if existing == nil || existing.Expr == nil {
		return pred
	}
	return &sqlast.AndExpr{Left: existing.Expr, Right: pred}
}

func buildTimePredicate(tc *modelmeta.TimeColumn, win Window) sqlast.Expr {
	col := columnForTimeColumn(tc)

	if tc.Format != "" {
		layout := strftimeToGoLayout(tc.Format)
		return &sqlast.BetweenExpr{
			Expr: &sqlast.CastExpr{Expr: col, Type: "TEXT"},
			From: &sqlast.Literal{Type: sqlast.LiteralString, Val: win.Start.UTC().Format(layout)},
			To:   &sqlast.Literal{Type: sqlast.LiteralString, Val: win.End.UTC().Format(layout)},
		}
	}

	return &sqlast.BetweenExpr{
		Expr: col,
		From: &sqlast.CastExpr{Expr: &sqlast.Literal{Type: sqlast.LiteralString, Val: timestampString(win.Start)}, Type: "TIMESTAMP"},
		To:   &sqlast.CastExpr{Expr: &sqlast.Literal{Type: sqlast.LiteralString, Val: timestampString(win.End)}, Type: "TIMESTAMP"},
	}
}

func columnForTimeColumn(tc *modelmeta.TimeColumn) sqlast.Expr {
	if idx := strings.LastIndexByte(tc.Name, '.'); idx >= 0 {
		return &sqlast.ColName{Qualifier: tc.Name[:idx], Name: tc.Name[idx+1:]}
	}
	return &sqlast.ColName{Name: tc.Name}
}

// strftimeToGoLayout translates the small set of strftime directives
// model authors use for time_column formats into a Go time layout.
func strftimeToGoLayout(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)
	return replacer.Replace(format)
}
