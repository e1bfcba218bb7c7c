package render

import "github.com/flowforge/flowplan/sqlast"

// rewriteTableNames implements spec.md §4.D step 5: replace every leaf
// TableName whose qualified name resolves through Provider.PhysicalTable
// with the storage-layer name for its current version — a plain
// TableName carrying the physical name as Name so it prints unqualified
// even though the physical name itself contains a dot (schema.table__v).
func rewriteTableNames(st sqlast.Statement, p Provider) sqlast.Statement {
	if p == nil {
		return st
	}
	switch n := st.(type) {
	case *sqlast.Union:
		return &sqlast.Union{
			Left:  rewriteTableNames(n.Left, p),
			Right: rewriteTableNames(n.Right, p),
			Type:  n.Type,
		}
	case *sqlast.Select:
		return rewriteSelectTableNames(n, p)
	default:
		return st
	}
}

func rewriteSelectTableNames(sel *sqlast.Select, p Provider) *sqlast.Select {
	out := *sel
	if out.With != nil {
		withCopy := *out.With
		ctes := make([]*sqlast.CTE, len(withCopy.CTEs))
		for i, cte := range withCopy.CTEs {
			c := *cte
			c.Subquery = rewriteSelectTableNames(cte.Subquery, p)
			ctes[i] = &c
		}
		withCopy.CTEs = ctes
		out.With = &withCopy
	}
	from := make([]sqlast.TableExpr, len(sel.From))
	for i, te := range sel.From {
		from[i] = rewriteTableExpr(te, p)
	}
	out.From = from
	return &out
}

func rewriteTableExpr(te sqlast.TableExpr, p Provider) sqlast.TableExpr {
	switch n := te.(type) {
	case *sqlast.TableName:
		if phys, ok := p.PhysicalTable(n.String()); ok {
			return &sqlast.TableName{Name: phys}
		}
		return n
	case *sqlast.AliasedTableExpr:
		return &sqlast.AliasedTableExpr{Expr: rewriteTableExpr(n.Expr, p), As: n.As}
	case *sqlast.JoinTableExpr:
		return &sqlast.JoinTableExpr{
			Left:      rewriteTableExpr(n.Left, p),
			Right:     rewriteTableExpr(n.Right, p),
			Join:      n.Join,
			On:        n.On,
			MacroCond: n.MacroCond,
		}
	case *sqlast.ParenTableExpr:
		items := make([]sqlast.TableExpr, len(n.Exprs))
		for i, e := range n.Exprs {
			items[i] = rewriteTableExpr(e, p)
		}
		return &sqlast.ParenTableExpr{Exprs: items}
	case *sqlast.Subquery:
		return &sqlast.Subquery{Select: rewriteTableNames(n.Select, p)}
	default:
		return te
	}
}
