package render

import "github.com/flowforge/flowplan/sqlast"

// Simplify implements spec.md §4.D step 7: a best-effort algebraic
// simplification pass over the fully rendered query — collapsing
// `TRUE AND x` / `FALSE OR x` / double negation / redundant parens left
// behind by macro expansion and incremental-filter injection. It never
// changes result semantics, only shrinks the AST; nodes it cannot prove
// safe to rewrite pass through untouched.
func Simplify(st sqlast.Statement) sqlast.Statement {
	for {
		next, changed := simplifyStatement(st)
		if !changed {
			return next
		}
		st = next
	}
}

func simplifyStatement(st sqlast.Statement) (sqlast.Statement, bool) {
	switch n := st.(type) {
	case *sqlast.Union:
		left, lc := simplifyStatement(n.Left)
		right, rc := simplifyStatement(n.Right)
		return &sqlast.Union{Left: left, Right: right, Type: n.Type}, lc || rc
	case *sqlast.Select:
		return simplifySelect(n)
	default:
		return st, false
	}
}

func simplifySelect(sel *sqlast.Select) (*sqlast.Select, bool) {
	changed := false
	out := *sel

	if sel.With != nil {
		withCopy := *sel.With
		ctes := make([]*sqlast.CTE, len(withCopy.CTEs))
		for i, cte := range withCopy.CTEs {
			c := *cte
			simplified, cc := simplifySelect(cte.Subquery)
			c.Subquery = simplified
			changed = changed || cc
			ctes[i] = &c
		}
		withCopy.CTEs = ctes
		out.With = &withCopy
	}

	if sel.Where != nil && sel.Where.Expr != nil {
		e, ec := simplifyExpr(sel.Where.Expr)
		changed = changed || ec
		if isTrueLiteral(e) {
			out.Where = nil
			changed = true
		} else {
			w := *sel.Where
			w.Expr = e
			out.Where = &w
		}
	}

	if sel.Having != nil && sel.Having.Expr != nil {
		e, ec := simplifyExpr(sel.Having.Expr)
		changed = changed || ec
		if isTrueLiteral(e) {
			out.Having = nil
			changed = true
		} else {
			h := *sel.Having
			h.Expr = e
			out.Having = &h
		}
	}

	from := make([]sqlast.TableExpr, len(sel.From))
	for i, te := range sel.From {
		r, tc := simplifyTableExpr(te)
		from[i] = r
		changed = changed || tc
	}
	out.From = from

	return &out, changed
}

func simplifyTableExpr(te sqlast.TableExpr) (sqlast.TableExpr, bool) {
	switch n := te.(type) {
	case *sqlast.AliasedTableExpr:
		inner, c := simplifyTableExpr(n.Expr)
		return &sqlast.AliasedTableExpr{Expr: inner, As: n.As}, c
	case *sqlast.JoinTableExpr:
		left, lc := simplifyTableExpr(n.Left)
		right, rc := simplifyTableExpr(n.Right)
		on := n.On
		changed := lc || rc
		if on != nil {
			simplifiedOn, oc := simplifyExpr(on)
			on = simplifiedOn
			changed = changed || oc
		}
		return &sqlast.JoinTableExpr{Left: left, Right: right, Join: n.Join, On: on, MacroCond: n.MacroCond}, changed
	case *sqlast.ParenTableExpr:
		changed := false
		items := make([]sqlast.TableExpr, len(n.Exprs))
		for i, e := range n.Exprs {
			r, c := simplifyTableExpr(e)
			items[i] = r
			changed = changed || c
		}
		if len(items) == 1 {
			return items[0], true
		}
		return &sqlast.ParenTableExpr{Exprs: items}, changed
	case *sqlast.Subquery:
		inner, c := simplifyStatement(n.Select)
		return &sqlast.Subquery{Select: inner}, c
	default:
		return te, false
	}
}

// simplifyExpr applies the boolean-algebra identities. Anything it does
// not recognize is returned unchanged with changed=false.
func simplifyExpr(e sqlast.Expr) (sqlast.Expr, bool) {
	switch n := e.(type) {
	case *sqlast.ParenExpr:
		inner, ic := simplifyExpr(n.Expr)
		if isAtomic(inner) {
			return inner, true
		}
		return &sqlast.ParenExpr{Expr: inner}, ic
	case *sqlast.NotExpr:
		inner, ic := simplifyExpr(n.Expr)
		if not, ok := inner.(*sqlast.NotExpr); ok {
			return not.Expr, true
		}
		if lit, ok := inner.(*sqlast.Literal); ok && lit.Type == sqlast.LiteralBool {
			return boolLit(!isTrueLiteral(lit)), true
		}
		return &sqlast.NotExpr{Expr: inner}, ic
	case *sqlast.AndExpr:
		l, lc := simplifyExpr(n.Left)
		r, rc := simplifyExpr(n.Right)
		if isFalseLiteral(l) || isFalseLiteral(r) {
			return boolLit(false), true
		}
		if isTrueLiteral(l) {
			return r, true
		}
		if isTrueLiteral(r) {
			return l, true
		}
		return &sqlast.AndExpr{Left: l, Right: r}, lc || rc
	case *sqlast.OrExpr:
		l, lc := simplifyExpr(n.Left)
		r, rc := simplifyExpr(n.Right)
		if isTrueLiteral(l) || isTrueLiteral(r) {
			return boolLit(true), true
		}
		if isFalseLiteral(l) {
			return r, true
		}
		if isFalseLiteral(r) {
			return l, true
		}
		return &sqlast.OrExpr{Left: l, Right: r}, lc || rc
	default:
		return e, false
	}
}

func isAtomic(e sqlast.Expr) bool {
	switch e.(type) {
	case *sqlast.ColName, *sqlast.Literal, *sqlast.FuncExpr, *sqlast.CastExpr:
		return true
	default:
		return false
	}
}

func boolLit(b bool) *sqlast.Literal {
	val := "false"
	if b {
		val = "true"
	}
	return &sqlast.Literal{Type: sqlast.LiteralBool, Val: val}
}

func isTrueLiteral(e sqlast.Expr) bool {
	lit, ok := e.(*sqlast.Literal)
	return ok && lit.Type == sqlast.LiteralBool && lit.Val == "true"
}

func isFalseLiteral(e sqlast.Expr) bool {
	lit, ok := e.(*sqlast.Literal)
	return ok && lit.Type == sqlast.LiteralBool && lit.Val == "false"
}
