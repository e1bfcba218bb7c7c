// Package macro implements the macro evaluator of spec.md §4.B: it
// walks a sqlast tree child-first, replacing macro nodes with their
// evaluated result against a binding Environment and a Registry of
// user/built-in macro functions.
package macro

import (
	"fmt"
	"strings"

	"github.com/flowforge/flowplan/sqlast"
)

// Evaluator holds the mutable state of a single evaluation pass: the
// locals Environment (mutated by @DEF) and the read-only macro
// Registry. One Evaluator is used per render (spec.md §4.D step 1-3).
type Evaluator struct {
	Env      *Environment
	Registry *Registry
	Dialect  sqlast.Dialect
}

// New returns an Evaluator over env and reg.
func New(env *Environment, reg *Registry, dialect sqlast.Dialect) *Evaluator {
	return &Evaluator{Env: env, Registry: reg, Dialect: dialect}
}

// TransformStatement evaluates every macro node in st and returns the
// purely-SQL result. Non-Select/Union statements (MODEL/AUDIT/raw) are
// not macro targets and are rejected.
func (ev *Evaluator) TransformStatement(st sqlast.Statement) (sqlast.Statement, error) {
	switch n := st.(type) {
	case *sqlast.Select:
		return ev.transformSelect(n)
	case *sqlast.Union:
		left, err := ev.TransformStatement(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.TransformStatement(n.Right)
		if err != nil {
			return nil, err
		}
		return &sqlast.Union{Left: left, Right: right, Type: n.Type}, nil
	default:
		return nil, fmt.Errorf("macro: cannot transform statement of type %T", st)
	}
}

func (ev *Evaluator) transformSelect(s *sqlast.Select) (*sqlast.Select, error) {
	out := &sqlast.Select{Distinct: s.Distinct}

	if s.With != nil {
		with, err := ev.transformWith(s.With)
		if err != nil {
			return nil, err
		}
		out.With = with
	}

	exprs, err := ev.transformSelectExprList(s.SelectExprs)
	if err != nil {
		return nil, err
	}
	out.SelectExprs = exprs

	if len(s.From) > 0 {
		from, err := ev.transformTableExprList(s.From)
		if err != nil {
			return nil, err
		}
		out.From = from
	}

	where, err := ev.transformWhere(s.Where)
	if err != nil {
		return nil, err
	}
	out.Where = where

	group, err := ev.transformGroupBy(s.Group)
	if err != nil {
		return nil, err
	}
	out.Group = group

	having, err := ev.transformWhere(s.Having)
	if err != nil {
		return nil, err
	}
	out.Having = having

	order, err := ev.transformOrderBy(s.Order)
	if err != nil {
		return nil, err
	}
	out.Order = order

	if s.Limit != nil {
		rc, err := ev.TransformExpr(s.Limit.Rowcount)
		if err != nil {
			return nil, err
		}
		l := &sqlast.Limit{Rowcount: rc}
		if s.Limit.Offset != nil {
			off, err := ev.TransformExpr(s.Limit.Offset)
			if err != nil {
				return nil, err
			}
			l.Offset = off
		}
		out.Limit = l
	}

	return out, nil
}

func (ev *Evaluator) transformWith(w *sqlast.With) (*sqlast.With, error) {
	out := &sqlast.With{Recursive: w.Recursive}
	for _, cte := range w.CTEs {
		if cte.MacroCond != nil {
			lit, err := ev.evalConst(cte.MacroCond)
			if err != nil {
				return nil, &MacroEvalError{Macro: "WITH", Err: err}
			}
			if !truthy(lit) {
				continue
			}
		}
		sub, err := ev.transformSelect(cte.Subquery)
		if err != nil {
			return nil, err
		}
		out.CTEs = append(out.CTEs, &sqlast.CTE{Name: cte.Name, Columns: cte.Columns, Subquery: sub})
	}
	if len(out.CTEs) == 0 {
		return nil, nil
	}
	return out, nil
}

func (ev *Evaluator) transformSelectExprList(in []sqlast.SelectExpr) ([]sqlast.SelectExpr, error) {
	var out []sqlast.SelectExpr
	for _, se := range in {
		switch n := se.(type) {
		case *sqlast.AliasedExpr:
			results, err := ev.TransformExprMulti(n.Expr)
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				as := n.As
				if len(results) > 1 {
					as = ""
				}
				out = append(out, &sqlast.AliasedExpr{Expr: r, As: as})
			}
		case *sqlast.MacroVar, *sqlast.MacroFunc:
			results, err := ev.TransformExprMulti(se.(sqlast.Expr))
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				out = append(out, &sqlast.AliasedExpr{Expr: r})
			}
		default:
			out = append(out, se)
		}
	}
	return out, nil
}

func (ev *Evaluator) transformTableExprList(in []sqlast.TableExpr) ([]sqlast.TableExpr, error) {
	var out []sqlast.TableExpr
	for _, te := range in {
		results, err := ev.transformTableExprMulti(te)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func (ev *Evaluator) transformTableExprMulti(te sqlast.TableExpr) ([]sqlast.TableExpr, error) {
	switch n := te.(type) {
	case *sqlast.TableName:
		return []sqlast.TableExpr{n}, nil
	case *sqlast.AliasedTableExpr:
		inner, err := ev.transformTableExprMulti(n.Expr)
		if err != nil {
			return nil, err
		}
		if len(inner) != 1 {
			return nil, fmt.Errorf("macro: aliased table expression must resolve to exactly one table")
		}
		return []sqlast.TableExpr{&sqlast.AliasedTableExpr{Expr: inner[0], As: n.As}}, nil
	case *sqlast.JoinTableExpr:
		if n.MacroCond != nil {
			lit, err := ev.evalConst(n.MacroCond)
			if err != nil {
				return nil, &MacroEvalError{Macro: "JOIN", Err: err}
			}
			if !truthy(lit) {
				return ev.transformTableExprMulti(n.Left)
			}
		}
		left, err := ev.transformTableExprMulti(n.Left)
		if err != nil {
			return nil, err
		}
		if len(left) != 1 {
			return nil, fmt.Errorf("macro: join left side must resolve to exactly one table")
		}
		right, err := ev.transformTableExprMulti(n.Right)
		if err != nil {
			return nil, err
		}
		if len(right) != 1 {
			return nil, fmt.Errorf("macro: join right side must resolve to exactly one table")
		}
		var on sqlast.Expr
		if n.On != nil {
			on, err = ev.TransformExpr(n.On)
			if err != nil {
				return nil, err
			}
		}
		return []sqlast.TableExpr{&sqlast.JoinTableExpr{Left: left[0], Right: right[0], Join: n.Join, On: on}}, nil
	case *sqlast.ParenTableExpr:
		var items []sqlast.TableExpr
		for _, e := range n.Exprs {
			r, err := ev.transformTableExprMulti(e)
			if err != nil {
				return nil, err
			}
			items = append(items, r...)
		}
		return []sqlast.TableExpr{&sqlast.ParenTableExpr{Exprs: items}}, nil
	case *sqlast.Subquery:
		st, err := ev.TransformStatement(n.Select)
		if err != nil {
			return nil, err
		}
		return []sqlast.TableExpr{&sqlast.Subquery{Select: st}}, nil
	case *sqlast.MacroVar, *sqlast.MacroFunc:
		results, err := ev.TransformExprMulti(te.(sqlast.Expr))
		if err != nil {
			return nil, err
		}
		out := make([]sqlast.TableExpr, 0, len(results))
		for _, r := range results {
			tex, ok := r.(sqlast.TableExpr)
			if !ok {
				return nil, fmt.Errorf("macro result cannot be used as a table expression")
			}
			out = append(out, tex)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("macro: unsupported table expression %T", te)
	}
}

func (ev *Evaluator) transformWhere(w *sqlast.Where) (*sqlast.Where, error) {
	if w == nil {
		return nil, nil
	}
	if w.MacroCond != nil {
		lit, err := ev.evalConst(w.MacroCond)
		if err != nil {
			return nil, &MacroEvalError{Macro: strings.ToUpper(w.Type), Err: err}
		}
		if !truthy(lit) {
			return nil, nil
		}
	}
	e, err := ev.TransformExpr(w.Expr)
	if err != nil {
		return nil, err
	}
	return &sqlast.Where{Type: w.Type, Expr: e}, nil
}

func (ev *Evaluator) transformGroupBy(g *sqlast.GroupBy) (*sqlast.GroupBy, error) {
	if g == nil {
		return nil, nil
	}
	if g.MacroCond != nil {
		lit, err := ev.evalConst(g.MacroCond)
		if err != nil {
			return nil, &MacroEvalError{Macro: "GROUP_BY", Err: err}
		}
		if !truthy(lit) {
			return nil, nil
		}
	}
	var exprs []sqlast.Expr
	for _, e := range g.Exprs {
		r, err := ev.TransformExprMulti(e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, r...)
	}
	return &sqlast.GroupBy{Exprs: exprs}, nil
}

func (ev *Evaluator) transformOrderBy(o *sqlast.OrderBy) (*sqlast.OrderBy, error) {
	if o == nil {
		return nil, nil
	}
	if o.MacroCond != nil {
		lit, err := ev.evalConst(o.MacroCond)
		if err != nil {
			return nil, &MacroEvalError{Macro: "ORDER_BY", Err: err}
		}
		if !truthy(lit) {
			return nil, nil
		}
	}
	var items []*sqlast.Order
	for _, item := range o.Items {
		results, err := ev.TransformExprMulti(item.Expr)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			items = append(items, &sqlast.Order{Expr: r, Direction: item.Direction})
		}
	}
	return &sqlast.OrderBy{Items: items}, nil
}

// TransformExpr evaluates e and expects exactly one resulting value.
func (ev *Evaluator) TransformExpr(e sqlast.Expr) (sqlast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	results, err := ev.TransformExprMulti(e)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, fmt.Errorf("macro produced multiple values in a scalar context")
	}
}

// TransformExprMulti evaluates e, returning zero (deleted), one, or
// many expressions (a macro that expanded into a list).
func (ev *Evaluator) TransformExprMulti(e sqlast.Expr) ([]sqlast.Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil
	case *sqlast.Literal, *sqlast.StarExpr:
		return []sqlast.Expr{n}, nil
	case *sqlast.ColName:
		if n.Qualifier == "" {
			if v, ok := ev.Env.Get(n.Name); ok {
				return []sqlast.Expr{v}, nil
			}
		}
		return []sqlast.Expr{n}, nil
	case *sqlast.ParenExpr:
		r, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return []sqlast.Expr{&sqlast.ParenExpr{Expr: r}}, nil
	case *sqlast.UnaryExpr:
		r, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return []sqlast.Expr{&sqlast.UnaryExpr{Op: n.Op, Expr: r}}, nil
	case *sqlast.NotExpr:
		r, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		out := &sqlast.NotExpr{Expr: r}
		if lit, ok := foldConst(ev, out); ok {
			return []sqlast.Expr{lit}, nil
		}
		return []sqlast.Expr{out}, nil
	case *sqlast.AndExpr:
		l, err := ev.TransformExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.TransformExpr(n.Right)
		if err != nil {
			return nil, err
		}
		if lit, ok := foldConst(ev, &sqlast.AndExpr{Left: l, Right: r}); ok {
			return []sqlast.Expr{lit}, nil
		}
		return []sqlast.Expr{&sqlast.AndExpr{Left: l, Right: r}}, nil
	case *sqlast.OrExpr:
		l, err := ev.TransformExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.TransformExpr(n.Right)
		if err != nil {
			return nil, err
		}
		if lit, ok := foldConst(ev, &sqlast.OrExpr{Left: l, Right: r}); ok {
			return []sqlast.Expr{lit}, nil
		}
		return []sqlast.Expr{&sqlast.OrExpr{Left: l, Right: r}}, nil
	case *sqlast.BinaryExpr:
		l, err := ev.TransformExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.TransformExpr(n.Right)
		if err != nil {
			return nil, err
		}
		out := &sqlast.BinaryExpr{Op: n.Op, Left: l, Right: r}
		if lit, ok := foldConst(ev, out); ok {
			return []sqlast.Expr{lit}, nil
		}
		return []sqlast.Expr{out}, nil
	case *sqlast.IsExpr:
		r, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return []sqlast.Expr{&sqlast.IsExpr{Expr: r, Not: n.Not, What: n.What}}, nil
	case *sqlast.BetweenExpr:
		expr, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		from, err := ev.TransformExpr(n.From)
		if err != nil {
			return nil, err
		}
		to, err := ev.TransformExpr(n.To)
		if err != nil {
			return nil, err
		}
		return []sqlast.Expr{&sqlast.BetweenExpr{Expr: expr, From: from, To: to, Not: n.Not}}, nil
	case *sqlast.InExpr:
		expr, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		var list []sqlast.Expr
		for _, item := range n.List {
			r, err := ev.TransformExprMulti(item)
			if err != nil {
				return nil, err
			}
			list = append(list, r...)
		}
		return []sqlast.Expr{&sqlast.InExpr{Expr: expr, List: list, Not: n.Not}}, nil
	case *sqlast.CastExpr:
		r, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return []sqlast.Expr{&sqlast.CastExpr{Expr: r, Type: n.Type}}, nil
	case *sqlast.CaseExpr:
		out := &sqlast.CaseExpr{}
		if n.Cond != nil {
			c, err := ev.TransformExpr(n.Cond)
			if err != nil {
				return nil, err
			}
			out.Cond = c
		}
		for _, w := range n.Whens {
			cond, err := ev.TransformExpr(w.Cond)
			if err != nil {
				return nil, err
			}
			val, err := ev.TransformExpr(w.Val)
			if err != nil {
				return nil, err
			}
			out.Whens = append(out.Whens, &sqlast.When{Cond: cond, Val: val})
		}
		if n.Else != nil {
			e, err := ev.TransformExpr(n.Else)
			if err != nil {
				return nil, err
			}
			out.Else = e
		}
		return []sqlast.Expr{out}, nil
	case *sqlast.Subquery:
		st, err := ev.TransformStatement(n.Select)
		if err != nil {
			return nil, err
		}
		return []sqlast.Expr{&sqlast.Subquery{Select: st}}, nil
	case *sqlast.FuncExpr:
		if n.Name == "__lambda__" {
			return []sqlast.Expr{n}, nil
		}
		out := &sqlast.FuncExpr{Qualifier: n.Qualifier, Name: n.Name, Distinct: n.Distinct}
		for _, a := range n.Args {
			r, err := ev.TransformExprMulti(a)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, r...)
		}
		return []sqlast.Expr{out}, nil
	case *sqlast.MacroVar:
		v, ok := ev.Env.Get(n.Name)
		if !ok {
			return nil, &MacroEvalError{Macro: n.Name, Err: fmt.Errorf("macro variable '@%s' is not bound", n.Name)}
		}
		return []sqlast.Expr{v}, nil
	case *sqlast.MacroStrReplace:
		s, err := ev.renderTemplate(n.Text)
		if err != nil {
			return nil, &MacroEvalError{Err: err}
		}
		return []sqlast.Expr{&sqlast.Literal{Type: sqlast.LiteralString, Val: s}}, nil
	case *sqlast.MacroDef:
		val, err := ev.TransformExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		ev.Env.Set(n.Name, val)
		return nil, nil
	case *sqlast.MacroSQL:
		textExpr, err := ev.TransformExpr(n.Text)
		if err != nil {
			return nil, err
		}
		lit, ok := textExpr.(*sqlast.Literal)
		if !ok || lit.Type != sqlast.LiteralString {
			return nil, &MacroEvalError{Macro: "SQL", Err: fmt.Errorf("@SQL(...) text must evaluate to a string")}
		}
		return ev.evalMacroSQL(lit.Val, n.Into)
	case *sqlast.MacroFunc:
		return ev.evalMacroFunc(n)
	default:
		return nil, fmt.Errorf("macro: unsupported expression node %T", e)
	}
}

func (ev *Evaluator) evalMacroSQL(text, into string) ([]sqlast.Expr, error) {
	switch strings.ToLower(into) {
	case "select", "query":
		st, err := sqlast.ParseQuery(text, ev.Dialect)
		if err != nil {
			return nil, &MacroEvalError{Macro: "SQL", SQL: text, Err: err}
		}
		return []sqlast.Expr{&sqlast.Subquery{Select: st}}, nil
	default:
		expr, err := sqlast.ParseExpr(text, ev.Dialect)
		if err != nil {
			return nil, &MacroEvalError{Macro: "SQL", SQL: text, Err: err}
		}
		return []sqlast.Expr{expr}, nil
	}
}

func (ev *Evaluator) evalMacroFunc(m *sqlast.MacroFunc) ([]sqlast.Expr, error) {
	switch strings.ToUpper(m.Name) {
	case "EACH":
		return ev.evalEach(m.Args)
	case "REDUCE":
		return ev.evalReduce(m.Args)
	case "FILTER":
		return ev.evalFilter(m.Args)
	}

	f, ok := ev.Registry.lookup(m.Name)
	if !ok {
		return nil, unknownMacroErr(m.Name)
	}

	var args []sqlast.Expr
	for _, a := range m.Args {
		r, err := ev.TransformExprMulti(a)
		if err != nil {
			return nil, err
		}
		args = append(args, r...)
	}

	result, err := f(ev, args)
	if err != nil {
		return nil, &MacroEvalError{Macro: m.Name, SQL: sqlast.String(m, ev.Dialect), Err: err}
	}
	switch v := result.(type) {
	case nil:
		return nil, nil
	case sqlast.Expr:
		return []sqlast.Expr{v}, nil
	case []sqlast.Expr:
		return v, nil
	default:
		return nil, &MacroEvalError{Macro: m.Name, Err: fmt.Errorf("macro returned unsupported type %T", result)}
	}
}
