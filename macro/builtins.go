package macro

import (
	"fmt"

	"github.com/flowforge/flowplan/sqlast"
)

// Built-in combinators (spec.md §4.B). These take the raw, untransformed
// macro arguments: the items expression is evaluated here, but the
// lambda argument is never generically transformed (TransformExprMulti
// leaves a `__lambda__` FuncExpr untouched for exactly this reason).

func (ev *Evaluator) evalEach(args []sqlast.Expr) ([]sqlast.Expr, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("@EACH expects 2 arguments, got %d", len(args))
	}
	items, err := ev.toItems(args[0])
	if err != nil {
		return nil, err
	}
	params, body, err := lambdaParts(args[1])
	if err != nil {
		return nil, err
	}
	if len(params) != 1 {
		return nil, fmt.Errorf("@EACH lambda must take exactly 1 parameter, got %d", len(params))
	}

	var out []sqlast.Expr
	for _, item := range items {
		child := New(ev.Env.Clone(), ev.Registry, ev.Dialect)
		child.Env.Set(params[0], item)
		r, err := child.TransformExprMulti(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func (ev *Evaluator) evalFilter(args []sqlast.Expr) ([]sqlast.Expr, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("@FILTER expects 2 arguments, got %d", len(args))
	}
	items, err := ev.toItems(args[0])
	if err != nil {
		return nil, err
	}
	params, body, err := lambdaParts(args[1])
	if err != nil {
		return nil, err
	}
	if len(params) != 1 {
		return nil, fmt.Errorf("@FILTER lambda must take exactly 1 parameter, got %d", len(params))
	}

	var out []sqlast.Expr
	for _, item := range items {
		child := New(ev.Env.Clone(), ev.Registry, ev.Dialect)
		child.Env.Set(params[0], item)
		lit, err := child.evalConst(body)
		if err != nil {
			return nil, err
		}
		if truthy(lit) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (ev *Evaluator) evalReduce(args []sqlast.Expr) ([]sqlast.Expr, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("@REDUCE expects 2 arguments, got %d", len(args))
	}
	items, err := ev.toItems(args[0])
	if err != nil {
		return nil, err
	}
	params, body, err := lambdaParts(args[1])
	if err != nil {
		return nil, err
	}
	if len(params) != 2 {
		return nil, fmt.Errorf("@REDUCE lambda must take exactly 2 parameters, got %d", len(params))
	}
	if len(items) == 0 {
		return nil, nil
	}

	acc := items[0]
	for _, item := range items[1:] {
		child := New(ev.Env.Clone(), ev.Registry, ev.Dialect)
		child.Env.Set(params[0], acc)
		child.Env.Set(params[1], item)
		r, err := child.TransformExpr(body)
		if err != nil {
			return nil, err
		}
		acc = r
	}
	return []sqlast.Expr{acc}, nil
}

// toItems resolves an @EACH/@REDUCE/@FILTER items argument to a flat
// list: a `(a, b, c)` tuple literal expands to its members, anything
// else is treated as a singleton list.
func (ev *Evaluator) toItems(e sqlast.Expr) ([]sqlast.Expr, error) {
	results, err := ev.TransformExprMulti(e)
	if err != nil {
		return nil, err
	}
	if len(results) == 1 {
		if tup, ok := results[0].(*sqlast.FuncExpr); ok && tup.Name == "__tuple__" {
			return tup.Args, nil
		}
	}
	return results, nil
}

func lambdaParts(e sqlast.Expr) ([]string, sqlast.Expr, error) {
	f, ok := e.(*sqlast.FuncExpr)
	if !ok || f.Name != "__lambda__" {
		return nil, nil, fmt.Errorf("expected a lambda argument of the form `x -> expr`")
	}
	if len(f.Args) < 2 {
		return nil, nil, fmt.Errorf("malformed lambda")
	}
	params := make([]string, 0, len(f.Args)-1)
	for _, p := range f.Args[:len(f.Args)-1] {
		cn, ok := p.(*sqlast.ColName)
		if !ok {
			return nil, nil, fmt.Errorf("lambda parameter must be a bare identifier")
		}
		params = append(params, cn.Name)
	}
	return params, f.Args[len(f.Args)-1], nil
}
