package render

import (
	"strings"

	"github.com/flowforge/flowplan/sqlast"
)

// expandStatement implements spec.md §4.D step 4: for each Table node
// whose name resolves to a SQL model in snapshots ∩ expand, replace it
// by `(<rendered m>) AS <alias-or-view-name>`, recursively.
func (r *Renderer) expandStatement(st sqlast.Statement, win Window, opts Options) (sqlast.Statement, error) {
	switch n := st.(type) {
	case *sqlast.Union:
		left, err := r.expandStatement(n.Left, win, opts)
		if err != nil {
			return nil, err
		}
		right, err := r.expandStatement(n.Right, win, opts)
		if err != nil {
			return nil, err
		}
		return &sqlast.Union{Left: left, Right: right, Type: n.Type}, nil
	case *sqlast.Select:
		return r.expandSelect(n, win, opts)
	default:
		return st, nil
	}
}

func (r *Renderer) expandSelect(sel *sqlast.Select, win Window, opts Options) (*sqlast.Select, error) {
	out := *sel

	if sel.With != nil {
		withCopy := *sel.With
		ctes := make([]*sqlast.CTE, len(withCopy.CTEs))
		for i, cte := range withCopy.CTEs {
			sub, err := r.expandSelect(cte.Subquery, win, opts)
			if err != nil {
				return nil, err
			}
			c := *cte
			c.Subquery = sub
			ctes[i] = &c
		}
		withCopy.CTEs = ctes
		out.With = &withCopy
	}

	from := make([]sqlast.TableExpr, len(sel.From))
	for i, te := range sel.From {
		replaced, err := r.expandTableExpr(te, win, opts)
		if err != nil {
			return nil, err
		}
		from[i] = replaced
	}
	out.From = from

	return &out, nil
}

func (r *Renderer) expandTableExpr(te sqlast.TableExpr, win Window, opts Options) (sqlast.TableExpr, error) {
	switch n := te.(type) {
	case *sqlast.TableName:
		name := n.String()
		if !opts.Expand[name] || opts.Provider == nil {
			return n, nil
		}
		pm, ok := opts.Provider.LookupModel(name)
		if !ok || pm.Query == nil {
			return n, nil
		}
		rendered, err := r.Render(pm, win, opts)
		if err != nil {
			return nil, err
		}
		return &sqlast.AliasedTableExpr{Expr: &sqlast.Subquery{Select: rendered}, As: aliasForModel(name)}, nil
	case *sqlast.AliasedTableExpr:
		inner, err := r.expandTableExpr(n.Expr, win, opts)
		if err != nil {
			return nil, err
		}
		as := n.As
		if at, ok := inner.(*sqlast.AliasedTableExpr); ok {
			if as != "" {
				at.As = as
			}
			return at, nil
		}
		return &sqlast.AliasedTableExpr{Expr: inner, As: as}, nil
	case *sqlast.JoinTableExpr:
		left, err := r.expandTableExpr(n.Left, win, opts)
		if err != nil {
			return nil, err
		}
		right, err := r.expandTableExpr(n.Right, win, opts)
		if err != nil {
			return nil, err
		}
		return &sqlast.JoinTableExpr{Left: left, Right: right, Join: n.Join, On: n.On}, nil
	case *sqlast.ParenTableExpr:
		items := make([]sqlast.TableExpr, len(n.Exprs))
		for i, e := range n.Exprs {
			r2, err := r.expandTableExpr(e, win, opts)
			if err != nil {
				return nil, err
			}
			items[i] = r2
		}
		return &sqlast.ParenTableExpr{Exprs: items}, nil
	case *sqlast.Subquery:
		inner, err := r.expandStatement(n.Select, win, opts)
		if err != nil {
			return nil, err
		}
		return &sqlast.Subquery{Select: inner}, nil
	default:
		return te, nil
	}
}

// aliasForModel derives the `<alias-or-view-name>` an inlined model's
// subquery is given: the final dotted segment of its name, with any
// remaining dots (from a still-qualified schema prefix) underscored so
// it is a valid bare identifier.
func aliasForModel(name string) string {
	parts := strings.Split(name, ".")
	last := parts[len(parts)-1]
	return strings.ReplaceAll(last, ".", "_")
}
