package render

import (
	"time"

	"github.com/flowforge/flowplan/macro"
	"github.com/flowforge/flowplan/sqlast"
)

// seedBuiltinVars binds the built-in macro variables every render gets
// (spec.md §6): start_date/end_date/latest_date as TIMESTAMP, and
// start_ds/end_ds/latest_ds as `%Y-%m-%d` DATE strings.
func seedBuiltinVars(env *macro.Environment, win Window) {
	env.Set("start_date", timestampLiteral(win.Start))
	env.Set("end_date", timestampLiteral(win.End))
	env.Set("latest_date", timestampLiteral(win.Latest))
	env.Set("start_ds", dateLiteral(win.Start))
	env.Set("end_ds", dateLiteral(win.End))
	env.Set("latest_ds", dateLiteral(win.Latest))
}

func timestampLiteral(t time.Time) sqlast.Expr {
	return &sqlast.CastExpr{
		Expr: &sqlast.Literal{Type: sqlast.LiteralString, Val: timestampString(t)},
		Type: "TIMESTAMP",
	}
}

func dateLiteral(t time.Time) sqlast.Expr {
	return &sqlast.Literal{Type: sqlast.LiteralString, Val: dateString(t)}
}
