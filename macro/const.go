package macro

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowforge/flowplan/sqlast"
)

// evalConst folds e to a literal value using only Env bindings and pure
// arithmetic/string/boolean operators (spec.md §4.B: "a host-language
// execution context for expression evaluation (pure arithmetic, string
// ops, boolean logic — no I/O)"). It is used for clause-macro conditions
// and combinator predicates, which must be fully evaluable constants.
func (ev *Evaluator) evalConst(e sqlast.Expr) (*sqlast.Literal, error) {
	switch n := e.(type) {
	case *sqlast.Literal:
		return n, nil
	case *sqlast.MacroVar:
		v, ok := ev.Env.Get(n.Name)
		if !ok {
			return nil, fmt.Errorf("macro variable '@%s' is not bound", n.Name)
		}
		return ev.evalConst(v)
	case *sqlast.ColName:
		if n.Qualifier == "" {
			if v, ok := ev.Env.Get(n.Name); ok {
				return ev.evalConst(v)
			}
		}
		return nil, fmt.Errorf("%q is not a constant expression", n.Name)
	case *sqlast.ParenExpr:
		return ev.evalConst(n.Expr)
	case *sqlast.NotExpr:
		v, err := ev.evalConst(n.Expr)
		if err != nil {
			return nil, err
		}
		return boolLiteral(!truthy(v)), nil
	case *sqlast.AndExpr:
		l, err := ev.evalConst(n.Left)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return boolLiteral(false), nil
		}
		r, err := ev.evalConst(n.Right)
		if err != nil {
			return nil, err
		}
		return boolLiteral(truthy(r)), nil
	case *sqlast.OrExpr:
		l, err := ev.evalConst(n.Left)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return boolLiteral(true), nil
		}
		r, err := ev.evalConst(n.Right)
		if err != nil {
			return nil, err
		}
		return boolLiteral(truthy(r)), nil
	case *sqlast.UnaryExpr:
		v, err := ev.evalConst(n.Expr)
		if err != nil {
			return nil, err
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if n.Op == "-" {
			f = -f
		}
		return numLiteral(f), nil
	case *sqlast.IsExpr:
		v, err := ev.evalConst(n.Expr)
		if err != nil {
			return nil, err
		}
		var is bool
		switch n.What {
		case "null":
			is = v.Type == sqlast.LiteralNull
		case "true":
			is = v.Type == sqlast.LiteralBool && strings.EqualFold(v.Val, "true")
		case "false":
			is = v.Type == sqlast.LiteralBool && strings.EqualFold(v.Val, "false")
		}
		if n.Not {
			is = !is
		}
		return boolLiteral(is), nil
	case *sqlast.BinaryExpr:
		l, err := ev.evalConst(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.evalConst(n.Right)
		if err != nil {
			return nil, err
		}
		return evalBinaryConst(n.Op, l, r)
	default:
		return nil, fmt.Errorf("expression is not a macro-time constant")
	}
}

// foldConst opportunistically constant-folds e when it is built entirely
// out of literals (e.g. a @REDUCE fold over literal elements). Returns
// ok=false, leaving the symbolic node in place, whenever e references
// anything that is not a compile-time constant (ordinary column
// references in the rendered query are the common case).
func foldConst(ev *Evaluator, e sqlast.Expr) (*sqlast.Literal, bool) {
	if !isLiteralClosed(e) {
		return nil, false
	}
	lit, err := ev.evalConst(e)
	if err != nil {
		return nil, false
	}
	return lit, true
}

func isLiteralClosed(e sqlast.Expr) bool {
	switch n := e.(type) {
	case *sqlast.Literal:
		return true
	case *sqlast.AndExpr:
		return isLiteralClosed(n.Left) && isLiteralClosed(n.Right)
	case *sqlast.OrExpr:
		return isLiteralClosed(n.Left) && isLiteralClosed(n.Right)
	case *sqlast.BinaryExpr:
		return isLiteralClosed(n.Left) && isLiteralClosed(n.Right)
	case *sqlast.NotExpr:
		return isLiteralClosed(n.Expr)
	case *sqlast.ParenExpr:
		return isLiteralClosed(n.Expr)
	default:
		return false
	}
}

func truthy(v *sqlast.Literal) bool {
	if v == nil {
		return false
	}
	switch v.Type {
	case sqlast.LiteralNull:
		return false
	case sqlast.LiteralBool:
		return strings.EqualFold(v.Val, "true")
	case sqlast.LiteralString:
		return v.Val != ""
	default:
		f, err := strconv.ParseFloat(v.Val, 64)
		return err == nil && f != 0
	}
}

func boolLiteral(b bool) *sqlast.Literal {
	val := "false"
	if b {
		val = "true"
	}
	return &sqlast.Literal{Type: sqlast.LiteralBool, Val: val}
}

func numLiteral(f float64) *sqlast.Literal {
	if f == float64(int64(f)) {
		return &sqlast.Literal{Type: sqlast.LiteralInt, Val: strconv.FormatInt(int64(f), 10)}
	}
	return &sqlast.Literal{Type: sqlast.LiteralFloat, Val: strconv.FormatFloat(f, 'g', -1, 64)}
}

func toFloat(v *sqlast.Literal) (float64, error) {
	switch v.Type {
	case sqlast.LiteralInt, sqlast.LiteralFloat:
		return strconv.ParseFloat(v.Val, 64)
	default:
		return 0, fmt.Errorf("value %q is not numeric", v.Val)
	}
}

func evalBinaryConst(op string, l, r *sqlast.Literal) (*sqlast.Literal, error) {
	if op == "+" && (l.Type == sqlast.LiteralString || r.Type == sqlast.LiteralString) {
		return &sqlast.Literal{Type: sqlast.LiteralString, Val: l.Val + r.Val}, nil
	}
	if op == "||" {
		return &sqlast.Literal{Type: sqlast.LiteralString, Val: l.Val + r.Val}, nil
	}
	if op == "=" || op == "<>" || op == "!=" {
		eq := l.Type == r.Type && l.Val == r.Val
		if l.Type != r.Type {
			if lf, err := toFloat(l); err == nil {
				if rf, err2 := toFloat(r); err2 == nil {
					eq = lf == rf
				}
			}
		}
		if op == "=" {
			return boolLiteral(eq), nil
		}
		return boolLiteral(!eq), nil
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, err
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		return numLiteral(lf + rf), nil
	case "-":
		return numLiteral(lf - rf), nil
	case "*":
		return numLiteral(lf * rf), nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return numLiteral(lf / rf), nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return numLiteral(float64(int64(lf) % int64(rf))), nil
	case "<":
		return boolLiteral(lf < rf), nil
	case "<=":
		return boolLiteral(lf <= rf), nil
	case ">":
		return boolLiteral(lf > rf), nil
	case ">=":
		return boolLiteral(lf >= rf), nil
	}
	return nil, fmt.Errorf("unsupported constant operator %q", op)
}
