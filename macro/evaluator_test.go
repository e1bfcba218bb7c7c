package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowplan/sqlast"
)

func evalQuery(t *testing.T, sql string, env *Environment) string {
	t.Helper()
	st, err := sqlast.ParseQuery(sql, sqlast.DialectDuckDB)
	require.NoError(t, err, sql)
	if env == nil {
		env = NewEnvironment()
	}
	ev := New(env, NewRegistry(), sqlast.DialectDuckDB)
	out, err := ev.TransformStatement(st)
	require.NoError(t, err, sql)
	return sqlast.String(out, sqlast.DialectDuckDB)
}

func TestClauseMacroWhereTrue(t *testing.T) {
	got := evalQuery(t, `SELECT x FROM t @WHERE(TRUE) WHERE x > 1`, nil)
	assert.Equal(t, `SELECT x FROM t WHERE x > 1`, got)
}

func TestClauseMacroWhereFalse(t *testing.T) {
	got := evalQuery(t, `SELECT x FROM t @WHERE(FALSE) WHERE x > 1`, nil)
	assert.Equal(t, `SELECT x FROM t`, got)
}

func TestClauseMacroJoinFalseDropsJoin(t *testing.T) {
	got := evalQuery(t, `SELECT a FROM t1 @JOIN(FALSE) JOIN t2 ON t1.id = t2.id`, nil)
	assert.Equal(t, `SELECT a FROM t1`, got)
}

func TestMacroVarSubstitution(t *testing.T) {
	env := NewEnvironment()
	env.Set("threshold", &sqlast.Literal{Type: sqlast.LiteralInt, Val: "5"})
	got := evalQuery(t, `SELECT x FROM t WHERE x > @threshold`, env)
	assert.Equal(t, `SELECT x FROM t WHERE x > 5`, got)
}

func TestMacroDefBindsLocal(t *testing.T) {
	st, err := sqlast.ParseStatements(`@DEF(threshold, 10); SELECT x FROM t WHERE x > @threshold;`, sqlast.DialectDuckDB)
	require.NoError(t, err)
	require.Len(t, st, 2)

	env := NewEnvironment()
	ev := New(env, NewRegistry(), sqlast.DialectDuckDB)
	_, err = ev.TransformExpr(st[0].(*sqlast.ExprStatement).Expr)
	require.NoError(t, err)

	out, err := ev.TransformStatement(st[1])
	require.NoError(t, err)
	assert.Equal(t, `SELECT x FROM t WHERE x > 10`, sqlast.String(out, sqlast.DialectDuckDB))
}

func TestEachCombinator(t *testing.T) {
	env := NewEnvironment()
	got := evalQuery(t, `SELECT @EACH((a, b, c), col -> col) FROM t`, env)
	assert.Equal(t, `SELECT a, b, c FROM t`, got)
}

func TestFilterCombinator(t *testing.T) {
	env := NewEnvironment()
	env.Set("flags", &sqlast.FuncExpr{Name: "__tuple__", Args: []sqlast.Expr{
		&sqlast.Literal{Type: sqlast.LiteralBool, Val: "true"},
		&sqlast.Literal{Type: sqlast.LiteralBool, Val: "false"},
		&sqlast.Literal{Type: sqlast.LiteralBool, Val: "true"},
	}})
	ev := New(env, NewRegistry(), sqlast.DialectDuckDB)
	m := &sqlast.MacroFunc{Name: "FILTER", Args: []sqlast.Expr{
		&sqlast.MacroVar{Name: "flags"},
		&sqlast.FuncExpr{Name: "__lambda__", Args: []sqlast.Expr{
			&sqlast.ColName{Name: "x"},
			&sqlast.ColName{Name: "x"},
		}},
	}}
	out, err := ev.evalMacroFunc(m)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestReduceCombinator(t *testing.T) {
	env := NewEnvironment()
	ev := New(env, NewRegistry(), sqlast.DialectDuckDB)
	m := &sqlast.MacroFunc{Name: "REDUCE", Args: []sqlast.Expr{
		&sqlast.FuncExpr{Name: "__tuple__", Args: []sqlast.Expr{
			&sqlast.Literal{Type: sqlast.LiteralInt, Val: "1"},
			&sqlast.Literal{Type: sqlast.LiteralInt, Val: "2"},
			&sqlast.Literal{Type: sqlast.LiteralInt, Val: "3"},
		}},
		&sqlast.FuncExpr{Name: "__lambda__", Args: []sqlast.Expr{
			&sqlast.ColName{Name: "acc"},
			&sqlast.ColName{Name: "x"},
			&sqlast.BinaryExpr{Op: "+", Left: &sqlast.ColName{Name: "acc"}, Right: &sqlast.ColName{Name: "x"}},
		}},
	}}
	out, err := ev.evalMacroFunc(m)
	require.NoError(t, err)
	require.Len(t, out, 1)
	lit := out[0].(*sqlast.Literal)
	assert.Equal(t, "6", lit.Val)
}

func TestUnknownMacroError(t *testing.T) {
	_, err := evalQueryErr(`SELECT @nope(1) FROM t`)
	require.Error(t, err)
	var mee *MacroEvalError
	require.ErrorAs(t, err, &mee)
}

func evalQueryErr(sql string) (string, error) {
	st, err := sqlast.ParseQuery(sql, sqlast.DialectDuckDB)
	if err != nil {
		return "", err
	}
	ev := New(NewEnvironment(), NewRegistry(), sqlast.DialectDuckDB)
	out, err := ev.TransformStatement(st)
	if err != nil {
		return "", err
	}
	return sqlast.String(out, sqlast.DialectDuckDB), nil
}

func TestUserMacroRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.Register("double", func(ev *Evaluator, args []sqlast.Expr) (any, error) {
		lit, ok := args[0].(*sqlast.Literal)
		if !ok {
			return nil, assert.AnError
		}
		return &sqlast.BinaryExpr{Op: "*", Left: lit, Right: &sqlast.Literal{Type: sqlast.LiteralInt, Val: "2"}}, nil
	})
	st, err := sqlast.ParseQuery(`SELECT @double(21) AS x FROM t`, sqlast.DialectDuckDB)
	require.NoError(t, err)
	ev := New(NewEnvironment(), reg, sqlast.DialectDuckDB)
	out, err := ev.TransformStatement(st)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 21 * 2 AS x FROM t`, sqlast.String(out, sqlast.DialectDuckDB))
}
