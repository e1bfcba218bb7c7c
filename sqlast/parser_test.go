package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseQuery(t *testing.T, sql string) Statement {
	t.Helper()
	st, err := ParseQuery(sql, DialectDuckDB)
	require.NoError(t, err, sql)
	return st
}

func TestParseSimpleSelect(t *testing.T) {
	st := mustParseQuery(t, `SELECT a, b AS c FROM t WHERE a > 1`)
	sel, ok := st.(*Select)
	require.True(t, ok)
	assert.Len(t, sel.SelectExprs, 2)
	assert.Len(t, sel.From, 1)
	require.NotNil(t, sel.Where)
	assert.Equal(t, "where", sel.Where.Type)
}

func TestParseEmitParseRoundTrip(t *testing.T) {
	cases := []string{
		`SELECT a, b FROM t WHERE a > 1 AND b < 2 GROUP BY a HAVING count(*) > 1 ORDER BY a DESC LIMIT 10`,
		`SELECT t1.a, t2.b FROM t1 JOIN t2 ON t1.id = t2.id`,
		`SELECT a FROM t WHERE a IN (1, 2, 3)`,
		`SELECT CASE WHEN a > 1 THEN 'x' ELSE 'y' END FROM t`,
		`SELECT CAST(a AS INT) FROM t`,
		`WITH x AS (SELECT 1 AS a) SELECT a FROM x`,
	}
	for _, sql := range cases {
		st := mustParseQuery(t, sql)
		printed := String(st, DialectDuckDB)
		reparsed, err := ParseQuery(printed, DialectDuckDB)
		require.NoError(t, err, printed)
		assert.True(t, Equal(st, reparsed), "round trip mismatch for %q -> %q", sql, printed)
	}
}

func TestParseClauseMacros(t *testing.T) {
	st := mustParseQuery(t, `SELECT a FROM t @WHERE(@include_extra) WHERE a > 1`)
	sel := st.(*Select)
	require.NotNil(t, sel.Where)
	require.NotNil(t, sel.Where.MacroCond)
	mv, ok := sel.Where.MacroCond.(*MacroVar)
	require.True(t, ok)
	assert.Equal(t, "include_extra", mv.Name)

	printed := String(sel, DialectDuckDB)
	assert.Contains(t, printed, "@WHERE(@include_extra)")
}

func TestParseJoinMacro(t *testing.T) {
	st := mustParseQuery(t, `SELECT a FROM t1 @JOIN(@include_join) JOIN t2 ON t1.id = t2.id`)
	sel := st.(*Select)
	join, ok := sel.From[0].(*JoinTableExpr)
	require.True(t, ok)
	require.NotNil(t, join.MacroCond)
}

func TestParseMacroFuncAndVar(t *testing.T) {
	st := mustParseQuery(t, `SELECT @my_macro(a, 1) AS x FROM t WHERE @cond`)
	sel := st.(*Select)
	ae := sel.SelectExprs[0].(*AliasedExpr)
	mf, ok := ae.Expr.(*MacroFunc)
	require.True(t, ok)
	assert.Equal(t, "my_macro", mf.Name)
	assert.Len(t, mf.Args, 2)

	require.NotNil(t, sel.Where)
	_, ok = sel.Where.Expr.(*MacroVar)
	require.True(t, ok)
}

func TestParseMacroDefStatement(t *testing.T) {
	stmts, err := ParseStatements(`@DEF(threshold, 10);`, DialectDuckDB)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	es, ok := stmts[0].(*ExprStatement)
	require.True(t, ok)
	def, ok := es.Expr.(*MacroDef)
	require.True(t, ok)
	assert.Equal(t, "threshold", def.Name)
}

func TestParseMacroSQL(t *testing.T) {
	st := mustParseQuery(t, `SELECT @SQL(@'col_@suffix', into=column) FROM t`)
	sel := st.(*Select)
	ae := sel.SelectExprs[0].(*AliasedExpr)
	ms, ok := ae.Expr.(*MacroSQL)
	require.True(t, ok)
	assert.Equal(t, "column", ms.Into)
	_, ok = ms.Text.(*MacroStrReplace)
	require.True(t, ok)
}

func TestParseModelDef(t *testing.T) {
	stmts, err := ParseStatements(`
MODEL (
  name sales.by_customer,
  kind INCREMENTAL_BY_TIME_RANGE,
  time_column (ds, '%Y-%m-%d')
);
SELECT 1 AS a;
`, DialectDuckDB)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	md, ok := stmts[0].(*ModelDef)
	require.True(t, ok)
	nameExpr, ok := md.Props.Get("name")
	require.True(t, ok)
	cn, ok := nameExpr.(*ColName)
	require.True(t, ok)
	assert.Equal(t, "sales", cn.Qualifier)
	assert.Equal(t, "by_customer", cn.Name)

	tc, ok := md.Props.Get("time_column")
	require.True(t, ok)
	tuple, ok := tc.(*FuncExpr)
	require.True(t, ok)
	assert.Equal(t, "__tuple__", tuple.Name)
	assert.Len(t, tuple.Args, 2)
}

func TestParseLambdaArg(t *testing.T) {
	st := mustParseQuery(t, `SELECT @EACH(@cols, x -> x + 1) AS a FROM t`)
	sel := st.(*Select)
	ae := sel.SelectExprs[0].(*AliasedExpr)
	mf := ae.Expr.(*MacroFunc)
	require.Len(t, mf.Args, 2)
	lambda, ok := mf.Args[1].(*FuncExpr)
	require.True(t, ok)
	assert.Equal(t, "__lambda__", lambda.Name)
	assert.Len(t, lambda.Args, 2)
}

func TestParseRawPrestatement(t *testing.T) {
	stmts, err := ParseStatements(`
MODEL (name t.x, kind FULL);
CREATE TABLE IF NOT EXISTS staging.tmp (a INT);
SELECT 1 AS a;
`, DialectDuckDB)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	raw, ok := stmts[1].(*RawStatement)
	require.True(t, ok)
	assert.Contains(t, raw.Text, "CREATE TABLE")
}

func TestParseUnion(t *testing.T) {
	st := mustParseQuery(t, `SELECT a FROM t1 UNION ALL SELECT a FROM t2`)
	u, ok := st.(*Union)
	require.True(t, ok)
	assert.Equal(t, "union all", u.Type)
}
