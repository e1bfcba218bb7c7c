package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowplan/macro"
	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/sqlast"
)

func parseModel(t *testing.T, src string) *modelmeta.Model {
	t.Helper()
	stmts, err := sqlast.ParseStatements(src, sqlast.DialectDuckDB)
	require.NoError(t, err)
	m, err := modelmeta.Load(stmts, "test.sql")
	require.NoError(t, err)
	return m
}

func testWindow() Window {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 23, 59, 59, 999000000, time.UTC)
	return Window{Start: start, End: end, Latest: end}
}

func TestRender_SubstitutesBuiltinDateVars(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = FULL,
  cron = '@daily'
);
SELECT id, @start_ds AS ds FROM db.raw.orders;
`)
	r := NewRenderer(macro.NewRegistry())
	out, err := r.Render(m, testWindow(), Options{})
	require.NoError(t, err)
	assert.Contains(t, sqlast.String(out, sqlast.DialectDuckDB), "2021-01-01")
}

func TestRender_InjectsIncrementalFilterIntoWhere(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = INCREMENTAL_BY_TIME,
  cron = '@daily',
  time_column = ds
);
SELECT id, CAST(ds AS TIMESTAMP) AS ds FROM db.raw.events;
`)
	r := NewRenderer(macro.NewRegistry())
	out, err := r.Render(m, testWindow(), Options{})
	require.NoError(t, err)
	sel, ok := out.(*sqlast.Select)
	require.True(t, ok)
	require.NotNil(t, sel.Where)
	_, ok = sel.Where.Expr.(*sqlast.BetweenExpr)
	assert.True(t, ok)
}

func TestRender_IncrementalFilterUsesTimeColumnFormat(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = INCREMENTAL_BY_TIME,
  cron = '@daily',
  time_column = (ds, '%Y%m%d')
);
SELECT id, ds FROM db.raw.events;
`)
	r := NewRenderer(macro.NewRegistry())
	out, err := r.Render(m, testWindow(), Options{})
	require.NoError(t, err)
	text := sqlast.String(out, sqlast.DialectDuckDB)
	assert.Contains(t, text, "20210101")
}

func TestRender_RewritesTableNamesToPhysical(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = FULL,
  cron = '@daily'
);
SELECT id FROM db.schema.upstream;
`)
	provider := &MapProvider{Tables: map[string]string{"db.schema.upstream": "db.schema.upstream__1234"}}
	r := NewRenderer(macro.NewRegistry())
	out, err := r.Render(m, testWindow(), Options{Provider: provider})
	require.NoError(t, err)
	assert.Contains(t, sqlast.String(out, sqlast.DialectDuckDB), "upstream__1234")
}

func TestRender_ExpandsModelInExpandSet(t *testing.T) {
	upstream := parseModel(t, `
MODEL (
  name = db.schema.upstream,
  kind = FULL,
  cron = '@daily'
);
SELECT id FROM db.raw.src;
`)
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = FULL,
  cron = '@daily'
);
SELECT id FROM db.schema.upstream;
`)
	provider := &MapProvider{Models: map[string]*modelmeta.Model{"db.schema.upstream": upstream}}
	r := NewRenderer(macro.NewRegistry())
	out, err := r.Render(m, testWindow(), Options{
		Expand:   map[string]bool{"db.schema.upstream": true},
		Provider: provider,
	})
	require.NoError(t, err)
	text := sqlast.String(out, sqlast.DialectDuckDB)
	assert.Contains(t, text, "db.raw.src")
	assert.NotContains(t, text, "db.schema.upstream ")
}

func TestRender_MacroExpansionCacheHitAcrossCalls(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = FULL,
  cron = '@daily'
);
SELECT id, @start_ds AS ds FROM db.raw.orders;
`)
	r := NewRenderer(macro.NewRegistry())
	win := testWindow()
	out1, err := r.Render(m, win, Options{})
	require.NoError(t, err)
	out2, err := r.Render(m, win, Options{})
	require.NoError(t, err)
	assert.Equal(t, sqlast.String(out1, sqlast.DialectDuckDB), sqlast.String(out2, sqlast.DialectDuckDB))
}

func TestSimplify_CollapsesTrueAnd(t *testing.T) {
	sel := &sqlast.Select{
		SelectExprs: []sqlast.SelectExpr{&sqlast.AliasedExpr{Expr: &sqlast.ColName{Name: "id"}}},
		From:        []sqlast.TableExpr{&sqlast.TableName{Name: "t"}},
		Where: &sqlast.Where{Type: "where", Expr: &sqlast.AndExpr{
			Left:  &sqlast.Literal{Type: sqlast.LiteralBool, Val: "true"},
			Right: &sqlast.ColName{Name: "active"},
		}},
	}
	out := Simplify(sel)
	outSel := out.(*sqlast.Select)
	require.NotNil(t, outSel.Where)
	_, ok := outSel.Where.Expr.(*sqlast.ColName)
	assert.True(t, ok)
}
