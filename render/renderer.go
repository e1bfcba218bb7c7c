package render

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flowforge/flowplan/macro"
	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/sqlast"
)

// defaultMacroCacheSize bounds the memo table at a size generous enough
// to hold every model's macro-expansion result for a handful of audit
// names without unbounded growth (spec.md §4.D, §9).
const defaultMacroCacheSize = 1024

// Options controls the optional later pipeline stages (spec.md §4.D
// steps 4-6): which upstream models to inline as subqueries, the
// Provider used for both inlining and physical table-name resolution,
// caller-supplied macro variables layered on top of the built-ins, and
// the audit name (part of the macro-expansion cache key, since an
// AUDIT query binds its own macro vars distinct from the model query).
type Options struct {
	Expand    map[string]bool
	Provider  Provider
	Vars      map[string]sqlast.Expr
	AuditName string
}

type cacheKey struct {
	modelID   string
	auditName string
	start     int64
	end       int64
	latest    int64
}

// Renderer executes the 7-step rendering pipeline of spec.md §4.D. One
// Renderer is shared across a plan; its cache persists across calls.
type Renderer struct {
	Registry *macro.Registry
	cache    *lru.Cache[cacheKey, sqlast.Statement]
}

// NewRenderer returns a Renderer backed by reg (the shared macro
// registry for user-defined macros) with a bounded LRU memo table.
func NewRenderer(reg *macro.Registry) *Renderer {
	cache, err := lru.New[cacheKey, sqlast.Statement](defaultMacroCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultMacroCacheSize never is.
		panic(err)
	}
	return &Renderer{Registry: reg, cache: cache}
}

// Render executes the full pipeline for m over win with opts, returning
// the final, dialect-ready SQL statement.
func (r *Renderer) Render(m *modelmeta.Model, win Window, opts Options) (sqlast.Statement, error) {
	if m.Query == nil {
		return nil, fmt.Errorf("render: model %q has no query to render", m.Name)
	}

	macroExpanded, err := r.macroExpand(m, win, opts)
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", m.Name, err)
	}

	st := macroExpanded

	if len(opts.Expand) > 0 {
		st, err = r.expandStatement(st, win, opts)
		if err != nil {
			return nil, fmt.Errorf("render %q: expand: %w", m.Name, err)
		}
	}

	if opts.Provider != nil {
		st = rewriteTableNames(st, opts.Provider)
	}

	if m.Kind == modelmeta.KindIncrementalByTime && m.TimeColumn != nil {
		st = injectIncrementalFilter(st, m.TimeColumn, win)
	}

	st = Simplify(st)

	return st, nil
}

// macroExpand runs steps 1-3 (seed builtin vars, evaluate @DEF
// pre-statements, transform the query) and memoizes the result on
// (modelID, auditName, start, end, latest) — spec.md §4.D/§9: the cache
// covers only the macro-expansion output, since steps 4-7 depend on
// opts.Provider/opts.Expand, which can legitimately differ between
// calls sharing the same macro-expansion key.
func (r *Renderer) macroExpand(m *modelmeta.Model, win Window, opts Options) (sqlast.Statement, error) {
	key := cacheKey{
		modelID:   m.ID(),
		auditName: opts.AuditName,
		start:     win.Start.UnixNano(),
		end:       win.End.UnixNano(),
		latest:    win.Latest.UnixNano(),
	}
	if cached, ok := r.cache.Get(key); ok {
		slog.Debug("render: macro cache hit", slog.String("model", m.Name), slog.String("audit", opts.AuditName))
		return cached, nil
	}
	slog.Debug("render: macro cache miss", slog.String("model", m.Name), slog.String("audit", opts.AuditName))

	env := macro.NewEnvironment()
	seedBuiltinVars(env, win)
	for name, v := range opts.Vars {
		env.Set(name, v)
	}

	ev := macro.New(env, r.Registry, m.Dialect)

	for _, pre := range m.PreStatements {
		es, ok := pre.(*sqlast.ExprStatement)
		if !ok {
			continue
		}
		if _, ok := es.Expr.(*sqlast.MacroDef); !ok {
			continue
		}
		if _, err := ev.TransformExpr(es.Expr); err != nil {
			return nil, err
		}
	}

	out, err := ev.TransformStatement(m.Query)
	if err != nil {
		return nil, err
	}

	r.cache.Add(key, out)
	return out, nil
}
