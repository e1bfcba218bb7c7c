package macro

import (
	"strings"

	"github.com/flowforge/flowplan/sqlast"
)

// Func is the fixed signature user-supplied and built-in macros are
// exposed as (spec.md §9 "Dynamic user macros"): the result is nil to
// delete the node, a single sqlast.Expr to replace it, or []sqlast.Expr
// to splice a list of nodes in its place.
type Func func(ev *Evaluator, args []sqlast.Expr) (any, error)

// Registry holds user-registered macro functions, keyed
// case-insensitively. EACH/REDUCE/FILTER and the clause macros are
// handled natively by the Evaluator and are not present here.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds or replaces a macro function under name.
func (r *Registry) Register(name string, f Func) {
	r.funcs[strings.ToUpper(name)] = f
}

func (r *Registry) lookup(name string) (Func, bool) {
	f, ok := r.funcs[strings.ToUpper(name)]
	return f, ok
}
