package macro

import "github.com/flowforge/flowplan/sqlast"

// Environment holds the mutable locals binding set that macro variable
// substitution and @DEF statements write into (spec.md §4.B). It does
// not hold the macro registry — that is read-only and shared across
// Evaluators, see Registry.
type Environment struct {
	locals map[string]sqlast.Expr
}

// NewEnvironment returns an empty Environment.
func NewEnvironment() *Environment {
	return &Environment{locals: make(map[string]sqlast.Expr)}
}

// Get returns the expression bound to name, if any.
func (e *Environment) Get(name string) (sqlast.Expr, bool) {
	v, ok := e.locals[name]
	return v, ok
}

// Set binds name to v, overwriting any previous binding.
func (e *Environment) Set(name string, v sqlast.Expr) {
	e.locals[name] = v
}

// Clone returns a shallow copy, used to save/restore scope around lambda
// parameter bindings so combinator iteration does not leak bindings
// (spec.md §4.B "Ordering and determinism").
func (e *Environment) Clone() *Environment {
	cp := make(map[string]sqlast.Expr, len(e.locals))
	for k, v := range e.locals {
		cp[k] = v
	}
	return &Environment{locals: cp}
}
