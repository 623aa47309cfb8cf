// Package eval implements the recursive expression evaluator for
// AIR/CIR/EIR expression trees.
package eval

import "github.com/layeredvm/layeredvm/ir/value"

// Environment is a lexical scope chain for `let`/`lambda`-bound variables.
// It is distinct from node-id bindings (populated by the expression-node
// prepass) and from ref cells (the one mutable, identity-bearing store).
type Environment struct {
	vars   map[string]value.Value
	parent *Environment
}

// NewEnvironment creates an empty root environment.
func NewEnvironment() *Environment {
	return &Environment{vars: map[string]value.Value{}}
}

// Extend returns a child scope with name bound to val, leaving the
// receiver (and any other live reference to it) unchanged.
func (e *Environment) Extend(name string, val value.Value) *Environment {
	return &Environment{vars: map[string]value.Value{name: val}, parent: e}
}

// Lookup walks the scope chain outward from e.
func (e *Environment) Lookup(name string) (value.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// Bind mutates the innermost frame directly; used only for the `fix`
// self-binding cell (populated before the first evaluation of the body),
// never for ordinary `let`, which always extends immutably.
func (e *Environment) Bind(name string, val value.Value) {
	e.vars[name] = val
}
