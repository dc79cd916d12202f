package check

import (
	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// Variable is one binding in a BB's local context (spec.md §4.5 point 1:
// "(type, defined_at, used=None)").
type Variable struct {
	Name      string
	Type      gtypes.Type
	DefinedAt ast.Span
	// Used is nil until a linear variable is consumed; set to the
	// consuming node's span so a second use can point back at the first
	// (spec.md §4.6).
	Used *ast.Span
}

// RowEntry is the externally-visible half of a Variable (its type and
// definition site), the unit row reconciliation compares pointwise (spec.md
// §4.7).
type RowEntry struct {
	Type      gtypes.Type
	DefinedAt ast.Span
}

// Row is a BB's input or output row: the set of live variable bindings
// crossing a CFG edge.
type Row map[string]RowEntry

// Context is the local type/linearity state threaded through one BB's
// statements (spec.md §4.5 point 1).
type Context struct {
	globals Globals
	vars    map[string]*Variable
	// maybeAssigned is this BB's Vars.MaybeAssignedBefore, consulted only to
	// pick the wording of a not-defined diagnostic (spec.md §7:
	// "distinguished from 'never assigned' by the maybe-assignment result").
	maybeAssigned map[string]bool
}

func newContext(g Globals, input Row, maybeAssigned map[string]bool) *Context {
	ctx := &Context{globals: g, vars: make(map[string]*Variable, len(input)), maybeAssigned: maybeAssigned}
	for name, entry := range input {
		ctx.vars[name] = &Variable{Name: name, Type: entry.Type, DefinedAt: entry.DefinedAt}
	}
	return ctx
}

func (c *Context) lookup(name string) (*Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

func (c *Context) bind(name string, typ gtypes.Type, at ast.Span) {
	c.vars[name] = &Variable{Name: name, Type: typ, DefinedAt: at}
}

// row projects the context down to the names in scope, typed by the
// context — the output row for an edge where `scope` is live_before the
// successor (spec.md §4.5 point 4).
func (c *Context) row(scope map[string]bool) Row {
	row := make(Row, len(scope))
	for name := range scope {
		if v, ok := c.vars[name]; ok {
			row[name] = RowEntry{Type: v.Type, DefinedAt: v.DefinedAt}
		}
	}
	return row
}
