// Package check implements the Type Checker and Linearity Checker (spec.md
// §4.5–§4.6), integrated into one BFS traversal of the CFG, plus Row
// Reconciliation at join points (§4.7). Grounded on
// original_source/guppy/checker/cfg_checker.py's check_cfg/check_bb/
// check_rows_match, and on the per-node dispatch idiom of
// _examples/uber-go-nilaway/assertion/function/assertiontree/backprop.go.
package check

import "github.com/CQCL/guppy-go/internal/gtypes"

// FuncSig is a callable signature as seen by the checker: parameter types in
// order, each with an ownership flag (spec.md §4.6's `@owned` annotation),
// and result types.
type FuncSig struct {
	Inputs     []gtypes.Type
	InputOwned []bool
	Outputs    []gtypes.Type
	Params     []gtypes.Parameter
}

// StructField is one field of a registered struct definition, in
// declaration order (spec.md §4.6's "struct fields" unpacking rule).
type StructField struct {
	Name string
	Type gtypes.Type
}

// Globals is the read-only, frozen registry the checker consults: top-level
// names (functions, prelude constants), instance-method dispatch tables for
// operator/dunder resolution, and struct field layouts. Implemented by
// package globals; declared here as an interface so check has no import
// dependency on how the registry is populated or cached.
type Globals interface {
	// Lookup resolves a bare top-level name (a function or prelude value).
	Lookup(name string) (gtypes.Type, bool)
	// Dispatch resolves `recv.method(...)` by the static type of recv,
	// spec.md §4.5's "dispatch by the static type of x".
	Dispatch(recv gtypes.Type, method string) (FuncSig, bool)
	// StructFields returns a struct definition's fields in declaration
	// order, or ok=false if def does not name a struct.
	StructFields(def gtypes.DefID) ([]StructField, bool)
}
