// Package globals implements the Prelude registry (spec.md §4.5, §5, §9):
// the process-wide, read-only table of top-level names and instance-method
// dispatch tables the checker consults. Grounded on
// _examples/uber-go-nilaway/util/orderedmap (deterministic iteration, no
// mutable singleton) and on nilaway's own `annotation.Map`-style site lookup
// shape; the gob+s2 cache in cache.go mirrors
// _examples/uber-go-nilaway/inference/inferred_map.go's GobEncode/GobDecode.
package globals

import (
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/gtypes"
	"github.com/CQCL/guppy-go/internal/orderedmap"
)

// dispatchKey is the method-table key. Kind alone is too coarse: KindNumeric
// covers nat/int/float, and KindStruct/KindOpaque cover every definition of
// that variant, so two Registry.DefineMethod calls for the same Kind but
// different Numeric/DefID would otherwise silently overwrite one another's
// dunder signatures.
// Exported fields so gob (cache.go) can encode the method table without a
// custom codec.
type dispatchKey struct {
	Kind    gtypes.Kind
	Numeric gtypes.NumericKind
	Def     gtypes.DefID
}

func keyFor(t gtypes.Type) dispatchKey {
	k := dispatchKey{Kind: t.Kind}
	switch t.Kind {
	case gtypes.KindNumeric:
		k.Numeric = t.Numeric
	case gtypes.KindStruct:
		k.Def = t.StructDef
	case gtypes.KindOpaque:
		k.Def = t.OpaqueDef
	}
	return k
}

// Registry is the concrete check.Globals implementation: a registry of
// top-level names, per-type instance-method dispatch tables, and struct
// field layouts. It is built up with Define/DefineMethod/DefineStruct during
// module construction and then Frozen, matching spec.md §5's "mutated only
// during module construction ... treated as immutable once compilation
// starts".
type Registry struct {
	names   *orderedmap.Map[string, gtypes.Type]
	methods *orderedmap.Map[dispatchKey, *orderedmap.Map[string, check.FuncSig]]
	structs *orderedmap.Map[gtypes.DefID, []check.StructField]
	frozen  bool
}

// New creates an empty, unfrozen Registry.
func New() *Registry {
	return &Registry{
		names:   orderedmap.New[string, gtypes.Type](),
		methods: orderedmap.New[dispatchKey, *orderedmap.Map[string, check.FuncSig]](),
		structs: orderedmap.New[gtypes.DefID, []check.StructField](),
	}
}

// Define registers a top-level name (a prelude function or constant).
// Panics if called after Freeze, since that would violate the "immutable
// once compilation starts" invariant.
func (r *Registry) Define(name string, t gtypes.Type) {
	r.mustBeMutable()
	r.names.Store(name, t)
}

// DefineMethod registers the signature dispatched for recv.method, e.g. the
// `__add__` resolved for a numeric BinOp (spec.md §4.5's "dispatch by the
// static type of x"). recv need only carry enough of its Type to distinguish
// it from siblings sharing its Kind (its Numeric kind, or its Struct/Opaque
// DefID); other fields are ignored.
func (r *Registry) DefineMethod(recv gtypes.Type, method string, sig check.FuncSig) {
	r.mustBeMutable()
	key := keyFor(recv)
	table, ok := r.methods.Get(key)
	if !ok {
		table = orderedmap.New[string, check.FuncSig]()
		r.methods.Store(key, table)
	}
	table.Store(method, sig)
}

// DefineStruct registers a struct definition's fields in declaration order.
func (r *Registry) DefineStruct(def gtypes.DefID, fields []check.StructField) {
	r.mustBeMutable()
	r.structs.Store(def, fields)
}

// Freeze stops further mutation. Compilation must not start before this is
// called (spec.md §5).
func (r *Registry) Freeze() { r.frozen = true }

func (r *Registry) mustBeMutable() {
	if r.frozen {
		panic("globals: registry mutated after Freeze")
	}
}

// Lookup implements check.Globals.
func (r *Registry) Lookup(name string) (gtypes.Type, bool) {
	return r.names.Get(name)
}

// Dispatch implements check.Globals.
func (r *Registry) Dispatch(recv gtypes.Type, method string) (check.FuncSig, bool) {
	table, ok := r.methods.Get(keyFor(recv))
	if !ok {
		return check.FuncSig{}, false
	}
	return table.Get(method)
}

// StructFields implements check.Globals.
func (r *Registry) StructFields(def gtypes.DefID) ([]check.StructField, bool) {
	return r.structs.Get(def)
}

var _ check.Globals = (*Registry)(nil)
