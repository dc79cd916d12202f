package globals

import (
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// QubitDef is the registered definition id of the builtin qubit-like
// resource type (spec.md §8's S3/S4/S5 scenarios all use it). It is the
// only opaque type the prelude itself defines; extension modules would
// register further DefIDs starting above it.
const QubitDef gtypes.DefID = 1

// Qubit is the builtin linear resource type: Any-bounded, so every value
// must be consumed exactly once along every control-flow path (spec.md §3).
func Qubit() gtypes.Type { return gtypes.Opaque(QubitDef, nil, gtypes.BoundAny) }

// Prelude builds and freezes the registry of built-in arithmetic and
// quantum primitives spec.md §1 treats as an external, narrow-interface
// dependency: numeric/bool dunder dispatch tables for operator resolution,
// and a handful of quantum gate functions exercising the linear type
// system end to end.
func Prelude() *Registry {
	r := New()
	registerNumeric(r, gtypes.Nat)
	registerNumeric(r, gtypes.Int)
	registerNumeric(r, gtypes.Float)
	registerBool(r)
	registerQuantum(r)
	r.Freeze()
	return r
}

// registerNumeric registers the arithmetic and comparison dunders for one
// numeric kind (spec.md §4.5's "resolve via __iadd__ / __add__" dispatch,
// and the augmented-assignment fallback check.checkAugAssign implements).
func registerNumeric(r *Registry, kind gtypes.NumericKind) {
	n := gtypes.Numeric(kind)
	boolT := gtypes.Bool()
	binary := func(name string, out gtypes.Type) {
		r.DefineMethod(n, name, check.FuncSig{Inputs: []gtypes.Type{n}, Outputs: []gtypes.Type{out}})
	}
	for _, op := range []string{"__add__", "__sub__", "__mul__", "__floordiv__", "__mod__"} {
		binary(op, n)
	}
	if kind != gtypes.Nat {
		binary("__pow__", n)
	}
	binary("__truediv__", gtypes.Numeric(gtypes.Float))
	for _, op := range []string{"__lt__", "__le__", "__gt__", "__ge__", "__eq__"} {
		binary(op, boolT)
	}
	if kind == gtypes.Int {
		for _, op := range []string{"__and__", "__or__", "__xor__", "__lshift__", "__rshift__"} {
			binary(op, n)
		}
	}
	r.DefineMethod(n, "__neg__", check.FuncSig{Outputs: []gtypes.Type{n}})
	r.DefineMethod(n, "__bool__", check.FuncSig{Outputs: []gtypes.Type{boolT}})
	if kind != gtypes.Float {
		// Widening coercion (spec.md §4.5): the checker inserts a call to
		// this when a Nat/Int operand meets a Float sibling in a binop.
		r.DefineMethod(n, "__float__", check.FuncSig{Outputs: []gtypes.Type{gtypes.Numeric(gtypes.Float)}})
	}
}

func registerBool(r *Registry) {
	boolT := gtypes.Bool()
	r.DefineMethod(boolT, "__bool__", check.FuncSig{Outputs: []gtypes.Type{boolT}})
}

// registerQuantum registers a minimal quantum gate set as top-level
// functions over the linear Qubit type: single-qubit gates consume and
// return a qubit (the surface's usual "threading" idiom for linear
// resources), measure consumes a qubit and yields a classical bool, and cx
// takes two owned qubits and returns both, entangled.
func registerQuantum(r *Registry) {
	qubit := Qubit()
	boolT := gtypes.Bool()

	r.Define("qubit", gtypes.Function(nil, []gtypes.Type{qubit}, nil))

	gate1 := gtypes.FunctionWithOwnership([]gtypes.Type{qubit}, []gtypes.Type{qubit}, nil, []bool{true})
	for _, name := range []string{"h", "x", "y", "z"} {
		r.Define(name, gate1)
	}

	r.Define("measure", gtypes.FunctionWithOwnership([]gtypes.Type{qubit}, []gtypes.Type{boolT}, nil, []bool{true}))

	r.Define("cx", gtypes.FunctionWithOwnership(
		[]gtypes.Type{qubit, qubit},
		[]gtypes.Type{qubit, qubit},
		nil, []bool{true, true},
	))

	registerGenerics(r)
}

// registerGenerics registers the handful of generic prelude functions
// spec.md §4.5 requires call sites to instantiate via unification. `pair`
// works over any bound (including linear resources, hence the `@owned`
// markers on both parameters) and is the smallest signature that forces the
// same type variable to unify twice, so a mismatched pair of argument types
// is rejected before the checker ever looks at the (already-substituted)
// output tuple.
func registerGenerics(r *Registry) {
	t := gtypes.Var(0, gtypes.BoundAny)
	params := []gtypes.Parameter{{Name: "T", Kind: gtypes.ParamType, Bound: gtypes.BoundAny}}
	r.Define("pair", gtypes.FunctionWithOwnership(
		[]gtypes.Type{t, t},
		[]gtypes.Type{gtypes.Tuple(t, t)},
		params,
		[]bool{true, true},
	))
}
