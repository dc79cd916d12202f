// Package gtypes implements Guppy's type system: the tagged Type variant,
// the Eq/Copyable/Any bound lattice that linearity is derived from, and
// Parameter/Argument for generics. Grounded on
// _examples/original_source/guppylang/definition/ty.py and
// _examples/original_source/guppy/hugr/tys.py.
package gtypes

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Bound is the upper bound a type carries. Linearity (spec.md §3) is
// derived from it: a type is linear iff its Bound is not Copyable (nor Eq,
// which is strictly stronger than Copyable).
type Bound uint8

const (
	// BoundEq types support equality comparison and are copyable.
	BoundEq Bound = iota
	// BoundCopyable types may be freely duplicated or dropped but don't
	// necessarily support equality (e.g. float).
	BoundCopyable
	// BoundAny types carry no guarantee; values must be consumed exactly
	// once (qubit-like resources).
	BoundAny
)

// Linear reports whether a value of this bound must be used exactly once.
func (b Bound) Linear() bool { return b == BoundAny }

func (b Bound) String() string {
	switch b {
	case BoundEq:
		return "Eq"
	case BoundCopyable:
		return "Copyable"
	case BoundAny:
		return "Any"
	default:
		return fmt.Sprintf("Bound(%d)", uint8(b))
	}
}

// NumericKind distinguishes Guppy's built-in numeric kinds.
type NumericKind uint8

const (
	Nat NumericKind = iota + 1
	Int
	Float
)

func (k NumericKind) String() string {
	switch k {
	case Nat:
		return "nat"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "numeric?"
	}
}

// DefID identifies a struct or opaque-type definition registered in Globals.
type DefID int

// Kind tags the variant a Type holds.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindNumeric
	KindNone
	KindTuple
	KindFunction
	KindStruct
	KindOpaque
	KindArray
	KindVar
)

// Parameter is a type- or constant-level formal of a generic definition.
type Parameter struct {
	Name string
	Kind ParamKind
	// Bound constrains a type parameter's instantiations; ignored for
	// non-type parameter kinds.
	Bound Bound
}

// ParamKind distinguishes the three parameter kinds spec.md §3 names.
type ParamKind uint8

const (
	ParamType ParamKind = iota + 1
	ParamBoundedNat
	ParamOpaque
)

// Argument instantiates a Parameter at a call or construction site.
type Argument struct {
	Kind  ParamKind
	Type  Type  // valid when Kind == ParamType or ParamOpaque
	Const int64 // valid when Kind == ParamBoundedNat
}

// Const is a constant-level value, e.g. an array length.
type Const struct {
	// Known is false for a not-yet-resolved length (generic array length
	// parameter); Value is meaningless in that case.
	Known bool
	Value int64
}

// Type is Guppy's tagged type variant (spec.md §3). Exactly one of the
// payload fields is meaningful, selected by Kind.
type Type struct {
	Kind  Kind
	bound Bound

	Numeric NumericKind

	Tuple []Type

	FuncInputs  []Type
	FuncOutputs []Type
	FuncParams  []Parameter
	// FuncInputOwned marks, per input, whether the parameter was declared
	// `@owned`. A nil entry (or index past the end) means borrowed, matching
	// the surface default.
	FuncInputOwned []bool

	StructDef  DefID
	OpaqueDef  DefID
	DefArgs    []Argument

	ArrayElem *Type
	ArrayLen  Const

	VarIndex int
	VarBound Bound
}

// Bound returns the type's upper bound.
func (t Type) Bound() Bound { return t.bound }

// gobType mirrors Type with bound exported, so globals/cache.go's gob+s2
// registry snapshot round-trips the bound lattice correctly; gob otherwise
// silently drops unexported fields.
type gobType struct {
	Kind  Kind
	Bound Bound

	Numeric NumericKind

	Tuple []Type

	FuncInputs     []Type
	FuncOutputs    []Type
	FuncParams     []Parameter
	FuncInputOwned []bool

	StructDef DefID
	OpaqueDef DefID
	DefArgs   []Argument

	ArrayElem *Type
	ArrayLen  Const

	VarIndex int
	VarBound Bound
}

// GobEncode implements gob.GobEncoder, exporting the unexported bound field.
func (t Type) GobEncode() ([]byte, error) {
	g := gobType{
		Kind: t.Kind, Bound: t.bound, Numeric: t.Numeric, Tuple: t.Tuple,
		FuncInputs: t.FuncInputs, FuncOutputs: t.FuncOutputs, FuncParams: t.FuncParams, FuncInputOwned: t.FuncInputOwned,
		StructDef: t.StructDef, OpaqueDef: t.OpaqueDef, DefArgs: t.DefArgs,
		ArrayElem: t.ArrayElem, ArrayLen: t.ArrayLen,
		VarIndex: t.VarIndex, VarBound: t.VarBound,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (t *Type) GobDecode(data []byte) error {
	var g gobType
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	*t = Type{
		Kind: g.Kind, bound: g.Bound, Numeric: g.Numeric, Tuple: g.Tuple,
		FuncInputs: g.FuncInputs, FuncOutputs: g.FuncOutputs, FuncParams: g.FuncParams, FuncInputOwned: g.FuncInputOwned,
		StructDef: g.StructDef, OpaqueDef: g.OpaqueDef, DefArgs: g.DefArgs,
		ArrayElem: g.ArrayElem, ArrayLen: g.ArrayLen,
		VarIndex: g.VarIndex, VarBound: g.VarBound,
	}
	return nil
}

// Linear reports whether values of this type must be consumed exactly once.
func (t Type) Linear() bool { return t.bound.Linear() }

// Bool is Guppy's builtin boolean type (Eq, copyable).
func Bool() Type { return Type{Kind: KindBool, bound: BoundEq} }

// Numeric constructs a numeric type of the given kind. Float is only
// Copyable (no total equality); Nat/Int are Eq.
func Numeric(kind NumericKind) Type {
	b := BoundEq
	if kind == Float {
		b = BoundCopyable
	}
	return Type{Kind: KindNumeric, bound: b, Numeric: kind}
}

// None is the unit type, returned by functions with no results.
func None() Type { return Type{Kind: KindNone, bound: BoundEq} }

// Tuple builds a product type. Its bound is the weakest (most permissive)
// bound among its elements, since unpacking a tuple must respect the
// linearity of whichever element is linear.
func Tuple(elems ...Type) Type {
	b := BoundEq
	for _, e := range elems {
		if e.bound > b {
			b = e.bound
		}
	}
	return Type{Kind: KindTuple, bound: b, Tuple: elems}
}

// Function builds a function type. Function values are always Copyable
// (closures over linear state are rejected earlier, at definition time).
// No input is owned; use FunctionWithOwnership for a signature that
// declares `@owned` parameters.
func Function(inputs, outputs []Type, params []Parameter) Type {
	return Type{Kind: KindFunction, bound: BoundCopyable, FuncInputs: inputs, FuncOutputs: outputs, FuncParams: params}
}

// FunctionWithOwnership builds a function type whose parameters carry
// per-index `@owned` markers (spec.md §3's "explicit @owned marker
// post-fixed on parameter types, lowered to a per-parameter boolean").
func FunctionWithOwnership(inputs, outputs []Type, params []Parameter, owned []bool) Type {
	t := Function(inputs, outputs, params)
	t.FuncInputOwned = owned
	return t
}

// Struct builds a nominal struct type with the given bound (computed by the
// registry at definition time from the bounds of its fields).
func Struct(def DefID, args []Argument, bound Bound) Type {
	return Type{Kind: KindStruct, bound: bound, StructDef: def, DefArgs: args}
}

// Opaque builds an externally-defined type (e.g. qubit) with the given
// bound, as declared by its prelude registration.
func Opaque(def DefID, args []Argument, bound Bound) Type {
	return Type{Kind: KindOpaque, bound: bound, OpaqueDef: def, DefArgs: args}
}

// Array builds a fixed-length array type. Arrays of a linear element are
// themselves linear.
func Array(elem Type, length Const) Type {
	e := elem
	return Type{Kind: KindArray, bound: elem.bound, ArrayElem: &e, ArrayLen: length}
}

// Var builds a generic type variable reference.
func Var(index int, bound Bound) Type {
	return Type{Kind: KindVar, bound: bound, VarIndex: index, VarBound: bound}
}

// Equal reports structural equality, per spec.md §3 ("Equality is
// structural").
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool, KindNone:
		return true
	case KindNumeric:
		return a.Numeric == b.Numeric
	case KindTuple:
		return equalTypeSlices(a.Tuple, b.Tuple)
	case KindFunction:
		return equalTypeSlices(a.FuncInputs, b.FuncInputs) &&
			equalTypeSlices(a.FuncOutputs, b.FuncOutputs) &&
			len(a.FuncParams) == len(b.FuncParams)
	case KindStruct:
		return a.StructDef == b.StructDef && equalArgSlices(a.DefArgs, b.DefArgs)
	case KindOpaque:
		return a.OpaqueDef == b.OpaqueDef && equalArgSlices(a.DefArgs, b.DefArgs)
	case KindArray:
		return Equal(*a.ArrayElem, *b.ArrayElem) && a.ArrayLen == b.ArrayLen
	case KindVar:
		return a.VarIndex == b.VarIndex
	default:
		return false
	}
}

func equalTypeSlices(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalArgSlices(a, b []Argument) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Const != b[i].Const {
			return false
		}
		if a[i].Kind != ParamBoundedNat && !Equal(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindNumeric:
		return t.Numeric.String()
	case KindNone:
		return "None"
	case KindTuple:
		s := "("
		for i, e := range t.Tuple {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + ")"
	case KindFunction:
		s := "Callable[["
		for i, in := range t.FuncInputs {
			if i > 0 {
				s += ", "
			}
			s += in.String()
		}
		s += "], "
		if len(t.FuncOutputs) == 1 {
			s += t.FuncOutputs[0].String()
		} else {
			s += Type{Kind: KindTuple, Tuple: t.FuncOutputs}.String()
		}
		return s + "]"
	case KindArray:
		return fmt.Sprintf("array[%s, %s]", t.ArrayElem.String(), t.ArrayLen.String())
	case KindStruct:
		return fmt.Sprintf("struct#%d", t.StructDef)
	case KindOpaque:
		return fmt.Sprintf("opaque#%d", t.OpaqueDef)
	case KindVar:
		return fmt.Sprintf("T%d", t.VarIndex)
	default:
		return "?"
	}
}

// String renders a constant length, or "?" if unknown (generic).
func (c Const) String() string {
	if !c.Known {
		return "?"
	}
	return fmt.Sprintf("%d", c.Value)
}

// Substitute replaces every KindVar occurrence in t whose VarIndex is bound
// in subst with its instantiation (spec.md §4.5's "call sites synthesize
// arguments, then unify to produce an instantiation"). Types with no Var
// underneath are returned unchanged.
func Substitute(t Type, subst map[int]Type) Type {
	switch t.Kind {
	case KindVar:
		if repl, ok := subst[t.VarIndex]; ok {
			return repl
		}
		return t
	case KindTuple:
		return Tuple(substituteSlice(t.Tuple, subst)...)
	case KindFunction:
		nt := t
		nt.FuncInputs = substituteSlice(t.FuncInputs, subst)
		nt.FuncOutputs = substituteSlice(t.FuncOutputs, subst)
		return nt
	case KindArray:
		elem := Substitute(*t.ArrayElem, subst)
		return Array(elem, t.ArrayLen)
	case KindStruct, KindOpaque:
		nt := t
		nt.DefArgs = make([]Argument, len(t.DefArgs))
		for i, a := range t.DefArgs {
			nt.DefArgs[i] = a
			if a.Kind == ParamType || a.Kind == ParamOpaque {
				nt.DefArgs[i].Type = Substitute(a.Type, subst)
			}
		}
		return nt
	default:
		return t
	}
}

func substituteSlice(ts []Type, subst map[int]Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Substitute(t, subst)
	}
	return out
}

// Unify walks template (a type possibly containing KindVar references)
// against actual (a concrete type produced by synthesis), extending subst
// with any new Var bindings. It reports false on a structural mismatch or on
// a Var that would have to bind to two different types (spec.md §4.5).
func Unify(template, actual Type, subst map[int]Type) bool {
	if template.Kind == KindVar {
		if bound, ok := subst[template.VarIndex]; ok {
			return Equal(bound, actual)
		}
		subst[template.VarIndex] = actual
		return true
	}
	if template.Kind != actual.Kind {
		return false
	}
	switch template.Kind {
	case KindTuple:
		if len(template.Tuple) != len(actual.Tuple) {
			return false
		}
		for i := range template.Tuple {
			if !Unify(template.Tuple[i], actual.Tuple[i], subst) {
				return false
			}
		}
		return true
	case KindArray:
		if template.ArrayLen.Known && actual.ArrayLen.Known && template.ArrayLen.Value != actual.ArrayLen.Value {
			return false
		}
		return Unify(*template.ArrayElem, *actual.ArrayElem, subst)
	default:
		return Equal(template, actual)
	}
}
