package globals

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

func TestPreludeArithmeticDispatch(t *testing.T) {
	r := Prelude()
	intT := gtypes.Numeric(gtypes.Int)
	sig, ok := r.Dispatch(intT, "__add__")
	require.True(t, ok)
	require.Equal(t, []gtypes.Type{intT}, sig.Inputs)
	require.Equal(t, []gtypes.Type{intT}, sig.Outputs)

	_, ok = r.Dispatch(intT, "__pow__")
	require.True(t, ok)
	_, ok = r.Dispatch(gtypes.Numeric(gtypes.Nat), "__pow__")
	require.False(t, ok, "nat has no __pow__: it isn't closed under negative exponents")
}

// TestPreludeNumericDispatchDoesNotCollideAcrossKinds guards against
// Registry keying dunder methods by the bare gtypes.Kind: Nat/Int/Float all
// share KindNumeric, so a correct implementation must still keep each
// kind's __add__ returning that same kind, not whichever kind registered
// last.
func TestPreludeNumericDispatchDoesNotCollideAcrossKinds(t *testing.T) {
	r := Prelude()
	natT := gtypes.Numeric(gtypes.Nat)
	intT := gtypes.Numeric(gtypes.Int)
	floatT := gtypes.Numeric(gtypes.Float)

	for _, n := range []gtypes.Type{natT, intT, floatT} {
		sig, ok := r.Dispatch(n, "__add__")
		require.True(t, ok)
		require.Equal(t, []gtypes.Type{n}, sig.Inputs)
		require.Equal(t, []gtypes.Type{n}, sig.Outputs)
	}
}

// TestPreludeFloatCoercion exercises spec.md §4.5's numeric coercion: Nat
// and Int both expose `__float__`, Float itself does not (coercion is
// one-way and would otherwise be a pointless no-op insertion).
func TestPreludeFloatCoercion(t *testing.T) {
	r := Prelude()
	floatT := gtypes.Numeric(gtypes.Float)

	for _, n := range []gtypes.Type{gtypes.Numeric(gtypes.Nat), gtypes.Numeric(gtypes.Int)} {
		sig, ok := r.Dispatch(n, "__float__")
		require.True(t, ok)
		require.Equal(t, []gtypes.Type{floatT}, sig.Outputs)
	}
	_, ok := r.Dispatch(floatT, "__float__")
	require.False(t, ok)
}

func TestPreludeQuantumOwnership(t *testing.T) {
	r := Prelude()
	measure, ok := r.Lookup("measure")
	require.True(t, ok)
	require.Equal(t, []gtypes.Type{Qubit()}, measure.FuncInputs)
	require.Equal(t, []bool{true}, measure.FuncInputOwned)
	require.Equal(t, []gtypes.Type{gtypes.Bool()}, measure.FuncOutputs)

	cx, ok := r.Lookup("cx")
	require.True(t, ok)
	require.Equal(t, []bool{true, true}, cx.FuncInputOwned)
}

func TestPreludeGenericPair(t *testing.T) {
	r := Prelude()
	pair, ok := r.Lookup("pair")
	require.True(t, ok)
	require.Len(t, pair.FuncParams, 1)
	require.Equal(t, gtypes.ParamType, pair.FuncParams[0].Kind)
	require.True(t, pair.FuncInputs[0].Linear(), "pair's T must be instantiable at a linear type like qubit")
}

func TestRegistryMutationAfterFreezePanics(t *testing.T) {
	r := New()
	r.Freeze()
	require.Panics(t, func() {
		r.Define("x", gtypes.Bool())
	})
}

func TestRegistryStructFields(t *testing.T) {
	r := New()
	def := gtypes.DefID(7)
	fields := []check.StructField{{Name: "a", Type: gtypes.Bool()}}
	r.DefineStruct(def, fields)
	got, ok := r.StructFields(def)
	require.True(t, ok)
	require.Equal(t, fields, got)

	_, ok = r.StructFields(gtypes.DefID(99))
	require.False(t, ok)
}
