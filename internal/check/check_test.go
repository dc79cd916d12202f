package check

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/cfgbuild"
	"github.com/CQCL/guppy-go/internal/flowanalysis"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// stubGlobals is a minimal Globals for tests, registering just the dunder
// methods exercised by the scenarios below.
type stubGlobals struct {
	dispatch map[gtypes.Kind]map[string]FuncSig
	lookup   map[string]gtypes.Type
	structs  map[gtypes.DefID][]StructField
}

func newStubGlobals() *stubGlobals {
	intT := gtypes.Numeric(gtypes.Int)
	boolT := gtypes.Bool()
	return &stubGlobals{dispatch: map[gtypes.Kind]map[string]FuncSig{
		gtypes.KindNumeric: {
			"__add__": {Inputs: []gtypes.Type{intT}, Outputs: []gtypes.Type{intT}},
			"__lt__":  {Inputs: []gtypes.Type{intT}, Outputs: []gtypes.Type{boolT}},
		},
	}}
}

func (g *stubGlobals) Lookup(name string) (gtypes.Type, bool) {
	t, ok := g.lookup[name]
	return t, ok
}

func (g *stubGlobals) Dispatch(recv gtypes.Type, method string) (FuncSig, bool) {
	m, ok := g.dispatch[recv.Kind]
	if !ok {
		return FuncSig{}, false
	}
	sig, ok := m[method]
	return sig, ok
}

func (g *stubGlobals) StructFields(def gtypes.DefID) ([]StructField, bool) {
	if g.structs == nil {
		return nil, false
	}
	fs, ok := g.structs[def]
	return fs, ok
}

func sp(line int) ast.Span { return ast.NewSpanned("t.gpy", line, 0) }

func buildChecked(t *testing.T, stmts []ast.Stmt, numReturns int, fn FunctionSignature, g Globals) (*CheckedCFG, error) {
	t.Helper()
	cfg := cfgbuild.NewBuilder().Build(stmts, numReturns)
	flowanalysis.Liveness(cfg)
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
	}
	flowanalysis.DefiniteAssignment(cfg, names, nil)
	flowanalysis.MaybeAssignment(cfg)
	return CheckCFG(cfg, fn, sp(0), g)
}

// TestCheckSimpleAdd is spec.md §8 scenario S1.
func TestCheckSimpleAdd(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	stmts := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{
			&ast.BinOp{Op: "+", Left: ast.NewName(sp(1), "x"), Right: ast.NewName(sp(1), "y")},
		}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
		Results: []gtypes.Type{intT},
	}
	checked, err := buildChecked(t, stmts, 1, fn, newStubGlobals())
	require.NoError(t, err)
	require.NotNil(t, checked.BBs[checked.CFG.ExitBB.ID])
}

// TestCheckRowMismatchAcrossJoin exercises row reconciliation: the two
// arms of an if bind the same name to different types.
func TestCheckRowMismatchAcrossJoin(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	boolT := gtypes.Bool()
	stmts := []ast.Stmt{
		&ast.IfStmt{
			Test: ast.NewName(sp(1), "b"),
			Body: []ast.Stmt{
				&ast.AssignStmt{Targets: []ast.Expr{ast.NewName(sp(2), "v")}, Value: &ast.Constant{Kind: ast.ConstInt, Int: 1}},
			},
			Orelse: []ast.Stmt{
				&ast.AssignStmt{Targets: []ast.Expr{ast.NewName(sp(3), "v")}, Value: &ast.Constant{Kind: ast.ConstBool, Bool: true}},
			},
		},
		&ast.ReturnStmt{Values: []ast.Expr{ast.NewName(sp(4), "v")}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "b", Type: boolT}},
		Results: []gtypes.Type{intT},
	}
	_, err := buildChecked(t, stmts, 1, fn, newStubGlobals())
	require.Error(t, err)
	require.Contains(t, err.Error(), "different types")
}

// TestCheckLinearDoubleUse is spec.md §8 scenario S3: a linear value passed
// to an `@owned` parameter cannot be referenced again afterward.
func TestCheckLinearDoubleUse(t *testing.T) {
	qubit := gtypes.Opaque(1, nil, gtypes.BoundAny)
	consumeFn := gtypes.FunctionWithOwnership([]gtypes.Type{qubit}, nil, nil, []bool{true})
	g := &stubGlobals{lookup: map[string]gtypes.Type{"consume": consumeFn}}
	stmts := []ast.Stmt{
		&ast.ExprStmt{Value: ast.NewCallExpr(sp(1), ast.NewName(sp(1), "consume"), []ast.Expr{ast.NewName(sp(1), "q")})},
		&ast.ExprStmt{Value: ast.NewName(sp(2), "q")},
		&ast.ReturnStmt{},
	}
	fn := FunctionSignature{Params: []Param{{Name: "q", Type: qubit}}}
	_, err := buildChecked(t, stmts, 0, fn, g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already")
}

// TestCheckLinearBorrowedArgSurvives mirrors S3 but without @owned: the
// linear argument is borrowed, so a later reference is still valid.
func TestCheckLinearBorrowedArgSurvives(t *testing.T) {
	qubit := gtypes.Opaque(1, nil, gtypes.BoundAny)
	peekFn := gtypes.Function([]gtypes.Type{qubit}, []gtypes.Type{gtypes.Bool()}, nil)
	g := &stubGlobals{lookup: map[string]gtypes.Type{"peek": peekFn}}
	stmts := []ast.Stmt{
		&ast.AssignStmt{
			Targets: []ast.Expr{ast.NewName(sp(1), "b")},
			Value:   ast.NewCallExpr(sp(1), ast.NewName(sp(1), "peek"), []ast.Expr{ast.NewName(sp(1), "q")}),
		},
		&ast.ReturnStmt{Values: []ast.Expr{ast.NewName(sp(2), "q")}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "q", Type: qubit}},
		Results: []gtypes.Type{qubit},
	}
	_, err := buildChecked(t, stmts, 1, fn, g)
	require.NoError(t, err)
}

// TestCheckLinearConsumedOnAllPaths is spec.md §8 scenario S4: a linear
// formal consumed by a `return` on both arms of an `if` (one via an early
// return, one via fallthrough to the trailing return) type-checks.
func TestCheckLinearConsumedOnAllPaths(t *testing.T) {
	qubit := gtypes.Opaque(1, nil, gtypes.BoundAny)
	boolT := gtypes.Bool()
	stmts := []ast.Stmt{
		&ast.IfStmt{
			Test: ast.NewName(sp(1), "b"),
			Body: []ast.Stmt{
				&ast.ReturnStmt{Values: []ast.Expr{ast.NewName(sp(2), "q")}},
			},
		},
		&ast.ReturnStmt{Values: []ast.Expr{ast.NewName(sp(3), "q")}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "b", Type: boolT}, {Name: "q", Type: qubit}},
		Results: []gtypes.Type{qubit},
	}
	_, err := buildChecked(t, stmts, 1, fn, newStubGlobals())
	require.NoError(t, err)
}

// TestCheckLinearLeakOnBranch is spec.md §8 scenario S5's shape: a linear
// formal is consumed on the `if` arm but never touched on the implicit
// fallthrough `else` arm, so it leaks on that path. Row reconciliation alone
// cannot see this (liveness drops `q` from both merge-input rows once
// nothing downstream needs it — see DESIGN.md's "Linearity at successor
// edges" note), so
// this specifically exercises checkLinearSuccessor.
func TestCheckLinearLeakOnBranch(t *testing.T) {
	qubit := gtypes.Opaque(1, nil, gtypes.BoundAny)
	boolT := gtypes.Bool()
	consumeFn := gtypes.FunctionWithOwnership([]gtypes.Type{qubit}, nil, nil, []bool{true})
	g := &stubGlobals{lookup: map[string]gtypes.Type{"consume": consumeFn}}
	stmts := []ast.Stmt{
		&ast.IfStmt{
			Test: ast.NewName(sp(1), "b"),
			Body: []ast.Stmt{
				&ast.ExprStmt{Value: ast.NewCallExpr(sp(2), ast.NewName(sp(2), "consume"), []ast.Expr{ast.NewName(sp(2), "q")})},
			},
		},
		&ast.ReturnStmt{},
	}
	fn := FunctionSignature{Params: []Param{{Name: "b", Type: boolT}, {Name: "q", Type: qubit}}}
	_, err := buildChecked(t, stmts, 0, fn, g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not used on all control-flow paths")
}

// coercionGlobals distinguishes numeric kinds, unlike stubGlobals's single
// shared KindNumeric bucket: testing coercion needs Int's dispatch table
// (which has `__float__` but no `__mul__`) to differ from Float's.
type coercionGlobals struct{}

func (coercionGlobals) Lookup(name string) (gtypes.Type, bool) { return gtypes.Type{}, false }

func (coercionGlobals) Dispatch(recv gtypes.Type, method string) (FuncSig, bool) {
	if recv.Kind != gtypes.KindNumeric {
		return FuncSig{}, false
	}
	floatT := gtypes.Numeric(gtypes.Float)
	switch recv.Numeric {
	case gtypes.Int:
		if method == "__float__" {
			return FuncSig{Outputs: []gtypes.Type{floatT}}, true
		}
	case gtypes.Float:
		if method == "__mul__" {
			return FuncSig{Inputs: []gtypes.Type{floatT}, Outputs: []gtypes.Type{floatT}}, true
		}
	}
	return FuncSig{}, false
}

func (coercionGlobals) StructFields(def gtypes.DefID) ([]StructField, bool) { return nil, false }

// TestCheckNumericCoercionBinOp is spec.md §8 scenario S6: `x: int, y:
// float, return x * y` is accepted, and the checker rewrites the `int`
// operand in place into a call to its `__float__` method rather than just
// approving the mismatch via assignableWithCoercion.
func TestCheckNumericCoercionBinOp(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	floatT := gtypes.Numeric(gtypes.Float)
	binOp := &ast.BinOp{Op: "*", Left: ast.NewName(sp(1), "x"), Right: ast.NewName(sp(1), "y")}
	stmts := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{binOp}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "x", Type: intT}, {Name: "y", Type: floatT}},
		Results: []gtypes.Type{floatT},
	}
	checked, err := buildChecked(t, stmts, 1, fn, coercionGlobals{})
	require.NoError(t, err)

	// The CFG builder flattens the return value into a fresh BinOp inside
	// the `%ret_0 = ...` assignment; that copy is the node the checker rewrites.
	assign, ok := checked.CFG.EntryBB.Statements[0].(*ast.AssignStmt)
	require.True(t, ok)
	binOp, ok = assign.Value.(*ast.BinOp)
	require.True(t, ok)
	call, ok := binOp.Left.(*ast.CallExpr)
	require.True(t, ok, "checker must rewrite the narrower operand into a __float__ call")
	attr, ok := call.Func.(*ast.AttributeExpr)
	require.True(t, ok)
	require.Equal(t, "__float__", attr.Attr)
	require.Empty(t, call.Args)
}

// TestCheckStructUnpackTransfersOwnership exercises checkStructUnpack: a
// struct with a linear field is unpacked into two names, and the field's
// ownership transfers to the new binding, not the struct value itself.
func TestCheckStructUnpackTransfersOwnership(t *testing.T) {
	qubit := gtypes.Opaque(1, nil, gtypes.BoundAny)
	pairDef := gtypes.DefID(7)
	pairT := gtypes.Struct(pairDef, nil, gtypes.BoundAny)
	g := &stubGlobals{structs: map[gtypes.DefID][]StructField{
		pairDef: {{Name: "a", Type: qubit}, {Name: "b", Type: qubit}},
	}}
	stmts := []ast.Stmt{
		&ast.AssignStmt{
			Targets: []ast.Expr{ast.NewTupleExpr(sp(1), []ast.Expr{ast.NewName(sp(1), "a"), ast.NewName(sp(1), "b")})},
			Value:   ast.NewName(sp(1), "p"),
		},
		&ast.ReturnStmt{Values: []ast.Expr{ast.NewName(sp(2), "a"), ast.NewName(sp(2), "b")}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "p", Type: pairT}},
		Results: []gtypes.Type{qubit, qubit},
	}
	_, err := buildChecked(t, stmts, 2, fn, g)
	require.NoError(t, err)
}

// TestCheckGenericInstantiation exercises §4.5's "synthesize arguments,
// then unify to produce an instantiation": a generic `pair[T](a, b) ->
// (T, T)` is called at `int`, and the result type is substituted to
// `(int, int)`.
func TestCheckGenericInstantiation(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	tv := gtypes.Var(0, gtypes.BoundAny)
	params := []gtypes.Parameter{{Name: "T", Kind: gtypes.ParamType, Bound: gtypes.BoundAny}}
	pairFn := gtypes.FunctionWithOwnership([]gtypes.Type{tv, tv}, []gtypes.Type{gtypes.Tuple(tv, tv)}, params, []bool{true, true})
	g := &stubGlobals{lookup: map[string]gtypes.Type{"pair": pairFn}}
	stmts := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{
			ast.NewCallExpr(sp(1), ast.NewName(sp(1), "pair"), []ast.Expr{ast.NewName(sp(1), "x"), ast.NewName(sp(1), "y")}),
		}},
	}
	fn := FunctionSignature{
		Params:  []Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
		Results: []gtypes.Type{gtypes.Tuple(intT, intT)},
	}
	_, err := buildChecked(t, stmts, 1, fn, g)
	require.NoError(t, err)
}

// TestCheckGenericInstantiationMismatch rejects a call where the two
// arguments bound to the same type variable disagree.
func TestCheckGenericInstantiationMismatch(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	boolT := gtypes.Bool()
	tv := gtypes.Var(0, gtypes.BoundAny)
	params := []gtypes.Parameter{{Name: "T", Kind: gtypes.ParamType, Bound: gtypes.BoundAny}}
	pairFn := gtypes.FunctionWithOwnership([]gtypes.Type{tv, tv}, []gtypes.Type{gtypes.Tuple(tv, tv)}, params, []bool{true, true})
	g := &stubGlobals{lookup: map[string]gtypes.Type{"pair": pairFn}}
	stmts := []ast.Stmt{
		&ast.ExprStmt{Value: ast.NewCallExpr(sp(1), ast.NewName(sp(1), "pair"), []ast.Expr{ast.NewName(sp(1), "x"), ast.NewName(sp(1), "y")})},
		&ast.ReturnStmt{},
	}
	fn := FunctionSignature{Params: []Param{{Name: "x", Type: intT}, {Name: "y", Type: boolT}}}
	_, err := buildChecked(t, stmts, 0, fn, g)
	require.Error(t, err)
}

// TestCheckStructUnpackArityMismatch rejects unpacking into the wrong
// number of targets, since a partial bind would leave a linear field
// unaccounted for.
func TestCheckStructUnpackArityMismatch(t *testing.T) {
	qubit := gtypes.Opaque(1, nil, gtypes.BoundAny)
	pairDef := gtypes.DefID(7)
	pairT := gtypes.Struct(pairDef, nil, gtypes.BoundAny)
	g := &stubGlobals{structs: map[gtypes.DefID][]StructField{
		pairDef: {{Name: "a", Type: qubit}, {Name: "b", Type: qubit}},
	}}
	stmts := []ast.Stmt{
		&ast.AssignStmt{
			Targets: []ast.Expr{ast.NewTupleExpr(sp(1), []ast.Expr{ast.NewName(sp(1), "a")})},
			Value:   ast.NewName(sp(1), "p"),
		},
		&ast.ReturnStmt{},
	}
	fn := FunctionSignature{Params: []Param{{Name: "p", Type: pairT}}}
	_, err := buildChecked(t, stmts, 0, fn, g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "field(s)")
}
