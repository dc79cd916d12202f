package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/cfgbuild"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/flowanalysis"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// testGlobals is a minimal check.Globals for lowering tests, registering
// just the dunder methods the scenarios below exercise.
type testGlobals struct {
	dispatch map[gtypes.Kind]map[string]check.FuncSig
	lookup   map[string]gtypes.Type
}

func newTestGlobals() *testGlobals {
	intT := gtypes.Numeric(gtypes.Int)
	boolT := gtypes.Bool()
	return &testGlobals{dispatch: map[gtypes.Kind]map[string]check.FuncSig{
		gtypes.KindNumeric: {
			"__add__": {Inputs: []gtypes.Type{intT}, Outputs: []gtypes.Type{intT}},
			"__lt__":  {Inputs: []gtypes.Type{intT}, Outputs: []gtypes.Type{boolT}},
		},
	}}
}

func (g *testGlobals) Lookup(name string) (gtypes.Type, bool) {
	t, ok := g.lookup[name]
	return t, ok
}

func (g *testGlobals) Dispatch(recv gtypes.Type, method string) (check.FuncSig, bool) {
	m, ok := g.dispatch[recv.Kind]
	if !ok {
		return check.FuncSig{}, false
	}
	sig, ok := m[method]
	return sig, ok
}

func (g *testGlobals) StructFields(def gtypes.DefID) ([]check.StructField, bool) {
	return nil, false
}

func sp(line int) ast.Span { return ast.NewSpanned("t.gpy", line, 0) }

func name(line int, ident string) *ast.Name { return ast.NewName(sp(line), ident) }

func buildChecked(t *testing.T, stmts []ast.Stmt, numReturns int, fn check.FunctionSignature, g check.Globals) *check.CheckedCFG {
	t.Helper()
	cfg := cfgbuild.NewBuilder().Build(stmts, numReturns)
	flowanalysis.Liveness(cfg)
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
	}
	flowanalysis.DefiniteAssignment(cfg, names, nil)
	flowanalysis.MaybeAssignment(cfg)
	checked, err := check.CheckCFG(cfg, fn, sp(0), g)
	require.NoError(t, err)
	return checked
}

// countKind walks n and its descendants, counting nodes of kind k.
func countKind(n *Node, k NodeKind) int {
	count := 0
	if n.Kind == k {
		count++
	}
	for _, c := range n.Children {
		count += countKind(c, k)
	}
	return count
}

func findLabel(n *Node, label string) *Node {
	if n.Label == label {
		return n
	}
	for _, c := range n.Children {
		if found := findLabel(c, label); found != nil {
			return found
		}
	}
	return nil
}

// TestLowerSimpleAdd is spec.md §8 scenario S1: a function with no
// branching lowers to an entry Block holding one Call node, plus the exit
// Block.
func TestLowerSimpleAdd(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	stmts := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{
			&ast.BinOp{Op: "+", Left: name(1, "x"), Right: name(1, "y")},
		}},
	}
	fn := check.FunctionSignature{
		Params:  []check.Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
		Results: []gtypes.Type{intT},
	}
	checked := buildChecked(t, stmts, 1, fn, newTestGlobals())

	graph, err := Function(checked, newTestGlobals(), "f")
	require.NoError(t, err)
	require.Equal(t, KindDef, graph.Root.Kind)
	require.Equal(t, 2, countKind(graph.Root, KindBlock))
	require.Equal(t, 1, countKind(graph.Root, KindCall))

	entry := findLabel(graph.Root, blockLabel(checked.CFG.EntryBB.ID))
	require.NotNil(t, entry)
	input := entry.Children[0]
	require.Equal(t, KindInput, input.Kind)
	require.Equal(t, []string{"x", "y"}, []string{input.Outputs[0].Name, input.Outputs[1].Name})
}

// numericCoercionGlobals distinguishes numeric kinds, unlike testGlobals's
// single shared KindNumeric bucket, since S6 requires Int's dispatch table
// (which has `__float__` but no `__mul__`) to differ from Float's.
type numericCoercionGlobals struct{}

func (numericCoercionGlobals) Lookup(name string) (gtypes.Type, bool) { return gtypes.Type{}, false }

func (numericCoercionGlobals) Dispatch(recv gtypes.Type, method string) (check.FuncSig, bool) {
	if recv.Kind != gtypes.KindNumeric {
		return check.FuncSig{}, false
	}
	floatT := gtypes.Numeric(gtypes.Float)
	switch recv.Numeric {
	case gtypes.Int:
		if method == "__float__" {
			return check.FuncSig{Outputs: []gtypes.Type{floatT}}, true
		}
	case gtypes.Float:
		if method == "__mul__" {
			return check.FuncSig{Inputs: []gtypes.Type{floatT}, Outputs: []gtypes.Type{floatT}}, true
		}
	}
	return check.FuncSig{}, false
}

func (numericCoercionGlobals) StructFields(def gtypes.DefID) ([]check.StructField, bool) {
	return nil, false
}

// TestLowerNumericCoercion is spec.md §8 scenario S6: `x: int, y: float,
// return x * y` lowers the checker's inserted `__float__` call ahead of the
// `__mul__` call, wired into it, rather than rejecting the mismatched kinds.
func TestLowerNumericCoercion(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	floatT := gtypes.Numeric(gtypes.Float)
	g := numericCoercionGlobals{}
	stmts := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{
			&ast.BinOp{Op: "*", Left: name(1, "x"), Right: name(1, "y")},
		}},
	}
	fn := check.FunctionSignature{
		Params:  []check.Param{{Name: "x", Type: intT}, {Name: "y", Type: floatT}},
		Results: []gtypes.Type{floatT},
	}
	checked := buildChecked(t, stmts, 1, fn, g)

	graph, err := Function(checked, g, "f")
	require.NoError(t, err)

	coerce := findLabel(graph.Root, "__float__")
	require.NotNil(t, coerce, "checker must have inserted a __float__ call for the int operand")
	mul := findLabel(graph.Root, "__mul__")
	require.NotNil(t, mul)

	found := false
	for _, e := range graph.Edges {
		if e.From.Node == coerce && e.ToNode == mul {
			found = true
		}
	}
	require.True(t, found, "the __float__ call's result must feed the __mul__ call")
}

// TestLowerConditionalExpr is spec.md §8 scenario S2: a plain (non-marked)
// conditional expression lowers to one Block per BB with no Conditional
// node, since functional lowering is opt-in only.
func TestLowerConditionalExpr(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	boolT := gtypes.Bool()
	stmts := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{
			&ast.IfExp{
				Test:   name(1, "b"),
				Body:   &ast.Constant{Kind: ast.ConstInt, Int: 1},
				Orelse: &ast.Constant{Kind: ast.ConstInt, Int: 2},
			},
		}},
	}
	fn := check.FunctionSignature{
		Params:  []check.Param{{Name: "b", Type: boolT}},
		Results: []gtypes.Type{intT},
	}
	checked := buildChecked(t, stmts, 1, fn, newTestGlobals())

	graph, err := Function(checked, newTestGlobals(), "f")
	require.NoError(t, err)
	require.Equal(t, 5, countKind(graph.Root, KindBlock))
	require.Equal(t, 0, countKind(graph.Root, KindConditional))
}

// TestLowerFunctionalConditional exercises the `_ @ functional` if/else
// path: the head, then and else BBs collapse into a single Block holding a
// Conditional node with a Case per arm, instead of three separate Blocks.
func TestLowerFunctionalConditional(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	boolT := gtypes.Bool()
	marker := &ast.ExprStmt{Value: &ast.BinOp{Op: "@", Left: name(1, "_"), Right: name(1, "functional")}}
	stmts := []ast.Stmt{
		&ast.IfStmt{
			Test: name(1, "b"),
			Body: []ast.Stmt{
				marker,
				&ast.AssignStmt{Targets: []ast.Expr{name(2, "y")}, Value: &ast.Constant{Kind: ast.ConstInt, Int: 1}},
			},
			Orelse: []ast.Stmt{
				&ast.AssignStmt{Targets: []ast.Expr{name(3, "y")}, Value: &ast.Constant{Kind: ast.ConstInt, Int: 2}},
			},
		},
		&ast.ReturnStmt{Values: []ast.Expr{name(4, "y")}},
	}
	fn := check.FunctionSignature{
		Params:  []check.Param{{Name: "b", Type: boolT}},
		Results: []gtypes.Type{intT},
	}
	checked := buildChecked(t, stmts, 1, fn, newTestGlobals())

	graph, err := Function(checked, newTestGlobals(), "f")
	require.NoError(t, err)
	require.Equal(t, 1, countKind(graph.Root, KindConditional))
	require.Equal(t, 2, countKind(graph.Root, KindCase))
	require.Equal(t, 3, countKind(graph.Root, KindBlock), "entry, merge and exit blocks; then/else are absorbed")
}

// TestLowerFunctionalTailLoop exercises the `_ @ functional` while path: a
// single-BB body looping directly back to the head lowers to a TailLoop
// node rather than separate head/body Blocks.
func TestLowerFunctionalTailLoop(t *testing.T) {
	boolT := gtypes.Bool()
	marker := &ast.ExprStmt{Value: &ast.BinOp{Op: "@", Left: name(1, "_"), Right: name(1, "functional")}}
	stmts := []ast.Stmt{
		&ast.WhileStmt{
			Test: name(1, "cond"),
			Body: []ast.Stmt{
				marker,
				&ast.AssignStmt{Targets: []ast.Expr{name(2, "cond")}, Value: name(2, "cond")},
			},
		},
		&ast.ReturnStmt{},
	}
	fn := check.FunctionSignature{
		Params: []check.Param{{Name: "cond", Type: boolT}},
	}
	checked := buildChecked(t, stmts, 0, fn, newTestGlobals())

	graph, err := Function(checked, newTestGlobals(), "f")
	require.NoError(t, err)
	require.Equal(t, 1, countKind(graph.Root, KindTailLoop))
	require.Equal(t, 1, countKind(graph.Root, KindConditional))
	require.Equal(t, 2, countKind(graph.Root, KindCase))
}

// TestLowerFunctionalNotYetSupported rejects a functional-marked if whose
// `then` arm contains an internal return, since that breaks the
// single-predecessor/single-successor merge shape functional lowering
// requires.
func TestLowerFunctionalNotYetSupported(t *testing.T) {
	boolT := gtypes.Bool()
	marker := &ast.ExprStmt{Value: &ast.BinOp{Op: "@", Left: name(1, "_"), Right: name(1, "functional")}}
	stmts := []ast.Stmt{
		&ast.IfStmt{
			Test: name(1, "b"),
			Body: []ast.Stmt{
				marker,
				&ast.IfStmt{
					Test:   name(2, "c"),
					Body:   []ast.Stmt{&ast.ReturnStmt{}},
					Orelse: nil,
				},
			},
			Orelse: []ast.Stmt{&ast.PassStmt{}},
		},
		&ast.ReturnStmt{},
	}
	fn := check.FunctionSignature{
		Params: []check.Param{{Name: "b", Type: boolT}, {Name: "c", Type: boolT}},
	}
	checked := buildChecked(t, stmts, 0, fn, newTestGlobals())

	_, err := Function(checked, newTestGlobals(), "f")
	require.Error(t, err)
	var diagErr *diag.Error
	require.ErrorAs(t, err, &diagErr)
	require.Equal(t, diag.KindNotYetSupported, diagErr.Kind)
}
