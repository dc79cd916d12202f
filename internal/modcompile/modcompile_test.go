package modcompile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/globals"
	"github.com/CQCL/guppy-go/internal/gtypes"
	"github.com/CQCL/guppy-go/internal/lower"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sp(line int) ast.Span { return ast.NewSpanned("t.gpy", line, 0) }

func name(line int, ident string) *ast.Name { return ast.NewName(sp(line), ident) }

// TestCompileModuleMergesInDeclarationOrder compiles three independent
// functions concurrently and checks the merged module attaches their Def
// nodes in declaration order, regardless of goroutine scheduling.
func TestCompileModuleMergesInDeclarationOrder(t *testing.T) {
	intT := gtypes.Numeric(gtypes.Int)
	g := globals.Prelude()

	addBody := []ast.Stmt{
		&ast.ReturnStmt{Values: []ast.Expr{
			&ast.BinOp{Op: "+", Left: name(1, "x"), Right: name(1, "y")},
		}},
	}
	decls := []FunctionDecl{
		{Name: "f0", Body: addBody, NumReturns: 1, Span: sp(0),
			Signature: check.FunctionSignature{
				Params:  []check.Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
				Results: []gtypes.Type{intT},
			}},
		{Name: "f1", Body: addBody, NumReturns: 1, Span: sp(0),
			Signature: check.FunctionSignature{
				Params:  []check.Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
				Results: []gtypes.Type{intT},
			}},
		{Name: "f2", Body: addBody, NumReturns: 1, Span: sp(0),
			Signature: check.FunctionSignature{
				Params:  []check.Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
				Results: []gtypes.Type{intT},
			}},
	}

	graph, err := CompileModule(context.Background(), decls, g)
	require.NoError(t, err)
	require.Equal(t, lower.KindModule, graph.Root.Kind)
	require.Len(t, graph.Root.Children, 3)
	for i, want := range []string{"f0", "f1", "f2"} {
		require.Equal(t, want, graph.Root.Children[i].Label)
	}
}

// TestCompileModulePropagatesFirstError confirms a type error in one
// function body surfaces from CompileModule, naming the failing function.
func TestCompileModulePropagatesFirstError(t *testing.T) {
	g := globals.Prelude()
	boolT := gtypes.Bool()
	decls := []FunctionDecl{
		{Name: "bad", Span: sp(0),
			Body: []ast.Stmt{
				&ast.ReturnStmt{Values: []ast.Expr{name(1, "undefined")}},
			},
			NumReturns: 1,
			Signature: check.FunctionSignature{
				Results: []gtypes.Type{boolT},
			}},
	}

	_, err := CompileModule(context.Background(), decls, g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad:")
}
