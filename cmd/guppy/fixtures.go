package main

import (
	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/globals"
	"github.com/CQCL/guppy-go/internal/gtypes"
	"github.com/CQCL/guppy-go/internal/modcompile"
)

// fixtures are the pre-built ast.Stmt bodies cmd/guppy drives through the
// pipeline. There is no surface parser in scope (spec.md §1), so these
// stand in for what a real front end would hand the pipeline: a name, a
// declared signature, and a residual statement list.
var fixtures = map[string]modcompile.FunctionDecl{
	"add":  addFixture(),
	"bell": bellFixture(),
	"bad":  badFixture(),
	"swap": swapFixture(),
}

func sp(line int) ast.Span { return ast.NewSpanned("fixture.gpy", line, 0) }

func name(line int, ident string) *ast.Name { return ast.NewName(sp(line), ident) }

// addFixture is spec.md §8 scenario S1: a two-argument function with no
// branching, returning the sum of its formals.
func addFixture() modcompile.FunctionDecl {
	intT := gtypes.Numeric(gtypes.Int)
	return modcompile.FunctionDecl{
		Name: "add",
		Signature: check.FunctionSignature{
			Params:  []check.Param{{Name: "x", Type: intT}, {Name: "y", Type: intT}},
			Results: []gtypes.Type{intT},
		},
		Body: []ast.Stmt{
			&ast.ReturnStmt{Values: []ast.Expr{
				&ast.BinOp{Op: "+", Left: name(1, "x"), Right: name(1, "y")},
			}},
		},
		NumReturns: 1,
		Span:       sp(0),
	}
}

// bellFixture exercises the quantum prelude: it Hadamards one qubit then
// CNOTs it onto a second, consuming both formals exactly once (spec.md
// §4.6's linear-use discipline).
func bellFixture() modcompile.FunctionDecl {
	qubitT := globals.Qubit()
	return modcompile.FunctionDecl{
		Name: "bell",
		Signature: check.FunctionSignature{
			Params:  []check.Param{{Name: "q0", Type: qubitT}, {Name: "q1", Type: qubitT}},
			Results: []gtypes.Type{qubitT, qubitT},
		},
		Body: []ast.Stmt{
			&ast.AssignStmt{
				Targets: []ast.Expr{name(1, "q0")},
				Value:   &ast.CallExpr{Func: name(1, "h"), Args: []ast.Expr{name(1, "q0")}},
			},
			&ast.AssignStmt{
				Targets: []ast.Expr{ast.NewTupleExpr(sp(2), []ast.Expr{name(2, "q0"), name(2, "q1")})},
				Value:   &ast.CallExpr{Func: name(2, "cx"), Args: []ast.Expr{name(2, "q0"), name(2, "q1")}},
			},
			&ast.ReturnStmt{Values: []ast.Expr{name(3, "q0"), name(3, "q1")}},
		},
		NumReturns: 2,
		Span:       sp(0),
	}
}

// swapFixture exercises the prelude's generic `pair[T]` (spec.md §4.5's
// "call sites synthesize arguments, then unify to produce an
// instantiation"): it calls `pair` twice, once on two qubits and once on
// two bools, so the same generic signature instantiates at both a linear
// and a non-linear type within one function body.
func swapFixture() modcompile.FunctionDecl {
	qubitT := globals.Qubit()
	boolT := gtypes.Bool()
	return modcompile.FunctionDecl{
		Name: "swap",
		Signature: check.FunctionSignature{
			Params: []check.Param{
				{Name: "q0", Type: qubitT}, {Name: "q1", Type: qubitT},
				{Name: "b0", Type: boolT}, {Name: "b1", Type: boolT},
			},
			Results: []gtypes.Type{qubitT, qubitT, boolT, boolT},
		},
		Body: []ast.Stmt{
			&ast.AssignStmt{
				Targets: []ast.Expr{ast.NewTupleExpr(sp(1), []ast.Expr{name(1, "q0"), name(1, "q1")})},
				Value:   &ast.CallExpr{Func: name(1, "pair"), Args: []ast.Expr{name(1, "q1"), name(1, "q0")}},
			},
			&ast.AssignStmt{
				Targets: []ast.Expr{ast.NewTupleExpr(sp(2), []ast.Expr{name(2, "b0"), name(2, "b1")})},
				Value:   &ast.CallExpr{Func: name(2, "pair"), Args: []ast.Expr{name(2, "b1"), name(2, "b0")}},
			},
			&ast.ReturnStmt{Values: []ast.Expr{name(3, "q0"), name(3, "q1"), name(3, "b0"), name(3, "b1")}},
		},
		NumReturns: 4,
		Span:       sp(0),
	}
}

// badFixture references an undefined name, so `guppy check bad` always
// exercises the diagnostic-rendering path.
func badFixture() modcompile.FunctionDecl {
	boolT := gtypes.Bool()
	return modcompile.FunctionDecl{
		Name: "bad",
		Signature: check.FunctionSignature{
			Results: []gtypes.Type{boolT},
		},
		Body: []ast.Stmt{
			&ast.ReturnStmt{Values: []ast.Expr{name(1, "undefined")}},
		},
		NumReturns: 1,
		Span:       sp(0),
	}
}
