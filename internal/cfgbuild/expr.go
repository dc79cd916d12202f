package cfgbuild

import "github.com/CQCL/guppy-go/internal/ast"

// exprBuilder reduces an arbitrary expression to one that produces a single
// value within a single BB, spawning temporaries and new BBs for
// sub-expressions whose evaluation involves control flow (spec.md §4.2).
// Grounded on original_source/guppy/cfg.py's ExprBuilder (an ast.NodeTransformer
// there; re-expressed here as an explicit recursive rewrite since Go has no
// generic AST-transformer base class).
type exprBuilder struct {
	cfg        *CFG
	bb         *BasicBlock
	tmpCounter int
	branch     *branchBuilder
}

func newExprBuilder() *exprBuilder {
	b := &exprBuilder{}
	b.branch = &branchBuilder{expr: b}
	return b
}

// Build flattens expr into cfg starting at bb, returning the rewritten
// expression and the (possibly different) block it can now be evaluated in.
func (b *exprBuilder) Build(cfg *CFG, bb *BasicBlock, expr ast.Expr) (ast.Expr, *BasicBlock) {
	b.cfg, b.bb = cfg, bb
	out := b.visit(expr)
	return out, b.bb
}

// BuildBranch lowers expr as a branching predicate directly wiring bb to
// trueBB/falseBB (spec.md §4.3).
func (b *exprBuilder) BuildBranch(cfg *CFG, bb *BasicBlock, expr ast.Expr, trueBB, falseBB *BasicBlock) {
	b.branch.visit(cfg, bb, expr, trueBB, falseBB)
}

func (b *exprBuilder) nextTmp() string {
	name := "%tmp" + itoa(b.tmpCounter)
	b.tmpCounter++
	return name
}

// tmpAssign appends `tmp = value` to bb, recording the temporary as assigned
// and value's free names as used — mirroring ExprBuilder._tmp_assign.
func (b *exprBuilder) tmpAssign(tmp string, value ast.Expr, bb *BasicBlock) {
	target := ast.NewName(value.Span(), tmp)
	assign := &ast.AssignStmt{Targets: []ast.Expr{target}, Value: value}
	bb.Statements = append(bb.Statements, assign)
	bb.Vars.UpdateUsed(value, namesInExpr(value))
	bb.Vars.Assigned[tmp] = value
}

func isShortCircuitExpr(e ast.Expr) bool {
	if _, ok := e.(*ast.BoolOp); ok {
		return true
	}
	if c, ok := e.(*ast.Compare); ok {
		return len(c.Comparators) > 1
	}
	return false
}

func (b *exprBuilder) visit(expr ast.Expr) ast.Expr {
	switch n := expr.(type) {
	case *ast.Name:
		b.bb.Vars.UpdateUsed(n, []string{n.Ident})
		return n

	case *ast.NamedExpr:
		value := b.visit(n.Value)
		assign := &ast.AssignStmt{Targets: []ast.Expr{n.Target}, Value: value}
		b.bb.Statements = append(b.bb.Statements, assign)
		b.bb.Vars.Assigned[n.Target.Ident] = assign
		return n.Target

	case *ast.IfExp:
		ifBB, elseBB := b.cfg.NewBB(), b.cfg.NewBB()
		b.BuildBranch(b.cfg, b.bb, n.Test, ifBB, elseBB)

		ifExpr, ifBB2 := b.Build(b.cfg, ifBB, n.Body)
		elseExpr, elseBB2 := b.Build(b.cfg, elseBB, n.Orelse)

		tmp := b.nextTmp()
		b.tmpAssign(tmp, ifExpr, ifBB2)
		b.tmpAssign(tmp, elseExpr, elseBB2)

		merge := b.cfg.NewBBWithPreds(ifBB2, elseBB2)
		b.bb = merge
		return ast.NewName(n.Span(), tmp)

	case *ast.TupleExpr:
		elts := make([]ast.Expr, len(n.Elts))
		for i, e := range n.Elts {
			elts[i] = b.visit(e)
		}
		return ast.NewTupleExpr(n.Span(), elts)

	case *ast.ListExpr:
		elts := make([]ast.Expr, len(n.Elts))
		for i, e := range n.Elts {
			elts[i] = b.visit(e)
		}
		return ast.NewListExpr(n.Span(), elts)

	case *ast.CallExpr:
		fn := b.visit(n.Func)
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = b.visit(a)
		}
		return ast.NewCallExpr(n.Span(), fn, args)

	case *ast.AttributeExpr:
		value := b.visit(n.Value)
		return ast.NewAttributeExpr(n.Span(), value, n.Attr)

	case *ast.SubscriptExpr:
		value := b.visit(n.Value)
		index := b.visit(n.Index)
		return ast.NewSubscriptExpr(n.Span(), value, index)

	case *ast.UnaryOp:
		operand := b.visit(n.Operand)
		return ast.NewUnaryOp(n.Span(), n.Op, operand)

	case *ast.BinOp:
		left := b.visit(n.Left)
		right := b.visit(n.Right)
		return ast.NewBinOp(n.Span(), n.Op, left, right)

	default:
		// BoolOp and chained Compare must go through the branch builder to
		// get short-circuit semantics; materialize the boolean result into a
		// temporary, mirroring ExprBuilder.generic_visit.
		if isShortCircuitExpr(expr) {
			trueBB, falseBB := b.cfg.NewBB(), b.cfg.NewBB()
			b.BuildBranch(b.cfg, b.bb, expr, trueBB, falseBB)

			tmp := b.nextTmp()
			b.tmpAssign(tmp, ast.NewBoolConstant(expr.Span(), true), trueBB)
			b.tmpAssign(tmp, ast.NewBoolConstant(expr.Span(), false), falseBB)

			merge := b.cfg.NewBBWithPreds(trueBB, falseBB)
			b.bb = merge
			return ast.NewName(expr.Span(), tmp)
		}
		// Constants and anything else with no sub-structure to flatten.
		return expr
	}
}
