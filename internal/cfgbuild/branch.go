package cfgbuild

import "github.com/CQCL/guppy-go/internal/ast"

// branchBuilder lowers a boolean-valued expression directly into CFG
// branches instead of materializing it as a value (spec.md §4.3), so that
// `and`/`or`/`not`/chained comparisons compile to the control flow a reader
// expects rather than round-tripping through a temporary. Grounded on
// original_source/guppy/cfg.py's BranchBuilder.
type branchBuilder struct {
	expr *exprBuilder
}

// visit wires bb (and any blocks it spawns while flattening sub-expressions)
// so that reaching trueBB means expr evaluated true, and falseBB means false.
func (b *branchBuilder) visit(cfg *CFG, bb *BasicBlock, expr ast.Expr, trueBB, falseBB *BasicBlock) {
	switch n := expr.(type) {
	case *ast.UnaryOp:
		if n.Op == "not" {
			// Swap the targets: `not x` is true exactly when x is false.
			b.visit(cfg, bb, n.Operand, falseBB, trueBB)
			return
		}
		b.fallback(cfg, bb, expr, trueBB, falseBB)

	case *ast.BoolOp:
		b.visitBoolOp(cfg, bb, n, trueBB, falseBB)

	case *ast.Compare:
		if len(n.Comparators) > 1 {
			b.visit(cfg, bb, desugarChainedCompare(n), trueBB, falseBB)
			return
		}
		b.fallback(cfg, bb, expr, trueBB, falseBB)

	case *ast.IfExp:
		ifBB, elseBB := cfg.NewBB(), cfg.NewBB()
		b.expr.BuildBranch(cfg, bb, n.Test, ifBB, elseBB)
		b.visit(cfg, ifBB, n.Body, trueBB, falseBB)
		b.visit(cfg, elseBB, n.Orelse, trueBB, falseBB)

	default:
		b.fallback(cfg, bb, expr, trueBB, falseBB)
	}
}

// visitBoolOp lowers `v1 and v2 and ... vn` / `v1 or v2 or ... vn` right
// associatively: evaluating v1 either short-circuits immediately, or falls
// through to a fresh block that evaluates the rest of the chain under the
// same rule.
func (b *branchBuilder) visitBoolOp(cfg *CFG, bb *BasicBlock, n *ast.BoolOp, trueBB, falseBB *BasicBlock) {
	values := n.Values
	if len(values) == 1 {
		b.visit(cfg, bb, values[0], trueBB, falseBB)
		return
	}
	head, rest := values[0], ast.NewBoolOp(n.Op, values[1:])

	switch n.Op {
	case ast.BoolAnd:
		// head must be true to even consider the rest; if head is false the
		// whole chain is false.
		contBB := cfg.NewBB()
		b.visit(cfg, bb, head, contBB, falseBB)
		b.visit(cfg, contBB, rest, trueBB, falseBB)
	case ast.BoolOr:
		// head being true short-circuits to true; otherwise fall through to
		// the rest of the chain.
		contBB := cfg.NewBB()
		b.visit(cfg, bb, head, trueBB, contBB)
		b.visit(cfg, contBB, rest, trueBB, falseBB)
	}
}

// desugarChainedCompare rewrites `a OP0 b OP1 c ...` into the equivalent
// `(a OP0 b) and (b OP1 c) and ...`, so chained comparisons reuse the BoolOp
// short-circuit lowering. The merged span covers the whole original chain
// (spec.md §4.3's "merged spans").
func desugarChainedCompare(c *ast.Compare) ast.Expr {
	left := c.Left
	parts := make([]ast.Expr, len(c.Ops))
	for i, op := range c.Ops {
		right := c.Comparators[i]
		parts[i] = ast.NewCompare(ast.Merge(left.Span(), right.Span()), left, op, right)
		left = right
	}
	return ast.NewBoolOpAt(c.Span(), ast.BoolAnd, parts)
}

// fallback flattens expr to a single value and installs it as bb's branch
// predicate, linking trueBB before falseBB so successor order matches
// spec.md §3 (index 0 = true, index 1 = false).
func (b *branchBuilder) fallback(cfg *CFG, bb *BasicBlock, expr ast.Expr, trueBB, falseBB *BasicBlock) {
	value, finalBB := b.expr.Build(cfg, bb, expr)
	finalBB.BranchPred = value
	cfg.Link(finalBB, trueBB)
	cfg.Link(finalBB, falseBB)
}
