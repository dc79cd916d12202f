package cfgbuild

import "github.com/CQCL/guppy-go/internal/ast"

// Jumps carries the blocks a nested statement list should jump to: where a
// bare `return` rejoins the exit, and where `continue`/`break` target inside
// the nearest enclosing loop. Grounded on cfg.py's CFGBuilder jump-target
// bookkeeping (there threaded as instance state pushed/popped around loop
// visits; here passed explicitly since Go has no implicit `self`).
type Jumps struct {
	ReturnBB   *BasicBlock
	ContinueBB *BasicBlock // nil outside a loop
	BreakBB    *BasicBlock // nil outside a loop
}

// Builder lowers a function body's statement list into a CFG (spec.md
// §4.1). Grounded on original_source/guppy/cfg.py's CFGBuilder.
type Builder struct {
	cfg  *CFG
	expr *exprBuilder
}

// NewBuilder creates a CFG builder with its own expression/branch builders.
func NewBuilder() *Builder {
	return &Builder{expr: newExprBuilder()}
}

// Build lowers stmts (a function body) into a complete CFG. numReturns is
// the function's declared result arity, used to name the dummy return
// variables a bare `return e1, e2` expands into.
func (b *Builder) Build(stmts []ast.Stmt, numReturns int) *CFG {
	cfg := NewCFG()
	b.cfg = cfg
	jumps := Jumps{ReturnBB: cfg.ExitBB}
	// The exit block "uses" every dummy return variable, so liveness carries
	// the return obligation backwards from exit.
	for i := 0; i < numReturns; i++ {
		ret := ReturnVarName(i)
		cfg.ExitBB.Vars.Used[ret] = ast.NewName(ast.Span{}, ret)
	}

	tail := b.visitStmts(cfg.EntryBB, stmts, jumps, numReturns)
	if tail != nil {
		// An implicit fall-through return at the end of the body (valid only
		// when numReturns == 0; the type checker rejects it otherwise).
		cfg.Link(tail, cfg.ExitBB)
	}
	return cfg
}

// visitStmts processes a statement list starting at bb, returning the block
// execution continues from after the last statement, or nil if the list
// always transfers control away (return/break/continue) before falling off
// the end.
func (b *Builder) visitStmts(bb *BasicBlock, stmts []ast.Stmt, j Jumps, numReturns int) *BasicBlock {
	cur := bb
	for _, stmt := range stmts {
		if cur == nil {
			// Unreachable: a prior statement in this list always transferred
			// control away. The type checker discards these blocks after
			// checking (spec.md's "unreachable-block discard after
			// type-checking" rule) rather than cfgbuild silently dropping
			// them here.
			cur = b.cfg.NewBB()
		}
		cur = b.visitStmt(cur, stmt, j, numReturns)
	}
	return cur
}

// visitBody processes the body of an If/While arm, stripping a leading
// `_ @ functional` marker and reporting whether it was present.
func (b *Builder) visitBody(bb *BasicBlock, stmts []ast.Stmt, j Jumps, numReturns int) (tail *BasicBlock, functional bool) {
	if len(stmts) > 0 && isFunctionalMarker(stmts[0]) {
		functional = true
		stmts = stmts[1:]
	}
	return b.visitStmts(bb, stmts, j, numReturns), functional
}

func (b *Builder) visitStmt(bb *BasicBlock, stmt ast.Stmt, j Jumps, numReturns int) *BasicBlock {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		return b.visitAssign(bb, s)
	case *ast.AugAssignStmt:
		return b.visitAugAssign(bb, s)
	case *ast.AnnAssignStmt:
		return b.visitAnnAssign(bb, s)
	case *ast.ExprStmt:
		return b.visitExprStmt(bb, s)
	case *ast.IfStmt:
		return b.visitIf(bb, s, j, numReturns)
	case *ast.WhileStmt:
		return b.visitWhile(bb, s, j, numReturns)
	case *ast.BreakStmt:
		b.cfg.Link(bb, j.BreakBB)
		return nil
	case *ast.ContinueStmt:
		b.cfg.Link(bb, j.ContinueBB)
		return nil
	case *ast.ReturnStmt:
		return b.visitReturn(bb, s, j)
	case *ast.PassStmt:
		return bb
	default:
		return bb
	}
}

func (b *Builder) visitAssign(bb *BasicBlock, s *ast.AssignStmt) *BasicBlock {
	value, bb := b.expr.Build(b.cfg, bb, s.Value)
	s.Value = value
	for _, target := range s.Targets {
		b.bindTarget(bb, target, s)
	}
	bb.Statements = append(bb.Statements, s)
	return bb
}

// bindTarget marks the names an assignment target binds as assigned, and
// (for a non-binding target like `a[i]` or `a.f`) marks the names it reads
// as used.
func (b *Builder) bindTarget(bb *BasicBlock, target ast.Expr, assignedBy ast.Node) {
	switch t := target.(type) {
	case *ast.Name:
		bb.Vars.Assigned[t.Ident] = assignedBy
	case *ast.TupleExpr:
		for _, e := range t.Elts {
			b.bindTarget(bb, e, assignedBy)
		}
	case *ast.ListExpr:
		for _, e := range t.Elts {
			b.bindTarget(bb, e, assignedBy)
		}
	case *ast.SubscriptExpr:
		bb.Vars.UpdateUsed(t, namesInExpr(t.Value))
		bb.Vars.UpdateUsed(t, namesInExpr(t.Index))
	case *ast.AttributeExpr:
		bb.Vars.UpdateUsed(t, namesInExpr(t.Value))
	}
}

func (b *Builder) visitAugAssign(bb *BasicBlock, s *ast.AugAssignStmt) *BasicBlock {
	value, bb := b.expr.Build(b.cfg, bb, s.Value)
	s.Value = value
	// `target op= value` both reads and writes target.
	bb.Vars.UpdateUsed(s.Target, namesInTarget(s.Target))
	b.bindTarget(bb, s.Target, s)
	bb.Statements = append(bb.Statements, s)
	return bb
}

func (b *Builder) visitAnnAssign(bb *BasicBlock, s *ast.AnnAssignStmt) *BasicBlock {
	if s.Value != nil {
		value, newBB := b.expr.Build(b.cfg, bb, s.Value)
		s.Value = value
		bb = newBB
		b.bindTarget(bb, s.Target, s)
	}
	bb.Statements = append(bb.Statements, s)
	return bb
}

func (b *Builder) visitExprStmt(bb *BasicBlock, s *ast.ExprStmt) *BasicBlock {
	if isFunctionalMarker(s) {
		// A stray marker outside an If/While body (those are consumed by
		// visitBody); has no effect of its own.
		return bb
	}
	value, bb := b.expr.Build(b.cfg, bb, s.Value)
	s.Value = value
	bb.Statements = append(bb.Statements, s)
	return bb
}

func (b *Builder) visitIf(bb *BasicBlock, s *ast.IfStmt, j Jumps, numReturns int) *BasicBlock {
	thenBB, elseBB := b.cfg.NewBB(), b.cfg.NewBB()
	b.expr.BuildBranch(b.cfg, bb, s.Test, thenBB, elseBB)

	thenTail, thenFunctional := b.visitBody(thenBB, s.Body, j, numReturns)
	elseTail, elseFunctional := b.visitBody(elseBB, s.Orelse, j, numReturns)
	if thenFunctional || elseFunctional {
		bb.Functional = true
	}

	var preds []*BasicBlock
	if thenTail != nil {
		preds = append(preds, thenTail)
	}
	if elseTail != nil {
		preds = append(preds, elseTail)
	}
	if len(preds) == 0 {
		// Both arms transferred control away (e.g. return in both branches);
		// nothing falls through to a join block.
		return nil
	}
	return b.cfg.NewBBWithPreds(preds...)
}

func (b *Builder) visitWhile(bb *BasicBlock, s *ast.WhileStmt, j Jumps, numReturns int) *BasicBlock {
	headBB := b.cfg.NewBBWithPred(bb)
	bodyBB, exitBB := b.cfg.NewBB(), b.cfg.NewBB()
	b.expr.BuildBranch(b.cfg, headBB, s.Test, bodyBB, exitBB)

	loopJumps := Jumps{ReturnBB: j.ReturnBB, ContinueBB: headBB, BreakBB: exitBB}
	bodyTail, functional := b.visitBody(bodyBB, s.Body, loopJumps, numReturns)
	if functional {
		headBB.Functional = true
	}
	if bodyTail != nil {
		b.cfg.Link(bodyTail, headBB)
	}
	return exitBB
}

func (b *Builder) visitReturn(bb *BasicBlock, s *ast.ReturnStmt, j Jumps) *BasicBlock {
	values := make([]ast.Expr, len(s.Values))
	for i, v := range s.Values {
		value, newBB := b.expr.Build(b.cfg, bb, v)
		values[i] = value
		bb = newBB
	}
	for i, value := range values {
		target := ast.NewName(value.Span(), ReturnVarName(i))
		assign := &ast.AssignStmt{Targets: []ast.Expr{target}, Value: value}
		bb.Statements = append(bb.Statements, assign)
		bb.Vars.UpdateUsed(value, namesInExpr(value))
		bb.Vars.Assigned[target.Ident] = assign
	}
	b.cfg.Link(bb, j.ReturnBB)
	return nil
}
