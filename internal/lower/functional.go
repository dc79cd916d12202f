package lower

import (
	"github.com/CQCL/guppy-go/internal/cfgbuild"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/diag"
)

// lowerFunctional dispatches a `_ @ functional`-marked branch head to either
// Conditional (if/else) or TailLoop (while) lowering. Per the restricted
// sub-grammar recorded in DESIGN.md, only a single-BB arm or body with no
// internal jumps is supported; anything shaped differently (nested
// break/continue/return under the marker) is reported as not yet supported
// rather than silently falling back to ordinary per-BB lowering.
func lowerFunctional(graph *Graph, parent *Node, checked *check.CheckedCFG, cbb *check.CheckedBB, g check.Globals, consumed map[int]bool) (*Node, []*cfgbuild.BasicBlock, error) {
	head := cbb.BB
	if len(head.Successors) != 2 {
		return nil, nil, diag.New(diag.KindNotYetSupported, head.BranchPred.Span(),
			"functional block with %d successor(s) is not yet supported", len(head.Successors))
	}
	a, b := head.Successors[0], head.Successors[1]

	if len(a.Successors) == 1 && a.Successors[0] == head && len(a.Predecessors) == 1 {
		return lowerTailLoop(graph, parent, checked, cbb, a, b, g, consumed)
	}
	if len(a.Successors) == 1 && len(b.Successors) == 1 && a.Successors[0] == b.Successors[0] &&
		len(a.Predecessors) == 1 && len(b.Predecessors) == 1 && len(a.Successors[0].Predecessors) == 2 {
		return lowerConditional(graph, parent, checked, cbb, a, b, a.Successors[0], g, consumed)
	}
	return nil, nil, diag.New(diag.KindNotYetSupported, head.BranchPred.Span(),
		"functional block's arms contain unsupported nested control flow")
}

// lowerConditional lowers an if/else pair into a Conditional node with two
// Case children, collapsing the three BBs (head, then, else) that would
// otherwise become separate Blocks into one Block whose control flow
// continues directly at the merge point.
func lowerConditional(graph *Graph, parent *Node, checked *check.CheckedCFG, cbb *check.CheckedBB, thenBB, elseBB, mergeBB *cfgbuild.BasicBlock, g check.Globals, consumed map[int]bool) (*Node, []*cfgbuild.BasicBlock, error) {
	head := cbb.BB
	block := graph.node(parent, KindBlock, blockLabel(head.ID))
	input := graph.node(block, KindInput, "")
	scope := map[string]valueRef{}
	for _, name := range sortedNames(cbb.InputRow) {
		entry := cbb.InputRow[name]
		idx := graph.addOutput(input, name, entry.Type)
		scope[name] = valueRef{Ref{input, idx}, entry.Type}
	}
	bl := &blockCtx{graph: graph, globals: g, block: block, scope: scope}
	for _, stmt := range head.Statements {
		if err := lowerStmt(bl, stmt); err != nil {
			return nil, nil, err
		}
	}
	predVal, err := lowerExpr(bl, head.BranchPred)
	if err != nil {
		return nil, nil, err
	}

	thenCBB, elseCBB := checked.BBs[thenBB.ID], checked.BBs[elseBB.ID]
	shared := unionRowNames(thenCBB.InputRow, elseCBB.InputRow)

	cond := graph.node(block, KindConditional, "")
	predIdx := graph.addInput(cond, "", predVal.Type)
	graph.wire(predVal.Ref, cond, predIdx)
	for _, name := range shared {
		v, ok := bl.scope[name]
		if !ok {
			return nil, nil, diag.Internal(head.BranchPred.Span(), "functional lowering: %q not in scope", name)
		}
		idx := graph.addInput(cond, name, v.Type)
		graph.wire(v.Ref, cond, idx)
	}

	if _, err := lowerCase(graph, cond, "then", shared, thenCBB, g); err != nil {
		return nil, nil, err
	}
	if _, err := lowerCase(graph, cond, "else", shared, elseCBB, g); err != nil {
		return nil, nil, err
	}

	mergeRow := thenCBB.OutputRows[0]
	for _, name := range sortedNames(mergeRow) {
		entry := mergeRow[name]
		idx := graph.addOutput(cond, name, entry.Type)
		bl.scope[name] = valueRef{Ref{cond, idx}, entry.Type}
	}

	output := graph.node(block, KindOutput, "")
	for _, name := range sortedNames(mergeRow) {
		entry := mergeRow[name]
		v := bl.scope[name]
		idx := graph.addInput(output, name, entry.Type)
		graph.wire(v.Ref, output, idx)
	}

	consumed[thenBB.ID] = true
	consumed[elseBB.ID] = true
	return block, []*cfgbuild.BasicBlock{mergeBB}, nil
}

// lowerCase lowers one arm's statements into a Case node: a fresh Input node
// sourcing the shared names (structurally bound by the enclosing
// Conditional's matching input ports, not wired directly — the same
// convention a BB's own entry Input node uses), the arm's statements, and an
// Output node for its single successor's row.
func lowerCase(graph *Graph, parent *Node, label string, shared []string, armCBB *check.CheckedBB, g check.Globals) (*Node, error) {
	kase := graph.node(parent, KindCase, label)
	input := graph.node(kase, KindInput, "")
	scope := map[string]valueRef{}
	for _, name := range shared {
		entry, ok := armCBB.InputRow[name]
		if !ok {
			continue
		}
		idx := graph.addOutput(input, name, entry.Type)
		scope[name] = valueRef{Ref{input, idx}, entry.Type}
	}
	bl := &blockCtx{graph: graph, globals: g, block: kase, scope: scope}
	for _, stmt := range armCBB.BB.Statements {
		if err := lowerStmt(bl, stmt); err != nil {
			return nil, err
		}
	}
	output := graph.node(kase, KindOutput, "")
	row := armCBB.OutputRows[0]
	for _, name := range sortedNames(row) {
		entry := row[name]
		v, ok := bl.scope[name]
		if !ok {
			return nil, diag.Internal(entry.DefinedAt, "functional lowering: %q missing from case scope", name)
		}
		idx := graph.addInput(output, name, entry.Type)
		graph.wire(v.Ref, output, idx)
	}
	return kase, nil
}

// lowerTailLoop lowers a while loop into a TailLoop node. The loop's test
// (head's own statements plus predicate) runs once per iteration inside the
// TailLoop's body, exactly matching the source's execute-order (check
// condition, then either run the body and loop again, or exit); this is
// modeled as a Conditional nested in the body DFG with a "continue" Case
// (the body's statements, producing the next iteration's carried row) and a
// "break" Case (producing the loop's exit row).
func lowerTailLoop(graph *Graph, parent *Node, checked *check.CheckedCFG, cbb *check.CheckedBB, bodyBB, exitBB *cfgbuild.BasicBlock, g check.Globals, consumed map[int]bool) (*Node, []*cfgbuild.BasicBlock, error) {
	head := cbb.BB
	block := graph.node(parent, KindBlock, blockLabel(head.ID))
	input := graph.node(block, KindInput, "")
	scope := map[string]valueRef{}
	for _, name := range sortedNames(cbb.InputRow) {
		entry := cbb.InputRow[name]
		idx := graph.addOutput(input, name, entry.Type)
		scope[name] = valueRef{Ref{input, idx}, entry.Type}
	}

	loop := graph.node(block, KindTailLoop, "")
	carried := unionRowNames(cbb.OutputRows[0], cbb.OutputRows[1])
	for _, name := range carried {
		v, ok := scope[name]
		if !ok {
			continue
		}
		idx := graph.addInput(loop, name, v.Type)
		graph.wire(v.Ref, loop, idx)
	}

	body := graph.node(loop, KindDFG, "iteration")
	bodyInput := graph.node(body, KindInput, "")
	bodyScope := map[string]valueRef{}
	for _, name := range carried {
		v, ok := scope[name]
		if !ok {
			continue
		}
		idx := graph.addOutput(bodyInput, name, v.Type)
		bodyScope[name] = valueRef{Ref{bodyInput, idx}, v.Type}
	}

	headBl := &blockCtx{graph: graph, globals: g, block: body, scope: bodyScope}
	for _, stmt := range head.Statements {
		if err := lowerStmt(headBl, stmt); err != nil {
			return nil, nil, err
		}
	}
	predVal, err := lowerExpr(headBl, head.BranchPred)
	if err != nil {
		return nil, nil, err
	}

	cond := graph.node(body, KindConditional, "")
	predIdx := graph.addInput(cond, "", predVal.Type)
	graph.wire(predVal.Ref, cond, predIdx)
	for _, name := range carried {
		v, ok := headBl.scope[name]
		if !ok {
			continue
		}
		idx := graph.addInput(cond, name, v.Type)
		graph.wire(v.Ref, cond, idx)
	}

	bodyCBB := checked.BBs[bodyBB.ID]
	continueCase := graph.node(cond, KindCase, "continue")
	contInput := graph.node(continueCase, KindInput, "")
	contScope := map[string]valueRef{}
	for _, name := range carried {
		v, ok := headBl.scope[name]
		if !ok {
			continue
		}
		idx := graph.addOutput(contInput, name, v.Type)
		contScope[name] = valueRef{Ref{contInput, idx}, v.Type}
	}
	contBl := &blockCtx{graph: graph, globals: g, block: continueCase, scope: contScope}
	for _, stmt := range bodyBB.Statements {
		if err := lowerStmt(contBl, stmt); err != nil {
			return nil, nil, err
		}
	}
	contOut := graph.node(continueCase, KindOutput, "")
	loopRow := bodyCBB.OutputRows[0]
	for _, name := range sortedNames(loopRow) {
		entry := loopRow[name]
		v, ok := contBl.scope[name]
		if !ok {
			return nil, nil, diag.Internal(entry.DefinedAt, "functional lowering: %q missing at loop continue", name)
		}
		idx := graph.addInput(contOut, name, entry.Type)
		graph.wire(v.Ref, contOut, idx)
	}

	exitRow := cbb.OutputRows[1]
	breakCase := graph.node(cond, KindCase, "break")
	breakInput := graph.node(breakCase, KindInput, "")
	breakScope := map[string]valueRef{}
	for _, name := range carried {
		v, ok := headBl.scope[name]
		if !ok {
			continue
		}
		idx := graph.addOutput(breakInput, name, v.Type)
		breakScope[name] = valueRef{Ref{breakInput, idx}, v.Type}
	}
	breakOut := graph.node(breakCase, KindOutput, "")
	for _, name := range sortedNames(exitRow) {
		entry := exitRow[name]
		v, ok := breakScope[name]
		if !ok {
			return nil, nil, diag.Internal(entry.DefinedAt, "functional lowering: %q missing at loop exit", name)
		}
		idx := graph.addInput(breakOut, name, entry.Type)
		graph.wire(v.Ref, breakOut, idx)
	}

	for _, name := range sortedNames(exitRow) {
		graph.addOutput(loop, name, exitRow[name].Type)
	}

	output := graph.node(block, KindOutput, "")
	for i, name := range sortedNames(exitRow) {
		entry := exitRow[name]
		idx := graph.addInput(output, name, entry.Type)
		graph.wire(Ref{loop, i}, output, idx)
	}

	consumed[bodyBB.ID] = true
	return block, []*cfgbuild.BasicBlock{exitBB}, nil
}
