// Package lower implements Dataflow Lowering (spec.md §4.8): translating a
// type- and linearity-checked CFG into the typed IR node graph of §6.
// Grounded on original_source/guppy/cfg.py's CFG.compile BFS emission loop
// (the same traversal package check's CheckCFG already replays for type
// checking, here replayed again to emit nodes instead of signatures) and
// original_source/guppy/hugr/tys.py's node/port vocabulary.
package lower

import (
	"fmt"
	"sort"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/cfgbuild"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/diag"
)

// Function lowers one fully checked function body into a Def node holding a
// CFG region (spec.md §4.8). Ordinary BBs become Block nodes in checker BFS
// order; a BB marked Functional is instead lowered by lowerFunctional into a
// Conditional or TailLoop node, per the restricted sub-grammar documented in
// DESIGN.md.
func Function(checked *check.CheckedCFG, g check.Globals, name string) (*Graph, error) {
	graph := &Graph{}
	def := graph.node(nil, KindDef, name)
	graph.Root = def
	cfgNode := graph.node(def, KindCFG, "")

	consumed := map[int]bool{}
	blocks := map[int]*Node{}
	controlSucc := map[int][]*cfgbuild.BasicBlock{}

	for _, id := range checked.Order {
		if consumed[id] {
			continue
		}
		cbb := checked.BBs[id]
		if cbb.BB.Functional {
			block, succ, err := lowerFunctional(graph, cfgNode, checked, cbb, g, consumed)
			if err != nil {
				return nil, err
			}
			blocks[id] = block
			controlSucc[id] = succ
			continue
		}
		block, err := lowerBlock(graph, cfgNode, cbb, g)
		if err != nil {
			return nil, err
		}
		blocks[id] = block
		controlSucc[id] = cbb.BB.Successors
	}

	for _, id := range checked.Order {
		if consumed[id] {
			continue
		}
		block := blocks[id]
		for _, succ := range controlSucc[id] {
			target, ok := blocks[succ.ID]
			if !ok {
				return nil, diag.Internal(ast.Span{}, "lowering: block %d has unlowered successor %d", id, succ.ID)
			}
			block.Successors = append(block.Successors, target)
		}
	}
	return graph, nil
}

// lowerBlock lowers one ordinary (non-functional) BB into a Block node: an
// Input node sourcing the BB's input row in lexical order, one node per
// residual statement, and an Output node feeding the branch predicate (if
// any) followed by the per-successor output rows, again lexically ordered
// (spec.md §4.8).
func lowerBlock(graph *Graph, parent *Node, cbb *check.CheckedBB, g check.Globals) (*Node, error) {
	block := graph.node(parent, KindBlock, blockLabel(cbb.BB.ID))
	input := graph.node(block, KindInput, "")
	scope := map[string]valueRef{}
	for _, name := range sortedNames(cbb.InputRow) {
		entry := cbb.InputRow[name]
		idx := graph.addOutput(input, name, entry.Type)
		scope[name] = valueRef{Ref{input, idx}, entry.Type}
	}

	bl := &blockCtx{graph: graph, globals: g, block: block, scope: scope}
	for _, stmt := range cbb.BB.Statements {
		if err := lowerStmt(bl, stmt); err != nil {
			return nil, err
		}
	}

	output := graph.node(block, KindOutput, "")
	if len(cbb.BB.Successors) >= 2 {
		predVal, err := lowerExpr(bl, cbb.BB.BranchPred)
		if err != nil {
			return nil, err
		}
		idx := graph.addInput(output, "", predVal.Type)
		graph.wire(predVal.Ref, output, idx)
	}
	for _, row := range cbb.OutputRows {
		for _, name := range sortedNames(row) {
			entry := row[name]
			v, ok := bl.scope[name]
			if !ok {
				return nil, diag.Internal(entry.DefinedAt, "lowering: %q missing from block scope", name)
			}
			idx := graph.addInput(output, name, entry.Type)
			graph.wire(v.Ref, output, idx)
		}
	}
	return block, nil
}

func blockLabel(id int) string { return fmt.Sprintf("bb%d", id) }

// sortedNames returns row's keys in lexical order, the port ordering spec.md
// §4.8 requires for both Input and Output nodes.
func sortedNames(row check.Row) []string {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unionRowNames lexically sorts the union of names across rows, used to size
// a Conditional/TailLoop's shared input ports.
func unionRowNames(rows ...check.Row) []string {
	seen := map[string]bool{}
	var names []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
