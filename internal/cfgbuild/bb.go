// Package cfgbuild implements the CFG Builder, Expression Builder, and
// Branch Builder (spec.md §4.1–§4.3): lowering a function body's statement
// list into a control-flow graph of basic blocks, flattening expressions
// with control flow into CFG structure along the way. Grounded on
// _examples/original_source/guppy/cfg.py for the exact control structure,
// and on the arena-of-blocks idiom of
// _examples/uber-go-nilaway/assertion/function/preprocess/cfg.go (integer
// ids as edges, never owning pointers; §9 design note).
package cfgbuild

import (
	"github.com/CQCL/guppy-go/internal/ast"
)

// ReturnVarName is the name of the i-th dummy return variable synthesized
// for a return statement (spec.md §3, "dummy return variables").
func ReturnVarName(i int) string {
	return "%ret_" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := [20]byte{}
	pos := len(digits)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		digits[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		digits[pos] = '-'
	}
	return string(digits[pos:])
}

// VarState is the per-block variable bookkeeping consumed by the program
// analyses (spec.md §3's BasicBlock.vars).
type VarState struct {
	// Used maps a variable name to the node where it was first read in this
	// block (only names not already assigned earlier in the block — see
	// UpdateUsed).
	Used map[string]ast.Node
	// Assigned maps a variable name to the node that assigned it (last
	// assignment wins for in-block tracking; the analyses only care about
	// set membership).
	Assigned map[string]ast.Node

	// LiveBefore maps a name to the block that is responsible for it being
	// live (the first assignment-less use found during backward
	// propagation); computed by flowanalysis.Liveness.
	LiveBefore map[string]*BasicBlock
	// AssignedBefore is the set of names guaranteed assigned on every path
	// reaching this block; computed by flowanalysis.DefiniteAssignment.
	AssignedBefore map[string]bool
	// MaybeAssignedBefore is the set of names assigned on *some* but not all
	// paths reaching this block; computed by flowanalysis.MaybeAssignment.
	MaybeAssignedBefore map[string]bool
}

func newVarState() *VarState {
	return &VarState{Used: map[string]ast.Node{}, Assigned: map[string]ast.Node{}}
}

// UpdateUsed records node as the first use of each name it reads, skipping
// names already assigned earlier in this block (a local variable shadowing
// an outer read). Mirrors BB.vars.update_used in cfg.py.
func (v *VarState) UpdateUsed(node ast.Node, names []string) {
	for _, name := range names {
		if _, assigned := v.Assigned[name]; assigned {
			continue
		}
		if _, used := v.Used[name]; used {
			continue
		}
		v.Used[name] = node
	}
}

// BasicBlock is one node of the CFG arena (spec.md §3). Blocks are never
// referenced by pointer identity across CFGs; within one CFG they are only
// ever referenced by *BasicBlock since the arena owns them for the CFG's
// lifetime (mirrors nilaway's cfg.Block arena discipline).
type BasicBlock struct {
	ID int

	// Statements holds the (possibly rewritten) residual statements of this
	// block, in source order.
	Statements []ast.Stmt

	// BranchPred is the branch predicate expression when len(Successors) > 1,
	// nil for a single-successor or exit block.
	BranchPred ast.Expr

	Successors   []*BasicBlock
	Predecessors []*BasicBlock

	// Functional marks a branch head (an If or While's test block) as
	// carrying the `_ @ functional` opt-in (spec.md §4.1, §5): the lowering
	// stage should emit this construct as a structured Conditional/TailLoop
	// node instead of the default per-BB dataflow regions.
	Functional bool

	Vars *VarState
}

func newBasicBlock(id int) *BasicBlock {
	return &BasicBlock{ID: id, Vars: newVarState()}
}

// CFG is the control-flow graph for one function body (spec.md §3). Entry
// has no predecessors; exit has no successors. Successor order is
// significant: index 0 is the "true"/head/continue-target branch, index 1 is
// "false"/tail for a two-successor block (spec.md §3).
type CFG struct {
	BBs     []*BasicBlock
	EntryBB *BasicBlock
	ExitBB  *BasicBlock
}

// NewCFG creates an empty CFG with just the entry and exit blocks.
func NewCFG() *CFG {
	cfg := &CFG{}
	cfg.EntryBB = cfg.NewBB()
	cfg.ExitBB = cfg.NewBB()
	return cfg
}

// NewBB appends a fresh, unconnected block to the arena.
func (c *CFG) NewBB() *BasicBlock {
	bb := newBasicBlock(len(c.BBs))
	c.BBs = append(c.BBs, bb)
	return bb
}

// NewBBWithPred appends a fresh block with a single predecessor already
// linked.
func (c *CFG) NewBBWithPred(pred *BasicBlock) *BasicBlock {
	bb := c.NewBB()
	c.Link(pred, bb)
	return bb
}

// NewBBWithPreds appends a fresh block with the given predecessors already
// linked (used for join/merge blocks, spec.md §4.1).
func (c *CFG) NewBBWithPreds(preds ...*BasicBlock) *BasicBlock {
	bb := c.NewBB()
	for _, p := range preds {
		c.Link(p, bb)
	}
	return bb
}

// Link adds a control-flow edge from src to tgt, appending tgt to src's
// successor list (so successor order reflects call order — callers must
// call Link for the true branch before the false branch, etc).
func (c *CFG) Link(src, tgt *BasicBlock) {
	src.Successors = append(src.Successors, tgt)
	tgt.Predecessors = append(tgt.Predecessors, src)
}
