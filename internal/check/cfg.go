package check

import (
	"fmt"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/cfgbuild"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/gtypes"
)

// Param is one formal parameter of the function being checked.
type Param struct {
	Name string
	Type gtypes.Type
}

// FunctionSignature is the declared interface of the function body being
// checked: its formals (in declaration order) and result types (spec.md
// §4.5's "formals for the entry BB" and "check against the declared return
// row").
type FunctionSignature struct {
	Params  []Param
	Results []gtypes.Type
}

// CheckedBB is one BB's type-checking result: the row it was entered with,
// and the row it hands to each successor (spec.md §4.5 point 4). Consumed by
// package lower to type the dataflow region's input/output ports.
type CheckedBB struct {
	BB         *cfgbuild.BasicBlock
	InputRow   Row
	OutputRows []Row // indexed like BB.Successors
}

// CheckedCFG is the fully type-checked and linearity-checked CFG (spec.md
// §4.5–§4.7), ready for Dataflow Lowering.
type CheckedCFG struct {
	CFG *cfgbuild.CFG
	BBs map[int]*CheckedBB
	// Order lists BB ids in the order they were first reached, entry first —
	// the BFS order spec.md §4.5 and §5 require for determinism.
	Order []int
}

// CheckCFG type-checks cfg against fn, processing BBs in BFS order from
// entry and reconciling rows at every join (spec.md §4.5–§4.7). Requires
// flowanalysis.Liveness, DefiniteAssignment and MaybeAssignment to have
// already populated cfg's BasicBlock.Vars fields; entrySpan is attributed
// to the function's formals as their definition site.
func CheckCFG(cfg *cfgbuild.CFG, fn FunctionSignature, entrySpan ast.Span, g Globals) (*CheckedCFG, error) {
	entryRow := make(Row, len(fn.Params))
	for _, p := range fn.Params {
		entryRow[p.Name] = RowEntry{Type: p.Type, DefinedAt: entrySpan}
	}

	type pendingEdge struct {
		from *cfgbuild.BasicBlock
		to   *cfgbuild.BasicBlock
		pos  int
	}

	result := &CheckedCFG{CFG: cfg, BBs: map[int]*CheckedBB{}}
	queue := []pendingEdge{{nil, cfg.EntryBB, -1}}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		var inputRow Row
		if e.from == nil {
			inputRow = entryRow
		} else {
			inputRow = result.BBs[e.from.ID].OutputRows[e.pos]
		}

		if existing, ok := result.BBs[e.to.ID]; ok {
			backEdge := e.from != nil && e.from.ID >= e.to.ID
			if err := checkRowsMatch(existing.InputRow, inputRow, backEdge); err != nil {
				return nil, err
			}
			continue
		}

		ctx, err := checkBlockBody(e.to, inputRow, g)
		if err != nil {
			return nil, err
		}

		outputRows := make([]Row, len(e.to.Successors))
		for i, succ := range e.to.Successors {
			outputRows[i] = ctx.row(liveNames(succ))
		}
		cb := &CheckedBB{BB: e.to, InputRow: inputRow, OutputRows: outputRows}
		result.BBs[e.to.ID] = cb
		result.Order = append(result.Order, e.to.ID)

		for i, succ := range e.to.Successors {
			queue = append(queue, pendingEdge{from: e.to, to: succ, pos: i})
		}
	}

	exitCB := result.BBs[cfg.ExitBB.ID]
	if err := checkReturnRow(exitCB.InputRow, fn.Results, entrySpan); err != nil {
		return nil, err
	}
	return result, nil
}

// checkBlockBody runs the per-statement and branch-predicate checks of
// spec.md §4.5 points 2–3 over one BB, then the per-successor linearity
// checks of §4.6.
func checkBlockBody(bb *cfgbuild.BasicBlock, input Row, g Globals) (*Context, error) {
	ctx := newContext(g, input, bb.Vars.MaybeAssignedBefore)
	for _, stmt := range bb.Statements {
		if err := checkStmt(ctx, stmt); err != nil {
			return nil, err
		}
	}
	if len(bb.Successors) >= 2 {
		s := &exprSynth{ctx: ctx}
		predType, err := s.synth(bb.BranchPred)
		if err != nil {
			return nil, err
		}
		if predType.Kind != gtypes.KindBool {
			if _, ok := g.Dispatch(predType, "__bool__"); !ok {
				return nil, diag.New(diag.KindType, bb.BranchPred.Span(),
					"branch condition has type `%s`, which has no `__bool__`", predType.String())
			}
		}
	}
	for _, succ := range bb.Successors {
		if err := checkLinearSuccessor(ctx, succ); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// checkLinearSuccessor implements the two per-successor linearity checks
// spec.md §4.6's join condition requires and original_source/guppy/checker/
// cfg_checker.py's check_bb performs, which row reconciliation alone does
// not subsume: row reconciliation only ever compares two rows that both
// already dropped a fully-leaked variable (liveness removes it from both
// sides once nothing downstream reads it), so a linear value that is simply
// never consumed along one arm of a branch is invisible to checkRowsMatch.
//
//   - A linear variable already consumed (Used != nil) in ctx must not be
//     requested again by succ's live-before set — that would require a
//     second, impossible use further down this very path.
//   - A linear variable never consumed (Used == nil) in ctx must be
//     requested by succ's live-before set, or it silently drops out of
//     scope along this edge without ever being used (the S5 leak).
func checkLinearSuccessor(ctx *Context, succ *cfgbuild.BasicBlock) error {
	live := succ.Vars.LiveBefore
	for name, v := range ctx.vars {
		if !v.Type.Linear() {
			continue
		}
		_, wanted := live[name]
		if v.Used != nil {
			if wanted {
				return diag.New(diag.KindLinearity, v.DefinedAt,
					"`%s` with linear type `%s` was already used", name, v.Type.String()).
					WithSecondary(*v.Used).
					WithNote("used here", v.Used)
			}
			continue
		}
		if !wanted {
			return diag.New(diag.KindLinearity, v.DefinedAt,
				"`%s` with linear type `%s` is not used on all control-flow paths", name, v.Type.String())
		}
	}
	return nil
}

func checkReturnRow(row Row, results []gtypes.Type, fallback ast.Span) error {
	for i, want := range results {
		name := cfgbuild.ReturnVarName(i)
		entry, ok := row[name]
		if !ok {
			return diag.New(diag.KindType, fallback, "missing return value %d of type `%s`", i, want.String())
		}
		if !assignableWithCoercion(want, entry.Type) {
			return diag.New(diag.KindType, entry.DefinedAt,
				"return value %d: expected `%s`, found `%s`", i, want.String(), entry.Type.String())
		}
	}
	return nil
}

// checkRowsMatch implements Row Reconciliation (spec.md §4.7): the two
// predecessor-edge rows reaching the same BB must agree pointwise on names
// and types. A mismatch limited to one linear-typed name present on only
// one side is reworded as the §4.6 join/loop condition violation, since
// that's what it actually signals.
func checkRowsMatch(existing, incoming Row, backEdge bool) error {
	for name, a := range existing {
		b, ok := incoming[name]
		if !ok {
			if a.Type.Linear() {
				return linearPathError(name, a, backEdge)
			}
			return rowMismatchError(name, a)
		}
		if !gtypes.Equal(a.Type, b.Type) {
			earlier, later := diag.First(a.DefinedAt, b.DefinedAt)
			earlierT, laterT := a.Type, b.Type
			if earlier == b.DefinedAt {
				earlierT, laterT = b.Type, a.Type
			}
			return diag.New(diag.KindType, later, "%s can refer to different types: `%s` (at %s) vs `%s` (at %s)",
				displayName(name), earlierT.String(), formatLoc(earlier), laterT.String(), formatLoc(later)).
				WithSecondary(earlier)
		}
	}
	for name, b := range incoming {
		if _, ok := existing[name]; !ok {
			if b.Type.Linear() {
				return linearPathError(name, b, backEdge)
			}
			return rowMismatchError(name, b)
		}
	}
	return nil
}

func linearPathError(name string, entry RowEntry, backEdge bool) error {
	if backEdge {
		return diag.New(diag.KindLinearity, entry.DefinedAt,
			"%s with linear type `%s` is defined inside the loop body and leaks across the back-edge",
			displayName(name), entry.Type.String())
	}
	return diag.New(diag.KindLinearity, entry.DefinedAt,
		"%s with linear type `%s` is not used on all control-flow paths", displayName(name), entry.Type.String())
}

func rowMismatchError(name string, entry RowEntry) error {
	return diag.New(diag.KindType, entry.DefinedAt,
		"%s is not defined on all incoming paths to this point", displayName(name))
}

func formatLoc(span ast.Span) string {
	return fmt.Sprintf("%s:%d:%d", span.Start.File, span.Start.Line, span.Start.Col)
}

// displayName renders a row-reconciliation subject, rendering compiler
// temporaries as "Expression" to keep messages user-facing (spec.md §4.7).
func displayName(name string) string {
	if len(name) > 0 && name[0] == '%' {
		return "Expression"
	}
	return "`" + name + "`"
}

// liveNames adapts a BasicBlock's Vars.LiveBefore (name -> origin block) to
// the plain name-set Context.row needs.
func liveNames(bb *cfgbuild.BasicBlock) map[string]bool {
	names := make(map[string]bool, len(bb.Vars.LiveBefore))
	for name := range bb.Vars.LiveBefore {
		names[name] = true
	}
	return names
}
