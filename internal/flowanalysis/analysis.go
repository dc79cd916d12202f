// Package flowanalysis implements the three classical dataflow analyses the
// type checker and linearity checker depend on (spec.md §4.4): liveness,
// definite assignment, and maybe-assignment, each as a worklist fixed point
// over a cfgbuild.CFG. Grounded on the exact transfer equations of
// original_source/guppy/cfg.py's _analyze_liveness/_analyze_definite_assignment/
// _analyze_maybe_assignment, re-expressed with the deterministic,
// BB-id-ordered iteration idiom of
// _examples/uber-go-nilaway/inference/engine.go's observe/propagate loop.
package flowanalysis

import "github.com/CQCL/guppy-go/internal/cfgbuild"

// Liveness computes live_before for every BB by backward fixed point:
//
//	live_before(exit) = used(exit)
//	live_before(p) ⊇ used(p) ∪ (live_before(b) \ assigned(p))  for every edge p -> b
//
// Results are written into each BB's Vars.LiveBefore.
func Liveness(cfg *cfgbuild.CFG) {
	for _, bb := range cfg.BBs {
		bb.Vars.LiveBefore = map[string]*cfgbuild.BasicBlock{}
	}
	for name := range cfg.ExitBB.Vars.Used {
		cfg.ExitBB.Vars.LiveBefore[name] = cfg.ExitBB
	}

	for changed := true; changed; {
		changed = false
		for i := len(cfg.BBs) - 1; i >= 0; i-- {
			succ := cfg.BBs[i]
			for _, p := range succ.Predecessors {
				if propagateLiveness(p, succ) {
					changed = true
				}
			}
		}
	}
}

// propagateLiveness folds one p -> succ edge's contribution into p's
// live_before set, reporting whether p's set grew.
func propagateLiveness(p, succ *cfgbuild.BasicBlock) bool {
	grew := false
	for name := range p.Vars.Used {
		if _, ok := p.Vars.LiveBefore[name]; !ok {
			p.Vars.LiveBefore[name] = p
			grew = true
		}
	}
	for name, origin := range succ.Vars.LiveBefore {
		if _, assigned := p.Vars.Assigned[name]; assigned {
			continue
		}
		if _, ok := p.Vars.LiveBefore[name]; !ok {
			p.Vars.LiveBefore[name] = origin
			grew = true
		}
	}
	return grew
}

// DefiniteAssignment computes assigned_before for every BB by forward fixed
// point, intersecting at join points:
//
//	assigned_before(entry) = formals ∪ globals
//	assigned_before(succ) ⊆ assigned_before(b) ∪ assigned(b)  for every edge b -> succ
//
// A successor's set only becomes final once every predecessor has
// contributed at least once (an uninitialized predecessor is treated as the
// universal set, i.e. it simply doesn't narrow the intersection yet); the
// fixed-point loop handles this without an explicit "all names" sentinel
// since the set only ever shrinks once seeded. Results are written into
// Vars.AssignedBefore.
func DefiniteAssignment(cfg *cfgbuild.CFG, formals, globals []string) {
	seeded := map[*cfgbuild.BasicBlock]bool{cfg.EntryBB: true}
	cfg.EntryBB.Vars.AssignedBefore = map[string]bool{}
	for _, name := range formals {
		cfg.EntryBB.Vars.AssignedBefore[name] = true
	}
	for _, name := range globals {
		cfg.EntryBB.Vars.AssignedBefore[name] = true
	}

	for changed := true; changed; {
		changed = false
		for _, bb := range cfg.BBs {
			if bb == cfg.EntryBB {
				continue
			}
			var merged map[string]bool
			any := false
			for _, p := range bb.Predecessors {
				if !seeded[p] {
					continue
				}
				after := assignedAfter(p)
				if !any {
					merged = after
					any = true
					continue
				}
				merged = intersectSets(merged, after)
			}
			if !any {
				continue
			}
			if !seeded[bb] || !setsEqual(merged, bb.Vars.AssignedBefore) {
				bb.Vars.AssignedBefore = merged
				seeded[bb] = true
				changed = true
			}
		}
	}
}

func assignedAfter(bb *cfgbuild.BasicBlock) map[string]bool {
	after := map[string]bool{}
	for name := range bb.Vars.AssignedBefore {
		after[name] = true
	}
	for name := range bb.Vars.Assigned {
		after[name] = true
	}
	return after
}

// MaybeAssignment computes maybe_assigned_before for every BB by forward
// union fixed point, excluding names already guaranteed by
// DefiniteAssignment (which must run first): its sole purpose is to let
// diagnostics distinguish "never assigned" from "assigned on some paths"
// (spec.md §4.4, §7).
func MaybeAssignment(cfg *cfgbuild.CFG) {
	for _, bb := range cfg.BBs {
		bb.Vars.MaybeAssignedBefore = map[string]bool{}
	}
	for changed := true; changed; {
		changed = false
		for _, bb := range cfg.BBs {
			if bb == cfg.EntryBB {
				continue
			}
			for _, p := range bb.Predecessors {
				for name := range maybeAssignedAfter(p) {
					if bb.Vars.AssignedBefore[name] {
						continue
					}
					if !bb.Vars.MaybeAssignedBefore[name] {
						bb.Vars.MaybeAssignedBefore[name] = true
						changed = true
					}
				}
			}
		}
	}
}

func maybeAssignedAfter(bb *cfgbuild.BasicBlock) map[string]bool {
	after := map[string]bool{}
	for name := range bb.Vars.MaybeAssignedBefore {
		after[name] = true
	}
	for name := range bb.Vars.Assigned {
		after[name] = true
	}
	return after
}

func intersectSets(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for name := range a {
		if b[name] {
			out[name] = true
		}
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if !b[name] {
			return false
		}
	}
	return true
}

// MaybeAssignedPath is a representative explanation for why name is only
// maybe-assigned at bb: the immediate predecessors that do, and the ones
// that don't, assign it. Surfacing every full path would be exhaustive and
// rarely clearer; one level of predecessors is the same granularity
// original_source's diagnostics use.
type MaybeAssignedPath struct {
	Name            string
	AssigningBBs    []int
	NonAssigningBBs []int
}

// FindMaybeAssignedPath partitions bb's predecessors by whether they
// guarantee name assigned. Requires DefiniteAssignment and MaybeAssignment
// to have already run.
func FindMaybeAssignedPath(bb *cfgbuild.BasicBlock, name string) *MaybeAssignedPath {
	path := &MaybeAssignedPath{Name: name}
	for _, p := range bb.Predecessors {
		definite := p.Vars.AssignedBefore[name] || p.Vars.Assigned[name] != nil
		if definite {
			path.AssigningBBs = append(path.AssigningBBs, p.ID)
		} else {
			path.NonAssigningBBs = append(path.NonAssigningBBs, p.ID)
		}
	}
	return path
}
