// Package modcompile implements whole-module compilation: running the full
// CFG-build/flow-analysis/check/lower pipeline independently over every
// function declaration in a module. spec.md §5 scopes the core pipeline to
// one function body at a time but says nothing against compiling a module's
// independent function bodies concurrently once Globals is frozen ("treated
// as immutable once compilation starts"). Grounded on
// _examples/uber-go-nilaway/tools/go.mod's transitive golang.org/x/sync
// dependency, the errgroup fan-out idiom used across the corpus for
// first-error-cancels concurrent work.
package modcompile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/CQCL/guppy-go/internal/ast"
	"github.com/CQCL/guppy-go/internal/cfgbuild"
	"github.com/CQCL/guppy-go/internal/check"
	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/flowanalysis"
	"github.com/CQCL/guppy-go/internal/lower"
)

// FunctionDecl is one function body to compile: its name, declared
// signature, and residual statement list, plus the span attributed to its
// formals (spec.md §4.5's entrySpan) for diagnostics that have no better
// location.
type FunctionDecl struct {
	Name       string
	Signature  check.FunctionSignature
	Body       []ast.Stmt
	NumReturns int
	Span       ast.Span
}

// CompileModule runs cfgbuild → flowanalysis → check → lower independently
// for every declaration in decls, one goroutine each via errgroup (first
// error cancels the rest, preserving §7's first-error-aborts policy at
// module scope), then merges the per-function graphs with lower.MergeModule
// in decls' order for deterministic output (§8 property 4). g must already
// be frozen: every goroutine only reads it, never mutates it.
func CompileModule(ctx context.Context, decls []FunctionDecl, g check.Globals) (*lower.Graph, error) {
	graphs := make([]*lower.Graph, len(decls))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, d := range decls {
		i, d := i, d
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			graph, err := compileOne(d, g)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			graphs[i] = graph
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return lower.MergeModule(graphs), nil
}

func compileOne(d FunctionDecl, g check.Globals) (graph *lower.Graph, err error) {
	// An internal invariant violation panics where it is detected; it is
	// recovered here and reported as a KindInternal diagnostic.
	defer func() {
		if r := recover(); r != nil {
			graph, err = nil, diag.Recover(r, d.Span)
		}
	}()
	cfg := cfgbuild.NewBuilder().Build(d.Body, d.NumReturns)
	flowanalysis.Liveness(cfg)
	flowanalysis.DefiniteAssignment(cfg, paramNames(d.Signature), nil)
	flowanalysis.MaybeAssignment(cfg)

	checked, err := check.CheckCFG(cfg, d.Signature, d.Span, g)
	if err != nil {
		return nil, err
	}
	return lower.Function(checked, g, d.Name)
}

func paramNames(fn check.FunctionSignature) []string {
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
	}
	return names
}
