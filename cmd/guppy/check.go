package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/CQCL/guppy-go/internal/diag"
	"github.com/CQCL/guppy-go/internal/globals"
	"github.com/CQCL/guppy-go/internal/lower"
	"github.com/CQCL/guppy-go/internal/modcompile"
)

func newCheckCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [fixture...]",
		Short: "Run the pipeline over one or more built-in fixtures",
		Long: "check drives cfgbuild/flowanalysis/check/lower over the named " +
			"fixtures (all of them if none are named) and reports either a " +
			"summary of the lowered IR or the first diagnostic raised.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, root)
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, root *rootFlags) error {
	names := args
	if len(names) == 0 {
		names = sortedFixtureNames()
	}

	decls := make([]modcompile.FunctionDecl, 0, len(names))
	for _, n := range names {
		d, ok := fixtures[n]
		if !ok {
			return fmt.Errorf("no such fixture %q (known: %v)", n, sortedFixtureNames())
		}
		decls = append(decls, d)
	}

	g, err := loadGlobals(root.globalsCache)
	if err != nil {
		return fmt.Errorf("loading globals: %w", err)
	}

	graph, err := modcompile.CompileModule(context.Background(), decls, g)
	if err != nil {
		var diagErr *diag.Error
		if errors.As(err, &diagErr) {
			renderDiag(os.Stderr, diagErr, root.noColor)
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return fmt.Errorf("check failed")
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), graph)
	return nil
}

func sortedFixtureNames() []string {
	names := make([]string, 0, len(fixtures))
	for n := range fixtures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func loadGlobals(cachePath string) (*globals.Registry, error) {
	if cachePath == "" {
		return globals.Prelude(), nil
	}
	if _, err := os.Stat(cachePath); err == nil {
		return globals.LoadCache(cachePath)
	}
	g := globals.Prelude()
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, err
	}
	if err := globals.SaveCache(cachePath, g); err != nil {
		return nil, err
	}
	return g, nil
}

func printSummary(w io.Writer, graph *lower.Graph) {
	fmt.Fprintf(w, "module: %d node(s), %d def(s)\n", len(graph.Nodes), len(graph.Root.Children))
	for _, def := range graph.Root.Children {
		fmt.Fprintf(w, "  %s: %s\n", def.Label, summarizeDef(def))
	}
}

func summarizeDef(def *lower.Node) string {
	counts := map[lower.NodeKind]int{}
	var walk func(n *lower.Node)
	walk = func(n *lower.Node) {
		counts[n.Kind]++
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(def)
	return fmt.Sprintf("%d block(s), %d conditional(s), %d loop(s), %d call(s)",
		counts[lower.KindBlock], counts[lower.KindConditional], counts[lower.KindTailLoop], counts[lower.KindCall])
}
