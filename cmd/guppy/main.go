// cmd/guppy is a thin cobra-based harness around the core pipeline
// (cfgbuild → flowanalysis → check → lower, fanned out over a module's
// functions by modcompile). It does not parse source text: the surface
// parser, module loader, and pretty-printer are out of scope (spec.md §1),
// so it only drives pre-built fixtures (see fixtures.go) through the
// pipeline for local use and smoke-testing. Grounded on
// _examples/opal-lang-opal's runtime/cli.CLIHarness (persistent root flags,
// AddCommand subcommand tree) and cli/main.go's SilenceErrors/SilenceUsage
// pattern for custom error rendering instead of cobra's default usage dump.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CQCL/guppy-go/internal/guppyconfig"
)

// rootFlags holds the persistent flags every subcommand reads, mirroring
// CLIHarness's dryRun/noColor fields.
type rootFlags struct {
	configPath   string
	noColor      bool
	globalsCache string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "guppy",
		Short:         "Guppy compiler front-end pipeline driver",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to guppy.toml (optional)")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored diagnostic output")
	root.PersistentFlags().StringVar(&flags.globalsCache, "globals-cache", "", "path to an on-disk globals registry cache")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flags.configPath == "" {
			return nil
		}
		cfg, err := guppyconfig.Load(flags.configPath)
		if err != nil {
			return err
		}
		if flags.globalsCache == "" {
			flags.globalsCache = cfg.GlobalsCachePath
		}
		return nil
	}

	root.AddCommand(newCheckCmd(flags))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
