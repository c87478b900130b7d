package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/picrust2-runner/internal/config"
	"github.com/Iron-Ham/picrust2-runner/internal/pipeline"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

func newCheckCmd() *cobra.Command {
	var (
		method string
		binDir string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the PICRUSt2 programs can be found",
		Long: `Resolve every program a method would run and report where each one was
found. Exits non-zero when any program is missing.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bin-dir") {
				cfg.Toolchain.BinDir = binDir
			}
			return runCheck(cmd, cfg, method)
		},
	}

	cmd.Flags().StringVar(&method, "method", plugin.MethodFull, "method whose programs are checked (full or custom-tree)")
	cmd.Flags().StringVar(&binDir, "bin-dir", "", "directory searched for the PICRUSt2 programs before PATH")

	return cmd
}

func runCheck(cmd *cobra.Command, cfg *config.Config, method string) error {
	opts, err := runnerOptions(cfg)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(opts...)

	plan, err := runner.Plan(method, cfg.Pipeline.Params())
	if err != nil {
		return err
	}

	resolver := toolchain.NewResolver(config.ExpandPath(cfg.Toolchain.BinDir))
	if toolchainLookPath != nil {
		resolver.LookPath = toolchainLookPath
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Programs for %s (%s dialect):\n", method, cfg.Toolchain.Dialect)
	for _, program := range plan.Programs() {
		path, err := resolver.Resolve(program)
		if err != nil {
			fmt.Fprintf(out, "  ✗ %-24s not found\n", program)
			continue
		}
		fmt.Fprintf(out, "  ✓ %-24s %s\n", program, path)
	}

	return runner.CheckDependencies(plan)
}
