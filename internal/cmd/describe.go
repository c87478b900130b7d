package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
)

func newDescribeCmd(registry *plugin.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [method]",
		Short: "Print method registrations as YAML",
		Long: `Print the inputs, parameters (with defaults, ranges and choices) and
outputs of every method, or of the named one.`,
		Args:      usageArgs(cobra.MaximumNArgs(1)),
		ValidArgs: []string{plugin.MethodFull, plugin.MethodCustomTree},
		RunE: func(cmd *cobra.Command, args []string) error {
			var v any = registry
			if len(args) == 1 {
				m, err := registry.Method(args[0])
				if err != nil {
					return err
				}
				v = m
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
