// Package cmd implements the picrust2-runner command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/picrust2-runner/internal/config"
	"github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/logging"
	"github.com/Iron-Ham/picrust2-runner/internal/pipeline"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// Overridden in tests.
var (
	toolchainExecutor toolchain.Executor
	toolchainLookPath toolchain.LookPathFunc
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "picrust2-runner",
		Short: "Run the PICRUSt2 pipeline on marker gene data",
		Long: `picrust2-runner predicts KEGG ortholog and EC number metagenomes and
MetaCyc pathway abundances from a marker gene abundance table.

Inputs are written to a scratch workspace, the PICRUSt2 programs are run
there, and the unstratified output tables are read back and written to
the output directory. The workspace is always removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          unknownCommand,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SuggestionsMinimumDistance = 2
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/picrust2-runner/config.yaml)")

	registry := plugin.Default()
	for _, m := range registry.Methods {
		root.AddCommand(newMethodCmd(m))
	}
	root.AddCommand(newCheckCmd())
	root.AddCommand(newDescribeCmd(registry))
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

// reportError prints err to w. Errors that are not meant for users are
// written to the log with their severity and only summarized on w.
func reportError(w io.Writer, err error) {
	if errors.IsUserFacing(err) {
		fmt.Fprintln(w, errorStyle.Render("Error:"), err)
		return
	}

	cfg := config.Get()
	if cfg.Logging.Enabled {
		if logger, logErr := openLogger(cfg); logErr == nil {
			logger.Error("internal error", "error", err.Error(), "severity", errors.GetSeverity(err).String())
			_ = logger.Close()
			logFile := filepath.Join(cfg.Logging.ResolveDir(), logging.LogFileName)
			fmt.Fprintln(w, errorStyle.Render("Error:"), "internal error, see "+logFile)
			return
		}
	}
	fmt.Fprintln(w, errorStyle.Render("Error:"), "internal error:", err)
}

// usageError marks a command line mistake as a user-facing error.
func usageError(err error) error {
	if err == nil {
		return nil
	}
	return errors.NewValidationError(err.Error())
}

// usageArgs wraps a positional argument validator with usageError.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(fn(cmd, args))
	}
}

// unknownCommand rejects positional arguments on the root command, which
// can only be misspelled subcommands.
func unknownCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	msg := fmt.Sprintf("unknown command %q for %q", args[0], cmd.CommandPath())
	if suggestions := cmd.SuggestionsFor(args[0]); len(suggestions) > 0 {
		msg += "; did you mean " + strings.Join(suggestions, " or ") + "?"
	}
	return errors.NewValidationError(msg)
}

func initConfig(cmd *cobra.Command) error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., PICRUST2_RUNNER_TOOLCHAIN_DIALECT for toolchain.dialect
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return errors.NewValidationError("failed to read config file").
				WithField("config").WithValue(viper.ConfigFileUsed()).WithCause(err)
		}
	}
	return nil
}

// openLogger opens the log file configured in cfg.
func openLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLoggerWithRotation(cfg.Logging.ResolveDir(), cfg.Logging.Level, cfg.Logging.RotationConfig())
}

// createLogger opens the log file configured in cfg, falling back to a
// no-op logger.
func createLogger(cfg *config.Config) *logging.Logger {
	// Check if logging is enabled
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	logger, err := openLogger(cfg)
	if err != nil {
		// Log creation failure shouldn't prevent the pipeline from running
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}

	return logger
}

// runnerOptions maps the loaded configuration onto pipeline options.
func runnerOptions(cfg *config.Config) ([]pipeline.Option, error) {
	dialect, err := toolchain.LookupDialect(cfg.Toolchain.Dialect)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithDialect(dialect),
		pipeline.WithTraits(cfg.Toolchain.Traits, cfg.Toolchain.PathwayTrait),
		pipeline.WithWorkspace(config.ExpandPath(cfg.Workspace.Root), cfg.Workspace.Prefix),
		pipeline.WithBinDir(config.ExpandPath(cfg.Toolchain.BinDir)),
		pipeline.WithRefDir(config.ExpandPath(cfg.Toolchain.RefDir)),
		pipeline.WithStderrTail(cfg.Toolchain.StderrTailLines),
	}
	if toolchainExecutor != nil {
		opts = append(opts, pipeline.WithExecutor(toolchainExecutor))
	}
	if toolchainLookPath != nil {
		opts = append(opts, pipeline.WithLookPath(toolchainLookPath))
	}
	return opts, nil
}
