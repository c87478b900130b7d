package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/picrust2-runner/internal/config"
	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify picrust2-runner configuration",
		Long: `View or modify picrust2-runner configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
		RunE: runConfigShow,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE:  runConfigShow,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  picrust2-runner config set pipeline.threads 8
  picrust2-runner config set toolchain.dialect legacy
  picrust2-runner config set toolchain.traits EC,KO,COG

The resulting configuration is validated before it is saved.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: runConfigSet,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  `Create a default config file at $XDG_CONFIG_HOME/picrust2-runner/config.yaml with all available options.`,
		RunE:  runConfigInit,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		RunE:  runConfigPath,
	})

	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// parseConfigValue converts value to the type of key's current setting.
func parseConfigValue(key, value string) (any, error) {
	switch current := viper.Get(key).(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, errors.NewValidationError("expected true or false").WithField(key).WithValue(value)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.NewValidationError("expected an integer").WithField(key).WithValue(value)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errors.NewValidationError("expected a number").WithField(key).WithValue(value)
		}
		return f, nil
	case []string, []any:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	case string:
		return value, nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("cannot set a value of type %T", current)).WithField(key)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := args[1]

	// Validate the key exists
	if !slices.Contains(viper.AllKeys(), key) {
		return errors.NewValidationError("unknown configuration key; run 'picrust2-runner config show' to see valid keys").WithField(key)
	}

	typedValue, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	// Ensure config directory exists
	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	// Write to config file
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

const configHeader = `# picrust2-runner configuration
#
# pipeline:  parameter defaults; command-line flags override them
# toolchain: dialect is "current" (PICRUSt2 2.1+) or "legacy" (2.0 betas);
#            bin_dir is searched before PATH
# workspace: root is where scratch directories are created (empty: system temp)
# output:    format is "tsv" or "biom"
# logging:   level is one of debug, info, warn, error
#
# Every key can be overridden with an environment variable, e.g.
# PICRUST2_RUNNER_PIPELINE_THREADS=8

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return errors.NewValidationError("config file already exists; use 'picrust2-runner config set' to modify values").
			WithField("config").WithValue(configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, append([]byte(configHeader), data...), 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize picrust2-runner's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_TOOLCHAIN_DIALECT)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
