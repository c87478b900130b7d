package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/logging"
	"github.com/Iron-Ham/picrust2-runner/internal/pipeline"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
	"github.com/Iron-Ham/picrust2-runner/internal/workspace"
)

// AppName names the config directory and log file.
const AppName = "picrust2-runner"

// EnvPrefix is the prefix of environment variable overrides,
// e.g. PICRUST2_RUNNER_PIPELINE_THREADS.
const EnvPrefix = "PICRUST2_RUNNER"

// Config represents the complete picrust2-runner configuration
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Toolchain ToolchainConfig `mapstructure:"toolchain" yaml:"toolchain"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// PipelineConfig holds parameter defaults; command-line flags override them.
type PipelineConfig struct {
	Threads       int     `mapstructure:"threads" yaml:"threads"`
	HSPMethod     string  `mapstructure:"hsp_method" yaml:"hsp_method"`
	PlacementTool string  `mapstructure:"placement_tool" yaml:"placement_tool"`
	MinAlign      float64 `mapstructure:"min_align" yaml:"min_align"`
	MaxNSTI       float64 `mapstructure:"max_nsti" yaml:"max_nsti"`
	EdgeExponent  float64 `mapstructure:"edge_exponent" yaml:"edge_exponent"`
	MinReads      int     `mapstructure:"min_reads" yaml:"min_reads"`
	MinSamples    int     `mapstructure:"min_samples" yaml:"min_samples"`
	SkipMinPath   bool    `mapstructure:"skip_minpath" yaml:"skip_minpath"`
	NoGapFill     bool    `mapstructure:"no_gap_fill" yaml:"no_gap_fill"`
	SkipNorm      bool    `mapstructure:"skip_norm" yaml:"skip_norm"`
	NoPathways    bool    `mapstructure:"no_pathways" yaml:"no_pathways"`
	Coverage      bool    `mapstructure:"coverage" yaml:"coverage"`
	HighlyVerbose bool    `mapstructure:"highly_verbose" yaml:"highly_verbose"`
}

// ToolchainConfig controls how the external programs are found and called
type ToolchainConfig struct {
	// Dialect is "current" (PICRUSt2 2.1+) or "legacy" (2.0 betas)
	Dialect string `mapstructure:"dialect" yaml:"dialect"`
	// BinDir is searched for the programs before PATH. Supports ~.
	BinDir string `mapstructure:"bin_dir" yaml:"bin_dir"`
	// RefDir is passed to place_seqs.py as -r when set. Supports ~.
	RefDir string `mapstructure:"ref_dir" yaml:"ref_dir"`
	// Traits are the predicted trait categories (default: EC, KO)
	Traits []string `mapstructure:"traits" yaml:"traits"`
	// PathwayTrait feeds pathway inference and must be one of Traits
	PathwayTrait string `mapstructure:"pathway_trait" yaml:"pathway_trait"`
	// StderrTailLines is how much stderr a stage failure reports (default: 20)
	StderrTailLines int `mapstructure:"stderr_tail_lines" yaml:"stderr_tail_lines"`
}

// WorkspaceConfig controls the per-call scratch directory
type WorkspaceConfig struct {
	// Root is where workspaces are created; empty means the system temp dir
	Root string `mapstructure:"root" yaml:"root"`
	// Prefix starts every workspace directory name
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// OutputConfig controls how result tables are written
type OutputConfig struct {
	// Format is "tsv" or "biom" (JSON)
	Format string `mapstructure:"format" yaml:"format"`
	// Compress gzips every written table
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig controls file logging
type LoggingConfig struct {
	// Enabled writes a JSON log file (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir holds the log file; empty means <config dir>/logs. Supports ~.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated backups
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	p := pipeline.DefaultParams()
	rotation := logging.DefaultRotationConfig()
	return &Config{
		Pipeline: PipelineConfig{
			Threads:       p.Threads,
			HSPMethod:     p.HSPMethod,
			PlacementTool: p.PlacementTool,
			MinAlign:      p.MinAlign,
			MaxNSTI:       p.MaxNSTI,
			EdgeExponent:  p.EdgeExponent,
			MinReads:      p.MinReads,
			MinSamples:    p.MinSamples,
		},
		Toolchain: ToolchainConfig{
			Dialect:         toolchain.DefaultDialect,
			Traits:          slices.Clone(pipeline.DefaultTraits),
			PathwayTrait:    pipeline.DefaultPathwayTrait,
			StderrTailLines: pipeline.DefaultStderrTail,
		},
		Workspace: WorkspaceConfig{
			Prefix: workspace.DefaultPrefix,
		},
		Output: OutputConfig{
			Format: string(table.FormatTSV),
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Pipeline defaults
	viper.SetDefault("pipeline.threads", defaults.Pipeline.Threads)
	viper.SetDefault("pipeline.hsp_method", defaults.Pipeline.HSPMethod)
	viper.SetDefault("pipeline.placement_tool", defaults.Pipeline.PlacementTool)
	viper.SetDefault("pipeline.min_align", defaults.Pipeline.MinAlign)
	viper.SetDefault("pipeline.max_nsti", defaults.Pipeline.MaxNSTI)
	viper.SetDefault("pipeline.edge_exponent", defaults.Pipeline.EdgeExponent)
	viper.SetDefault("pipeline.min_reads", defaults.Pipeline.MinReads)
	viper.SetDefault("pipeline.min_samples", defaults.Pipeline.MinSamples)
	viper.SetDefault("pipeline.skip_minpath", defaults.Pipeline.SkipMinPath)
	viper.SetDefault("pipeline.no_gap_fill", defaults.Pipeline.NoGapFill)
	viper.SetDefault("pipeline.skip_norm", defaults.Pipeline.SkipNorm)
	viper.SetDefault("pipeline.no_pathways", defaults.Pipeline.NoPathways)
	viper.SetDefault("pipeline.coverage", defaults.Pipeline.Coverage)
	viper.SetDefault("pipeline.highly_verbose", defaults.Pipeline.HighlyVerbose)

	// Toolchain defaults
	viper.SetDefault("toolchain.dialect", defaults.Toolchain.Dialect)
	viper.SetDefault("toolchain.bin_dir", defaults.Toolchain.BinDir)
	viper.SetDefault("toolchain.ref_dir", defaults.Toolchain.RefDir)
	viper.SetDefault("toolchain.traits", defaults.Toolchain.Traits)
	viper.SetDefault("toolchain.pathway_trait", defaults.Toolchain.PathwayTrait)
	viper.SetDefault("toolchain.stderr_tail_lines", defaults.Toolchain.StderrTailLines)

	// Workspace defaults
	viper.SetDefault("workspace.root", defaults.Workspace.Root)
	viper.SetDefault("workspace.prefix", defaults.Workspace.Prefix)

	// Output defaults
	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.compress", defaults.Output.Compress)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.NewValidationError("failed to decode configuration").WithCause(err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// the loaded configuration is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Params converts the pipeline section into call parameters.
func (p PipelineConfig) Params() pipeline.Params {
	return pipeline.Params{
		Threads:       p.Threads,
		HSPMethod:     p.HSPMethod,
		PlacementTool: p.PlacementTool,
		MinAlign:      p.MinAlign,
		MaxNSTI:       p.MaxNSTI,
		EdgeExponent:  p.EdgeExponent,
		MinReads:      p.MinReads,
		MinSamples:    p.MinSamples,
		SkipMinPath:   p.SkipMinPath,
		NoGapFill:     p.NoGapFill,
		SkipNorm:      p.SkipNorm,
		NoPathways:    p.NoPathways,
		Coverage:      p.Coverage,
		HighlyVerbose: p.HighlyVerbose,
	}
}

// RotationConfig returns the log rotation settings.
func (l LoggingConfig) RotationConfig() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		Compress:   l.Compress,
	}
}

// ResolveDir returns the directory the log file is written to.
func (l LoggingConfig) ResolveDir() string {
	if l.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return ExpandPath(l.Dir)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	// Fall back to ~/.config/picrust2-runner
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
