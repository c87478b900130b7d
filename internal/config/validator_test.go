package config

import (
	"math"
	"strings"
	"testing"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestValidationErrors_MatchesInvalidInput(t *testing.T) {
	var err error = ValidationErrors{{Field: "output.format", Value: "csv", Message: "bad"}}
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Error("ValidationErrors should match ErrInvalidInput")
	}
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

// hasFieldError reports whether errs contains an error for field.
func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate_Pipeline(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero threads", func(c *Config) { c.Pipeline.Threads = 0 }, "pipeline.threads"},
		{"unknown hsp method", func(c *Config) { c.Pipeline.HSPMethod = "bayes" }, "pipeline.hsp_method"},
		{"unknown placement tool", func(c *Config) { c.Pipeline.PlacementTool = "pplacer" }, "pipeline.placement_tool"},
		{"min_align above one", func(c *Config) { c.Pipeline.MinAlign = 1.5 }, "pipeline.min_align"},
		{"min_align negative", func(c *Config) { c.Pipeline.MinAlign = -0.1 }, "pipeline.min_align"},
		{"max_nsti NaN", func(c *Config) { c.Pipeline.MaxNSTI = math.NaN() }, "pipeline.max_nsti"},
		{"negative max_nsti", func(c *Config) { c.Pipeline.MaxNSTI = -1 }, "pipeline.max_nsti"},
		{"negative edge_exponent", func(c *Config) { c.Pipeline.EdgeExponent = -0.5 }, "pipeline.edge_exponent"},
		{"zero min_reads", func(c *Config) { c.Pipeline.MinReads = 0 }, "pipeline.min_reads"},
		{"zero min_samples", func(c *Config) { c.Pipeline.MinSamples = 0 }, "pipeline.min_samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if !hasFieldError(errs, tt.field) {
				t.Errorf("Validate() = %v, want error for %s", errs, tt.field)
			}
		})
	}
}

func TestConfig_Validate_PipelineBoundaries(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MinAlign = 0
	cfg.Pipeline.MaxNSTI = 0
	cfg.Pipeline.EdgeExponent = 0
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("zero bounds should be valid, got %v", errs)
	}

	cfg.Pipeline.MinAlign = 0.99
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("min_align=0.99 should be valid, got %v", errs)
	}

	cfg.Pipeline.MinAlign = 1
	if !hasFieldError(cfg.Validate(), "pipeline.min_align") {
		t.Error("min_align=1 should be rejected")
	}
}

func TestConfig_Validate_LegacyDialect(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		cfg.Toolchain.Dialect = "legacy"
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("Validate() = %v, want none", errs)
		}
	})

	t.Run("pathway toggles rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Toolchain.Dialect = "legacy"
		cfg.Pipeline.SkipMinPath = true
		cfg.Pipeline.NoGapFill = true
		errs := cfg.Validate()
		if !hasFieldError(errs, "pipeline.skip_minpath") || !hasFieldError(errs, "pipeline.no_gap_fill") {
			t.Errorf("Validate() = %v, want skip_minpath and no_gap_fill errors", errs)
		}
	})

	t.Run("pathway toggles allowed without pathways", func(t *testing.T) {
		cfg := Default()
		cfg.Toolchain.Dialect = "legacy"
		cfg.Pipeline.SkipMinPath = true
		cfg.Pipeline.NoPathways = true
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("Validate() = %v, want none", errs)
		}
	})

	t.Run("metagenome filters rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Toolchain.Dialect = "legacy"
		cfg.Pipeline.MinReads = 5
		if !hasFieldError(cfg.Validate(), "pipeline.min_reads") {
			t.Error("min_reads=5 should be rejected for the legacy dialect")
		}
	})
}

func TestConfig_Validate_Toolchain(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		field    string
		hasError bool
	}{
		{"unknown dialect", func(c *Config) { c.Toolchain.Dialect = "v3" }, "toolchain.dialect", true},
		{"empty dialect uses default", func(c *Config) { c.Toolchain.Dialect = "" }, "toolchain.dialect", false},
		{"no traits", func(c *Config) { c.Toolchain.Traits = nil }, "toolchain.traits", true},
		{"marker trait", func(c *Config) { c.Toolchain.Traits = []string{"EC", "16S"} }, "toolchain.traits[1]", true},
		{"duplicate trait", func(c *Config) { c.Toolchain.Traits = []string{"EC", "EC"} }, "toolchain.traits[1]", true},
		{"blank trait", func(c *Config) { c.Toolchain.Traits = []string{"EC", " "} }, "toolchain.traits[1]", true},
		{"slash in trait", func(c *Config) { c.Toolchain.Traits = []string{"EC", "a/b"} }, "toolchain.traits[1]", true},
		{"extra trait", func(c *Config) { c.Toolchain.Traits = []string{"EC", "KO", "COG"} }, "toolchain.traits", false},
		{"pathway trait missing", func(c *Config) { c.Toolchain.PathwayTrait = "COG" }, "toolchain.pathway_trait", true},
		{"negative stderr tail", func(c *Config) { c.Toolchain.StderrTailLines = -1 }, "toolchain.stderr_tail_lines", true},
		{"zero stderr tail", func(c *Config) { c.Toolchain.StderrTailLines = 0 }, "toolchain.stderr_tail_lines", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if got := hasFieldError(errs, tt.field); got != tt.hasError {
				t.Errorf("Validate() = %v: hasError(%s)=%v, want %v", errs, tt.field, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_PathwayTraitIgnoredWithoutPathways(t *testing.T) {
	cfg := Default()
	cfg.Toolchain.Traits = []string{"KO"}
	cfg.Pipeline.NoPathways = true
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want none", errs)
	}
}

func TestConfig_Validate_Workspace(t *testing.T) {
	t.Run("prefix with separator", func(t *testing.T) {
		cfg := Default()
		cfg.Workspace.Prefix = "a/b"
		if !hasFieldError(cfg.Validate(), "workspace.prefix") {
			t.Error("prefix with separator should be invalid")
		}
	})

	t.Run("root with null byte", func(t *testing.T) {
		cfg := Default()
		cfg.Workspace.Root = "/tmp/\x00bad"
		if !hasFieldError(cfg.Validate(), "workspace.root") {
			t.Error("root with null byte should be invalid")
		}
	})

	t.Run("custom root and empty prefix", func(t *testing.T) {
		cfg := Default()
		cfg.Workspace.Root = t.TempDir()
		cfg.Workspace.Prefix = ""
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("Validate() = %v, want none", errs)
		}
	})
}

func TestConfig_Validate_Output(t *testing.T) {
	tests := []struct {
		format   string
		hasError bool
	}{
		{"tsv", false},
		{"biom", false},
		{"csv", true},
		{"hdf5", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := Default()
			cfg.Output.Format = tt.format
			if got := hasFieldError(cfg.Validate(), "output.format"); got != tt.hasError {
				t.Errorf("format=%q: hasError=%v, want %v", tt.format, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		field    string
		hasError bool
	}{
		{"debug level", func(c *Config) { c.Logging.Level = "debug" }, "logging.level", false},
		{"upper case level", func(c *Config) { c.Logging.Level = "WARN" }, "logging.level", false},
		{"empty level", func(c *Config) { c.Logging.Level = "" }, "logging.level", false},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level", true},
		{"negative max size", func(c *Config) { c.Logging.MaxSizeMB = -1 }, "logging.max_size_mb", true},
		{"rotation disabled", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb", false},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -2 }, "logging.max_backups", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if got := hasFieldError(cfg.Validate(), tt.field); got != tt.hasError {
				t.Errorf("hasError(%s)=%v, want %v", tt.field, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Threads = 0
	cfg.Toolchain.Dialect = "bogus"
	cfg.Output.Format = "xml"
	cfg.Logging.MaxBackups = -1

	errs := cfg.Validate()
	for _, field := range []string{"pipeline.threads", "toolchain.dialect", "output.format", "logging.max_backups"} {
		if !hasFieldError(errs, field) {
			t.Errorf("Validate() missing error for %s: %v", field, errs)
		}
	}
}
