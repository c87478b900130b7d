package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/logging"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "pipeline.threads")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is makes configuration failures match errors.ErrInvalidInput.
func (e ValidationErrors) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return logging.ValidLevels()
}

// ValidOutputFormats returns the list of valid output table formats
func ValidOutputFormats() []string {
	return []string{string(table.FormatTSV), string(table.FormatBIOM)}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validatePipeline()...)
	errs = append(errs, c.validateToolchain()...)
	errs = append(errs, c.validateWorkspace()...)
	errs = append(errs, c.validateOutput()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

// validatePipeline checks parameter defaults against the method registry
// and the configured dialect.
func (c *Config) validatePipeline() []ValidationError {
	params := c.Pipeline.Params()
	method := plugin.FullMethod()

	var err error
	if d, lookupErr := toolchain.LookupDialect(c.Toolchain.Dialect); lookupErr == nil {
		err = params.Validate(method, d)
	} else {
		err = method.Validate(params.Values(method.ID))
	}
	return fromValidation("pipeline.", err)
}

// fromValidation flattens joined errors.ValidationError values.
func fromValidation(prefix string, err error) []ValidationError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []ValidationError
		for _, e := range joined.Unwrap() {
			out = append(out, fromValidation(prefix, e)...)
		}
		return out
	}
	var ve *errors.ValidationError
	if errors.As(err, &ve) {
		return []ValidationError{{Field: prefix + ve.Field, Value: ve.Value, Message: ve.Message()}}
	}
	return []ValidationError{{Field: strings.TrimSuffix(prefix, "."), Message: err.Error()}}
}

func (c *Config) validateToolchain() []ValidationError {
	var errs []ValidationError
	tc := c.Toolchain

	if tc.Dialect != "" && !toolchain.IsValidDialect(tc.Dialect) {
		errs = append(errs, ValidationError{
			Field:   "toolchain.dialect",
			Value:   tc.Dialect,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(toolchain.DialectNames(), ", ")),
		})
	}

	if len(tc.Traits) == 0 {
		errs = append(errs, ValidationError{
			Field:   "toolchain.traits",
			Value:   tc.Traits,
			Message: "at least one trait category is required",
		})
	}
	seen := make(map[string]bool)
	for i, trait := range tc.Traits {
		field := fmt.Sprintf("toolchain.traits[%d]", i)
		switch {
		case strings.TrimSpace(trait) == "":
			errs = append(errs, ValidationError{Field: field, Value: trait, Message: "trait category cannot be empty"})
		case trait == toolchain.MarkerTrait:
			errs = append(errs, ValidationError{Field: field, Value: trait, Message: "the marker gene is predicted automatically"})
		case strings.ContainsAny(trait, "/ \t"):
			errs = append(errs, ValidationError{Field: field, Value: trait, Message: "trait category cannot contain spaces or slashes"})
		case seen[trait]:
			errs = append(errs, ValidationError{Field: field, Value: trait, Message: "duplicate trait category"})
		}
		seen[trait] = true
	}

	if !c.Pipeline.NoPathways && !slices.Contains(tc.Traits, tc.PathwayTrait) {
		errs = append(errs, ValidationError{
			Field:   "toolchain.pathway_trait",
			Value:   tc.PathwayTrait,
			Message: "must be one of toolchain.traits",
		})
	}

	if tc.StderrTailLines < 0 {
		errs = append(errs, ValidationError{
			Field:   "toolchain.stderr_tail_lines",
			Value:   tc.StderrTailLines,
			Message: "must be non-negative",
		})
	}

	return errs
}

func (c *Config) validateWorkspace() []ValidationError {
	var errs []ValidationError

	if strings.ContainsRune(c.Workspace.Prefix, filepath.Separator) {
		errs = append(errs, ValidationError{
			Field:   "workspace.prefix",
			Value:   c.Workspace.Prefix,
			Message: "must not contain a path separator",
		})
	}
	if strings.ContainsRune(c.Workspace.Root, '\x00') {
		errs = append(errs, ValidationError{
			Field:   "workspace.root",
			Value:   c.Workspace.Root,
			Message: "path contains invalid null character",
		})
	}

	return errs
}

func (c *Config) validateOutput() []ValidationError {
	if _, err := table.ParseFormat(c.Output.Format); err != nil {
		return []ValidationError{{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputFormats(), ", ")),
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errs
}
