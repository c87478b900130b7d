// Package errors provides centralized error definitions and error handling utilities
// for picrust2-runner. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures of one part of a pipeline call:
//   - DependencyError: required toolchain programs are missing from PATH
//   - StageError: a toolchain stage exited non-zero or left no output
//   - SerializationError: an input or output file could not be encoded/decoded
//   - WorkspaceError: the scratch workspace could not be created or removed
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid parameter or input
//
// # Usage
//
//	err := errors.NewStageError("stage exited non-zero", errors.ErrStageFailed).
//		WithStage("hsp_marker").WithProgram("hsp.py").WithExitCode(1)
//
//	if errors.Is(err, errors.ErrStageFailed) { ... }
//
//	var stageErr *errors.StageError
//	if errors.As(err, &stageErr) { fmt.Println(stageErr.Stage) }
//
// # Error Classification
//
// Errors can be classified by severity and audience:
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
//
// Nothing in a pipeline call is retried, so there is no retryable class.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Toolchain-related sentinel errors
var (
	// ErrProgramNotFound indicates that a required toolchain program is not on PATH.
	ErrProgramNotFound = New("program not found")
	// ErrStageFailed indicates that a toolchain stage exited with a non-zero status.
	ErrStageFailed = New("stage failed")
	// ErrMissingOutput indicates that a stage succeeded but did not write a declared output.
	ErrMissingOutput = New("stage output missing")
	// ErrMissingInput indicates that a stage input was absent when the stage was due to start.
	ErrMissingInput = New("stage input missing")
)

// Data-related sentinel errors
var (
	// ErrMalformedInput indicates that an input could not be serialized or parsed.
	ErrMalformedInput = New("malformed input")
	// ErrUnsupportedFormat indicates a recognised but unsupported file format.
	ErrUnsupportedFormat = New("unsupported format")
	// ErrUnexpectedSamples indicates an output table holding samples absent from the input.
	ErrUnexpectedSamples = New("output contains samples not present in input")
)

// Workspace-related sentinel errors
var (
	// ErrWorkspace indicates a failure to create or use the scratch workspace.
	ErrWorkspace = New("workspace error")
	// ErrWorkspaceClosed indicates use of a workspace after it has been removed.
	ErrWorkspaceClosed = New("workspace already removed")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RunnerError is the base interface for all picrust2-runner errors.
type RunnerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func newBase(message string, cause error) baseError {
	return baseError{
		message:    message,
		cause:      cause,
		severity:   SeverityError,
		userFacing: true,
	}
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// DependencyError reports toolchain programs that could not be resolved.
//
// Example:
//
//	err := errors.NewDependencyError([]string{"hsp.py", "place_seqs.py"})
//	fmt.Println(err) // "dependency error [missing=hsp.py, place_seqs.py]: required programs not found on PATH: program not found"
type DependencyError struct {
	baseError
	Missing []string
	Hint    string
}

// NewDependencyError creates a new DependencyError for the given programs.
func NewDependencyError(missing []string) *DependencyError {
	return &DependencyError{
		baseError: newBase("required programs not found on PATH", ErrProgramNotFound),
		Missing:   missing,
	}
}

// WithHint adds an installation hint shown after the error message.
func (e *DependencyError) WithHint(hint string) *DependencyError {
	e.Hint = hint
	return e
}

// Error returns the formatted error message.
func (e *DependencyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing="+strings.Join(e.Missing, ", "))
	}
	msg := e.format("dependency error", parts)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Is checks if this error matches the target.
func (e *DependencyError) Is(target error) bool {
	if _, ok := target.(*DependencyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StageError represents a failed toolchain stage.
//
// Example:
//
//	err := errors.NewStageError("exited with status 2", errors.ErrStageFailed)
//	err = err.WithStage("metagenome_EC").WithProgram("metagenome_pipeline.py").WithExitCode(2)
type StageError struct {
	baseError
	Stage    string
	Program  string
	ExitCode int
	Stderr   string // Tail of captured stderr
}

// NewStageError creates a new StageError.
func NewStageError(message string, cause error) *StageError {
	return &StageError{
		baseError: newBase(message, cause),
		ExitCode:  -1, // -1 indicates not set
	}
}

// WithStage adds the stage name to the error context.
func (e *StageError) WithStage(stage string) *StageError {
	e.Stage = stage
	return e
}

// WithProgram adds the program name to the error context.
func (e *StageError) WithProgram(program string) *StageError {
	e.Program = program
	return e
}

// WithExitCode adds the process exit code to the error context.
func (e *StageError) WithExitCode(code int) *StageError {
	e.ExitCode = code
	return e
}

// WithStderr attaches captured stderr output.
func (e *StageError) WithStderr(stderr string) *StageError {
	e.Stderr = stderr
	return e
}

// WithSeverity sets the error severity.
func (e *StageError) WithSeverity(s Severity) *StageError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StageError) Error() string {
	var parts []string
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.Program != "" {
		parts = append(parts, fmt.Sprintf("program=%s", e.Program))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	msg := e.format("stage error", parts)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// Is checks if this error matches the target.
func (e *StageError) Is(target error) bool {
	if _, ok := target.(*StageError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SerializationError represents a failure to encode or decode a file.
//
// Example:
//
//	err := errors.NewSerializationError("duplicate sequence id", errors.ErrMalformedInput)
//	err = err.WithFormat("fasta").WithPath("seqs.fna")
type SerializationError struct {
	baseError
	Format string
	Path   string
	Line   int
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(message string, cause error) *SerializationError {
	return &SerializationError{
		baseError: newBase(message, cause),
	}
}

// WithFormat adds the file format to the error context.
func (e *SerializationError) WithFormat(format string) *SerializationError {
	e.Format = format
	return e
}

// WithPath adds the file path to the error context.
func (e *SerializationError) WithPath(path string) *SerializationError {
	e.Path = path
	return e
}

// WithLine adds a 1-based line number to the error context.
func (e *SerializationError) WithLine(line int) *SerializationError {
	e.Line = line
	return e
}

// Error returns the formatted error message.
func (e *SerializationError) Error() string {
	var parts []string
	if e.Format != "" {
		parts = append(parts, fmt.Sprintf("format=%s", e.Format))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line=%d", e.Line))
	}
	return e.format("serialization error", parts)
}

// Is checks if this error matches the target.
func (e *SerializationError) Is(target error) bool {
	if _, ok := target.(*SerializationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkspaceError represents errors related to the scratch workspace.
type WorkspaceError struct {
	baseError
	Dir string
}

// NewWorkspaceError creates a new WorkspaceError.
func NewWorkspaceError(message string, cause error) *WorkspaceError {
	return &WorkspaceError{
		baseError: newBase(message, cause),
	}
}

// WithDir adds the workspace directory to the error context.
func (e *WorkspaceError) WithDir(dir string) *WorkspaceError {
	e.Dir = dir
	return e
}

// Error returns the formatted error message.
func (e *WorkspaceError) Error() string {
	var parts []string
	if e.Dir != "" {
		parts = append(parts, fmt.Sprintf("dir=%s", e.Dir))
	}
	return e.format("workspace error", parts)
}

// Is checks if this error matches the target.
func (e *WorkspaceError) Is(target error) bool {
	if _, ok := target.(*WorkspaceError); ok {
		return true
	}
	if errors.Is(target, ErrWorkspace) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("method", "shotgun")
//	fmt.Println(err) // "method 'shotgun' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be at least 1")
//	err = err.WithField("threads").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Message returns the message without field or value context.
func (e *ValidationError) Message() string {
	return e.message
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
// This checks for:
//   - Errors implementing RunnerError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, ValidationError)
//   - Errors matching ErrInvalidInput, ErrCanceled or context.Canceled
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    fmt.Fprintln(os.Stderr, err)
//	} else {
//	    fmt.Fprintln(os.Stderr, "internal error, see log")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var runnerErr RunnerError
	if As(err, &runnerErr) {
		return runnerErr.IsUserFacing()
	}

	return IsSemanticError(err) || Is(err, ErrInvalidInput) ||
		Is(err, ErrCanceled) || Is(err, context.Canceled)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RunnerError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var runnerErr RunnerError
	if As(err, &runnerErr) {
		return runnerErr.Severity()
	}

	return SeverityError
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError or ValidationError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var validation *ValidationError

	return As(err, &notFound) || As(err, &validation)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike a bare fmt.Errorf, this returns nil for a nil error.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to write tree")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to read %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
