package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// Command is one program invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// Result is the outcome of a command that started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Executor runs commands. Implementations return an error only when the
// command could not be started or was interrupted; a non-zero exit status
// is reported through Result.ExitCode.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// cancelWaitDelay bounds how long Run waits for output after the context
// is canceled. Wrapped tools start their own children, which can keep the
// output pipes open after the direct child is killed.
const cancelWaitDelay = 2 * time.Second

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct {
	// BinDir, when set, is searched before PATH and exported at the front
	// of the child's PATH so the programs can find each other.
	BinDir string
}

// NewExecExecutor creates an executor that resolves programs in binDir
// first, then on PATH.
func NewExecExecutor(binDir string) *ExecExecutor {
	return &ExecExecutor{BinDir: binDir}
}

// Run starts cmd and waits for it. Output streams are captured in full.
func (e *ExecExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	program := cmd.Program
	if e.BinDir != "" {
		if candidate := filepath.Join(e.BinDir, program); isExecutable(candidate) {
			program = candidate
		}
	}

	c := exec.CommandContext(ctx, program, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = cancelWaitDelay
	if e.BinDir != "" {
		c.Env = append(os.Environ(), "PATH="+e.BinDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, errors.Join(errors.ErrCanceled, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	if errors.Is(err, exec.ErrNotFound) {
		return res, errors.NewDependencyError([]string{cmd.Program}).WithHint(InstallHint)
	}
	return res, err
}
