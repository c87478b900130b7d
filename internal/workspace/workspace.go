// Package workspace manages the scratch directory that holds every
// intermediate file of one pipeline call.
//
// A Workspace is created under a root directory (the system temp dir by
// default) with a unique name carrying a run ID. Callers write all
// artifacts beneath it and must not expect any of them to outlive the call:
// [Run] removes the directory on every exit path, including panics.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "picrust2-runner"

// Workspace is a uniquely named scratch directory.
type Workspace struct {
	mu     sync.Mutex
	id     string
	dir    string
	closed bool
}

// New creates a fresh workspace directory under root. An empty root means
// os.TempDir(). The directory name is "<prefix>-<run id>-<random>".
func New(root, prefix string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsRune(prefix, filepath.Separator) {
		return nil, errors.NewValidationError("workspace prefix must not contain a path separator").
			WithField("workspace.prefix").WithValue(prefix)
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.NewWorkspaceError("failed to create workspace root", err).WithDir(root)
	}

	id := uuid.NewString()
	dir, err := os.MkdirTemp(root, fmt.Sprintf("%s-%s-", prefix, id[:8]))
	if err != nil {
		return nil, errors.NewWorkspaceError("failed to create workspace", err).WithDir(root)
	}

	return &Workspace{id: id, dir: dir}, nil
}

// ID returns the run ID embedded in the directory name.
func (w *Workspace) ID() string {
	return w.id
}

// Dir returns the absolute workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

// MkdirAll creates a subdirectory and returns its path.
func (w *Workspace) MkdirAll(elem ...string) (string, error) {
	if w.Closed() {
		return "", errors.NewWorkspaceError("cannot create directory", errors.ErrWorkspaceClosed).WithDir(w.dir)
	}
	p := w.Path(elem...)
	if err := os.MkdirAll(p, 0755); err != nil {
		return "", errors.NewWorkspaceError("failed to create directory", err).WithDir(p)
	}
	return p, nil
}

// Closed reports whether Close has been called.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close removes the workspace directory and everything in it.
// It is idempotent.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := os.RemoveAll(w.dir); err != nil {
		return errors.NewWorkspaceError("failed to remove workspace", err).WithDir(w.dir)
	}
	return nil
}

// Run creates a workspace, calls fn with it and removes the workspace when
// fn returns or panics. A removal failure is joined with fn's error.
func Run(root, prefix string, fn func(*Workspace) error) (err error) {
	ws, err := New(root, prefix)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ws.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(ws)
}
