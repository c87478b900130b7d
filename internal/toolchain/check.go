package toolchain

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// LookPathFunc resolves a program name to an executable path.
type LookPathFunc func(name string) (string, error)

// InstallHint is attached to missing-program errors.
const InstallHint = "install PICRUSt2 (e.g. 'conda install -c bioconda picrust2') and make sure its scripts are on PATH"

// Resolver finds programs in an optional bin directory, then through
// LookPath.
type Resolver struct {
	BinDir   string
	LookPath LookPathFunc
}

// NewResolver returns a Resolver that falls back to exec.LookPath.
func NewResolver(binDir string) *Resolver {
	return &Resolver{BinDir: binDir, LookPath: exec.LookPath}
}

// Resolve returns the executable path for name.
func (r *Resolver) Resolve(name string) (string, error) {
	if r.BinDir != "" {
		if candidate := filepath.Join(r.BinDir, name); isExecutable(candidate) {
			return candidate, nil
		}
	}
	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return lookPath(name)
}

// isExecutable reports whether path is a regular file with an execute bit.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// Check resolves every program and reports all missing ones together.
// Duplicates in programs are checked once.
func (r *Resolver) Check(programs []string) error {
	seen := make(map[string]bool, len(programs))
	var missing []string
	for _, p := range programs {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := r.Resolve(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return errors.NewDependencyError(missing).WithHint(InstallHint)
}
