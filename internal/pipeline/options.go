package pipeline

import (
	"slices"

	"github.com/Iron-Ham/picrust2-runner/internal/event"
	"github.com/Iron-Ham/picrust2-runner/internal/logging"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithExecutor replaces the subprocess executor.
func WithExecutor(e toolchain.Executor) Option {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithLookPath replaces program resolution for the dependency check.
func WithLookPath(fn toolchain.LookPathFunc) Option {
	return func(r *Runner) {
		r.lookPath = fn
	}
}

// WithDialect selects the toolchain interface.
func WithDialect(d toolchain.Dialect) Option {
	return func(r *Runner) {
		r.dialect = d
	}
}

// WithTraits sets the predicted trait categories and the one that feeds
// pathway inference.
func WithTraits(traits []string, pathwayTrait string) Option {
	return func(r *Runner) {
		r.traits = slices.Clone(traits)
		r.pathwayTrait = pathwayTrait
	}
}

// WithWorkspace sets where scratch workspaces are created and their name
// prefix. Empty values keep the defaults.
func WithWorkspace(root, prefix string) Option {
	return func(r *Runner) {
		r.workspaceRoot = root
		if prefix != "" {
			r.workspacePrefix = prefix
		}
	}
}

// WithBinDir makes the runner look for programs in dir before PATH.
func WithBinDir(dir string) Option {
	return func(r *Runner) {
		r.binDir = dir
	}
}

// WithRefDir passes a reference directory to sequence placement.
func WithRefDir(dir string) Option {
	return func(r *Runner) {
		r.refDir = dir
	}
}

// WithEventBus publishes run, phase and stage events on bus.
func WithEventBus(bus *event.Bus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithStderrTail sets how many trailing stderr lines a stage failure keeps.
// Zero keeps none.
func WithStderrTail(lines int) Option {
	return func(r *Runner) {
		if lines >= 0 {
			r.stderrTail = lines
		}
	}
}
