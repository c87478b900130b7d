package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/event"
	"github.com/Iron-Ham/picrust2-runner/internal/logging"
	"github.com/Iron-Ham/picrust2-runner/internal/newick"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/seqs"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
	"github.com/Iron-Ham/picrust2-runner/internal/util"
	"github.com/Iron-Ham/picrust2-runner/internal/workspace"
)

// GeneratedBy is written into serialized BIOM tables.
const GeneratedBy = "picrust2-runner"

// DefaultStderrTail is the number of stderr lines kept on stage failure.
const DefaultStderrTail = 20

// maxSampleList caps the sample list quoted in an unexpected-samples error.
const maxSampleList = 200

// Runner executes pipeline calls. A Runner holds configuration only; calls
// share no state and may run one after another on the same Runner.
type Runner struct {
	logger          *logging.Logger
	executor        toolchain.Executor
	lookPath        toolchain.LookPathFunc
	dialect         toolchain.Dialect
	traits          []string
	pathwayTrait    string
	workspaceRoot   string
	workspacePrefix string
	binDir          string
	refDir          string
	bus             *event.Bus
	stderrTail      int
	registry        *plugin.Registry
}

// NewRunner creates a Runner with the current dialect, EC and KO traits and
// workspaces under the system temp directory.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:          logging.NopLogger(),
		dialect:         toolchain.Current,
		traits:          slices.Clone(DefaultTraits),
		pathwayTrait:    DefaultPathwayTrait,
		workspacePrefix: workspace.DefaultPrefix,
		stderrTail:      DefaultStderrTail,
		registry:        plugin.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = toolchain.NewExecExecutor(r.binDir)
	}
	return r
}

// Plan validates p for method and returns the stage list a call would run.
func (r *Runner) Plan(method string, p Params) (*Plan, error) {
	m, err := r.registry.Method(method)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(m, r.dialect); err != nil {
		return nil, err
	}
	if err := validateTraits(r.traits, r.pathwayTrait, p.NoPathways); err != nil {
		return nil, err
	}
	return BuildPlan(method, p, PlanConfig{
		Dialect:      r.dialect,
		Traits:       r.traits,
		PathwayTrait: r.pathwayTrait,
		RefDir:       r.refDir,
	}), nil
}

// CheckDependencies reports every program the plan needs that cannot be
// found.
func (r *Runner) CheckDependencies(plan *Plan) error {
	resolver := &toolchain.Resolver{BinDir: r.binDir, LookPath: r.lookPath}
	if r.lookPath == nil {
		resolver = toolchain.NewResolver(r.binDir)
	}
	return resolver.Check(plan.Programs())
}

// RunCustomTree predicts metagenomes and pathways from a table and a tree
// of the table's features placed into the reference phylogeny.
func (r *Runner) RunCustomTree(ctx context.Context, in CustomTreeInput, p Params) (*Result, error) {
	if in.Table == nil {
		return nil, errors.NewValidationError("abundance table is required").WithField("table")
	}
	if in.Tree == nil || in.Tree.Root == nil {
		return nil, errors.NewValidationError("placement tree is required").WithField("tree")
	}
	return r.run(ctx, plugin.MethodCustomTree, in.Table, p, func(ws *workspace.Workspace) error {
		return newick.WriteFile(ws.Path(TreeFile), in.Tree)
	})
}

// RunFull places representative sequences, then runs the same stages as
// RunCustomTree.
func (r *Runner) RunFull(ctx context.Context, in FullInput, p Params) (*Result, error) {
	if in.Table == nil {
		return nil, errors.NewValidationError("abundance table is required").WithField("table")
	}
	if in.Seqs == nil || in.Seqs.Len() == 0 {
		return nil, errors.NewValidationError("representative sequences are required").WithField("seq")
	}
	return r.run(ctx, plugin.MethodFull, in.Table, p, func(ws *workspace.Workspace) error {
		return seqs.WriteFile(ws.Path(SeqsFile), in.Seqs)
	})
}

// call is the state of one pipeline call.
type call struct {
	*Runner
	id     string
	logger *logging.Logger
	phase  Phase
}

func (c *call) setPhase(to Phase) {
	if to == c.phase {
		return
	}
	from := c.phase
	c.phase = to
	c.logger.Debug("phase changed", "from", string(from), "to", string(to))
	c.bus.Publish(event.NewPhaseChangedEvent(c.id, string(from), string(to)))
}

func (r *Runner) run(ctx context.Context, method string, in *table.Table, p Params, writeInput func(*workspace.Workspace) error) (res *Result, err error) {
	c := &call{Runner: r, id: uuid.NewString(), phase: PhaseStart}
	c.logger = r.logger.WithRun(c.id).WithMethod(method)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			c.setPhase(PhaseFailed)
			c.logger.Error("pipeline panicked", "panic", fmt.Sprint(rec))
			c.bus.Publish(event.NewRunCompletedEvent(c.id, false, time.Since(start), fmt.Sprint(rec)))
			panic(rec)
		}
		if err != nil {
			c.setPhase(PhaseFailed)
			severity := errors.GetSeverity(err)
			logFailure := c.logger.Error
			if severity <= errors.SeverityWarning {
				logFailure = c.logger.Warn
			}
			logFailure("pipeline failed", "error", err.Error(), "severity", severity.String(), "duration", time.Since(start).String())
			c.bus.Publish(event.NewRunCompletedEvent(c.id, false, time.Since(start), err.Error()))
			res = nil
			return
		}
		c.setPhase(PhaseDone)
		c.logger.Info("pipeline completed", "duration", time.Since(start).String())
		c.bus.Publish(event.NewRunCompletedEvent(c.id, true, time.Since(start), ""))
	}()

	plan, err := r.Plan(method, p)
	if err != nil {
		return nil, err
	}
	if err := r.CheckDependencies(plan); err != nil {
		return nil, err
	}

	enabled := plan.Enabled()
	c.logger.Info("pipeline started", "stages", len(enabled), "dialect", r.dialect.Name)
	c.bus.Publish(event.NewRunStartedEvent(c.id, method, len(enabled)))

	var result *Result
	err = workspace.Run(r.workspaceRoot, r.workspacePrefix, func(ws *workspace.Workspace) error {
		c.logger.Debug("workspace created", "dir", ws.Dir())

		c.setPhase(PhaseSerialize)
		if err := table.WriteFile(ws.Path(TableFile), in, table.WriteOptions{
			Format: table.FormatBIOM,
			BIOM:   table.BIOMOptions{ID: c.id, GeneratedBy: GeneratedBy},
		}); err != nil {
			return err
		}
		if err := writeInput(ws); err != nil {
			return err
		}

		for i, st := range enabled {
			if err := c.runStage(ctx, ws, st, i+1, len(enabled)); err != nil {
				return err
			}
		}

		c.setPhase(PhaseDeserialize)
		out, err := c.readOutputs(ws, plan, in)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.RunID = c.id
	return result, nil
}

func (c *call) runStage(ctx context.Context, ws *workspace.Workspace, st Stage, index, total int) error {
	c.setPhase(st.Phase)
	logger := c.logger.WithStage(st.Name)

	if err := ctx.Err(); err != nil {
		return errors.NewStageError("pipeline interrupted", errors.Join(errors.ErrCanceled, err)).
			WithStage(st.Name).WithProgram(st.Program).WithSeverity(errors.SeverityWarning)
	}
	for _, in := range st.Inputs {
		if _, err := os.Stat(ws.Path(in)); err != nil {
			return errors.NewStageError(fmt.Sprintf("input %s not found", in), errors.ErrMissingInput).
				WithStage(st.Name).WithProgram(st.Program)
		}
	}
	for _, out := range st.Outputs {
		if _, err := ws.MkdirAll(filepath.Dir(out)); err != nil {
			return err
		}
	}

	cmd := st.Command(ws.Dir())
	logger.Info("stage started", "program", st.Program, "index", index, "total", total)
	logger.Debug("stage command", "command", cmd.String())
	c.bus.Publish(event.NewStageStartedEvent(c.id, st.Name, st.Program, index, total))

	started := time.Now()
	res, err := c.executor.Run(ctx, cmd)
	elapsed := time.Since(started)
	c.bus.Publish(event.NewStageCompletedEvent(c.id, st.Name, res.ExitCode, elapsed))

	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, errors.ErrCanceled) {
			err = errors.Join(errors.ErrCanceled, err)
		}
		stageErr := errors.NewStageError("failed to run program", err).
			WithStage(st.Name).WithProgram(st.Program).WithExitCode(res.ExitCode)
		if errors.Is(err, errors.ErrCanceled) {
			stageErr = stageErr.WithSeverity(errors.SeverityWarning)
		}
		return stageErr
	}

	stdout := string(res.Stdout)
	if len(stdout) > 0 {
		if hasVerbose(st.Args) {
			logger.Info("stage output", "stdout", stdout)
		} else {
			logger.Debug("stage output", "stdout", util.TailLines(stdout, c.stderrTail))
		}
	}

	if res.ExitCode != 0 {
		stderr := util.TailLines(string(res.Stderr), c.stderrTail)
		logger.Error("stage failed", "exit_code", res.ExitCode, "stderr", stderr)
		return errors.NewStageError("program exited with non-zero status", errors.ErrStageFailed).
			WithStage(st.Name).WithProgram(st.Program).WithExitCode(res.ExitCode).WithStderr(stderr)
	}

	for _, out := range st.Outputs {
		if _, err := os.Stat(ws.Path(out)); err != nil {
			return errors.NewStageError(fmt.Sprintf("expected output %s was not written", out), errors.ErrMissingOutput).
				WithStage(st.Name).WithProgram(st.Program).WithExitCode(0)
		}
	}

	logger.Info("stage completed", "duration", elapsed.String())
	return nil
}

func hasVerbose(args []string) bool {
	return slices.Contains(args, "--verbose")
}

func (c *call) readOutputs(ws *workspace.Workspace, plan *Plan, in *table.Table) (*Result, error) {
	res := &Result{Metagenomes: make(map[string]*table.Table, len(plan.Metagenomes))}

	read := func(name, rel string) (*table.Table, error) {
		t, err := table.ReadFile(ws.Path(rel))
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
		if extra := t.ExtraSamples(in); len(extra) > 0 {
			return nil, errors.NewSerializationError(
				fmt.Sprintf("%s contains %d samples absent from the input table: %s",
					name, len(extra), util.TruncateString(strings.Join(extra, ", "), maxSampleList)),
				errors.ErrUnexpectedSamples,
			).WithPath(rel)
		}
		obs, samples := t.Shape()
		c.logger.Debug("output read", "output", name, "observations", obs, "samples", samples)
		return t, nil
	}

	traits := make([]string, 0, len(plan.Metagenomes))
	for trait := range plan.Metagenomes {
		traits = append(traits, trait)
	}
	slices.Sort(traits)
	for _, trait := range traits {
		t, err := read(OutputName(trait), plan.Metagenomes[trait])
		if err != nil {
			return nil, err
		}
		res.Metagenomes[trait] = t
	}

	if plan.PathwayAbundance != "" {
		t, err := read(plugin.OutputPathwayAbundance, plan.PathwayAbundance)
		if err != nil {
			return nil, err
		}
		res.PathwayAbundance = t
	}
	if plan.PathwayCoverage != "" {
		t, err := read(plugin.OutputPathwayCoverage, plan.PathwayCoverage)
		if err != nil {
			return nil, err
		}
		res.PathwayCoverage = t
	}
	return res, nil
}
