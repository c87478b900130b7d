package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Iron-Ham/picrust2-runner/internal/config"
	"github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/event"
	"github.com/Iron-Ham/picrust2-runner/internal/newick"
	"github.com/Iron-Ham/picrust2-runner/internal/pipeline"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/seqs"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
)

// Input flag names, matching the registered input names.
const (
	inputTable = "table"
	inputTree  = "tree"
	inputSeq   = "seq"
)

// runFlags holds the non-parameter flags of a method command.
type runFlags struct {
	inputs       map[string]*string
	outputDir    string
	format       string
	compress     bool
	dialect      string
	binDir       string
	refDir       string
	traits       []string
	pathwayTrait string
	dryRun       bool
	quiet        bool
}

// newMethodCmd builds the command of one registered method. Parameter
// flags are generated from the registry.
func newMethodCmd(m *plugin.Method) *cobra.Command {
	rf := &runFlags{inputs: make(map[string]*string)}

	var usage []string
	for _, in := range m.Inputs {
		usage = append(usage, fmt.Sprintf("--%s FILE", in.Name))
	}

	cmd := &cobra.Command{
		Use:   m.ID + " " + strings.Join(usage, " ") + " --output-dir DIR",
		Short: m.Name,
		Long:  methodLong(m),
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMethod(cmd, m, rf)
		},
	}

	f := cmd.Flags()
	for _, in := range m.Inputs {
		rf.inputs[in.Name] = f.String(in.Name, "", in.Description)
	}
	f.StringVarP(&rf.outputDir, "output-dir", "o", "", "directory the output tables are written to")
	f.StringVar(&rf.format, "format", "", "output table format: tsv or biom (default from config)")
	f.BoolVar(&rf.compress, "compress", false, "gzip the output tables")
	f.StringVar(&rf.dialect, "dialect", "", "toolchain dialect: current or legacy (default from config)")
	f.StringVar(&rf.binDir, "bin-dir", "", "directory searched for the PICRUSt2 programs before PATH")
	f.StringVar(&rf.refDir, "ref-dir", "", "reference files directory passed to sequence placement")
	f.StringSliceVar(&rf.traits, "traits", nil, "trait categories to predict (default EC,KO)")
	f.StringVar(&rf.pathwayTrait, "pathway-trait", "", "trait category used for pathway inference (default EC)")
	f.BoolVar(&rf.dryRun, "dry-run", false, "print the stages that would run and exit")
	f.BoolVarP(&rf.quiet, "quiet", "q", false, "do not print progress")
	addParamFlags(f, m)

	return cmd
}

func methodLong(m *plugin.Method) string {
	var sb strings.Builder
	sb.WriteString(m.Description)
	sb.WriteString("\n\nOutputs:\n")
	for _, out := range m.Outputs {
		fmt.Fprintf(&sb, "  %-18s %s", out.Name, out.Description)
		if out.Optional {
			sb.WriteString(" (optional)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nParameter defaults come from the pipeline section of the config file.")
	return sb.String()
}

// flagName converts a parameter name to its flag name.
func flagName(param string) string {
	return strings.ReplaceAll(param, "_", "-")
}

func paramUsage(p plugin.Parameter) string {
	usage := p.Description
	if len(p.Choices) > 0 {
		usage += " (" + strings.Join(p.Choices, ", ") + ")"
	}
	return usage
}

func addParamFlags(f *pflag.FlagSet, m *plugin.Method) {
	for _, p := range m.Parameters {
		name := flagName(p.Name)
		switch p.Kind {
		case plugin.KindInt:
			def, _ := p.Default.(int)
			f.Int(name, def, paramUsage(p))
		case plugin.KindFloat:
			var def float64
			switch v := p.Default.(type) {
			case float64:
				def = v
			case int:
				def = float64(v)
			}
			f.Float64(name, def, paramUsage(p))
		case plugin.KindString:
			def, _ := p.Default.(string)
			f.String(name, def, paramUsage(p))
		case plugin.KindBool:
			def, _ := p.Default.(bool)
			f.Bool(name, def, paramUsage(p))
		}
	}
}

// applyParamFlags overrides params with every parameter flag that was set
// on the command line.
func applyParamFlags(f *pflag.FlagSet, m *plugin.Method, params *pipeline.Params) error {
	for _, p := range m.Parameters {
		name := flagName(p.Name)
		if !f.Changed(name) {
			continue
		}
		var (
			v   any
			err error
		)
		switch p.Kind {
		case plugin.KindInt:
			v, err = f.GetInt(name)
		case plugin.KindFloat:
			v, err = f.GetFloat64(name)
		case plugin.KindString:
			v, err = f.GetString(name)
		case plugin.KindBool:
			v, err = f.GetBool(name)
		}
		if err != nil {
			return err
		}
		if err := params.Set(p.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// applyRunFlags overrides the loaded configuration with the flags that
// were set, then validates the result.
func applyRunFlags(f *pflag.FlagSet, cfg *config.Config, rf *runFlags) error {
	if f.Changed("format") {
		cfg.Output.Format = rf.format
	}
	if f.Changed("compress") {
		cfg.Output.Compress = rf.compress
	}
	if f.Changed("dialect") {
		cfg.Toolchain.Dialect = rf.dialect
	}
	if f.Changed("bin-dir") {
		cfg.Toolchain.BinDir = rf.binDir
	}
	if f.Changed("ref-dir") {
		cfg.Toolchain.RefDir = rf.refDir
	}
	if f.Changed("traits") {
		cfg.Toolchain.Traits = rf.traits
	}
	if f.Changed("pathway-trait") {
		cfg.Toolchain.PathwayTrait = rf.pathwayTrait
	}
	if f.Changed(flagName(plugin.ParamNoPathways)) {
		cfg.Pipeline.NoPathways, _ = f.GetBool(flagName(plugin.ParamNoPathways))
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}
	return nil
}

func runMethod(cmd *cobra.Command, m *plugin.Method, rf *runFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	params := cfg.Pipeline.Params()
	if err := applyParamFlags(f, m, &params); err != nil {
		return err
	}
	if err := applyRunFlags(f, cfg, rf); err != nil {
		return err
	}

	opts, err := runnerOptions(cfg)
	if err != nil {
		return err
	}

	if rf.dryRun {
		runner := pipeline.NewRunner(opts...)
		plan, err := runner.Plan(m.ID, params)
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	}

	for _, input := range m.Inputs {
		if *rf.inputs[input.Name] == "" {
			return errors.NewValidationError("input file is required").WithField(input.Name)
		}
	}
	if rf.outputDir == "" {
		return errors.NewValidationError("an output directory is required").WithField("output-dir")
	}
	format, err := table.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Close() }()

	bus := event.NewBus()
	if !rf.quiet {
		bus.SubscribeAll(newProgress(cmd.ErrOrStderr()).Handle)
	}
	opts = append(opts, pipeline.WithLogger(logger), pipeline.WithEventBus(bus))
	runner := pipeline.NewRunner(opts...)

	// Missing programs are reported before any input is parsed.
	plan, err := runner.Plan(m.ID, params)
	if err != nil {
		return err
	}
	if err := runner.CheckDependencies(plan); err != nil {
		return err
	}

	in, err := table.ReadFile(*rf.inputs[inputTable])
	if err != nil {
		return err
	}

	var res *pipeline.Result
	switch m.ID {
	case plugin.MethodCustomTree:
		tree, err := newick.ReadFile(*rf.inputs[inputTree])
		if err != nil {
			return err
		}
		res, err = runner.RunCustomTree(cmd.Context(), pipeline.CustomTreeInput{Table: in, Tree: tree}, params)
		if err != nil {
			return err
		}
	case plugin.MethodFull:
		set, err := seqs.ReadFile(*rf.inputs[inputSeq])
		if err != nil {
			return err
		}
		res, err = runner.RunFull(cmd.Context(), pipeline.FullInput{Table: in, Seqs: set}, params)
		if err != nil {
			return err
		}
	default:
		return errors.NewNotFoundError("method", m.ID)
	}

	written, err := writeResult(rf.outputDir, res, table.WriteOptions{
		Format:   format,
		Compress: cfg.Output.Compress,
		BIOM:     table.BIOMOptions{GeneratedBy: pipeline.GeneratedBy},
	})
	if err != nil {
		return err
	}
	printWritten(cmd.OutOrStdout(), written)
	logger.Info("outputs written", "dir", rf.outputDir, "tables", len(written))
	return nil
}

// writtenTable describes one output file.
type writtenTable struct {
	Name     string
	Path     string
	Features int
	Samples  int
}

// writeResult writes every table of res into dir as <name><ext>.
func writeResult(dir string, res *pipeline.Result, opts table.WriteOptions) ([]writtenTable, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewSerializationError("failed to create output directory", err).WithPath(dir)
	}

	var written []writtenTable
	for _, nt := range res.Tables() {
		path := filepath.Join(dir, nt.Name+opts.Extension())
		o := opts
		o.BIOM.ID = nt.Name
		if err := table.WriteFile(path, nt.Table, o); err != nil {
			return written, err
		}
		features, samples := nt.Table.Shape()
		written = append(written, writtenTable{Name: nt.Name, Path: path, Features: features, Samples: samples})
	}
	return written, nil
}

func printWritten(w io.Writer, written []writtenTable) {
	for _, t := range written {
		fmt.Fprintf(w, "%-18s %s (%d features x %d samples)\n", t.Name, t.Path, t.Features, t.Samples)
	}
}

func printPlan(w io.Writer, plan *pipeline.Plan) {
	fmt.Fprintf(w, "Plan for %s:\n", plan.Method)
	enabled := 0
	for _, st := range plan.Stages {
		if !st.Enabled {
			fmt.Fprintf(w, "  -     %-18s (skipped)\n", st.Name)
			continue
		}
		enabled++
		fmt.Fprintf(w, "  %-5d %-18s %s\n", enabled, st.Name, st.Command("").String())
	}
}
