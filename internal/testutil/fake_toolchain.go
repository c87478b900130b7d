package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/Iron-Ham/picrust2-runner/internal/newick"
	"github.com/Iron-Ham/picrust2-runner/internal/seqs"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// FakeToolchain emulates the PICRUSt2 programs. It parses each command's
// arguments and writes small deterministic outputs to the paths they name,
// relative to Command.Dir. Values depend on the input table and on the
// skip toggles so tests can observe their effect.
type FakeToolchain struct {
	mu    sync.Mutex
	calls []toolchain.Command

	// FailWith returns a non-zero exit code to fail a command.
	FailWith func(cmd toolchain.Command) int

	// Omit lists programs that exit 0 without writing their outputs.
	Omit []string

	// ExtraSample, when set, is added as a column to every metagenome
	// table the fake writes.
	ExtraSample string

	// Hook runs before each command.
	Hook func(cmd toolchain.Command)
}

// NewFakeToolchain returns a fake that succeeds on every command.
func NewFakeToolchain() *FakeToolchain {
	return &FakeToolchain{}
}

// Calls returns the commands run so far.
func (f *FakeToolchain) Calls() []toolchain.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Programs returns the program name of each call in order.
func (f *FakeToolchain) Programs() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Program)
	}
	return out
}

// Run implements toolchain.Executor.
func (f *FakeToolchain) Run(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return toolchain.Result{ExitCode: -1}, err
	}
	if f.Hook != nil {
		f.Hook(cmd)
	}
	if f.FailWith != nil {
		if code := f.FailWith(cmd); code != 0 {
			return toolchain.Result{
				ExitCode: code,
				Stderr:   []byte(fmt.Sprintf("Traceback (most recent call last):\nError: %s failed\n", cmd.Program)),
			}, nil
		}
	}
	if slices.Contains(f.Omit, cmd.Program) {
		return toolchain.Result{}, nil
	}

	var err error
	switch cmd.Program {
	case toolchain.ProgramPlaceSeqs:
		err = f.placeSeqs(cmd)
	case toolchain.ProgramHSP:
		err = f.hsp(cmd)
	case toolchain.ProgramMetagenome:
		err = f.metagenome(cmd)
	case toolchain.ProgramPathways, toolchain.ProgramMinPath:
		err = f.pathways(cmd)
	default:
		return toolchain.Result{ExitCode: 127, Stderr: []byte(cmd.Program + ": command not found\n")}, nil
	}
	if err != nil {
		return toolchain.Result{ExitCode: 1, Stderr: []byte(err.Error() + "\n")}, nil
	}
	return toolchain.Result{Stdout: []byte("Finished " + cmd.Program + "\n")}, nil
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func hasFlag(args []string, flag string) bool {
	return slices.Contains(args, flag)
}

func resolve(cmd toolchain.Command, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cmd.Dir, p)
}

func (f *FakeToolchain) placeSeqs(cmd toolchain.Command) error {
	set, err := seqs.ReadFile(resolve(cmd, argValue(cmd.Args, "-s")))
	if err != nil {
		return err
	}
	root := &newick.Node{}
	for i, id := range set.IDs() {
		root.Children = append(root.Children, &newick.Node{Name: id, Length: float64(i+1) / 10, HasLength: true})
	}
	return writeFile(resolve(cmd, argValue(cmd.Args, "-o")), []byte((&newick.Tree{Root: root}).String()+"\n"))
}

func (f *FakeToolchain) hsp(cmd toolchain.Command) error {
	tree, err := newick.ReadFile(resolve(cmd, argValue(cmd.Args, "-t")))
	if err != nil {
		return err
	}
	trait := argValue(cmd.Args, "-i")
	out := argValue(cmd.Args, "-o")
	if !strings.HasSuffix(out, ".tsv") && !strings.HasSuffix(out, ".tsv.gz") {
		out += ".tsv"
	}

	var b strings.Builder
	b.WriteString("sequence\t" + trait)
	if hasFlag(cmd.Args, "-n") {
		b.WriteString("\tmetadata_NSTI")
	}
	b.WriteByte('\n')
	for i, tip := range tree.Tips() {
		fmt.Fprintf(&b, "%s\t%d", tip, i+1)
		if hasFlag(cmd.Args, "-n") {
			b.WriteString("\t0.01")
		}
		b.WriteByte('\n')
	}
	return writeFile(resolve(cmd, out), []byte(b.String()))
}

// traitFunctions are the observation ids the fake predicts per trait.
var traitFunctions = map[string][]string{
	"EC": {"EC:1.1.1.1", "EC:2.7.7.7"},
	"KO": {"K00001", "K00002", "K00003"},
}

func (f *FakeToolchain) metagenome(cmd toolchain.Command) error {
	in, err := table.ReadFile(resolve(cmd, argValue(cmd.Args, "-i")))
	if err != nil {
		return err
	}
	predicted := argValue(cmd.Args, "-f")
	if _, err := os.Stat(resolve(cmd, predicted)); err != nil {
		return fmt.Errorf("trait table: %w", err)
	}
	trait := strings.TrimSuffix(filepath.Base(predicted), filepath.Ext(predicted))
	trait = strings.TrimSuffix(strings.TrimSuffix(trait, ".tsv"), "_predicted")

	funcs := traitFunctions[trait]
	if funcs == nil {
		funcs = []string{trait + ":1"}
	}

	divisor := 2.0
	if hasFlag(cmd.Args, "--skip_norm") {
		divisor = 1
	}

	samples := in.SampleIDs()
	if f.ExtraSample != "" {
		samples = append(samples, f.ExtraSample)
	}
	totals := in.SampleTotals()
	values := make([][]float64, len(funcs))
	for k := range funcs {
		values[k] = make([]float64, len(samples))
		for j := range totals {
			values[k][j] = totals[j] * float64(k+1) / divisor
		}
	}

	out, err := table.New(funcs, samples, values)
	if err != nil {
		return err
	}
	out.SetLabel("function")
	suffix := ".tsv"
	if strings.HasSuffix(predicted, ".gz") {
		suffix = ".tsv.gz"
	}
	dir := resolve(cmd, argValue(cmd.Args, "-o"))
	return writeTable(filepath.Join(dir, "pred_metagenome_unstrat"+suffix), out)
}

func (f *FakeToolchain) pathways(cmd toolchain.Command) error {
	inPath := argValue(cmd.Args, "-i")
	in, err := table.ReadFile(resolve(cmd, inPath))
	if err != nil {
		return err
	}

	factor := 1.0
	if hasFlag(cmd.Args, "--skip_minpath") {
		factor += 1
	}
	if hasFlag(cmd.Args, "--no_gap_fill") {
		factor += 0.5
	}

	totals := in.SampleTotals()
	abun := make([]float64, len(totals))
	cov := make([]float64, len(totals))
	for j, v := range totals {
		abun[j] = v * factor
		if v > 0 {
			cov[j] = 1
		}
	}

	suffix := ".tsv"
	if strings.HasSuffix(inPath, ".gz") {
		suffix = ".tsv.gz"
	}
	dir := resolve(cmd, argValue(cmd.Args, "-o"))

	abunTable, err := table.New([]string{"PWY-0001"}, in.SampleIDs(), [][]float64{abun})
	if err != nil {
		return err
	}
	abunTable.SetLabel("pathway")
	if err := writeTable(filepath.Join(dir, "path_abun_unstrat"+suffix), abunTable); err != nil {
		return err
	}

	if cmd.Program == toolchain.ProgramMinPath || hasFlag(cmd.Args, "--coverage") {
		covTable, err := table.New([]string{"PWY-0001"}, in.SampleIDs(), [][]float64{cov})
		if err != nil {
			return err
		}
		covTable.SetLabel("pathway")
		return writeTable(filepath.Join(dir, "path_cov_unstrat"+suffix), covTable)
	}
	return nil
}

func writeTable(path string, t *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return table.WriteFile(path, t, table.WriteOptions{
		Format:   table.FormatTSV,
		Compress: strings.HasSuffix(path, ".gz"),
	})
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !strings.HasSuffix(path, ".gz") {
		return os.WriteFile(path, data, 0o644)
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(fh)
	if _, err := zw.Write(data); err != nil {
		_ = fh.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
