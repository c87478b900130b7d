package pipeline

import (
	"slices"

	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// Workspace file names of the serialized inputs.
const (
	TableFile = "intable.biom"
	TreeFile  = "placed_seqs.tre"
	SeqsFile  = "seqs.fna"
)

// Stage is one external program invocation. Paths in Args, Inputs and
// Outputs are relative to the workspace.
type Stage struct {
	Name    string
	Phase   Phase
	Program string
	Args    []string
	Inputs  []string
	Outputs []string
	Enabled bool
}

// Command returns the invocation for a workspace directory.
func (s Stage) Command(dir string) toolchain.Command {
	return toolchain.Command{Program: s.Program, Args: slices.Clone(s.Args), Dir: dir}
}

// Plan is the ordered stage list of one call together with the tables to
// read back once every enabled stage has run.
type Plan struct {
	Method string
	Stages []Stage

	// Metagenomes maps trait category to its output table path.
	Metagenomes map[string]string

	// PathwayAbundance and PathwayCoverage are empty when not produced.
	PathwayAbundance string
	PathwayCoverage  string
}

// Enabled returns the stages that will run, in order.
func (p *Plan) Enabled() []Stage {
	var out []Stage
	for _, s := range p.Stages {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Stage returns the named stage.
func (p *Plan) Stage(name string) (Stage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Programs returns the distinct programs of the enabled stages.
func (p *Plan) Programs() []string {
	var out []string
	for _, s := range p.Enabled() {
		if !slices.Contains(out, s.Program) {
			out = append(out, s.Program)
		}
	}
	return out
}
