package pipeline

import (
	"sort"
	"strings"

	"github.com/Iron-Ham/picrust2-runner/internal/newick"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/seqs"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
)

// Phase is a step of a pipeline call.
type Phase string

const (
	PhaseStart         Phase = "start"
	PhaseSerialize     Phase = "serialize"
	PhasePlacement     Phase = "placement"
	PhasePrediction    Phase = "prediction"
	PhaseNormalization Phase = "normalization"
	PhaseInference     Phase = "inference"
	PhaseDeserialize   Phase = "deserialize"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if this phase represents a final state.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Default trait categories.
const (
	TraitEC = "EC"
	TraitKO = "KO"
)

// DefaultTraits are predicted when none are configured.
var DefaultTraits = []string{TraitEC, TraitKO}

// DefaultPathwayTrait feeds pathway inference.
const DefaultPathwayTrait = TraitEC

// CustomTreeInput is the input of a custom-tree call.
type CustomTreeInput struct {
	Table *table.Table
	Tree  *newick.Tree
}

// FullInput is the input of a full call.
type FullInput struct {
	Table *table.Table
	Seqs  *seqs.Set
}

// Result holds the unstratified output tables of a successful call.
type Result struct {
	RunID string

	// Metagenomes maps trait category to predicted metagenome.
	Metagenomes map[string]*table.Table

	// PathwayAbundance is nil when pathways were disabled.
	PathwayAbundance *table.Table

	// PathwayCoverage is nil unless coverage was produced.
	PathwayCoverage *table.Table
}

// KO returns the KEGG ortholog metagenome.
func (r *Result) KO() *table.Table {
	return r.Metagenomes[TraitKO]
}

// EC returns the EC number metagenome.
func (r *Result) EC() *table.Table {
	return r.Metagenomes[TraitEC]
}

// OutputName returns the registry output name for a trait's metagenome.
func OutputName(trait string) string {
	switch trait {
	case TraitKO:
		return plugin.OutputKOMetagenome
	case TraitEC:
		return plugin.OutputECMetagenome
	}
	return strings.ToLower(trait) + "_metagenome"
}

// NamedTable pairs an output name with its table.
type NamedTable struct {
	Name  string
	Table *table.Table
}

// Tables returns every produced table under its output name: metagenomes
// in name order, then pathway abundance and coverage.
func (r *Result) Tables() []NamedTable {
	var out []NamedTable
	for trait, t := range r.Metagenomes {
		out = append(out, NamedTable{Name: OutputName(trait), Table: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if r.PathwayAbundance != nil {
		out = append(out, NamedTable{Name: plugin.OutputPathwayAbundance, Table: r.PathwayAbundance})
	}
	if r.PathwayCoverage != nil {
		out = append(out, NamedTable{Name: plugin.OutputPathwayCoverage, Table: r.PathwayCoverage})
	}
	return out
}
