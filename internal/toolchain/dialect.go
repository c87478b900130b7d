package toolchain

import (
	"path"
	"slices"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// Program names as installed by PICRUSt2.
const (
	ProgramPlaceSeqs  = "place_seqs.py"
	ProgramHSP        = "hsp.py"
	ProgramMetagenome = "metagenome_pipeline.py"
	ProgramPathways   = "pathway_pipeline.py"
	ProgramMinPath    = "run_minpath.py"
)

// MarkerTrait is the hsp.py input name for marker gene copy numbers.
const MarkerTrait = "16S"

// OutputDir is the toolchain output directory, relative to the workspace.
const OutputDir = "picrust2_out"

// Dialect captures how one PICRUSt2 release line names files and which
// flags its programs accept.
type Dialect struct {
	Name string

	// Suffix is appended to every table the toolchain writes.
	Suffix string

	// AppendsSuffix is true when hsp.py adds Suffix itself, so -o is
	// given without it.
	AppendsSuffix bool

	// MarkerOutput is the base name of the marker prediction table.
	MarkerOutput string

	// MarkerThreads is the -p value for marker prediction; 0 means use the
	// configured thread count.
	MarkerThreads int

	// MetagenomeThreads passes -p to metagenome_pipeline.py.
	MetagenomeThreads bool

	// MetagenomeFilters passes --min_reads and --min_samples.
	MetagenomeFilters bool

	// PathwayProgram runs pathway inference.
	PathwayProgram string

	// PathwayToggles is true when the pathway program understands
	// --skip_minpath, --no_gap_fill and --coverage.
	PathwayToggles bool

	// AlwaysCoverage is true when coverage is produced unconditionally.
	AlwaysCoverage bool
}

// Current is the interface of PICRUSt2 2.1 and later.
var Current = Dialect{
	Name:              "current",
	Suffix:            ".tsv.gz",
	MarkerOutput:      "marker_predicted_and_nsti",
	MetagenomeFilters: true,
	PathwayProgram:    ProgramPathways,
	PathwayToggles:    true,
}

// Legacy is the uncompressed interface of the 2.0 betas.
var Legacy = Dialect{
	Name:              "legacy",
	Suffix:            ".tsv",
	AppendsSuffix:     true,
	MarkerOutput:      "16S_predicted",
	MarkerThreads:     1,
	MetagenomeThreads: true,
	PathwayProgram:    ProgramMinPath,
	AlwaysCoverage:    true,
}

var dialects = []Dialect{Current, Legacy}

// DefaultDialect is used when none is configured.
const DefaultDialect = "current"

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	if name == "" {
		name = DefaultDialect
	}
	for _, d := range dialects {
		if d.Name == name {
			return d, nil
		}
	}
	return Dialect{}, errors.NewNotFoundError("dialect", name).WithCause(errors.ErrInvalidInput)
}

// DialectNames lists the registered dialect names.
func DialectNames() []string {
	names := make([]string, len(dialects))
	for i, d := range dialects {
		names[i] = d.Name
	}
	return names
}

// IsValidDialect reports whether name is registered.
func IsValidDialect(name string) bool {
	return slices.Contains(DialectNames(), name)
}

// Table returns the path of a table written by the toolchain, given its
// base path without suffix.
func (d Dialect) Table(base string) string {
	return base + d.Suffix
}

// OutputArg is the -o value hsp.py needs to produce Table(base).
func (d Dialect) OutputArg(base string) string {
	if d.AppendsSuffix {
		return base
	}
	return d.Table(base)
}

// Predicted returns the base path of a trait prediction table.
func (d Dialect) Predicted(trait string) string {
	if trait == MarkerTrait {
		return path.Join(OutputDir, d.MarkerOutput)
	}
	return path.Join(OutputDir, trait+"_predicted")
}

// MetagenomeDir returns the metagenome_pipeline.py output directory for a
// trait.
func (d Dialect) MetagenomeDir(trait string) string {
	return path.Join(OutputDir, trait+"_metagenome_out")
}

// Metagenome returns the unstratified metagenome table for a trait.
func (d Dialect) Metagenome(trait string) string {
	return d.Table(path.Join(d.MetagenomeDir(trait), "pred_metagenome_unstrat"))
}

// PathwayDir returns the pathway inference output directory.
func (d Dialect) PathwayDir() string {
	return path.Join(OutputDir, "pathways_out")
}

// PathwayAbundance returns the unstratified pathway abundance table.
func (d Dialect) PathwayAbundance() string {
	return d.Table(path.Join(d.PathwayDir(), "path_abun_unstrat"))
}

// PathwayCoverage returns the unstratified pathway coverage table.
func (d Dialect) PathwayCoverage() string {
	return d.Table(path.Join(d.PathwayDir(), "path_cov_unstrat"))
}
