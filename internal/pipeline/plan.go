package pipeline

import (
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// Stage names.
const (
	StagePlaceSeqs = "place_seqs"
	StageHSPMarker = "hsp_marker"
	StagePathways  = "pathways"
)

// HSPStage names the hidden-state prediction stage of a trait.
func HSPStage(trait string) string { return "hsp_" + trait }

// MetagenomeStage names the metagenome stage of a trait.
func MetagenomeStage(trait string) string { return "metagenome_" + trait }

// PlanConfig holds the runner settings that shape a plan.
type PlanConfig struct {
	Dialect      toolchain.Dialect
	Traits       []string
	PathwayTrait string
	RefDir       string // optional place_seqs.py reference directory
}

// BuildPlan lays out the stages of method for p. It does not validate p.
func BuildPlan(method string, p Params, cfg PlanConfig) *Plan {
	d := cfg.Dialect
	plan := &Plan{Method: method, Metagenomes: make(map[string]string, len(cfg.Traits))}

	verbose := func(a *toolchain.Args) []string {
		return a.SwitchIf(p.HighlyVerbose, "--verbose").List()
	}

	placement := toolchain.NewArgs().
		Flag("-s", SeqsFile).
		Flag("-o", TreeFile).
		Int("-p", p.Threads).
		Flag("-t", p.PlacementTool).
		Float("--min_align", p.MinAlign).
		FlagIf(cfg.RefDir != "", "-r", cfg.RefDir)
	plan.Stages = append(plan.Stages, Stage{
		Name:    StagePlaceSeqs,
		Phase:   PhasePlacement,
		Program: toolchain.ProgramPlaceSeqs,
		Args:    verbose(placement),
		Inputs:  []string{SeqsFile},
		Outputs: []string{TreeFile},
		Enabled: method == plugin.MethodFull,
	})

	marker := d.Predicted(toolchain.MarkerTrait)
	markerThreads := p.Threads
	if d.MarkerThreads > 0 {
		markerThreads = d.MarkerThreads
	}
	plan.Stages = append(plan.Stages, Stage{
		Name:    StageHSPMarker,
		Phase:   PhasePrediction,
		Program: toolchain.ProgramHSP,
		Args:    verbose(hspArgs(toolchain.MarkerTrait, d.OutputArg(marker), markerThreads, true, p)),
		Inputs:  []string{TreeFile},
		Outputs: []string{d.Table(marker)},
		Enabled: true,
	})

	for _, trait := range cfg.Traits {
		predicted := d.Predicted(trait)
		plan.Stages = append(plan.Stages, Stage{
			Name:    HSPStage(trait),
			Phase:   PhasePrediction,
			Program: toolchain.ProgramHSP,
			Args:    verbose(hspArgs(trait, d.OutputArg(predicted), p.Threads, false, p)),
			Inputs:  []string{TreeFile},
			Outputs: []string{d.Table(predicted)},
			Enabled: true,
		})
	}

	for _, trait := range cfg.Traits {
		args := toolchain.NewArgs().
			Flag("-i", TableFile).
			Flag("-m", d.Table(marker)).
			Flag("-f", d.Table(d.Predicted(trait))).
			Flag("-o", d.MetagenomeDir(trait))
		if d.MetagenomeThreads {
			args.Int("-p", p.Threads)
		}
		args.Float("--max_nsti", p.MaxNSTI)
		if d.MetagenomeFilters {
			args.Int("--min_reads", p.MinReads).Int("--min_samples", p.MinSamples)
		}
		args.SwitchIf(p.SkipNorm, "--skip_norm")

		out := d.Metagenome(trait)
		plan.Metagenomes[trait] = out
		plan.Stages = append(plan.Stages, Stage{
			Name:    MetagenomeStage(trait),
			Phase:   PhaseNormalization,
			Program: toolchain.ProgramMetagenome,
			Args:    verbose(args),
			Inputs:  []string{TableFile, d.Table(marker), d.Table(d.Predicted(trait))},
			Outputs: []string{out},
			Enabled: true,
		})
	}

	pathwayIn := d.Metagenome(cfg.PathwayTrait)
	args := toolchain.NewArgs().
		Flag("-i", pathwayIn).
		Flag("-o", d.PathwayDir()).
		Int("-p", p.Threads)
	coverage := d.AlwaysCoverage
	if d.PathwayToggles {
		args.SwitchIf(p.SkipMinPath, "--skip_minpath").
			SwitchIf(p.NoGapFill, "--no_gap_fill").
			SwitchIf(p.Coverage, "--coverage")
		coverage = coverage || p.Coverage
	}
	outputs := []string{d.PathwayAbundance()}
	if coverage {
		outputs = append(outputs, d.PathwayCoverage())
	}
	plan.Stages = append(plan.Stages, Stage{
		Name:    StagePathways,
		Phase:   PhaseInference,
		Program: d.PathwayProgram,
		Args:    verbose(args),
		Inputs:  []string{pathwayIn},
		Outputs: outputs,
		Enabled: !p.NoPathways,
	})
	if !p.NoPathways {
		plan.PathwayAbundance = d.PathwayAbundance()
		if coverage {
			plan.PathwayCoverage = d.PathwayCoverage()
		}
	}

	return plan
}

func hspArgs(trait, output string, threads int, nsti bool, p Params) *toolchain.Args {
	return toolchain.NewArgs().
		Flag("-i", trait).
		Flag("-t", TreeFile).
		Flag("-o", output).
		Int("-p", threads).
		SwitchIf(nsti, "-n").
		Flag("-m", p.HSPMethod).
		Float("-e", p.EdgeExponent)
}
