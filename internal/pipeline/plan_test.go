package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	rerrors "github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

func defaultPlanConfig(d toolchain.Dialect) PlanConfig {
	return PlanConfig{Dialect: d, Traits: DefaultTraits, PathwayTrait: DefaultPathwayTrait}
}

func stageNames(stages []Stage) []string {
	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
	}
	return names
}

func TestBuildPlan_Order(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		mutate      func(*Params)
		wantEnabled []string
	}{
		{
			name:        "custom tree",
			method:      plugin.MethodCustomTree,
			wantEnabled: []string{"hsp_marker", "hsp_EC", "hsp_KO", "metagenome_EC", "metagenome_KO", "pathways"},
		},
		{
			name:        "full",
			method:      plugin.MethodFull,
			wantEnabled: []string{"place_seqs", "hsp_marker", "hsp_EC", "hsp_KO", "metagenome_EC", "metagenome_KO", "pathways"},
		},
		{
			name:        "no pathways",
			method:      plugin.MethodCustomTree,
			mutate:      func(p *Params) { p.NoPathways = true },
			wantEnabled: []string{"hsp_marker", "hsp_EC", "hsp_KO", "metagenome_EC", "metagenome_KO"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			plan := BuildPlan(tt.method, p, defaultPlanConfig(toolchain.Current))

			if got := len(plan.Stages); got != 7 {
				t.Errorf("plan has %d stages, want 7 (disabled stages stay listed)", got)
			}
			if diff := cmp.Diff(tt.wantEnabled, stageNames(plan.Enabled())); diff != "" {
				t.Errorf("enabled stages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildPlan_CurrentArgs(t *testing.T) {
	p := DefaultParams()
	p.Threads = 4
	p.SkipNorm = true
	p.Coverage = true
	plan := BuildPlan(plugin.MethodFull, p, PlanConfig{
		Dialect: toolchain.Current, Traits: DefaultTraits, PathwayTrait: "EC", RefDir: "/refs/pro_ref",
	})

	want := map[string][]string{
		StagePlaceSeqs: {"-s", "seqs.fna", "-o", "placed_seqs.tre", "-p", "4", "-t", "epa-ng", "--min_align", "0.8", "-r", "/refs/pro_ref"},
		StageHSPMarker: {"-i", "16S", "-t", "placed_seqs.tre", "-o", "picrust2_out/marker_predicted_and_nsti.tsv.gz", "-p", "4", "-n", "-m", "mp", "-e", "0.5"},
		"hsp_KO":       {"-i", "KO", "-t", "placed_seqs.tre", "-o", "picrust2_out/KO_predicted.tsv.gz", "-p", "4", "-m", "mp", "-e", "0.5"},
		"metagenome_EC": {
			"-i", "intable.biom", "-m", "picrust2_out/marker_predicted_and_nsti.tsv.gz",
			"-f", "picrust2_out/EC_predicted.tsv.gz", "-o", "picrust2_out/EC_metagenome_out",
			"--max_nsti", "2", "--min_reads", "1", "--min_samples", "1", "--skip_norm",
		},
		StagePathways: {"-i", "picrust2_out/EC_metagenome_out/pred_metagenome_unstrat.tsv.gz", "-o", "picrust2_out/pathways_out", "-p", "4", "--coverage"},
	}

	for name, args := range want {
		st, ok := plan.Stage(name)
		if !ok {
			t.Fatalf("stage %s missing", name)
		}
		if diff := cmp.Diff(args, st.Args); diff != "" {
			t.Errorf("%s args mismatch (-want +got):\n%s", name, diff)
		}
	}

	st, _ := plan.Stage(StagePathways)
	if st.Program != toolchain.ProgramPathways {
		t.Errorf("pathway program = %s", st.Program)
	}
	if plan.PathwayCoverage == "" {
		t.Error("coverage requested but no coverage output planned")
	}
}

func TestBuildPlan_LegacyArgs(t *testing.T) {
	p := DefaultParams()
	p.Threads = 3
	plan := BuildPlan(plugin.MethodCustomTree, p, defaultPlanConfig(toolchain.Legacy))

	want := map[string][]string{
		StageHSPMarker: {"-i", "16S", "-t", "placed_seqs.tre", "-o", "picrust2_out/16S_predicted", "-p", "1", "-n", "-m", "mp", "-e", "0.5"},
		"hsp_EC":       {"-i", "EC", "-t", "placed_seqs.tre", "-o", "picrust2_out/EC_predicted", "-p", "3", "-m", "mp", "-e", "0.5"},
		"metagenome_KO": {
			"-i", "intable.biom", "-m", "picrust2_out/16S_predicted.tsv",
			"-f", "picrust2_out/KO_predicted.tsv", "-o", "picrust2_out/KO_metagenome_out",
			"-p", "3", "--max_nsti", "2",
		},
		StagePathways: {"-i", "picrust2_out/EC_metagenome_out/pred_metagenome_unstrat.tsv", "-o", "picrust2_out/pathways_out", "-p", "3"},
	}
	for name, args := range want {
		st, _ := plan.Stage(name)
		if diff := cmp.Diff(args, st.Args); diff != "" {
			t.Errorf("%s args mismatch (-want +got):\n%s", name, diff)
		}
	}

	st, _ := plan.Stage(StagePathways)
	if st.Program != toolchain.ProgramMinPath {
		t.Errorf("legacy pathway program = %s, want %s", st.Program, toolchain.ProgramMinPath)
	}
	if plan.PathwayCoverage == "" {
		t.Error("legacy dialect always produces coverage")
	}
}

func TestBuildPlan_Verbose(t *testing.T) {
	p := DefaultParams()
	p.HighlyVerbose = true
	plan := BuildPlan(plugin.MethodFull, p, defaultPlanConfig(toolchain.Current))

	for _, st := range plan.Stages {
		if last := st.Args[len(st.Args)-1]; last != "--verbose" {
			t.Errorf("%s: last arg = %q, want --verbose", st.Name, last)
		}
	}
}

func TestBuildPlan_Programs(t *testing.T) {
	plan := BuildPlan(plugin.MethodCustomTree, DefaultParams(), defaultPlanConfig(toolchain.Current))
	want := []string{toolchain.ProgramHSP, toolchain.ProgramMetagenome, toolchain.ProgramPathways}
	if diff := cmp.Diff(want, plan.Programs()); diff != "" {
		t.Errorf("Programs() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPlan_CustomTraits(t *testing.T) {
	plan := BuildPlan(plugin.MethodCustomTree, DefaultParams(), PlanConfig{
		Dialect: toolchain.Current, Traits: []string{"KO", "COG", "EC"}, PathwayTrait: "EC",
	})
	want := []string{"hsp_marker", "hsp_KO", "hsp_COG", "hsp_EC", "metagenome_KO", "metagenome_COG", "metagenome_EC", "pathways"}
	if diff := cmp.Diff(want, stageNames(plan.Enabled())); diff != "" {
		t.Errorf("enabled stages mismatch (-want +got):\n%s", diff)
	}
	if _, ok := plan.Metagenomes["COG"]; !ok {
		t.Error("COG metagenome should be planned")
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		method  *plugin.Method
		dialect toolchain.Dialect
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults current", plugin.CustomTreeMethod(), toolchain.Current, nil, false},
		{"defaults legacy", plugin.FullMethod(), toolchain.Legacy, nil, false},
		{"zero threads", plugin.CustomTreeMethod(), toolchain.Current, func(p *Params) { p.Threads = 0 }, true},
		{"unknown hsp method", plugin.CustomTreeMethod(), toolchain.Current, func(p *Params) { p.HSPMethod = "nj" }, true},
		{"bad placement tool on full", plugin.FullMethod(), toolchain.Current, func(p *Params) { p.PlacementTool = "pplacer" }, true},
		{"placement tool ignored on custom tree", plugin.CustomTreeMethod(), toolchain.Current, func(p *Params) { p.PlacementTool = "pplacer" }, false},
		{"min_align out of range", plugin.FullMethod(), toolchain.Current, func(p *Params) { p.MinAlign = 1.2 }, true},
		{"negative max_nsti", plugin.CustomTreeMethod(), toolchain.Current, func(p *Params) { p.MaxNSTI = -1 }, true},
		{"NaN max_nsti", plugin.CustomTreeMethod(), toolchain.Current, func(p *Params) { p.MaxNSTI = math.NaN() }, true},
		{"NaN edge_exponent", plugin.CustomTreeMethod(), toolchain.Current, func(p *Params) { p.EdgeExponent = math.NaN() }, true},
		{"min_align of one", plugin.FullMethod(), toolchain.Current, func(p *Params) { p.MinAlign = 1 }, true},
		{"skip_minpath on legacy", plugin.CustomTreeMethod(), toolchain.Legacy, func(p *Params) { p.SkipMinPath = true }, true},
		{"skip_minpath on legacy without pathways", plugin.CustomTreeMethod(), toolchain.Legacy, func(p *Params) { p.SkipMinPath = true; p.NoPathways = true }, false},
		{"min_reads on legacy", plugin.CustomTreeMethod(), toolchain.Legacy, func(p *Params) { p.MinReads = 5 }, true},
		{"skip_norm on legacy", plugin.CustomTreeMethod(), toolchain.Legacy, func(p *Params) { p.SkipNorm = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			err := p.Validate(tt.method, tt.dialect)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, rerrors.ErrInvalidInput) {
				t.Errorf("error should match ErrInvalidInput: %v", err)
			}
		})
	}
}

func TestValidateTraits(t *testing.T) {
	tests := []struct {
		name       string
		traits     []string
		pathway    string
		noPathways bool
		wantErr    bool
	}{
		{"defaults", DefaultTraits, "EC", false, false},
		{"empty", nil, "EC", false, true},
		{"marker as trait", []string{"16S"}, "16S", false, true},
		{"duplicate", []string{"EC", "EC"}, "EC", false, true},
		{"pathway trait not predicted", []string{"KO"}, "EC", false, true},
		{"pathway trait irrelevant without pathways", []string{"KO"}, "EC", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTraits(tt.traits, tt.pathway, tt.noPathways)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTraits() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParams_Set(t *testing.T) {
	var p Params
	set := []struct {
		name  string
		value any
	}{
		{plugin.ParamThreads, 4},
		{plugin.ParamHSPMethod, "pic"},
		{plugin.ParamPlacementTool, "sepp"},
		{plugin.ParamMinAlign, 0.6},
		{plugin.ParamMaxNSTI, 3}, // int accepted for float
		{plugin.ParamEdgeExponent, 0.25},
		{plugin.ParamMinReads, 2},
		{plugin.ParamMinSamples, 5},
		{plugin.ParamSkipMinPath, true},
		{plugin.ParamNoGapFill, true},
		{plugin.ParamSkipNorm, true},
		{plugin.ParamNoPathways, true},
		{plugin.ParamCoverage, true},
		{plugin.ParamHighlyVerbose, true},
	}
	for _, s := range set {
		if err := p.Set(s.name, s.value); err != nil {
			t.Fatalf("Set(%s, %v) error = %v", s.name, s.value, err)
		}
	}

	want := Params{
		Threads: 4, HSPMethod: "pic", PlacementTool: "sepp",
		MinAlign: 0.6, MaxNSTI: 3, EdgeExponent: 0.25,
		MinReads: 2, MinSamples: 5,
		SkipMinPath: true, NoGapFill: true, SkipNorm: true,
		NoPathways: true, Coverage: true, HighlyVerbose: true,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}
}

func TestParams_SetErrors(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value any
	}{
		{"unknown", "stratified", true},
		{"string for int", plugin.ParamThreads, "4"},
		{"float for int", plugin.ParamMinReads, 1.5},
		{"int for string", plugin.ParamHSPMethod, 1},
		{"string for float", plugin.ParamMaxNSTI, "2"},
		{"string for bool", plugin.ParamSkipNorm, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			err := p.Set(tt.param, tt.value)
			if !errors.Is(err, rerrors.ErrInvalidInput) {
				t.Errorf("Set() error = %v, want ErrInvalidInput", err)
			}
			if diff := cmp.Diff(DefaultParams(), p); diff != "" {
				t.Errorf("failed Set changed params:\n%s", diff)
			}
		})
	}
}
