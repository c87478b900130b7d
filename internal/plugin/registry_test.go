package plugin

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	rerrors "github.com/Iron-Ham/picrust2-runner/internal/errors"
)

func TestRegistry_Method(t *testing.T) {
	r := Default()

	for _, id := range []string{MethodFull, MethodCustomTree} {
		if _, err := r.Method(id); err != nil {
			t.Errorf("Method(%q) error = %v", id, err)
		}
	}

	_, err := r.Method("shotgun")
	var nf *rerrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Method(shotgun) error = %v, want NotFoundError", err)
	}
}

func TestMethod_ParameterSets(t *testing.T) {
	full, custom := FullMethod(), CustomTreeMethod()

	for _, name := range []string{ParamPlacementTool, ParamMinAlign} {
		if _, ok := full.Parameter(name); !ok {
			t.Errorf("full method should have %s", name)
		}
		if _, ok := custom.Parameter(name); ok {
			t.Errorf("custom-tree method should not have %s", name)
		}
	}
	if got := len(full.Parameters) - len(custom.Parameters); got != 2 {
		t.Errorf("full has %d more parameters than custom-tree, want 2", got)
	}
}

func TestMethod_Defaults(t *testing.T) {
	d := FullMethod().Defaults()

	want := map[string]any{
		ParamThreads: 1, ParamHSPMethod: "mp", ParamPlacementTool: "epa-ng",
		ParamMinAlign: 0.8, ParamMaxNSTI: 2.0, ParamEdgeExponent: 0.5,
		ParamMinReads: 1, ParamMinSamples: 1,
		ParamSkipMinPath: false, ParamNoGapFill: false, ParamSkipNorm: false,
		ParamNoPathways: false, ParamCoverage: false, ParamHighlyVerbose: false,
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Defaults() mismatch (-want +got):\n%s", diff)
	}
	if err := FullMethod().Validate(d); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestMethod_Validate(t *testing.T) {
	tests := []struct {
		name       string
		method     *Method
		values     map[string]any
		wantFields []string
	}{
		{"valid", FullMethod(), map[string]any{ParamThreads: 4, ParamMinAlign: 0.99, ParamHSPMethod: "pic"}, nil},
		{"min_align at exclusive bound", FullMethod(), map[string]any{ParamMinAlign: 1.0}, []string{ParamMinAlign}},
		{"NaN floats", FullMethod(), map[string]any{ParamMinAlign: math.NaN(), ParamMaxNSTI: math.NaN(), ParamEdgeExponent: math.NaN()},
			[]string{ParamEdgeExponent, ParamMaxNSTI, ParamMinAlign}},
		{"zero threads", CustomTreeMethod(), map[string]any{ParamThreads: 0}, []string{ParamThreads}},
		{"bad hsp method", CustomTreeMethod(), map[string]any{ParamHSPMethod: "nj"}, []string{ParamHSPMethod}},
		{"bad placement tool", FullMethod(), map[string]any{ParamPlacementTool: "pplacer"}, []string{ParamPlacementTool}},
		{"min_align above range", FullMethod(), map[string]any{ParamMinAlign: 1.5}, []string{ParamMinAlign}},
		{"negative max_nsti", CustomTreeMethod(), map[string]any{ParamMaxNSTI: -0.1}, []string{ParamMaxNSTI}},
		{"negative edge exponent", CustomTreeMethod(), map[string]any{ParamEdgeExponent: -1.0}, []string{ParamEdgeExponent}},
		{"wrong kind", CustomTreeMethod(), map[string]any{ParamSkipNorm: "yes", ParamThreads: 2.5}, []string{ParamSkipNorm, ParamThreads}},
		{"placement on custom tree", CustomTreeMethod(), map[string]any{ParamPlacementTool: "sepp"}, []string{ParamPlacementTool}},
		{
			"all reported",
			FullMethod(),
			map[string]any{ParamThreads: 0, ParamMinReads: 0, ParamMinSamples: 0},
			[]string{ParamMinReads, ParamMinSamples, ParamThreads},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.method.Validate(tt.values)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, rerrors.ErrInvalidInput) {
				t.Fatalf("Validate() error = %v, want ErrInvalidInput", err)
			}
			var fields []string
			for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
				var ve *rerrors.ValidationError
				if errors.As(e, &ve) {
					fields = append(fields, ve.Field)
				}
			}
			if diff := cmp.Diff(tt.wantFields, fields); diff != "" {
				t.Errorf("invalid fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegistry_YAML(t *testing.T) {
	out, err := yaml.Marshal(Default())
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	text := string(out)
	for _, want := range []string{"id: full", "id: custom-tree", "name: hsp_method", "- subtree_average", "max: 1", "exclusive_max: true", "optional: true"} {
		if !strings.Contains(text, want) {
			t.Errorf("YAML missing %q", want)
		}
	}

	var back Registry
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if len(back.Methods) != 2 {
		t.Errorf("decoded %d methods, want 2", len(back.Methods))
	}
}
