// Package plugin holds the registration metadata of the two pipeline
// methods: their inputs, typed parameters with ranges and choices, and
// outputs. The CLI derives its flags from it and parameter sets are
// validated against it before any work starts.
package plugin

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// Kind is a parameter's value type.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
)

// Method ids.
const (
	MethodCustomTree = "custom-tree"
	MethodFull       = "full"
)

// Parameter names.
const (
	ParamThreads       = "threads"
	ParamHSPMethod     = "hsp_method"
	ParamPlacementTool = "placement_tool"
	ParamMinAlign      = "min_align"
	ParamMaxNSTI       = "max_nsti"
	ParamEdgeExponent  = "edge_exponent"
	ParamMinReads      = "min_reads"
	ParamMinSamples    = "min_samples"
	ParamSkipMinPath   = "skip_minpath"
	ParamNoGapFill     = "no_gap_fill"
	ParamSkipNorm      = "skip_norm"
	ParamNoPathways    = "no_pathways"
	ParamCoverage      = "coverage"
	ParamHighlyVerbose = "highly_verbose"
)

// Output names.
const (
	OutputKOMetagenome     = "ko_metagenome"
	OutputECMetagenome     = "ec_metagenome"
	OutputPathwayAbundance = "pathway_abundance"
	OutputPathwayCoverage  = "pathway_coverage"
)

// HSPMethods are the hidden-state prediction methods hsp.py accepts.
var HSPMethods = []string{"mp", "emp_prob", "pic", "scp", "subtree_average"}

// PlacementTools are the placement back ends place_seqs.py accepts.
var PlacementTools = []string{"epa-ng", "sepp"}

// Input describes one data input of a method.
type Input struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// Output describes one table a method returns.
type Output struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Optional    bool   `yaml:"optional,omitempty"`
}

// Parameter describes one typed method parameter.
type Parameter struct {
	Name        string   `yaml:"name"`
	Kind        Kind     `yaml:"kind"`
	Default     any      `yaml:"default"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Choices     []string `yaml:"choices,omitempty"`
	Description string   `yaml:"description"`

	// ExclusiveMax excludes Max itself from the valid range.
	ExclusiveMax bool `yaml:"exclusive_max,omitempty"`
}

// Method is one registered pipeline entry point.
type Method struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Inputs      []Input     `yaml:"inputs"`
	Parameters  []Parameter `yaml:"parameters"`
	Outputs     []Output    `yaml:"outputs"`
}

// Registry is the full set of methods.
type Registry struct {
	Name        string    `yaml:"name"`
	Website     string    `yaml:"website"`
	Description string    `yaml:"description"`
	Methods     []*Method `yaml:"methods"`
}

// Method returns the method registered under id.
func (r *Registry) Method(id string) (*Method, error) {
	for _, m := range r.Methods {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.NewNotFoundError("method", id)
}

// Parameter returns the named parameter.
func (m *Method) Parameter(name string) (Parameter, bool) {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Defaults returns every parameter's default value.
func (m *Method) Defaults() map[string]any {
	out := make(map[string]any, len(m.Parameters))
	for _, p := range m.Parameters {
		out[p.Name] = p.Default
	}
	return out
}

// Validate checks values against the method's parameters. Unknown names,
// wrong kinds, out-of-range numbers and invalid choices are all reported,
// joined in parameter-name order.
func (m *Method) Validate(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		p, ok := m.Parameter(name)
		if !ok {
			errs = append(errs, errors.NewValidationError(
				fmt.Sprintf("unknown parameter for method %s", m.ID)).WithField(name))
			continue
		}
		if err := p.Check(values[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Check validates a single value.
func (p Parameter) Check(v any) error {
	switch p.Kind {
	case KindBool:
		if _, ok := v.(bool); !ok {
			return p.invalid(v, "must be a boolean")
		}
		return nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return p.invalid(v, "must be a string")
		}
		if len(p.Choices) > 0 && !slices.Contains(p.Choices, s) {
			return p.invalid(v, fmt.Sprintf("must be one of %v", p.Choices))
		}
		return nil
	case KindInt:
		n, ok := v.(int)
		if !ok {
			return p.invalid(v, "must be an integer")
		}
		return p.checkRange(float64(n), v)
	case KindFloat:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case int:
			f = float64(x)
		default:
			return p.invalid(v, "must be a number")
		}
		if math.IsNaN(f) {
			return p.invalid(v, "must be a number")
		}
		return p.checkRange(f, v)
	}
	return p.invalid(v, fmt.Sprintf("unsupported kind %q", p.Kind))
}

func (p Parameter) checkRange(f float64, v any) error {
	if p.Min != nil && f < *p.Min {
		return p.invalid(v, fmt.Sprintf("must be at least %v", *p.Min))
	}
	if p.Max != nil && p.ExclusiveMax && f >= *p.Max {
		return p.invalid(v, fmt.Sprintf("must be less than %v", *p.Max))
	}
	if p.Max != nil && f > *p.Max {
		return p.invalid(v, fmt.Sprintf("must be at most %v", *p.Max))
	}
	return nil
}

func (p Parameter) invalid(v any, msg string) error {
	return errors.NewValidationError(msg).WithField(p.Name).WithValue(v)
}
