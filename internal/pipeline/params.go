package pipeline

import (
	"github.com/Iron-Ham/picrust2-runner/internal/errors"
	"github.com/Iron-Ham/picrust2-runner/internal/plugin"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// Params is the parameter set of one call. Placement fields are ignored by
// custom-tree calls.
type Params struct {
	Threads       int
	HSPMethod     string
	PlacementTool string
	MinAlign      float64
	MaxNSTI       float64
	EdgeExponent  float64
	MinReads      int
	MinSamples    int
	SkipMinPath   bool
	NoGapFill     bool
	SkipNorm      bool
	NoPathways    bool
	Coverage      bool
	HighlyVerbose bool
}

// DefaultParams returns the registered defaults.
func DefaultParams() Params {
	return Params{
		Threads:       1,
		HSPMethod:     "mp",
		PlacementTool: "epa-ng",
		MinAlign:      0.8,
		MaxNSTI:       2.0,
		EdgeExponent:  0.5,
		MinReads:      1,
		MinSamples:    1,
	}
}

// Values returns the parameters by registry name for the given method.
func (p Params) Values(method string) map[string]any {
	v := map[string]any{
		plugin.ParamThreads:       p.Threads,
		plugin.ParamHSPMethod:     p.HSPMethod,
		plugin.ParamMaxNSTI:       p.MaxNSTI,
		plugin.ParamEdgeExponent:  p.EdgeExponent,
		plugin.ParamMinReads:      p.MinReads,
		plugin.ParamMinSamples:    p.MinSamples,
		plugin.ParamSkipMinPath:   p.SkipMinPath,
		plugin.ParamNoGapFill:     p.NoGapFill,
		plugin.ParamSkipNorm:      p.SkipNorm,
		plugin.ParamNoPathways:    p.NoPathways,
		plugin.ParamCoverage:      p.Coverage,
		plugin.ParamHighlyVerbose: p.HighlyVerbose,
	}
	if method == plugin.MethodFull {
		v[plugin.ParamPlacementTool] = p.PlacementTool
		v[plugin.ParamMinAlign] = p.MinAlign
	}
	return v
}

// Set assigns the parameter registered under name. Integers are accepted
// for float parameters.
func (p *Params) Set(name string, v any) error {
	invalid := func() error {
		return errors.NewValidationError("wrong value type").WithField(name).WithValue(v)
	}
	switch name {
	case plugin.ParamThreads, plugin.ParamMinReads, plugin.ParamMinSamples:
		n, ok := v.(int)
		if !ok {
			return invalid()
		}
		switch name {
		case plugin.ParamThreads:
			p.Threads = n
		case plugin.ParamMinReads:
			p.MinReads = n
		default:
			p.MinSamples = n
		}
	case plugin.ParamHSPMethod, plugin.ParamPlacementTool:
		s, ok := v.(string)
		if !ok {
			return invalid()
		}
		if name == plugin.ParamHSPMethod {
			p.HSPMethod = s
		} else {
			p.PlacementTool = s
		}
	case plugin.ParamMinAlign, plugin.ParamMaxNSTI, plugin.ParamEdgeExponent:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case int:
			f = float64(x)
		default:
			return invalid()
		}
		switch name {
		case plugin.ParamMinAlign:
			p.MinAlign = f
		case plugin.ParamMaxNSTI:
			p.MaxNSTI = f
		default:
			p.EdgeExponent = f
		}
	case plugin.ParamSkipMinPath, plugin.ParamNoGapFill, plugin.ParamSkipNorm,
		plugin.ParamNoPathways, plugin.ParamCoverage, plugin.ParamHighlyVerbose:
		b, ok := v.(bool)
		if !ok {
			return invalid()
		}
		switch name {
		case plugin.ParamSkipMinPath:
			p.SkipMinPath = b
		case plugin.ParamNoGapFill:
			p.NoGapFill = b
		case plugin.ParamSkipNorm:
			p.SkipNorm = b
		case plugin.ParamNoPathways:
			p.NoPathways = b
		case plugin.ParamCoverage:
			p.Coverage = b
		default:
			p.HighlyVerbose = b
		}
	default:
		return errors.NewValidationError("unknown parameter").WithField(name)
	}
	return nil
}

// Validate checks p against the method's registration and the options the
// dialect's programs accept. Every violation is reported.
func (p Params) Validate(m *plugin.Method, d toolchain.Dialect) error {
	errs := []error{m.Validate(p.Values(m.ID))}

	unsupported := func(name string, value any) {
		errs = append(errs, errors.NewValidationError(
			"not supported by the "+d.Name+" toolchain dialect").WithField(name).WithValue(value))
	}
	if !d.PathwayToggles && !p.NoPathways {
		if p.SkipMinPath {
			unsupported(plugin.ParamSkipMinPath, p.SkipMinPath)
		}
		if p.NoGapFill {
			unsupported(plugin.ParamNoGapFill, p.NoGapFill)
		}
	}
	if !d.MetagenomeFilters {
		if p.MinReads != 1 {
			unsupported(plugin.ParamMinReads, p.MinReads)
		}
		if p.MinSamples != 1 {
			unsupported(plugin.ParamMinSamples, p.MinSamples)
		}
	}
	return errors.Join(errs...)
}

// validateTraits checks the trait configuration of a runner.
func validateTraits(traits []string, pathwayTrait string, noPathways bool) error {
	if len(traits) == 0 {
		return errors.NewValidationError("at least one trait category is required").WithField("traits")
	}
	seen := make(map[string]bool, len(traits))
	for _, t := range traits {
		if t == "" || t == toolchain.MarkerTrait {
			return errors.NewValidationError("invalid trait category").WithField("traits").WithValue(t)
		}
		if seen[t] {
			return errors.NewValidationError("duplicate trait category").WithField("traits").WithValue(t)
		}
		seen[t] = true
	}
	if !noPathways && !seen[pathwayTrait] {
		return errors.NewValidationError("pathway trait must be one of the predicted traits").
			WithField("pathway_trait").WithValue(pathwayTrait)
	}
	return nil
}
