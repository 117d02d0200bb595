package asset

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// ConverterConfig describes a converter. Factors maps a bus label to the
// conversion factor of the flow on that bus; missing entries default to 1.
// For an input factor of 1, an output with factor 0.4 delivers 0.4 units per
// unit drawn.
type ConverterConfig struct {
	Label   string
	Inputs  []*bus.Flow
	Outputs []*bus.Flow
	Factors map[string]float64
}

// Converter turns input flows into output flows at fixed ratios.
type Converter struct {
	base
	inputs  []*bus.Flow
	outputs []*bus.Flow
	factors map[string]float64
}

// NewConverter validates the configuration and attaches the flows.
func NewConverter(cfg ConverterConfig) (*Converter, error) {
	if err := bus.ValidateLabel(cfg.Label); err != nil {
		return nil, err
	}
	if len(cfg.Inputs) == 0 || len(cfg.Outputs) == 0 {
		return nil, fmt.Errorf("%w: converter %s needs at least one input and one output", bus.ErrInvalidTopology, cfg.Label)
	}

	seen := make(map[string]bool)
	factors := make(map[string]float64)
	flows := make([]*bus.Flow, 0, len(cfg.Inputs)+len(cfg.Outputs))
	attach := func(f *bus.Flow, dir bus.Direction) error {
		if f == nil {
			return fmt.Errorf("%w: converter %s declares a nil flow", bus.ErrInvalidTopology, cfg.Label)
		}
		key := f.Bus().Label()
		if seen[key] {
			return fmt.Errorf("%w: converter %s has two flows on bus %s", bus.ErrDuplicateIdentifier, cfg.Label, key)
		}
		seen[key] = true

		factor, ok := cfg.Factors[key]
		if !ok {
			factor = 1
		}
		if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return fmt.Errorf("%w: converter %s has conversion factor %v on bus %s", bus.ErrInvalidParameter, cfg.Label, factor, key)
		}
		factors[key] = factor

		if err := f.Attach(cfg.Label, dir); err != nil {
			return err
		}
		flows = append(flows, f)
		return nil
	}

	for _, f := range cfg.Inputs {
		if err := attach(f, bus.Input); err != nil {
			return nil, err
		}
	}
	for _, f := range cfg.Outputs {
		if err := attach(f, bus.Output); err != nil {
			return nil, err
		}
	}
	for key := range cfg.Factors {
		if !seen[key] {
			return nil, fmt.Errorf("%w: converter %s has a conversion factor for unconnected bus %s", bus.ErrInvalidTopology, cfg.Label, key)
		}
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Converter{
		base:    base{pid: pid, label: cfg.Label, flows: flows},
		inputs:  cfg.Inputs,
		outputs: cfg.Outputs,
		factors: factors,
	}, nil
}

func (c *Converter) Kind() bus.Kind { return bus.ConverterKind }

// Inputs returns the flows drawn from buses.
func (c *Converter) Inputs() []*bus.Flow { return c.inputs }

// Outputs returns the flows fed into buses.
func (c *Converter) Outputs() []*bus.Flow { return c.outputs }

// Factor is the conversion factor of the flow on bus label.
func (c *Converter) Factor(label string) float64 {
	return c.factors[label]
}

// Constraints ties every output to every input:
// cf_in * f_out - cf_out * f_in = 0.
func (c *Converter) Constraints(v bus.Variables, t int) []opt.Constraint {
	rows := make([]opt.Constraint, 0, len(c.inputs)*len(c.outputs))
	for _, in := range c.inputs {
		for _, out := range c.outputs {
			rows = append(rows, opt.Constraint{
				Name: fmt.Sprintf("conversion(%s,%s,%s,%d)", c.label, in.Bus().Label(), out.Bus().Label(), t),
				Terms: []opt.Term{
					{Var: v.Flow(out, t), Coef: c.factors[in.Bus().Label()]},
					{Var: v.Flow(in, t), Coef: -c.factors[out.Bus().Label()]},
				},
				Rel: opt.EQ,
				RHS: 0,
			})
		}
	}
	return rows
}
