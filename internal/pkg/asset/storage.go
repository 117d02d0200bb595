package asset

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// StorageConfig describes a storage. LossRate is the fraction of the level
// lost per step, InitialLevel a fraction of Capacity. Balanced additionally
// requires the last level to return to the initial level.
type StorageConfig struct {
	Label             string
	Input             *bus.Flow
	Output            *bus.Flow
	Capacity          float64
	LossRate          float64
	InitialLevel      float64
	InflowEfficiency  float64
	OutflowEfficiency float64
	Balanced          bool
}

// Storage holds a carrier level across timesteps.
type Storage struct {
	base
	cfg StorageConfig
}

// NewStorage validates the configuration and attaches the flows.
func NewStorage(cfg StorageConfig) (*Storage, error) {
	if err := bus.ValidateLabel(cfg.Label); err != nil {
		return nil, err
	}
	if cfg.Input == nil || cfg.Output == nil {
		return nil, fmt.Errorf("%w: storage %s needs one input and one output flow", bus.ErrInvalidTopology, cfg.Label)
	}
	if cfg.Input.Carrier() != cfg.Output.Carrier() {
		return nil, fmt.Errorf("%w: storage %s connects %s to %s", bus.ErrInvalidTopology, cfg.Label, cfg.Input.Carrier(), cfg.Output.Carrier())
	}
	switch {
	case cfg.Capacity < 0 || math.IsInf(cfg.Capacity, 0) || math.IsNaN(cfg.Capacity):
		return nil, fmt.Errorf("%w: storage %s has capacity %v", bus.ErrInvalidParameter, cfg.Label, cfg.Capacity)
	case !(cfg.LossRate >= 0 && cfg.LossRate <= 1):
		return nil, fmt.Errorf("%w: storage %s has loss rate %v", bus.ErrInvalidParameter, cfg.Label, cfg.LossRate)
	case !(cfg.InitialLevel >= 0 && cfg.InitialLevel <= 1):
		return nil, fmt.Errorf("%w: storage %s has initial level %v", bus.ErrInvalidParameter, cfg.Label, cfg.InitialLevel)
	case !(cfg.InflowEfficiency > 0) || !(cfg.OutflowEfficiency > 0):
		return nil, fmt.Errorf("%w: storage %s has efficiencies %v/%v", bus.ErrInvalidParameter, cfg.Label, cfg.InflowEfficiency, cfg.OutflowEfficiency)
	}

	if err := cfg.Input.Attach(cfg.Label, bus.Input); err != nil {
		return nil, err
	}
	if err := cfg.Output.Attach(cfg.Label, bus.Output); err != nil {
		return nil, err
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Storage{
		base: base{pid: pid, label: cfg.Label, flows: []*bus.Flow{cfg.Input, cfg.Output}},
		cfg:  cfg,
	}, nil
}

func (s *Storage) Kind() bus.Kind { return bus.StorageKind }

// Capacity bounds the level variables.
func (s *Storage) Capacity() float64 { return s.cfg.Capacity }

// Config returns the storage parameters.
func (s *Storage) Config() StorageConfig { return s.cfg }

// Input is the charging flow.
func (s *Storage) Input() *bus.Flow { return s.cfg.Input }

// Output is the discharging flow.
func (s *Storage) Output() *bus.Flow { return s.cfg.Output }

// Constraints returns the level transition rows for step t.
//
// At t = 0 the level is pinned to the initial level and the net exchange
// with the bus is zero. For t > 0:
// level[t] - (1-loss)*level[t-1] - eta_in*f_in[t] + f_out[t]/eta_out = 0.
func (s *Storage) Constraints(v bus.Variables, t int) []opt.Constraint {
	initial := s.cfg.InitialLevel * s.cfg.Capacity
	level := v.Level(s.label, t)
	in := v.Flow(s.cfg.Input, t)
	out := v.Flow(s.cfg.Output, t)
	exchange := []opt.Term{
		{Var: in, Coef: -s.cfg.InflowEfficiency},
		{Var: out, Coef: 1 / s.cfg.OutflowEfficiency},
	}

	var rows []opt.Constraint
	if t == 0 {
		rows = append(rows,
			opt.Constraint{
				Name:  fmt.Sprintf("initial(%s)", s.label),
				Terms: []opt.Term{{Var: level, Coef: 1}},
				Rel:   opt.EQ,
				RHS:   initial,
			},
			opt.Constraint{
				Name:  fmt.Sprintf("storage(%s,%d)", s.label, t),
				Terms: exchange,
				Rel:   opt.EQ,
				RHS:   0,
			})
	} else {
		terms := append([]opt.Term{
			{Var: level, Coef: 1},
			{Var: v.Level(s.label, t-1), Coef: -(1 - s.cfg.LossRate)},
		}, exchange...)
		rows = append(rows, opt.Constraint{
			Name:  fmt.Sprintf("storage(%s,%d)", s.label, t),
			Terms: terms,
			Rel:   opt.EQ,
			RHS:   0,
		})
	}

	if s.cfg.Balanced && t == v.Steps()-1 && t > 0 {
		rows = append(rows, opt.Constraint{
			Name:  fmt.Sprintf("balanced(%s)", s.label),
			Terms: []opt.Term{{Var: level, Coef: 1}},
			Rel:   opt.EQ,
			RHS:   initial,
		})
	}
	return rows
}
