// Package asset implements the node variants of a carrier graph: sources,
// sinks, converters and storages.
package asset

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
)

// Role classifies a source or sink for the KPI engine.
type Role int

const (
	Generic Role = iota
	// Demand sinks carry the fixed consumption to be met.
	Demand
	// Excess sinks dispose surplus at a cost.
	Excess
	// Shortage sources import unmet demand at a cost.
	Shortage
	// Fuel sources supply a commodity that is burned on site.
	Fuel
)

func (r Role) String() string {
	switch r {
	case Demand:
		return "demand"
	case Excess:
		return "excess"
	case Shortage:
		return "shortage"
	case Fuel:
		return "fuel"
	default:
		return "generic"
	}
}

// Identifier is implemented by every asset.
type Identifier interface {
	PID() uuid.UUID
	Label() string
}

// Classified assets carry a Role.
type Classified interface {
	Role() Role
}

// Emitter assets release CO2 per unit of output.
type Emitter interface {
	EmissionFactor() float64
}

// Consumer assets draw a carrier from a bus to produce another.
type Consumer interface {
	Inputs() []*bus.Flow
}

type base struct {
	pid   uuid.UUID
	label string
	flows []*bus.Flow
}

func newBase(label string, dir bus.Direction, flows []*bus.Flow) (base, error) {
	if err := bus.ValidateLabel(label); err != nil {
		return base{}, err
	}
	if len(flows) == 0 {
		return base{}, fmt.Errorf("%w: node %s declares no flows", bus.ErrInvalidTopology, label)
	}
	for _, f := range flows {
		if f == nil {
			return base{}, fmt.Errorf("%w: node %s declares a nil flow", bus.ErrInvalidTopology, label)
		}
		if err := f.Attach(label, dir); err != nil {
			return base{}, err
		}
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return base{}, err
	}
	return base{pid: pid, label: label, flows: flows}, nil
}

// PID is the asset identifier.
func (b base) PID() uuid.UUID { return b.pid }

// Label is the node label within the graph.
func (b base) Label() string { return b.label }

// Flows returns the flows declared by the node.
func (b base) Flows() []*bus.Flow { return b.flows }
