package asset

import (
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// Source feeds one or more buses.
type Source struct {
	base
	role     Role
	emission float64
}

// NewSource returns a source with output flows onto each bus in flows.
// emission is the CO2 released per unit of output.
func NewSource(label string, role Role, emission float64, flows ...*bus.Flow) (*Source, error) {
	b, err := newBase(label, bus.Output, flows)
	if err != nil {
		return nil, err
	}
	return &Source{base: b, role: role, emission: emission}, nil
}

func (s *Source) Kind() bus.Kind { return bus.SourceKind }

func (s *Source) Role() Role { return s.role }

func (s *Source) EmissionFactor() float64 { return s.emission }

// Constraints is empty; a source is described by its flow bounds alone.
func (s *Source) Constraints(bus.Variables, int) []opt.Constraint { return nil }
