package asset

import (
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// Sink draws from one or more buses.
type Sink struct {
	base
	role Role
}

// NewSink returns a sink with input flows from each bus in flows.
func NewSink(label string, role Role, flows ...*bus.Flow) (*Sink, error) {
	b, err := newBase(label, bus.Input, flows)
	if err != nil {
		return nil, err
	}
	return &Sink{base: b, role: role}, nil
}

func (s *Sink) Kind() bus.Kind { return bus.SinkKind }

func (s *Sink) Role() Role { return s.role }

func (s *Sink) Constraints(bus.Variables, int) []opt.Constraint { return nil }
