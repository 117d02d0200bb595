package bus

import (
	"fmt"
	"math"
)

// Unbounded is the nominal value of a flow without an upper bound.
var Unbounded = math.Inf(1)

// Direction orients a flow relative to the node it belongs to.
type Direction int

const (
	// Output flows run from the node into the bus.
	Output Direction = iota
	// Input flows run from the bus into the node.
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// FlowParams are the static parameters of a flow.
//
// NominalValue is the upper bound of the flow at every timestep. A value of
// zero pins the flow to zero; use Unbounded for no bound. A Fixed flow equals
// NominalValue*Profile[t] at every timestep. SummedMax, when positive, limits
// the sum of the flow over the time index to SummedMax*NominalValue.
type FlowParams struct {
	NominalValue float64
	Fixed        bool
	Profile      []float64
	VariableCost float64
	SummedMax    float64
}

// Flow is a directed edge between one node and one bus.
type Flow struct {
	FlowParams
	bus  *Bus
	node string
	dir  Direction
}

// NewFlow returns a flow on bus b. The flow is owned by the node it is
// passed to.
func NewFlow(b *Bus, p FlowParams) *Flow {
	return &Flow{FlowParams: p, bus: b}
}

// Attach binds the flow to a node. A flow belongs to exactly one node.
func (f *Flow) Attach(node string, dir Direction) error {
	if f.bus == nil {
		return fmt.Errorf("%w: flow of node %s has no bus", ErrInvalidTopology, node)
	}
	if f.node != "" && f.node != node {
		return fmt.Errorf("%w: flow on bus %s already belongs to node %s", ErrInvalidTopology, f.bus.Label(), f.node)
	}
	f.node = node
	f.dir = dir
	return nil
}

// Bus is the bus the flow is connected to.
func (f *Flow) Bus() *Bus { return f.bus }

// Node is the label of the owning node.
func (f *Flow) Node() string { return f.node }

// Direction reports whether the flow feeds or draws from the bus.
func (f *Flow) Direction() Direction { return f.dir }

// Carrier is the carrier of the connected bus.
func (f *Flow) Carrier() Carrier { return f.bus.Carrier() }

// Source is the label the flow leaves.
func (f *Flow) Source() string {
	if f.dir == Output {
		return f.node
	}
	return f.bus.Label()
}

// Target is the label the flow enters.
func (f *Flow) Target() string {
	if f.dir == Output {
		return f.bus.Label()
	}
	return f.node
}

func (f *Flow) String() string {
	return fmt.Sprintf("%s -> %s", f.Source(), f.Target())
}

// Bounds returns the lower and upper bound of the flow variable at t.
func (f *Flow) Bounds(t int) (float64, float64) {
	if f.Fixed {
		v := f.NominalValue * f.Profile[t]
		return v, v
	}
	return 0, f.NominalValue
}

// Limited reports whether the flow carries a summed limit.
func (f *Flow) Limited() bool {
	return f.SummedMax > 0 && !math.IsInf(f.NominalValue, 1)
}

// Validate checks the flow parameters against a time index of the given length.
func (f *Flow) Validate(steps int) error {
	if math.IsNaN(f.NominalValue) || f.NominalValue < 0 {
		return fmt.Errorf("%w: flow %s has nominal value %v", ErrInvalidParameter, f, f.NominalValue)
	}
	if math.IsNaN(f.VariableCost) || math.IsInf(f.VariableCost, 0) {
		return fmt.Errorf("%w: flow %s has variable cost %v", ErrInvalidParameter, f, f.VariableCost)
	}
	if f.SummedMax < 0 {
		return fmt.Errorf("%w: flow %s has summed max %v", ErrInvalidParameter, f, f.SummedMax)
	}
	if !f.Fixed {
		return nil
	}
	if len(f.Profile) != steps {
		return fmt.Errorf("%w: flow %s has %d profile values, time index has %d steps", ErrShapeMismatch, f, len(f.Profile), steps)
	}
	if math.IsInf(f.NominalValue, 1) {
		return fmt.Errorf("%w: fixed flow %s needs a finite nominal value", ErrInvalidParameter, f)
	}
	for t, v := range f.Profile {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: flow %s has profile value %v at step %d", ErrInvalidParameter, f, v, t)
		}
	}
	return nil
}
