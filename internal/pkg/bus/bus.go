// Package bus models carrier buses and the flows that connect nodes to them.
// A Graph collects buses and nodes and validates the topology before any
// linear program is built from it.
package bus

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrShapeMismatch is returned when a profile does not match the time index.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrDuplicateIdentifier is returned when a label is registered twice.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrInvalidTopology is returned when a flow references an unknown bus or node.
	ErrInvalidTopology = errors.New("invalid topology")
	// ErrInvalidParameter is returned for out of range technical parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)

var labelPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateLabel checks that a bus or node label is usable as an identifier.
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: label %q must start with a letter and contain only letters, digits and underscores", ErrInvalidParameter, label)
	}
	return nil
}

// Carrier is the energy carrier balanced on a bus.
type Carrier string

const (
	Electricity Carrier = "electricity"
	Heat        Carrier = "heat"
	NaturalGas  Carrier = "natural_gas"
)

// Bus is a balancing point for a single carrier.
type Bus struct {
	label   string
	carrier Carrier
}

// New returns a Bus. Buses only become part of a model through Graph.AddBus.
func New(label string, carrier Carrier) (*Bus, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}
	if carrier == "" {
		return nil, fmt.Errorf("%w: bus %s has no carrier", ErrInvalidParameter, label)
	}
	return &Bus{label: label, carrier: carrier}, nil
}

// Label is the bus identifier.
func (b *Bus) Label() string {
	return b.label
}

// Carrier is the carrier balanced on the bus.
func (b *Bus) Carrier() Carrier {
	return b.carrier
}

func (b *Bus) String() string {
	return fmt.Sprintf("%s[%s]", b.label, b.carrier)
}
