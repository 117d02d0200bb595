// Package param holds the scalar parameter set of a run. A Set is built once
// from the parameter tables and never changes afterwards.
package param

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrMissingParameter is returned for a name the set does not contain.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrDuplicateParameter is returned when two tables define one name.
	ErrDuplicateParameter = errors.New("duplicate parameter")
)

// Set is an immutable mapping from parameter name to value.
type Set struct {
	values map[string]float64
}

// New copies values into a Set. Values must be finite.
func New(values map[string]float64) (*Set, error) {
	s := &Set{values: make(map[string]float64, len(values))}
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("parameter %s has value %v", k, v)
		}
		s.values[k] = v
	}
	return s, nil
}

// Merge combines sets. A name defined by more than one set is an error.
func Merge(sets ...*Set) (*Set, error) {
	merged := &Set{values: make(map[string]float64)}
	for _, s := range sets {
		for k, v := range s.values {
			if _, ok := merged.values[k]; ok {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, k)
			}
			merged.values[k] = v
		}
	}
	return merged, nil
}

// Get returns the value of name.
func (s *Set) Get(name string) (float64, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return v, nil
}

// Has reports whether name is defined.
func (s *Set) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Len is the number of parameters.
func (s *Set) Len() int {
	return len(s.values)
}

// Names returns the parameter names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the mapping.
func (s *Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Require reports every name in names the set lacks, in one error.
func (s *Set) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !s.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingParameter, missing)
	}
	return nil
}

// Reader reads several parameters and keeps the first error, so a builder
// can read everything it needs and check once.
type Reader struct {
	set *Set
	err error
}

// NewReader returns a Reader over s.
func NewReader(s *Set) *Reader {
	return &Reader{set: s}
}

// Get returns the value of name, or zero once an error has occurred.
func (r *Reader) Get(name string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.set.Get(name)
	if err != nil {
		r.err = err
	}
	return v
}

// Err is the first error encountered.
func (r *Reader) Err() error {
	return r.err
}
