package param

import (
	"errors"
	"math"
	"testing"

	"gotest.tools/v3/assert"
)

func TestGet(t *testing.T) {
	s, err := New(map[string]float64{"lifetime": 20, "wacc": 0.05})
	assert.NilError(t, err)

	v, err := s.Get("lifetime")
	assert.NilError(t, err)
	assert.Equal(t, v, 20.0)

	_, err = s.Get("eta_PV")
	assert.Assert(t, errors.Is(err, ErrMissingParameter))
	assert.ErrorContains(t, err, "eta_PV")
	assert.DeepEqual(t, s.Names(), []string{"lifetime", "wacc"})
}

func TestSetIsImmutable(t *testing.T) {
	values := map[string]float64{"lifetime": 20}
	s, err := New(values)
	assert.NilError(t, err)

	values["lifetime"] = 1
	copied := s.Values()
	copied["lifetime"] = 2

	v, err := s.Get("lifetime")
	assert.NilError(t, err)
	assert.Equal(t, v, 20.0)
}

func TestNewRejectsNaN(t *testing.T) {
	_, err := New(map[string]float64{"wacc": math.NaN()})
	assert.ErrorContains(t, err, "wacc")
}

func TestMerge(t *testing.T) {
	design, _ := New(map[string]float64{"number_of_chps": 2})
	general, _ := New(map[string]float64{"lifetime": 20})

	s, err := Merge(design, general)
	assert.NilError(t, err)
	assert.Equal(t, s.Len(), 2)

	_, err = Merge(design, design)
	assert.Assert(t, errors.Is(err, ErrDuplicateParameter))
}

func TestReaderKeepsFirstError(t *testing.T) {
	s, _ := New(map[string]float64{"a": 1})
	r := NewReader(s)
	assert.Equal(t, r.Get("a"), 1.0)
	assert.Equal(t, r.Get("b"), 0.0)
	assert.Equal(t, r.Get("a"), 0.0)
	assert.ErrorContains(t, r.Err(), "b")
}

func TestRequire(t *testing.T) {
	s, _ := New(map[string]float64{"a": 1})
	assert.NilError(t, s.Require("a"))
	err := s.Require("a", "b", "c")
	assert.Assert(t, errors.Is(err, ErrMissingParameter))
	assert.ErrorContains(t, err, "[b c]")
}
