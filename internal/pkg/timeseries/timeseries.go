// Package timeseries aligns named input series to an equally spaced time
// index.
package timeseries

import (
	"errors"
	"fmt"
	"time"

	"github.com/ohowland/cgc_plan/internal/pkg/bus"
)

// ErrMissingColumn is returned for a series the frame does not hold.
var ErrMissingColumn = errors.New("missing column")

// Index is an ordered sequence of Len steps, Step apart, from Start.
type Index struct {
	Start time.Time     `json:"start" bson:"start"`
	Step  time.Duration `json:"step" bson:"step"`
	Len   int           `json:"len" bson:"len"`
}

// Hourly returns an hourly index of n steps.
func Hourly(start time.Time, n int) Index {
	return Index{Start: start, Step: time.Hour, Len: n}
}

// At is the time of step i.
func (x Index) At(i int) time.Time {
	return x.Start.Add(time.Duration(i) * x.Step)
}

// Times lists every step.
func (x Index) Times() []time.Time {
	out := make([]time.Time, x.Len)
	for i := range out {
		out[i] = x.At(i)
	}
	return out
}

// Frame holds equal length series keyed by column name.
type Frame struct {
	index   Index
	columns map[string][]float64
	order   []string
}

// NewFrame returns an empty frame over index.
func NewFrame(index Index) *Frame {
	return &Frame{index: index, columns: make(map[string][]float64)}
}

// Index is the time index of the frame.
func (f *Frame) Index() Index {
	return f.index
}

// Add stores a copy of values under name. The length must match the index.
func (f *Frame) Add(name string, values []float64) error {
	if len(values) != f.index.Len {
		return fmt.Errorf("%w: column %s has %d values, time index has %d steps", bus.ErrShapeMismatch, name, len(values), f.index.Len)
	}
	if _, ok := f.columns[name]; !ok {
		f.order = append(f.order, name)
	}
	f.columns[name] = append([]float64(nil), values...)
	return nil
}

// Column returns a copy of the series under name.
func (f *Frame) Column(name string) ([]float64, error) {
	c, ok := f.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return append([]float64(nil), c...), nil
}

// Has reports whether the frame holds name.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Columns lists the column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}

// Head returns a frame with the first n steps of every column.
func (f *Frame) Head(n int) (*Frame, error) {
	if n < 1 || n > f.index.Len {
		return nil, fmt.Errorf("%w: cannot take %d of %d steps", bus.ErrShapeMismatch, n, f.index.Len)
	}
	index := f.index
	index.Len = n
	head := NewFrame(index)
	for _, name := range f.order {
		if err := head.Add(name, f.columns[name][:n]); err != nil {
			return nil, err
		}
	}
	return head, nil
}

// Scale returns column name multiplied by factor.
func (f *Frame) Scale(name string, factor float64) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	for i := range c {
		c[i] *= factor
	}
	return c, nil
}
