// Package results maps a solver solution back onto the flows and storages of
// the graph it was built from.
package results

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
)

// Key identifies a flow by the labels it leaves and enters.
type Key struct {
	Source string `json:"source" bson:"source"`
	Target string `json:"target" bson:"target"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s -> %s", k.Source, k.Target)
}

// Series is the per step value of one flow.
type Series struct {
	Key
	Carrier bus.Carrier `json:"carrier" bson:"carrier"`
	Values  []float64   `json:"values" bson:"values"`
}

// Sum is the total of the series.
func (s Series) Sum() float64 {
	var total float64
	for _, v := range s.Values {
		total += v
	}
	return total
}

// Results holds every flow and level sequence of a solved model.
type Results struct {
	steps      int
	flows      map[Key]Series
	keys       []Key
	levels     map[string][]float64
	levelOrder []string
}

// Map reads the value of every flow and level column out of sol. It does not
// modify its inputs; mapping the same solution twice gives equal results.
func Map(m *lpdispatch.Model, sol solver.Solution) (*Results, error) {
	p := m.Problem()
	if len(sol.Values) != p.NumVariables() {
		return nil, fmt.Errorf("solution has %d values, model has %d variables", len(sol.Values), p.NumVariables())
	}
	g := m.Graph()
	r := &Results{
		steps:  g.Steps(),
		flows:  make(map[Key]Series),
		levels: make(map[string][]float64),
	}

	for _, f := range g.Flows() {
		cols, ok := m.FlowColumns(f)
		if !ok {
			return nil, fmt.Errorf("%w: flow %s has no columns", bus.ErrInvalidTopology, f)
		}
		k := Key{Source: f.Source(), Target: f.Target()}
		r.flows[k] = Series{Key: k, Carrier: f.Carrier(), Values: pick(sol, cols)}
		r.keys = append(r.keys, k)
	}
	for _, n := range g.Nodes() {
		if _, ok := n.(bus.Stateful); !ok {
			continue
		}
		cols, ok := m.LevelColumns(n.Label())
		if !ok {
			return nil, fmt.Errorf("%w: storage %s has no level columns", bus.ErrInvalidTopology, n.Label())
		}
		r.levels[n.Label()] = pick(sol, cols)
		r.levelOrder = append(r.levelOrder, n.Label())
	}
	return r, nil
}

func pick(sol solver.Solution, cols []opt.Var) []float64 {
	out := make([]float64, len(cols))
	for t, v := range cols {
		out[t] = sol.Values[v]
	}
	return out
}

// Steps is the length of every sequence.
func (r *Results) Steps() int { return r.steps }

// Flow returns the sequence of the flow from source to target.
func (r *Results) Flow(source, target string) ([]float64, bool) {
	s, ok := r.flows[Key{source, target}]
	return s.Values, ok
}

// Series returns the flow from source to target with its carrier.
func (r *Results) Series(k Key) (Series, bool) {
	s, ok := r.flows[k]
	return s, ok
}

// Level returns the level sequence of a storage.
func (r *Results) Level(label string) ([]float64, bool) {
	l, ok := r.levels[label]
	return l, ok
}

// Keys lists the flows in graph order.
func (r *Results) Keys() []Key {
	return append([]Key(nil), r.keys...)
}

// Storages lists the storages in graph order.
func (r *Results) Storages() []string {
	return append([]string(nil), r.levelOrder...)
}

// Records returns every flow sequence in graph order, restricted to the
// steps [start, end). end <= 0 selects up to the last step.
func (r *Results) Records(start, end int) ([]Series, error) {
	start, end, err := r.window(start, end)
	if err != nil {
		return nil, err
	}
	out := make([]Series, 0, len(r.keys))
	for _, k := range r.keys {
		s := r.flows[k]
		s.Values = append([]float64(nil), s.Values[start:end]...)
		out = append(out, s)
	}
	return out, nil
}

// StorageLevel is the per step level of one storage.
type StorageLevel struct {
	Storage string    `json:"storage" bson:"storage"`
	Values  []float64 `json:"values" bson:"values"`
}

// Levels returns every storage level sequence in graph order, restricted to
// the steps [start, end) as Records does.
func (r *Results) Levels(start, end int) ([]StorageLevel, error) {
	start, end, err := r.window(start, end)
	if err != nil {
		return nil, err
	}
	out := make([]StorageLevel, 0, len(r.levelOrder))
	for _, label := range r.levelOrder {
		out = append(out, StorageLevel{
			Storage: label,
			Values:  append([]float64(nil), r.levels[label][start:end]...),
		})
	}
	return out, nil
}

func (r *Results) window(start, end int) (int, int, error) {
	if end <= 0 || end > r.steps {
		end = r.steps
	}
	if start < 0 || start >= end {
		return 0, 0, fmt.Errorf("window [%d, %d) outside time index of %d steps", start, end, r.steps)
	}
	return start, end, nil
}

// CheckBalance verifies that inflow equals outflow on every bus of g at every
// step within tol.
func (r *Results) CheckBalance(g *bus.Graph, tol float64) error {
	for _, b := range g.Buses() {
		in, out := g.BusFlows(b.Label())
		for t := 0; t < r.steps; t++ {
			var net float64
			for _, f := range in {
				net += r.flows[Key{f.Source(), f.Target()}].Values[t]
			}
			for _, f := range out {
				net -= r.flows[Key{f.Source(), f.Target()}].Values[t]
			}
			if math.Abs(net) > tol {
				return fmt.Errorf("bus %s is unbalanced by %v at step %d", b.Label(), net, t)
			}
		}
	}
	return nil
}
