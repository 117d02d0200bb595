package lpdispatch

import (
	"fmt"

	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// Model is the linear program of a graph together with the column index of
// every flow and level variable.
type Model struct {
	graph   *bus.Graph
	problem *opt.Problem
	flows   map[*bus.Flow][]opt.Var
	levels  map[string][]opt.Var
}

// Build translates g into a linear program. Every flow gets one column per
// step, every stateful node one level column per step. Rows are the bus
// balances, the node constraints and the summed flow limits.
func Build(g *bus.Graph) (*Model, error) {
	m := &Model{
		graph:   g,
		problem: opt.NewProblem(),
		flows:   make(map[*bus.Flow][]opt.Var),
		levels:  make(map[string][]opt.Var),
	}
	steps := g.Steps()

	for _, f := range g.Flows() {
		if err := m.buildFlow(f, steps); err != nil {
			return nil, err
		}
	}
	for _, n := range g.Nodes() {
		if err := m.buildNode(n, steps); err != nil {
			return nil, err
		}
	}

	for t := 0; t < steps; t++ {
		for _, b := range g.Buses() {
			if row, ok := m.balance(b, t); ok {
				m.problem.AddConstraint(row)
			}
		}
		for _, n := range g.Nodes() {
			m.problem.AddConstraint(n.Constraints(m, t)...)
		}
	}

	for _, f := range g.Flows() {
		if f.Limited() {
			m.problem.AddConstraint(m.summedMax(f))
		}
	}
	return m, nil
}

func (m *Model) buildFlow(f *bus.Flow, steps int) error {
	cols := make([]opt.Var, steps)
	for t := 0; t < steps; t++ {
		lb, ub := f.Bounds(t)
		v, err := m.problem.AddVariable(flowName(f, t), lb, ub, f.VariableCost)
		if err != nil {
			return fmt.Errorf("%w: %v", bus.ErrInvalidTopology, err)
		}
		cols[t] = v
	}
	m.flows[f] = cols
	return nil
}

// buildNode adds level columns for nodes that carry state.
func (m *Model) buildNode(n bus.Node, steps int) error {
	s, ok := n.(bus.Stateful)
	if !ok {
		return nil
	}
	cols := make([]opt.Var, steps)
	for t := 0; t < steps; t++ {
		v, err := m.problem.AddVariable(levelName(s.Label(), t), 0, s.Capacity(), 0)
		if err != nil {
			return err
		}
		cols[t] = v
	}
	m.levels[s.Label()] = cols
	return nil
}

// balance is sum(f into b) - sum(f out of b) = 0. A bus without flows has
// no row.
func (m *Model) balance(b *bus.Bus, t int) (opt.Constraint, bool) {
	in, out := m.graph.BusFlows(b.Label())
	if len(in)+len(out) == 0 {
		return opt.Constraint{}, false
	}
	terms := make([]opt.Term, 0, len(in)+len(out))
	for _, f := range in {
		terms = append(terms, opt.Term{Var: m.flows[f][t], Coef: 1})
	}
	for _, f := range out {
		terms = append(terms, opt.Term{Var: m.flows[f][t], Coef: -1})
	}
	return opt.Constraint{
		Name:  fmt.Sprintf("balance(%s,%d)", b.Label(), t),
		Terms: terms,
		Rel:   opt.EQ,
		RHS:   0,
	}, true
}

func (m *Model) summedMax(f *bus.Flow) opt.Constraint {
	cols := m.flows[f]
	terms := make([]opt.Term, len(cols))
	for t, v := range cols {
		terms[t] = opt.Term{Var: v, Coef: 1}
	}
	return opt.Constraint{
		Name:  fmt.Sprintf("summed_max(%s,%s)", f.Source(), f.Target()),
		Terms: terms,
		Rel:   opt.LE,
		RHS:   f.SummedMax * f.NominalValue,
	}
}

func flowName(f *bus.Flow, t int) string {
	return fmt.Sprintf("flow(%s,%s,%d)", f.Source(), f.Target(), t)
}

func levelName(node string, t int) string {
	return fmt.Sprintf("level(%s,%d)", node, t)
}

// Graph is the graph the model was built from.
func (m *Model) Graph() *bus.Graph { return m.graph }

// Problem is the assembled linear program.
func (m *Model) Problem() *opt.Problem { return m.problem }

// Steps is the length of the time index.
func (m *Model) Steps() int { return m.graph.Steps() }

// Flow returns the column of f at t. It panics for a flow outside the graph.
func (m *Model) Flow(f *bus.Flow, t int) opt.Var {
	cols, ok := m.flows[f]
	if !ok {
		panic(fmt.Sprintf("lpdispatch: flow %s is not part of the model", f))
	}
	return cols[t]
}

// Level returns the level column of node at t. It panics for a node without
// state.
func (m *Model) Level(node string, t int) opt.Var {
	cols, ok := m.levels[node]
	if !ok {
		panic(fmt.Sprintf("lpdispatch: node %s has no level", node))
	}
	return cols[t]
}

// FlowColumns returns the columns of f ordered by step.
func (m *Model) FlowColumns(f *bus.Flow) ([]opt.Var, bool) {
	cols, ok := m.flows[f]
	return cols, ok
}

// LevelColumns returns the level columns of node ordered by step.
func (m *Model) LevelColumns(node string) ([]opt.Var, bool) {
	cols, ok := m.levels[node]
	return cols, ok
}
