package kpi

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ohowland/cgc_plan/internal/pkg/asset"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/results"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/solver/simplex"
	"gotest.tools/v3/assert"
)

const tol = 1e-9

func TestCRFBoundaries(t *testing.T) {
	crf, err := CRF(20, 0)
	assert.NilError(t, err)
	assert.Equal(t, crf, 1.0/20)

	crf, err = CRF(1, 0.05)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(crf-1.05) < tol, "crf = %v", crf)

	_, err = CRF(0, 0.05)
	assert.Assert(t, errors.Is(err, ErrDegenerateInput))
}

func TestCRFProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("longer lifetimes recover less per year", prop.ForAll(
		func(n, r float64) bool {
			short, err := CRF(n, r)
			if err != nil {
				return false
			}
			long, err := CRF(n+1, r)
			if err != nil {
				return false
			}
			return long < short
		},
		gen.Float64Range(1, 50),
		gen.Float64Range(0, 0.2),
	))

	properties.Property("crf is never below the rate or 1/n", prop.ForAll(
		func(n, r float64) bool {
			crf, err := CRF(n, r)
			return err == nil && crf >= r && crf >= 1/n-tol
		},
		gen.Float64Range(1, 50),
		gen.Float64Range(0.001, 0.2),
	))

	properties.TestingRun(t)
}

func TestInvestmentAnnuity(t *testing.T) {
	inv := []Investment{
		{Technology: "chp", Size: 2, UnitCost: 1000, Lifetime: 20, WACC: 0},
		{Technology: "boiler", Size: 0, UnitCost: 500, Lifetime: 0, WACC: 0.05},
	}
	total, err := TotalAnnuity(inv)
	assert.NilError(t, err)
	assert.Equal(t, total, 100.0)

	inv[1].Size = 1
	_, err = TotalAnnuity(inv)
	assert.Assert(t, errors.Is(err, ErrDegenerateInput))
	assert.ErrorContains(t, err, "boiler")
}

type system struct {
	graph *bus.Graph
	el    *bus.Bus
	th    *bus.Bus
}

func newSystem(t *testing.T, steps int) system {
	g, err := bus.NewGraph(steps)
	assert.NilError(t, err)
	el, err := g.AddBus("electricity", bus.Electricity)
	assert.NilError(t, err)
	th, err := g.AddBus("heat", bus.Heat)
	assert.NilError(t, err)
	return system{graph: g, el: el, th: th}
}

func (s system) adder(t *testing.T) func(bus.Node, error) {
	return func(n bus.Node, err error) {
		assert.NilError(t, err)
		assert.NilError(t, s.graph.AddNode(n))
	}
}

func (s system) solve(t *testing.T) *results.Results {
	d, err := lpdispatch.New(simplex.New(solver.Config{}), nil)
	assert.NilError(t, err)
	m, sol, err := d.Dispatch(context.Background(), s.graph)
	assert.NilError(t, err)
	r, err := results.Map(m, sol)
	assert.NilError(t, err)
	return r
}

func fixed(profile ...float64) bus.FlowParams {
	return bus.FlowParams{NominalValue: 1, Fixed: true, Profile: profile}
}

func TestShortageOnlySystem(t *testing.T) {
	s := newSystem(t, 2)
	add := s.adder(t)
	add(asset.NewSink("demand_el", asset.Demand, bus.NewFlow(s.el, fixed(10, 10))))
	add(asset.NewSource("shortage_bel", asset.Shortage, 0.5, bus.NewFlow(s.el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 1000})))
	r := s.solve(t)

	shortage, ok := r.Flow("shortage_bel", "electricity")
	assert.Assert(t, ok)
	assert.DeepEqual(t, shortage, []float64{10, 10})

	sum, err := Compute(s.graph, r, nil)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(sum.VariableCost-20000) < tol)
	assert.Assert(t, math.Abs(sum.TotalCost-20000) < tol)
	assert.Assert(t, math.Abs(sum.CO2-10) < tol)
	assert.Equal(t, sum.SelfSufficiency, 0.0)
	assert.Equal(t, sum.Coverage[bus.Electricity], 0.0)
}

func TestFullCoverage(t *testing.T) {
	s := newSystem(t, 2)
	add := s.adder(t)
	add(asset.NewSink("demand_el", asset.Demand, bus.NewFlow(s.el, fixed(10, 5))))
	add(asset.NewSource("wind", asset.Generic, 0, bus.NewFlow(s.el, fixed(10, 5))))
	add(asset.NewSource("shortage_bel", asset.Shortage, 0, bus.NewFlow(s.el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 1000})))
	r := s.solve(t)

	coverage, err := Coverage(s.graph, r)
	assert.NilError(t, err)
	assert.Equal(t, coverage[bus.Electricity], 1.0)

	ss, err := SelfSufficiency(coverage)
	assert.NilError(t, err)
	assert.Equal(t, ss, 100.0)
}

func TestZeroDemand(t *testing.T) {
	s := newSystem(t, 2)
	add := s.adder(t)
	add(asset.NewSink("demand_el", asset.Demand, bus.NewFlow(s.el, fixed(0, 0))))
	add(asset.NewSource("shortage_bel", asset.Shortage, 0, bus.NewFlow(s.el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 1000})))
	r := s.solve(t)

	_, err := Coverage(s.graph, r)
	assert.Assert(t, errors.Is(err, ErrDegenerateInput))
	assert.ErrorContains(t, err, "electricity")

	_, err = SelfSufficiency(nil)
	assert.Assert(t, errors.Is(err, ErrDegenerateInput))
}

func TestConverterDrawAugmentsDemand(t *testing.T) {
	s := newSystem(t, 1)
	add := s.adder(t)
	add(asset.NewSink("demand_el", asset.Demand, bus.NewFlow(s.el, fixed(10))))
	add(asset.NewSink("demand_th", asset.Demand, bus.NewFlow(s.th, fixed(30))))
	add(asset.NewSource("pv", asset.Generic, 0, bus.NewFlow(s.el, fixed(15))))
	add(asset.NewSource("shortage_bel", asset.Shortage, 0, bus.NewFlow(s.el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 1000})))
	add(asset.NewSource("shortage_bth", asset.Shortage, 0, bus.NewFlow(s.th, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 1000})))
	add(asset.NewConverter(asset.ConverterConfig{
		Label:   "heat_pump",
		Inputs:  []*bus.Flow{bus.NewFlow(s.el, bus.FlowParams{NominalValue: bus.Unbounded})},
		Outputs: []*bus.Flow{bus.NewFlow(s.th, bus.FlowParams{NominalValue: bus.Unbounded})},
		Factors: map[string]float64{"heat": 3},
	}))
	r := s.solve(t)

	// heat pump draws 10 el for 30 th; el demand is 20 of which 5 imported
	coverage, err := Coverage(s.graph, r)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(coverage[bus.Electricity]-0.75) < 1e-6, "el %v", coverage[bus.Electricity])
	assert.Assert(t, math.Abs(coverage[bus.Heat]-1) < 1e-6, "th %v", coverage[bus.Heat])

	sum, err := Compute(s.graph, r, []Investment{{Technology: "heat_pump", Size: 1, UnitCost: 2000, Lifetime: 20}})
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(sum.SelfSufficiency-87.5) < 1e-4)
	assert.Assert(t, math.Abs(sum.Annuity-100) < tol)
	assert.Assert(t, math.Abs(sum.TotalCost-5100) < 1e-4, "total %v", sum.TotalCost)
}

func TestSummaryString(t *testing.T) {
	s := Summary{CO2: 12346, TotalCost: 2.5e6, SelfSufficiency: 42}
	assert.Equal(t, s.String(), "CO2-Emission: 12.35 t/a\nTotal Costs of Energy System per Year: 2.50 Mio. €/a\nSelf-Sufficiency: 42.00 %\n")
}
