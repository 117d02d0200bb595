package results

import (
	"context"
	"testing"

	"github.com/ohowland/cgc_plan/internal/pkg/asset"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/solver/simplex"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func solvedModel(t *testing.T) (*lpdispatch.Model, solver.Solution) {
	g, err := bus.NewGraph(3)
	assert.NilError(t, err)
	el, err := g.AddBus("el", bus.Electricity)
	assert.NilError(t, err)

	demand, err := asset.NewSink("demand_el", asset.Demand, bus.NewFlow(el, bus.FlowParams{NominalValue: 1, Fixed: true, Profile: []float64{4, 0, 6}}))
	assert.NilError(t, err)
	assert.NilError(t, g.AddNode(demand))
	pv, err := asset.NewSource("pv", asset.Generic, 0, bus.NewFlow(el, bus.FlowParams{NominalValue: 10, Fixed: true, Profile: []float64{0, 1, 0}}))
	assert.NilError(t, err)
	assert.NilError(t, g.AddNode(pv))
	grid, err := asset.NewSource("grid", asset.Shortage, 0, bus.NewFlow(el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 100}))
	assert.NilError(t, err)
	assert.NilError(t, g.AddNode(grid))
	excess, err := asset.NewSink("excess", asset.Excess, bus.NewFlow(el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: 1}))
	assert.NilError(t, err)
	assert.NilError(t, g.AddNode(excess))
	battery, err := asset.NewStorage(asset.StorageConfig{
		Label:             "battery",
		Input:             bus.NewFlow(el, bus.FlowParams{NominalValue: 10}),
		Output:            bus.NewFlow(el, bus.FlowParams{NominalValue: 10}),
		Capacity:          8,
		InflowEfficiency:  1,
		OutflowEfficiency: 1,
	})
	assert.NilError(t, err)
	assert.NilError(t, g.AddNode(battery))

	d, err := lpdispatch.New(simplex.New(solver.Config{}), nil)
	assert.NilError(t, err)
	m, sol, err := d.Dispatch(context.Background(), g)
	assert.NilError(t, err)
	return m, sol
}

func TestMap(t *testing.T) {
	m, sol := solvedModel(t)
	r, err := Map(m, sol)
	assert.NilError(t, err)
	assert.Equal(t, r.Steps(), 3)

	demand, ok := r.Flow("el", "demand_el")
	assert.Assert(t, ok)
	assert.DeepEqual(t, demand, []float64{4, 0, 6})

	grid, ok := r.Flow("grid", "el")
	assert.Assert(t, ok)
	assert.Assert(t, grid[0] > 3.999999 && grid[0] < 4.000001, "grid %v", grid)

	level, ok := r.Level("battery")
	assert.Assert(t, ok)
	assert.Check(t, is.Len(level, 3))
	assert.Assert(t, level[1] > 7.999999, "level %v", level)

	_, ok = r.Flow("el", "grid")
	assert.Assert(t, !ok)

	assert.DeepEqual(t, r.Keys()[0], Key{Source: "el", Target: "demand_el"})
	assert.DeepEqual(t, r.Storages(), []string{"battery"})
	assert.NilError(t, r.CheckBalance(m.Graph(), 1e-6))
}

func TestMapIsIdempotent(t *testing.T) {
	m, sol := solvedModel(t)
	first, err := Map(m, sol)
	assert.NilError(t, err)
	second, err := Map(m, sol)
	assert.NilError(t, err)

	a, err := first.Records(0, 0)
	assert.NilError(t, err)
	b, err := second.Records(0, 0)
	assert.NilError(t, err)
	assert.DeepEqual(t, a, b)
	for _, label := range first.Storages() {
		la, _ := first.Level(label)
		lb, _ := second.Level(label)
		assert.DeepEqual(t, la, lb)
	}
}

func TestRecordsWindow(t *testing.T) {
	m, sol := solvedModel(t)
	r, err := Map(m, sol)
	assert.NilError(t, err)

	recs, err := r.Records(1, 3)
	assert.NilError(t, err)
	assert.Equal(t, len(recs), len(r.Keys()))
	assert.DeepEqual(t, recs[0].Values, []float64{0, 6})
	assert.Equal(t, recs[0].Carrier, bus.Electricity)

	_, err = r.Records(3, 3)
	assert.ErrorContains(t, err, "outside time index")
}

func TestLevelsWindow(t *testing.T) {
	m, sol := solvedModel(t)
	r, err := Map(m, sol)
	assert.NilError(t, err)

	levels, err := r.Levels(0, 2)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(levels, 1))
	assert.Equal(t, levels[0].Storage, "battery")
	full, _ := r.Level("battery")
	assert.DeepEqual(t, levels[0].Values, full[:2])

	_, err = r.Levels(-1, 2)
	assert.ErrorContains(t, err, "outside time index")
}

func TestMapRejectsShortSolution(t *testing.T) {
	m, sol := solvedModel(t)
	sol.Values = sol.Values[:2]
	_, err := Map(m, sol)
	assert.ErrorContains(t, err, "solution has 2 values")
}

func TestCheckBalanceReportsBus(t *testing.T) {
	m, sol := solvedModel(t)
	r, err := Map(m, sol)
	assert.NilError(t, err)
	r.flows[Key{"el", "demand_el"}].Values[2] = 100
	assert.ErrorContains(t, r.CheckBalance(m.Graph(), 1e-6), "bus el is unbalanced")
}
