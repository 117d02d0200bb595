// Package powersystem builds the reference three-bus energy system from a
// parameter set and the input time series.
package powersystem

import (
	"fmt"

	"github.com/ohowland/cgc_plan/internal/pkg/asset"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

// Bus labels.
const (
	GasBus         = "natural_gas"
	ElectricityBus = "electricity"
	HeatBus        = "heat"
)

// Time series columns.
const (
	DemandElColumn    = "Demand_el [MWh]"
	DemandThColumn    = "Demand_th [MWh]"
	WindColumn        = "Wind_power [kW/unit]"
	IrradiationColumn = "Sol_irradiation [Wh/sqm]"
)

// RequiredParameters lists every name Build reads.
var RequiredParameters = []string{
	"var_costs_excess_bel", "var_costs_excess_bth",
	"var_costs_shortage_bel", "var_costs_shortage_bth",
	"nom_val_gas", "sum_max_gas", "var_costs_gas",
	"emission_gas", "emission_el", "emission_heat",
	"number_of_windturbines",
	"PV_area_field", "PV_area_roof", "eta_PV",
	"area_solar_th", "eta_solar_th",
	"number_of_chps", "chp_heat_output", "conversion_factor_bth_chp", "conversion_factor_bel_chp",
	"number_of_boilers", "boiler_heat_output", "conversion_factor_boiler",
	"number_of_heat_pumps", "heatpump_heat_output", "COP_heat_pump",
	"capacity_thermal_storage", "daily_demand_th", "charge_time_storage_th",
	"capacity_loss_storage_th", "init_capacity_storage_th",
	"inflow_conv_factor_storage_th", "outflow_conv_factor_storage_th",
	"capacity_electr_storage", "daily_demand_el", "charge_time_storage_el",
	"capacity_loss_storage_el", "init_capacity_storage_el",
	"inflow_conv_factor_storage_el", "outflow_conv_factor_storage_el",
	"invest_cost_chp", "invest_cost_boiler", "invest_cost_wind", "invest_cost_heatpump",
	"invest_cost_storage_el", "invest_cost_storage_th",
	"invest_cost_pv", "invest_cost_solarthermal", "invest_cost_PV_pp",
	"lifetime", "wacc",
}

// Options tune the build.
type Options struct {
	// BalancedStorage returns every storage to its initial level at the end
	// of the time index.
	BalancedStorage bool
}

// System is a built reference system.
type System struct {
	Graph       *bus.Graph
	Investments []kpi.Investment
}

type builder struct {
	p     *param.Reader
	frame *timeseries.Frame
	opts  Options
	g     *bus.Graph
	gas   *bus.Bus
	el    *bus.Bus
	th    *bus.Bus
}

// Build assembles the graph over the index of frame. A technology is added
// only when its installed size is positive.
func Build(params *param.Set, frame *timeseries.Frame, opts Options) (*System, error) {
	if err := params.Require(RequiredParameters...); err != nil {
		return nil, err
	}
	g, err := bus.NewGraph(frame.Index().Len)
	if err != nil {
		return nil, err
	}
	b := &builder{p: param.NewReader(params), frame: frame, opts: opts, g: g}
	if b.gas, err = g.AddBus(GasBus, bus.NaturalGas); err != nil {
		return nil, err
	}
	if b.el, err = g.AddBus(ElectricityBus, bus.Electricity); err != nil {
		return nil, err
	}
	if b.th, err = g.AddBus(HeatBus, bus.Heat); err != nil {
		return nil, err
	}

	steps := []func() error{
		b.sinks,
		b.grid,
		b.renewables,
		b.converters,
		b.storages,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	if err := b.p.Err(); err != nil {
		return nil, err
	}
	return &System{Graph: g, Investments: b.investments()}, nil
}

func (b *builder) add(n bus.Node, err error) error {
	if err != nil {
		return err
	}
	return b.g.AddNode(n)
}

func (b *builder) profile(column string, factor float64) ([]float64, error) {
	return b.frame.Scale(column, factor)
}

func (b *builder) sinks() error {
	for _, d := range []struct {
		label, column string
		on            *bus.Bus
	}{
		{"demand_el", DemandElColumn, b.el},
		{"demand_th", DemandThColumn, b.th},
	} {
		profile, err := b.profile(d.column, 1)
		if err != nil {
			return err
		}
		f := bus.NewFlow(d.on, bus.FlowParams{NominalValue: 1, Fixed: true, Profile: profile})
		if err := b.add(asset.NewSink(d.label, asset.Demand, f)); err != nil {
			return err
		}
	}

	excessEl := bus.NewFlow(b.el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: b.p.Get("var_costs_excess_bel")})
	if err := b.add(asset.NewSink("excess_bel", asset.Excess, excessEl)); err != nil {
		return err
	}
	excessTh := bus.NewFlow(b.th, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: b.p.Get("var_costs_excess_bth")})
	return b.add(asset.NewSink("excess_bth", asset.Excess, excessTh))
}

func (b *builder) grid() error {
	shortEl := bus.NewFlow(b.el, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: b.p.Get("var_costs_shortage_bel")})
	if err := b.add(asset.NewSource("shortage_bel", asset.Shortage, b.p.Get("emission_el"), shortEl)); err != nil {
		return err
	}
	shortTh := bus.NewFlow(b.th, bus.FlowParams{NominalValue: bus.Unbounded, VariableCost: b.p.Get("var_costs_shortage_bth")})
	if err := b.add(asset.NewSource("shortage_bth", asset.Shortage, b.p.Get("emission_heat"), shortTh)); err != nil {
		return err
	}
	gas := bus.NewFlow(b.gas, bus.FlowParams{
		NominalValue: b.p.Get("nom_val_gas"),
		SummedMax:    b.p.Get("sum_max_gas"),
		VariableCost: b.p.Get("var_costs_gas"),
	})
	return b.add(asset.NewSource("rgas", asset.Fuel, b.p.Get("emission_gas"), gas))
}

// renewables adds the weather driven sources. Wind power is given per
// turbine in kW, irradiation per square metre in Wh; flows are in MWh and
// areas in ha.
func (b *builder) renewables() error {
	if n := b.p.Get("number_of_windturbines"); n > 0 {
		profile, err := b.profile(WindColumn, n*0.001)
		if err != nil {
			return err
		}
		f := bus.NewFlow(b.el, bus.FlowParams{NominalValue: 1, Fixed: true, Profile: profile})
		if err := b.add(asset.NewSource("wind_turbine", asset.Generic, 0, f)); err != nil {
			return err
		}
	}

	solar := []struct {
		label string
		area  string
		eta   string
		on    *bus.Bus
	}{
		{"PV_field", "PV_area_field", "eta_PV", b.el},
		{"PV_roof", "PV_area_roof", "eta_PV", b.el},
		{"solar_thermal", "area_solar_th", "eta_solar_th", b.th},
	}
	for _, s := range solar {
		area := b.p.Get(s.area)
		if area <= 0 {
			continue
		}
		profile, err := b.profile(IrradiationColumn, b.p.Get(s.eta)*1e-6)
		if err != nil {
			return err
		}
		f := bus.NewFlow(s.on, bus.FlowParams{NominalValue: area * 10000, Fixed: true, Profile: profile})
		if err := b.add(asset.NewSource(s.label, asset.Generic, 0, f)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) converters() error {
	free := bus.FlowParams{NominalValue: bus.Unbounded}

	if n := b.p.Get("number_of_chps"); n > 0 {
		err := b.add(asset.NewConverter(asset.ConverterConfig{
			Label:  "chp",
			Inputs: []*bus.Flow{bus.NewFlow(b.gas, free)},
			Outputs: []*bus.Flow{
				bus.NewFlow(b.th, bus.FlowParams{NominalValue: n * b.p.Get("chp_heat_output")}),
				bus.NewFlow(b.el, free),
			},
			Factors: map[string]float64{
				HeatBus:        b.p.Get("conversion_factor_bth_chp"),
				ElectricityBus: b.p.Get("conversion_factor_bel_chp"),
			},
		}))
		if err != nil {
			return err
		}
	}

	if n := b.p.Get("number_of_boilers"); n > 0 {
		err := b.add(asset.NewConverter(asset.ConverterConfig{
			Label:   "boiler",
			Inputs:  []*bus.Flow{bus.NewFlow(b.gas, free)},
			Outputs: []*bus.Flow{bus.NewFlow(b.th, bus.FlowParams{NominalValue: n * b.p.Get("boiler_heat_output")})},
			Factors: map[string]float64{HeatBus: b.p.Get("conversion_factor_boiler")},
		}))
		if err != nil {
			return err
		}
	}

	if n := b.p.Get("number_of_heat_pumps"); n > 0 {
		err := b.add(asset.NewConverter(asset.ConverterConfig{
			Label:   "heat_pump",
			Inputs:  []*bus.Flow{bus.NewFlow(b.el, free)},
			Outputs: []*bus.Flow{bus.NewFlow(b.th, bus.FlowParams{NominalValue: n * b.p.Get("heatpump_heat_output")})},
			Factors: map[string]float64{HeatBus: b.p.Get("COP_heat_pump")},
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) storages() error {
	for _, s := range []struct {
		label  string
		suffix string
		size   string
		daily  string
		on     *bus.Bus
	}{
		{"storage_th", "th", "capacity_thermal_storage", "daily_demand_th", b.th},
		{"storage_el", "el", "capacity_electr_storage", "daily_demand_el", b.el},
	} {
		size := b.p.Get(s.size)
		if size <= 0 {
			continue
		}
		capacity := size * b.p.Get(s.daily)
		chargeTime := b.p.Get("charge_time_storage_" + s.suffix)
		if chargeTime <= 0 {
			return fmt.Errorf("%w: storage %s has charge time %v", bus.ErrInvalidParameter, s.label, chargeTime)
		}
		power := capacity / chargeTime
		err := b.add(asset.NewStorage(asset.StorageConfig{
			Label:             s.label,
			Input:             bus.NewFlow(s.on, bus.FlowParams{NominalValue: power}),
			Output:            bus.NewFlow(s.on, bus.FlowParams{NominalValue: power}),
			Capacity:          capacity,
			LossRate:          b.p.Get("capacity_loss_storage_" + s.suffix),
			InitialLevel:      b.p.Get("init_capacity_storage_" + s.suffix),
			InflowEfficiency:  b.p.Get("inflow_conv_factor_storage_" + s.suffix),
			OutflowEfficiency: b.p.Get("outflow_conv_factor_storage_" + s.suffix),
			Balanced:          b.opts.BalancedStorage,
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

// investments lists the capital cost of every technology, installed or not.
func (b *builder) investments() []kpi.Investment {
	lifetime := b.p.Get("lifetime")
	wacc := b.p.Get("wacc")
	techs := []struct{ name, size, cost string }{
		{"chp", "number_of_chps", "invest_cost_chp"},
		{"boiler", "number_of_boilers", "invest_cost_boiler"},
		{"wind_turbine", "number_of_windturbines", "invest_cost_wind"},
		{"heat_pump", "number_of_heat_pumps", "invest_cost_heatpump"},
		{"storage_el", "capacity_electr_storage", "invest_cost_storage_el"},
		{"storage_th", "capacity_thermal_storage", "invest_cost_storage_th"},
		{"PV_roof", "PV_area_roof", "invest_cost_pv"},
		{"solar_thermal", "area_solar_th", "invest_cost_solarthermal"},
		{"PV_field", "PV_area_field", "invest_cost_PV_pp"},
	}
	out := make([]kpi.Investment, 0, len(techs))
	for _, t := range techs {
		out = append(out, kpi.Investment{
			Technology: t.name,
			Size:       b.p.Get(t.size),
			UnitCost:   b.p.Get(t.cost),
			Lifetime:   lifetime,
			WACC:       wacc,
		})
	}
	return out
}
