// Package kpi derives yearly cost, emission and self-sufficiency indicators
// from mapped dispatch results.
package kpi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohowland/cgc_plan/internal/pkg/asset"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/results"
)

// Summary holds the indicators of one run. Costs are currency per year,
// CO2 is kg per year and SelfSufficiency a percentage.
type Summary struct {
	Annuity         float64                 `json:"annuity" bson:"annuity"`
	VariableCost    float64                 `json:"variable_cost" bson:"variable_cost"`
	TotalCost       float64                 `json:"total_cost" bson:"total_cost"`
	CO2             float64                 `json:"co2" bson:"co2"`
	Coverage        map[bus.Carrier]float64 `json:"coverage" bson:"coverage"`
	SelfSufficiency float64                 `json:"self_sufficiency" bson:"self_sufficiency"`
}

// CO2Tonnes is the emission in tonnes per year.
func (s Summary) CO2Tonnes() float64 {
	return s.CO2 / 1e3
}

// TotalCostMillions is the total cost in millions per year.
func (s Summary) TotalCostMillions() float64 {
	return s.TotalCost / 1e6
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CO2-Emission: %.2f t/a\n", s.CO2Tonnes())
	fmt.Fprintf(&b, "Total Costs of Energy System per Year: %.2f Mio. €/a\n", s.TotalCostMillions())
	fmt.Fprintf(&b, "Self-Sufficiency: %.2f %%\n", s.SelfSufficiency)
	return b.String()
}

// Compute evaluates every indicator for the graph g and its results r.
func Compute(g *bus.Graph, r *results.Results, investments []Investment) (Summary, error) {
	annuity, err := TotalAnnuity(investments)
	if err != nil {
		return Summary{}, err
	}
	variable, co2, err := Operation(g, r)
	if err != nil {
		return Summary{}, err
	}
	coverage, err := Coverage(g, r)
	if err != nil {
		return Summary{}, err
	}
	ss, err := SelfSufficiency(coverage)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Annuity:         annuity,
		VariableCost:    variable,
		TotalCost:       annuity + variable,
		CO2:             co2,
		Coverage:        coverage,
		SelfSufficiency: ss,
	}, nil
}

func flowSum(r *results.Results, f *bus.Flow) (float64, error) {
	s, ok := r.Series(results.Key{Source: f.Source(), Target: f.Target()})
	if !ok {
		return 0, fmt.Errorf("%w: no results for flow %s", bus.ErrInvalidTopology, f)
	}
	return s.Sum(), nil
}

func role(n bus.Node) asset.Role {
	if c, ok := n.(asset.Classified); ok {
		return c.Role()
	}
	return asset.Generic
}

// Operation returns the variable cost and the CO2 emission of every fuel and
// shortage source.
func Operation(g *bus.Graph, r *results.Results) (cost, co2 float64, err error) {
	for _, n := range g.Nodes() {
		if rl := role(n); rl != asset.Fuel && rl != asset.Shortage {
			continue
		}
		var factor float64
		if e, ok := n.(asset.Emitter); ok {
			factor = e.EmissionFactor()
		}
		for _, f := range n.Flows() {
			total, err := flowSum(r, f)
			if err != nil {
				return 0, 0, err
			}
			cost += total * f.VariableCost
			co2 += total * factor
		}
	}
	return cost, co2, nil
}

// Coverage returns, per demand carrier, the share of demand not covered by
// shortage supply. Demand includes the draw of every converter consuming the
// carrier.
func Coverage(g *bus.Graph, r *results.Results) (map[bus.Carrier]float64, error) {
	demand := make(map[bus.Carrier]float64)
	shortage := make(map[bus.Carrier]float64)

	for _, n := range g.Nodes() {
		if role(n) != asset.Demand {
			continue
		}
		for _, f := range n.Flows() {
			total, err := flowSum(r, f)
			if err != nil {
				return nil, err
			}
			demand[f.Carrier()] += total
		}
	}

	for _, n := range g.Nodes() {
		switch {
		case role(n) == asset.Shortage:
			for _, f := range n.Flows() {
				if _, ok := demand[f.Carrier()]; !ok {
					continue
				}
				total, err := flowSum(r, f)
				if err != nil {
					return nil, err
				}
				shortage[f.Carrier()] += total
			}
		case n.Kind() == bus.ConverterKind:
			c, ok := n.(asset.Consumer)
			if !ok {
				continue
			}
			for _, f := range c.Inputs() {
				if _, ok := demand[f.Carrier()]; !ok {
					continue
				}
				total, err := flowSum(r, f)
				if err != nil {
					return nil, err
				}
				demand[f.Carrier()] += total
			}
		}
	}

	coverage := make(map[bus.Carrier]float64, len(demand))
	for c, d := range demand {
		if d == 0 {
			return nil, fmt.Errorf("%w: total %s demand is zero", ErrDegenerateInput, c)
		}
		coverage[c] = (d - shortage[c]) / d
	}
	return coverage, nil
}

// SelfSufficiency is the mean coverage over all demand carriers in percent.
func SelfSufficiency(coverage map[bus.Carrier]float64) (float64, error) {
	if len(coverage) == 0 {
		return 0, fmt.Errorf("%w: no demand carrier", ErrDegenerateInput)
	}
	carriers := make([]string, 0, len(coverage))
	for c := range coverage {
		carriers = append(carriers, string(c))
	}
	sort.Strings(carriers)

	var sum float64
	for _, c := range carriers {
		sum += coverage[bus.Carrier(c)]
	}
	return sum / float64(len(carriers)) * 100, nil
}
