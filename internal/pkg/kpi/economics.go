package kpi

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateInput is returned when a KPI is undefined for its inputs.
var ErrDegenerateInput = errors.New("degenerate input")

// CRF is the capital recovery factor r(1+r)^n / ((1+r)^n - 1) for a lifetime
// of n years at rate r. CRF(n, 0) is 1/n.
func CRF(n, r float64) (float64, error) {
	if !(n > 0) || math.IsInf(n, 1) {
		return 0, fmt.Errorf("%w: lifetime %v", ErrDegenerateInput, n)
	}
	if math.IsNaN(r) || r <= -1 {
		return 0, fmt.Errorf("%w: rate %v", ErrDegenerateInput, r)
	}
	if r == 0 {
		return 1 / n, nil
	}
	q := math.Pow(1+r, n)
	return r * q / (q - 1), nil
}

// Annuity converts a one time capital expense into a constant yearly payment.
func Annuity(capex, n, r float64) (float64, error) {
	crf, err := CRF(n, r)
	if err != nil {
		return 0, err
	}
	return capex * crf, nil
}

// Investment is the capital cost of one technology. Size is a unit count,
// an area or a capacity, depending on what UnitCost refers to.
type Investment struct {
	Technology string  `json:"technology" bson:"technology"`
	Size       float64 `json:"size" bson:"size"`
	UnitCost   float64 `json:"unit_cost" bson:"unit_cost"`
	Lifetime   float64 `json:"lifetime" bson:"lifetime"`
	WACC       float64 `json:"wacc" bson:"wacc"`
}

// Capex is Size * UnitCost.
func (i Investment) Capex() float64 {
	return i.Size * i.UnitCost
}

// Annuity is zero for an inactive technology.
func (i Investment) Annuity() (float64, error) {
	if i.Size == 0 {
		return 0, nil
	}
	a, err := Annuity(i.Capex(), i.Lifetime, i.WACC)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", i.Technology, err)
	}
	return a, nil
}

// TotalAnnuity sums the annuity of every investment.
func TotalAnnuity(investments []Investment) (float64, error) {
	var total float64
	for _, i := range investments {
		a, err := i.Annuity()
		if err != nil {
			return 0, err
		}
		total += a
	}
	return total, nil
}
