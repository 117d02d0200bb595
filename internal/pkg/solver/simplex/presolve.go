package simplex

import (
	"fmt"
	"math"
	"sort"

	"github.com/ohowland/cgc_plan/internal/pkg/opt"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
)

type row struct {
	name  string
	terms map[int]float64
	rel   opt.Relation
	rhs   float64
}

func (r *row) satisfiedAtZero(tol float64) bool {
	scale := tol * math.Max(1, math.Abs(r.rhs))
	switch r.rel {
	case opt.LE:
		return 0 <= r.rhs+scale
	case opt.GE:
		return 0 >= r.rhs-scale
	default:
		return math.Abs(r.rhs) <= scale
	}
}

// reduced is a problem after fixed columns and singleton equalities have
// been resolved. Columns with fixed set carry their final value in x.
type reduced struct {
	vars  []opt.Variable
	x     []float64
	fixed []bool
	rows  []*row
}

// presolve substitutes fixed columns, resolves equality rows with a single
// remaining column and drops rows without columns. A resolved value outside
// its column bounds, or an empty row that does not hold, makes the problem
// infeasible.
func presolve(p *opt.Problem, tol float64) (*reduced, error) {
	vars := p.Variables()
	r := &reduced{
		vars:  vars,
		x:     make([]float64, len(vars)),
		fixed: make([]bool, len(vars)),
	}
	for j, v := range vars {
		if v.Fixed() {
			r.x[j] = v.Lower
			r.fixed[j] = true
		}
	}

	active := make([]*row, 0, p.NumConstraints())
	for _, c := range p.Constraints() {
		rw := &row{name: c.Name, terms: make(map[int]float64, len(c.Terms)), rel: c.Rel, rhs: c.RHS}
		for _, t := range c.Terms {
			rw.terms[int(t.Var)] += t.Coef
		}
		active = append(active, rw)
	}

	for changed := true; changed; {
		changed = false
		remaining := active[:0]
		for _, rw := range active {
			for j, a := range rw.terms {
				if a == 0 {
					delete(rw.terms, j)
					continue
				}
				if r.fixed[j] {
					rw.rhs -= a * r.x[j]
					delete(rw.terms, j)
				}
			}

			switch {
			case len(rw.terms) == 0:
				if !rw.satisfiedAtZero(tol) {
					return nil, solver.Failure(Name, solver.Infeasible, fmt.Errorf("constraint %s cannot hold: 0 %s %v", rw.name, rw.rel, rw.rhs))
				}
			case len(rw.terms) == 1 && rw.rel == opt.EQ:
				for j, a := range rw.terms {
					value := rw.rhs / a
					v := vars[j]
					slack := tol * math.Max(1, math.Abs(value))
					if value < v.Lower-slack || value > v.Upper+slack {
						return nil, solver.Failure(Name, solver.Infeasible, fmt.Errorf("constraint %s requires %s = %v outside [%v, %v]", rw.name, v.Name, value, v.Lower, v.Upper))
					}
					r.x[j] = math.Min(math.Max(value, v.Lower), v.Upper)
					r.fixed[j] = true
				}
				changed = true
			default:
				remaining = append(remaining, rw)
			}
		}
		active = remaining
	}
	r.rows = active
	return r, nil
}

// used returns the unresolved columns that appear in a remaining row, in
// column order.
func (r *reduced) used() []int {
	seen := make(map[int]bool)
	for _, rw := range r.rows {
		for j := range rw.terms {
			seen[j] = true
		}
	}
	cols := make([]int, 0, len(seen))
	for j := range seen {
		cols = append(cols, j)
	}
	sort.Ints(cols)
	return cols
}

// resolveUnconstrained sets every column that is neither fixed nor part of
// a row to the bound its cost prefers.
func (r *reduced) resolveUnconstrained(inRows map[int]bool) error {
	for j, v := range r.vars {
		if r.fixed[j] || inRows[j] {
			continue
		}
		value, err := cheapestBound(v)
		if err != nil {
			return err
		}
		r.x[j] = value
		r.fixed[j] = true
	}
	return nil
}

func cheapestBound(v opt.Variable) (float64, error) {
	var value float64
	switch {
	case v.Cost > 0:
		value = v.Lower
	case v.Cost < 0:
		value = v.Upper
	case !math.IsInf(v.Lower, -1):
		value = v.Lower
	case !math.IsInf(v.Upper, 1):
		value = v.Upper
	}
	if math.IsInf(value, 0) {
		return 0, solver.Failure(Name, solver.Unbounded, fmt.Errorf("variable %s has cost %v and no bound in that direction", v.Name, v.Cost))
	}
	return value, nil
}
