package simplex

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_plan/internal/pkg/opt"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// part maps a standard form column back onto a problem column.
type part struct {
	col  int
	sign float64
}

// column expresses x_j = offset + sum(sign * y_col).
type column struct {
	index  int
	offset float64
	parts  []part
}

// standard is min c'y subject to Ay = b, y >= 0.
type standard struct {
	c       []float64
	a       [][]float64
	b       []float64
	names   []string
	columns []column
}

// toStandard shifts every column onto a non negative one, adds a row per
// finite upper bound and a slack per inequality.
func toStandard(r *reduced, cols []int) *standard {
	s := &standard{}
	newCol := func(cost float64) int {
		s.c = append(s.c, cost)
		return len(s.c) - 1
	}

	type bound struct {
		col   int
		value float64
		name  string
	}
	var bounds []bound
	colOf := make(map[int]int, len(cols))
	for _, j := range cols {
		v := r.vars[j]
		cl := column{index: j}
		switch {
		case !math.IsInf(v.Lower, -1):
			cl.offset = v.Lower
			k := newCol(v.Cost)
			cl.parts = []part{{k, 1}}
			if !math.IsInf(v.Upper, 1) {
				bounds = append(bounds, bound{k, v.Upper - v.Lower, v.Name})
			}
		case !math.IsInf(v.Upper, 1):
			cl.offset = v.Upper
			cl.parts = []part{{newCol(-v.Cost), -1}}
		default:
			cl.parts = []part{{newCol(v.Cost), 1}, {newCol(-v.Cost), -1}}
		}
		colOf[j] = len(s.columns)
		s.columns = append(s.columns, cl)
	}

	type sparse struct {
		coefs map[int]float64
		rhs   float64
		name  string
	}
	rows := make([]sparse, 0, len(r.rows)+len(bounds))
	for _, rw := range r.rows {
		sp := sparse{coefs: make(map[int]float64), rhs: rw.rhs, name: rw.name}
		for j, a := range rw.terms {
			cl := s.columns[colOf[j]]
			sp.rhs -= a * cl.offset
			for _, p := range cl.parts {
				sp.coefs[p.col] += a * p.sign
			}
		}
		switch rw.rel {
		case opt.LE:
			sp.coefs[newCol(0)] = 1
		case opt.GE:
			sp.coefs[newCol(0)] = -1
		}
		rows = append(rows, sp)
	}
	for _, bd := range bounds {
		sp := sparse{coefs: map[int]float64{bd.col: 1, newCol(0): 1}, rhs: bd.value, name: "bound(" + bd.name + ")"}
		rows = append(rows, sp)
	}

	n := len(s.c)
	for _, sp := range rows {
		dense := make([]float64, n)
		for k, a := range sp.coefs {
			dense[k] = a
		}
		rhs := sp.rhs
		if rhs < 0 {
			floats.Scale(-1, dense)
			rhs = -rhs
		}
		s.a = append(s.a, dense)
		s.b = append(s.b, rhs)
		s.names = append(s.names, sp.name)
	}
	return s
}

// independentRows drops rows that are linear combinations of earlier rows.
// A dependent row whose right hand side disagrees makes the problem
// infeasible.
func (s *standard) independentRows(tol float64) error {
	var (
		basis [][]float64
		gamma []float64
		keepA [][]float64
		keepB []float64
		names []string
	)
	for i, ai := range s.a {
		r := make([]float64, len(ai))
		copy(r, ai)
		beta := s.b[i]
		for k, q := range basis {
			coef := floats.Dot(r, q)
			floats.AddScaled(r, -coef, q)
			beta -= coef * gamma[k]
		}
		norm := floats.Norm(r, 2)
		scale := math.Max(1, floats.Norm(ai, 2))
		if norm <= tol*scale {
			if math.Abs(beta) > math.Sqrt(tol)*math.Max(1, math.Abs(s.b[i])) {
				return solver.Failure(Name, solver.Infeasible, fmt.Errorf("constraint %s contradicts earlier constraints", s.names[i]))
			}
			continue
		}
		floats.Scale(1/norm, r)
		basis = append(basis, r)
		gamma = append(gamma, beta/norm)
		keepA = append(keepA, ai)
		keepB = append(keepB, s.b[i])
		names = append(names, s.names[i])
	}
	s.a, s.b, s.names = keepA, keepB, names
	return nil
}

// emptyColumns returns the columns without a nonzero entry. Their value is
// zero unless the cost rewards growing them without limit.
func (s *standard) emptyColumns() (map[int]bool, error) {
	empty := make(map[int]bool)
	for k := range s.c {
		nonzero := false
		for _, ai := range s.a {
			if ai[k] != 0 {
				nonzero = true
				break
			}
		}
		if nonzero {
			continue
		}
		if s.c[k] < 0 {
			return nil, solver.Failure(Name, solver.Unbounded, fmt.Errorf("column %d has cost %v and no constraint", k, s.c[k]))
		}
		empty[k] = true
	}
	return empty, nil
}

// matrix packs the non empty columns into the dense form the simplex expects.
func (s *standard) matrix(empty map[int]bool) (c []float64, a *mat.Dense, b []float64, index []int) {
	for k := range s.c {
		if !empty[k] {
			index = append(index, k)
		}
	}
	c = make([]float64, len(index))
	a = mat.NewDense(len(s.a), len(index), nil)
	for jj, k := range index {
		c[jj] = s.c[k]
		for i, ai := range s.a {
			a.Set(i, jj, ai[k])
		}
	}
	b = make([]float64, len(s.b))
	copy(b, s.b)
	return c, a, b, index
}

// unshift maps standard form values back onto the problem columns.
func (s *standard) unshift(y []float64, x []float64) {
	for _, cl := range s.columns {
		value := cl.offset
		for _, p := range cl.parts {
			value += p.sign * y[p.col]
		}
		x[cl.index] = value
	}
}
