// Package opt holds a solver independent representation of a linear program:
// bounded columns, linear rows and a minimized linear objective.
package opt

import (
	"fmt"
	"math"
)

// Var is the column index of a decision variable within a Problem.
type Var int

// Relation is the comparison operator of a constraint row.
type Relation int

const (
	EQ Relation = iota
	LE
	GE
)

func (r Relation) String() string {
	switch r {
	case EQ:
		return "="
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "?"
	}
}

// Variable is a single column: its bounds and its objective coefficient.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
	Cost  float64
}

// Fixed reports whether the variable bounds collapse to a single value.
func (v Variable) Fixed() bool {
	return v.Lower == v.Upper
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Constraint is a linear row: sum(Terms) Rel RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Rel   Relation
	RHS   float64
}

// Eval returns the left hand side of the row at x.
func (c Constraint) Eval(x []float64) float64 {
	var lhs float64
	for _, t := range c.Terms {
		lhs += t.Coef * x[t.Var]
	}
	return lhs
}

// Satisfied reports whether x satisfies the row within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	lhs := c.Eval(x)
	switch c.Rel {
	case LE:
		return lhs <= c.RHS+tol
	case GE:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Problem is a minimization linear program.
type Problem struct {
	vars  []Variable
	cons  []Constraint
	names map[string]Var
}

// NewProblem returns an empty Problem.
func NewProblem() *Problem {
	return &Problem{names: make(map[string]Var)}
}

// AddVariable appends a column. Names must be unique within the problem and
// the lower bound may not exceed the upper bound.
func (p *Problem) AddVariable(name string, lower, upper, cost float64) (Var, error) {
	if _, exists := p.names[name]; exists {
		return 0, fmt.Errorf("variable %s already exists in problem", name)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return 0, fmt.Errorf("variable %s has invalid bounds [%v, %v]", name, lower, upper)
	}
	v := Var(len(p.vars))
	p.vars = append(p.vars, Variable{Name: name, Lower: lower, Upper: upper, Cost: cost})
	p.names[name] = v
	return v, nil
}

// AddConstraint appends rows to the problem.
func (p *Problem) AddConstraint(c ...Constraint) {
	p.cons = append(p.cons, c...)
}

// NumVariables is the number of columns.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NumConstraints is the number of rows.
func (p *Problem) NumConstraints() int { return len(p.cons) }

// Variable returns the column at v.
func (p *Problem) Variable(v Var) Variable {
	return p.vars[v]
}

// Variables returns all columns in index order.
func (p *Problem) Variables() []Variable {
	return p.vars
}

// Constraints returns all rows in insertion order.
func (p *Problem) Constraints() []Constraint {
	return p.cons
}

// Lookup finds a column by name.
func (p *Problem) Lookup(name string) (Var, bool) {
	v, ok := p.names[name]
	return v, ok
}

// Objective evaluates the objective at x.
func (p *Problem) Objective(x []float64) float64 {
	var obj float64
	for i, v := range p.vars {
		obj += v.Cost * x[i]
	}
	return obj
}

// CostCoefficients returns the objective coefficient of every column.
func (p *Problem) CostCoefficients() []float64 {
	c := make([]float64, len(p.vars))
	for i, v := range p.vars {
		c[i] = v.Cost
	}
	return c
}

// Feasible reports the first row or bound violated by x, or nil.
func (p *Problem) Feasible(x []float64, tol float64) error {
	if len(x) != len(p.vars) {
		return fmt.Errorf("solution has %d values, problem has %d variables", len(x), len(p.vars))
	}
	for i, v := range p.vars {
		if x[i] < v.Lower-tol || x[i] > v.Upper+tol {
			return fmt.Errorf("variable %s = %v outside [%v, %v]", v.Name, x[i], v.Lower, v.Upper)
		}
	}
	for _, c := range p.cons {
		if !c.Satisfied(x, tol) {
			return fmt.Errorf("constraint %s violated: %v %s %v", c.Name, c.Eval(x), c.Rel, c.RHS)
		}
	}
	return nil
}
