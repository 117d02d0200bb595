// Package solver defines the contract between the dispatch model and a
// linear programming backend.
package solver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// Status is the termination status reported by a backend.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	TimeLimit
	Numerical
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case TimeLimit:
		return "time limit"
	case Numerical:
		return "numerical failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrSolveFailure matches every *SolveFailure with errors.Is.
var ErrSolveFailure = errors.New("solve failure")

// SolveFailure reports a non-optimal termination. Err holds the backend's
// own error when there is one.
type SolveFailure struct {
	Solver string
	Status Status
	Err    error
}

func (e *SolveFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", ErrSolveFailure, e.Solver, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrSolveFailure, e.Solver, e.Status)
}

func (e *SolveFailure) Is(target error) bool {
	return target == ErrSolveFailure
}

func (e *SolveFailure) Unwrap() error {
	return e.Err
}

// Failure builds a *SolveFailure.
func Failure(solver string, status Status, err error) error {
	return &SolveFailure{Solver: solver, Status: status, Err: err}
}

// Solution is the primal result of an optimal solve. Values holds one value
// per problem column in column order.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
}

// Value returns the value of column v.
func (s Solution) Value(v opt.Var) float64 {
	return s.Values[v]
}

// Named returns the values keyed by column name.
func (s Solution) Named(p *opt.Problem) map[string]float64 {
	named := make(map[string]float64, len(s.Values))
	for i, v := range p.Variables() {
		named[v.Name] = s.Values[i]
	}
	return named
}

// Restore rebuilds a solution for p from values keyed by column name, as
// produced by Named. Every column of p must be present.
func Restore(p *opt.Problem, named map[string]float64) (Solution, error) {
	values := make([]float64, p.NumVariables())
	for i, v := range p.Variables() {
		x, ok := named[v.Name]
		if !ok {
			return Solution{}, fmt.Errorf("restored solution has no value for variable %s", v.Name)
		}
		values[i] = x
	}
	if len(named) != len(values) {
		return Solution{}, fmt.Errorf("restored solution has %d values, problem has %d variables", len(named), len(values))
	}
	return Solution{Status: Optimal, Values: values, Objective: p.Objective(values)}, nil
}

// Solver is implemented by every backend. Solve blocks until the backend
// terminates, its time limit expires or ctx is done. A non-optimal
// termination is returned as a *SolveFailure.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *opt.Problem) (Solution, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Name       string  `yaml:"name" validate:"oneof=simplex cbc"`
	Executable string  `yaml:"executable"`
	TimeLimit  float64 `yaml:"time_limit" validate:"gte=0"`
	Tolerance  float64 `yaml:"tolerance" validate:"gte=0"`
	Verbose    bool    `yaml:"verbose"`
	WorkDir    string  `yaml:"work_dir"`
}
