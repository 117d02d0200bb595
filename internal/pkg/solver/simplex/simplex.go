// Package simplex solves linear programs in process with the gonum dense
// simplex. The problem is presolved and brought into standard form first,
// so it is suited to short horizons rather than a full year of hourly steps.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Name identifies the backend in configuration and failures.
const Name = "simplex"

const (
	defaultTolerance = 1e-10
	checkTolerance   = 1e-6
)

// Simplex is the in process backend.
type Simplex struct {
	tol       float64
	timeLimit time.Duration
	log       *log.Logger
}

// New returns a Simplex configured by cfg. Only Tolerance and TimeLimit
// (seconds) are used.
func New(cfg solver.Config) *Simplex {
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	return &Simplex{
		tol:       tol,
		timeLimit: time.Duration(cfg.TimeLimit * float64(time.Second)),
		log:       logger.New("Simplex"),
	}
}

func (s *Simplex) Name() string {
	return Name
}

type outcome struct {
	y   []float64
	err error
}

// Solve presolves p, runs the simplex on what remains and maps the result
// back onto the columns of p.
func (s *Simplex) Solve(ctx context.Context, p *opt.Problem) (solver.Solution, error) {
	if err := ctx.Err(); err != nil {
		return solver.Solution{}, solver.Failure(Name, solver.TimeLimit, err)
	}

	r, err := presolve(p, s.tol)
	if err != nil {
		return solver.Solution{}, err
	}
	cols := r.used()
	inRows := make(map[int]bool, len(cols))
	for _, j := range cols {
		inRows[j] = true
	}
	if err := r.resolveUnconstrained(inRows); err != nil {
		return solver.Solution{}, err
	}
	s.log.Debug("presolved", "columns", p.NumVariables(), "remaining", len(cols), "rows", len(r.rows))

	x := r.x
	if len(cols) > 0 {
		st := toStandard(r, cols)
		if err := st.independentRows(s.tol); err != nil {
			return solver.Solution{}, err
		}
		empty, err := st.emptyColumns()
		if err != nil {
			return solver.Solution{}, err
		}
		y := make([]float64, len(st.c))
		if len(st.a) > 0 {
			c, a, b, index := st.matrix(empty)
			rows, n := a.Dims()
			s.log.Debug("standard form", "rows", rows, "columns", n)

			res, err := s.run(ctx, c, a, b)
			if err != nil {
				return solver.Solution{}, err
			}
			for jj, k := range index {
				y[k] = res[jj]
			}
		}
		st.unshift(y, x)
	}

	for j, v := range p.Variables() {
		x[j] = math.Min(math.Max(x[j], v.Lower), v.Upper)
	}
	if err := p.Feasible(x, checkTolerance); err != nil {
		return solver.Solution{}, solver.Failure(Name, solver.Numerical, err)
	}
	return solver.Solution{Status: solver.Optimal, Values: x, Objective: p.Objective(x)}, nil
}

// run calls the gonum simplex in its own goroutine so that a time limit or
// a cancelled context returns control to the caller.
func (s *Simplex) run(ctx context.Context, c []float64, a mat.Matrix, b []float64) ([]float64, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: solver.Failure(Name, solver.Numerical, fmt.Errorf("simplex panic: %v", rec))}
			}
		}()
		_, y, err := lp.Simplex(c, a, b, s.tol, nil)
		done <- outcome{y: y, err: mapError(err)}
	}()

	var limit <-chan time.Time
	if s.timeLimit > 0 {
		timer := time.NewTimer(s.timeLimit)
		defer timer.Stop()
		limit = timer.C
	}

	select {
	case o := <-done:
		return o.y, o.err
	case <-limit:
		return nil, solver.Failure(Name, solver.TimeLimit, fmt.Errorf("no result after %v", s.timeLimit))
	case <-ctx.Done():
		return nil, solver.Failure(Name, solver.TimeLimit, ctx.Err())
	}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lp.ErrInfeasible):
		return solver.Failure(Name, solver.Infeasible, err)
	case errors.Is(err, lp.ErrUnbounded):
		return solver.Failure(Name, solver.Unbounded, err)
	default:
		return solver.Failure(Name, solver.Numerical, err)
	}
}
