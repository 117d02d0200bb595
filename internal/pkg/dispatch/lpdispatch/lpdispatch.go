// Package lpdispatch builds the dispatch linear program of a carrier graph
// and hands it to a solver backend.
package lpdispatch

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
)

// LPDispatch optimizes the dispatch of every flow in a graph at once.
type LPDispatch struct {
	pid    uuid.UUID
	solver solver.Solver
	debug  io.Writer
	log    *log.Logger
}

// New returns a dispatcher backed by s. When debug is not nil the LP is
// written to it, with symbolic labels, before every solve.
func New(s solver.Solver, debug io.Writer) (*LPDispatch, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &LPDispatch{
		pid:    pid,
		solver: s,
		debug:  debug,
		log:    logger.New("LP Dispatch"),
	}, nil
}

func (d *LPDispatch) PID() uuid.UUID {
	return d.pid
}

// Solver is the backend used by Dispatch.
func (d *LPDispatch) Solver() solver.Solver {
	return d.solver
}

// Dispatch builds the model of g and solves it. The model is returned with
// the error of a failed solve so callers can inspect the problem.
func (d *LPDispatch) Dispatch(ctx context.Context, g *bus.Graph) (*Model, solver.Solution, error) {
	m, err := Build(g)
	if err != nil {
		return nil, solver.Solution{}, err
	}
	p := m.Problem()
	d.log.Info("model built", "steps", g.Steps(), "variables", p.NumVariables(), "constraints", p.NumConstraints())

	if d.debug != nil {
		if err := opt.WriteLP(d.debug, p, opt.SymbolicLabels); err != nil {
			return m, solver.Solution{}, err
		}
	}

	start := time.Now()
	sol, err := d.solver.Solve(ctx, p)
	if err != nil {
		d.log.Error("solve failed", "solver", d.solver.Name(), "err", err)
		return m, solver.Solution{}, err
	}
	d.log.Info("solved", "solver", d.solver.Name(), "objective", sol.Objective, "elapsed", time.Since(start))
	return m, sol, nil
}
