// Package dispatch defines how the root system hands a graph to an optimiser.
package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
)

// Dispatcher builds the linear program of a graph and solves it. The model
// is returned whenever it was built, also when the solve fails.
type Dispatcher interface {
	PID() uuid.UUID
	Solver() solver.Solver
	Dispatch(ctx context.Context, g *bus.Graph) (*lpdispatch.Model, solver.Solution, error)
}

var _ Dispatcher = (*lpdispatch.LPDispatch)(nil)
