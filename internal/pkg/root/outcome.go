package root

import (
	"errors"

	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

var kinds = []struct {
	err  error
	name string
}{
	{bus.ErrShapeMismatch, "shape_mismatch"},
	{bus.ErrDuplicateIdentifier, "duplicate_identifier"},
	{bus.ErrInvalidTopology, "invalid_topology"},
	{bus.ErrInvalidParameter, "invalid_parameter"},
	{solver.ErrSolveFailure, "solve_failure"},
	{kpi.ErrDegenerateInput, "degenerate_input"},
	{param.ErrMissingParameter, "missing_parameter"},
	{timeseries.ErrMissingColumn, "missing_column"},
}

// Outcome names the error kind of err, "ok" for nil.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "error"
}
