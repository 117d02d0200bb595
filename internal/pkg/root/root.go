// Package root runs the planning pipeline: build the reference system,
// dispatch it, map the solution and evaluate the indicators. Progress and
// finished runs are published to subscribed handlers.
package root

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/metrics"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"github.com/ohowland/cgc_plan/internal/pkg/powersystem"
	"github.com/ohowland/cgc_plan/internal/pkg/results"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

// Stages reported on the Status topic.
const (
	StageBuild    = "build"
	StageSolve    = "solve"
	StageEvaluate = "evaluate"
	StageRestore  = "restore"
	StageDone     = "done"
)

// Config tunes the pipeline. Tolerance bounds the bus imbalance accepted
// by the post-solve check.
type Config struct {
	Options   powersystem.Options
	Tolerance float64
}

// System is the root node of the planning system
type System struct {
	pid       uuid.UUID
	publisher *msg.PubSub
	dispatch  dispatch.Dispatcher
	metrics   *metrics.Registry
	config    Config
	log       *log.Logger
}

// NewSystem returns a pipeline over d. reg may be nil.
func NewSystem(cfg Config, d dispatch.Dispatcher, reg *metrics.Registry) (*System, error) {
	if d == nil {
		return nil, errors.New("root system needs a dispatcher")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-6
	}
	return &System{
		pid:       pid,
		publisher: msg.NewPublisher(pid),
		dispatch:  d,
		metrics:   reg,
		config:    cfg,
		log:       logger.New("Main"),
	}, nil
}

func (s *System) PID() uuid.UUID {
	return s.pid
}

// Subscribe returns a channel on which the specified topic is broadcast
func (s *System) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return s.publisher.Subscribe(pid, topic)
}

// Unsubscribe pid from all topic broadcasts
func (s *System) Unsubscribe(pid uuid.UUID) {
	s.publisher.Unsubscribe(pid)
}

// Close ends every subscription so handlers can drain and stop.
func (s *System) Close() {
	s.publisher.Close()
}

// Run is one evaluated run.
type Run struct {
	Record      *archive.Record
	Graph       *bus.Graph
	Model       *lpdispatch.Model
	Results     *results.Results
	Summary     kpi.Summary
	Investments []kpi.Investment
}

func (s *System) report(run uuid.UUID, stage string, err error) {
	r := msg.Report{Run: run, Stage: stage, Time: time.Now().UTC()}
	if err != nil {
		r.Error = err.Error()
		s.log.Error("run failed", "run", run, "stage", stage, "kind", Outcome(err), "err", err)
	} else {
		s.log.Info(stage, "run", run)
	}
	s.publisher.Publish(msg.Status, r)
}

func (s *System) fail(run uuid.UUID, stage string, err error) error {
	s.report(run, stage, err)
	if s.metrics != nil {
		s.metrics.RecordRun(Outcome(err))
	}
	return err
}

// Run optimises the reference system described by params and frame. The
// finished run is published on the Result topic.
func (s *System) Run(ctx context.Context, params *param.Set, frame *timeseries.Frame) (*Run, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	s.report(pid, StageBuild, nil)
	sys, err := powersystem.Build(params, frame, s.config.Options)
	if err != nil {
		return nil, s.fail(pid, StageBuild, err)
	}

	s.report(pid, StageSolve, nil)
	start := time.Now()
	m, sol, err := s.dispatch.Dispatch(ctx, sys.Graph)
	s.recordSolve(m, sol, err, time.Since(start))
	if err != nil {
		return nil, s.fail(pid, StageSolve, err)
	}

	rec, err := archive.NewRecord(pid, params, frame)
	if err != nil {
		return nil, s.fail(pid, StageEvaluate, err)
	}
	rec.Balanced = s.config.Options.BalancedStorage
	rec.Solver = s.dispatch.Solver().Name()
	rec.Objective = sol.Objective
	rec.Solution = sol.Named(m.Problem())

	s.report(pid, StageEvaluate, nil)
	run, err := s.evaluate(rec, sys, m, sol)
	if err != nil {
		return nil, s.fail(pid, StageEvaluate, err)
	}

	s.publisher.Publish(msg.Result, rec)
	s.report(pid, StageDone, nil)
	if s.metrics != nil {
		s.metrics.RecordRun(Outcome(nil))
		s.metrics.RecordKPI(run.Summary.CO2Tonnes(), run.Summary.TotalCostMillions(), run.Summary.SelfSufficiency)
	}
	return run, nil
}

// Restore re-derives results and indicators of an archived run without
// solving.
func (s *System) Restore(rec *archive.Record) (*Run, error) {
	s.report(rec.PID, StageRestore, nil)
	params, err := rec.Params()
	if err != nil {
		return nil, s.fail(rec.PID, StageRestore, err)
	}
	frame, err := rec.Frame()
	if err != nil {
		return nil, s.fail(rec.PID, StageRestore, err)
	}
	sys, err := powersystem.Build(params, frame, powersystem.Options{BalancedStorage: rec.Balanced})
	if err != nil {
		return nil, s.fail(rec.PID, StageRestore, err)
	}
	m, err := lpdispatch.Build(sys.Graph)
	if err != nil {
		return nil, s.fail(rec.PID, StageRestore, err)
	}
	sol, err := solver.Restore(m.Problem(), rec.Solution)
	if err != nil {
		return nil, s.fail(rec.PID, StageRestore, err)
	}
	run, err := s.evaluate(rec, sys, m, sol)
	if err != nil {
		return nil, s.fail(rec.PID, StageRestore, err)
	}
	s.report(rec.PID, StageDone, nil)
	return run, nil
}

func (s *System) evaluate(rec *archive.Record, sys *powersystem.System, m *lpdispatch.Model, sol solver.Solution) (*Run, error) {
	r, err := results.Map(m, sol)
	if err != nil {
		return nil, err
	}
	if err := r.CheckBalance(sys.Graph, s.config.Tolerance); err != nil {
		s.log.Warn("balance check", "run", rec.PID, "err", err)
	}
	summary, err := kpi.Compute(sys.Graph, r, sys.Investments)
	if err != nil {
		return nil, err
	}
	rec.Summary = summary
	return &Run{
		Record:      rec,
		Graph:       sys.Graph,
		Model:       m,
		Results:     r,
		Summary:     summary,
		Investments: sys.Investments,
	}, nil
}

func (s *System) recordSolve(m *lpdispatch.Model, sol solver.Solution, err error, elapsed time.Duration) {
	if s.metrics == nil || m == nil {
		return
	}
	p := m.Problem()
	s.metrics.RecordModel(p.NumVariables(), p.NumConstraints())
	status := sol.Status
	var failure *solver.SolveFailure
	if errors.As(err, &failure) {
		status = failure.Status
	} else if err != nil {
		return
	}
	s.metrics.RecordSolve(s.dispatch.Solver().Name(), status.String(), elapsed)
}
