package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/config"
	"github.com/ohowland/cgc_plan/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_plan/internal/pkg/database/sqldb"
	"github.com/ohowland/cgc_plan/internal/pkg/datasource"
	"github.com/ohowland/cgc_plan/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/metrics"
	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"github.com/ohowland/cgc_plan/internal/pkg/powersystem"
	"github.com/ohowland/cgc_plan/internal/pkg/root"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/solver/cbc"
	"github.com/ohowland/cgc_plan/internal/pkg/solver/simplex"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "configuration file")
	restore := flag.String("restore", "", "re-evaluate the archived run with this id instead of solving")
	flowsPath := flag.String("flows", "", "write the flow sequences of the run as JSON to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load configuration", "err", err)
	}
	closeLog, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatal("open log file", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, *restore, *flowsPath)
	stop()
	if err != nil {
		logger.New("Main").Error("aborted", "kind", root.Outcome(err), "err", err)
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

func run(ctx context.Context, cfg config.Config, restore, flowsPath string) error {
	l := logger.New("Main")
	l.Info("Starting CGC_Plan")

	store, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	backend, err := buildSolver(cfg.Solver)
	if err != nil {
		return err
	}

	var debug io.Writer
	if cfg.Run.Debug {
		f, err := os.Create(cfg.Run.LPFile)
		if err != nil {
			return err
		}
		defer f.Close()
		debug = f
		l.Info("debug run", "steps", config.DebugSteps, "lp_file", cfg.Run.LPFile)
	}

	d, err := lpdispatch.New(backend, debug)
	if err != nil {
		return err
	}
	sys, err := root.NewSystem(root.Config{
		Options:   powersystem.Options{BalancedStorage: cfg.Run.BalancedStorage},
		Tolerance: cfg.Run.Tolerance,
	}, d, metrics.NewRegistry())
	if err != nil {
		return err
	}

	if restore != "" {
		return restoreRun(ctx, sys, store, restore, flowsPath)
	}

	handlers, err := buildHandlers(cfg, sys, store)
	if err != nil {
		return err
	}
	wait := root.Serve(ctx, handlers...)

	params, frame, err := loadInputs(cfg)
	if err != nil {
		sys.Close()
		return errors.Join(err, wait())
	}
	l.Info("inputs loaded", "parameters", params.Len(), "columns", frame.Columns(), "steps", frame.Index().Len)

	result, err := sys.Run(ctx, params, frame)
	sys.Close()
	if werr := wait(); werr != nil {
		l.Error("handler stopped", "err", werr)
		if err == nil {
			err = werr
		}
	}
	if err != nil {
		return err
	}

	l.Info("Results saved", "pid", result.Record.PID)
	fmt.Print(result.Summary.String())
	return writeFlows(flowsPath, result)
}

func buildSolver(cfg solver.Config) (solver.Solver, error) {
	switch cfg.Name {
	case simplex.Name:
		return simplex.New(cfg), nil
	case cbc.Name:
		return cbc.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown solver %q", cfg.Name)
	}
}

func buildHandlers(cfg config.Config, sys *root.System, store archive.Store) ([]root.Handler, error) {
	handlers := make([]root.Handler, 0, 4)

	a, err := archive.NewHandler(store, sys)
	if err != nil {
		return nil, err
	}
	handlers = append(handlers, a)

	if cfg.MongoDB != nil {
		h, err := mongodb.New(*cfg.MongoDB, sys)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	if cfg.SQL != nil {
		h, err := sqldb.New(*cfg.SQL, sys)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	if cfg.NATS != nil {
		h, err := natshandler.New(*cfg.NATS, sys)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

func loadInputs(cfg config.Config) (*param.Set, *timeseries.Frame, error) {
	params, err := datasource.ReadParameterFiles(cfg.Data.KeyColumn, cfg.Data.DesignParameters, cfg.Data.Parameters)
	if err != nil {
		return nil, nil, err
	}
	frame, err := datasource.ReadSeriesFile(cfg.Data.TimeSeries, cfg.Data.Start, cfg.Data.Step)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Weather != nil {
		if err := cfg.Weather.Fill(frame); err != nil {
			return nil, nil, err
		}
	}
	frame, err = frame.Head(cfg.Horizon(frame.Index().Len))
	if err != nil {
		return nil, nil, err
	}
	return params, frame, nil
}

func restoreRun(ctx context.Context, sys *root.System, store archive.Store, id, flowsPath string) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	rec, err := store.Get(ctx, pid)
	if err != nil {
		return err
	}
	result, err := sys.Restore(rec)
	sys.Close()
	if err != nil {
		return err
	}
	fmt.Print(result.Summary.String())
	return writeFlows(flowsPath, result)
}

func writeFlows(path string, result *root.Run) error {
	if path == "" {
		return nil
	}
	records, err := result.Results.Records(0, 0)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
