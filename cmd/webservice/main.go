package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/config"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/metrics"
	"github.com/ohowland/cgc_plan/internal/pkg/root"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/solver/simplex"
	"github.com/ohowland/cgc_plan/internal/pkg/webservice"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load configuration", "err", err)
	}
	closeLog, err := logger.Init(logger.Params{Debug: cfg.Log.Debug})
	if err != nil {
		log.Fatal("init logger", "err", err)
	}
	defer closeLog()
	l := logger.New("Main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		l.Fatal("open archive", "err", err)
	}

	// restored runs are never solved
	d, err := lpdispatch.New(simplex.New(solver.Config{Name: simplex.Name}), nil)
	if err != nil {
		l.Fatal("build dispatcher", "err", err)
	}
	reg := metrics.NewRegistry()
	sys, err := root.NewSystem(root.Config{Tolerance: cfg.Run.Tolerance}, d, reg)
	if err != nil {
		l.Fatal("build system", "err", err)
	}
	defer sys.Close()

	srv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           webservice.New(store, sys, reg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			l.Error("shutdown", "err", err)
		}
	}()

	l.Info("Starting Server", "addr", cfg.Web.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal("serve", "err", err)
	}
	l.Info("Server stopped")
}
