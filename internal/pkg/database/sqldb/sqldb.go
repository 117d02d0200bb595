// Package sqldb writes one summary row per run into a MySQL or PostgreSQL
// table.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Config selects the driver ("mysql" or "postgres") and the data source.
type Config struct {
	Driver string `yaml:"driver" validate:"oneof=mysql postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
	Table  string `yaml:"table"`
}

const defaultTable = "run_summary"

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect holds the statements of one driver.
type dialect struct {
	create string
	upsert string
}

func newDialect(driver, table string) (dialect, error) {
	if !tablePattern.MatchString(table) {
		return dialect{}, fmt.Errorf("invalid table name %q", table)
	}
	columns := "pid, created, solver, steps, objective, annuity, variable_cost, total_cost, co2, self_sufficiency"
	switch driver {
	case "mysql":
		return dialect{
			create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	pid VARCHAR(36) PRIMARY KEY,
	created DATETIME NOT NULL,
	solver VARCHAR(32) NOT NULL,
	steps INT NOT NULL,
	objective DOUBLE NOT NULL,
	annuity DOUBLE NOT NULL,
	variable_cost DOUBLE NOT NULL,
	total_cost DOUBLE NOT NULL,
	co2 DOUBLE NOT NULL,
	self_sufficiency DOUBLE NOT NULL
)`, table),
			upsert: fmt.Sprintf(`REPLACE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, columns),
		}, nil
	case "postgres":
		return dialect{
			create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	pid UUID PRIMARY KEY,
	created TIMESTAMPTZ NOT NULL,
	solver TEXT NOT NULL,
	steps INTEGER NOT NULL,
	objective DOUBLE PRECISION NOT NULL,
	annuity DOUBLE PRECISION NOT NULL,
	variable_cost DOUBLE PRECISION NOT NULL,
	total_cost DOUBLE PRECISION NOT NULL,
	co2 DOUBLE PRECISION NOT NULL,
	self_sufficiency DOUBLE PRECISION NOT NULL
)`, table),
			upsert: fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (pid) DO UPDATE SET created = EXCLUDED.created, solver = EXCLUDED.solver, steps = EXCLUDED.steps,
	objective = EXCLUDED.objective, annuity = EXCLUDED.annuity, variable_cost = EXCLUDED.variable_cost,
	total_cost = EXCLUDED.total_cost, co2 = EXCLUDED.co2, self_sufficiency = EXCLUDED.self_sufficiency`, table, columns),
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// execer is the part of *sql.DB the handler uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Handler struct {
	inbox   <-chan msg.Msg
	pid     uuid.UUID
	config  Config
	dialect dialect
	log     *log.Logger
}

// New subscribes the handler to finished runs of system.
func New(cfg Config, system msg.Publisher) (*Handler, error) {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	d, err := newDialect(cfg.Driver, cfg.Table)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	inbox, err := system.Subscribe(pid, msg.Result)
	if err != nil {
		return nil, err
	}
	return &Handler{
		inbox:   inbox,
		pid:     pid,
		config:  cfg,
		dialect: d,
		log:     logger.New("SQL"),
	}, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func (h *Handler) getDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(h.config.Driver, h.config.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Process opens the database, creates the table and writes until the inbox
// closes or ctx is done.
func (h *Handler) Process(ctx context.Context) error {
	db, err := h.getDB(ctx)
	if err != nil {
		return fmt.Errorf("open %s database: %w", h.config.Driver, err)
	}
	defer db.Close()
	return h.run(ctx, db)
}

func (h *Handler) run(ctx context.Context, db execer) error {
	if _, err := db.ExecContext(ctx, h.dialect.create); err != nil {
		return fmt.Errorf("create table %s: %w", h.config.Table, err)
	}
	h.log.Debug("Process Started")
	defer h.log.Debug("Process Shutdown")
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				return nil
			}
			rec, ok := m.Payload().(*archive.Record)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := db.ExecContext(wctx, h.dialect.upsert, row(rec)...)
			cancel()
			if err != nil {
				return fmt.Errorf("write summary of run %v: %w", rec.PID, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func row(rec *archive.Record) []interface{} {
	s := rec.Summary
	return []interface{}{
		rec.PID.String(),
		rec.Created,
		rec.Solver,
		rec.Index.Len,
		rec.Objective,
		s.Annuity,
		s.VariableCost,
		s.TotalCost,
		s.CO2,
		s.SelfSufficiency,
	}
}
