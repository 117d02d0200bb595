// Package config loads the run configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_plan/internal/pkg/database/sqldb"
	"github.com/ohowland/cgc_plan/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/weather"
	"gopkg.in/yaml.v3"
)

// DebugSteps is the horizon of a debug run.
const DebugSteps = 3

// Data locates the input tables.
type Data struct {
	DesignParameters string        `yaml:"design_parameters" validate:"required"`
	Parameters       string        `yaml:"parameters" validate:"required"`
	TimeSeries       string        `yaml:"time_series" validate:"required"`
	KeyColumn        int           `yaml:"key_column" validate:"gte=0"`
	Start            time.Time     `yaml:"start"`
	Step             time.Duration `yaml:"step" validate:"gt=0"`
	Steps            int           `yaml:"steps" validate:"gte=0"`
}

// Run holds the options of the optimisation itself.
type Run struct {
	Debug           bool    `yaml:"debug"`
	LPFile          string  `yaml:"lp_file"`
	BalancedStorage bool    `yaml:"balanced_storage"`
	Tolerance       float64 `yaml:"balance_tolerance" validate:"gte=0"`
}

// Web configures the report server.
type Web struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Config is the whole configuration file.
type Config struct {
	Data    Data                `yaml:"data"`
	Run     Run                 `yaml:"run"`
	Weather *weather.Site       `yaml:"weather" validate:"omitempty"`
	Solver  solver.Config       `yaml:"solver"`
	Archive archive.Config      `yaml:"archive"`
	MongoDB *mongodb.Config     `yaml:"mongodb" validate:"omitempty"`
	SQL     *sqldb.Config       `yaml:"sql" validate:"omitempty"`
	NATS    *natshandler.Config `yaml:"nats" validate:"omitempty"`
	Web     Web                 `yaml:"web"`
	Log     logger.Params       `yaml:"log"`
}

// Default returns the configuration of the reference case.
func Default() Config {
	return Config{
		Data: Data{
			DesignParameters: "data/design_parameters.csv",
			Parameters:       "data/general_parameters.csv",
			TimeSeries:       "data/weather_data.csv",
			KeyColumn:        1,
			Start:            time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
			Step:             time.Hour,
		},
		Run: Run{
			LPFile:    "model.lp",
			Tolerance: 1e-6,
		},
		Solver:  solver.Config{Name: "cbc"},
		Archive: archive.Config{Dir: "results/dumps"},
		Web:     Web{Addr: ":8080"},
		Log:     logger.Params{File: "model.log"},
	}
}

var validate = validator.New()

// Load reads path on top of Default, applies the environment and validates
// the result. A .env file in the working directory is loaded first when
// present.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on %s", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Horizon is the number of steps to optimise, given the length of the
// time series file. Debug runs are cut to DebugSteps.
func (c Config) Horizon(available int) int {
	n := available
	if c.Data.Steps > 0 && c.Data.Steps < n {
		n = c.Data.Steps
	}
	if c.Run.Debug && DebugSteps < n {
		n = DebugSteps
	}
	return n
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings from CGC_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("CGC_SOLVER", &c.Solver.Name)
	str("CGC_SOLVER_EXECUTABLE", &c.Solver.Executable)
	str("CGC_ARCHIVE_DIR", &c.Archive.Dir)
	str("CGC_ARCHIVE_BUCKET", &c.Archive.Bucket)
	str("CGC_WEB_ADDR", &c.Web.Addr)
	if c.MongoDB != nil {
		str("CGC_MONGODB_URI", &c.MongoDB.URI)
	}
	if c.SQL != nil {
		str("CGC_SQL_DSN", &c.SQL.DSN)
	}
	if c.NATS != nil {
		str("CGC_NATS_URL", &c.NATS.Server)
	}
	if err := boolean("CGC_DEBUG", &c.Run.Debug); err != nil {
		return err
	}
	return boolean("CGC_LOG_DEBUG", &c.Log.Debug)
}
