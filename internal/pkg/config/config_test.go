package config

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func env(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	assert.NilError(t, err)

	assert.Equal(t, cfg.Data.Step, time.Hour)
	assert.Equal(t, cfg.Data.Steps, 8760)
	assert.Equal(t, cfg.Data.KeyColumn, 1)
	assert.Assert(t, cfg.Data.Start.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Assert(t, cfg.Run.Debug)
	assert.Equal(t, cfg.Run.LPFile, "lp_files/model.lp")
	assert.Equal(t, cfg.Run.Tolerance, 1e-6)

	assert.Assert(t, cfg.Weather != nil)
	assert.Equal(t, cfg.Weather.Latitude, 53.5)
	assert.Equal(t, cfg.Solver.Name, "cbc")
	assert.Equal(t, cfg.Solver.TimeLimit, 600.0)
	assert.Equal(t, cfg.Archive.Bucket, "cgc-runs")
	assert.Equal(t, cfg.MongoDB.Database, "cgc")
	assert.Equal(t, cfg.SQL.Driver, "postgres")
	assert.Equal(t, cfg.NATS.Server, "nats://localhost:4222")
	assert.Equal(t, cfg.Web.Addr, ":8080")
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	assert.ErrorContains(t, err, "invalid configuration")
	assert.Check(t, is.ErrorContains(err, "Config.Data.Parameters: failed on required"))
	assert.Check(t, is.ErrorContains(err, "Config.Solver.Name: failed on oneof"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.ErrorContains(t, err, "missing.yaml")
}

func TestDefaultIsValid(t *testing.T) {
	assert.NilError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	assert.NilError(t, cfg.ApplyEnv(env(map[string]string{
		"CGC_SOLVER":      "simplex",
		"CGC_DEBUG":       "true",
		"CGC_MONGODB_URI": "mongodb://db:27017",
	})))
	assert.Equal(t, cfg.Solver.Name, "simplex")
	assert.Assert(t, cfg.Run.Debug)
	assert.Assert(t, cfg.MongoDB == nil)

	err := cfg.ApplyEnv(env(map[string]string{"CGC_DEBUG": "sometimes"}))
	assert.ErrorContains(t, err, "CGC_DEBUG")
}

func TestHorizon(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Horizon(8760), 8760)

	cfg.Data.Steps = 48
	assert.Equal(t, cfg.Horizon(8760), 48)
	assert.Equal(t, cfg.Horizon(24), 24)

	cfg.Run.Debug = true
	assert.Equal(t, cfg.Horizon(8760), DebugSteps)
}
