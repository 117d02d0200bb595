package webservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/datasource"
	"github.com/ohowland/cgc_plan/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_plan/internal/pkg/metrics"
	"github.com/ohowland/cgc_plan/internal/pkg/results"
	"github.com/ohowland/cgc_plan/internal/pkg/root"
	"github.com/ohowland/cgc_plan/internal/pkg/solver"
	"github.com/ohowland/cgc_plan/internal/pkg/solver/simplex"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type countingRestorer struct {
	sys   *root.System
	mux   sync.Mutex
	calls int
}

func (c *countingRestorer) Restore(rec *archive.Record) (*root.Run, error) {
	c.mux.Lock()
	c.calls++
	c.mux.Unlock()
	return c.sys.Restore(rec)
}

type fixture struct {
	server   *Server
	restorer *countingRestorer
	reg      *metrics.Registry
	run      *root.Run
}

func newFixture(t *testing.T) fixture {
	params, err := datasource.ReadParameterFiles(1, "../root/testdata/design_parameters.csv", "../root/testdata/general_parameters.csv")
	assert.NilError(t, err)
	frame, err := datasource.ReadSeriesFile("../root/testdata/weather_data.csv", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	assert.NilError(t, err)

	d, err := lpdispatch.New(simplex.New(solver.Config{Name: simplex.Name}), nil)
	assert.NilError(t, err)
	sys, err := root.NewSystem(root.Config{}, d, nil)
	assert.NilError(t, err)
	run, err := sys.Run(context.Background(), params, frame)
	assert.NilError(t, err)

	store, err := archive.NewFileStore(t.TempDir())
	assert.NilError(t, err)
	assert.NilError(t, store.Put(context.Background(), run.Record))

	reg := metrics.NewRegistry()
	restorer := &countingRestorer{sys: sys}
	return fixture{server: New(store, restorer, reg), restorer: restorer, reg: reg, run: run}
}

func (f fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://example.com"+path, nil)
	f.server.Router().ServeHTTP(w, r)
	return w
}

func TestBase(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, w.Header().Get("Content-Type"), "application/json; charset=UTF-8")
}

func TestRunsList(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/runs")
	assert.Equal(t, w.Code, http.StatusOK)

	var pids []uuid.UUID
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &pids))
	assert.DeepEqual(t, pids, []uuid.UUID{f.run.Record.PID})
}

func TestRunSummary(t *testing.T) {
	f := newFixture(t)
	path := "/runs/" + f.run.Record.PID.String()

	w := f.get(t, path)
	assert.Equal(t, w.Code, http.StatusOK)
	var got RunSummary
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, got.PID, f.run.Record.PID)
	assert.Equal(t, got.Solver, simplex.Name)
	assert.Equal(t, got.Index.Len, 3)
	assert.Check(t, is.Len(got.Investments, len(f.run.Investments)))
	assert.Equal(t, got.Summary.TotalCost, f.run.Summary.TotalCost)

	w = f.get(t, path)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, f.restorer.calls, 1)

	assert.Equal(t, testutil.ToFloat64(f.reg.HTTPRequestsTotal.WithLabelValues("/runs/{pid}", "200")), 2.0)
}

func TestRunFlowsWindow(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/runs/"+f.run.Record.PID.String()+"/flows?start=1&end=3")
	assert.Equal(t, w.Code, http.StatusOK)

	var got []results.Series
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, len(got), len(f.run.Results.Keys()))
	for _, s := range got {
		assert.Check(t, is.Len(s.Values, 2))
	}
	demand, ok := f.run.Results.Flow("electricity", "demand_el")
	assert.Assert(t, ok)
	assert.DeepEqual(t, got[0].Key, results.Key{Source: "electricity", Target: "demand_el"})
	assert.DeepEqual(t, got[0].Values, demand[1:3])
}

func TestRunLevels(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/runs/"+f.run.Record.PID.String()+"/levels")
	assert.Equal(t, w.Code, http.StatusOK)

	var got []results.StorageLevel
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Assert(t, is.Len(got, 1))
	assert.Equal(t, got[0].Storage, "storage_el")
	assert.Check(t, is.Len(got[0].Values, 3))
}

func TestRequestErrors(t *testing.T) {
	f := newFixture(t)
	unknown, err := uuid.NewUUID()
	assert.NilError(t, err)

	for _, tc := range []struct {
		path string
		code int
	}{
		{"/runs/" + unknown.String(), http.StatusNotFound},
		{"/runs/not-a-uuid", http.StatusBadRequest},
		{"/runs/" + f.run.Record.PID.String() + "/flows?start=x", http.StatusBadRequest},
		{"/runs/" + f.run.Record.PID.String() + "/flows?start=3", http.StatusBadRequest},
		{"/runs/" + f.run.Record.PID.String() + "/levels?start=2&end=1", http.StatusBadRequest},
	} {
		w := f.get(t, tc.path)
		assert.Equal(t, w.Code, tc.code, tc.path)
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/runs")
	w := f.get(t, "/metrics")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Check(t, is.Contains(w.Body.String(), "cgc_http_requests_total"))
}
