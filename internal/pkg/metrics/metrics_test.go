package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Assert(t, r.Prometheus() != nil)
	assert.Assert(t, r.SolvesTotal != nil)
	assert.Assert(t, r.KPI != nil)

	// registries are independent
	other := NewRegistry()
	r.RecordRun("ok")
	assert.Equal(t, testutil.ToFloat64(other.RunsTotal.WithLabelValues("ok")), 0.0)
}

func TestRecordSolve(t *testing.T) {
	r := NewRegistry()
	r.RecordModel(120, 45)
	r.RecordSolve("simplex", "optimal", 20*time.Millisecond)
	r.RecordSolve("simplex", "optimal", 30*time.Millisecond)
	r.RecordSolve("cbc", "infeasible", time.Second)

	assert.Equal(t, testutil.ToFloat64(r.LPVariables), 120.0)
	assert.Equal(t, testutil.ToFloat64(r.LPConstraints), 45.0)
	assert.Equal(t, testutil.ToFloat64(r.SolvesTotal.WithLabelValues("simplex", "optimal")), 2.0)
	assert.Equal(t, testutil.ToFloat64(r.SolvesTotal.WithLabelValues("cbc", "infeasible")), 1.0)
	assert.Equal(t, testutil.CollectAndCount(r.SolveDuration), 2)
}

func TestRecordKPI(t *testing.T) {
	r := NewRegistry()
	r.RecordKPI(1234.5, 6.7, 42)
	assert.Equal(t, testutil.ToFloat64(r.KPI.WithLabelValues("co2_t_per_year")), 1234.5)
	assert.Equal(t, testutil.ToFloat64(r.KPI.WithLabelValues("self_sufficiency_percent")), 42.0)
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("ok")
	r.RecordHTTPRequest("/runs/{pid}", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, rec.Code, 200)

	body, err := io.ReadAll(rec.Body)
	assert.NilError(t, err)
	assert.Check(t, is.Contains(string(body), `cgc_runs_total{outcome="ok"} 1`))
	assert.Check(t, strings.Contains(string(body), "cgc_http_request_duration_seconds"))
}
