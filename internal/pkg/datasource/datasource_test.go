package datasource

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"gotest.tools/v3/assert"
)

var start = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReadParameterFiles(t *testing.T) {
	s, err := ReadParameterFiles(1, filepath.Join("testdata", "design.csv"), filepath.Join("testdata", "general.csv"))
	assert.NilError(t, err)
	assert.DeepEqual(t, s.Names(), []string{"PV_area_field", "lifetime", "number_of_chps", "wacc"})

	v, err := s.Get("PV_area_field")
	assert.NilError(t, err)
	assert.Equal(t, v, 1.5)
}

func TestReadParametersMalformed(t *testing.T) {
	_, err := ReadParameterFiles(1, filepath.Join("testdata", "broken.csv"))
	assert.Assert(t, errors.Is(err, ErrMalformed))
	assert.ErrorContains(t, err, "lifetime")

	_, err = ReadParameters(strings.NewReader("name,val\na,1\n"), 0)
	assert.Assert(t, errors.Is(err, ErrMalformed))

	_, err = ReadParameters(strings.NewReader("name,value\na,1\na,2\n"), 0)
	assert.Assert(t, errors.Is(err, param.ErrDuplicateParameter))
}

func TestReadSeriesFile(t *testing.T) {
	f, err := ReadSeriesFile(filepath.Join("testdata", "series.csv"), start, time.Hour)
	assert.NilError(t, err)
	assert.Equal(t, f.Index().Len, 3)
	assert.DeepEqual(t, f.Columns(), []string{"Demand_el [MWh]", "Demand_th [MWh]", "Wind_power [kW/unit]"})

	wind, err := f.Column("Wind_power [kW/unit]")
	assert.NilError(t, err)
	assert.DeepEqual(t, wind, []float64{0, 150.5, 300})
	assert.Assert(t, !f.Has("timestamp"))
}

func TestReadSeriesRaggedRows(t *testing.T) {
	_, err := ReadSeries(strings.NewReader("a,b\n1,2\n3\n"), start, time.Hour)
	assert.Assert(t, errors.Is(err, ErrMalformed))
}
