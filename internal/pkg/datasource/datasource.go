// Package datasource reads parameter tables and time series from CSV files.
package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

// ErrMalformed is returned for a table that cannot be interpreted.
var ErrMalformed = errors.New("malformed table")

const valueColumn = "value"

// ReadParameters reads a parameter table. The header must contain a "value"
// column; the parameter name is taken from keyColumn. Rows with an empty
// name are skipped.
func ReadParameters(r io.Reader, keyColumn int) (*param.Set, error) {
	rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header", ErrMalformed)
	}
	header := rows[0]
	value := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), valueColumn) {
			value = i
		}
	}
	if value < 0 {
		return nil, fmt.Errorf("%w: no %q column in header %v", ErrMalformed, valueColumn, header)
	}
	if keyColumn < 0 || keyColumn >= len(header) || keyColumn == value {
		return nil, fmt.Errorf("%w: key column %d", ErrMalformed, keyColumn)
	}

	values := make(map[string]float64, len(rows)-1)
	for line, row := range rows[1:] {
		name := strings.TrimSpace(row[keyColumn])
		if name == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[value]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d, parameter %s: %v", ErrMalformed, line+2, name, err)
		}
		if _, ok := values[name]; ok {
			return nil, fmt.Errorf("%w: %s", param.ErrDuplicateParameter, name)
		}
		values[name] = v
	}
	return param.New(values)
}

// ReadParameterFiles reads and merges several parameter tables.
func ReadParameterFiles(keyColumn int, paths ...string) (*param.Set, error) {
	sets := make([]*param.Set, 0, len(paths))
	for _, p := range paths {
		s, err := readFile(p, func(r io.Reader) (*param.Set, error) {
			return ReadParameters(r, keyColumn)
		})
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return param.Merge(sets...)
}

// ReadSeries reads a table of series, one column per series, into a frame
// starting at start with the given step. Columns that do not parse as
// numbers in every row, such as timestamps, are skipped.
func ReadSeries(r io.Reader, start time.Time, step time.Duration) (*timeseries.Frame, error) {
	rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: time series needs a header and at least one row", ErrMalformed)
	}
	header := rows[0]
	data := rows[1:]

	frame := timeseries.NewFrame(timeseries.Index{Start: start, Step: step, Len: len(data)})
	for col, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		values, ok := numericColumn(data, col)
		if !ok {
			continue
		}
		if err := frame.Add(name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// ReadSeriesFile opens path and reads it with ReadSeries.
func ReadSeriesFile(path string, start time.Time, step time.Duration) (*timeseries.Frame, error) {
	return readFile(path, func(r io.Reader) (*timeseries.Frame, error) {
		return ReadSeries(r, start, step)
	})
}

func numericColumn(rows [][]string, col int) ([]float64, bool) {
	values := make([]float64, len(rows))
	for i, row := range rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rows, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
