// Package archive dumps solved runs and restores them. A record holds
// everything needed to rebuild the graph and re-derive every result without
// solving again.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/param"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

// ErrNotFound is returned for an unknown run.
var ErrNotFound = errors.New("run not found")

const formatVersion = 1

// Record is one archived run.
type Record struct {
	Version    int                  `json:"version"`
	PID        uuid.UUID            `json:"pid"`
	Created    time.Time            `json:"created"`
	Parameters map[string]float64   `json:"parameters"`
	Index      timeseries.Index     `json:"index"`
	Columns    []string             `json:"columns"`
	Series     map[string][]float64 `json:"series"`
	Balanced   bool                 `json:"balanced"`
	Solver     string               `json:"solver"`
	Objective  float64              `json:"objective"`
	Solution   map[string]float64   `json:"solution"`
	Summary    kpi.Summary          `json:"summary"`
}

// NewRecord captures the inputs of a run. The solution and summary are set
// once the run has finished.
func NewRecord(pid uuid.UUID, params *param.Set, frame *timeseries.Frame) (*Record, error) {
	series := make(map[string][]float64)
	for _, name := range frame.Columns() {
		c, err := frame.Column(name)
		if err != nil {
			return nil, err
		}
		series[name] = c
	}
	return &Record{
		Version:    formatVersion,
		PID:        pid,
		Created:    time.Now().UTC(),
		Parameters: params.Values(),
		Index:      frame.Index(),
		Columns:    frame.Columns(),
		Series:     series,
	}, nil
}

// Params rebuilds the parameter set.
func (r *Record) Params() (*param.Set, error) {
	return param.New(r.Parameters)
}

// Frame rebuilds the time series.
func (r *Record) Frame() (*timeseries.Frame, error) {
	frame := timeseries.NewFrame(r.Index)
	for _, name := range r.Columns {
		values, ok := r.Series[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", timeseries.ErrMissingColumn, name)
		}
		if err := frame.Add(name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// Encode writes rec as snappy compressed JSON.
func Encode(w io.Writer, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = w.Write(snappy.Encode(nil, data))
	return err
}

// Decode reads a record written by Encode.
func Decode(r io.Reader) (*Record, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress run record: %w", err)
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	if rec.Version != formatVersion {
		return nil, fmt.Errorf("run record version %d is not supported", rec.Version)
	}
	return rec, nil
}

// Store persists records by run PID.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, pid uuid.UUID) (*Record, error)
	List(ctx context.Context) ([]uuid.UUID, error)
}

// Config selects the store. A bucket selects S3, otherwise records are
// written below Dir.
type Config struct {
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Bucket != "" {
		return NewS3Store(ctx, cfg)
	}
	if cfg.Dir == "" {
		return nil, errors.New("archive needs a directory or a bucket")
	}
	return NewFileStore(cfg.Dir)
}

const extension = ".cgc"

func objectName(pid uuid.UUID) string {
	return pid.String() + extension
}
