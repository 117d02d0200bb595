// Package webservice serves archived runs over HTTP: their indicators, flow
// and storage level sequences, and the process metrics.
package webservice

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/metrics"
	"github.com/ohowland/cgc_plan/internal/pkg/results"
	"github.com/ohowland/cgc_plan/internal/pkg/root"
	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
	"golang.org/x/sync/singleflight"
)

const contentType = "application/json; charset=UTF-8"

// maxCached bounds the number of restored runs held in memory.
const maxCached = 16

// Restorer re-derives the results of an archived run.
type Restorer interface {
	Restore(rec *archive.Record) (*root.Run, error)
}

// RunSummary is the description of one run.
type RunSummary struct {
	PID         uuid.UUID        `json:"pid"`
	Created     time.Time        `json:"created"`
	Solver      string           `json:"solver"`
	Objective   float64          `json:"objective"`
	Index       timeseries.Index `json:"index"`
	Summary     kpi.Summary      `json:"summary"`
	Investments []kpi.Investment `json:"investments"`
}

// Server answers report requests from a run archive. Restored runs are
// cached; concurrent requests for the same run restore it once.
type Server struct {
	store    archive.Store
	restorer Restorer
	metrics  *metrics.Registry
	group    singleflight.Group
	mux      *sync.Mutex
	cache    map[uuid.UUID]*root.Run
	order    []uuid.UUID
	log      *log.Logger
}

// New returns a Server over store. reg may be nil.
func New(store archive.Store, restorer Restorer, reg *metrics.Registry) *Server {
	return &Server{
		store:    store,
		restorer: restorer,
		metrics:  reg,
		mux:      &sync.Mutex{},
		cache:    make(map[uuid.UUID]*root.Run),
		log:      logger.New("Web"),
	}
}

// Router registers every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.BaseHandler).Methods("GET")
	r.HandleFunc("/runs", s.RunsHandler).Methods("GET")
	r.HandleFunc("/runs/{pid}", s.RunHandler).Methods("GET")
	r.HandleFunc("/runs/{pid}/flows", s.FlowsHandler).Methods("GET")
	r.HandleFunc("/runs/{pid}/levels", s.LevelsHandler).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	r.Use(s.instrument)
	return r
}

func (s *Server) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
}

// RunsHandler lists the archived run identifiers.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	pids, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if pids == nil {
		pids = []uuid.UUID{}
	}
	s.respond(w, pids)
}

// RunHandler describes one run.
func (s *Server) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.run(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	rec := run.Record
	s.respond(w, RunSummary{
		PID:         rec.PID,
		Created:     rec.Created,
		Solver:      rec.Solver,
		Objective:   rec.Objective,
		Index:       rec.Index,
		Summary:     run.Summary,
		Investments: run.Investments,
	})
}

// FlowsHandler returns the flow sequences of a run within ?start=&end=.
func (s *Server) FlowsHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.run(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	start, end, err := window(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	recs, err := run.Results.Records(start, end)
	if err != nil {
		s.fail(w, badRequest{err})
		return
	}
	s.respond(w, recs)
}

// LevelsHandler returns the storage levels of a run within ?start=&end=.
func (s *Server) LevelsHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.run(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	start, end, err := window(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	levels, err := run.Results.Levels(start, end)
	if err != nil {
		s.fail(w, badRequest{err})
		return
	}
	if levels == nil {
		levels = []results.StorageLevel{}
	}
	s.respond(w, levels)
}

func (s *Server) run(r *http.Request) (*root.Run, error) {
	pid, err := uuid.Parse(mux.Vars(r)["pid"])
	if err != nil {
		return nil, badRequest{err}
	}

	s.mux.Lock()
	run, ok := s.cache[pid]
	s.mux.Unlock()
	if ok {
		return run, nil
	}

	v, err, _ := s.group.Do(pid.String(), func() (interface{}, error) {
		rec, err := s.store.Get(r.Context(), pid)
		if err != nil {
			return nil, err
		}
		run, err := s.restorer.Restore(rec)
		if err != nil {
			return nil, err
		}
		s.remember(pid, run)
		return run, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*root.Run), nil
}

func (s *Server) remember(pid uuid.UUID, run *root.Run) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.cache[pid]; ok {
		return
	}
	if len(s.order) == maxCached {
		delete(s.cache, s.order[0])
		s.order = s.order[1:]
	}
	s.cache[pid] = run
	s.order = append(s.order, pid)
}

type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }

func (e badRequest) Unwrap() error { return e.err }

func window(r *http.Request) (start, end int, err error) {
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		if start, err = strconv.Atoi(v); err != nil {
			return 0, 0, badRequest{err}
		}
	}
	if v := q.Get("end"); v != "" {
		if end, err = strconv.Atoi(v); err != nil {
			return 0, 0, badRequest{err}
		}
	}
	return start, end, nil
}

func (s *Server) respond(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log.Warn("write response", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, archive.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.log.Error("request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), elapsed)
		}
		s.log.Debug(r.Method, "route", route, "status", rec.status, "elapsed", elapsed)
	})
}
