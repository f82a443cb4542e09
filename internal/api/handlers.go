package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/pipeline"
	"github.com/alishhde/Couriers-Planning-Problem/internal/report"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
)

// Results
func (s *Server) ResultsIndexHandler(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Store.List(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Store Error", err.Error(), r.URL.Path)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": keys})
}

func (s *Server) ResultByKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	res, err := s.Store.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no results for instance "+key, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Store Error", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Report renders Markdown by default and JSON with ?format=json.
func (s *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := intParam(q.Get("from"), 1)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "from: "+err.Error(), r.URL.Path)
		return
	}
	to, err := intParam(q.Get("to"), 21)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "to: "+err.Error(), r.URL.Path)
		return
	}
	tbl, err := report.Build(r.Context(), s.Store, from, to)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), r.URL.Path)
		return
	}
	if strings.EqualFold(q.Get("format"), "json") {
		writeJSON(w, http.StatusOK, tbl)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(tbl.Markdown()))
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// Runs
type runRequest struct {
	Selection string `json:"selection"`
	Model     string `json:"model"`
	Overwrite bool   `json:"overwrite"`
}

// CreateRunHandler starts a batch in the background. One batch runs at a time.
func (s *Server) CreateRunHandler(w http.ResponseWriter, r *http.Request) {
	who, err := s.Auth.FromRequest(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="cpp"`)
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return
	}
	var in runRequest
	if err := decodeJSON(r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), r.URL.Path)
		return
	}
	if in.Model == "" {
		in.Model = pipeline.All
	}
	job, err := pipeline.ParseJob(in.Selection + "-" + in.Model)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), r.URL.Path)
		return
	}

	// busy is checked first so a rejected request does not spend a token
	s.mu.Lock()
	if s.current != nil {
		busy := s.current.Job
		s.mu.Unlock()
		writeProblem(w, http.StatusConflict, "Conflict", "run "+busy+" is in progress", r.URL.Path)
		return
	}
	if !s.Limiter.Allow() {
		s.mu.Unlock()
		w.Header().Set("Retry-After", "10")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "run rate limit exceeded", r.URL.Path)
		return
	}
	st := &RunStatus{Job: job.Instances + "-" + job.Model, Overwrite: in.Overwrite, By: who.Subject, StartedAt: time.Now().UTC()}
	s.current = st
	snapshot := *st
	s.mu.Unlock()

	s.Log.Info("run accepted", zap.String("job", st.Job), zap.String("by", st.By), zap.Bool("overwrite", st.Overwrite))
	s.wg.Add(1)
	go s.runJob(job, st)
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) runJob(job pipeline.Job, st *RunStatus) {
	defer s.wg.Done()
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	outcomes, err := s.Pipeline.RunJob(ctx, job, !st.Overwrite)
	if err != nil {
		s.Log.Warn("run finished with errors", zap.String("job", st.Job), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	st.FinishedAt = &now
	for _, o := range outcomes {
		if o.Err != nil {
			st.Failed++
		} else {
			st.Solved++
		}
	}
	if err != nil {
		st.Error = err.Error()
	}
	s.last = st
	s.current = nil
}

func (s *Server) RunStatusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := map[string]any{"running": s.current != nil}
	if s.current != nil {
		out["current"] = *s.current
	}
	if s.last != nil {
		out["last"] = *s.last
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check backend connectivity for the SQL store and the Redis broker
	type pinger interface {
		Ping(ctx context.Context) error
	}
	for _, dep := range []any{s.Store, s.Broker} {
		p, ok := dep.(pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
