package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alishhde/Couriers-Planning-Problem/internal/dzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/pipeline"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
)

const instanceText = `num_courier = 2;
num_item = 3;
courier_capacity = [15, 10];
item_size = [3, 2, 6];
distance_mat = [| 0, 3, 3, 6
| 3, 0, 4, 5
| 3, 4, 0, 2
| 6, 5, 2, 0
|];
`

// gatedSolver blocks each solve until release is closed.
type gatedSolver struct {
	release chan struct{}
	once    sync.Once
}

func (g *gatedSolver) open() { g.once.Do(func() { close(g.release) }) }

func (g *gatedSolver) Solve(ctx context.Context, b mzn.Binding, budget time.Duration) (mzn.Outcome, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return mzn.Outcome{}, ctx.Err()
	}
	return mzn.Outcome{
		Status:    model.StatusOptimal,
		Solution:  &model.Assignment{Sequence: [][]int{{3, 2, 4, 1}, {1, 4, 3, 2}}, Objective: model.NewObjective(11)},
		SolveTime: time.Second,
		HasStats:  true,
	}, nil
}

func newTestServer(t *testing.T, opts Options) (*Server, *gatedSolver) {
	t.Helper()
	root := t.TempDir()
	dznDir := filepath.Join(root, "dzn")
	modelsDir := filepath.Join(root, "models")
	require.NoError(t, os.MkdirAll(dznDir, 0o755))
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dznDir, dzn.InstanceFileName(1)), []byte(instanceText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "01. Successor - GECODE.mzn"), []byte("solve satisfy;\n"), 0o644))

	st := store.NewMemory()
	broker := events.NewBroker()
	solver := &gatedSolver{release: make(chan struct{})}
	p := pipeline.New(pipeline.Config{DznDir: dznDir, ModelsDir: modelsDir, Budget: 300 * time.Second}, solver, st, pipeline.WithEvents(broker))
	s := NewServer(context.Background(), p, st, broker, nil, opts)
	t.Cleanup(func() {
		solver.open()
		s.Wait()
	})
	return s, solver
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Routes()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
}

func TestResultsEndpoints(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.Store.Save(ctx, "5", model.ResultRecord{
		Label: "01. Successor - GECODE", Time: 4, Optimal: true, Objective: model.NewObjective(206), Routes: []model.Route{{1, 3}, {2}},
	}, true))
	h := s.Routes()

	rr := do(t, h, http.MethodGet, "/v1/results", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"instances":["5"]}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/results/5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"01. Successor - GECODE":{"time":4,"optimal":true,"obj":206,"sol":[[1,3],[2]]}}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/results/6", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = do(t, h, http.MethodGet, "/v1/report?from=5&to=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "| Successor | `**`206 (4s) |")

	rr = do(t, h, http.MethodGet, "/v1/report?from=5&to=5&format=json", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"model":"Successor"`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/report?from=x", "").Code)
}

func TestCreateRunValidation(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Routes()
	for _, body := range []string{`{`, `{"selection":"0:2","model":"01"}`, `{"selection":"1","model":"1"}`, `{"selection":"1","extra":true}`} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/runs", body).Code, body)
	}
}

func TestCreateRunConflictAndCompletion(t *testing.T) {
	s, solver := newTestServer(t, Options{})
	h := s.Routes()

	rr := do(t, h, http.MethodPost, "/v1/runs", `{"selection":"1","model":"01"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	var st RunStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "1-01", st.Job)

	rr = do(t, h, http.MethodPost, "/v1/runs", `{"selection":"1","model":"01"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	solver.open()
	s.Wait()

	rr = do(t, h, http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var status struct {
		Running bool      `json:"running"`
		Last    RunStatus `json:"last"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Last.Solved)
	assert.NotNil(t, status.Last.FinishedAt)

	res, err := s.Store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res["01. Successor - GECODE"].Optimal)
}

func TestCreateRunRequiresToken(t *testing.T) {
	s, solver := newTestServer(t, Options{AuthSecret: "s3cret"})
	solver.open()
	h := s.Routes()

	rr := do(t, h, http.MethodPost, "/v1/runs", `{"selection":"1","model":"01"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	tok, err := s.Auth.Issue("ci", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"selection":"1","model":"01"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	var st RunStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "ci", st.By)
	s.Wait()
}

func TestCreateRunRateLimited(t *testing.T) {
	s, solver := newTestServer(t, Options{RunsPerMinute: 0.001, RunsBurst: 1})
	solver.open()
	h := s.Routes()
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/runs", `{"selection":"1","model":"01"}`).Code)
	s.Wait()
	rr := do(t, h, http.MethodPost, "/v1/runs", `{"selection":"1","model":"01"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestConflictDoesNotSpendRunToken(t *testing.T) {
	s, solver := newTestServer(t, Options{RunsPerMinute: 0.001, RunsBurst: 2})
	h := s.Routes()
	body := `{"selection":"1","model":"01"}`
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/runs", body).Code)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/v1/runs", body).Code)
	}
	solver.open()
	s.Wait()

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/runs", body).Code)
	s.Wait()
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/v1/runs", body).Code)
}

func TestMetricsAndDebug(t *testing.T) {
	s, _ := newTestServer(t, Options{Settings: map[string]any{"store": "memory"}})
	h := s.Routes()
	_ = do(t, h, http.MethodGet, "/healthz", "")

	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{method="GET",path="GET /healthz",status="200"}`)

	rr = do(t, h, http.MethodGet, "/debug", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"store":"memory"`)
	assert.Contains(t, rr.Body.String(), `"budgetSec":300`)
}

func TestEventsWebSocket(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws?instance=5"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// the handler subscribes after the upgrade; publish until the event arrives
	want := events.New(events.TypeResultPersisted, "run-1", "5", "01. Successor - GECODE", map[string]any{"optimal": true})
	got := make(chan events.Event, 1)
	go func() {
		var e events.Event
		if err := conn.ReadJSON(&e); err == nil {
			got <- e
		}
	}()
	deadline := time.After(2 * time.Second)
	for {
		s.Broker.Publish("5", want)
		select {
		case e := <-got:
			assert.Equal(t, want.ID, e.ID)
			assert.Equal(t, events.TypeResultPersisted, e.Type)
			return
		case <-deadline:
			t.Fatal("timeout waiting for websocket event")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
