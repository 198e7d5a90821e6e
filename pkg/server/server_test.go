package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoreason"
	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/metrics"
	"github.com/soundprediction/ontoreason/pkg/ontology"
	"github.com/soundprediction/ontoreason/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
			Mode: gin.TestMode,
		},
	}
}

func newTestServer(t *testing.T) (*Server, *ontoreason.Client) {
	t.Helper()
	s := ontology.NewStatic()
	s.AddClass("Animal", "A living creature")
	s.AddClass("Dog", "A domesticated animal", "Animal")
	s.AddProperty("owns", "Person", "Animal", "")

	cfg := ontoreason.NewDefaultConfig()
	cfg.Embedding.Dimension = 32
	m := metrics.New()
	client, err := ontoreason.NewClient(s, cfg, ontoreason.Options{Metrics: m})
	require.NoError(t, err)

	srv := New(testConfig(), client, m, nil)
	srv.Setup()
	return srv, client
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSetup(t *testing.T) {
	srv := New(testConfig(), nil, nil, nil)
	srv.Setup()
	require.NotNil(t, srv.router)
	require.NotNil(t, srv.server)
	assert.Equal(t, "localhost:8080", srv.server.Addr)

	w := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv.Handler(), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, srv.Handler(), http.MethodPost, "/api/v1/query", map[string]string{"query": "Dog"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodOptions, "/api/v1/query", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueryFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report ontoreason.RebuildReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Nodes)

	w = do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/query", map[string]string{"query": "Dog"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result types.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "Dog", result.Results[0].ID)

	w = do(t, h, http.MethodPost, "/api/v1/query", map[string]string{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "ontoreason_queries_total"))
}

func TestFactsFlow(t *testing.T) {
	srv, client := newTestServer(t)
	h := srv.Handler()

	fact := map[string]string{"subject": "rex", "predicate": "rdf:type", "object": "Dog"}
	w := do(t, h, http.MethodPost, "/api/v1/facts", fact)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/facts", fact)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"inserted":false}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/facts", map[string]string{"subject": "rex"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/api/v1/entities/rex/status", map[string]string{"status": "adopted"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/facts/query", map[string]any{
		"patterns": []map[string]string{
			{"subject": "?x", "predicate": "rdf:type", "object": "Dog"},
			{"subject": "?x", "predicate": "status", "object": "?s"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bindings":[{"x":"rex","s":"adopted"}],"count":1}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/facts/query", map[string]any{"patterns": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/graph/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats ontoreason.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, client.Stats().Facts, stats.Facts)
}

func TestReasonAndBeliefs(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/reason", map[string]any{
		"plan":          "Learning Plan",
		"task":          "Review",
		"action":        "Ship",
		"action_status": "completed",
		"parameters":    map[string]string{"solution": "ship weekly"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Selected []string `json:"selected"`
		Ran      []string `json:"ran"`
		Stale    bool     `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Ran, "adaptability_learning")
	assert.True(t, resp.Stale)

	w = do(t, h, http.MethodPost, "/api/v1/reason", map[string]any{"plan": "P", "action": "a", "action_status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/reason", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/agent/beliefs", map[string]any{
		"user":    "alice",
		"payload": map[string]any{"user_goals": []string{"Launch"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"user":"alice","plans":["Plan for Launch"]}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/agent/beliefs", map[string]any{"payload": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStopWithoutStart(t *testing.T) {
	srv := New(testConfig(), nil, nil, nil)
	srv.Setup()
	assert.NoError(t, srv.Stop(context.Background()))
}
