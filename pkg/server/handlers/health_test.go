package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthCheck(t *testing.T) {
	code, body := serve(t, NewHealthHandler(nil).HealthCheck)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ontoreason", body["service"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "version")
}

func TestLivenessCheck(t *testing.T) {
	code, body := serve(t, NewHealthHandler(nil).LivenessCheck)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessWithoutClient(t *testing.T) {
	code, body := serve(t, NewHealthHandler(nil).ReadinessCheck)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body["status"])
}

func TestDetailedHealthWithoutClient(t *testing.T) {
	code, body := serve(t, NewHealthHandler(nil).DetailedHealthCheck)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	checks := body["checks"].(map[string]any)
	assert.Contains(t, checks, "system")
	assert.Equal(t, "unhealthy", checks["graph"].(map[string]any)["status"])
}
