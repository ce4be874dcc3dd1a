package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devshell/internal/app"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devshell/internal/session"
	"github.com/GriffinCanCode/devshell/internal/shared/id"
)

type fixture struct {
	router   *gin.Engine
	sessions *session.Registry
	factory  *app.Factory
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	factory, err := app.NewFactory(config.Default(), nil, metrics)
	require.NoError(t, err)
	sessions := session.NewRegistry(id.NewGenerator(), nil, metrics)

	h := NewHandlers(sessions, metrics, reg, nil)
	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", h.Metrics())
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)
	router.DELETE("/sessions/:id", h.CloseSession)

	return &fixture{router: router, sessions: sessions, factory: factory}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := setup(t)
	f.sessions.Open(f.factory.NewShell(), "10.0.0.1", nil)

	w := f.do("GET", "/health")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["sessions"])
	assert.Contains(t, body["metrics"], "active_sessions")
}

func TestRoot(t *testing.T) {
	f := setup(t)
	w := f.do("GET", "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/terminal", decode(t, w)["terminal"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)
	f.sessions.Open(f.factory.NewShell(), "", nil)

	w := f.do("GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "devshell_sessions_active 1"), w.Body.String())
}

func TestListSessions(t *testing.T) {
	f := setup(t)

	body := decode(t, f.do("GET", "/sessions"))
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []any{}, body["sessions"])

	a := f.sessions.Open(f.factory.NewShell(), "10.0.0.1", nil)
	b := f.sessions.Open(f.factory.NewShell(), "10.0.0.2", nil)

	body = decode(t, f.do("GET", "/sessions"))
	assert.EqualValues(t, 2, body["count"])
	list := body["sessions"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, string(a.ID), list[0].(map[string]any)["id"])
	assert.Equal(t, string(b.ID), list[1].(map[string]any)["id"])
	assert.Equal(t, "mock", list[0].(map[string]any)["mode"])
}

func TestGetSession(t *testing.T) {
	f := setup(t)
	s := f.sessions.Open(f.factory.NewShell(), "10.0.0.1", nil)

	w := f.do("GET", "/sessions/"+string(s.ID))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, string(s.ID), body["id"])
	assert.Equal(t, "/home/guest", body["cwd"])

	missing := id.NewGenerator().NewSessionID()
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/sessions/"+string(missing)).Code)
}

func TestCloseSession(t *testing.T) {
	f := setup(t)
	closed := false
	s := f.sessions.Open(f.factory.NewShell(), "", func() { closed = true })

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"malformed id", "/sessions/not-a-session", http.StatusBadRequest},
		{"close live session", "/sessions/" + string(s.ID), http.StatusOK},
		{"already closed", "/sessions/" + string(s.ID), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, f.do("DELETE", tt.path).Code)
		})
	}

	assert.True(t, closed)
	assert.Equal(t, 0, f.sessions.Len())
}
