package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devshell/internal/session"
	"github.com/GriffinCanCode/devshell/internal/shared/id"
)

// Handlers serves the session and health endpoints.
type Handlers struct {
	sessions *session.Registry
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHandlers creates the HTTP handlers. gatherer backs /metrics.
func NewHandlers(sessions *session.Registry, metrics *monitoring.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions: sessions,
		metrics:  metrics,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Root describes the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "devshell",
		"terminal":  "/terminal",
		"endpoints": []string{"/health", "/metrics", "/sessions"},
	})
}

// Health reports liveness with a metrics snapshot
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Len(),
		"metrics":  h.metrics.Snapshot(),
	})
}

// Metrics exposes Prometheus metrics
func (h *Handlers) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// ListSessions lists live terminal sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	if sessions == nil {
		sessions = []session.Info{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	sid, ok := h.sessionID(c)
	if !ok {
		return
	}

	s, found := h.sessions.Get(sid)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// CloseSession force-closes a session and tears down its sandbox
func (h *Handlers) CloseSession(c *gin.Context) {
	sid, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.Close(sid); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("failed to close session", zap.String("session_id", string(sid)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      string(sid),
	})
}

func (h *Handlers) sessionID(c *gin.Context) (id.SessionID, bool) {
	raw := c.Param("id")
	if _, err := id.ParseSessionID(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id.SessionID(raw), true
}
