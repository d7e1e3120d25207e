package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/infrastructure/persistence"
	"github.com/tpa/backend/internal/interfaces/http/dto"
)

// Pinger is a dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// PoolStatser reports connection pool statistics
type PoolStatser interface {
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]Pinger
	pool      PoolStatser
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]Pinger),
	}
}

// WithCheck adds a dependency to the health report
func (h *SystemHandler) WithCheck(name string, p Pinger) *SystemHandler {
	h.checks[name] = p
	return h
}

// WithPool reports database pool statistics in the health report
func (h *SystemHandler) WithPool(p PoolStatser) *SystemHandler {
	h.pool = p
	return h
}

// HealthResponse is the health report
// @name HandlerHealthResponse
type HealthResponse struct {
	Status   string                       `json:"status" example:"ok"`
	Name     string                       `json:"name" example:"tpa-engine"`
	Version  string                       `json:"version" example:"1.0.0"`
	Go       string                       `json:"go_version" example:"go1.25.5"`
	Uptime   string                       `json:"uptime" example:"1h30m45s"`
	Checks   map[string]string            `json:"checks,omitempty"`
	Database *persistence.ConnectionStats `json:"database,omitempty"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Reports the state of the service and of its optional stores
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Name:    h.name,
		Version: h.version,
		Go:      runtime.Version(),
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	if h.pool != nil {
		if stats, err := h.pool.Stats(); err == nil {
			resp.Database = &stats
		}
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
