package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

// DatabasePinger checks the database connection
type DatabasePinger interface {
	Ping() error
}

// RunnerStatus reports whether the background sync runner is active
type RunnerStatus interface {
	IsRunning() bool
}

// SystemHandler handles health and info endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        DatabasePinger
	runner    RunnerStatus
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. runner may be nil when the
// background runner is disabled.
func NewSystemHandler(name, version string, db DatabasePinger, runner RunnerStatus) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		runner:    runner,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// RegisterRoutes registers the info endpoint under the API group
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/system/info", h.GetSystemInfo)
}

// GetSystemInfo returns version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Health reports database reachability and the runner state. It answers 503
// when the database is down.
func (h *SystemHandler) Health(c *gin.Context) {
	checks := map[string]string{}
	status := "ok"
	code := http.StatusOK

	if h.db != nil {
		if err := pingWithTimeout(c.Request.Context(), h.db, 2*time.Second); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	switch {
	case h.runner == nil:
		checks["scheduler"] = "disabled"
	case h.runner.IsRunning():
		checks["scheduler"] = "running"
	default:
		checks["scheduler"] = "stopped"
	}

	c.JSON(code, dto.HealthResponse{Status: status, Checks: checks, Timestamp: time.Now().UTC()})
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping answers without touching dependencies
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func pingWithTimeout(ctx context.Context, db DatabasePinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- db.Ping() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
