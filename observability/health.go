// Package observability exposes the process self-health endpoint.
package observability

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

type HealthHandler struct {
	log       *slog.Logger
	startedAt time.Time
}

func NewHealthHandler(log *slog.Logger) *HealthHandler {
	return &HealthHandler{log: log, startedAt: time.Now()}
}

func (h *HealthHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", h.healthz)
}

// healthz reports liveness plus the service's own resource usage. Metric
// lookups are best-effort: a gopsutil failure degrades the payload, it
// never fails the probe.
func (h *HealthHandler) healthz(c *gin.Context) {
	payload := gin.H{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		h.log.Debug("Error while retrieving own process", "err", err)
		c.JSON(http.StatusOK, payload)
		return
	}
	if cpu, err := p.CPUPercent(); err == nil {
		payload["cpuPercent"] = cpu
	} else {
		h.log.Debug("Error while finding process cpu usage", "err", err)
	}
	if ram, err := p.MemoryPercent(); err == nil {
		payload["ramPercent"] = ram
	} else {
		h.log.Debug("Error while finding process ram usage", "err", err)
	}

	c.JSON(http.StatusOK, payload)
}
