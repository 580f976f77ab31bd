package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusUp   = "up"
	statusDown = "down"

	readinessTimeout = 5 * time.Second
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// GET /health/live
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: statusUp, Timestamp: time.Now().UTC()})
}

// GET /health/ready
func (h *Handler) Ready(c *gin.Context) {
	resp := healthResponse{
		Status: statusUp,
		Checks: map[string]string{},
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			h.log.Warn("readiness check failed", slog.String("check", "postgres"), slog.String("error", err.Error()))
			resp.Status = statusDown
			resp.Checks["postgres"] = statusDown
		} else {
			resp.Checks["postgres"] = statusUp
		}
	}

	resp.Timestamp = time.Now().UTC()

	if resp.Status == statusDown {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
