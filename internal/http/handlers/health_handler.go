package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
)

const storePingTimeout = 2 * time.Second

// HealthResponse reports liveness together with build and store details.
type HealthResponse struct {
	OK        bool   `json:"ok"        example:"true"`
	Service   string `json:"service"   example:"ip-geo-backend"`
	Version   string `json:"version"   example:"1.0.0"`
	Env       string `json:"env"       example:"development"`
	UptimeMS  int64  `json:"uptime_ms" example:"12345"`
	Timestamp string `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	// "ok", "unavailable" or "unknown"
	Store string `json:"store" example:"ok"`
}

// Healthz godoc
// @ID          healthz
// @Summary     Extended health check
// @Description Liveness plus version, environment, uptime and a store ping. The process is alive even when the store is not, so the status stays 200.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /healthz [get]
func (h *Handlers) Healthz(c *gin.Context) {
	now := h.now()
	resp := HealthResponse{
		OK:        true,
		Service:   h.opts.Service,
		Version:   h.opts.Version,
		Env:       h.opts.Env,
		UptimeMS:  now.Sub(h.started).Milliseconds(),
		Timestamp: now.UTC().Format(time.RFC3339),
		Store:     "unknown",
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), storePingTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store ping failed")
			resp.Store = "unavailable"
		} else {
			resp.Store = "ok"
		}
	}
	ok(c, http.StatusOK, resp)
}
