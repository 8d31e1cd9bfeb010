package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"toji-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the build version and the fixed upstream wiring. The API
// key is never included.
func (h *HealthHandler) Status(c echo.Context) error {
	upstreams := map[string]string{
		"search": h.cfg.Upstream.SearchURL,
		"ladfrl": h.cfg.Upstream.LadfrlURL,
		"data":   h.cfg.Upstream.DataURL,
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    string(h.version),
		"domain":     h.cfg.VWorld.Domain,
		"origin":     h.cfg.VWorld.Origin,
		"server_key": h.cfg.VWorld.APIKey != "",
		"upstreams":  upstreams,
	})
}
