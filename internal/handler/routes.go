package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toji-proxy/internal/config"
	"toji-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
//
// Each proxied route matches its prefix the way a plain string prefix would:
// "/api/search", "/api/search/..." and "/api/searchX" all forward to the
// search endpoint. Other paths go to the static directory when one is
// configured and 404 otherwise.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	for _, r := range proxy.Routes() {
		h := proxy.Handle(r)
		e.GET(r.Prefix, h)
		e.GET(r.Prefix+"*", h)
	}

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	if cfg.Server.StaticDir != "" {
		e.Static("/", cfg.Server.StaticDir)
	}
}
