package handler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/labstack/echo/v4"

	"toji-proxy/internal/client"
	"toji-proxy/internal/config"
	"toji-proxy/internal/metrics"
	"toji-proxy/internal/middleware"
	"toji-proxy/internal/service"
)

// newTestConfig returns defaults with every upstream route pointed at baseURL.
func newTestConfig(baseURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Upstream.SearchURL = baseURL + "/req/search"
	cfg.Upstream.LadfrlURL = baseURL + "/ned/data/ladfrlList"
	cfg.Upstream.DataURL = baseURL + "/req/data"
	cfg.Upstream.TimeoutSeconds = 5
	return cfg
}

// newTestEcho wires an Echo instance the way the server does, minus logging.
func newTestEcho(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	svc, err := service.NewProxyService(client.NewVWorldClient(cfg, logger, m), cfg, logger, m)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}

	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(logger)
	e.Use(middleware.CORS())
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m, cfg.Metrics.Path))
	}
	RegisterRoutes(e, cfg, NewProxyHandler(svc, logger), NewHealthHandler(cfg, "test"), m)
	return e
}
