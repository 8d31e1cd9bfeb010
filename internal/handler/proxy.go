package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"toji-proxy/internal/model"
	"toji-proxy/internal/service"
	"toji-proxy/internal/vworld"
)

// ProxyHandler forwards API requests to the upstream VWorld API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Routes returns the routes this handler serves.
func (h *ProxyHandler) Routes() []model.Route {
	return h.service.Routes()
}

// Handle returns the handler for one route. Upstream JSON is written back
// verbatim with the upstream status; every failure becomes a JSON error body.
func (h *ProxyHandler) Handle(route model.Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		resp, err := h.service.Forward(&model.ProxyRequest{
			Ctx:   req.Context(),
			Route: route,
			Query: req.URL.Query(),
		})
		if err != nil {
			return h.mapError(c, route, err)
		}

		return c.Blob(resp.StatusCode, echo.MIMEApplicationJSONCharsetUTF8, resp.Body)
	}
}

func (h *ProxyHandler) mapError(c echo.Context, route model.Route, err error) error {
	var upErr *service.UpstreamError
	if errors.As(err, &upErr) {
		return WriteError(c, upErr.StatusCode, model.ErrorBody{
			Error:  service.MsgUpstreamError,
			Detail: upErr.Detail,
		})
	}

	detail := err.Error()
	var reqErr *service.RequestError
	if errors.As(err, &reqErr) {
		detail = reqErr.Err.Error()
	}
	detail = vworld.RedactKey(detail)

	h.logger.Error("proxy error",
		"err", detail,
		"route", route.Name,
		"path", c.Request().URL.Path,
	)

	return WriteError(c, http.StatusInternalServerError, model.ErrorBody{
		Error:  service.MsgRequestFailed,
		Detail: detail,
	})
}
