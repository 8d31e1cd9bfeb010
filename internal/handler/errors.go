package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"toji-proxy/internal/model"
)

// WriteError writes body as JSON with the UTF-8 JSON content type.
func WriteError(c echo.Context, status int, body model.ErrorBody) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSONCharsetUTF8, b)
}

// NewErrorHandler returns an echo.HTTPErrorHandler that renders router,
// middleware and panic errors in the proxy's {"error": ...} shape.
func NewErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("unhandled error",
				"err", err,
				"path", c.Request().URL.Path,
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		if werr := WriteError(c, code, model.ErrorBody{Error: msg}); werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
