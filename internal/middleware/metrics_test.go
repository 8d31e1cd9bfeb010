package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"

	"toji-proxy/internal/metrics"
)

// requestSamples returns the label sets of toji_proxy_http_requests_total
// samples, each with its counter value under the "value" key.
func requestSamples(t *testing.T, m *metrics.Metrics) []map[string]string {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var out []map[string]string
	for _, f := range families {
		if f.GetName() != "toji_proxy_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			labels["value"] = strconv.FormatFloat(metric.GetCounter().GetValue(), 'f', -1, 64)
			out = append(out, labels)
		}
	}
	return out
}

func findSample(samples []map[string]string, pathPrefix string) map[string]string {
	for _, s := range samples {
		if s["path_prefix"] == pathPrefix {
			return s
		}
	}
	return nil
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/api/search", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if rec := serve(e, http.MethodGet, "/api/search?query=x"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	s := findSample(requestSamples(t, m), "/api/search")
	if s == nil {
		t.Fatal("expected toji_proxy_http_requests_total with path_prefix=/api/search")
	}
	if s["value"] != "1" || s["status_code"] != "200" || s["method"] != "GET" {
		t.Errorf("sample = %v, want GET 200 count 1", s)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	serve(e, http.MethodGet, "/healthz")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "toji_proxy_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected toji_proxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/api/ladfrlList", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	serve(e, http.MethodGet, "/api/ladfrlList")

	s := findSample(requestSamples(t, m), "/api/ladfrlList")
	if s == nil {
		t.Fatal("expected toji_proxy_http_requests_total with path_prefix=/api/ladfrlList")
	}
	if s["status_code"] != "502" {
		t.Errorf("status_code = %q, want %q", s["status_code"], "502")
	}
}

func TestMetricsMiddleware_PlainErrorIs500(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/api/data", func(c echo.Context) error {
		return errors.New("boom")
	})

	serve(e, http.MethodGet, "/api/data")

	s := findSample(requestSamples(t, m), "/api/data")
	if s == nil {
		t.Fatal("expected toji_proxy_http_requests_total with path_prefix=/api/data")
	}
	if s["status_code"] != "500" {
		t.Errorf("status_code = %q, want %q", s["status_code"], "500")
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.Any("/api/search", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	serve(e, "XYZZY", "/api/search")

	s := findSample(requestSamples(t, m), "/api/search")
	if s == nil {
		t.Fatal("expected toji_proxy_http_requests_total with path_prefix=/api/search")
	}
	if s["method"] != "other" {
		t.Errorf("method = %q, want %q", s["method"], "other")
	}
}

func TestMetricsMiddleware_RouterNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))

	if rec := serve(e, http.MethodGet, "/nonexistent"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	s := findSample(requestSamples(t, m), "other")
	if s == nil {
		t.Fatal("expected toji_proxy_http_requests_total with path_prefix=other")
	}
	if s["status_code"] != "404" {
		t.Errorf("status_code = %q, want %q", s["status_code"], "404")
	}
}

func TestMetricsMiddleware_SkipsScrapePath(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "# metrics")
	})

	serve(e, http.MethodGet, "/metrics")

	if s := findSample(requestSamples(t, m), "/metrics"); s != nil {
		t.Errorf("scrape request recorded: %v", s)
	}
}
