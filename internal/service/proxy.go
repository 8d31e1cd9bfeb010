// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"toji-proxy/internal/client"
	"toji-proxy/internal/config"
	"toji-proxy/internal/metrics"
	"toji-proxy/internal/model"
	"toji-proxy/internal/vworld"
)

// Error messages placed in the "error" field of synthesized responses.
const (
	MsgRequestFailed = "Upstream request failed"
	MsgUpstreamError = "Upstream error"
	DetailHTML       = "Upstream returned HTML (likely blocked/invalid domain/key)"
)

// userAgent is browser-like; VWorld rejects some non-browser agents.
const userAgent = "Mozilla/5.0 (compatible; toji-proxy/1.0)"

// RequestError reports that the upstream call could not complete:
// DNS, connect, TLS, timeout, cancellation or an oversized body.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return "upstream request failed: " + e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

// UpstreamError reports an upstream response that must not reach the client
// verbatim: a non-2xx status or an HTML page.
type UpstreamError struct {
	StatusCode int // status returned to the client
	Detail     string
	HTML       bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (%d): %s", e.StatusCode, e.Detail)
}

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client  *client.VWorldClient
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	routes  []model.Route
}

// NewProxyService creates a ProxyService with the route table derived from cfg.
// The metrics parameter is optional.
func NewProxyService(c *client.VWorldClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	routes := []model.Route{
		{Name: "search", Prefix: "/api/search", BaseURL: cfg.Upstream.SearchURL},
		{Name: "ladfrl", Prefix: "/api/ladfrlList", BaseURL: cfg.Upstream.LadfrlURL},
		{Name: "data", Prefix: "/api/data", BaseURL: cfg.Upstream.DataURL},
	}
	for _, r := range routes {
		u, err := url.Parse(r.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream url for %s: %w", r.Prefix, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("upstream url for %s has no host: %q", r.Prefix, r.BaseURL)
		}
	}

	return &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		routes:  routes,
	}, nil
}

// Routes returns the fixed route table.
func (s *ProxyService) Routes() []model.Route {
	out := make([]model.Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// Forward sends a ProxyRequest upstream and classifies the result. A nil
// error means the returned body is upstream JSON to be sent verbatim; any
// failure is a *RequestError or an *UpstreamError.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	upstreamURL, err := s.BuildUpstreamURL(pr.Route, pr.Query)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	s.logger.Debug("forwarding request",
		"route", pr.Route.Name,
		"params", len(pr.Query),
	)

	resp, err := s.client.Get(pr.Ctx, pr.Route.Name, upstreamURL, s.upstreamHeader())
	if err != nil {
		s.recordFailure(pr.Route, metrics.FailureTransport)
		return nil, &RequestError{Err: err}
	}

	return s.classify(pr.Route, resp)
}

// BuildUpstreamURL applies query onto the route's base URL.
//
// Duplicate inbound keys are last-write-wins. The domain parameter is
// normalized to a bare hostname and injected when absent. When a server-side
// API key is configured it fills in a missing or empty key parameter.
func (s *ProxyService) BuildUpstreamURL(route model.Route, query url.Values) (string, error) {
	u, err := url.Parse(route.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}

	q := u.Query()
	for k, vals := range query {
		if len(vals) == 0 {
			continue
		}
		v := vals[len(vals)-1]
		if k == vworld.ParamDomain {
			v = vworld.NormalizeDomain(v, s.cfg.VWorld.Domain)
		}
		q.Set(k, v)
	}
	if _, ok := q[vworld.ParamDomain]; !ok {
		q.Set(vworld.ParamDomain, s.cfg.VWorld.Domain)
	}
	if s.cfg.VWorld.APIKey != "" && q.Get(vworld.ParamKey) == "" {
		q.Set(vworld.ParamKey, s.cfg.VWorld.APIKey)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *ProxyService) upstreamHeader() http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("Referer", s.cfg.VWorld.Referer())
	h.Set("Origin", s.cfg.VWorld.Origin)
	h.Set("User-Agent", userAgent)
	return h
}

// classify turns an upstream response into a passthrough or an *UpstreamError.
// HTML is checked first so that an error page carries the domain/key hint
// whatever its status.
func (s *ProxyService) classify(route model.Route, resp *model.UpstreamResponse) (*model.ProxyResponse, error) {
	if looksLikeHTML(resp.ContentType, resp.Body) {
		status := errorStatus(resp.StatusCode)
		s.logger.Warn("upstream returned HTML",
			"route", route.Name,
			"upstream_status", resp.StatusCode,
			"title", htmlTitle(resp.Body),
		)
		s.recordFailure(route, metrics.FailureHTML)
		return nil, &UpstreamError{StatusCode: status, Detail: DetailHTML, HTML: true}
	}

	if !isSuccess(resp.StatusCode) {
		status := errorStatus(resp.StatusCode)
		s.logger.Warn("upstream returned error status",
			"route", route.Name,
			"upstream_status", resp.StatusCode,
		)
		s.recordFailure(route, metrics.FailureStatus)
		return nil, &UpstreamError{StatusCode: status, Detail: statusDetail(resp.StatusCode)}
	}

	return &model.ProxyResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

func (s *ProxyService) recordFailure(route model.Route, kind string) {
	if s.metrics == nil {
		return
	}
	s.metrics.UpstreamFailures.WithLabelValues(route.Name, kind).Inc()
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}

// htmlTitle returns the <title> of an HTML error page, for logs.
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func statusDetail(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("upstream responded %d %s", code, text)
	}
	return fmt.Sprintf("upstream responded %d", code)
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

// errorStatus is the status sent with a synthesized error: the upstream's own
// 4xx/5xx code, otherwise 502.
func errorStatus(code int) int {
	if code >= 400 && code <= 599 {
		return code
	}
	return http.StatusBadGateway
}
