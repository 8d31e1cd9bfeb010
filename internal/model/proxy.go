// Package model defines shared types for the proxy.
package model

import (
	"context"
	"net/url"
)

// Route binds an inbound path prefix to one fixed upstream endpoint.
type Route struct {
	Name    string // metrics and log label, e.g. "search"
	Prefix  string // inbound path prefix, e.g. "/api/search"
	BaseURL string // upstream endpoint, e.g. "https://api.vworld.kr/req/search"
}

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx   context.Context
	Route Route
	Query url.Values
}

// UpstreamResponse is a fully read upstream response. The body is kept as
// opaque bytes; the proxy never decodes it.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ProxyResponse is the verbatim JSON payload returned to the client.
type ProxyResponse struct {
	StatusCode int
	Body       []byte
}

// ErrorBody is the JSON shape of every error the proxy emits.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
