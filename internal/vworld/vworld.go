// Package vworld holds the fixed facts about the VWorld geodata API that the
// proxy forwards to: endpoint URLs, the registered domain, and the rules for
// the domain query parameter.
package vworld

import (
	"net/url"
	"regexp"
	"strings"
)

// Default upstream endpoints.
const (
	SearchURL = "https://api.vworld.kr/req/search"
	LadfrlURL = "https://api.vworld.kr/ned/data/ladfrlList"
	DataURL   = "https://api.vworld.kr/req/data"
)

// Registered origin and hostname. VWorld ties API keys to this pair.
const (
	RegisteredOrigin = "https://web-toji.pages.dev"
	RegisteredHost   = "web-toji.pages.dev"
)

// Query parameter names the proxy inspects.
const (
	ParamDomain = "domain"
	ParamKey    = "key"
)

// keyPattern matches key query parameter values in URLs embedded in text.
var keyPattern = regexp.MustCompile(`(?i)([?&]key=)[^&\s"]+`)

// NormalizeDomain reduces v to a bare hostname. Absolute URLs yield their
// hostname; anything else has a leading http:// or https:// and trailing
// slashes removed. An empty result falls back to fallback.
//
// NormalizeDomain(NormalizeDomain(v, f), f) == NormalizeDomain(v, f).
func NormalizeDomain(v, fallback string) string {
	// Each pass only shortens v, so repeating until nothing changes
	// terminates on a value a further call leaves alone.
	for {
		next := normalizeOnce(v)
		if next == v {
			break
		}
		v = next
	}
	if v == "" {
		return fallback
	}
	return v
}

func normalizeOnce(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}

	if u, err := url.Parse(v); err == nil && u.Scheme != "" && u.Host != "" {
		if h := u.Hostname(); h != "" {
			return h
		}
	}

	for _, scheme := range []string{"https://", "http://"} {
		if len(v) >= len(scheme) && strings.EqualFold(v[:len(scheme)], scheme) {
			v = v[len(scheme):]
			break
		}
	}
	return strings.TrimSpace(strings.TrimRight(v, "/"))
}

// HostFromOrigin returns the hostname of an origin such as
// "https://example.com", or "" when origin is not an absolute URL.
func HostFromOrigin(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

// RedactKey replaces API key values in URLs embedded in s.
func RedactKey(s string) string {
	return keyPattern.ReplaceAllString(s, "${1}[REDACTED]")
}
