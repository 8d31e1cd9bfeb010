package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"toji-proxy/internal/config"
	"toji-proxy/internal/metrics"
)

func parse(t *testing.T, args ...string) (*cli, *kong.Context) {
	t.Helper()
	var c cli
	parser, err := kong.New(&c, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return &c, ctx
}

func TestCLI_DefaultsToServe(t *testing.T) {
	c, ctx := parse(t, "--port", "9000", "--log-level", "debug")
	if ctx.Command() != "serve" {
		t.Errorf("command = %q, want serve", ctx.Command())
	}
	if c.Globals.Port != 9000 || c.Globals.LogLevel != "debug" {
		t.Errorf("globals = %+v", c.Globals)
	}
}

func TestCLI_Lookup(t *testing.T) {
	c, ctx := parse(t, "lookup", "세종대로 110", "-o", "json", "--proxy-url", "http://proxy:8000")
	if ctx.Command() != "lookup <address>" {
		t.Errorf("command = %q", ctx.Command())
	}
	if c.Lookup.Address != "세종대로 110" || c.Lookup.Output != "json" || c.Lookup.ProxyURL != "http://proxy:8000" {
		t.Errorf("lookup = %+v", c.Lookup)
	}
	if c.Lookup.Category != "road" {
		t.Errorf("category = %q, want road", c.Lookup.Category)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		debugVisible  bool
		prefix        string
	}{
		{"debug", "json", true, "{"},
		{"info", "json", false, "{"},
		{"debug", "text", true, "time="},
		{"error", "text", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Log.Level = tt.level
			cfg.Log.Format = tt.format

			var buf bytes.Buffer
			logger := newLogger(cfg, &buf)
			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.debugVisible {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugVisible)
			}
			logger.Error("boom")
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("output = %q, want prefix %q", buf.String(), tt.prefix)
			}
		})
	}
}

func TestNewEcho_Middleware(t *testing.T) {
	cfg := config.Defaults()
	cfg.Metrics.Enabled = true
	var buf bytes.Buffer
	e := newEcho(cfg, newLogger(cfg, &buf), metrics.New())

	req := httptest.NewRequest(http.MethodOptions, "/anything", http.NoBody)
	req.Header.Set("Origin", "https://web-toji.pages.dev")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://web-toji.pages.dev" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", http.NoBody)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=UTF-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}
