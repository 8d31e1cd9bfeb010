package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"toji-proxy/internal/config"
	"toji-proxy/internal/lookup"
	"toji-proxy/internal/view"
)

type lookupCmd struct {
	Address  string        `arg:"" help:"Road address, e.g. \"서울특별시 중구 세종대로 110\"."`
	ProxyURL string        `help:"Base URL of a running proxy." default:"http://localhost:8000" env:"TOJI_PROXY_URL"`
	Domain   string        `help:"Value sent as the domain parameter; the proxy injects its registered host when empty."`
	Category string        `help:"Address category: road|parcel." default:"road" enum:"road,parcel"`
	Output   string        `short:"o" help:"Output format: text|json." default:"text" enum:"text,json"`
	Timeout  time.Duration `help:"Timeout per proxy request." default:"10s"`
}

func (l *lookupCmd) Run(globals *config.CLI) error {
	cfg, err := config.Load(globals)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	c, err := lookup.New(lookup.Options{
		ProxyURL: l.ProxyURL,
		APIKey:   cfg.VWorld.APIKey,
		Domain:   l.Domain,
		Category: l.Category,
		Timeout:  l.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := c.Lookup(ctx, l.Address)
	if err != nil {
		return fmt.Errorf("lookup %q: %w", l.Address, err)
	}

	if l.Output == "json" {
		return view.RenderJSON(os.Stdout, res)
	}
	v, err := view.New(os.Stdout, view.DefaultLayout())
	if err != nil {
		return err
	}
	return v.Render(res)
}
