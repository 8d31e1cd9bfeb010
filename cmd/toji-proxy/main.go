package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"toji-proxy/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cli struct {
	Globals config.CLI `embed:""`

	Version kong.VersionFlag `help:"Print version and exit."`

	Serve  serveCmd  `cmd:"" default:"1" help:"Run the VWorld edge proxy (default)."`
	Lookup lookupCmd `cmd:"" help:"Resolve a road address to its parcel through a running proxy."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("toji-proxy"),
		kong.Description("Edge proxy for the VWorld address search and land-registry APIs."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
		kong.UsageOnError(),
	)

	if err := ctx.Run(&c.Globals); err != nil {
		fmt.Fprintln(os.Stderr, "toji-proxy:", err)
		os.Exit(1)
	}
}
