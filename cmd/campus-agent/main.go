// Package main is the entry point for the campus-agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Load .env for API keys and connection strings
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("campus-agent"),
		kong.Description("Answer campus questions with tool-backed reasoning."),
		kong.UsageOnError(),
		kongVars(),
	)

	app, err := newApp(cli.Config, cli.LogFormat, cli.LogLevel, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "campus-agent: %v\n", err)
		os.Exit(1)
	}
	kctx.FatalIfErrorf(kctx.Run(app))
}

func (VersionCmd) Run(a *App) error {
	_, err := fmt.Fprintf(a.out, "campus-agent version %s (commit: %s)\n", version, commit)
	return err
}
