// Package main defines the campus-agent command line using kong.
package main

import (
	"time"

	"github.com/alecthomas/kong"
)

// CLI is the command tree. Global flags apply to every command.
type CLI struct {
	Config    string `short:"c" type:"path" help:"Config file path (default: ./campus-agent.toml when present)"`
	LogFormat string `enum:"text,json" default:"text" help:"Log format (text, json)"`
	LogLevel  string `enum:"debug,info,warn,error" default:"info" help:"Log level"`

	Ask       AskCmd       `cmd:"" help:"Answer one campus question"`
	Providers ProvidersCmd `cmd:"" help:"Show provider roots and advertised tools"`
	Catalog   CatalogCmd   `cmd:"" help:"Print the tool catalog sent to the reasoning model"`
	Cache     CacheCmd     `cmd:"" help:"Administer the result cache"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// AskCmd answers a question and prints the response as JSON.
type AskCmd struct {
	Question      []string          `arg:"" help:"Question text"`
	User          string            `help:"User ID; empty means anonymous"`
	Program       string            `help:"Program or department of the user"`
	AdmissionYear int               `help:"Admission year of the user"`
	Campus        string            `help:"Campus identifier"`
	Locale        string            `help:"Response locale (en, ko)"`
	Credential    map[string]string `help:"Provider login as provider=id:secret (repeatable)" placeholder:"PROVIDER=ID:SECRET"`
	Timeout       time.Duration     `default:"90s" help:"Overall request timeout"`
}

// ProvidersCmd lists providers after root resolution.
type ProvidersCmd struct {
	Probe    bool `help:"Start each available provider and list its tools"`
	Parallel int  `default:"4" help:"Providers probed at once"`
}

// CatalogCmd prints the model-facing tool catalog.
type CatalogCmd struct{}

// CacheCmd groups cache administration.
type CacheCmd struct {
	Purge CachePurgeCmd `cmd:"" help:"Delete cached results matching a glob pattern"`
}

// CachePurgeCmd deletes cache keys by pattern or by tool.
type CachePurgeCmd struct {
	Pattern string `arg:"" optional:"" help:"Glob pattern over cache keys, e.g. tool:get_meals:*"`
	Tool    string `help:"Purge every key of this tool"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
