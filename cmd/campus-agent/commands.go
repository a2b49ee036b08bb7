package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	agent "github.com/Protocol-Lattice/campus-agent"
	"github.com/Protocol-Lattice/campus-agent/src/cache"
	"github.com/Protocol-Lattice/campus-agent/src/concurrent"
	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
	"github.com/Protocol-Lattice/campus-agent/src/mcp"
)

func (c *AskCmd) Run(a *App) error {
	text := strings.TrimSpace(strings.Join(c.Question, " "))
	if text == "" {
		return errors.New("no question provided")
	}
	session, err := c.session()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("close runtime", "error", err)
		}
	}()

	resp := rt.orchestrator.Ask(ctx, agent.Query{Text: text, Session: session})
	return writeJSON(a, resp)
}

// session builds the caller context from flags. Credentials are given as
// provider=id:secret.
func (c *AskCmd) session() (dispatch.Session, error) {
	s := dispatch.Session{
		UserID:        c.User,
		Program:       c.Program,
		AdmissionYear: c.AdmissionYear,
		Campus:        c.Campus,
		Locale:        c.Locale,
	}
	for provider, login := range c.Credential {
		id, secret, ok := strings.Cut(login, ":")
		if !ok || id == "" {
			return dispatch.Session{}, fmt.Errorf("credential for %s must be id:secret", provider)
		}
		if s.Credentials == nil {
			s.Credentials = map[string]dispatch.Credential{}
		}
		s.Credentials[provider] = dispatch.Credential{ID: id, Secret: secret}
	}
	return s, nil
}

func (c *ProvidersCmd) Run(a *App) error {
	inv, err := a.invoker()
	if err != nil {
		return err
	}
	providers := inv.Registry().Providers()

	// Providers hold separate locks, so probes run side by side.
	var probes []concurrent.Outcome[[]mcp.ToolDefinition]
	if c.Probe {
		probes = concurrent.Map(context.Background(), providers, c.Parallel,
			func(ctx context.Context, p mcp.Provider) ([]mcp.ToolDefinition, error) {
				if !p.Available {
					return nil, nil
				}
				return inv.Capabilities(ctx, p.Name)
			})
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tROOT\tTOOLS")
	for i, p := range providers {
		status, root, tools := "unavailable", "-", "-"
		if p.Available {
			status, root = "ok", p.Root
		}
		if probes != nil && p.Available {
			if err := probes[i].Err; err != nil {
				status = "error"
				a.logger.Warn("probe provider", "provider", p.Name, "error", err)
			} else {
				names := make([]string, 0, len(probes[i].Value))
				for _, d := range probes[i].Value {
					names = append(names, d.Name)
				}
				tools = strings.Join(names, ",")
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, status, root, tools)
	}
	return tw.Flush()
}

func (CatalogCmd) Run(a *App) error {
	tools, err := a.cfg.ApplyToolOverrides(dispatch.DefaultTools())
	if err != nil {
		return err
	}
	catalog, err := agent.NewToolCatalog(tools)
	if err != nil {
		return err
	}
	return writeJSON(a, catalog.Specs())
}

func (c *CachePurgeCmd) Run(a *App) error {
	pattern := c.Pattern
	if c.Tool != "" {
		if pattern != "" {
			return errors.New("give either a pattern or --tool, not both")
		}
		pattern = cache.Pattern(c.Tool)
	}
	if pattern == "" {
		return errors.New("a pattern or --tool is required")
	}
	if err := cache.ValidatePattern(pattern); err != nil {
		return err
	}

	results := a.cfg.ResultCache(a.logger)
	if results == nil {
		return errors.New("result cache is disabled")
	}
	defer results.Close()

	n, err := results.Delete(context.Background(), pattern)
	if err != nil {
		return fmt.Errorf("purge %s: %w", pattern, err)
	}
	_, err = fmt.Fprintf(a.out, "purged %d keys matching %s\n", n, pattern)
	return err
}

func writeJSON(a *App, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
