package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Protocol-Lattice/campus-agent/src/cache"
	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
	"github.com/Protocol-Lattice/campus-agent/src/mcp"
	"github.com/Protocol-Lattice/campus-agent/src/observe"
)

// DefaultProviders are launched even when no [providers] table names them.
var DefaultProviders = []string{"locations", "notices", "courses", "requirements", "library", "meals"}

// ProviderSpecs merges DefaultProviders with the [providers] tables, sorted
// by name.
func (c *Config) ProviderSpecs() []mcp.ProviderSpec {
	names := map[string]struct{}{}
	for _, n := range DefaultProviders {
		names[n] = struct{}{}
	}
	for n := range c.Providers {
		names[n] = struct{}{}
	}

	specs := make([]mcp.ProviderSpec, 0, len(names))
	for n := range names {
		p := c.Providers[n]
		env := make([]string, 0, len(p.Env))
		for k, v := range p.Env {
			env = append(env, k+"="+v)
		}
		sort.Strings(env)
		specs = append(specs, mcp.ProviderSpec{
			Name:    n,
			Root:    p.Root,
			Command: p.Command,
			Args:    append([]string(nil), p.Args...),
			Env:     env,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func (c *Config) RegistryOptions(logger *slog.Logger) mcp.RegistryOptions {
	return mcp.RegistryOptions{
		RepoRoot:    c.MCP.RepoRoot,
		FallbackDir: c.MCP.ProvidersDir,
		Logger:      logger,
	}
}

func (c *Config) InvokerOptions(logger *slog.Logger) (mcp.InvokerOptions, error) {
	framing, err := mcp.ParseFraming(c.MCP.Framing)
	if err != nil {
		return mcp.InvokerOptions{}, err
	}
	return mcp.InvokerOptions{
		HandshakeFloor:     c.MCP.HandshakeFloor.Duration,
		CallFloor:          c.MCP.CallFloor.Duration,
		BackoffBase:        c.MCP.BackoffBase.Duration,
		ClosedBackoffFloor: c.MCP.ClosedBackoffFloor.Duration,
		ProbeCapabilities:  c.MCP.ProbeCapabilities,
		Factory: mcp.StdioFactory(framing, mcp.Options{
			ClientInfo: mcp.ClientInfo{Name: "campus-agent", Version: "1.0.0"},
		}, nil),
		Logger: logger,
	}, nil
}

// ResultCache builds the cache handle: Redis when a URL is set, the
// in-process store otherwise, nil when disabled.
func (c *Config) ResultCache(logger *slog.Logger) *cache.ResultCache {
	if c.Cache.Disabled {
		return nil
	}
	opts := cache.Options{
		OpTimeout: c.Cache.OpTimeout.Duration,
		Cooldown:  c.Cache.Cooldown.Duration,
		Logger:    logger,
	}
	if c.Cache.RedisURL == "" {
		return cache.NewWithStore(cache.NewMemoryStore(c.Cache.MemoryCapacity), opts)
	}
	return cache.New(cache.RedisDialer(cache.RedisConfig{
		URL:       c.Cache.RedisURL,
		KeyPrefix: c.Cache.KeyPrefix,
	}), opts)
}

func (c *Config) KeyOptions() cache.KeyOptions {
	return cache.KeyOptions{
		ListHashThreshold: c.Cache.ListHashThreshold,
		MaxKeyLength:      c.Cache.MaxKeyLength,
	}
}

func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		Kind:        c.Observe.Sink,
		MongoURI:    c.Observe.MongoURI,
		Database:    c.Observe.Database,
		Collection:  c.Observe.Collection,
		PostgresURL: c.Observe.PostgresURL,
	}
}

// DispatchOptions builds the dispatch table with [tools] overrides applied.
func (c *Config) DispatchOptions(now time.Time, logger *slog.Logger) (dispatch.Options, error) {
	tools, err := c.ApplyToolOverrides(dispatch.DefaultTools())
	if err != nil {
		return dispatch.Options{}, err
	}
	return dispatch.Options{
		Tools: tools,
		Defaults: dispatch.Defaults{
			AdmissionYear: c.AdmissionYear(now),
			CurrentTerm:   c.Agent.CurrentTerm,
		},
		Keys:   c.KeyOptions(),
		Logger: logger,
	}, nil
}

// ErrNeverCached rejects enabling the cache for a side-effecting,
// real-time or credentialed tool.
var ErrNeverCached = errors.New("tool results are never cached")

// ApplyToolOverrides returns a copy of tools with the [tools] overrides
// applied. Overrides naming an unknown tool are an error.
func (c *Config) ApplyToolOverrides(tools []dispatch.Tool) ([]dispatch.Tool, error) {
	out := append([]dispatch.Tool(nil), tools...)
	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.Name] = i
	}
	for name, o := range c.Tools {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("tools.%s: %w", name, dispatch.ErrUnsupportedTool)
		}
		if o.TTL != nil {
			out[i].TTL = o.TTL.Duration
		}
		if o.Timeout != nil {
			out[i].Timeout = o.Timeout.Duration
		}
		if o.Retries != nil {
			out[i].Retries = *o.Retries
		}
		if o.Cacheable != nil {
			if *o.Cacheable && out[i].NeverCached() {
				return nil, fmt.Errorf("tools.%s.cacheable: %w", name, ErrNeverCached)
			}
			out[i].Cacheable = *o.Cacheable
		}
	}
	return out, nil
}
