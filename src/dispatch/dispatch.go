package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Protocol-Lattice/campus-agent/src/cache"
	"github.com/Protocol-Lattice/campus-agent/src/mcp"
)

// Invoker runs one provider operation. *mcp.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, provider, operation string, arguments map[string]any, co mcp.CallOptions) (mcp.Payload, error)
}

// Options configure a Dispatcher.
type Options struct {
	// Tools replaces DefaultTools when non-empty.
	Tools    []Tool
	Defaults Defaults
	Keys     cache.KeyOptions
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

// Dispatcher executes tool requests against providers through the cache.
type Dispatcher struct {
	invoker  Invoker
	cache    *cache.ResultCache
	tools    map[string]Tool
	order    []string
	defaults Defaults
	keys     cache.KeyOptions
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New builds a Dispatcher. A nil cache disables caching.
func New(invoker Invoker, results *cache.ResultCache, opts Options) *Dispatcher {
	tools := opts.Tools
	if len(tools) == 0 {
		tools = DefaultTools()
	}
	keys := opts.Keys
	if keys == (cache.KeyOptions{}) {
		keys = cache.DefaultKeyOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/Protocol-Lattice/campus-agent/src/dispatch")
	}

	d := &Dispatcher{
		invoker:  invoker,
		cache:    results,
		tools:    make(map[string]Tool, len(tools)),
		defaults: opts.Defaults,
		keys:     keys,
		logger:   logger,
		tracer:   tracer,
	}
	for _, t := range tools {
		d.tools[t.Name] = t
		d.order = append(d.order, t.Name)
	}
	return d
}

// Tools returns the table in declaration order.
func (d *Dispatcher) Tools() []Tool {
	out := make([]Tool, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tools[name])
	}
	return out
}

// Lookup returns the table row for name.
func (d *Dispatcher) Lookup(name string) (Tool, bool) {
	t, ok := d.tools[name]
	return t, ok
}

// Denylist returns the tools that never write to the cache, sorted.
func (d *Dispatcher) Denylist() []string {
	var out []string
	for name, t := range d.tools {
		if !t.Caches() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Dispatch resolves arguments, consults the cache, invokes the provider and
// normalizes the payload. It never returns an error; failures are reported
// as Result{Kind: KindError} or KindNeedsLogin.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw map[string]any, s Session) Result {
	tool, ok := d.tools[name]
	if !ok {
		return errorResult(name, CategoryNone, fmt.Errorf("%w: %s", ErrUnsupportedTool, name))
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.tool", trace.WithAttributes(
		attribute.String("tool.name", tool.Name),
		attribute.String("tool.provider", tool.Provider),
	))
	defer span.End()

	if tool.NeedsCredentials {
		if _, ok := s.Credentials[tool.Provider]; !ok {
			span.SetAttributes(attribute.Bool("tool.needs_login", true))
			return loginResult(tool, "sign in to "+tool.Provider+" to use "+tool.Name)
		}
	}

	args := Resolve(tool, raw, s, d.defaults)

	var key string
	if tool.Caches() {
		key = d.keys.Key(tool.Name, keyArgs(args))
		if cached, ok := d.cache.Get(ctx, key); ok {
			res, err := decodeCached(tool, cached)
			if err == nil {
				res.Cached = true
				span.SetAttributes(attribute.Bool("tool.cached", true))
				d.logger.Debug("tool cache hit", "tool", tool.Name, "key", key)
				return res
			}
			d.logger.Warn("discarding undecodable cache entry", "tool", tool.Name, "key", key, "error", err)
		}
	}

	payload, err := d.invoker.Invoke(ctx, tool.Provider, tool.Operation, args,
		mcp.CallOptions{Timeout: tool.Timeout, Retries: tool.Retries})
	if err != nil {
		span.RecordError(err)
		return d.failure(tool, err)
	}

	res := d.interpret(tool, payload)
	if res.OK() && tool.Caches() {
		if encoded, err := encodeCached(res); err == nil {
			d.cache.Set(ctx, key, encoded, tool.TTL)
			// Return exactly what a later hit will return.
			if again, err := decodeCached(tool, encoded); err == nil {
				res = again
			}
		}
	}
	span.SetAttributes(attribute.String("tool.result", res.Kind.String()))
	return res
}

// keyArgs drops credential fields so they never reach a cache key.
func keyArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if !isCredentialArg(k) {
			out[k] = v
		}
	}
	return out
}

func (d *Dispatcher) failure(tool Tool, err error) Result {
	var logic *mcp.LogicError
	if errors.As(err, &logic) {
		if mcp.IsLoginRequired(logic.Message) {
			return loginResult(tool, logic.Message)
		}
		return Result{Tool: tool.Name, Category: tool.Category, Kind: KindError, Error: logic.Message, Err: err}
	}
	d.logger.Warn("tool failed", "tool", tool.Name, "provider", tool.Provider, "error", err)
	return errorResult(tool.Name, tool.Category, err)
}

// interpret turns a successful payload into a Result. Login markers are only
// honoured in error text; opaque data such as a notice titled "Unauthorized
// parking" passes through unchanged.
func (d *Dispatcher) interpret(tool Tool, p mcp.Payload) Result {
	if !p.IsStructured() {
		if looksLikeError(p.Text) {
			if mcp.IsLoginRequired(p.Text) {
				return loginResult(tool, p.Text)
			}
			return errorResult(tool.Name, tool.Category, errors.New(p.Text))
		}
		return textResult(tool, p.Text)
	}

	if obj, ok := p.Object(); ok {
		if login, _ := obj["needs_login"].(bool); login {
			msg, _ := obj["message"].(string)
			return loginResult(tool, msg)
		}
		if msg, ok := obj["error"].(string); ok && msg != "" {
			if mcp.IsLoginRequired(msg) {
				return loginResult(tool, msg)
			}
			return errorResult(tool.Name, tool.Category, errors.New(msg))
		}
	}
	return dataResult(tool, normalize(tool.Category, p.Value))
}

func looksLikeError(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range []string{"error", "failed", "exception", "traceback"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
