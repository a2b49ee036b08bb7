package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultHandshakeFloor     = 20 * time.Second
	DefaultCallFloor          = 10 * time.Second
	DefaultProbeTimeout       = 5 * time.Second
	DefaultBackoffBase        = 500 * time.Millisecond
	DefaultClosedBackoffFloor = 2 * time.Second
)

// CallOptions is the per-tool budget for one invocation.
type CallOptions struct {
	Timeout time.Duration
	Retries int
}

// InvokerOptions configure an Invoker. Zero values fall back to the defaults.
type InvokerOptions struct {
	HandshakeFloor     time.Duration
	CallFloor          time.Duration
	ProbeTimeout       time.Duration
	BackoffBase        time.Duration
	ClosedBackoffFloor time.Duration

	// ProbeCapabilities lists the provider's tools after the handshake.
	// Failures are logged and otherwise ignored.
	ProbeCapabilities bool

	Factory SessionFactory
	Logger  *slog.Logger
	Tracer  trace.Tracer

	// Sleep waits between attempts; tests replace it to observe backoff.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Invoker runs provider operations, one fresh Session per attempt.
type Invoker struct {
	registry *Registry
	opts     InvokerOptions
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewInvoker builds an Invoker over a resolved Registry.
func NewInvoker(registry *Registry, opts InvokerOptions) (*Invoker, error) {
	if registry == nil {
		return nil, errors.New("mcp: invoker requires a registry")
	}
	if opts.HandshakeFloor <= 0 {
		opts.HandshakeFloor = DefaultHandshakeFloor
	}
	if opts.CallFloor <= 0 {
		opts.CallFloor = DefaultCallFloor
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.ClosedBackoffFloor <= 0 {
		opts.ClosedBackoffFloor = DefaultClosedBackoffFloor
	}
	if opts.Factory == nil {
		opts.Factory = StdioFactory(FramingLine, Options{}, nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/Protocol-Lattice/campus-agent/src/mcp")
	}

	return &Invoker{registry: registry, opts: opts, logger: logger, tracer: tracer}, nil
}

// Registry exposes the provider registry the invoker was built with.
func (inv *Invoker) Registry() *Registry { return inv.registry }

// Invoke runs operation on provider with arguments. It makes at most
// co.Retries+1 attempts, sleeping BackoffBase*attempt between them (raised to
// ClosedBackoffFloor when the provider dropped the connection). Logic errors
// and unavailable providers are not retried. The final failure is a
// *ToolError.
func (inv *Invoker) Invoke(ctx context.Context, provider, operation string, arguments map[string]any, co CallOptions) (Payload, error) {
	ctx, span := inv.tracer.Start(ctx, "mcp.invoke", trace.WithAttributes(
		attribute.String("mcp.provider", provider),
		attribute.String("mcp.operation", operation),
	))
	defer span.End()

	p, ok := inv.registry.Lookup(provider)
	if !ok || !p.Available {
		err := &ToolError{Provider: provider, Operation: operation, Err: ErrProviderUnavailable,
			Causes: []string{ErrProviderUnavailable.Error()}}
		span.SetStatus(codes.Error, err.Error())
		return Payload{}, err
	}

	retries := max(co.Retries, 0)
	var (
		causes  []string
		lastErr error
		attempt int
	)
	for {
		attempt++
		payload, err := inv.attempt(ctx, p, operation, arguments, co.Timeout)
		if err == nil {
			span.SetAttributes(attribute.Int("mcp.attempts", attempt))
			return payload, nil
		}

		lastErr = err
		if len(causes) < maxCauses {
			causes = append(causes, fmt.Sprintf("attempt %d: %s", attempt, summarize(err)))
		}

		var logic *LogicError
		if errors.As(err, &logic) || attempt > retries || ctx.Err() != nil {
			break
		}

		delay := inv.backoff(attempt, err)
		inv.logger.Warn("provider call failed; retrying",
			"provider", p.Name, "operation", operation, "attempt", attempt, "delay", delay, "error", err)
		if err := inv.opts.Sleep(ctx, delay); err != nil {
			break
		}
	}

	toolErr := &ToolError{Provider: p.Name, Operation: operation, Attempts: attempt, Causes: causes, Err: lastErr}
	span.SetAttributes(attribute.Int("mcp.attempts", attempt))
	span.RecordError(toolErr)
	span.SetStatus(codes.Error, toolErr.Error())
	return Payload{}, toolErr
}

// Capabilities opens a session and lists the provider's tools.
func (inv *Invoker) Capabilities(ctx context.Context, provider string) ([]ToolDefinition, error) {
	p, ok := inv.registry.Lookup(provider)
	if !ok || !p.Available {
		return nil, fmt.Errorf("%s: %w", provider, ErrProviderUnavailable)
	}

	mu := inv.registry.lock(p.Name)
	mu.Lock()
	defer mu.Unlock()

	session, err := inv.opts.Factory(ctx, p)
	if err != nil {
		return nil, classifyAttemptError("spawn", err)
	}
	defer session.Close()

	hctx, cancel := context.WithTimeout(ctx, inv.opts.HandshakeFloor)
	defer cancel()
	if err := session.Initialize(hctx); err != nil {
		return nil, classifyAttemptError("initialize", err)
	}
	tools, err := session.ListTools(hctx)
	if err != nil {
		return nil, classifyAttemptError("list tools", err)
	}
	return tools, nil
}

// attempt performs one spawn/handshake/call/teardown cycle while holding the
// provider's mutex.
func (inv *Invoker) attempt(ctx context.Context, p Provider, operation string, arguments map[string]any, timeout time.Duration) (Payload, error) {
	mu := inv.registry.lock(p.Name)
	mu.Lock()
	defer mu.Unlock()

	session, err := inv.opts.Factory(ctx, p)
	if err != nil {
		return Payload{}, classifyAttemptError("spawn", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			inv.logger.Debug("provider teardown", "provider", p.Name, "error", cerr)
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, max(timeout, inv.opts.HandshakeFloor))
	err = session.Initialize(hctx)
	cancel()
	if err != nil {
		return Payload{}, classifyAttemptError("initialize", err)
	}

	if inv.opts.ProbeCapabilities {
		pctx, cancel := context.WithTimeout(ctx, inv.opts.ProbeTimeout)
		if _, err := session.ListTools(pctx); err != nil {
			inv.logger.Debug("capability probe failed", "provider", p.Name, "error", err)
		}
		cancel()
	}

	cctx, cancel := context.WithTimeout(ctx, max(timeout, inv.opts.CallFloor))
	defer cancel()
	result, err := session.CallTool(cctx, operation, arguments)
	if err != nil {
		return Payload{}, classifyAttemptError("call", err)
	}
	return ParsePayload(result), nil
}

func (inv *Invoker) backoff(attempt int, err error) time.Duration {
	delay := inv.opts.BackoffBase * time.Duration(attempt)
	if IsConnectionClosed(err) && delay < inv.opts.ClosedBackoffFloor {
		delay = inv.opts.ClosedBackoffFloor
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
