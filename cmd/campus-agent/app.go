package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	agent "github.com/Protocol-Lattice/campus-agent"
	"github.com/Protocol-Lattice/campus-agent/src/cache"
	"github.com/Protocol-Lattice/campus-agent/src/config"
	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
	"github.com/Protocol-Lattice/campus-agent/src/mcp"
	"github.com/Protocol-Lattice/campus-agent/src/models"
	"github.com/Protocol-Lattice/campus-agent/src/observe"
)

// App carries what every command needs.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	now    func() time.Time
}

func newApp(configPath, logFormat, logLevel string, out, logOut io.Writer) (*App, error) {
	logger, err := newLogger(logFormat, logLevel, logOut)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &App{cfg: cfg, logger: logger, out: out, now: time.Now}, nil
}

func newLogger(format, level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}

func (a *App) invoker() (*mcp.Invoker, error) {
	registry, err := mcp.NewRegistry(a.cfg.ProviderSpecs(), a.cfg.RegistryOptions(a.logger))
	if err != nil {
		return nil, fmt.Errorf("resolve providers: %w", err)
	}
	opts, err := a.cfg.InvokerOptions(a.logger)
	if err != nil {
		return nil, err
	}
	return mcp.NewInvoker(registry, opts)
}

// stack is one fully wired orchestrator plus the resources it owns.
type stack struct {
	orchestrator *agent.Orchestrator
	results      *cache.ResultCache
	sink         observe.Sink
}

func (r *stack) Close(ctx context.Context) error {
	return errors.Join(r.sink.Close(ctx), r.results.Close())
}

// build wires config, providers, cache, dispatch, models and the record
// sink into an orchestrator.
func (a *App) build(ctx context.Context) (*stack, error) {
	cfg := a.cfg

	inv, err := a.invoker()
	if err != nil {
		return nil, err
	}
	dopts, err := cfg.DispatchOptions(a.now(), a.logger)
	if err != nil {
		return nil, err
	}
	results := cfg.ResultCache(a.logger)
	dispatcher := dispatch.New(inv, results, dopts)

	model, err := models.NewReasoningModel(cfg.Model.Provider, cfg.Model.Model, cfg.APIKey())
	if err != nil {
		return nil, err
	}
	local, err := models.NewLocalGenerator(cfg.Local.Provider, cfg.Local.Model, cfg.Local.Host)
	if err != nil {
		return nil, err
	}

	sink, err := observe.Open(ctx, cfg.ObserveConfig(), a.logger)
	if err != nil {
		return nil, err
	}

	orch, err := agent.New(agent.Options{
		Model:      model,
		Local:      local,
		Dispatcher: dispatcher,
		Sink:       sink,
		Classifier: agent.Classifier{
			DefaultComplex:    cfg.Agent.DefaultComplex,
			LongQuestionRunes: cfg.Agent.LongQuestionRunes,
		},
		MaxIterations:            cfg.Agent.MaxIterations,
		LocalConfidenceThreshold: cfg.Local.ConfidenceThreshold,
		MaxTokens:                cfg.Model.MaxTokens,
		Locale:                   cfg.Agent.Locale,
		RecordTimeout:            cfg.Observe.Timeout.Duration,
		Logger:                   a.logger,
		Now:                      a.now,
	})
	if err != nil {
		_ = sink.Close(context.WithoutCancel(ctx))
		_ = results.Close()
		return nil, err
	}
	return &stack{orchestrator: orch, results: results, sink: sink}, nil
}
