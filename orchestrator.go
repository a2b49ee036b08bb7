// Package agent answers campus questions. Simple questions may be settled by
// a local generator; everything else runs a bounded tool-calling loop
// against a remote reasoning model, with a rule-based fallback when that
// model is unreachable.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
	"github.com/Protocol-Lattice/campus-agent/src/models"
	"github.com/Protocol-Lattice/campus-agent/src/observe"
)

const (
	DefaultMaxIterations            = 5
	DefaultLocalConfidenceThreshold = 0.7
	DefaultLocale                   = "en"
)

const defaultSystemPrompt = "You are a campus assistant for university students. Use the tools to look up campus locations, notices, courses, graduation requirements, library status and cafeteria menus whenever the answer depends on campus data. Answer concisely from the tool results and never invent schedules, menus or credit counts."

// Dispatcher executes one tool call. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, raw map[string]any, s dispatch.Session) dispatch.Result
	Tools() []dispatch.Tool
}

// Options configure an Orchestrator.
type Options struct {
	Model      models.ReasoningModel
	Local      models.LocalGenerator
	Dispatcher Dispatcher
	Sink       observe.Sink
	Classifier Classifier

	MaxIterations            int
	LocalConfidenceThreshold float64
	MaxTokens                int
	SystemPrompt             string
	Locale                   string
	RecordTimeout            time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

// Orchestrator routes questions. It holds no per-query state and is safe
// for concurrent use.
type Orchestrator struct {
	model      models.ReasoningModel
	local      models.LocalGenerator
	dispatcher Dispatcher
	catalog    *ToolCatalog
	sink       observe.Sink
	classifier Classifier

	maxIterations int
	threshold     float64
	maxTokens     int
	systemPrompt  string
	locale        string
	recordTimeout time.Duration

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New validates opts and builds the tool catalog from the dispatcher.
func New(opts Options) (*Orchestrator, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a reasoning model")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("agent requires a tool dispatcher")
	}
	catalog, err := NewToolCatalog(opts.Dispatcher.Tools())
	if err != nil {
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}

	o := &Orchestrator{
		model:         opts.Model,
		local:         opts.Local,
		dispatcher:    opts.Dispatcher,
		catalog:       catalog,
		sink:          opts.Sink,
		classifier:    opts.Classifier,
		maxIterations: opts.MaxIterations,
		threshold:     opts.LocalConfidenceThreshold,
		maxTokens:     opts.MaxTokens,
		systemPrompt:  opts.SystemPrompt,
		locale:        opts.Locale,
		recordTimeout: opts.RecordTimeout,
		logger:        opts.Logger,
		tracer:        opts.Tracer,
		now:           opts.Now,
	}
	if o.maxIterations <= 0 {
		o.maxIterations = DefaultMaxIterations
	}
	if o.threshold <= 0 {
		o.threshold = DefaultLocalConfidenceThreshold
	}
	if strings.TrimSpace(o.systemPrompt) == "" {
		o.systemPrompt = defaultSystemPrompt
	}
	if o.locale == "" {
		o.locale = DefaultLocale
	}
	if o.sink == nil {
		o.sink = observe.Noop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/Protocol-Lattice/campus-agent")
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Catalog exposes the tool catalog sent to the model.
func (o *Orchestrator) Catalog() *ToolCatalog { return o.catalog }

// Ask answers q. It never panics and never returns an error: failures are
// reported in the Response. Exactly one observability record is emitted.
func (o *Orchestrator) Ask(ctx context.Context, q Query) (resp Response) {
	start := o.now()
	session := q.Session
	if session.Question == "" {
		session.Question = q.Text
	}
	locale := o.localeFor(session)

	ctx, span := o.tracer.Start(ctx, "agent.ask")
	defer span.End()

	var class Classification
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("query panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp = o.apology(class, locale, fmt.Errorf("internal error: %v", r))
		}
		resp.Latency = o.now().Sub(start)
		resp.LatencyMS = resp.Latency.Milliseconds()
		span.SetAttributes(
			attribute.String("agent.classification", string(resp.Classification)),
			attribute.String("agent.routing_decision", string(resp.RoutingDecision)),
			attribute.Bool("agent.success", resp.Success),
		)
		o.record(ctx, q, session, resp)
	}()

	if strings.TrimSpace(q.Text) == "" {
		return o.apology(Simple, locale, errors.New("question is empty"))
	}

	class, tags := o.classifier.Classify(q.Text)
	o.logger.Debug("question classified", "classification", class, "tags", tags)

	if class == Simple && o.local != nil {
		if text, ok := o.attemptLocal(ctx, q.Text); ok {
			return Response{
				Text:            text,
				Classification:  class,
				RoutingDecision: DecisionLocal,
				ToolsUsed:       []string{},
				Success:         true,
			}
		}
	}

	resp, acc, err := o.runRemote(ctx, q.Text, session, locale)
	if err == nil {
		resp.Classification = class
		return resp
	}

	o.logger.Warn("reasoning model failed, trying fallback", "error", err)
	if fb, ok := o.fallback(ctx, q.Text, session, locale, acc); ok {
		fb.Classification = class
		return fb
	}
	return o.apology(class, locale, err)
}

func (o *Orchestrator) attemptLocal(ctx context.Context, question string) (string, bool) {
	ans, err := o.local.Answer(ctx, question)
	if err != nil {
		o.logger.Debug("local generator failed, falling through", "error", err)
		return "", false
	}
	if ans.Confidence < o.threshold || strings.TrimSpace(ans.Text) == "" {
		o.logger.Debug("local answer below threshold", "confidence", ans.Confidence, "threshold", o.threshold)
		return "", false
	}
	return strings.TrimSpace(ans.Text), true
}

// fallback answers a recognized intent with its single tool. Failing that,
// results gathered before the model failed are compiled as a partial
// answer.
func (o *Orchestrator) fallback(ctx context.Context, text string, s dispatch.Session, locale string, gathered Accumulated) (Response, bool) {
	if in, ok := matchIntent(text); ok {
		res := o.dispatcher.Dispatch(ctx, in.tool, nil, s)
		if res.OK() {
			acc := Accumulate(Accumulated{}, in.tool, res)
			resp := responseFrom(acc)
			resp.Text = compileText("", acc, locale)
			resp.RoutingDecision = DecisionFallbackDirect
			return resp, true
		}
		o.logger.Warn("fallback tool failed", "intent", in.name, "tool", in.tool, "error", res.Error)
	}
	if !gathered.Empty() {
		resp := responseFrom(gathered)
		resp.Text = compileText("", gathered, locale)
		resp.RoutingDecision = DecisionRemotePartial
		return resp, true
	}
	return Response{}, false
}

func (o *Orchestrator) apology(class Classification, locale string, err error) Response {
	resp := Response{
		Text:            Apology(locale),
		Classification:  class,
		RoutingDecision: DecisionApology,
		ToolsUsed:       []string{},
		Success:         false,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (o *Orchestrator) record(ctx context.Context, q Query, s dispatch.Session, resp Response) {
	rec := observe.NewRecord(q.Text, s.UserID)
	rec.Classification = string(resp.Classification)
	rec.RoutingDecision = string(resp.RoutingDecision)
	rec.ToolsUsed = append(rec.ToolsUsed, resp.ToolsUsed...)
	rec.Response = resp.Text
	rec.LatencyMS = resp.LatencyMS
	rec.Success = resp.Success
	rec.Error = resp.Error
	observe.Emit(ctx, o.sink, rec, o.recordTimeout, o.logger)
}

func (o *Orchestrator) localeFor(s dispatch.Session) string {
	if strings.TrimSpace(s.Locale) != "" {
		return s.Locale
	}
	return o.locale
}
