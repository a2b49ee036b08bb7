package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
	"github.com/Protocol-Lattice/campus-agent/src/models"
)

// runRemote drives the tool-calling loop for at most maxIterations model
// turns. It only returns an error when a model call fails; the results
// gathered so far are returned alongside it.
func (o *Orchestrator) runRemote(ctx context.Context, question string, s dispatch.Session, locale string) (Response, Accumulated, error) {
	var (
		acc      Accumulated
		lastText string
	)
	conversation := []models.Message{models.UserText(question)}
	system := o.systemFor(s, locale)
	specs := o.catalog.Specs()

	for iteration := 0; iteration < o.maxIterations; iteration++ {
		completion, err := o.complete(ctx, iteration, models.Request{
			System:    system,
			Messages:  conversation,
			Tools:     specs,
			MaxTokens: o.maxTokens,
		})
		if err != nil {
			return Response{}, acc, err
		}
		if text := completion.Text(); text != "" {
			lastText = text
		}

		uses := completion.ToolUses()
		switch {
		case len(uses) > 0:
			results := make([]models.Block, 0, len(uses))
			for _, use := range uses {
				res := o.dispatcher.Dispatch(ctx, use.ToolName, use.Input, s)
				o.logger.Debug("tool finished",
					"iteration", iteration,
					"tool", use.ToolName,
					"kind", res.Kind.String(),
					"cached", res.Cached,
				)
				acc = Accumulate(acc, use.ToolName, res)
				results = append(results, models.ToolResultBlock(use.ToolUseID, res.Content(), !res.OK()))
			}
			conversation = append(conversation,
				models.Message{Role: models.RoleAssistant, Blocks: completion.Blocks},
				models.Message{Role: models.RoleUser, Blocks: results},
			)
		case completion.StopReason == models.StopEndTurn:
			return o.finish(lastText, acc, locale, DecisionRemote), acc, nil
		default:
			o.logger.Info("model stopped without answering", "stop_reason", completion.StopReason, "iteration", iteration)
			return o.finish(lastText, acc, locale, DecisionRemotePartial), acc, nil
		}
	}

	o.logger.Warn("iteration budget exhausted", "max_iterations", o.maxIterations, "tools_used", acc.ToolsUsed)
	return o.finish(lastText, acc, locale, DecisionRemoteMaxIterations), acc, nil
}

func (o *Orchestrator) complete(ctx context.Context, iteration int, req models.Request) (c models.Completion, err error) {
	ctx, span := o.tracer.Start(ctx, "agent.iteration")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("agent.stop_reason", string(c.StopReason)),
				attribute.Int("agent.tool_uses", len(c.ToolUses())),
			)
		}
		span.End()
	}()
	span.SetAttributes(attribute.Int("agent.iteration", iteration))
	return o.model.Complete(ctx, req)
}

func (o *Orchestrator) finish(text string, acc Accumulated, locale string, decision RoutingDecision) Response {
	resp := responseFrom(acc)
	resp.Text = compileText(text, acc, locale)
	resp.RoutingDecision = decision
	return resp
}

// systemFor appends what is known about the student to the system prompt.
func (o *Orchestrator) systemFor(s dispatch.Session, locale string) string {
	var b strings.Builder
	b.WriteString(o.systemPrompt)

	var facts []string
	if s.Program != "" {
		facts = append(facts, "program: "+s.Program)
	}
	if s.AdmissionYear != 0 {
		facts = append(facts, "admission year: "+strconv.Itoa(s.AdmissionYear))
	}
	if s.Campus != "" {
		facts = append(facts, "campus: "+s.Campus)
	}
	if len(facts) > 0 {
		b.WriteString("\n\nStudent context:\n- ")
		b.WriteString(strings.Join(facts, "\n- "))
	}
	if lang := languageName(locale); lang != "" {
		fmt.Fprintf(&b, "\n\nReply in %s.", lang)
	}
	return b.String()
}

func languageName(locale string) string {
	switch strings.ToLower(locale) {
	case "ko", "ko-kr", "ko_kr":
		return "Korean"
	case "en", "en-us", "en_us", "en-gb":
		return "English"
	}
	return ""
}
