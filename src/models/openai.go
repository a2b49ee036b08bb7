package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAIModel implements ReasoningModel on chat completions with function
// calling.
type OpenAIModel struct {
	Client    *openai.Client
	Model     string
	MaxTokens int
}

// NewOpenAIModel constructs a client. An empty apiKey falls back to
// OPENAI_API_KEY, then OPENAI_KEY.
func NewOpenAIModel(model, apiKey string) *OpenAIModel {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY")
	}
	return &OpenAIModel{Client: openai.NewClient(apiKey), Model: model, MaxTokens: defaultMaxTokens}
}

func (o *OpenAIModel) Complete(ctx context.Context, req Request) (Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.MaxTokens
	}

	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.Model,
		MaxTokens: maxTokens,
		Messages:  toOpenAIMessages(req.System, req.Messages),
		Tools:     toOpenAITools(req.Tools),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("openai: %w: %w", ErrRemote, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai: %w: %w", ErrRemote, errors.New("no choices in response"))
	}
	return fromOpenAIChoice(resp.Choices[0])
}

// toOpenAIMessages flattens blocks: assistant tool uses become ToolCalls and
// each tool result becomes its own "tool" message.
func toOpenAIMessages(system string, msgs []Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, b := range m.Blocks {
				switch b.Type {
				case BlockText:
					msg.Content += b.Text
				case BlockToolUse:
					args, _ := json.Marshal(b.Input)
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:       b.ToolUseID,
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: b.ToolName, Arguments: string(args)},
					})
				}
			}
			out = append(out, msg)
			continue
		}

		var text string
		for _, b := range m.Blocks {
			switch b.Type {
			case BlockText:
				text += b.Text
			case BlockToolResult:
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: b.ToolUseID,
					Content:    b.Content,
				})
			}
		}
		if text != "" {
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
		}
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIChoice(choice openai.ChatCompletionChoice) (Completion, error) {
	c := Completion{}
	if choice.Message.Content != "" {
		c.Blocks = append(c.Blocks, TextBlock(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		input := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return Completion{}, fmt.Errorf("openai: %w: decode arguments for %s: %w", ErrRemote, call.Function.Name, err)
			}
		}
		c.Blocks = append(c.Blocks, Block{Type: BlockToolUse, ToolUseID: call.ID, ToolName: call.Function.Name, Input: input})
	}

	switch choice.FinishReason {
	case openai.FinishReasonStop:
		c.StopReason = StopEndTurn
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		c.StopReason = StopToolUse
	case openai.FinishReasonLength:
		c.StopReason = StopMaxTokens
	default:
		c.StopReason = StopOther
	}
	if c.StopReason != StopToolUse && len(c.ToolUses()) > 0 {
		c.StopReason = StopToolUse
	}
	return c, nil
}

var _ ReasoningModel = (*OpenAIModel)(nil)
