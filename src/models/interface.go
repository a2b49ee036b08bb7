package models

import (
	"context"
	"errors"
	"strings"
)

// ErrRemote wraps every failure of a remote reasoning model call.
var ErrRemote = errors.New("models: remote model error")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one piece of message content. Tool-use blocks carry ToolUseID,
// ToolName and Input; tool-result blocks carry ToolUseID, Content and
// IsError.
type Block struct {
	Type      BlockType
	Text      string
	ToolUseID string
	ToolName  string
	Input     map[string]any
	Content   string
	IsError   bool
}

func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

type Message struct {
	Role   Role
	Blocks []Block
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// ToolSpec is one entry of the tool catalog sent to the model. Parameters
// is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// Completion is one model turn.
type Completion struct {
	StopReason StopReason
	Blocks     []Block
}

// Text concatenates the text blocks.
func (c Completion) Text() string {
	var parts []string
	for _, b := range c.Blocks {
		if b.Type == BlockText && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool-use blocks in order.
func (c Completion) ToolUses() []Block {
	var out []Block
	for _, b := range c.Blocks {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ReasoningModel is a remote model that can request tool calls.
type ReasoningModel interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// LocalAnswer is a cheap-path answer with the generator's own confidence
// in [0, 1].
type LocalAnswer struct {
	Text       string
	Confidence float64
}

// LocalGenerator answers simple questions without tools.
type LocalGenerator interface {
	Answer(ctx context.Context, question string) (LocalAnswer, error)
}
