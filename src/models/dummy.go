package models

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned once a Scripted model has no turns left.
var ErrScriptExhausted = errors.New("models: scripted model has no more turns")

// Scripted is a ReasoningModel that replays canned turns. It records every
// request so tests can inspect what the loop sent.
type Scripted struct {
	mu       sync.Mutex
	turns    []Completion
	errs     []error
	Requests []Request
	// Repeat replays the last turn forever instead of failing.
	Repeat bool
}

func NewScripted(turns ...Completion) *Scripted {
	return &Scripted{turns: turns}
}

// FailWith queues an error for the next call.
func (s *Scripted) FailWith(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
	return s
}

func (s *Scripted) Complete(_ context.Context, req Request) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return Completion{}, err
	}
	if len(s.turns) == 0 {
		return Completion{}, ErrScriptExhausted
	}
	turn := s.turns[0]
	if len(s.turns) > 1 || !s.Repeat {
		s.turns = s.turns[1:]
	}
	return turn, nil
}

// Calls reports how many completions were requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// ToolCall builds a tool_use turn.
func ToolCall(id, name string, input map[string]any) Completion {
	return Completion{
		StopReason: StopToolUse,
		Blocks:     []Block{{Type: BlockToolUse, ToolUseID: id, ToolName: name, Input: input}},
	}
}

// FinalText builds an end_turn turn.
func FinalText(text string) Completion {
	return Completion{StopReason: StopEndTurn, Blocks: []Block{TextBlock(text)}}
}

// StaticGenerator is a LocalGenerator with a fixed reply.
type StaticGenerator struct {
	Reply LocalAnswer
	Err   error
}

func (g StaticGenerator) Answer(context.Context, string) (LocalAnswer, error) {
	return g.Reply, g.Err
}

var (
	_ ReasoningModel = (*Scripted)(nil)
	_ LocalGenerator = StaticGenerator{}
)
