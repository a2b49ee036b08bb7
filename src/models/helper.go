package models

import (
	"fmt"
	"strings"
)

// NewReasoningModel returns the remote model for provider.
func NewReasoningModel(provider, model, apiKey string) (ReasoningModel, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "anthropic", "claude":
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return NewAnthropicModel(model, apiKey), nil
	case "openai":
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIModel(model, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// NewLocalGenerator returns the cheap-path generator for provider. An empty
// provider disables the local path.
func NewLocalGenerator(provider, model, host string) (LocalGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "none":
		return nil, nil
	case "ollama":
		if model == "" {
			model = "llama3.2"
		}
		g, err := NewOllamaGenerator(model, host)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown local provider: %s", provider)
	}
}
