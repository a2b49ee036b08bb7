package models

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const localSystemPrompt = `You answer short questions from university students.
Reply with a JSON object {"answer": string, "confidence": number between 0 and 1}.
Use a low confidence when the question needs live campus data such as menus, notices, seats or schedules.`

// OllamaGenerator implements LocalGenerator on a local Ollama server.
type OllamaGenerator struct {
	Client *ollama.Client
	Model  string
	System string
}

// NewOllamaGenerator connects to host, or OLLAMA_HOST, or the default
// local address.
func NewOllamaGenerator(model, host string) (*OllamaGenerator, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	return &OllamaGenerator{
		Client: ollama.NewClient(u, httpClient),
		Model:  model,
		System: localSystemPrompt,
	}, nil
}

func (o *OllamaGenerator) Answer(ctx context.Context, question string) (LocalAnswer, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:   o.Model,
		Prompt:  question,
		System:  o.System,
		Format:  json.RawMessage(`"json"`),
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	var text strings.Builder
	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return LocalAnswer{}, fmt.Errorf("ollama: %w", err)
	}
	return ParseLocalAnswer(text.String()), nil
}

// ParseLocalAnswer reads the generator's JSON reply. Anything that is not
// the expected object is kept as text with zero confidence.
func ParseLocalAnswer(raw string) LocalAnswer {
	raw = strings.TrimSpace(raw)
	var reply struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || strings.TrimSpace(reply.Answer) == "" {
		return LocalAnswer{Text: raw}
	}
	conf := reply.Confidence
	if math.IsNaN(conf) || conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return LocalAnswer{Text: strings.TrimSpace(reply.Answer), Confidence: conf}
}

var _ LocalGenerator = (*OllamaGenerator)(nil)
