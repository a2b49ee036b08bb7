package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

// PayloadKind tags which arm of Payload is populated.
type PayloadKind int

const (
	// PayloadText holds provider output that was not valid JSON.
	PayloadText PayloadKind = iota
	// PayloadStructured holds decoded JSON.
	PayloadStructured
)

// Payload is the parsed result of one provider operation: either a decoded
// JSON value or opaque text. Callers must tolerate both shapes.
type Payload struct {
	Kind  PayloadKind
	Value any
	Text  string
}

// Structured wraps a decoded JSON value.
func Structured(v any) Payload { return Payload{Kind: PayloadStructured, Value: v} }

// Text wraps opaque provider output.
func Text(s string) Payload { return Payload{Kind: PayloadText, Text: s} }

// IsStructured reports whether the payload carries decoded JSON.
func (p Payload) IsStructured() bool { return p.Kind == PayloadStructured }

// Object returns the payload as a JSON object when it is one.
func (p Payload) Object() (map[string]any, bool) {
	if p.Kind != PayloadStructured {
		return nil, false
	}
	m, ok := p.Value.(map[string]any)
	return m, ok
}

// ParsePayload turns a CallResult into a Payload. structuredContent wins, then
// json content parts, then the concatenated text parts decoded as JSON, and
// finally the raw text.
func ParsePayload(r CallResult) Payload {
	if v, ok := decodeJSON(r.StructuredContent); ok {
		return Structured(v)
	}
	for _, part := range r.Content {
		if part.Type != "json" {
			continue
		}
		if v, ok := decodeJSON(part.Data); ok {
			return Structured(v)
		}
	}

	text := strings.TrimSpace(r.Text())
	if v, ok := decodeJSON([]byte(text)); ok {
		return Structured(v)
	}
	return Text(text)
}

func decodeJSON(data []byte) (any, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || (data[0] != '{' && data[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return v, true
}
