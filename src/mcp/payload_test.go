package mcp

import (
	"encoding/json"
	"testing"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name       string
		result     CallResult
		structured bool
		text       string
	}{
		{
			name:       "fragments joined then decoded",
			result:     CallResult{Content: []Content{{Type: "text", Text: `{"notices":`}, {Type: "text", Text: `[]}`}}},
			structured: true,
		},
		{
			name:       "structured content wins",
			result:     CallResult{StructuredContent: json.RawMessage(`{"a":1}`), Content: []Content{{Type: "text", Text: "ignored"}}},
			structured: true,
		},
		{
			name:       "json part",
			result:     CallResult{Content: []Content{{Type: "json", Data: json.RawMessage(`[1,2]`)}}},
			structured: true,
		},
		{
			name:   "plain text kept raw",
			result: CallResult{Content: []Content{{Type: "text", Text: "  Library opens at 9  "}}},
			text:   "Library opens at 9",
		},
		{
			name:   "broken json kept raw",
			result: CallResult{Content: []Content{{Type: "text", Text: `{"oops"`}}},
			text:   `{"oops"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePayload(tc.result)
			if got.IsStructured() != tc.structured {
				t.Fatalf("structured=%v, want %v (%#v)", got.IsStructured(), tc.structured, got)
			}
			if !tc.structured && got.Text != tc.text {
				t.Fatalf("text=%q, want %q", got.Text, tc.text)
			}
		})
	}
}

func TestPayloadObject(t *testing.T) {
	p := ParsePayload(CallResult{Content: []Content{{Type: "text", Text: `{"k":"v"}`}}})
	obj, ok := p.Object()
	if !ok || obj["k"] != "v" {
		t.Fatalf("unexpected object %#v", obj)
	}
	if _, ok := Text("x").Object(); ok {
		t.Fatalf("text payload reported as object")
	}
}

func TestIsLoginRequired(t *testing.T) {
	if !IsLoginRequired("Error: LOGIN REQUIRED for portal") {
		t.Fatalf("expected login marker")
	}
	if IsLoginRequired("no seats available") {
		t.Fatalf("false positive")
	}
}
