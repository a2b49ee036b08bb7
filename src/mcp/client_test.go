package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClientListAndCall(t *testing.T) {
	for _, framing := range []Framing{FramingLine, FramingContentLength} {
		t.Run(fmt.Sprintf("framing=%d", framing), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			clientTransport, server := newInMemoryPair(framing)
			server.handleInitialize()
			server.handle("tools/list", func(params json.RawMessage) (any, *rpcError) {
				return map[string]any{
					"tools": []ToolDefinition{{Name: "search_location", Description: "Find a building"}},
				}, nil
			})
			server.handle("tools/call", func(params json.RawMessage) (any, *rpcError) {
				var payload struct {
					Name      string         `json:"name"`
					Arguments map[string]any `json:"arguments"`
				}
				if err := json.Unmarshal(params, &payload); err != nil {
					return nil, &rpcError{Code: -32602, Message: err.Error()}
				}
				query, _ := payload.Arguments["query"].(string)
				return CallResult{Content: []Content{{Type: "text", Text: "found:" + query}}}, nil
			})
			go server.serve()

			client, err := NewClient(clientTransport, Options{})
			if err != nil {
				t.Fatalf("NewClient error: %v", err)
			}
			defer client.Close()

			if err := client.Initialize(ctx); err != nil {
				t.Fatalf("Initialize error: %v", err)
			}
			if got := client.Server().Name; got != "mock-provider" {
				t.Fatalf("unexpected server name %q", got)
			}

			tools, err := client.ListTools(ctx)
			if err != nil {
				t.Fatalf("ListTools error: %v", err)
			}
			if len(tools) != 1 || tools[0].Name != "search_location" {
				t.Fatalf("unexpected tools: %#v", tools)
			}

			result, err := client.CallTool(ctx, "search_location", map[string]any{"query": "library"})
			if err != nil {
				t.Fatalf("CallTool error: %v", err)
			}
			if got := result.Text(); got != "found:library" {
				t.Fatalf("unexpected result: %s", got)
			}
			if n := server.notifications(); n != 1 {
				t.Fatalf("expected one initialized notification, got %d", n)
			}
		})
	}
}

func TestClientCallToolLogicError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientTransport, server := newInMemoryPair(FramingLine)
	server.handleInitialize()
	server.handle("tools/call", func(params json.RawMessage) (any, *rpcError) {
		return CallResult{IsError: true, Content: []Content{{Type: "text", Text: "no such course"}}}, nil
	})
	go server.serve()

	client, _ := NewClient(clientTransport, Options{})
	defer client.Close()
	if err := client.Initialize(ctx); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	_, err := client.CallTool(ctx, "search_courses", nil)
	var logic *LogicError
	if !errors.As(err, &logic) || logic.Message != "no such course" {
		t.Fatalf("expected logic error, got %v", err)
	}
}

func TestClientReceiveHonoursDeadline(t *testing.T) {
	clientTransport, server := newInMemoryPair(FramingLine)
	server.handle("initialize", func(params json.RawMessage) (any, *rpcError) {
		time.Sleep(time.Second)
		return map[string]any{}, nil
	})
	go server.serve()

	client, _ := NewClient(clientTransport, Options{})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.Initialize(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestClientClosedPeerIsConnectionClosed(t *testing.T) {
	clientTransport, server := newInMemoryPair(FramingLine)
	server.handle("initialize", func(params json.RawMessage) (any, *rpcError) {
		return nil, nil
	})
	server.closeOnNext = true
	go server.serve()

	client, _ := NewClient(clientTransport, Options{})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := client.Initialize(ctx)
	if !IsConnectionClosed(err) {
		t.Fatalf("expected connection closed, got %v", err)
	}
}

func TestReadMessageSkipsBanners(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("starting provider...\n\n{\"jsonrpc\":\"2.0\"}\n"))
	msg, err := readMessage(r, FramingLine)
	if err != nil {
		t.Fatalf("readMessage error: %v", err)
	}
	if string(msg) != `{"jsonrpc":"2.0"}` {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestReadMessageRejectsOversizedFrames(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("Content-Length: 9223372036854775807\r\n\r\n{}"))
	if _, err := readMessage(r, FramingContentLength); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge for huge Content-Length, got %v", err)
	}

	long := "{" + strings.Repeat("x", MaxMessageBytes) + "}\n"
	r = bufio.NewReader(strings.NewReader(long))
	if _, err := readMessage(r, FramingLine); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge for long line, got %v", err)
	}

	r = bufio.NewReader(strings.NewReader("Content-Length: 2\r\n\r\n{}"))
	msg, err := readMessage(r, FramingContentLength)
	if err != nil || string(msg) != "{}" {
		t.Fatalf("readMessage = %q, %v", msg, err)
	}
}

func TestOversizedFrameSurfacesAsTransportError(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	defer stdinR.Close()
	tr := newStdioTransport(stdinW, stdoutR, FramingContentLength)
	defer tr.Close()

	go func() {
		_, _ = io.WriteString(stdoutW, "Content-Length: 999999999999\r\n\r\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := tr.Receive(ctx)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected transport error for oversized frame, got %v", err)
	}
}

func TestParseFraming(t *testing.T) {
	cases := map[string]Framing{"": FramingLine, "line": FramingLine, "Content-Length": FramingContentLength}
	for in, want := range cases {
		got, err := ParseFraming(in)
		if err != nil || got != want {
			t.Fatalf("ParseFraming(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFraming("xml"); err == nil {
		t.Fatalf("expected error for unknown framing")
	}
}

// ----------------------------------------------------------------------------
// Helpers

type inMemoryServer struct {
	framing     Framing
	reader      *bufio.Reader
	writer      io.WriteCloser
	handlers    map[string]func(params json.RawMessage) (any, *rpcError)
	mu          sync.RWMutex
	notified    int
	closeOnNext bool
}

func newInMemoryPair(framing Framing) (Transport, *inMemoryServer) {
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	transport := newStdioTransport(clientWrite, clientRead, framing)
	server := &inMemoryServer{
		framing:  framing,
		reader:   bufio.NewReader(serverRead),
		writer:   serverWrite,
		handlers: make(map[string]func(params json.RawMessage) (any, *rpcError)),
	}
	return transport, server
}

func (s *inMemoryServer) handle(method string, fn func(params json.RawMessage) (any, *rpcError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

func (s *inMemoryServer) handleInitialize() {
	s.handle("initialize", func(params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock-provider", "version": "1.0.0"},
		}, nil
	})
}

func (s *inMemoryServer) notifications() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notified
}

func (s *inMemoryServer) serve() {
	for {
		payload, err := readMessage(s.reader, s.framing)
		if err != nil {
			return
		}
		if s.closeOnNext {
			_ = s.writer.Close()
			return
		}

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}
		if len(req.ID) == 0 {
			s.mu.Lock()
			s.notified++
			s.mu.Unlock()
			continue
		}

		s.mu.RLock()
		handler := s.handlers[req.Method]
		s.mu.RUnlock()

		resp := responseEnvelope{JSONRPC: "2.0", ID: req.ID}
		if handler == nil {
			resp.Error = &rpcError{Code: -32601, Message: "method not found"}
		} else if result, rpcErr := handler(req.Params); rpcErr != nil {
			resp.Error = rpcErr
		} else {
			encoded, _ := json.Marshal(result)
			resp.Result = encoded
		}
		encoded, _ := json.Marshal(resp)
		if err := writeMessage(s.writer, s.framing, encoded); err != nil {
			return
		}
	}
}
