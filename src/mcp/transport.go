package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Framing selects how JSON-RPC messages are delimited on the pipe.
type Framing int

const (
	// FramingLine writes one JSON document per line (MCP stdio framing).
	FramingLine Framing = iota
	// FramingContentLength prefixes each message with a Content-Length header.
	FramingContentLength
)

// ParseFraming maps a configuration string onto a Framing value.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line", "ndjson":
		return FramingLine, nil
	case "content-length", "header":
		return FramingContentLength, nil
	default:
		return FramingLine, fmt.Errorf("mcp: unknown framing %q", s)
	}
}

// MaxMessageBytes bounds one framed message read from a provider.
const MaxMessageBytes = 16 << 20

// ErrMessageTooLarge reports a frame above MaxMessageBytes.
var ErrMessageTooLarge = errors.New("mcp: message exceeds size limit")

type frame struct {
	payload []byte
	err     error
}

// stdioTransport speaks to a provider through a pair of pipes. A background
// reader owns stdout so Receive can honour context deadlines even when the
// provider stops writing.
type stdioTransport struct {
	framing Framing
	writer  io.Writer
	closers []io.Closer
	writeMu sync.Mutex

	frames    chan frame
	done      chan struct{}
	closeOnce sync.Once
}

func newStdioTransport(stdin io.WriteCloser, stdout io.ReadCloser, framing Framing) *stdioTransport {
	t := &stdioTransport{
		framing: framing,
		writer:  stdin,
		closers: []io.Closer{stdin, stdout},
		frames:  make(chan frame, 8),
		done:    make(chan struct{}),
	}
	go t.readLoop(bufio.NewReader(stdout))
	return t
}

func (t *stdioTransport) readLoop(r *bufio.Reader) {
	for {
		payload, err := readMessage(r, t.framing)
		select {
		case t.frames <- frame{payload: payload, err: err}:
		case <-t.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (t *stdioTransport) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeMessage(t.writer, t.framing, payload); err != nil {
		return fmt.Errorf("mcp: write: %w", classifyPipeError(err))
	}
	return nil
}

func (t *stdioTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, fmt.Errorf("mcp: transport closed: %w", ErrConnectionClosed)
	case f := <-t.frames:
		if f.err != nil {
			return nil, fmt.Errorf("mcp: read: %w", classifyPipeError(f.err))
		}
		return f.payload, nil
	}
}

func (t *stdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		for _, c := range t.closers {
			if c == nil {
				continue
			}
			if e := c.Close(); e != nil && err == nil {
				err = e
			}
		}
	})
	return err
}

func writeMessage(w io.Writer, framing Framing, payload []byte) error {
	switch framing {
	case FramingContentLength:
		header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
		if _, err := io.WriteString(w, header); err != nil {
			return err
		}
		_, err := w.Write(payload)
		return err
	default:
		buf := make([]byte, 0, len(payload)+1)
		buf = append(buf, payload...)
		buf = append(buf, '\n')
		_, err := w.Write(buf)
		return err
	}
}

func readMessage(r *bufio.Reader, framing Framing) ([]byte, error) {
	if framing == FramingContentLength {
		length, err := readContentLength(r)
		if err != nil {
			return nil, err
		}
		if length > MaxMessageBytes {
			return nil, fmt.Errorf("%w: content length %d", ErrMessageTooLarge, length)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	for {
		line, err := readLine(r)
		trimmed := bytes.TrimSpace(line)
		// Providers occasionally print banners on stdout; only JSON objects count.
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// readLine reads through the next newline, refusing lines longer than
// MaxMessageBytes.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > MaxMessageBytes {
			return nil, ErrMessageTooLarge
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

func readContentLength(r *bufio.Reader) (int, error) {
	length := -1
	for {
		raw, err := readLine(r)
		if err != nil {
			return 0, err
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if line == "" {
			if length < 0 {
				return 0, errors.New("mcp: missing Content-Length header")
			}
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			value := strings.TrimSpace(line[len("content-length:"):])
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return 0, fmt.Errorf("mcp: invalid content length: %w", err)
			}
			length = parsed
		}
	}
	return length, nil
}
