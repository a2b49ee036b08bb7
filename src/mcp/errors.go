package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
)

var (
	// ErrProviderUnavailable reports a provider whose root could not be found
	// at startup. Calls to it fail fast and are never retried.
	ErrProviderUnavailable = errors.New("mcp: provider unavailable")
	// ErrToolTimeout reports a handshake or call that exceeded its deadline.
	ErrToolTimeout = errors.New("mcp: tool timeout")
	// ErrTransport reports a failure to spawn or talk to the provider process.
	ErrTransport = errors.New("mcp: transport error")
	// ErrConnectionClosed reports that the provider went away mid-session.
	ErrConnectionClosed = errors.New("mcp: connection closed")
)

// maxCauses bounds the inner-error summaries kept on a ToolError.
const maxCauses = 3

// LogicError is a well-formed domain failure reported by the provider itself
// (for example "no such course"). It is surfaced verbatim and never retried.
type LogicError struct {
	Operation string
	Message   string
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("mcp: tool %s failed: %s", e.Operation, e.Message)
}

// ToolError is the final failure of an invocation after all attempts.
type ToolError struct {
	Provider  string
	Operation string
	Attempts  int
	Causes    []string
	Err       error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mcp: %s.%s failed after %d attempt(s)", e.Provider, e.Operation, e.Attempts)
	if len(e.Causes) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Causes, "; "))
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

// IsConnectionClosed reports whether err belongs to the "connection closed"
// failure class that earns a longer backoff.
func IsConnectionClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

// IsLoginRequired reports whether a provider message signals missing or
// expired credentials.
func IsLoginRequired(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range []string{"login required", "login_required", "not logged in", "unauthorized", "session expired", "로그인"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifyPipeError tags low-level pipe failures so retry policy can tell a
// vanished provider from other transport problems.
func classifyPipeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, fs.ErrClosed),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

// classifyAttemptError maps context expiry onto ErrToolTimeout while keeping
// the original error reachable through errors.Is.
func classifyAttemptError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", stage, ErrToolTimeout, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func summarize(err error) string {
	msg := err.Error()
	const limit = 200
	if len(msg) > limit {
		msg = msg[:limit-3] + "..."
	}
	return msg
}
