package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Session is one handshake-bound conversation with a provider. The Invoker
// opens a new Session for every call and closes it on every exit path.
type Session interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (CallResult, error)
	Close() error
}

// SessionFactory starts a Session for a provider. Tests substitute fakes.
type SessionFactory func(ctx context.Context, p Provider) (Session, error)

// StdioConfig describes how to spawn a provider process.
type StdioConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Framing Framing

	// Stderr receives the provider's standard error. Defaults to io.Discard
	// so noisy scrapers do not interleave with the orchestrator's logs.
	Stderr io.Writer

	Options Options
}

// StdioSession owns exactly one provider subprocess and its client.
type StdioSession struct {
	*Client

	cmd       *exec.Cmd
	transport *stdioTransport
	closeOnce sync.Once
	closeErr  error
}

// killGrace bounds how long Close waits for the process to exit after kill.
const killGrace = 2 * time.Second

// StartStdio spawns the configured command and binds its pipes to a Client.
// The process is not tied to ctx: its lifetime is governed by Close so that a
// short handshake deadline cannot kill a session still in use.
func StartStdio(_ context.Context, cfg StdioConfig) (*StdioSession, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("mcp: stdio command is required")
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = io.Discard
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrTransport, err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrTransport, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrTransport, cfg.Command, err)
	}

	transport := newStdioTransport(stdin, stdout, cfg.Framing)
	client, err := NewClient(transport, cfg.Options)
	if err != nil {
		_ = transport.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	return &StdioSession{Client: client, cmd: cmd, transport: transport}, nil
}

// Close tears down the session: closes the pipes, kills the process and
// reaps it. Close is idempotent and safe to defer.
func (s *StdioSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.Client.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		waited := make(chan error, 1)
		go func() { waited <- s.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(killGrace):
			s.closeErr = fmt.Errorf("mcp: provider pid %d did not exit after kill", s.cmd.Process.Pid)
		}
	})
	return s.closeErr
}

// StdioFactory returns a SessionFactory that launches providers from their
// resolved root with the given framing and client options.
func StdioFactory(framing Framing, opts Options, stderr io.Writer) SessionFactory {
	return func(ctx context.Context, p Provider) (Session, error) {
		return StartStdio(ctx, StdioConfig{
			Command: p.Command,
			Args:    p.Args,
			Dir:     p.Root,
			Env:     p.Env,
			Framing: framing,
			Stderr:  stderr,
			Options: opts,
		})
	}
}
