// Package observe persists one record per answered query. Sinks are best
// effort: a failing or panicking sink never affects the caller.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	AnonymousUser         = "anonymous"
	DefaultRecordTimeout  = 2 * time.Second
	defaultCollectionName = "query_logs"
)

// Record describes one answered query.
type Record struct {
	ID              string    `json:"id" bson:"_id"`
	Question        string    `json:"question" bson:"question"`
	User            string    `json:"user" bson:"user"`
	Classification  string    `json:"classification" bson:"classification"`
	RoutingDecision string    `json:"routing_decision" bson:"routing_decision"`
	ToolsUsed       []string  `json:"tools_used" bson:"tools_used"`
	Response        string    `json:"response" bson:"response"`
	LatencyMS       int64     `json:"latency_ms" bson:"latency_ms"`
	Success         bool      `json:"success" bson:"success"`
	Error           string    `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// NewRecord fills the id, the creation time and the anonymous user.
func NewRecord(question, user string) Record {
	if user == "" {
		user = AnonymousUser
	}
	return Record{
		ID:        uuid.NewString(),
		Question:  question,
		User:      user,
		ToolsUsed: []string{},
		CreatedAt: time.Now().UTC(),
	}
}

// Sink stores records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Noop drops every record.
type Noop struct{}

func (Noop) Record(context.Context, Record) error { return nil }
func (Noop) Close(context.Context) error          { return nil }

// SlogSink writes records as structured log lines.
type SlogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (s SlogSink) Record(ctx context.Context, rec Record) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, s.Level, "query answered",
		"id", rec.ID,
		"user", rec.User,
		"classification", rec.Classification,
		"routing_decision", rec.RoutingDecision,
		"tools_used", rec.ToolsUsed,
		"latency_ms", rec.LatencyMS,
		"success", rec.Success,
		"error", rec.Error,
	)
	return nil
}

func (SlogSink) Close(context.Context) error { return nil }

// Emit hands rec to sink under its own timeout. Errors and panics are
// logged and swallowed.
func Emit(ctx context.Context, sink Sink, rec Record, timeout time.Duration, logger *slog.Logger) {
	if sink == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("observability sink panicked", "id", rec.ID, "panic", fmt.Sprint(r))
		}
	}()

	// Detached so a cancelled query is still recorded.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := sink.Record(writeCtx, rec); err != nil {
		logger.Warn("observability sink failed", "id", rec.ID, "error", err)
	}
}
