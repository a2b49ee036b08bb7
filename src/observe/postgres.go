package observe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createQueryLogs = `
CREATE TABLE IF NOT EXISTS query_logs (
    id UUID PRIMARY KEY,
    question TEXT NOT NULL,
    user_id TEXT NOT NULL,
    classification TEXT NOT NULL DEFAULT '',
    routing_decision TEXT NOT NULL DEFAULT '',
    tools_used TEXT[] NOT NULL DEFAULT '{}',
    response TEXT NOT NULL DEFAULT '',
    latency_ms BIGINT NOT NULL DEFAULT 0,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS query_logs_created_idx ON query_logs (created_at);
`

const insertQueryLog = `
INSERT INTO query_logs (id, question, user_id, classification, routing_decision, tools_used, response, latency_ms, success, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING;
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink inserts one row per record into query_logs.
type PostgresSink struct {
	pool *pgxpool.Pool
	db   execer
}

// NewPostgresSink connects and creates the table when missing.
func NewPostgresSink(ctx context.Context, connStr string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	ps := &PostgresSink{pool: pool, db: pool}
	if err := ps.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresSink) CreateSchema(ctx context.Context) error {
	if ps == nil || ps.db == nil {
		return nil
	}
	if _, err := ps.db.Exec(ctx, createQueryLogs); err != nil {
		return fmt.Errorf("create query_logs: %w", err)
	}
	return nil
}

func (ps *PostgresSink) Record(ctx context.Context, rec Record) error {
	if ps == nil || ps.db == nil {
		return nil
	}
	tools := rec.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	_, err := ps.db.Exec(ctx, insertQueryLog,
		rec.ID, rec.Question, rec.User, rec.Classification, rec.RoutingDecision,
		tools, rec.Response, rec.LatencyMS, rec.Success, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log %s: %w", rec.ID, err)
	}
	return nil
}

func (ps *PostgresSink) Close(context.Context) error {
	if ps != nil && ps.pool != nil {
		ps.pool.Close()
	}
	return nil
}
