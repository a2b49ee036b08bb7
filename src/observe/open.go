package observe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Config selects and addresses a sink.
type Config struct {
	// Kind is one of mongo, postgres, slog or none.
	Kind        string
	MongoURI    string
	Database    string
	Collection  string
	PostgresURL string
}

// Open builds the configured sink. An unreachable backend degrades to the
// slog sink with a warning.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "none", "noop":
		return Noop{}, nil
	case "slog", "log":
		return SlogSink{Logger: logger}, nil
	case "mongo", "mongodb":
		sink, err := NewMongoSink(ctx, cfg.MongoURI, cfg.Database, cfg.Collection)
		if err != nil {
			logger.Warn("mongo sink unavailable, logging records instead", "error", err)
			return SlogSink{Logger: logger}, nil
		}
		return sink, nil
	case "postgres", "postgresql", "pg":
		sink, err := NewPostgresSink(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Warn("postgres sink unavailable, logging records instead", "error", err)
			return SlogSink{Logger: logger}, nil
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown observability sink: %s", cfg.Kind)
	}
}
