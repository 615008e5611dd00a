package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
)

// LoggingMiddleware logs command execution with timing information using slog.
func LoggingMiddleware(logger *slog.Logger) command.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next command.Handler) command.Handler {
		return command.HandlerFunc(func(ctx context.Context, env *command.Envelope) ([]*graph.Event, error) {
			start := time.Now()

			logger.InfoContext(ctx, "Executing command",
				slog.String("command_type", env.Command.CommandType()),
				slog.String("command_id", env.Metadata.CommandID),
				slog.String("aggregate_id", env.Command.AggregateID()),
				slog.String("correlation_id", env.Metadata.CorrelationID),
			)

			events, err := next.Handle(ctx, env)

			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "Command rejected",
					slog.String("command_type", env.Command.CommandType()),
					slog.String("command_id", env.Metadata.CommandID),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "Command executed successfully",
				slog.String("command_type", env.Command.CommandType()),
				slog.String("command_id", env.Metadata.CommandID),
				slog.Int("events_count", len(events)),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)

			return events, nil
		})
	}
}
