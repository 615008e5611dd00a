package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
)

// RecoveryMiddleware recovers from panics in command handlers.
func RecoveryMiddleware(logger *slog.Logger) command.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next command.Handler) command.Handler {
		return command.HandlerFunc(func(ctx context.Context, env *command.Envelope) (events []*graph.Event, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := string(debug.Stack())

					logger.ErrorContext(ctx, "Command handler panicked",
						slog.String("command_id", env.Metadata.CommandID),
						slog.String("command_type", env.Command.CommandType()),
						slog.Any("panic", r),
						slog.String("stack_trace", stack),
					)

					err = fmt.Errorf("command handler panicked: %v", r)
					events = nil
				}
			}()

			return next.Handle(ctx, env)
		})
	}
}
