package middleware

import (
	"context"

	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware wraps command handling in an OpenTelemetry span.
func TracingMiddleware(tracer trace.Tracer) command.Middleware {
	return func(next command.Handler) command.Handler {
		return command.HandlerFunc(func(ctx context.Context, env *command.Envelope) ([]*graph.Event, error) {
			ctx, span := tracer.Start(ctx, "command.handle",
				trace.WithAttributes(
					attribute.String("command.type", env.Command.CommandType()),
					attribute.String("command.id", env.Metadata.CommandID),
					attribute.String("aggregate.id", env.Command.AggregateID()),
					attribute.String("correlation.id", env.Metadata.CorrelationID),
				),
			)
			defer span.End()

			events, err := next.Handle(ctx, env)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			span.SetAttributes(attribute.Int("events.count", len(events)))
			return events, nil
		})
	}
}
