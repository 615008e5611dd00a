package middleware

import (
	"context"
	"fmt"

	"github.com/asaskevich/govalidator"
	"github.com/plaenen/graphstore/pkg/command"
	"github.com/plaenen/graphstore/pkg/graph"
)

// identifierPattern is the accepted shape for entity and aggregate-local
// identifiers: printable, no whitespace, no subject-delimiter characters.
const identifierPattern = `^[^\s.*>]+$`

// ValidationMiddleware rejects malformed envelopes before they reach the
// state machine: a target aggregate must be named, and identifiers must not
// contain characters that would corrupt transport subjects.
func ValidationMiddleware() command.Middleware {
	return func(next command.Handler) command.Handler {
		return command.HandlerFunc(func(ctx context.Context, env *command.Envelope) ([]*graph.Event, error) {
			if env.Command.AggregateID() == "" {
				return nil, fmt.Errorf("%w: command has no target aggregate", graph.ErrUnknownAggregate)
			}
			if !govalidator.Matches(env.Command.AggregateID(), identifierPattern) {
				return nil, fmt.Errorf("%w: aggregate id %q", graph.ErrTypeMismatch, env.Command.AggregateID())
			}
			if env.Metadata.CommandID != "" && !govalidator.IsPrintableASCII(env.Metadata.CommandID) {
				return nil, fmt.Errorf("%w: command id is not printable", graph.ErrTypeMismatch)
			}
			return next.Handle(ctx, env)
		})
	}
}
