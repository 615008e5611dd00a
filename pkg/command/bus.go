package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/plaenen/graphstore/pkg/graph"
)

// Handler processes a command envelope and returns the produced events.
type Handler interface {
	Handle(ctx context.Context, env *Envelope) ([]*graph.Event, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, env *Envelope) ([]*graph.Event, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) ([]*graph.Event, error) {
	return f(ctx, env)
}

// Middleware wraps handlers with cross-cutting concerns.
type Middleware func(Handler) Handler

// Bus routes command envelopes to registered handlers through a middleware
// chain. Middleware runs in registration order, first added outermost.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string]Handler
	middleware []Middleware
}

// NewBus creates an empty command bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Register registers a handler for a command type. Registering the same
// type twice is a programming error.
func (b *Bus) Register(commandType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[commandType]; exists {
		panic(fmt.Sprintf("handler already registered for command type: %s", commandType))
	}
	b.handlers[commandType] = handler
}

// Use adds middleware to the processing pipeline.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Send routes the envelope to its handler and returns the produced events.
func (b *Bus) Send(ctx context.Context, env *Envelope) ([]*graph.Event, error) {
	if env == nil || env.Command == nil {
		return nil, fmt.Errorf("%w: nil command", graph.ErrTypeMismatch)
	}

	b.mu.RLock()
	handler, exists := b.handlers[env.Command.CommandType()]
	middleware := b.middleware
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: no handler for %s", graph.ErrTypeMismatch, env.Command.CommandType())
	}

	final := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		final = middleware[i](final)
	}
	return final.Handle(ctx, env)
}

// RegisteredTypes returns the registered command types, for debugging.
func (b *Bus) RegisteredTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	return types
}
