package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Message is a published message as seen by an in-process handler.
type Message struct {
	RoutingKey string
	Payload    []byte
}

// Handler consumes messages for a set of routing keys.
type Handler interface {
	// RoutingKeys returns the routing keys this handler consumes.
	RoutingKeys() []string

	// Handle processes one message.
	Handle(ctx context.Context, msg Message) error
}

// Registry manages handlers and dispatches messages to them.
type Registry struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates a new handler registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Register adds a handler for its declared routing keys.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range h.RoutingKeys() {
		r.handlers[key] = append(r.handlers[key], h)
		r.logger.Debug("registered handler", "routing_key", key)
	}
}

// Handlers returns the handlers registered for routingKey.
func (r *Registry) Handlers(routingKey string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[routingKey]
}

// Dispatch sends msg to every handler of its routing key. All handlers run;
// their errors are joined.
func (r *Registry) Dispatch(ctx context.Context, msg Message) error {
	handlers := r.Handlers(msg.RoutingKey)
	if len(handlers) == 0 {
		r.logger.DebugContext(ctx, "no handlers for routing key", "routing_key", msg.RoutingKey)
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, msg); err != nil {
			r.logger.ErrorContext(ctx, "handler failed",
				"routing_key", msg.RoutingKey,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandlerCount returns the total number of registered handler instances.
func (r *Registry) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, hs := range r.handlers {
		count += len(hs)
	}
	return count
}
