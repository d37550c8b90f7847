package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// InProcessBus is an in-memory bus for local mode (no broker). Messages are
// dispatched synchronously and handler errors are returned to the publisher.
type InProcessBus struct {
	registry *Registry
	logger   *slog.Logger
}

// NewInProcessBus creates a new in-process bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		registry: NewRegistry(logger),
		logger:   logger,
	}
}

// Register registers a message handler.
func (b *InProcessBus) Register(h Handler) {
	b.registry.Register(h)
}

// Publish dispatches the message to the handlers of routingKey.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	start := time.Now()
	err := b.registry.Dispatch(ctx, Message{RoutingKey: routingKey, Payload: payload})

	b.logger.DebugContext(ctx, "message dispatched",
		"routing_key", routingKey,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return err
}

// Close is a no-op for the in-process bus.
func (b *InProcessBus) Close() error {
	return nil
}

// Registry returns the underlying handler registry.
func (b *InProcessBus) Registry() *Registry {
	return b.registry
}

// LogHandler writes every message it receives to a logger. Local mode
// registers it so delivered reminders are visible without a broker.
type LogHandler struct {
	keys   []string
	logger *slog.Logger
}

// NewLogHandler creates a handler for the given routing keys.
func NewLogHandler(logger *slog.Logger, routingKeys ...string) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{keys: routingKeys, logger: logger}
}

func (h *LogHandler) RoutingKeys() []string { return h.keys }

func (h *LogHandler) Handle(ctx context.Context, msg Message) error {
	h.logger.InfoContext(ctx, "notification delivered",
		"routing_key", msg.RoutingKey,
		"payload", string(msg.Payload),
	)
	return nil
}
