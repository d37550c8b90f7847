package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	requestIDCtxKey     contextKey = "request_id"
	eventIDCtxKey       contextKey = "event_id"
	reminderIDCtxKey    contextKey = "reminder_id"
)

// Standard attribute keys used in logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	EventIDKey       = "event_id"
	ReminderIDKey    = "reminder_id"
	ChannelKey       = "channel"
	ErrorKey         = "error"
)

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

// WithRequestID adds a request ID to the context.
// If id is empty, a new UUID is generated.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDCtxKey)
}

// WithEventID tags the context with the event being worked on.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDCtxKey, id)
}

// EventIDFromContext extracts the event ID from context.
func EventIDFromContext(ctx context.Context) string {
	return stringValue(ctx, eventIDCtxKey)
}

// WithReminderID tags the context with the reminder being dispatched.
func WithReminderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reminderIDCtxKey, id)
}

// ReminderIDFromContext extracts the reminder ID from context.
func ReminderIDFromContext(ctx context.Context) string {
	return stringValue(ctx, reminderIDCtxKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
