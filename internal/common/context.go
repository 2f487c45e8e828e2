package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyActorID   contextKey = "actor_id"
)

// SystemActor is recorded when no caller identity is known.
const SystemActor = "system"

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithActorID records who is acting (stored as created_by/updated_by).
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// ActorIDFromContext extracts the actor ID from context, SystemActor when absent.
func ActorIDFromContext(ctx context.Context) string {
	if actorID, ok := ctx.Value(ContextKeyActorID).(string); ok && actorID != "" {
		return actorID
	}
	return SystemActor
}
