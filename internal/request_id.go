package internal

import (
	"context"
	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// WithRequestID adds a request ID to the context.
// If the context already has a request ID, it returns the context unchanged.
func WithRequestID(ctx context.Context) context.Context {
	if _, ok := ctx.Value(requestIDKey).(string); ok {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, uuid.NewString())
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if no request ID is present.
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}
