package events

import (
	"context"
	"io"
	"os"
)

type contextKey int

const (
	loggerKey contextKey = iota
	sessionIDKey
	userIDKey
)

var defaultLogger = NewTestLogger(InfoLevel, "text", os.Stdout)

// Discard returns a logger that drops all output.
func Discard() *Logger {
	return NewTestLogger(ErrorLevel, "text", io.Discard)
}

// FromContext extracts the logger from a context, falling back to the
// package default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithSessionID tags the context and its logger with a session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("session_id", id)
	ctx = context.WithValue(ctx, sessionIDKey, id)
	return WithLogger(ctx, logger)
}

// WithUserID tags the context and its logger with a user ID.
func WithUserID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("user_id", id)
	ctx = context.WithValue(ctx, userIDKey, id)
	return WithLogger(ctx, logger)
}

// GetSessionID retrieves the session ID from a context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserID retrieves the user ID from a context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
