// Package logger provides structured logging for SigMesh.
package logger

import (
	"context"
	"sync"

	"github.com/yndnr/sigmesh/pkg/token"
)

type contextKey string

const (
	loggerKey    contextKey = "sigmesh.logger"
	requestIDKey contextKey = "sigmesh.request_id"
	sessionKey   contextKey = "sigmesh.session"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// sessionTag names the session a request acts on. An outer middleware
// installs it empty so it can read what an inner guard records.
type sessionTag struct {
	mu  sync.Mutex
	tid string
	sid string
}

// WithSessionTag installs an empty session tag in the context.
func WithSessionTag(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey, &sessionTag{})
}

// TagSession records the client and session a request acts on. It fills the
// tag installed by WithSessionTag, or installs a new one.
func TagSession(ctx context.Context, tid, sid string) context.Context {
	if tag, ok := ctx.Value(sessionKey).(*sessionTag); ok {
		tag.mu.Lock()
		tag.tid, tag.sid = tid, sid
		tag.mu.Unlock()
		return ctx
	}
	return context.WithValue(ctx, sessionKey, &sessionTag{tid: tid, sid: sid})
}

// SessionAttrs returns the tid and masked sid recorded by TagSession as
// log attributes, or nil when none was recorded.
func SessionAttrs(ctx context.Context) []any {
	tag, ok := ctx.Value(sessionKey).(*sessionTag)
	if !ok {
		return nil
	}
	tag.mu.Lock()
	defer tag.mu.Unlock()
	if tag.sid == "" {
		return nil
	}
	return []any{"tid", tag.tid, "sid", token.MaskID(tag.sid)}
}

// L returns the context's logger bound to ctx, so its records carry the
// request ID and session tag ctx holds when they are written.
func L(ctx context.Context) Logger {
	return FromContext(ctx).WithContext(ctx)
}
