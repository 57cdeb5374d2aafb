package logger

import (
	"context"

	"go.uber.org/zap"
)

type (
	loggerKey struct{}
	userKey   struct{}
)

// ContextWithLogger stores the request logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request logger, or a no-op logger when none is set.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// ContextWithUser records the resolved caller identity. Log calls attach it
// with User; the request logger itself is left untagged so records never
// carry the field twice.
func ContextWithUser(ctx context.Context, user string) context.Context {
	if user == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the caller identity, empty when unresolved.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}
