package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextSessionKey ctxKey = "sessionKey"

// SessionKeyFromContext returns the payment session key placed on the request by the session middleware.
func SessionKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if key, ok := ctx.Value(ContextSessionKey).(string); ok {
		return key
	}
	return ""
}

func ContextWithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ContextSessionKey, key)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
