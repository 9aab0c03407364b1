package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextUserKey ctxKey = "userID"

// UserIDFromContext returns the authenticated user id set by the auth
// middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	userID, ok := ctx.Value(ContextUserKey).(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
