// Package requestcontext provides HTTP-independent context accessors for the
// per-call inputs the execution host supplies: the authenticated caller, the
// value attached to the call, the call's timestamp and a correlation id.
//
// Middleware sets these values; services only read them. Keeping this package
// free of net/http lets services and workers share it.
//
// Usage in services (read values):
//
//	caller, ok := requestcontext.Caller(ctx)
//	value := requestcontext.TransferredValue(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithCaller(ctx, domain.DevAccount("alice"))
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "becoming/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerKey           struct{}
	transferredValueKey struct{}
	clientIPKey         struct{}
	userAgentKey        struct{}
	requestIDKey        struct{}
	requestTimeKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCaller           = callerKey{}
	ContextKeyTransferredValue = transferredValueKey{}
	ContextKeyClientIP         = clientIPKey{}
	ContextKeyUserAgent        = userAgentKey{}
	ContextKeyRequestID        = requestIDKey{}
	ContextKeyRequestTime      = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Caller returns the authenticated caller. ok is false when the call carries
// no identity; the zero AccountID is itself a valid identity.
func Caller(ctx context.Context) (id.AccountID, bool) {
	caller, ok := ctx.Value(ContextKeyCaller).(id.AccountID)
	return caller, ok
}

// WithCaller injects the authenticated caller into the context.
func WithCaller(ctx context.Context, caller id.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// -----------------------------------------------------------------------------
// Attached value
// -----------------------------------------------------------------------------

// TransferredValue returns the value attached to the call, zero if none.
func TransferredValue(ctx context.Context) id.Balance {
	if v, ok := ctx.Value(ContextKeyTransferredValue).(id.Balance); ok {
		return v
	}
	return 0
}

// WithTransferredValue attaches value to the call.
func WithTransferredValue(ctx context.Context, value id.Balance) context.Context {
	return context.WithValue(ctx, ContextKeyTransferredValue, value)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the summarized User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Call time
// -----------------------------------------------------------------------------

// Now retrieves the call-scoped time from context.
// Falls back to time.Now() if not set (for workers, CLI and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
