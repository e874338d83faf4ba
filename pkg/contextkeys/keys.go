// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/kubeconsole/kubeconsole/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.SessionKey, claims)
//   claims := ctx.Value(contextkeys.SessionKey).(*auth.Claims)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains the decoded session token claims
	// Set by: middleware.SessionMiddleware (pkg/middleware/session.go)
	// Required by: All protected API endpoints
	// Type: *auth.Claims
	SessionKey Key = "session_claims"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains the request-scoped logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *logrus.Entry
	LoggerKey Key = "logger"
)

// WithSession adds session claims to the context
func WithSession(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, claims)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
