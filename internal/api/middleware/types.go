package middleware

// Context keys for middleware data storage.
type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
	StartTimeContextKey contextKey = "start_time"
)

// HTTP headers used across the middleware stack.
const (
	RequestIDHeader = "X-Request-ID"

	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"

	APIVersionHeader = "X-API-Version"
)
