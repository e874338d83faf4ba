// Package middleware provides HTTP middleware for session authentication and
// rate limiting.
//
// # Overview
//
// This package implements request processing middleware: session token
// authentication, in-memory rate limiting for login endpoints, and a
// Redis-backed variant for multi-instance deployments.
//
// # Middleware Components
//
// SessionMiddleware: session token authentication
//
//	router.Use(middleware.SessionMiddleware(issuer, optional))
//	// Reads the token from header or cookie, decodes it, adds claims to the context
//
// RateLimitMiddleware: in-memory rate limiting
//
//	limiter := middleware.NewRateLimitMiddleware()
//	router.Use(limiter.Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting
//
//	limiter := middleware.NewDistributedRateLimitMiddleware(redisClient)
//	router.Use(limiter.Handler)
//
// # Rate Limiting
//
// Default: 100 req/min, 10 burst
// Login endpoints: 10 req/min, 5 burst, keyed by client IP
//
// # Related Packages
//
//   - pkg/auth: session token decoding
//   - pkg/contextkeys: context key definitions
package middleware
