// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, map[string]string{"token": token})
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Invalid token.")
//	httputil.WriteForbidden(w, "Onboarding already completed.")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req SignupRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Query parameters:
//
//	code := httputil.ParseQueryString(r, "code", "")
//	slo, _ := httputil.ParseQueryBool(r, "slo", false)
//
// # Validation
//
//	httputil.ValidateAll(w,
//		func() (bool, string) { return req.Username != "", "username is required" },
//	)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.RequestIDMiddleware,
//		httputil.MaxBytesMiddleware(1024*1024), // 1MB
//	)
//
// # Related Packages
//
//   - pkg/middleware: Session and rate limit middleware
package httputil
