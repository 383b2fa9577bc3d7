// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path) and completion (duration_ms).

# Rate Limiting

Vote and ballot routes sit behind a shared limiter keyed by the salted
client IP hash:

	mux.HandleFunc("POST /plans/{id}/votes",
		middleware.WithLogging(middleware.WithRateLimit(limiter, salt, h.CastVote)))

Callers over their budget get 429 with Retry-After. A limiter error is
logged and the request proceeds. A nil limiter disables the wrapper.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, OPTIONS with headers Content-Type and
X-Admin-Key.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client Identity

GetClientIP returns the original client IP (X-Forwarded-For, X-Real-IP,
then RemoteAddr). IdentitySeed pairs it with the User-Agent to form the
input for voter fingerprinting.
*/
package middleware
