// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/middleware"
)

// statusFor maps an engine error kind to the HTTP status a client sees.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicate), errors.Is(err, engine.ErrState):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotReady):
		return http.StatusTooEarly
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError reports err to the client. Internal failures are logged
// and replaced with a generic message.
func writeEngineError(w http.ResponseWriter, op, planID string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", "plan_id", planID, "error", err)
		middleware.ErrorResponse(w, status, "Database error")
		return
	}
	middleware.ErrorResponse(w, status, err.Error())
}
