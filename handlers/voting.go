// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/middleware"
	"github.com/danielhkuo/outing-pick/models"
)

type VotingHandler struct {
	plurality *engine.PluralityResolver
	ranked    *engine.RankedResolver
}

func NewVotingHandler(plurality *engine.PluralityResolver, ranked *engine.RankedResolver) *VotingHandler {
	return &VotingHandler{plurality: plurality, ranked: ranked}
}

// CastVote handles POST /plans/{id}/votes
// A successful vote is followed by a lock attempt, so the vote that meets
// the threshold also locks the plan.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.OptionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_id is required")
		return
	}

	ctx := r.Context()
	if err := h.plurality.CastVote(ctx, planID, req.OptionID, middleware.IdentitySeed(r)); err != nil {
		writeEngineError(w, "cast vote", planID, err)
		return
	}

	resp := models.CastVoteResponse{Accepted: true}

	// The vote is stored; a failed lock attempt is retried by the sweeper.
	res, err := h.plurality.AttemptLock(ctx, planID)
	if err != nil {
		slog.Warn("lock attempt after vote failed", "plan_id", planID, "error", err)
	} else if res.Locked {
		resp.Locked = true
		resp.WinnerID = &res.WinnerID
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// AttemptLock handles POST /plans/{id}/lock
func (h *VotingHandler) AttemptLock(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	res, err := h.plurality.AttemptLock(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "attempt lock", planID, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, lockResponse(res))
}

func lockResponse(res models.LockResult) models.AttemptLockResponse {
	resp := models.AttemptLockResponse{
		Locked:        res.Locked,
		AlreadyLocked: res.AlreadyLocked,
		CurrentVotes:  res.CurrentVotes,
		Threshold:     res.Threshold,

		TimeRemainingSeconds: int64(res.TimeRemaining / time.Second),
		TimeRemaining:        formatRemaining(res.TimeRemaining),
	}
	if res.Locked {
		resp.WinnerID = &res.WinnerID
		resp.LockedAt = &res.LockedAt
	}
	return resp
}

// formatRemaining renders d as "3 hours remaining", or "now" when the
// deadline has passed.
func formatRemaining(d time.Duration) string {
	base := time.Unix(0, 0)
	return humanize.RelTime(base, base.Add(d), "remaining", "ago")
}

// SubmitBallot handles PUT /plans/{id}/ballot
// The last ballot in resolves the plan.
func (h *VotingHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	if err := h.ranked.SubmitBallot(ctx, planID, middleware.IdentitySeed(r), req.Rankings); err != nil {
		writeEngineError(w, "submit ballot", planID, err)
		return
	}

	resp := models.SubmitBallotResponse{Accepted: true}

	decision, err := h.ranked.ComputeWinner(ctx, planID)
	switch {
	case err == nil:
		resp.Resolved = true
		resp.Decision = &decision
	case errors.Is(err, engine.ErrNotReady), errors.Is(err, engine.ErrAlreadyLocked):
		// Waiting on other participants, or a concurrent ballot resolved it.
	default:
		slog.Warn("resolution after ballot failed", "plan_id", planID, "error", err)
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// ComputeWinner handles POST /plans/{id}/resolve
func (h *VotingHandler) ComputeWinner(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	decision, err := h.ranked.ComputeWinner(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "compute winner", planID, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, decision)
}
