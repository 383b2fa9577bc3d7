// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/outing-pick/auth"
	"github.com/danielhkuo/outing-pick/cliparse"
	"github.com/danielhkuo/outing-pick/middleware"
	"github.com/danielhkuo/outing-pick/models"
	"github.com/danielhkuo/outing-pick/store"
)

const (
	maxPluralityOptions = 10
	maxLabelLength      = 200

	// Ranked plans resolve on full participation; the deadline only bounds
	// how long the sweeper keeps looking at them.
	defaultRankedWindow = 7 * 24 * time.Hour
)

type PlanHandler struct {
	store *store.Store
	cfg   cliparse.Config
	now   func() time.Time
}

func NewPlanHandler(st *store.Store, cfg cliparse.Config) *PlanHandler {
	return &PlanHandler{store: st, cfg: cfg, now: time.Now}
}

// CreatePlan handles POST /plans
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePlanRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	plan, labels, msg := h.validateCreate(req)
	if msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	plan, options, err := h.store.CreatePlan(r.Context(), plan, labels)
	if err != nil {
		slog.Error("failed to create plan", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create plan")
		return
	}

	optionIDs := make([]string, len(options))
	for i, opt := range options {
		optionIDs[i] = opt.ID
	}

	slog.Info("plan created",
		"plan_id", plan.ID,
		"mode", plan.Mode,
		"headcount", plan.Headcount,
		"options", len(options),
	)

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePlanResponse{
		PlanID:    plan.ID,
		AdminKey:  auth.GenerateAdminKey(plan.ID, h.cfg.AdminKeySalt),
		OptionIDs: optionIDs,
	})
}

// validateCreate returns the plan to insert and its trimmed labels, or a
// client-facing message describing the first problem found.
func (h *PlanHandler) validateCreate(req models.CreatePlanRequest) (models.Plan, []string, string) {
	now := h.now().UTC().Truncate(time.Microsecond)

	labels := make([]string, 0, len(req.Options))
	seen := make(map[string]bool, len(req.Options))
	for _, label := range req.Options {
		label = strings.TrimSpace(label)
		if label == "" {
			return models.Plan{}, nil, "option labels must not be empty"
		}
		if len(label) > maxLabelLength {
			return models.Plan{}, nil, "option labels must be at most 200 characters"
		}
		if seen[strings.ToLower(label)] {
			return models.Plan{}, nil, "option labels must be unique"
		}
		seen[strings.ToLower(label)] = true
		labels = append(labels, label)
	}

	if req.Headcount < 1 {
		return models.Plan{}, nil, "headcount must be at least 1"
	}

	plan := models.Plan{
		Title:     strings.TrimSpace(req.Title),
		Mode:      req.Mode,
		Headcount: req.Headcount,
		Threshold: req.Threshold,
		CreatedAt: now,
	}

	switch req.Mode {
	case models.ModeRanked:
		if len(labels) != models.RankedOptionCount {
			return models.Plan{}, nil, "ranked plans need exactly 3 options"
		}
		if plan.Threshold == 0 {
			plan.Threshold = 1
		}
		plan.DecisionDeadline = now.Add(defaultRankedWindow)

	case models.ModePlurality:
		if len(labels) < 2 || len(labels) > maxPluralityOptions {
			return models.Plan{}, nil, "plurality plans need 2 to 10 options"
		}
		if plan.Threshold < 1 || plan.Threshold > plan.Headcount {
			return models.Plan{}, nil, "threshold must be between 1 and headcount"
		}
		if req.DecisionDeadline == nil {
			return models.Plan{}, nil, "decision_deadline is required"
		}

	default:
		return models.Plan{}, nil, "mode must be plurality or ranked"
	}

	if req.DecisionDeadline != nil {
		plan.DecisionDeadline = req.DecisionDeadline.UTC().Truncate(time.Microsecond)
	}
	if !plan.DecisionDeadline.After(now) {
		return models.Plan{}, nil, "decision_deadline must be in the future"
	}

	return plan, labels, ""
}

// GetPlan handles GET /plans/{id}
// Scores are only present once the plan has locked.
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	plan, err := h.store.GetPlan(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "get plan", planID, err)
		return
	}
	options, err := h.store.ListOptions(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "list options", planID, err)
		return
	}

	if !plan.Locked {
		plan.ComputedScores = nil
	}

	middleware.JSONResponse(w, http.StatusOK, models.PlanWithOptions{
		Plan:    plan,
		Options: options,
	})
}

// CancelPlan handles POST /plans/{id}/cancel
func (h *PlanHandler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(planID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	canceled, err := h.store.CancelPlan(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "cancel plan", planID, err)
		return
	}
	if !canceled {
		middleware.ErrorResponse(w, http.StatusConflict, "Plan is already canceled")
		return
	}

	slog.Info("plan canceled", "plan_id", planID)

	middleware.JSONResponse(w, http.StatusOK, models.CancelPlanResponse{Canceled: true})
}

// GetBallotCount handles GET /plans/{id}/ballot-count
func (h *PlanHandler) GetBallotCount(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if planID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	plan, err := h.store.GetPlan(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "get plan", planID, err)
		return
	}

	ballots, voters, err := h.store.BallotCounts(r.Context(), planID)
	if err != nil {
		writeEngineError(w, "count ballots", planID, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.BallotCountResponse{
		BallotCount: ballots,
		VoterCount:  voters,
		Headcount:   plan.Headcount,
	})
}
