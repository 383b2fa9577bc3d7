// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/outing-pick/cliparse"
	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/handlers"
	"github.com/danielhkuo/outing-pick/middleware"
	"github.com/danielhkuo/outing-pick/store"
)

// Services are the long-lived components the handlers share with the rest
// of the process. Limiter may be nil to disable rate limiting.
type Services struct {
	Store     *store.Store
	Plurality *engine.PluralityResolver
	Ranked    *engine.RankedResolver
	Limiter   middleware.Limiter
}

func NewRouter(svc Services, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	planHandler := handlers.NewPlanHandler(svc.Store, cfg)
	votingHandler := handlers.NewVotingHandler(svc.Plurality, svc.Ranked)

	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithRateLimit(svc.Limiter, cfg.VoterSalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Plan administration
	mux.HandleFunc("POST /plans", limited(planHandler.CreatePlan))
	mux.HandleFunc("GET /plans/{id}", middleware.WithLogging(planHandler.GetPlan))
	mux.HandleFunc("POST /plans/{id}/cancel", middleware.WithLogging(planHandler.CancelPlan))
	mux.HandleFunc("GET /plans/{id}/ballot-count", middleware.WithLogging(planHandler.GetBallotCount))

	// Plurality mode
	mux.HandleFunc("POST /plans/{id}/votes", limited(votingHandler.CastVote))
	mux.HandleFunc("POST /plans/{id}/lock", middleware.WithLogging(votingHandler.AttemptLock))

	// Ranked mode
	mux.HandleFunc("PUT /plans/{id}/ballot", limited(votingHandler.SubmitBallot))
	mux.HandleFunc("POST /plans/{id}/resolve", middleware.WithLogging(votingHandler.ComputeWinner))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("outing-pick API v1"))
	})

	return mux
}
