// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the outing-pick API.

# Handler Types

  - PlanHandler: plan lifecycle (create, read, cancel, ballot count)
  - VotingHandler: plurality votes and locks, ranked ballots and resolution

	planHandler := handlers.NewPlanHandler(st, cfg)
	votingHandler := handlers.NewVotingHandler(plurality, ranked)

PlanHandler talks to the store directly. VotingHandler only goes through
the engine resolvers, which own every rule about when a plan may change.

# Plans

	POST /plans                   → CreatePlan (returns admin_key)
	GET  /plans/{id}              → GetPlan
	POST /plans/{id}/cancel       → CancelPlan (X-Admin-Key)
	GET  /plans/{id}/ballot-count → GetBallotCount

Ranked plans need exactly three options. Plurality plans need two to ten
options, a threshold no larger than the headcount, and a deadline.

# Voting

	POST /plans/{id}/votes   → CastVote, then AttemptLock
	POST /plans/{id}/lock    → AttemptLock
	PUT  /plans/{id}/ballot  → SubmitBallot, then ComputeWinner
	POST /plans/{id}/resolve → ComputeWinner

Voters are identified by a fingerprint of their client IP and User-Agent;
there is no voter token.

# Errors

Engine errors map to status codes by kind:

	ErrValidation → 400
	ErrNotFound   → 404
	ErrDuplicate  → 409
	ErrState      → 409
	ErrNotReady   → 425
	ErrInternal   → 500 (logged, generic message)
*/
package handlers
