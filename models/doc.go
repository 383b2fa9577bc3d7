// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - CreatePlanRequest: title, mode, headcount, threshold, decision_deadline, options
  - CastVoteRequest: option_id
  - SubmitBallotRequest: rankings (option_id → 1..3)

# Response Types

  - CreatePlanResponse: plan_id, admin_key, option_ids
  - CastVoteResponse: accepted, locked, winner_id
  - AttemptLockResponse: lock state, or the current tally and time remaining
  - SubmitBallotResponse: accepted, resolved, decision
  - CancelPlanResponse, BallotCountResponse
  - ErrorResponse: error, message

# Domain Types

  - Plan: the durable plan record, including lock state and winner
  - Option: a candidate with its display rank
  - Vote: one plurality vote
  - RankedBallot: a voter's full ranking
  - DecisionHistory: who got their pick the last time a pair decided
  - Decision, LockResult: resolver outcomes

Voter fingerprints are tagged json:"-" and never leave the server.

# Typed Payloads

Rank is a ballot position (1..3) with Points() = 4 - rank. Rankings and
Scores are maps keyed by option ID. PairKey keeps two fingerprints in
sorted order so a pair looks the same whoever voted first.

# Constants

Modes:

	ModePlurality = "plurality"
	ModeRanked    = "ranked"

Tie breakers:

	TieBreakerNone            = "none"
	TieBreakerTopRankPresence = "top_rank_presence"
	TieBreakerTurnFairness    = "turn_fairness"
	TieBreakerRandom          = "random"
*/
package models
