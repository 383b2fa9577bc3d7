// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the outing-pick API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Services{
		Store:     st,
		Plurality: plurality,
		Ranked:    ranked,
		Limiter:   limiter,
	}, cfg)

# Endpoints

Health:

	GET /health

Plan administration:

	POST /plans                    - Create plan (returns admin_key)
	GET  /plans/{id}               - Plan state and options
	POST /plans/{id}/cancel        - Cancel permanently (X-Admin-Key)
	GET  /plans/{id}/ballot-count  - Submitted ballots and voters

Plurality mode:

	POST /plans/{id}/votes - Cast a vote, then attempt the lock
	POST /plans/{id}/lock  - Attempt the lock

Ranked mode:

	PUT  /plans/{id}/ballot  - Submit or replace a ballot, resolve when full
	POST /plans/{id}/resolve - Resolve (425 until every ballot is in)

Plan creation, votes and ballots pass through the rate limiter when one
is configured.
*/
package router
