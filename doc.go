// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the outing-pick API server.

outing-pick helps a small group settle on one outing from a short list.
A plan either locks on a plurality threshold or deadline, or resolves from
ranked ballots once everyone has voted.

# Starting the Server

	DATABASE_URL=file:outing.db ADMIN_KEY_SALT=... VOTER_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -redis redis://localhost:6379/0

A .env file in the working directory is loaded first if present.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file URL or PostgreSQL connection string
  - ADMIN_KEY_SALT (-admin-salt): secret for admin key HMAC
  - VOTER_SALT (-voter-salt): secret for voter fingerprints

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (-redis): enables the shared rate limiter
  - RATE_LIMIT_PER_MINUTE, RATE_LIMIT_BURST: limiter budget (60, 20)
  - SWEEP_SCHEDULE (-sweep): cron spec for the resolution sweeper (default: @every 30s; empty disables)
  - SWEEP_WORKERS: sweeper concurrency (default: 4)

# Architecture

  - engine: plurality and ranked resolution, tie-breaking, error kinds
  - store: SQL plan record and decision history
  - handlers: HTTP request handlers
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, rate limiting, JSON helpers
  - trigger: scheduled sweeper that retries resolution
  - ratelimit: Redis token bucket
  - models: request/response and domain types
  - auth: admin keys and voter fingerprints
  - db: connection and schema creation
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
