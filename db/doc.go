// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).

# Tables

  - plans: Plan state, including the one-way lock and the decided winner
  - plan_options: Candidate options with their display rank
  - votes: Plurality votes, one row per (plan, option, voter)
  - ranked_ballots: One ranked ballot per voter per plan
  - ballot_ranks: The position each ballot gives each option
  - decision_history: Who got their first choice in past tied dyad decisions

# Relationships

	plans 1──* plan_options
	plans 1──* votes
	plans 1──* ranked_ballots
	ranked_ballots 1──* ballot_ranks
	plans 1──* decision_history

# Constraints the engine relies on

  - votes.(plan_id, option_id, voter_fingerprint) is UNIQUE
  - ranked_ballots.(plan_id, voter_fingerprint) is UNIQUE
  - ballot_ranks.(ballot_id, position) is UNIQUE
  - plan_options.(plan_id, display_rank) is UNIQUE
*/
package db
