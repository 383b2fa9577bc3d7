// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL sticks to the subset shared by PostgreSQL and SQLite.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Plans
CREATE TABLE IF NOT EXISTS plans (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL CHECK (mode IN ('plurality', 'ranked')),
    headcount INTEGER NOT NULL CHECK (headcount >= 1),
    threshold INTEGER NOT NULL DEFAULT 1 CHECK (threshold >= 1),
    decision_deadline TIMESTAMP NOT NULL,
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    locked_at TIMESTAMP,
    winner_option_id TEXT,
    computed_scores TEXT,
    tie_breaker_used TEXT NOT NULL DEFAULT 'none'
        CHECK (tie_breaker_used IN ('none', 'top_rank_presence', 'turn_fairness', 'random')),
    canceled BOOLEAN NOT NULL DEFAULT FALSE,
    revision INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_plans_open ON plans(locked, canceled);

-- Options
CREATE TABLE IF NOT EXISTS plan_options (
    id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    display_rank INTEGER NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    UNIQUE (plan_id, display_rank)
);

CREATE INDEX IF NOT EXISTS idx_plan_options_plan_id ON plan_options(plan_id);

-- Plurality votes
CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES plan_options(id) ON DELETE CASCADE,
    voter_fingerprint TEXT NOT NULL,
    cast_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (plan_id, option_id, voter_fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_votes_plan_id ON votes(plan_id);

-- Ranked ballots
CREATE TABLE IF NOT EXISTS ranked_ballots (
    id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    voter_fingerprint TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (plan_id, voter_fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_ranked_ballots_plan_id ON ranked_ballots(plan_id);

-- Ballot positions
CREATE TABLE IF NOT EXISTS ballot_ranks (
    ballot_id TEXT NOT NULL REFERENCES ranked_ballots(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES plan_options(id) ON DELETE CASCADE,
    position INTEGER NOT NULL CHECK (position >= 1 AND position <= 3),
    PRIMARY KEY (ballot_id, option_id),
    UNIQUE (ballot_id, position)
);

-- Dyad decision history (append-only)
CREATE TABLE IF NOT EXISTS decision_history (
    id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    pair_low TEXT NOT NULL,
    pair_high TEXT NOT NULL,
    winner_fingerprint TEXT NOT NULL,
    decided_at TIMESTAMP NOT NULL,
    CHECK (pair_low < pair_high)
);

CREATE INDEX IF NOT EXISTS idx_decision_history_pair ON decision_history(pair_low, pair_high, decided_at);
`
