// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the SQL-backed plan record.

	st := store.New(conn)

Store implements engine.VoteStore, engine.BallotStore and
engine.FairnessLedger, and adds the plan administration queries the HTTP
layer and the sweeper need.

All coordination happens in the database:

  - votes and ballots rely on unique constraints
  - locks are UPDATE ... WHERE locked = FALSE AND canceled = FALSE, with
    RowsAffected telling the caller whether it won
  - a ranked lock and its decision_history row share one transaction

Queries use $N placeholders, which both lib/pq and modernc.org/sqlite
accept. Failures are wrapped with engine.Internal; unique violations on
votes become engine.ErrDuplicateVote.
*/
package store
