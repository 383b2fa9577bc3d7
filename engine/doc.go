// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine decides which option a plan settles on.

# Plurality

A PluralityResolver takes single-choice votes. One voter may back several
options but each only once.

	r := engine.NewPluralityResolver(st, identity)
	err := r.CastVote(ctx, planID, optionID, seed)
	res, err := r.AttemptLock(ctx, planID)

AttemptLock locks when the leading option reaches the threshold, or when
the deadline has passed and at least one vote exists. Ties go to the
lowest display rank. It is safe to call repeatedly and concurrently: the
lock is a conditional write and every caller sees the same winner.

# Ranked

A RankedResolver takes complete three-option ballots and resolves once
every participant has one in.

	r := engine.NewRankedResolver(st, st, identity)
	err := r.SubmitBallot(ctx, planID, seed, models.Rankings{a: 1, b: 2, c: 3})
	decision, err := r.ComputeWinner(ctx, planID)

Options score 3, 2 and 1 points per ballot by position. Ties are settled
in order by:

  - none: a single highest score
  - top_rank_presence: most first-place rankings among the tied
  - turn_fairness: two-person plans only; the participant who lost the
    pair's previous decision gets their first choice if it is still tied
  - random: uniform draw, seedable with WithRand

A second ComputeWinner on a locked plan fails with ErrAlreadyLocked.

# Errors

Every error matches one kind with errors.Is: ErrValidation, ErrDuplicate,
ErrState, ErrNotReady, ErrNotFound or ErrInternal. Only ErrInternal is
worth retrying.
*/
package engine
