// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danielhkuo/outing-pick/models"
)

// PluralityResolver accepts single-choice votes and locks a plan once an
// option reaches the threshold, or once the deadline passes with any vote.
type PluralityResolver struct {
	store    VoteStore
	identity Fingerprinter
	cfg      *resolverConfig
}

// NewPluralityResolver returns a resolver backed by store.
func NewPluralityResolver(store VoteStore, identity Fingerprinter, opts ...ResolverOption) *PluralityResolver {
	return &PluralityResolver{
		store:    store,
		identity: identity,
		cfg:      newResolverConfig(opts),
	}
}

// CastVote records one vote for optionID. A voter may vote for several
// options but only once for each. It never locks the plan.
func (r *PluralityResolver) CastVote(ctx context.Context, planID, optionID string, seed models.IdentitySeed) error {
	plan, err := r.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Closed() {
		return ErrPlanClosed
	}
	if plan.Mode != models.ModePlurality {
		return ErrWrongMode
	}

	options, err := r.store.ListOptions(ctx, planID)
	if err != nil {
		return err
	}
	if !hasOption(options, optionID) {
		return fmt.Errorf("%w %q on plan %s", ErrOptionNotFound, optionID, planID)
	}

	vote := models.Vote{
		PlanID:           planID,
		OptionID:         optionID,
		VoterFingerprint: r.identity.Fingerprint(planID, seed),
		CastAt:           r.cfg.clock(),
	}
	if err := r.store.InsertVote(ctx, vote); err != nil {
		return err
	}

	r.cfg.logger.Debug("vote cast", "plan_id", planID, "option_id", optionID)
	return nil
}

// AttemptLock locks the plan if the lock condition holds. It is idempotent:
// on a locked plan it returns the stored winner and lock time unchanged,
// and when several callers race only one conditional write succeeds while
// the rest report the winner that write committed.
func (r *PluralityResolver) AttemptLock(ctx context.Context, planID string) (models.LockResult, error) {
	plan, err := r.store.GetPlan(ctx, planID)
	if err != nil {
		return models.LockResult{}, err
	}
	if plan.Canceled {
		return models.LockResult{}, ErrPlanClosed
	}
	if plan.Mode != models.ModePlurality {
		return models.LockResult{}, ErrWrongMode
	}
	if plan.Locked {
		return lockedResult(plan), nil
	}

	tally, err := r.store.TallyVotes(ctx, planID)
	if err != nil {
		return models.LockResult{}, err
	}
	options, err := r.store.ListOptions(ctx, planID)
	if err != nil {
		return models.LockResult{}, err
	}

	now := r.cfg.clock()
	winnerID, top := pluralityLeader(options, tally)
	deadlinePassed := !now.Before(plan.DecisionDeadline)

	if top == 0 || (top < plan.Threshold && !deadlinePassed) {
		return models.LockResult{
			Locked:        false,
			CurrentVotes:  fullTally(options, tally),
			Threshold:     plan.Threshold,
			TimeRemaining: TimeRemaining(plan, now),
		}, nil
	}

	won, err := r.store.LockPlurality(ctx, planID, winnerID, now)
	if err != nil {
		return models.LockResult{}, err
	}
	if won {
		r.cfg.logger.Info("plan locked",
			"plan_id", planID,
			"winner_option_id", winnerID,
			"votes", top,
			"threshold", plan.Threshold,
			"deadline_passed", deadlinePassed,
		)
		return models.LockResult{
			Locked:       true,
			WinnerID:     winnerID,
			LockedAt:     now,
			CurrentVotes: fullTally(options, tally),
			Threshold:    plan.Threshold,
		}, nil
	}

	// Someone else locked or canceled between our read and our write.
	plan, err = r.store.GetPlan(ctx, planID)
	if err != nil {
		return models.LockResult{}, err
	}
	if !plan.Locked {
		return models.LockResult{}, ErrPlanClosed
	}
	return lockedResult(plan), nil
}

func lockedResult(plan models.Plan) models.LockResult {
	res := models.LockResult{
		Locked:        true,
		AlreadyLocked: true,
		Threshold:     plan.Threshold,
	}
	if plan.WinnerOptionID != nil {
		res.WinnerID = *plan.WinnerOptionID
	}
	if plan.LockedAt != nil {
		res.LockedAt = *plan.LockedAt
	}
	return res
}

// pluralityLeader returns the option with the most votes. Ties go to the
// lowest display rank, then the lowest option ID.
func pluralityLeader(options []models.Option, tally map[string]int) (string, int) {
	ordered := sortedOptions(options)

	var leader string
	top := 0
	for _, opt := range ordered {
		if n := tally[opt.ID]; n > top {
			leader, top = opt.ID, n
		}
	}
	return leader, top
}

// fullTally reports a count for every option, zero included.
func fullTally(options []models.Option, tally map[string]int) map[string]int {
	out := make(map[string]int, len(options))
	for _, opt := range options {
		out[opt.ID] = tally[opt.ID]
	}
	return out
}

func sortedOptions(options []models.Option) []models.Option {
	ordered := make([]models.Option, len(options))
	copy(ordered, options)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].DisplayRank != ordered[j].DisplayRank {
			return ordered[i].DisplayRank < ordered[j].DisplayRank
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func hasOption(options []models.Option, optionID string) bool {
	for _, opt := range options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// TimeRemaining is how long until the plan's deadline, floored at zero.
func TimeRemaining(plan models.Plan, now time.Time) time.Duration {
	if d := plan.DecisionDeadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
