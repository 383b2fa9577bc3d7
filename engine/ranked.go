// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/danielhkuo/outing-pick/models"
)

// RankedResolver accepts full three-option ballots and resolves a plan once
// every participant has submitted one.
type RankedResolver struct {
	store    BallotStore
	ledger   FairnessLedger
	identity Fingerprinter
	cfg      *resolverConfig
}

// NewRankedResolver returns a resolver that reads fairness history from ledger.
func NewRankedResolver(store BallotStore, ledger FairnessLedger, identity Fingerprinter, opts ...ResolverOption) *RankedResolver {
	return &RankedResolver{
		store:    store,
		ledger:   ledger,
		identity: identity,
		cfg:      newResolverConfig(opts),
	}
}

// SubmitBallot stores the caller's ranking, replacing any earlier ballot
// from the same voter. Ballots can change freely until the plan locks; a
// new voter arriving after headcount ballots gets ErrPlanFull.
func (r *RankedResolver) SubmitBallot(ctx context.Context, planID string, seed models.IdentitySeed, rankings models.Rankings) error {
	plan, err := r.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Closed() {
		return ErrPlanClosed
	}
	if plan.Mode != models.ModeRanked {
		return ErrWrongMode
	}

	options, err := r.store.ListOptions(ctx, planID)
	if err != nil {
		return err
	}
	if err := ValidateRankings(options, rankings); err != nil {
		return err
	}

	ballot := models.RankedBallot{
		PlanID:           planID,
		VoterFingerprint: r.identity.Fingerprint(planID, seed),
		Rankings:         make(models.Rankings, len(rankings)),
		SubmittedAt:      r.cfg.clock(),
	}
	for optionID, rank := range rankings {
		ballot.Rankings[optionID] = rank
	}
	if err := r.store.UpsertBallot(ctx, ballot); err != nil {
		return err
	}

	r.cfg.logger.Debug("ballot submitted", "plan_id", planID)
	return nil
}

// ComputeWinner resolves a plan whose ballots number exactly its headcount.
// It is not idempotent: once the plan is locked every call fails with
// ErrAlreadyLocked, and the lock write itself is conditional so a racing
// caller cannot append a second history entry.
func (r *RankedResolver) ComputeWinner(ctx context.Context, planID string) (models.Decision, error) {
	plan, err := r.store.GetPlan(ctx, planID)
	if err != nil {
		return models.Decision{}, err
	}
	if plan.Canceled {
		return models.Decision{}, ErrPlanClosed
	}
	if plan.Locked {
		return models.Decision{}, ErrAlreadyLocked
	}
	if plan.Mode != models.ModeRanked {
		return models.Decision{}, ErrWrongMode
	}

	ballots, err := r.store.ListBallots(ctx, planID)
	if err != nil {
		return models.Decision{}, err
	}
	if len(ballots) != plan.Headcount {
		return models.Decision{}, fmt.Errorf("%w: %d of %d ballots submitted", ErrNotReady, len(ballots), plan.Headcount)
	}

	options, err := r.store.ListOptions(ctx, planID)
	if err != nil {
		return models.Decision{}, err
	}

	scores := ScoreBallots(options, ballots)
	winnerID, tieBreaker, err := r.pickWinner(ctx, plan, options, ballots, scores)
	if err != nil {
		return models.Decision{}, err
	}

	now := r.cfg.clock()
	decision := models.Decision{
		WinnerID:   winnerID,
		Scores:     scores,
		TieBreaker: tieBreaker,
		LockedAt:   now,
	}

	var entry *models.DecisionHistory
	if isDyad(plan, ballots) {
		if holder := firstChoiceHolder(ballots, winnerID); holder != "" {
			entry = &models.DecisionHistory{
				PlanID:            planID,
				Pair:              models.NewPairKey(ballots[0].VoterFingerprint, ballots[1].VoterFingerprint),
				WinnerFingerprint: holder,
				DecidedAt:         now,
			}
		}
	}

	won, err := r.store.LockRanked(ctx, planID, decision, entry)
	if err != nil {
		return models.Decision{}, err
	}
	if !won {
		return models.Decision{}, ErrAlreadyLocked
	}

	r.cfg.logger.Info("plan resolved",
		"plan_id", planID,
		"winner_option_id", winnerID,
		"tie_breaker", string(tieBreaker),
		"ballots", len(ballots),
	)
	return decision, nil
}

// pickWinner runs the tie-break cascade: score, then first-place count,
// then dyad turn fairness, then a random draw.
func (r *RankedResolver) pickWinner(ctx context.Context, plan models.Plan, options []models.Option, ballots []models.RankedBallot, scores models.Scores) (string, models.TieBreaker, error) {
	candidates := topScorers(options, scores)
	if len(candidates) == 1 {
		return candidates[0], models.TieBreakerNone, nil
	}

	candidates = mostFirstPlaces(candidates, ballots)
	if len(candidates) == 1 {
		return candidates[0], models.TieBreakerTopRankPresence, nil
	}

	if isDyad(plan, ballots) && r.ledger != nil {
		pair := models.NewPairKey(ballots[0].VoterFingerprint, ballots[1].VoterFingerprint)
		last, found, err := r.ledger.LatestDecision(ctx, pair)
		if err != nil {
			return "", "", err
		}
		if found && (last.WinnerFingerprint == pair.Low || last.WinnerFingerprint == pair.High) {
			owed := pair.Other(last.WinnerFingerprint)
			if choice := firstChoiceOf(ballots, owed); choice != "" && contains(candidates, choice) {
				return choice, models.TieBreakerTurnFairness, nil
			}
		}
	}

	return candidates[r.cfg.intN(len(candidates))], models.TieBreakerRandom, nil
}

// ValidateRankings checks that rankings is a bijection from the plan's
// three options onto positions 1..3.
func ValidateRankings(options []models.Option, rankings models.Rankings) error {
	if len(options) != models.RankedOptionCount {
		return fmt.Errorf("%w: plan has %d options, ranked voting needs %d", ErrInvalidRanking, len(options), models.RankedOptionCount)
	}
	if len(rankings) != len(options) {
		return fmt.Errorf("%w: expected %d ranked options, got %d", ErrInvalidRanking, len(options), len(rankings))
	}

	var seen [models.RankedOptionCount + 1]bool
	for _, opt := range options {
		rank, ok := rankings[opt.ID]
		if !ok {
			return fmt.Errorf("%w: option %s is not ranked", ErrInvalidRanking, opt.ID)
		}
		if !rank.Valid() {
			return fmt.Errorf("%w: rank %d for option %s is out of range", ErrInvalidRanking, rank, opt.ID)
		}
		if seen[rank] {
			return fmt.Errorf("%w: rank %d assigned twice", ErrInvalidRanking, rank)
		}
		seen[rank] = true
	}
	return nil
}

// ScoreBallots sums 4-rank over every ballot for each option.
func ScoreBallots(options []models.Option, ballots []models.RankedBallot) models.Scores {
	scores := make(models.Scores, len(options))
	for _, opt := range options {
		scores[opt.ID] = 0
	}
	for _, b := range ballots {
		for optionID, rank := range b.Rankings {
			if _, ok := scores[optionID]; ok {
				scores[optionID] += rank.Points()
			}
		}
	}
	return scores
}

// topScorers returns the options holding the maximum score, in display order.
func topScorers(options []models.Option, scores models.Scores) []string {
	var out []string
	best := -1
	for _, opt := range sortedOptions(options) {
		switch s := scores[opt.ID]; {
		case s > best:
			best = s
			out = []string{opt.ID}
		case s == best:
			out = append(out, opt.ID)
		}
	}
	return out
}

// mostFirstPlaces narrows candidates to those ranked first on the most
// ballots. Order is preserved.
func mostFirstPlaces(candidates []string, ballots []models.RankedBallot) []string {
	firsts := make(map[string]int, len(candidates))
	for _, b := range ballots {
		for optionID, rank := range b.Rankings {
			if rank == models.RankFirst {
				firsts[optionID]++
			}
		}
	}

	var out []string
	best := -1
	for _, id := range candidates {
		switch n := firsts[id]; {
		case n > best:
			best = n
			out = []string{id}
		case n == best:
			out = append(out, id)
		}
	}
	return out
}

func isDyad(plan models.Plan, ballots []models.RankedBallot) bool {
	return plan.Headcount == 2 && len(ballots) == 2
}

func firstChoiceOf(ballots []models.RankedBallot, fingerprint string) string {
	for _, b := range ballots {
		if b.VoterFingerprint != fingerprint {
			continue
		}
		for optionID, rank := range b.Rankings {
			if rank == models.RankFirst {
				return optionID
			}
		}
	}
	return ""
}

// firstChoiceHolder names the voter whose ballot ranked winnerID first.
// When both did, the lower fingerprint is recorded so the entry is stable.
func firstChoiceHolder(ballots []models.RankedBallot, winnerID string) string {
	var holders []string
	for _, b := range ballots {
		if b.Rankings[winnerID] == models.RankFirst {
			holders = append(holders, b.VoterFingerprint)
		}
	}
	if len(holders) == 0 {
		return ""
	}
	sort.Strings(holders)
	return holders[0]
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
