// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine_test

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/models"
	"github.com/danielhkuo/outing-pick/store"
	"github.com/danielhkuo/outing-pick/testutil"
)

// rank builds a ballot from option IDs listed in preference order.
func rank(first, second, third string) models.Rankings {
	return models.Rankings{first: models.RankFirst, second: models.RankSecond, third: models.RankThird}
}

func newRankedPlan(t *testing.T, st *store.Store, headcount int) (models.Plan, string, string, string) {
	t.Helper()
	plan, options := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Mode: models.ModeRanked, Headcount: headcount})
	return plan, options[0].ID, options[1].ID, options[2].ID
}

func submitAll(t *testing.T, r *engine.RankedResolver, planID string, ballots ...models.Rankings) {
	t.Helper()
	for i, b := range ballots {
		require.NoError(t, r.SubmitBallot(context.Background(), planID, testutil.Seed(i+1), b))
	}
}

func TestComputeWinner_UniqueMax(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)

	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(a, b, c))

	decision, err := ranked.ComputeWinner(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, a, decision.WinnerID)
	assert.Equal(t, models.TieBreakerNone, decision.TieBreaker)
	assert.Equal(t, models.Scores{a: 6, b: 4, c: 2}, decision.Scores)

	got, err := st.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)
	assert.Equal(t, a, *got.WinnerOptionID)
	assert.Equal(t, decision.Scores, got.ComputedScores)
	assert.Equal(t, models.TieBreakerNone, got.TieBreakerUsed)
	require.NotNil(t, got.LockedAt)
	assert.True(t, decision.LockedAt.Equal(*got.LockedAt))
}

func TestComputeWinner_RandomForFreshDyad(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	plan, a, b, c := newRankedPlan(t, st, 2)

	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(b, a, c))

	decision, err := ranked.ComputeWinner(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Scores{a: 5, b: 5, c: 2}, decision.Scores)
	assert.Equal(t, models.TieBreakerRandom, decision.TieBreaker)
	assert.Contains(t, []string{a, b}, decision.WinnerID)
}

func TestComputeWinner_SeededRandomIsReproducible(t *testing.T) {
	pick := func(seed uint64) int {
		st, _ := testutil.SetupTestStore(t)
		_, ranked := testutil.NewResolvers(st, engine.WithRand(rand.New(rand.NewPCG(seed, seed))))
		plan, a, b, c := newRankedPlan(t, st, 3)
		submitAll(t, ranked, plan.ID, rank(a, b, c), rank(b, c, a), rank(c, a, b))

		decision, err := ranked.ComputeWinner(context.Background(), plan.ID)
		require.NoError(t, err)
		require.Equal(t, models.TieBreakerRandom, decision.TieBreaker)
		return map[string]int{a: 0, b: 1, c: 2}[decision.WinnerID]
	}

	for seed := uint64(1); seed <= 3; seed++ {
		assert.Equal(t, pick(seed), pick(seed), "seed %d", seed)
	}
}

func TestComputeWinner_TopRankPresence(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	plan, a, b, c := newRankedPlan(t, st, 3)

	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(a, b, c), rank(b, c, a))

	decision, err := ranked.ComputeWinner(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Scores{a: 7, b: 7, c: 4}, decision.Scores)
	assert.Equal(t, a, decision.WinnerID)
	assert.Equal(t, models.TieBreakerTopRankPresence, decision.TieBreaker)
}

func TestComputeWinner_TurnFairness(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	identity := testutil.Identity()

	plan, a, b, c := newRankedPlan(t, st, 2)
	fp1 := identity.Fingerprint(plan.ID, testutil.Seed(1))
	fp2 := identity.Fingerprint(plan.ID, testutil.Seed(2))
	pair := models.NewPairKey(fp1, fp2)

	// The same pair decided an earlier outing and voter 1 got their pick.
	earlier, earlierA, _, _ := newRankedPlan(t, st, 2)
	decidedAt := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Microsecond)
	won, err := st.LockRanked(ctx, earlier.ID, models.Decision{
		WinnerID:   earlierA,
		Scores:     models.Scores{earlierA: 6},
		TieBreaker: models.TieBreakerNone,
		LockedAt:   decidedAt,
	}, &models.DecisionHistory{PlanID: earlier.ID, Pair: pair, WinnerFingerprint: fp1, DecidedAt: decidedAt})
	require.NoError(t, err)
	require.True(t, won)

	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(b, a, c))

	decision, err := ranked.ComputeWinner(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, b, decision.WinnerID, "voter 2 is owed this one")
	assert.Equal(t, models.TieBreakerTurnFairness, decision.TieBreaker)

	history, err := st.ListDecisions(ctx, pair)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, plan.ID, history[0].PlanID)
	assert.Equal(t, fp2, history[0].WinnerFingerprint)

	latest, found, err := st.LatestDecision(ctx, pair)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, history[0].ID, latest.ID)
}

func TestComputeWinner_NotReady(t *testing.T) {
	st, db := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)

	_, err := ranked.ComputeWinner(ctx, plan.ID)
	assert.ErrorIs(t, err, engine.ErrNotReady)

	submitAll(t, ranked, plan.ID, rank(a, b, c))

	_, err = ranked.ComputeWinner(ctx, plan.ID)
	assert.ErrorIs(t, err, engine.ErrNotReady)

	got, err := st.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)
	assert.Nil(t, got.WinnerOptionID)
	assert.Nil(t, got.ComputedScores)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM decision_history`).Scan(&rows))
	assert.Zero(t, rows)
}

func TestSubmitBallot_InvalidRankings(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 3)

	testCases := []struct {
		name     string
		rankings models.Rankings
	}{
		{"empty", models.Rankings{}},
		{"missing rank 3", models.Rankings{a: 1, b: 2}},
		{"rank used twice", models.Rankings{a: 1, b: 1, c: 3}},
		{"rank out of range", models.Rankings{a: 1, b: 2, c: 4}},
		{"zero rank", models.Rankings{a: 0, b: 1, c: 2}},
		{"unknown option", models.Rankings{a: 1, b: 2, "elsewhere": 3}},
		{"extra option", models.Rankings{a: 1, b: 2, c: 3, "elsewhere": 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(1), tc.rankings)
			assert.ErrorIs(t, err, engine.ErrInvalidRanking)
			assert.ErrorIs(t, err, engine.ErrValidation)
		})
	}

	ballots, err := st.ListBallots(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, ballots)
}

func TestSubmitBallot_Replace(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)

	require.NoError(t, ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(1), rank(a, b, c)))
	require.NoError(t, ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(1), rank(c, b, a)))

	ballots, err := st.ListBallots(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, ballots, 1)
	assert.Equal(t, rank(c, b, a), ballots[0].Rankings)
	assert.Len(t, ballots[0].VoterFingerprint, 64)
}

func TestSubmitBallot_PlanFull(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)

	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(b, c, a))

	err := ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(3), rank(c, a, b))
	assert.ErrorIs(t, err, engine.ErrPlanFull)
	assert.ErrorIs(t, err, engine.ErrState)

	// Existing voters may still change their minds.
	require.NoError(t, ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(2), rank(c, a, b)))
}

func TestRankedLockedPlanFailsFast(t *testing.T) {
	st, db := testutil.SetupTestStore(t)
	plurality, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)

	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(a, c, b))
	first, err := ranked.ComputeWinner(ctx, plan.ID)
	require.NoError(t, err)

	var before int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM decision_history`).Scan(&before))
	require.Equal(t, 1, before)

	_, err = ranked.ComputeWinner(ctx, plan.ID)
	assert.ErrorIs(t, err, engine.ErrAlreadyLocked)

	err = ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(1), rank(c, b, a))
	assert.ErrorIs(t, err, engine.ErrPlanClosed)

	err = plurality.CastVote(ctx, plan.ID, a, testutil.Seed(1))
	assert.ErrorIs(t, err, engine.ErrPlanClosed)

	var after int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM decision_history`).Scan(&after))
	assert.Equal(t, before, after)

	got, err := st.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, first.WinnerID, *got.WinnerOptionID)
	assert.True(t, first.LockedAt.Equal(*got.LockedAt))

	ballots, err := st.ListBallots(ctx, plan.ID)
	require.NoError(t, err)
	for _, bal := range ballots {
		assert.Equal(t, models.RankFirst, bal.Rankings[a])
	}
}

func TestRankedCanceledPlan(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 1)

	submitAll(t, ranked, plan.ID, rank(a, b, c))
	_, err := st.CancelPlan(ctx, plan.ID)
	require.NoError(t, err)

	_, err = ranked.ComputeWinner(ctx, plan.ID)
	assert.ErrorIs(t, err, engine.ErrPlanClosed)

	err = ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(1), rank(b, a, c))
	assert.ErrorIs(t, err, engine.ErrPlanClosed)
}

func TestComputeWinner_Concurrent(t *testing.T) {
	st, db := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)
	submitAll(t, ranked, plan.ID, rank(a, b, c), rank(b, a, c))

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, r := testutil.NewResolvers(st)
			_, errs[idx] = r.ComputeWinner(ctx, plan.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, engine.ErrAlreadyLocked)
	}
	assert.Equal(t, 1, succeeded)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM decision_history WHERE plan_id = $1`, plan.ID).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestComputeWinner_WrongMode(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	_, ranked := testutil.NewResolvers(st)
	plan, options := testutil.CreateTestPlan(t, st, testutil.PlanSpec{})

	_, err := ranked.ComputeWinner(context.Background(), plan.ID)
	assert.ErrorIs(t, err, engine.ErrWrongMode)

	err = ranked.SubmitBallot(context.Background(), plan.ID, testutil.Seed(1),
		rank(options[0].ID, options[1].ID, options[2].ID))
	assert.ErrorIs(t, err, engine.ErrWrongMode)

	_, err = ranked.ComputeWinner(context.Background(), "missing")
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)
}

// lockingBallotStore resolves the plan after the resolver has read it open
// but before the ballot is written.
type lockingBallotStore struct {
	*store.Store
}

func (s lockingBallotStore) UpsertBallot(ctx context.Context, ballot models.RankedBallot) error {
	var winner string
	for optionID, r := range ballot.Rankings {
		if r == models.RankFirst {
			winner = optionID
		}
	}
	_, err := s.Store.LockRanked(ctx, ballot.PlanID, models.Decision{
		WinnerID:   winner,
		Scores:     models.Scores{},
		TieBreaker: models.TieBreakerNone,
		LockedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}, nil)
	if err != nil {
		return err
	}
	return s.Store.UpsertBallot(ctx, ballot)
}

func TestSubmitBallot_PlanLocksMidway(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	ranked := engine.NewRankedResolver(lockingBallotStore{st}, st, testutil.Identity())
	ctx := context.Background()
	plan, a, b, c := newRankedPlan(t, st, 2)

	err := ranked.SubmitBallot(ctx, plan.ID, testutil.Seed(1), rank(a, b, c))
	assert.ErrorIs(t, err, engine.ErrPlanClosed)

	ballots, err := st.ListBallots(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, ballots)
}

func TestSubmitBallot_ConcurrentNewcomers(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	ctx := context.Background()

	for p := 0; p < 5; p++ {
		plan, a, b, c := newRankedPlan(t, st, 2)

		const voters = 6
		errs := make([]error, voters)
		var wg sync.WaitGroup
		for i := 0; i < voters; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				_, r := testutil.NewResolvers(st)
				errs[idx] = r.SubmitBallot(ctx, plan.ID, testutil.Seed(idx+1), rank(a, b, c))
			}(i)
		}
		wg.Wait()

		accepted := 0
		for _, err := range errs {
			if err == nil {
				accepted++
				continue
			}
			assert.ErrorIs(t, err, engine.ErrPlanFull)
		}
		assert.Equal(t, 2, accepted)

		_, ranked := testutil.NewResolvers(st)
		decision, err := ranked.ComputeWinner(ctx, plan.ID)
		require.NoError(t, err, "a full plan must resolve")
		assert.Equal(t, a, decision.WinnerID)
	}
}
