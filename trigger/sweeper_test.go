// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package trigger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/models"
	"github.com/danielhkuo/outing-pick/testutil"
	"github.com/danielhkuo/outing-pick/trigger"
)

func TestSweep(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	ctx := context.Background()
	clock := &testutil.Clock{T: time.Now().UTC()}
	plurality, ranked := testutil.NewResolvers(st, engine.WithClock(clock.Now))

	sweeper := trigger.New(st, plurality, ranked, 2, trigger.WithClock(clock.Now))
	t.Cleanup(sweeper.Stop)

	// Past deadline with a vote: locks.
	expired, expiredOptions := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Threshold: 3, Deadline: clock.T.Add(time.Minute)})
	require.NoError(t, plurality.CastVote(ctx, expired.ID, expiredOptions[1].ID, testutil.Seed(1)))

	// Past deadline without votes: stays open.
	empty, _ := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Threshold: 3, Deadline: clock.T.Add(time.Minute)})

	// Before deadline: skipped.
	pending, pendingOptions := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Threshold: 3, Deadline: clock.T.Add(time.Hour)})
	require.NoError(t, plurality.CastVote(ctx, pending.ID, pendingOptions[0].ID, testutil.Seed(1)))

	// Ranked with every ballot in: resolves.
	full, fullOptions := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Mode: models.ModeRanked, Headcount: 1})
	require.NoError(t, ranked.SubmitBallot(ctx, full.ID, testutil.Seed(1), models.Rankings{
		fullOptions[0].ID: 2, fullOptions[1].ID: 3, fullOptions[2].ID: 1,
	}))

	// Ranked still waiting: NotReady is not a failure.
	waiting, _ := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Mode: models.ModeRanked, Headcount: 2})

	clock.T = clock.T.Add(2 * time.Minute)

	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, trigger.Report{Checked: 4, Locked: 1, Resolved: 1, Failed: 0}, report)

	for id, wantLocked := range map[string]bool{
		expired.ID: true,
		empty.ID:   false,
		pending.ID: false,
		full.ID:    true,
		waiting.ID: false,
	} {
		got, err := st.GetPlan(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, wantLocked, got.Locked, "plan %s", id)
	}

	got, err := st.GetPlan(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, fullOptions[2].ID, *got.WinnerOptionID)

	// A second sweep finds nothing new to do.
	report, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Locked+report.Resolved+report.Failed)
}

func TestSweep_CanceledContext(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	plurality, ranked := testutil.NewResolvers(st)
	sweeper := trigger.New(st, plurality, ranked, 1)
	t.Cleanup(sweeper.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sweeper.Sweep(ctx)
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	st, _ := testutil.SetupTestStore(t)
	plurality, ranked := testutil.NewResolvers(st)
	sweeper := trigger.New(st, plurality, ranked, 1)

	assert.Error(t, sweeper.Start(context.Background(), "not a schedule"))

	plan, options := testutil.CreateTestPlan(t, st, testutil.PlanSpec{Mode: models.ModeRanked, Headcount: 1})
	require.NoError(t, ranked.SubmitBallot(context.Background(), plan.ID, testutil.Seed(1), models.Rankings{
		options[0].ID: 1, options[1].ID: 2, options[2].ID: 3,
	}))

	require.NoError(t, sweeper.Start(context.Background(), "@every 1s"))
	t.Cleanup(sweeper.Stop)

	assert.Eventually(t, func() bool {
		got, err := st.GetPlan(context.Background(), plan.ID)
		return err == nil && got.Locked
	}, 5*time.Second, 100*time.Millisecond)
}
