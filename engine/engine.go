// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/danielhkuo/outing-pick/models"
)

// PlanReader loads the durable plan record and its options.
// GetPlan returns ErrPlanNotFound for an unknown plan.
type PlanReader interface {
	GetPlan(ctx context.Context, planID string) (models.Plan, error)
	ListOptions(ctx context.Context, planID string) ([]models.Option, error)
}

// VoteStore is the storage a PluralityResolver needs.
type VoteStore interface {
	PlanReader
	// InsertVote returns ErrDuplicateVote when the (plan, option, voter)
	// triple already exists and ErrPlanClosed once the plan is locked or
	// canceled.
	InsertVote(ctx context.Context, vote models.Vote) error
	TallyVotes(ctx context.Context, planID string) (map[string]int, error)
	// LockPlurality sets the lock only if the plan is still unlocked and not
	// canceled. It reports whether this call made the transition.
	LockPlurality(ctx context.Context, planID, winnerID string, at time.Time) (bool, error)
}

// BallotStore is the storage a RankedResolver needs.
type BallotStore interface {
	PlanReader
	// UpsertBallot replaces any ballot the same voter already holds. It
	// returns ErrPlanFull for a new voter once headcount ballots exist and
	// ErrPlanClosed once the plan is locked or canceled.
	UpsertBallot(ctx context.Context, ballot models.RankedBallot) error
	ListBallots(ctx context.Context, planID string) ([]models.RankedBallot, error)
	// LockRanked persists the decision and, when entry is non-nil, appends
	// it to the decision history, all in one atomic write. It reports false
	// without writing anything if the plan was already locked or canceled.
	LockRanked(ctx context.Context, planID string, decision models.Decision, entry *models.DecisionHistory) (bool, error)
}

// FairnessLedger answers who won the last tied decision between a dyad.
type FairnessLedger interface {
	LatestDecision(ctx context.Context, pair models.PairKey) (models.DecisionHistory, bool, error)
}

// Fingerprinter derives a voter fingerprint. auth.VoterIdentity is the
// production implementation.
type Fingerprinter interface {
	Fingerprint(planID string, seed models.IdentitySeed) string
}

// ResolverOption configures a resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	now    func() time.Time
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ResolverOption {
	return func(c *resolverConfig) {
		c.now = now
	}
}

// WithRand sets the source used for the final random tie-break. Pass a
// seeded generator to make resolutions reproducible.
func WithRand(rng *rand.Rand) ResolverOption {
	return func(c *resolverConfig) {
		c.rng = rng
	}
}

// WithLogger replaces slog.Default.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(c *resolverConfig) {
		c.logger = logger
	}
}

func newResolverConfig(opts []ResolverOption) *resolverConfig {
	c := &resolverConfig{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c
}

// clock returns the current time in the precision both SQL backends keep,
// so a timestamp read back compares equal to the one written.
func (c *resolverConfig) clock() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

func (c *resolverConfig) intN(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.IntN(n)
}
