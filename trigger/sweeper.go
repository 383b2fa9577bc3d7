// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"

	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/models"
)

// PlanLister returns plans that are neither locked nor canceled.
type PlanLister interface {
	ListOpenPlans(ctx context.Context) ([]models.Plan, error)
}

type Locker interface {
	AttemptLock(ctx context.Context, planID string) (models.LockResult, error)
}

type Resolver interface {
	ComputeWinner(ctx context.Context, planID string) (models.Decision, error)
}

// Report counts what one sweep did.
type Report struct {
	Checked  int
	Locked   int
	Resolved int
	Failed   int
}

// Sweeper periodically retries resolution for open plans, so a plurality
// plan whose deadline passes with no further traffic still locks and a
// ranked plan whose last inline resolve failed is picked up again.
type Sweeper struct {
	plans     PlanLister
	plurality Locker
	ranked    Resolver
	pool      pond.Pool
	logger    *slog.Logger
	now       func() time.Time
	timeout   time.Duration

	cron *cron.Cron
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithTimeout bounds a single scheduled sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		s.timeout = d
	}
}

func New(plans PlanLister, plurality Locker, ranked Resolver, workers int, opts ...Option) *Sweeper {
	if workers < 1 {
		workers = 1
	}
	s := &Sweeper{
		plans:     plans,
		plurality: plurality,
		ranked:    ranked,
		pool:      pond.NewPool(workers),
		logger:    slog.Default(),
		now:       time.Now,
		timeout:   25 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep makes one resolution attempt for every open plan that could be
// ready. Per-plan failures are counted and logged, not returned.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	open, err := s.plans.ListOpenPlans(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list open plans: %w", err)
	}

	now := s.now()
	var locked, resolved, failed atomic.Int32
	checked := 0

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, plan := range open {
		switch plan.Mode {
		case models.ModePlurality:
			// Before the deadline only a vote can change the outcome, and
			// the vote handler already tries to lock.
			if now.Before(plan.DecisionDeadline) {
				continue
			}
			checked++
			planID := plan.ID
			group.Submit(func() {
				if groupCtx.Err() != nil {
					return
				}
				res, err := s.plurality.AttemptLock(groupCtx, planID)
				switch {
				case err != nil:
					failed.Add(1)
					s.logger.Warn("sweep lock failed", "plan_id", planID, "error", err)
				case res.Locked && !res.AlreadyLocked:
					locked.Add(1)
				}
			})

		case models.ModeRanked:
			checked++
			planID := plan.ID
			group.Submit(func() {
				if groupCtx.Err() != nil {
					return
				}
				_, err := s.ranked.ComputeWinner(groupCtx, planID)
				switch {
				case err == nil:
					resolved.Add(1)
				case errors.Is(err, engine.ErrNotReady), errors.Is(err, engine.ErrState):
				default:
					failed.Add(1)
					s.logger.Warn("sweep resolve failed", "plan_id", planID, "error", err)
				}
			})
		}
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return Report{}, err
	}

	report := Report{
		Checked:  checked,
		Locked:   int(locked.Load()),
		Resolved: int(resolved.Load()),
		Failed:   int(failed.Load()),
	}
	if report.Locked > 0 || report.Resolved > 0 || report.Failed > 0 {
		s.logger.Info("sweep finished",
			"open", len(open),
			"checked", report.Checked,
			"locked", report.Locked,
			"resolved", report.Resolved,
			"failed", report.Failed,
		)
	}
	return report, ctx.Err()
}

// Start runs Sweep on the cron schedule until Stop. spec accepts standard
// five-field expressions and descriptors such as "@every 30s".
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if _, err := s.Sweep(rctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("sweeper started", "schedule", spec)
	return nil
}

// Stop halts the schedule, waits for a running sweep, and releases the
// worker pool.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.pool.StopAndWait()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
