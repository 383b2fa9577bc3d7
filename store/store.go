// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/models"
)

// Store is the durable plan record. It satisfies engine.VoteStore,
// engine.BallotStore and engine.FairnessLedger over PostgreSQL or SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ engine.VoteStore      = (*Store)(nil)
	_ engine.BallotStore    = (*Store)(nil)
	_ engine.FairnessLedger = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const planColumns = `
	id, title, mode, headcount, threshold, decision_deadline, locked,
	locked_at, winner_option_id, computed_scores, tie_breaker_used,
	canceled, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (models.Plan, error) {
	var plan models.Plan
	var lockedAt sql.NullTime
	var winner, scores sql.NullString
	var tieBreaker string

	err := row.Scan(
		&plan.ID, &plan.Title, &plan.Mode, &plan.Headcount, &plan.Threshold,
		&plan.DecisionDeadline, &plan.Locked, &lockedAt, &winner, &scores,
		&tieBreaker, &plan.Canceled, &plan.CreatedAt,
	)
	if err != nil {
		return models.Plan{}, err
	}

	plan.DecisionDeadline = plan.DecisionDeadline.UTC()
	plan.CreatedAt = plan.CreatedAt.UTC()
	plan.TieBreakerUsed = models.TieBreaker(tieBreaker)
	if lockedAt.Valid {
		t := lockedAt.Time.UTC()
		plan.LockedAt = &t
	}
	if winner.Valid {
		plan.WinnerOptionID = &winner.String
	}
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &plan.ComputedScores); err != nil {
			return models.Plan{}, fmt.Errorf("decode computed_scores: %w", err)
		}
	}
	return plan, nil
}

// CreatePlan inserts the plan and its options in one transaction. Options
// get display ranks in the order given, starting at 1.
func (s *Store) CreatePlan(ctx context.Context, plan models.Plan, labels []string) (models.Plan, []models.Option, error) {
	plan.ID = uuid.NewString()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	plan.TieBreakerUsed = models.TieBreakerNone

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Plan{}, nil, engine.Internal("begin create plan", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, title, mode, headcount, threshold, decision_deadline, tie_breaker_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, plan.ID, plan.Title, plan.Mode, plan.Headcount, plan.Threshold,
		plan.DecisionDeadline.UTC(), string(plan.TieBreakerUsed), plan.CreatedAt)
	if err != nil {
		return models.Plan{}, nil, engine.Internal("insert plan", err)
	}

	options := make([]models.Option, 0, len(labels))
	for i, label := range labels {
		opt := models.Option{
			ID:          uuid.NewString(),
			PlanID:      plan.ID,
			DisplayRank: i + 1,
			Label:       label,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO plan_options (id, plan_id, display_rank, label)
			VALUES ($1, $2, $3, $4)
		`, opt.ID, opt.PlanID, opt.DisplayRank, opt.Label)
		if err != nil {
			return models.Plan{}, nil, engine.Internal("insert option", err)
		}
		options = append(options, opt)
	}

	if err := tx.Commit(); err != nil {
		return models.Plan{}, nil, engine.Internal("commit create plan", err)
	}
	return plan, options, nil
}

func (s *Store) GetPlan(ctx context.Context, planID string) (models.Plan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, planID)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Plan{}, fmt.Errorf("%w %s", engine.ErrPlanNotFound, planID)
	}
	if err != nil {
		return models.Plan{}, engine.Internal("get plan", err)
	}
	return plan, nil
}

// ListOpenPlans returns every plan that is neither locked nor canceled,
// earliest deadline first.
func (s *Store) ListOpenPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE locked = FALSE AND canceled = FALSE
		ORDER BY decision_deadline, id
	`)
	if err != nil {
		return nil, engine.Internal("list open plans", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, engine.Internal("scan open plan", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.Internal("list open plans", err)
	}
	return plans, nil
}

func (s *Store) ListOptions(ctx context.Context, planID string) ([]models.Option, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, display_rank, label
		FROM plan_options
		WHERE plan_id = $1
		ORDER BY display_rank
	`, planID)
	if err != nil {
		return nil, engine.Internal("list options", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.PlanID, &opt.DisplayRank, &opt.Label); err != nil {
			return nil, engine.Internal("scan option", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.Internal("list options", err)
	}
	return options, nil
}

// CancelPlan permanently closes the plan. It reports false if the plan was
// already canceled.
func (s *Store) CancelPlan(ctx context.Context, planID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET canceled = TRUE WHERE id = $1 AND canceled = FALSE
	`, planID)
	if err != nil {
		return false, engine.Internal("cancel plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, engine.Internal("cancel plan", err)
	}
	if n == 1 {
		return true, nil
	}

	if _, err := s.GetPlan(ctx, planID); err != nil {
		return false, err
	}
	return false, nil
}

// claimOpenPlan bumps the plan's revision inside tx, which holds the plan
// row until tx ends. Lock and cancel writes update the same row, so a
// mutation that claims the plan commits entirely before or entirely after
// them. It returns the plan's headcount.
func claimOpenPlan(ctx context.Context, tx *sql.Tx, planID string) (int, error) {
	var headcount int
	err := tx.QueryRowContext(ctx, `
		UPDATE plans SET revision = revision + 1
		WHERE id = $1 AND locked = FALSE AND canceled = FALSE
		RETURNING headcount
	`, planID).Scan(&headcount)
	if err == nil {
		return headcount, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, engine.Internal("claim plan", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM plans WHERE id = $1`, planID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, engine.ErrPlanNotFound
	}
	if err != nil {
		return 0, engine.Internal("get plan", err)
	}
	return 0, engine.ErrPlanClosed
}

// InsertVote relies on the (plan_id, option_id, voter_fingerprint) unique
// constraint to reject repeats, so concurrent duplicates cannot both land.
// It returns ErrPlanClosed once the plan is locked or canceled.
func (s *Store) InsertVote(ctx context.Context, vote models.Vote) error {
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Internal("begin vote", err)
	}
	defer tx.Rollback()

	if _, err := claimOpenPlan(ctx, tx, vote.PlanID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (id, plan_id, option_id, voter_fingerprint, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`, vote.ID, vote.PlanID, vote.OptionID, vote.VoterFingerprint, vote.CastAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return engine.ErrDuplicateVote
		}
		return engine.Internal("insert vote", err)
	}

	if err := tx.Commit(); err != nil {
		return engine.Internal("commit vote", err)
	}
	return nil
}

func (s *Store) TallyVotes(ctx context.Context, planID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT option_id, COUNT(*)
		FROM votes
		WHERE plan_id = $1
		GROUP BY option_id
	`, planID)
	if err != nil {
		return nil, engine.Internal("tally votes", err)
	}
	defer rows.Close()

	tally := make(map[string]int)
	for rows.Next() {
		var optionID string
		var n int
		if err := rows.Scan(&optionID, &n); err != nil {
			return nil, engine.Internal("scan tally", err)
		}
		tally[optionID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, engine.Internal("tally votes", err)
	}
	return tally, nil
}

// LockPlurality is a compare-and-swap on plans.locked.
func (s *Store) LockPlurality(ctx context.Context, planID, winnerID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans
		SET locked = TRUE, locked_at = $1, winner_option_id = $2, tie_breaker_used = 'none'
		WHERE id = $3 AND locked = FALSE AND canceled = FALSE
	`, at.UTC(), winnerID, planID)
	if err != nil {
		return false, engine.Internal("lock plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, engine.Internal("lock plan", err)
	}
	return n == 1, nil
}

// UpsertBallot writes the ballot header and replaces its positions in one
// transaction. The header upsert keeps the ballot ID stable across edits.
// A voter without a ballot is turned away with ErrPlanFull once the plan
// holds headcount ballots; ErrPlanClosed once it is locked or canceled.
func (s *Store) UpsertBallot(ctx context.Context, ballot models.RankedBallot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Internal("begin ballot", err)
	}
	defer tx.Rollback()

	headcount, err := claimOpenPlan(ctx, tx, ballot.PlanID)
	if err != nil {
		return err
	}

	var held, mine int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN voter_fingerprint = $2 THEN 1 ELSE 0 END), 0)
		FROM ranked_ballots
		WHERE plan_id = $1
	`, ballot.PlanID, ballot.VoterFingerprint).Scan(&held, &mine)
	if err != nil {
		return engine.Internal("count ballots", err)
	}
	if mine == 0 && held >= headcount {
		return engine.ErrPlanFull
	}

	var ballotID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ranked_ballots (id, plan_id, voter_fingerprint, submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (plan_id, voter_fingerprint)
		DO UPDATE SET submitted_at = excluded.submitted_at
		RETURNING id
	`, uuid.NewString(), ballot.PlanID, ballot.VoterFingerprint, ballot.SubmittedAt.UTC()).Scan(&ballotID)
	if err != nil {
		return engine.Internal("upsert ballot", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ballot_ranks WHERE ballot_id = $1`, ballotID); err != nil {
		return engine.Internal("clear ballot ranks", err)
	}

	for optionID, rank := range ballot.Rankings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ballot_ranks (ballot_id, option_id, position)
			VALUES ($1, $2, $3)
		`, ballotID, optionID, int(rank))
		if err != nil {
			return engine.Internal("insert ballot rank", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return engine.Internal("commit ballot", err)
	}
	return nil
}

// ListBallots returns complete ballots ordered by voter fingerprint.
func (s *Store) ListBallots(ctx context.Context, planID string) ([]models.RankedBallot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.voter_fingerprint, b.submitted_at, r.option_id, r.position
		FROM ranked_ballots b
		JOIN ballot_ranks r ON r.ballot_id = b.id
		WHERE b.plan_id = $1
		ORDER BY b.voter_fingerprint, r.position
	`, planID)
	if err != nil {
		return nil, engine.Internal("list ballots", err)
	}
	defer rows.Close()

	var ballots []models.RankedBallot
	for rows.Next() {
		var id, fingerprint, optionID string
		var submittedAt time.Time
		var position int
		if err := rows.Scan(&id, &fingerprint, &submittedAt, &optionID, &position); err != nil {
			return nil, engine.Internal("scan ballot", err)
		}

		if n := len(ballots); n == 0 || ballots[n-1].ID != id {
			ballots = append(ballots, models.RankedBallot{
				ID:               id,
				PlanID:           planID,
				VoterFingerprint: fingerprint,
				Rankings:         make(models.Rankings, models.RankedOptionCount),
				SubmittedAt:      submittedAt.UTC(),
			})
		}
		ballots[len(ballots)-1].Rankings[optionID] = models.Rank(position)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.Internal("list ballots", err)
	}
	return ballots, nil
}

// BallotCounts returns the number of ranked ballots and the number of
// distinct plurality voters on the plan.
func (s *Store) BallotCounts(ctx context.Context, planID string) (ballots, voters int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ranked_ballots WHERE plan_id = $1),
			(SELECT COUNT(DISTINCT voter_fingerprint) FROM votes WHERE plan_id = $1)
	`, planID).Scan(&ballots, &voters)
	if err != nil {
		return 0, 0, engine.Internal("count ballots", err)
	}
	return ballots, voters, nil
}

// LockRanked locks the plan and appends the history entry atomically. The
// conditional UPDATE runs first, so a caller that loses the race rolls back
// before touching decision_history.
func (s *Store) LockRanked(ctx context.Context, planID string, decision models.Decision, entry *models.DecisionHistory) (bool, error) {
	scores, err := json.Marshal(decision.Scores)
	if err != nil {
		return false, engine.Internal("encode scores", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, engine.Internal("begin resolve", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE plans
		SET locked = TRUE, locked_at = $1, winner_option_id = $2,
		    computed_scores = $3, tie_breaker_used = $4
		WHERE id = $5 AND locked = FALSE AND canceled = FALSE
	`, decision.LockedAt.UTC(), decision.WinnerID, string(scores), string(decision.TieBreaker), planID)
	if err != nil {
		return false, engine.Internal("lock ranked plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, engine.Internal("lock ranked plan", err)
	}
	if n != 1 {
		return false, nil
	}

	if entry != nil {
		id, err := uuid.NewV7()
		if err != nil {
			return false, engine.Internal("history id", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO decision_history (id, plan_id, pair_low, pair_high, winner_fingerprint, decided_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id.String(), entry.PlanID, entry.Pair.Low, entry.Pair.High, entry.WinnerFingerprint, entry.DecidedAt.UTC())
		if err != nil {
			return false, engine.Internal("append decision history", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, engine.Internal("commit resolve", err)
	}
	return true, nil
}

// LatestDecision returns the most recent history row for the pair, across
// all plans.
func (s *Store) LatestDecision(ctx context.Context, pair models.PairKey) (models.DecisionHistory, bool, error) {
	entry := models.DecisionHistory{Pair: pair}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, winner_fingerprint, decided_at
		FROM decision_history
		WHERE pair_low = $1 AND pair_high = $2
		ORDER BY decided_at DESC, id DESC
		LIMIT 1
	`, pair.Low, pair.High).Scan(&entry.ID, &entry.PlanID, &entry.WinnerFingerprint, &entry.DecidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DecisionHistory{}, false, nil
	}
	if err != nil {
		return models.DecisionHistory{}, false, engine.Internal("latest decision", err)
	}
	entry.DecidedAt = entry.DecidedAt.UTC()
	return entry, true, nil
}

// ListDecisions returns every history row for the pair, newest first.
func (s *Store) ListDecisions(ctx context.Context, pair models.PairKey) ([]models.DecisionHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, winner_fingerprint, decided_at
		FROM decision_history
		WHERE pair_low = $1 AND pair_high = $2
		ORDER BY decided_at DESC, id DESC
	`, pair.Low, pair.High)
	if err != nil {
		return nil, engine.Internal("list decisions", err)
	}
	defer rows.Close()

	var out []models.DecisionHistory
	for rows.Next() {
		entry := models.DecisionHistory{Pair: pair}
		if err := rows.Scan(&entry.ID, &entry.PlanID, &entry.WinnerFingerprint, &entry.DecidedAt); err != nil {
			return nil, engine.Internal("scan decision", err)
		}
		entry.DecidedAt = entry.DecidedAt.UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.Internal("list decisions", err)
	}
	return out, nil
}
