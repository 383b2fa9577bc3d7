package models

import (
	"sort"
	"time"
)

// Plan modes
const (
	ModePlurality = "plurality"
	ModeRanked    = "ranked"
)

// RankedOptionCount is the number of options a ranked plan must carry.
const RankedOptionCount = 3

// TieBreaker records which rule settled a resolution.
type TieBreaker string

const (
	TieBreakerNone            TieBreaker = "none"
	TieBreakerTopRankPresence TieBreaker = "top_rank_presence"
	TieBreakerTurnFairness    TieBreaker = "turn_fairness"
	TieBreakerRandom          TieBreaker = "random"
)

// Rank is a ballot position; 1 is the most preferred.
type Rank int

const (
	RankFirst  Rank = 1
	RankSecond Rank = 2
	RankThird  Rank = 3
)

// Valid reports whether r is a position a ranked ballot may hold.
func (r Rank) Valid() bool {
	return r >= RankFirst && r <= RankThird
}

// Points is the Borda-style score for the position: 1st=3, 2nd=2, 3rd=1.
func (r Rank) Points() int {
	return 4 - int(r)
}

// Rankings maps option_id -> position.
type Rankings map[string]Rank

// Scores maps option_id -> summed points.
type Scores map[string]int

// IdentitySeed is what a caller hands us to derive a voter fingerprint.
// It is hashed and discarded, never stored.
type IdentitySeed struct {
	Origin string
	Client string
}

// Request types

type CreatePlanRequest struct {
	Title            string     `json:"title"`
	Mode             string     `json:"mode"`
	Headcount        int        `json:"headcount"`
	Threshold        int        `json:"threshold"`
	DecisionDeadline *time.Time `json:"decision_deadline"`
	Options          []string   `json:"options"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type SubmitBallotRequest struct {
	Rankings Rankings `json:"rankings"`
}

// Response types

type CreatePlanResponse struct {
	PlanID    string   `json:"plan_id"`
	AdminKey  string   `json:"admin_key"`
	OptionIDs []string `json:"option_ids"`
}

type CastVoteResponse struct {
	Accepted bool    `json:"accepted"`
	Locked   bool    `json:"locked"`
	WinnerID *string `json:"winner_id,omitempty"`
}

type SubmitBallotResponse struct {
	Accepted bool      `json:"accepted"`
	Resolved bool      `json:"resolved"`
	Decision *Decision `json:"decision,omitempty"`
}

type AttemptLockResponse struct {
	Locked               bool           `json:"locked"`
	WinnerID             *string        `json:"winner_id,omitempty"`
	LockedAt             *time.Time     `json:"locked_at,omitempty"`
	AlreadyLocked        bool           `json:"already_locked"`
	CurrentVotes         map[string]int `json:"current_votes,omitempty"`
	Threshold            int            `json:"threshold,omitempty"`
	TimeRemainingSeconds int64          `json:"time_remaining_seconds"`
	TimeRemaining        string         `json:"time_remaining"`
}

type CancelPlanResponse struct {
	Canceled bool `json:"canceled"`
}

type BallotCountResponse struct {
	BallotCount int `json:"ballot_count"`
	VoterCount  int `json:"voter_count"`
	Headcount   int `json:"headcount"`
}

// Domain types

type Plan struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Mode             string     `json:"mode"`
	Headcount        int        `json:"headcount"`
	Threshold        int        `json:"threshold"`
	DecisionDeadline time.Time  `json:"decision_deadline"`
	Locked           bool       `json:"locked"`
	LockedAt         *time.Time `json:"locked_at,omitempty"`
	WinnerOptionID   *string    `json:"winner_option_id,omitempty"`
	ComputedScores   Scores     `json:"computed_scores,omitempty"`
	TieBreakerUsed   TieBreaker `json:"tie_breaker_used"`
	Canceled         bool       `json:"canceled"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Closed reports whether the plan accepts no further votes or ballots.
func (p Plan) Closed() bool {
	return p.Locked || p.Canceled
}

type Option struct {
	ID          string `json:"id"`
	PlanID      string `json:"plan_id"`
	DisplayRank int    `json:"display_rank"`
	Label       string `json:"label"`
}

type PlanWithOptions struct {
	Plan    Plan     `json:"plan"`
	Options []Option `json:"options"`
}

type Vote struct {
	ID               string    `json:"id"`
	PlanID           string    `json:"plan_id"`
	OptionID         string    `json:"option_id"`
	VoterFingerprint string    `json:"-"` // Never expose in JSON
	CastAt           time.Time `json:"cast_at"`
}

type RankedBallot struct {
	ID               string    `json:"id"`
	PlanID           string    `json:"plan_id"`
	VoterFingerprint string    `json:"-"` // Never expose in JSON
	Rankings         Rankings  `json:"rankings"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// PairKey identifies a dyad independent of submission order.
type PairKey struct {
	Low  string
	High string
}

func NewPairKey(a, b string) PairKey {
	pair := []string{a, b}
	sort.Strings(pair)
	return PairKey{Low: pair[0], High: pair[1]}
}

// Other returns the member of the pair that is not fingerprint.
func (k PairKey) Other(fingerprint string) string {
	if fingerprint == k.Low {
		return k.High
	}
	return k.Low
}

type DecisionHistory struct {
	ID                string
	PlanID            string
	Pair              PairKey
	WinnerFingerprint string
	DecidedAt         time.Time
}

// Decision is the outcome of a ranked resolution.
type Decision struct {
	WinnerID   string     `json:"winner_id"`
	Scores     Scores     `json:"scores"`
	TieBreaker TieBreaker `json:"tie_breaker"`
	LockedAt   time.Time  `json:"locked_at"`
}

// LockResult is what a plurality lock attempt observed.
type LockResult struct {
	Locked        bool
	AlreadyLocked bool
	WinnerID      string
	LockedAt      time.Time
	CurrentVotes  map[string]int
	Threshold     int
	TimeRemaining time.Duration
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
