// Package domain defines the core business entities and types for the
// streambet live-stream prediction market system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	StatusDraft    MarketStatus = "draft"    // created, not yet open for betting
	StatusOpen     MarketStatus = "open"     // accepting bets
	StatusTimeout  MarketStatus = "timeout"  // betting window over, awaiting resolution
	StatusStopped  MarketStatus = "stopped"  // halted early by an admin, awaiting resolution
	StatusError    MarketStatus = "error"    // failed administratively; terminal
	StatusVoided   MarketStatus = "voided"   // voided by admin action; terminal
	StatusResolved MarketStatus = "resolved" // outcome set, payouts handled on-chain
)

// IsTerminal returns true for states a market can never leave.
func (s MarketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusVoided || s == StatusError
}

// CanTransition reports whether a market may move from s to next.
//
// The graph: draft → open → {timeout, stopped}; any of draft, open, timeout,
// stopped may be resolved directly; voided and error absorb every
// pre-resolution state.
func (s MarketStatus) CanTransition(next MarketStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusOpen:
		return s == StatusDraft
	case StatusTimeout, StatusStopped:
		return s == StatusOpen
	case StatusResolved:
		return s == StatusDraft || s == StatusOpen || s == StatusTimeout || s == StatusStopped
	case StatusVoided, StatusError:
		return true
	default:
		return false
	}
}

// Side identifies one of the two answers of a market, mirroring the
// BettingPool contract's BetSide enum (A = 0, B = 1).
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// SideFromIsA converts the stored isAnswerA boolean into a Side.
func SideFromIsA(isAnswerA bool) Side {
	if isAnswerA {
		return SideA
	}
	return SideB
}

// Market duration bounds in seconds.
const (
	MinMarketDuration = 10
	MaxMarketDuration = 900
)

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market represents a single yes/no-style question tied to a stream.
// All timing fields are Unix-millisecond timestamps (see timeutil.go): a
// global audience makes structured datetimes a timezone hazard, integers are
// not.
type Market struct {
	ID          uuid.UUID    `json:"id"          db:"id"`
	Question    string       `json:"question"    db:"question"`
	AnswerA     string       `json:"answerA"     db:"answer_a"`
	AnswerB     string       `json:"answerB"     db:"answer_b"`
	StartTime   int64        `json:"startTime"   db:"start_time"`
	EstEndTime  int64        `json:"estEndTime"  db:"est_end_time"`
	RealEndTime *int64       `json:"realEndTime" db:"real_end_time"` // set only at resolution
	Duration    int          `json:"duration"    db:"duration"`      // seconds, 10-900 inclusive
	Status      MarketStatus `json:"status"      db:"status"`
	StreamID    uuid.UUID    `json:"streamId"    db:"stream_id"`
	IsAnswerA   *bool        `json:"isAnswerA"   db:"is_answer_a"` // resolved side; nil until resolved
	CreatedAt   time.Time    `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt"   db:"updated_at"`
}

// ValidDuration returns true when the duration is within the allowed window.
func (m *Market) ValidDuration() bool {
	return m.Duration >= MinMarketDuration && m.Duration <= MaxMarketDuration
}

// IsActive returns true while the current time sits inside the betting window.
func (m *Market) IsActive() bool {
	return IsMarketActive(m.StartTime, m.EstEndTime)
}

// IsResolved returns true after the market has been settled.
func (m *Market) IsResolved() bool {
	return m.Status == StatusResolved
}

// ResolvedSide returns the winning side, or "" when the market is unresolved.
func (m *Market) ResolvedSide() Side {
	if m.IsAnswerA == nil {
		return ""
	}
	return SideFromIsA(*m.IsAnswerA)
}

// ──────────────────────────────────────────────────────────────────────────────
// Stream
// ──────────────────────────────────────────────────────────────────────────────

// Stream identifies an embedded live stream that markets attach to.
type Stream struct {
	ID        uuid.UUID `json:"id"        db:"id"`
	Platform  string    `json:"platform"  db:"platform"`
	Name      string    `json:"name"      db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
