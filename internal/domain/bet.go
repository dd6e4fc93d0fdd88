package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BetStatus represents the current state of a user's bet.
type BetStatus string

const (
	BetStatusDraft     BetStatus = "draft"     // persisted intent; on-chain tx not yet confirmed
	BetStatusAccepted  BetStatus = "accepted"  // reserved intermediate state (unused placement path)
	BetStatusConfirmed BetStatus = "confirmed" // chain transaction mined successfully
	BetStatusWin       BetStatus = "win"       // market resolved in user's favour
	BetStatusLose      BetStatus = "lose"      // market resolved against user
	BetStatusError     BetStatus = "error"     // chain transaction rejected, reverted, or timed out
	BetStatusVoided    BetStatus = "voided"    // administrative backstop; bet annulled
)

// IsTerminalTx returns true for statuses a bet can reach after its placement
// transaction has a known outcome. A bet must never stay in draft once the
// transaction result is known.
func (s BetStatus) IsTerminalTx() bool {
	return s == BetStatusConfirmed || s == BetStatusError
}

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet represents a single user wager on one side of one market.
// Amount is in display units (ETH); the chain layer converts to wei at the
// transaction boundary.
type Bet struct {
	ID        uuid.UUID       `json:"id"        db:"id"`
	ProfileID uuid.UUID       `json:"profileId" db:"profile_id"`
	MarketID  uuid.UUID       `json:"marketId"  db:"market_id"`
	IsAnswerA bool            `json:"isAnswerA" db:"is_answer_a"`
	Amount    decimal.Decimal `json:"amount"    db:"amount"`
	Status    BetStatus       `json:"status"    db:"status"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Side returns the bet's side as a Side value.
func (b *Bet) Side() Side {
	return SideFromIsA(b.IsAnswerA)
}

// ──────────────────────────────────────────────────────────────────────────────
// Wire payloads — broadcast representations (see realtime package for topics)
// ──────────────────────────────────────────────────────────────────────────────

// BetPayload is the broadcast representation of a confirmed bet, used by every
// subscriber (including the sender, via self-delivery) to update pool totals.
type BetPayload struct {
	MarketID  uuid.UUID       `json:"marketId"`
	ProfileID uuid.UUID       `json:"profileId"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"createdAt"` // ISO 8601
	BetID     uuid.UUID       `json:"betId"`
	IsAnswerA bool            `json:"isAnswerA"`
}

// NewBetPayload builds the wire form of a confirmed bet.
func NewBetPayload(b *Bet) BetPayload {
	return BetPayload{
		MarketID:  b.MarketID,
		ProfileID: b.ProfileID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		BetID:     b.ID,
		IsAnswerA: b.IsAnswerA,
	}
}

// ResultPayload broadcasts a market's resolution outcome on the global
// results channel.
type ResultPayload struct {
	MarketID  uuid.UUID `json:"marketId"`
	IsAnswerA bool      `json:"isAnswerA"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetOutcome — reconciliation result attached to a bet after a result event
// ──────────────────────────────────────────────────────────────────────────────

// BetOutcome carries the computed settlement for one bet. Winnings and Profit
// are in display units. Estimated marks the degraded path where the chain's
// authoritative pool state could not be read.
type BetOutcome struct {
	Bet       *Bet            `json:"bet"`
	IsWinner  bool            `json:"isWinner"`
	Winnings  decimal.Decimal `json:"winnings"`
	Profit    decimal.Decimal `json:"profit"`
	Estimated bool            `json:"estimated"`
}
