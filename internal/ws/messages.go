// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeEvent      MsgType = "event"      // bridged realtime envelope
	MsgTypeTxStep     MsgType = "tx_step"    // placement progress, per-client
	MsgTypeSettlement MsgType = "settlement" // reconciliation outcome, per-client
	MsgTypeBalance    MsgType = "balance"    // refreshed wallet balance, per-client
	MsgTypeError      MsgType = "error"
)

// EventMessage wraps a bridged realtime envelope for browser clients. Event
// names and payload shapes are exactly those of the bus topics.
type EventMessage struct {
	Type    MsgType     `json:"type"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// TxStepMessage reports placement progress for one market to the placing
// client only; other subscribers never see intermediate steps.
type TxStepMessage struct {
	Type     MsgType      `json:"type"`
	MarketID uuid.UUID    `json:"marketId"`
	Step     chain.TxStep `json:"step"`
	Message  string       `json:"message,omitempty"`
}

// SettlementMessage carries the reconciled outcome of a bet.
type SettlementMessage struct {
	Type      MsgType         `json:"type"`
	MarketID  uuid.UUID       `json:"marketId"`
	IsWinner  bool            `json:"isWinner"`
	Winnings  decimal.Decimal `json:"winnings"`
	Profit    decimal.Decimal `json:"profit"`
	Estimated bool            `json:"estimated"`
}

// NewSettlementMessage converts a domain outcome to its wire form.
func NewSettlementMessage(o domain.BetOutcome) SettlementMessage {
	return SettlementMessage{
		Type:      MsgTypeSettlement,
		MarketID:  o.Bet.MarketID,
		IsWinner:  o.IsWinner,
		Winnings:  o.Winnings,
		Profit:    o.Profit,
		Estimated: o.Estimated,
	}
}

// BalanceMessage pushes a refreshed wallet balance in display units.
type BalanceMessage struct {
	Type    MsgType         `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
