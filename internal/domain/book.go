package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketWithAmounts
// ──────────────────────────────────────────────────────────────────────────────

// MarketWithAmounts is a market plus its live pool totals in display units,
// maintained off-chain from broadcast events. The chain remains authoritative;
// these totals drive the live view only.
type MarketWithAmounts struct {
	Market
	AmountA decimal.Decimal `json:"amountA"`
	AmountB decimal.Decimal `json:"amountB"`
	BetsA   int             `json:"betsA"`
	BetsB   int             `json:"betsB"`
}

// TotalPool returns the combined amount staked on both sides.
func (m *MarketWithAmounts) TotalPool() decimal.Decimal {
	return m.AmountA.Add(m.AmountB)
}

// ──────────────────────────────────────────────────────────────────────────────
// Book events
// ──────────────────────────────────────────────────────────────────────────────

// BookEvent is one of the event types a Book consumes. The concrete types
// below mirror what arrives over the realtime topics.
type BookEvent interface{ isBookEvent() }

// MarketAdded carries a newly announced market. A repeated announcement for
// the same id replaces the tracked entry and resets its totals.
type MarketAdded struct {
	Market Market
}

// BetRecorded carries a confirmed bet contributing to a side's total.
type BetRecorded struct {
	MarketID  uuid.UUID
	Amount    decimal.Decimal
	IsAnswerA bool
}

// MarketRemoved drops a market from the book, regardless of presence.
type MarketRemoved struct {
	MarketID uuid.UUID
}

// MarketResolved records the outcome on a tracked market without removing it;
// display cleanup happens separately via expiry or removal.
type MarketResolved struct {
	MarketID  uuid.UUID
	IsAnswerA bool
}

func (MarketAdded) isBookEvent()    {}
func (BetRecorded) isBookEvent()    {}
func (MarketRemoved) isBookEvent()  {}
func (MarketResolved) isBookEvent() {}

// ──────────────────────────────────────────────────────────────────────────────
// Book
// ──────────────────────────────────────────────────────────────────────────────

// Book is the in-memory aggregation of live markets and their pool totals.
// Apply is a pure transition: it never mutates the receiver, so a caller can
// hold the old value while publishing the new one. Events for unknown market
// ids are ignored rather than erroring; a late or replayed broadcast must not
// corrupt the view.
type Book struct {
	markets map[uuid.UUID]MarketWithAmounts
}

// NewBook returns an empty book.
func NewBook() Book {
	return Book{markets: map[uuid.UUID]MarketWithAmounts{}}
}

// Get returns the tracked market and whether it exists.
func (b Book) Get(id uuid.UUID) (MarketWithAmounts, bool) {
	m, ok := b.markets[id]
	return m, ok
}

// Len returns the number of tracked markets.
func (b Book) Len() int {
	return len(b.markets)
}

// Markets returns a copy of all tracked markets.
func (b Book) Markets() []MarketWithAmounts {
	out := make([]MarketWithAmounts, 0, len(b.markets))
	for _, m := range b.markets {
		out = append(out, m)
	}
	return out
}

// DropExpired returns a book without markets whose betting window has passed.
// This is display cleanup only; it writes no status anywhere.
func (b Book) DropExpired() Book {
	next := b.clone()
	for id, m := range next.markets {
		if TimeRemaining(m.EstEndTime).IsExpired {
			delete(next.markets, id)
		}
	}
	return next
}

// Apply returns the book after consuming ev.
func (b Book) Apply(ev BookEvent) Book {
	switch e := ev.(type) {
	case MarketAdded:
		next := b.clone()
		next.markets[e.Market.ID] = MarketWithAmounts{Market: e.Market}
		return next

	case BetRecorded:
		m, ok := b.markets[e.MarketID]
		if !ok {
			return b
		}
		if e.IsAnswerA {
			m.AmountA = m.AmountA.Add(e.Amount)
			m.BetsA++
		} else {
			m.AmountB = m.AmountB.Add(e.Amount)
			m.BetsB++
		}
		next := b.clone()
		next.markets[e.MarketID] = m
		return next

	case MarketRemoved:
		if _, ok := b.markets[e.MarketID]; !ok {
			return b
		}
		next := b.clone()
		delete(next.markets, e.MarketID)
		return next

	case MarketResolved:
		m, ok := b.markets[e.MarketID]
		if !ok {
			return b
		}
		m.Status = StatusResolved
		isA := e.IsAnswerA
		m.IsAnswerA = &isA
		next := b.clone()
		next.markets[e.MarketID] = m
		return next

	default:
		return b
	}
}

func (b Book) clone() Book {
	next := Book{markets: make(map[uuid.UUID]MarketWithAmounts, len(b.markets))}
	for id, m := range b.markets {
		next.markets[id] = m
	}
	return next
}
