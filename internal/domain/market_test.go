package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/shopspring/decimal"
)

// ── Status machine ────────────────────────────────────────────────────────────

func TestMarketStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.MarketStatus
		want     bool
	}{
		{domain.StatusDraft, domain.StatusOpen, true},
		{domain.StatusOpen, domain.StatusTimeout, true},
		{domain.StatusOpen, domain.StatusStopped, true},
		{domain.StatusDraft, domain.StatusResolved, true},
		{domain.StatusOpen, domain.StatusResolved, true},
		{domain.StatusTimeout, domain.StatusResolved, true},
		{domain.StatusStopped, domain.StatusResolved, true},
		{domain.StatusDraft, domain.StatusVoided, true},
		{domain.StatusTimeout, domain.StatusError, true},

		{domain.StatusDraft, domain.StatusTimeout, false},
		{domain.StatusDraft, domain.StatusStopped, false},
		{domain.StatusTimeout, domain.StatusOpen, false},
		{domain.StatusStopped, domain.StatusOpen, false},
		{domain.StatusResolved, domain.StatusOpen, false},
		{domain.StatusResolved, domain.StatusVoided, false},
		{domain.StatusVoided, domain.StatusResolved, false},
		{domain.StatusError, domain.StatusResolved, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestMarketStatus_IsTerminal(t *testing.T) {
	terminal := []domain.MarketStatus{domain.StatusResolved, domain.StatusVoided, domain.StatusError}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []domain.MarketStatus{domain.StatusDraft, domain.StatusOpen, domain.StatusTimeout, domain.StatusStopped}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestMarket_ValidDuration(t *testing.T) {
	m := &domain.Market{Duration: 10}
	if !m.ValidDuration() {
		t.Error("10s should be a valid duration")
	}
	m.Duration = 900
	if !m.ValidDuration() {
		t.Error("900s should be a valid duration")
	}
	m.Duration = 9
	if m.ValidDuration() {
		t.Error("9s should be rejected")
	}
	m.Duration = 901
	if m.ValidDuration() {
		t.Error("901s should be rejected")
	}
}

// ── Time window ───────────────────────────────────────────────────────────────

func TestIsMarketActive_Window(t *testing.T) {
	now := domain.Now()
	if !domain.IsMarketActive(now-1000, now+1000) {
		t.Error("market spanning now should be active")
	}
	if domain.IsMarketActive(now+5000, now+10000) {
		t.Error("market starting in the future should not be active")
	}
	if domain.IsMarketActive(now-10000, now-5000) {
		t.Error("market ended in the past should not be active")
	}
	// Inclusive bounds: a window that starts at now must be active.
	if !domain.IsMarketActive(now, now+1000) {
		t.Error("market starting exactly now should be active")
	}
}

func TestTimeRemaining(t *testing.T) {
	r := domain.TimeRemaining(domain.Now() + domain.MinutesToMs(2))
	if r.IsExpired {
		t.Fatal("a target two minutes out is not expired")
	}
	if r.Minutes < 1 || r.Minutes > 2 {
		t.Errorf("Minutes = %d, want ~2", r.Minutes)
	}
	if r.Days != 0 || r.Hours != 0 {
		t.Errorf("unexpected days/hours: %d/%d", r.Days, r.Hours)
	}

	past := domain.TimeRemaining(domain.Now() - 1)
	if !past.IsExpired {
		t.Error("a past target should be expired")
	}
	if past.Total != 0 {
		t.Errorf("expired Total = %d, want 0 (clamped)", past.Total)
	}
}

func TestTimeRemaining_Components(t *testing.T) {
	target := domain.Now() + 26*60*60*1000 + 5*60*1000 // 1d 2h 5m out
	r := domain.TimeRemaining(target)
	if r.Days != 1 {
		t.Errorf("Days = %d, want 1", r.Days)
	}
	if r.Hours != 2 {
		t.Errorf("Hours = %d, want 2", r.Hours)
	}
	if r.Minutes < 4 || r.Minutes > 5 {
		t.Errorf("Minutes = %d, want ~5", r.Minutes)
	}
}

// ── Book transitions ──────────────────────────────────────────────────────────

func openMarket(id uuid.UUID) domain.Market {
	now := domain.Now()
	return domain.Market{
		ID:         id,
		Question:   "does the speedrun finish under 20 minutes",
		AnswerA:    "yes",
		AnswerB:    "no",
		StartTime:  now,
		EstEndTime: now + domain.MinutesToMs(5),
		Duration:   300,
		Status:     domain.StatusOpen,
	}
}

func TestBook_BetAggregation(t *testing.T) {
	id := uuid.New()
	b := domain.NewBook().
		Apply(domain.MarketAdded{Market: openMarket(id)}).
		Apply(domain.BetRecorded{MarketID: id, Amount: decimal.NewFromFloat(0.1), IsAnswerA: true}).
		Apply(domain.BetRecorded{MarketID: id, Amount: decimal.NewFromFloat(0.25), IsAnswerA: true}).
		Apply(domain.BetRecorded{MarketID: id, Amount: decimal.NewFromFloat(0.05), IsAnswerA: false})

	m, ok := b.Get(id)
	if !ok {
		t.Fatal("market should be tracked")
	}
	if !m.AmountA.Equal(decimal.NewFromFloat(0.35)) {
		t.Errorf("AmountA = %s, want 0.35", m.AmountA)
	}
	if !m.AmountB.Equal(decimal.NewFromFloat(0.05)) {
		t.Errorf("AmountB = %s, want 0.05", m.AmountB)
	}
	if m.BetsA != 2 || m.BetsB != 1 {
		t.Errorf("bet counts = %d/%d, want 2/1", m.BetsA, m.BetsB)
	}
	if !m.TotalPool().Equal(decimal.NewFromFloat(0.4)) {
		t.Errorf("TotalPool = %s, want 0.4", m.TotalPool())
	}
}

func TestBook_UnknownMarketIgnored(t *testing.T) {
	b := domain.NewBook().
		Apply(domain.BetRecorded{MarketID: uuid.New(), Amount: decimal.NewFromInt(1), IsAnswerA: true}).
		Apply(domain.MarketRemoved{MarketID: uuid.New()}).
		Apply(domain.MarketResolved{MarketID: uuid.New(), IsAnswerA: true})
	if b.Len() != 0 {
		t.Errorf("book should still be empty, has %d markets", b.Len())
	}
}

func TestBook_DuplicateAnnouncementOverwrites(t *testing.T) {
	id := uuid.New()
	b := domain.NewBook().
		Apply(domain.MarketAdded{Market: openMarket(id)}).
		Apply(domain.BetRecorded{MarketID: id, Amount: decimal.NewFromInt(3), IsAnswerA: true}).
		Apply(domain.MarketAdded{Market: openMarket(id)})

	m, _ := b.Get(id)
	if !m.AmountA.IsZero() {
		t.Errorf("re-announced market should reset totals, AmountA = %s", m.AmountA)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
}

func TestBook_ApplyIsPure(t *testing.T) {
	id := uuid.New()
	before := domain.NewBook().Apply(domain.MarketAdded{Market: openMarket(id)})
	_ = before.Apply(domain.BetRecorded{MarketID: id, Amount: decimal.NewFromInt(7), IsAnswerA: false})

	m, _ := before.Get(id)
	if !m.AmountB.IsZero() {
		t.Errorf("Apply mutated its receiver: AmountB = %s", m.AmountB)
	}
}

func TestBook_DropExpired(t *testing.T) {
	live := openMarket(uuid.New())
	dead := openMarket(uuid.New())
	dead.EstEndTime = domain.Now() - 1000

	b := domain.NewBook().
		Apply(domain.MarketAdded{Market: live}).
		Apply(domain.MarketAdded{Market: dead}).
		DropExpired()

	if _, ok := b.Get(live.ID); !ok {
		t.Error("live market should survive expiry sweep")
	}
	if _, ok := b.Get(dead.ID); ok {
		t.Error("expired market should be dropped")
	}
}

func TestBook_Resolved(t *testing.T) {
	id := uuid.New()
	b := domain.NewBook().
		Apply(domain.MarketAdded{Market: openMarket(id)}).
		Apply(domain.MarketResolved{MarketID: id, IsAnswerA: false})

	m, _ := b.Get(id)
	if m.Status != domain.StatusResolved {
		t.Errorf("status = %s, want resolved", m.Status)
	}
	if m.ResolvedSide() != domain.SideB {
		t.Errorf("ResolvedSide = %q, want B", m.ResolvedSide())
	}
}
