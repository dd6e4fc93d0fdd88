package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/realtime"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeBetStore struct {
	mu       sync.Mutex
	bets     map[uuid.UUID]*domain.Bet
	draftErr error
}

func newFakeBetStore() *fakeBetStore {
	return &fakeBetStore{bets: map[uuid.UUID]*domain.Bet{}}
}

func (f *fakeBetStore) CreateDraft(_ context.Context, b *domain.Bet) error {
	if f.draftErr != nil {
		return f.draftErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bets[b.ID] = &cp
	return nil
}

func (f *fakeBetStore) setStatus(id uuid.UUID, from, to domain.BetStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != from {
		return domain.ErrConflict
	}
	b.Status = to
	return nil
}

func (f *fakeBetStore) Confirm(_ context.Context, id uuid.UUID) error {
	return f.setStatus(id, domain.BetStatusDraft, domain.BetStatusConfirmed)
}

func (f *fakeBetStore) MarkError(_ context.Context, id uuid.UUID) error {
	return f.setStatus(id, domain.BetStatusDraft, domain.BetStatusError)
}

func (f *fakeBetStore) SetOutcome(_ context.Context, id uuid.UUID, status domain.BetStatus) error {
	return f.setStatus(id, domain.BetStatusConfirmed, status)
}

func (f *fakeBetStore) GetConfirmedForMarket(_ context.Context, profileID, marketID uuid.UUID) (*domain.Bet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bets {
		if b.ProfileID == profileID && b.MarketID == marketID && b.Status == domain.BetStatusConfirmed {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBetStore) GetConfirmedByProfile(_ context.Context, profileID uuid.UUID) ([]*domain.Bet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Bet
	for _, b := range f.bets {
		if b.ProfileID == profileID && b.Status == domain.BetStatusConfirmed {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBetStore) ListConfirmedByMarket(_ context.Context, marketID uuid.UUID) ([]*domain.Bet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Bet
	for _, b := range f.bets {
		if b.MarketID == marketID && b.Status == domain.BetStatusConfirmed {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBetStore) get(id uuid.UUID) *domain.Bet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bets[id]
}

type fakeMarketStore struct{ markets map[uuid.UUID]*domain.Market }

func (f *fakeMarketStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

type fakeProfileStore struct{ profiles map[uuid.UUID]*domain.Profile }

func (f *fakeProfileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeStreamStore struct{ stream *domain.Stream }

func (f *fakeStreamStore) GetByID(_ context.Context, _ uuid.UUID) (*domain.Stream, error) {
	return f.stream, nil
}

type fakeChain struct {
	placeErr  error
	waitErr   error
	poolInfo  domain.PoolInfo
	poolErr   error
	placed    int
	lastWei   *big.Int
	lastSideA bool
}

func (f *fakeChain) PlaceBet(_ context.Context, _ *big.Int, isAnswerA bool, amountWei *big.Int) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed++
	f.lastWei = amountWei
	f.lastSideA = isAnswerA
	return "0xabc", nil
}

func (f *fakeChain) WaitForReceipt(_ context.Context, _ string) error { return f.waitErr }

func (f *fakeChain) GetPoolInfo(_ context.Context, _ *big.Int) (domain.PoolInfo, error) {
	return f.poolInfo, f.poolErr
}

func (f *fakeChain) ResolvePool(_ context.Context, _ *big.Int, _ bool) (string, error) {
	return "0xdef", nil
}

func (f *fakeChain) BalanceOf(_ context.Context, _ string) (*big.Int, error) {
	return big.NewInt(0), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Harness
// ──────────────────────────────────────────────────────────────────────────────

type settlementHarness struct {
	svc     *SettlementService
	bets    *fakeBetStore
	chain   *fakeChain
	memBus  *realtime.MemoryBus
	profile *domain.Profile
	market  *domain.Market
}

func newSettlementHarness(t *testing.T) *settlementHarness {
	t.Helper()

	now := domain.Now()
	profile := &domain.Profile{
		ID:            uuid.New(),
		WalletAddress: "0x1111111111111111111111111111111111111111",
		Username:      "viewer",
	}
	stream := &domain.Stream{ID: uuid.New(), Platform: "twitch", Name: "caseoblonge"}
	market := &domain.Market{
		ID:         uuid.New(),
		Question:   "clutch or choke",
		AnswerA:    "clutch",
		AnswerB:    "choke",
		StartTime:  now - 1000,
		EstEndTime: now + domain.MinutesToMs(5),
		Duration:   300,
		Status:     domain.StatusOpen,
		StreamID:   stream.ID,
	}

	cfg := &config.Config{}
	cfg.Chain.ChainID = 84532
	cfg.Betting.MinBet = 0.001
	cfg.Betting.MaxBet = 10

	bets := newFakeBetStore()
	fc := &fakeChain{}
	memBus := realtime.NewMemoryBus()
	log := slog.New(slog.DiscardHandler)

	svc := NewSettlementService(cfg, bets,
		&fakeMarketStore{markets: map[uuid.UUID]*domain.Market{market.ID: market}},
		&fakeProfileStore{profiles: map[uuid.UUID]*domain.Profile{profile.ID: profile}},
		&fakeStreamStore{stream: stream},
		fc, memBus, log)

	return &settlementHarness{
		svc:     svc,
		bets:    bets,
		chain:   fc,
		memBus:  memBus,
		profile: profile,
		market:  market,
	}
}

func (h *settlementHarness) request(amount float64, isAnswerA bool) PlaceBetRequest {
	return PlaceBetRequest{
		Identity: domain.Identity{
			ProfileID:     h.profile.ID,
			WalletAddress: h.profile.WalletAddress,
			ChainID:       84532,
			IsConnected:   true,
		},
		MarketID:  h.market.ID,
		IsAnswerA: isAnswerA,
		Amount:    decimal.NewFromFloat(amount),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Placement
// ──────────────────────────────────────────────────────────────────────────────

func TestPlaceBet_ConfirmedAndBroadcast(t *testing.T) {
	h := newSettlementHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := realtime.TopicBetStream("twitch", "caseoblonge", realtime.KindAll)
	sub, err := h.memBus.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	res, err := h.svc.PlaceBet(ctx, h.request(0.05, true))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if res.Step != chain.StepConfirmed {
		t.Fatalf("step = %s, want confirmed", res.Step)
	}
	if res.Bet.Status != domain.BetStatusConfirmed {
		t.Errorf("bet status = %s, want confirmed", res.Bet.Status)
	}
	if stored := h.bets.get(res.Bet.ID); stored == nil || stored.Status != domain.BetStatusConfirmed {
		t.Error("store should hold the bet as confirmed")
	}
	if h.chain.lastWei.String() != "50000000000000000" {
		t.Errorf("wei sent = %s, want 0.05 ETH in wei", h.chain.lastWei)
	}

	select {
	case env := <-sub:
		if env.Event != realtime.EventBetTeamA {
			t.Errorf("event = %q, want bet_team_a", env.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("confirmed bet was never broadcast")
	}
}

func TestPlaceBet_ChainFailureMarksError(t *testing.T) {
	h := newSettlementHarness(t)
	h.chain.placeErr = chain.NewTxError(chain.CodeActionRejected, "")

	res, err := h.svc.PlaceBet(context.Background(), h.request(0.05, false))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if res.Step != chain.StepError {
		t.Fatalf("step = %s, want error", res.Step)
	}
	if res.Message != "Transaction was rejected in the wallet." {
		t.Errorf("message = %q, want the mapped wallet-rejection text", res.Message)
	}
	if stored := h.bets.get(res.Bet.ID); stored == nil || stored.Status != domain.BetStatusError {
		t.Error("draft must move to error after a terminal tx failure")
	}
}

func TestPlaceBet_ReceiptFailureMarksError(t *testing.T) {
	h := newSettlementHarness(t)
	h.chain.waitErr = errors.New("context deadline exceeded")

	res, err := h.svc.PlaceBet(context.Background(), h.request(0.05, true))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if res.Step != chain.StepError {
		t.Fatalf("step = %s, want error", res.Step)
	}
	if stored := h.bets.get(res.Bet.ID); stored.Status != domain.BetStatusError {
		t.Errorf("bet left in %s, never allowed to stay draft", stored.Status)
	}
}

func TestPlaceBet_DisconnectedWalletRequiresConnect(t *testing.T) {
	h := newSettlementHarness(t)
	req := h.request(0.05, true)
	req.Identity.IsConnected = false

	res, err := h.svc.PlaceBet(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if res.RequiresAction != ActionConnect {
		t.Errorf("requiresAction = %q, want connect", res.RequiresAction)
	}
	if h.chain.placed != 0 {
		t.Error("no chain call may happen before the wallet is connected")
	}
	if len(h.bets.bets) != 0 {
		t.Error("nothing may be persisted before the wallet is connected")
	}
}

func TestPlaceBet_WrongChainRequiresSwitch(t *testing.T) {
	h := newSettlementHarness(t)
	req := h.request(0.05, true)
	req.Identity.ChainID = 1

	res, err := h.svc.PlaceBet(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if res.RequiresAction != ActionSwitchChain {
		t.Errorf("requiresAction = %q, want switchChain", res.RequiresAction)
	}
	if h.chain.placed != 0 || len(h.bets.bets) != 0 {
		t.Error("wrong chain must abort before persistence and chain calls")
	}
}

func TestPlaceBet_DraftFailureAbortsBeforeChain(t *testing.T) {
	h := newSettlementHarness(t)
	h.bets.draftErr = errors.New("store down")

	if _, err := h.svc.PlaceBet(context.Background(), h.request(0.05, true)); err == nil {
		t.Fatal("expected an error when the draft cannot be persisted")
	}
	if h.chain.placed != 0 {
		t.Error("chain must not be touched when the draft insert fails")
	}
}

func TestPlaceBet_ClosedMarketRejected(t *testing.T) {
	h := newSettlementHarness(t)
	h.market.Status = domain.StatusTimeout

	_, err := h.svc.PlaceBet(context.Background(), h.request(0.05, true))
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("err = %v, want ErrMarketClosed", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────────────────────────────────

func confirmBet(t *testing.T, h *settlementHarness, amount float64, isAnswerA bool) *domain.Bet {
	t.Helper()
	res, err := h.svc.PlaceBet(context.Background(), h.request(amount, isAnswerA))
	if err != nil || res.Step != chain.StepConfirmed {
		t.Fatalf("placement failed: %v (step %s)", err, res.Step)
	}
	return res.Bet
}

func TestHandleResult_WinnerFromChainTotals(t *testing.T) {
	h := newSettlementHarness(t)
	bet := confirmBet(t, h, 0.05, true)

	// Pool in wei: 0.1 on A, 0.3 on B. A wins: fee 0.02, distributable 0.38,
	// a 0.05 stake takes 0.05*0.38/0.1 = 0.19.
	eth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	tenth := new(big.Int).Div(eth, big.NewInt(10))
	h.chain.poolInfo = domain.PoolInfo{
		TotalAmountA: tenth,
		TotalAmountB: new(big.Int).Mul(tenth, big.NewInt(3)),
		Resolved:     true,
		WinnerIsA:    true,
	}

	outcome, err := h.svc.HandleResult(context.Background(),
		h.profile.ID, domain.ResultPayload{MarketID: h.market.ID, IsAnswerA: true})
	if err != nil {
		t.Fatalf("HandleResult: %v", err)
	}
	if outcome == nil || !outcome.IsWinner {
		t.Fatal("expected a winning outcome")
	}
	if outcome.Estimated {
		t.Error("chain totals were readable, outcome must not be estimated")
	}
	if !outcome.Winnings.Equal(decimal.NewFromFloat(0.19)) {
		t.Errorf("winnings = %s, want 0.19", outcome.Winnings)
	}
	if !outcome.Profit.Equal(decimal.NewFromFloat(0.14)) {
		t.Errorf("profit = %s, want 0.14", outcome.Profit)
	}
	if stored := h.bets.get(bet.ID); stored.Status != domain.BetStatusWin {
		t.Errorf("stored status = %s, want win", stored.Status)
	}
}

func TestHandleResult_LoserFullStakeLoss(t *testing.T) {
	h := newSettlementHarness(t)
	bet := confirmBet(t, h, 0.05, false)

	eth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	tenth := new(big.Int).Div(eth, big.NewInt(10))
	h.chain.poolInfo = domain.PoolInfo{
		TotalAmountA: tenth,
		TotalAmountB: new(big.Int).Mul(tenth, big.NewInt(3)),
		Resolved:     true,
		WinnerIsA:    true,
	}

	outcome, err := h.svc.HandleResult(context.Background(),
		h.profile.ID, domain.ResultPayload{MarketID: h.market.ID, IsAnswerA: true})
	if err != nil {
		t.Fatalf("HandleResult: %v", err)
	}
	if outcome.IsWinner {
		t.Fatal("bet on B must lose when A resolves")
	}
	if !outcome.Profit.Equal(decimal.NewFromFloat(-0.05)) {
		t.Errorf("profit = %s, want -0.05", outcome.Profit)
	}
	if stored := h.bets.get(bet.ID); stored.Status != domain.BetStatusLose {
		t.Errorf("stored status = %s, want lose", stored.Status)
	}
}

func TestHandleResult_DegradedEstimateOnChainFailure(t *testing.T) {
	h := newSettlementHarness(t)
	confirmBet(t, h, 0.08, true)
	h.chain.poolErr = errors.New("rpc unreachable")

	outcome, err := h.svc.HandleResult(context.Background(),
		h.profile.ID, domain.ResultPayload{MarketID: h.market.ID, IsAnswerA: true})
	if err != nil {
		t.Fatalf("HandleResult: %v", err)
	}
	if !outcome.Estimated {
		t.Fatal("unreadable pool state must produce a labeled estimate")
	}
	if !outcome.Profit.Equal(decimal.NewFromFloat(0.04)) {
		t.Errorf("estimated winner profit = %s, want half the stake (0.04)", outcome.Profit)
	}
}

func TestHandleResult_SpectatorIsNoOp(t *testing.T) {
	h := newSettlementHarness(t)

	outcome, err := h.svc.HandleResult(context.Background(),
		h.profile.ID, domain.ResultPayload{MarketID: h.market.ID, IsAnswerA: true})
	if err != nil {
		t.Fatalf("HandleResult: %v", err)
	}
	if outcome != nil {
		t.Error("a profile with no confirmed bet must settle to nothing")
	}
}

func TestConfirmedBets_KeyedByMarket(t *testing.T) {
	h := newSettlementHarness(t)
	bet := confirmBet(t, h, 0.02, true)

	byMarket, err := h.svc.ConfirmedBets(context.Background(), h.profile.ID)
	if err != nil {
		t.Fatalf("ConfirmedBets: %v", err)
	}
	got, ok := byMarket[h.market.ID]
	if !ok {
		t.Fatal("confirmed bet missing from the per-market map")
	}
	if got.ID != bet.ID {
		t.Errorf("bet id = %s, want %s", got.ID, bet.ID)
	}
}
