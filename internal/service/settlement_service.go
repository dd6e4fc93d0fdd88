// Package service holds the business orchestration layer: bet placement and
// settlement, market lifecycle, profile sessions, and the live book tracker.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/realtime"
	"github.com/plaetorius/streambet/internal/repository"
)

// Balance refresh offsets after a settlement notification. Payouts land
// on-chain at an unpredictable point after resolution, so the balance is
// re-read a few times instead of once.
var balanceRefreshDelays = []time.Duration{3 * time.Second, 6 * time.Second, 10 * time.Second}

// ──────────────────────────────────────────────────────────────────────────────
// Injected interfaces
// ──────────────────────────────────────────────────────────────────────────────

// Notifier is the minimal interface SettlementService needs to push
// placement progress and settlement outcomes to a connected user.
// Implemented by ws.Hub.
type Notifier interface {
	NotifyStep(profileID uuid.UUID, marketID uuid.UUID, step chain.TxStep, message string)
	NotifyOutcome(profileID uuid.UUID, outcome domain.BetOutcome)
	NotifyBalance(profileID uuid.UUID, balance decimal.Decimal)
}

// BetStore is the persistence surface of the placement and reconciliation
// flows. Implemented by repository.BetRepository; tests substitute fakes.
type BetStore interface {
	CreateDraft(ctx context.Context, b *domain.Bet) error
	Confirm(ctx context.Context, betID uuid.UUID) error
	MarkError(ctx context.Context, betID uuid.UUID) error
	SetOutcome(ctx context.Context, betID uuid.UUID, status domain.BetStatus) error
	GetConfirmedForMarket(ctx context.Context, profileID, marketID uuid.UUID) (*domain.Bet, error)
	GetConfirmedByProfile(ctx context.Context, profileID uuid.UUID) ([]*domain.Bet, error)
	ListConfirmedByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.Bet, error)
}

// MarketStore is the read surface SettlementService needs for markets.
type MarketStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error)
}

// ProfileStore is the read surface for profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

// StreamStore resolves a market's stream for topic derivation.
type StreamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Stream, error)
}

var (
	_ BetStore     = (*repository.BetRepository)(nil)
	_ MarketStore  = (*repository.MarketRepository)(nil)
	_ ProfileStore = (*repository.ProfileRepository)(nil)
	_ StreamStore  = (*repository.StreamRepository)(nil)
)

// ──────────────────────────────────────────────────────────────────────────────
// Requests & results
// ──────────────────────────────────────────────────────────────────────────────

// RequiredAction tells the caller what to fix before a bet can proceed.
type RequiredAction string

const (
	ActionConnect     RequiredAction = "connect"     // no wallet session
	ActionSwitchChain RequiredAction = "switchChain" // wrong network
)

// PlaceBetRequest carries everything the placement protocol validates.
type PlaceBetRequest struct {
	Identity  domain.Identity
	MarketID  uuid.UUID
	IsAnswerA bool
	Amount    decimal.Decimal
}

// PlaceBetResult reports the terminal state of a placement attempt. When
// RequiresAction is set, nothing was persisted or sent to the chain.
type PlaceBetResult struct {
	Bet            *domain.Bet    `json:"bet,omitempty"`
	Step           chain.TxStep   `json:"step"`
	RequiresAction RequiredAction `json:"requiresAction,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService runs the bet placement protocol and reconciles bets
// against the chain when results arrive.
type SettlementService struct {
	cfg         *config.Config
	betStore    BetStore
	marketStore MarketStore
	profStore   ProfileStore
	streamStore StreamStore
	chain       chain.Client
	bus         realtime.Bus
	notifier    Notifier
	log         *slog.Logger
}

// NewSettlementService wires the settlement orchestrator.
func NewSettlementService(
	cfg *config.Config,
	betStore BetStore,
	marketStore MarketStore,
	profStore ProfileStore,
	streamStore StreamStore,
	chainClient chain.Client,
	bus realtime.Bus,
	log *slog.Logger,
) *SettlementService {
	return &SettlementService{
		cfg:         cfg,
		betStore:    betStore,
		marketStore: marketStore,
		profStore:   profStore,
		streamStore: streamStore,
		chain:       chainClient,
		bus:         bus,
		log:         log,
	}
}

// SetNotifier injects the WS hub dependency post-construction.
func (s *SettlementService) SetNotifier(n Notifier) { s.notifier = n }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet runs the full placement protocol: validate, persist draft, derive
// the pool id, submit the transaction, then promote to confirmed and
// broadcast — or mark the draft as error with a user-facing message. A bet
// is never left in draft once the transaction outcome is known.
func (s *SettlementService) PlaceBet(ctx context.Context, req PlaceBetRequest) (*PlaceBetResult, error) {
	// ── 1. Wallet session validation ─────────────────────────────────────────
	if !req.Identity.IsConnected || req.Identity.WalletAddress == "" {
		return &PlaceBetResult{
			Step:           chain.StepIdle,
			RequiresAction: ActionConnect,
			Message:        "Connect a wallet to place a bet.",
		}, nil
	}
	if req.Identity.ChainID != s.cfg.Chain.ChainID {
		// The wallet session is asked to switch before the user is
		// re-prompted; the caller retries once the switch completes.
		return &PlaceBetResult{
			Step:           chain.StepIdle,
			RequiresAction: ActionSwitchChain,
			Message:        fmt.Sprintf("Switch to chain %d to place a bet.", s.cfg.Chain.ChainID),
		}, nil
	}

	// ── 2. Input validation ──────────────────────────────────────────────────
	if req.Amount.LessThan(decimal.NewFromFloat(s.cfg.Betting.MinBet)) {
		return nil, fmt.Errorf("settlement.PlaceBet: %w: amount below minimum", domain.ErrValidation)
	}
	if req.Amount.GreaterThan(decimal.NewFromFloat(s.cfg.Betting.MaxBet)) {
		return nil, fmt.Errorf("settlement.PlaceBet: %w: amount above maximum", domain.ErrValidation)
	}

	if _, err := s.profStore.GetByID(ctx, req.Identity.ProfileID); err != nil {
		return nil, fmt.Errorf("settlement.PlaceBet: get profile: %w", err)
	}

	market, err := s.marketStore.GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("settlement.PlaceBet: get market: %w", err)
	}
	if market.Status != domain.StatusOpen || !market.IsActive() {
		return nil, fmt.Errorf("settlement.PlaceBet: %w", domain.ErrMarketClosed)
	}

	// ── 3. Persist draft (failure aborts before any chain write) ─────────────
	now := time.Now().UTC()
	bet := &domain.Bet{
		ID:        uuid.New(),
		ProfileID: req.Identity.ProfileID,
		MarketID:  req.MarketID,
		IsAnswerA: req.IsAnswerA,
		Amount:    req.Amount,
		Status:    domain.BetStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.betStore.CreateDraft(ctx, bet); err != nil {
		return nil, fmt.Errorf("settlement.PlaceBet: create draft: %w", err)
	}

	// ── 4. Derive pool id and submit ─────────────────────────────────────────
	poolID := chain.PoolIDBig(req.MarketID.String())
	amountWei := chain.EtherToWei(req.Amount)

	s.notifyStep(bet.ProfileID, bet.MarketID, chain.StepSending, "")
	txHash, err := s.chain.PlaceBet(ctx, poolID, req.IsAnswerA, amountWei)
	if err != nil {
		return s.failPlacement(ctx, bet, err)
	}

	s.notifyStep(bet.ProfileID, bet.MarketID, chain.StepConfirming, "")
	if err := s.chain.WaitForReceipt(ctx, txHash); err != nil {
		return s.failPlacement(ctx, bet, err)
	}

	// ── 5. Promote to confirmed and broadcast ────────────────────────────────
	if err := s.betStore.Confirm(ctx, bet.ID); err != nil {
		// The chain accepted the bet; a store conflict here is logged loudly
		// rather than shown as a placement failure.
		s.log.Error("settlement: tx confirmed but store promotion failed",
			"bet_id", bet.ID, "tx", txHash, "error", err)
		return nil, fmt.Errorf("settlement.PlaceBet: confirm: %w", err)
	}
	bet.Status = domain.BetStatusConfirmed

	s.broadcastBet(ctx, market, bet)
	s.notifyStep(bet.ProfileID, bet.MarketID, chain.StepConfirmed, "")

	s.log.Info("settlement: bet confirmed",
		"bet_id", bet.ID, "market_id", bet.MarketID, "pool_id", poolID, "tx", txHash)

	return &PlaceBetResult{Bet: bet, Step: chain.StepConfirmed}, nil
}

// failPlacement moves a draft bet to error and maps the failure to a user
// message.
func (s *SettlementService) failPlacement(ctx context.Context, bet *domain.Bet, cause error) (*PlaceBetResult, error) {
	if err := s.betStore.MarkError(ctx, bet.ID); err != nil {
		s.log.Error("settlement: failed to mark bet as error", "bet_id", bet.ID, "error", err)
	}
	bet.Status = domain.BetStatusError

	msg := chain.UserMessage("")
	var txErr *chain.TxError
	if errors.As(cause, &txErr) {
		msg = txErr.Message
	}

	s.notifyStep(bet.ProfileID, bet.MarketID, chain.StepError, msg)
	s.log.Warn("settlement: placement failed",
		"bet_id", bet.ID, "market_id", bet.MarketID, "error", cause)

	return &PlaceBetResult{Bet: bet, Step: chain.StepError, Message: msg}, nil
}

// broadcastBet publishes the confirmed bet on its stream's topic. The
// publisher is subscribed to the same topic, so its own book picks the bet
// up through the ordinary delivery path.
func (s *SettlementService) broadcastBet(ctx context.Context, market *domain.Market, bet *domain.Bet) {
	stream, err := s.streamStore.GetByID(ctx, market.StreamID)
	if err != nil {
		s.log.Error("settlement: broadcast skipped, stream lookup failed",
			"market_id", market.ID, "error", err)
		return
	}

	env, err := realtime.NewEnvelope(realtime.BetEvent(bet.IsAnswerA), domain.NewBetPayload(bet))
	if err != nil {
		s.log.Error("settlement: broadcast skipped", "bet_id", bet.ID, "error", err)
		return
	}

	topic := realtime.TopicBetStream(stream.Platform, stream.Name, realtime.KindAll)
	if err := s.bus.Publish(ctx, topic, env); err != nil {
		// Best-effort delivery: the chain already holds the truth.
		s.log.Warn("settlement: broadcast failed", "topic", topic, "bet_id", bet.ID, "error", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Result reconciliation
// ──────────────────────────────────────────────────────────────────────────────

// Start subscribes to the global results topic and reconciles every
// confirmed bet on each resolved market. Runs until ctx is cancelled.
func (s *SettlementService) Start(ctx context.Context) error {
	results, err := s.bus.Subscribe(ctx, realtime.ResultsTopic)
	if err != nil {
		return fmt.Errorf("settlement.Start: %w", err)
	}
	go func() {
		for env := range results {
			if env.Event != realtime.EventResult {
				continue
			}
			var result domain.ResultPayload
			if err := json.Unmarshal(env.Payload, &result); err != nil {
				s.log.Warn("settlement: bad result payload", "error", err)
				continue
			}
			s.reconcileMarket(ctx, result)
		}
	}()
	return nil
}

// reconcileMarket settles every confirmed bet on a resolved market.
func (s *SettlementService) reconcileMarket(ctx context.Context, result domain.ResultPayload) {
	bets, err := s.betStore.ListConfirmedByMarket(ctx, result.MarketID)
	if err != nil {
		s.log.Error("settlement: reconcile listing failed",
			"market_id", result.MarketID, "error", err)
		return
	}
	for _, b := range bets {
		if _, err := s.HandleResult(ctx, b.ProfileID, result); err != nil {
			s.log.Error("settlement: reconcile failed",
				"bet_id", b.ID, "profile_id", b.ProfileID, "error", err)
		}
	}
}

// HandleResult reconciles one profile's position after a market resolves.
// No confirmed bet on the market is a no-op. The chain's pool state is
// authoritative; when it cannot be read the outcome is a labeled estimate.
func (s *SettlementService) HandleResult(ctx context.Context, profileID uuid.UUID, result domain.ResultPayload) (*domain.BetOutcome, error) {
	bet, err := s.betStore.GetConfirmedForMarket(ctx, profileID, result.MarketID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil // spectator on this market
		}
		return nil, fmt.Errorf("settlement.HandleResult: get bet: %w", err)
	}

	isWinner := bet.IsAnswerA == result.IsAnswerA
	outcome := s.settleOutcome(ctx, bet, result, isWinner)

	status := domain.BetStatusLose
	if isWinner {
		status = domain.BetStatusWin
	}
	if err := s.betStore.SetOutcome(ctx, bet.ID, status); err != nil {
		s.log.Error("settlement: outcome persist failed", "bet_id", bet.ID, "error", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyOutcome(profileID, outcome)
	}
	s.scheduleBalanceRefreshes(profileID)

	return &outcome, nil
}

// settleOutcome computes the profit for a settled bet, falling back to a
// degraded estimate when the chain read fails or disagrees about resolution.
func (s *SettlementService) settleOutcome(ctx context.Context, bet *domain.Bet, result domain.ResultPayload, isWinner bool) domain.BetOutcome {
	poolID := chain.PoolIDBig(result.MarketID.String())
	pool, err := s.chain.GetPoolInfo(ctx, poolID)
	if err != nil || !pool.Resolved {
		return s.estimatedOutcome(bet, isWinner, err)
	}

	res := domain.CalculateWinnings(domain.BetInfo{
		Amount:    chain.EtherToWei(bet.Amount),
		IsAnswerA: bet.IsAnswerA,
	}, pool)

	return domain.BetOutcome{
		Bet:      bet,
		IsWinner: res.IsWinner,
		Winnings: chain.WeiToEther(res.Winnings),
		Profit:   chain.WeiToEther(res.Profit),
	}
}

// estimatedOutcome is the degraded path: winners are shown half their stake
// as profit, losers their full stake as loss. Explicitly labeled so no layer
// presents it as authoritative.
func (s *SettlementService) estimatedOutcome(bet *domain.Bet, isWinner bool, cause error) domain.BetOutcome {
	s.log.Warn("settlement: degraded settlement estimate",
		"bet_id", bet.ID, "market_id", bet.MarketID, "error", cause)

	profit := bet.Amount.Neg()
	winnings := decimal.Zero
	if isWinner {
		profit = bet.Amount.Div(decimal.NewFromInt(2))
		winnings = bet.Amount.Add(profit)
	}
	return domain.BetOutcome{
		Bet:       bet,
		IsWinner:  isWinner,
		Winnings:  winnings,
		Profit:    profit,
		Estimated: true,
	}
}

// scheduleBalanceRefreshes re-reads the wallet balance at fixed offsets
// after settlement. Each refresh fails silently; the next one retries.
func (s *SettlementService) scheduleBalanceRefreshes(profileID uuid.UUID) {
	for _, delay := range balanceRefreshDelays {
		go func(d time.Duration) {
			time.Sleep(d)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			profile, err := s.profStore.GetByID(ctx, profileID)
			if err != nil {
				s.log.Debug("settlement: balance refresh skipped", "profile_id", profileID, "error", err)
				return
			}
			wei, err := s.chain.BalanceOf(ctx, profile.WalletAddress)
			if err != nil {
				s.log.Debug("settlement: balance refresh failed", "profile_id", profileID, "error", err)
				return
			}
			if s.notifier != nil {
				s.notifier.NotifyBalance(profileID, chain.WeiToEther(wei))
			}
		}(delay)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// ConfirmedBets returns the caller's confirmed bets keyed by market id.
func (s *SettlementService) ConfirmedBets(ctx context.Context, profileID uuid.UUID) (map[uuid.UUID]*domain.Bet, error) {
	bets, err := s.betStore.GetConfirmedByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("settlement.ConfirmedBets: %w", err)
	}
	byMarket := make(map[uuid.UUID]*domain.Bet, len(bets))
	for _, b := range bets {
		byMarket[b.MarketID] = b
	}
	return byMarket, nil
}

func (s *SettlementService) notifyStep(profileID, marketID uuid.UUID, step chain.TxStep, msg string) {
	if s.notifier != nil {
		s.notifier.NotifyStep(profileID, marketID, step, msg)
	}
}
