package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/realtime"
	"github.com/plaetorius/streambet/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketService
// ──────────────────────────────────────────────────────────────────────────────

// MarketService owns the market lifecycle: creation, status transitions, and
// resolution. Every transition goes through domain.MarketStatus.CanTransition
// so the graph has one source of truth.
type MarketService struct {
	marketRepo *repository.MarketRepository
	streamRepo *repository.StreamRepository
	chain      chain.Client
	bus        realtime.Bus
	log        *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(
	marketRepo *repository.MarketRepository,
	streamRepo *repository.StreamRepository,
	chainClient chain.Client,
	bus realtime.Bus,
	log *slog.Logger,
) *MarketService {
	return &MarketService{
		marketRepo: marketRepo,
		streamRepo: streamRepo,
		chain:      chainClient,
		bus:        bus,
		log:        log,
	}
}

// CreateMarketRequest carries the admin's market definition.
type CreateMarketRequest struct {
	Platform string `json:"platform"`
	Stream   string `json:"stream"`
	Question string `json:"question"`
	AnswerA  string `json:"answerA"`
	AnswerB  string `json:"answerB"`
	Duration int    `json:"duration"` // seconds
}

// Create persists a new market in open status and announces it on the
// stream's topic. The betting window starts immediately and the estimated
// end is startTime + duration.
func (s *MarketService) Create(ctx context.Context, req CreateMarketRequest) (*domain.Market, error) {
	if req.Question == "" || req.AnswerA == "" || req.AnswerB == "" {
		return nil, fmt.Errorf("market_service.Create: %w: question and both answers are required", domain.ErrValidation)
	}
	if req.Duration < domain.MinMarketDuration || req.Duration > domain.MaxMarketDuration {
		return nil, fmt.Errorf("market_service.Create: %w: duration must be %d-%d seconds",
			domain.ErrValidation, domain.MinMarketDuration, domain.MaxMarketDuration)
	}

	stream, err := s.streamRepo.GetOrCreate(ctx, req.Platform, req.Stream)
	if err != nil {
		return nil, fmt.Errorf("market_service.Create: stream: %w", err)
	}

	start := domain.Now()
	now := time.Now().UTC()
	market := &domain.Market{
		ID:         uuid.New(),
		Question:   req.Question,
		AnswerA:    req.AnswerA,
		AnswerB:    req.AnswerB,
		StartTime:  start,
		EstEndTime: domain.AddDuration(start, domain.SecondsToMs(int64(req.Duration))),
		Duration:   req.Duration,
		Status:     domain.StatusOpen,
		StreamID:   stream.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.marketRepo.Create(ctx, market); err != nil {
		return nil, fmt.Errorf("market_service.Create: persist: %w", err)
	}

	s.announce(ctx, stream, market)
	s.log.Info("market: created",
		"market_id", market.ID, "stream", stream.Name, "duration_s", req.Duration)
	return market, nil
}

// announce broadcasts new_market on the stream's topic. Subscribers that
// already track the id replace their entry, so a repeated announcement is
// harmless.
func (s *MarketService) announce(ctx context.Context, stream *domain.Stream, market *domain.Market) {
	env, err := realtime.NewEnvelope(realtime.EventNewMarket, market)
	if err != nil {
		s.log.Error("market: announce skipped", "market_id", market.ID, "error", err)
		return
	}
	topic := realtime.TopicBetStream(stream.Platform, stream.Name, realtime.KindAll)
	if err := s.bus.Publish(ctx, topic, env); err != nil {
		s.log.Warn("market: announce failed", "topic", topic, "market_id", market.ID, "error", err)
	}
}

// Transition moves a market to the requested status after checking the
// transition graph. Used for stop, void, and error; resolution has its own
// path because it also touches the chain.
func (s *MarketService) Transition(ctx context.Context, marketID uuid.UUID, to domain.MarketStatus) (*domain.Market, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service.Transition: get: %w", err)
	}
	if !market.Status.CanTransition(to) {
		return nil, fmt.Errorf("market_service.Transition: %w: %s -> %s",
			domain.ErrBadTransition, market.Status, to)
	}
	if err := s.marketRepo.UpdateStatus(ctx, marketID, market.Status, to); err != nil {
		return nil, fmt.Errorf("market_service.Transition: update: %w", err)
	}
	market.Status = to

	s.log.Info("market: status changed", "market_id", marketID, "status", to)
	return market, nil
}

// Stop halts an open market early; bets close but resolution is pending.
func (s *MarketService) Stop(ctx context.Context, marketID uuid.UUID) (*domain.Market, error) {
	return s.Transition(ctx, marketID, domain.StatusStopped)
}

// Void annuls a market from any pre-resolution state.
func (s *MarketService) Void(ctx context.Context, marketID uuid.UUID) (*domain.Market, error) {
	return s.Transition(ctx, marketID, domain.StatusVoided)
}

// Resolve settles a market: persist the winning side, submit resolvePool on
// the contract, and broadcast the result globally. Allowed from draft, open,
// timeout, and stopped.
func (s *MarketService) Resolve(ctx context.Context, marketID uuid.UUID, isAnswerA bool) (*domain.Market, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service.Resolve: get: %w", err)
	}
	if !market.Status.CanTransition(domain.StatusResolved) {
		return nil, fmt.Errorf("market_service.Resolve: %w: %s -> resolved",
			domain.ErrBadTransition, market.Status)
	}

	realEnd := domain.Now()
	if err := s.marketRepo.Resolve(ctx, marketID, isAnswerA, realEnd); err != nil {
		return nil, fmt.Errorf("market_service.Resolve: persist: %w", err)
	}
	market.Status = domain.StatusResolved
	market.IsAnswerA = &isAnswerA
	market.RealEndTime = &realEnd

	// The store is settled first so a chain failure can be retried from a
	// consistent state; payouts only move once resolvePool lands.
	poolID := chain.PoolIDBig(marketID.String())
	txHash, err := s.chain.ResolvePool(ctx, poolID, isAnswerA)
	if err != nil {
		s.log.Error("market: resolvePool failed, chain retry required",
			"market_id", marketID, "pool_id", poolID, "error", err)
		return nil, fmt.Errorf("market_service.Resolve: chain: %w", err)
	}

	s.broadcastResult(ctx, marketID, isAnswerA)
	s.log.Info("market: resolved",
		"market_id", marketID, "is_answer_a", isAnswerA, "pool_id", poolID, "tx", txHash)
	return market, nil
}

// broadcastResult publishes the outcome on the global results topic.
func (s *MarketService) broadcastResult(ctx context.Context, marketID uuid.UUID, isAnswerA bool) {
	env, err := realtime.NewEnvelope(realtime.EventResult, domain.ResultPayload{
		MarketID:  marketID,
		IsAnswerA: isAnswerA,
	})
	if err != nil {
		s.log.Error("market: result broadcast skipped", "market_id", marketID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, realtime.ResultsTopic, env); err != nil {
		s.log.Warn("market: result broadcast failed", "market_id", marketID, "error", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries & sweeps
// ──────────────────────────────────────────────────────────────────────────────

// GetByID returns a single market.
func (s *MarketService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetByID: %w", err)
	}
	return m, nil
}

// List returns markets with an optional status filter.
func (s *MarketService) List(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	return s.marketRepo.List(ctx, limit, offset, status)
}

// ListByStream returns a stream's live markets.
func (s *MarketService) ListByStream(ctx context.Context, platform, name string) ([]*domain.Market, error) {
	stream, err := s.streamRepo.GetByRef(ctx, platform, name)
	if err != nil {
		if domain.IsNotFound(err) {
			return []*domain.Market{}, nil
		}
		return nil, fmt.Errorf("market_service.ListByStream: %w", err)
	}
	return s.marketRepo.GetByStream(ctx, stream.ID)
}

// SweepTimeouts moves open markets past their estimated end into timeout.
// Called by the scheduler; returns the number of markets moved.
func (s *MarketService) SweepTimeouts(ctx context.Context) (int, error) {
	expired, err := s.marketRepo.GetExpiredOpen(ctx, domain.Now())
	if err != nil {
		return 0, fmt.Errorf("market_service.SweepTimeouts: %w", err)
	}
	moved := 0
	for _, m := range expired {
		if err := s.marketRepo.UpdateStatus(ctx, m.ID, domain.StatusOpen, domain.StatusTimeout); err != nil {
			if domain.IsConflict(err) {
				continue // already transitioned by someone else
			}
			s.log.Error("market: timeout sweep failed for market", "market_id", m.ID, "error", err)
			continue
		}
		moved++
	}
	return moved, nil
}
