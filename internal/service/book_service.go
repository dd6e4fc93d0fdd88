package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/realtime"
)

// ──────────────────────────────────────────────────────────────────────────────
// BookService
// ──────────────────────────────────────────────────────────────────────────────

// BookService maintains the in-memory pool view for each tracked stream by
// consuming the stream's bet topic and the global results topic. The books
// are a display-layer convenience fed entirely by broadcasts; the chain and
// the store stay authoritative.
type BookService struct {
	bus realtime.Bus
	log *slog.Logger

	mu    sync.RWMutex
	books map[string]domain.Book // keyed by "platform:name", lowercased
}

// NewBookService creates an empty book tracker.
func NewBookService(bus realtime.Bus, log *slog.Logger) *BookService {
	return &BookService{
		bus:   bus,
		books: map[string]domain.Book{},
		log:   log,
	}
}

// Start subscribes to the global results topic. Per-stream topics are joined
// lazily through Track. Runs until ctx is cancelled.
func (s *BookService) Start(ctx context.Context) error {
	results, err := s.bus.Subscribe(ctx, realtime.ResultsTopic)
	if err != nil {
		return fmt.Errorf("book_service.Start: %w", err)
	}
	go func() {
		for env := range results {
			s.handleResult(env)
		}
	}()
	return nil
}

// Track starts consuming a stream's bet topic. Idempotent per stream key;
// the book survives for as long as ctx does.
func (s *BookService) Track(ctx context.Context, platform, name string) error {
	key := streamKey(platform, name)

	s.mu.Lock()
	if _, ok := s.books[key]; ok {
		s.mu.Unlock()
		return nil
	}
	s.books[key] = domain.NewBook()
	s.mu.Unlock()

	topic := realtime.TopicBetStream(platform, name, realtime.KindAll)
	sub, err := s.bus.Subscribe(ctx, topic)
	if err != nil {
		s.mu.Lock()
		delete(s.books, key)
		s.mu.Unlock()
		return fmt.Errorf("book_service.Track: %w", err)
	}

	go func() {
		for env := range sub {
			s.handleStreamEvent(key, env)
		}
		s.mu.Lock()
		delete(s.books, key)
		s.mu.Unlock()
	}()

	s.log.Info("book: tracking stream", "topic", topic)
	return nil
}

// Snapshot returns the tracked markets for a stream, or nil when the stream
// is not tracked.
func (s *BookService) Snapshot(platform, name string) []domain.MarketWithAmounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[streamKey(platform, name)]
	if !ok {
		return nil
	}
	return book.Markets()
}

// SweepExpired drops expired markets from every book. Called by the
// scheduler each tick; pure display cleanup.
func (s *BookService) SweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, book := range s.books {
		s.books[key] = book.DropExpired()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Event handling
// ──────────────────────────────────────────────────────────────────────────────

func (s *BookService) handleStreamEvent(key string, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventNewMarket:
		var m domain.Market
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			s.log.Warn("book: bad new_market payload", "error", err)
			return
		}
		s.apply(key, domain.MarketAdded{Market: m})

	case realtime.EventBetTeamA, realtime.EventBetTeamB:
		var p domain.BetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.log.Warn("book: bad bet payload", "event", env.Event, "error", err)
			return
		}
		s.apply(key, domain.BetRecorded{
			MarketID:  p.MarketID,
			Amount:    p.Amount,
			IsAnswerA: env.Event == realtime.EventBetTeamA,
		})

	default:
		// Unknown events are skipped; the protocol may grow.
	}
}

// handleResult drops the resolved market from every book. Removal happens
// regardless of whether the market was tracked, so a book that missed the
// announcement cannot hold a stale resolved market.
func (s *BookService) handleResult(env realtime.Envelope) {
	if env.Event != realtime.EventResult {
		return
	}
	var r domain.ResultPayload
	if err := json.Unmarshal(env.Payload, &r); err != nil {
		s.log.Warn("book: bad result payload", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, book := range s.books {
		s.books[key] = book.Apply(domain.MarketRemoved{MarketID: r.MarketID})
	}
}

func (s *BookService) apply(key string, ev domain.BookEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[key]
	if !ok {
		return
	}
	s.books[key] = book.Apply(ev)
}

func streamKey(platform, name string) string {
	return realtime.TopicBetStream(platform, name, realtime.KindAll)
}
