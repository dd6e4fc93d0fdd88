// Package scheduler manages the background goroutines that keep market
// state honest:
//  1. timeoutSweepLoop – moves open markets past their window into timeout.
//  2. bookSweepLoop    – drops expired markets from the in-memory books.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/plaetorius/streambet/internal/service"
)

const (
	timeoutSweepInterval = 5 * time.Second
	bookSweepInterval    = 15 * time.Second
)

// Scheduler runs the market lifecycle sweeps. Call Start(ctx) once from
// main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	marketSvc *service.MarketService
	bookSvc   *service.BookService
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(marketSvc *service.MarketService, bookSvc *service.BookService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		marketSvc: marketSvc,
		bookSvc:   bookSvc,
		logger:    logger,
	}
}

// Start launches the background goroutines. It returns immediately; all
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.timeoutSweepLoop(ctx)
	go s.bookSweepLoop(ctx)
	s.logger.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// timeoutSweepLoop
// ──────────────────────────────────────────────────────────────────────────────

// timeoutSweepLoop checks for expired open markets every few seconds and
// moves them to timeout so no new bets land past the betting window.
func (s *Scheduler) timeoutSweepLoop(ctx context.Context) {
	defer s.recoverAndLog("timeoutSweepLoop")

	ticker := time.NewTicker(timeoutSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("timeoutSweepLoop: shutting down")
			return
		case <-ticker.C:
			moved, err := s.marketSvc.SweepTimeouts(ctx)
			if err != nil {
				s.logger.Error("timeoutSweepLoop: sweep failed", "err", err)
				continue
			}
			if moved > 0 {
				s.logger.Info("timeoutSweepLoop: markets timed out", "count", moved)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// bookSweepLoop
// ──────────────────────────────────────────────────────────────────────────────

// bookSweepLoop trims expired markets from the display books. Purely
// cosmetic; the store and chain are never touched here.
func (s *Scheduler) bookSweepLoop(ctx context.Context) {
	defer s.recoverAndLog("bookSweepLoop")

	ticker := time.NewTicker(bookSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("bookSweepLoop: shutting down")
			return
		case <-ticker.C:
			s.bookSvc.SweepExpired()
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and let the rest of the process keep running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
