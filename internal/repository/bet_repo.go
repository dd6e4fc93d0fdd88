package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/plaetorius/streambet/internal/domain"
)

// BetRepository handles all database operations for Bets.
type BetRepository struct {
	db *sqlx.DB
}

// NewBetRepository creates a new BetRepository.
func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// CreateDraft inserts a new bet in draft status. The partial unique index on
// (profile_id, market_id) for confirmed bets does not apply to drafts, so a
// failed placement can be retried with a fresh draft.
func (r *BetRepository) CreateDraft(ctx context.Context, b *domain.Bet) error {
	query := `
		INSERT INTO bets
			(id, profile_id, market_id, is_answer_a, amount, status, created_at, updated_at)
		VALUES
			(:id, :profile_id, :market_id, :is_answer_a, :amount, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("bet_repo.CreateDraft: %w", err)
	}
	return nil
}

// GetByID fetches a bet by its primary key.
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	var b domain.Bet
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetByID: %w", err)
	}
	return &b, nil
}

// Confirm promotes a draft bet to confirmed. The unique index rejects a
// second confirmed bet on the same market for the same profile; that
// violation surfaces as ErrConflict.
func (r *BetRepository) Confirm(ctx context.Context, betID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bets SET status = 'confirmed', updated_at = now() WHERE id = $1 AND status = 'draft'`,
		betID)
	if err != nil {
		if isPgUniqueViolation(err, "bets_one_confirmed_per_market") {
			return domain.ErrConflict
		}
		return fmt.Errorf("bet_repo.Confirm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkError moves a draft bet to error after a failed transaction.
func (r *BetRepository) MarkError(ctx context.Context, betID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bets SET status = 'error', updated_at = now() WHERE id = $1 AND status = 'draft'`,
		betID)
	if err != nil {
		return fmt.Errorf("bet_repo.MarkError: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetOutcome records the settled status (win or lose) on a confirmed bet.
func (r *BetRepository) SetOutcome(ctx context.Context, betID uuid.UUID, status domain.BetStatus) error {
	if status != domain.BetStatusWin && status != domain.BetStatusLose {
		return fmt.Errorf("bet_repo.SetOutcome: %w: status %q", domain.ErrValidation, status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE bets SET status = $1, updated_at = now() WHERE id = $2 AND status = 'confirmed'`,
		status, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.SetOutcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetConfirmedByProfile returns a profile's confirmed bets, newest first.
func (r *BetRepository) GetConfirmedByProfile(ctx context.Context, profileID uuid.UUID) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE profile_id = $1 AND status = 'confirmed' ORDER BY created_at DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetConfirmedByProfile: %w", err)
	}
	return bets, nil
}

// GetConfirmedForMarket returns a profile's confirmed bet on one market, or
// ErrNotFound when they never confirmed one.
func (r *BetRepository) GetConfirmedForMarket(ctx context.Context, profileID, marketID uuid.UUID) (*domain.Bet, error) {
	var b domain.Bet
	err := r.db.GetContext(ctx, &b,
		`SELECT * FROM bets WHERE profile_id = $1 AND market_id = $2 AND status = 'confirmed'`,
		profileID, marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetConfirmedForMarket: %w", err)
	}
	return &b, nil
}

// ListConfirmedByMarket returns every confirmed bet on a market, across all
// profiles. Drives settlement reconciliation after a result.
func (r *BetRepository) ListConfirmedByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE market_id = $1 AND status = 'confirmed' ORDER BY created_at`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListConfirmedByMarket: %w", err)
	}
	return bets, nil
}

// GetByMarket returns every bet placed on a market, newest first. Used by
// the backoffice detail view.
func (r *BetRepository) GetByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE market_id = $1 ORDER BY created_at DESC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByMarket: %w", err)
	}
	return bets, nil
}

// GetByProfile returns a profile's bet history, paginated.
func (r *BetRepository) GetByProfile(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE profile_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		profileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByProfile: %w", err)
	}
	return bets, nil
}

// isPgUniqueViolation checks whether err is a PostgreSQL unique constraint
// violation for the given constraint name.
func isPgUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "unique constraint") &&
		strings.Contains(err.Error(), constraintName)
}
