// Package repository contains the sqlx data access layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/plaetorius/streambet/internal/domain"
)

// MarketRepository handles all database operations for Markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	query := `
		INSERT INTO markets
			(id, question, answer_a, answer_b, start_time, est_end_time, real_end_time,
			 duration, status, stream_id, is_answer_a, created_at, updated_at)
		VALUES
			(:id, :question, :answer_a, :answer_b, :start_time, :est_end_time, :real_end_time,
			 :duration, :status, :stream_id, :is_answer_a, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by its primary key.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &m, nil
}

// GetByStream returns the markets for a stream in non-terminal statuses,
// newest first.
func (r *MarketRepository) GetByStream(ctx context.Context, streamID uuid.UUID) ([]*domain.Market, error) {
	var markets []*domain.Market
	err := r.db.SelectContext(ctx, &markets,
		`SELECT * FROM markets
		 WHERE stream_id = $1 AND status IN ('draft','open','timeout','stopped')
		 ORDER BY start_time DESC`,
		streamID)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetByStream: %w", err)
	}
	return markets, nil
}

// GetExpiredOpen returns open markets whose estimated end time has passed,
// i.e. due for the timeout sweep. now is a Unix-millisecond timestamp.
func (r *MarketRepository) GetExpiredOpen(ctx context.Context, now int64) ([]*domain.Market, error) {
	var markets []*domain.Market
	err := r.db.SelectContext(ctx, &markets,
		`SELECT * FROM markets WHERE status = 'open' AND est_end_time <= $1 ORDER BY est_end_time ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetExpiredOpen: %w", err)
	}
	return markets, nil
}

// UpdateStatus moves a market between statuses. The WHERE clause re-checks
// the expected current status so concurrent transitions cannot double-apply.
func (r *MarketRepository) UpdateStatus(ctx context.Context, marketID uuid.UUID, from, to domain.MarketStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE markets SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, marketID, from)
	if err != nil {
		return fmt.Errorf("market_repo.UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Resolve sets the winning side, the real end time, and status=resolved.
// Permitted from any pre-resolution, non-absorbed status.
func (r *MarketRepository) Resolve(ctx context.Context, marketID uuid.UUID, isAnswerA bool, realEndTime int64) error {
	query := `
		UPDATE markets
		SET status        = 'resolved',
		    is_answer_a   = $1,
		    real_end_time = $2,
		    updated_at    = now()
		WHERE id = $3 AND status IN ('draft','open','timeout','stopped')`
	res, err := r.db.ExecContext(ctx, query, isAnswerA, realEndTime, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// List returns a paginated slice of markets filtered by optional status.
// status="" returns all statuses. Returns (markets, totalCount, error).
func (r *MarketRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	var markets []*domain.Market
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM markets WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets WHERE status = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM markets`); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets ORDER BY start_time DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	}
	return markets, total, nil
}
