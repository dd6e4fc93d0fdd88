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

// ProfileRepository handles all database operations for Profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert inserts a profile keyed by wallet address, or refreshes the
// username and updated_at when the address already exists. Returns the
// stored row either way.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	var out domain.Profile
	query := `
		INSERT INTO profiles (id, wallet_address, username, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (wallet_address) DO UPDATE
		SET username = EXCLUDED.username, updated_at = now()
		RETURNING *`
	err := r.db.GetContext(ctx, &out, query, p.ID, p.WalletAddress, p.Username)
	if err != nil {
		return nil, fmt.Errorf("profile_repo.Upsert: %w", err)
	}
	return &out, nil
}

// GetByID fetches a profile by primary key.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.GetContext(ctx, &p, `SELECT * FROM profiles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("profile_repo.GetByID: %w", err)
	}
	return &p, nil
}

// GetByWallet fetches a profile by its normalized wallet address.
func (r *ProfileRepository) GetByWallet(ctx context.Context, address string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.GetContext(ctx, &p, `SELECT * FROM profiles WHERE wallet_address = $1`,
		domain.NormalizeAddress(address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("profile_repo.GetByWallet: %w", err)
	}
	return &p, nil
}
