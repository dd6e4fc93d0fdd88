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

// StreamRepository handles all database operations for Streams.
type StreamRepository struct {
	db *sqlx.DB
}

// NewStreamRepository creates a new StreamRepository.
func NewStreamRepository(db *sqlx.DB) *StreamRepository {
	return &StreamRepository{db: db}
}

// GetOrCreate returns the stream for (platform, name), creating it on first
// reference. Platform and name are stored lowercase, matching the topic
// protocol's case folding.
func (r *StreamRepository) GetOrCreate(ctx context.Context, platform, name string) (*domain.Stream, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	name = strings.ToLower(strings.TrimSpace(name))
	if platform == "" || name == "" {
		return nil, fmt.Errorf("stream_repo.GetOrCreate: %w: empty platform or name", domain.ErrValidation)
	}

	var s domain.Stream
	query := `
		INSERT INTO streams (id, platform, name, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (platform, name) DO UPDATE SET updated_at = now()
		RETURNING *`
	err := r.db.GetContext(ctx, &s, query, uuid.New(), platform, name)
	if err != nil {
		return nil, fmt.Errorf("stream_repo.GetOrCreate: %w", err)
	}
	return &s, nil
}

// GetByID fetches a stream by primary key.
func (r *StreamRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stream, error) {
	var s domain.Stream
	err := r.db.GetContext(ctx, &s, `SELECT * FROM streams WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("stream_repo.GetByID: %w", err)
	}
	return &s, nil
}

// GetByRef fetches a stream by (platform, name), case-insensitively.
func (r *StreamRepository) GetByRef(ctx context.Context, platform, name string) (*domain.Stream, error) {
	var s domain.Stream
	err := r.db.GetContext(ctx, &s,
		`SELECT * FROM streams WHERE platform = $1 AND name = $2`,
		strings.ToLower(platform), strings.ToLower(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("stream_repo.GetByRef: %w", err)
	}
	return &s, nil
}
