package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// SyncRequest is sent when a wallet connects. Identity comes from the wallet
// provider; there is no password flow.
type SyncRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Username      string `json:"username"`
}

// SyncResponse is returned after a profile upsert.
type SyncResponse struct {
	Profile *domain.Profile `json:"profile"`
	Token   string          `json:"token"`
}

// AppClaims extends jwt.RegisteredClaims with the wallet address.
type AppClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"walletAddress"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ProfileService
// ──────────────────────────────────────────────────────────────────────────────

// ProfileService syncs wallet-identified profiles and issues session tokens.
type ProfileService struct {
	profileRepo *repository.ProfileRepository
	cfg         *config.Config
}

// NewProfileService creates a ProfileService.
func NewProfileService(profileRepo *repository.ProfileRepository, cfg *config.Config) *ProfileService {
	return &ProfileService{profileRepo: profileRepo, cfg: cfg}
}

// Sync upserts the profile for a wallet address and returns a session token.
// Called every time a wallet connects; the upsert keeps the username fresh.
func (s *ProfileService) Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	addr := domain.NormalizeAddress(req.WalletAddress)
	if addr == "" {
		return nil, fmt.Errorf("profile_service.Sync: %w: empty wallet address", domain.ErrValidation)
	}

	username := req.Username
	if username == "" {
		// Default to a short address-derived handle
		username = addr
		if len(addr) > 10 {
			username = addr[:6] + "…" + addr[len(addr)-4:]
		}
	}

	profile, err := s.profileRepo.Upsert(ctx, &domain.Profile{
		ID:            uuid.New(),
		WalletAddress: addr,
		Username:      username,
	})
	if err != nil {
		return nil, fmt.Errorf("profile_service.Sync: %w", err)
	}

	token, err := s.issueToken(profile)
	if err != nil {
		return nil, fmt.Errorf("profile_service.Sync: token: %w", err)
	}

	return &SyncResponse{Profile: profile, Token: token}, nil
}

// GetByID returns a profile.
func (s *ProfileService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	p, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("profile_service.GetByID: %w", err)
	}
	return p, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Token helpers
// ──────────────────────────────────────────────────────────────────────────────

// issueToken creates a signed session token for the profile.
func (s *ProfileService) issueToken(p *domain.Profile) (string, error) {
	now := time.Now().UTC()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.TTL)),
		},
		WalletAddress: p.WalletAddress,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// ParseToken validates the token signature, algorithm, and expiry.
// Exported for use by the session middleware and the WS upgrade handler.
func (s *ProfileService) ParseToken(tokenString string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrUnauthorized
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
