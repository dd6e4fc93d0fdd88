package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Profile
// ──────────────────────────────────────────────────────────────────────────────

// Profile is a user identified by their wallet address. There is no password:
// identity is established by the wallet provider and synced on connect.
type Profile struct {
	ID            uuid.UUID `json:"id"            db:"id"`
	WalletAddress string    `json:"walletAddress" db:"wallet_address"`
	Username      string    `json:"username"      db:"username"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// NormalizeAddress lowercases a hex wallet address so lookups are
// case-insensitive regardless of checksum casing on the wire.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Identity is the caller-side wallet state the settlement flow validates
// against before touching the chain.
type Identity struct {
	ProfileID     uuid.UUID `json:"profileId"`
	WalletAddress string    `json:"walletAddress"`
	ChainID       int64     `json:"chainId"`
	IsConnected   bool      `json:"isConnected"`
}
