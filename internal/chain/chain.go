package chain

import (
	"context"
	"math/big"

	"github.com/plaetorius/streambet/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Transaction steps
// ──────────────────────────────────────────────────────────────────────────────

// TxStep is the local progress marker of a placement transaction. It never
// leaves the placing instance; other subscribers learn about the bet only
// from the broadcast after confirmation.
type TxStep string

const (
	StepIdle       TxStep = "idle"
	StepSending    TxStep = "sending"    // request handed to the signer
	StepConfirming TxStep = "confirming" // tx in flight, waiting for receipt
	StepConfirmed  TxStep = "confirmed"
	StepError      TxStep = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client is what the settlement and market services need from the
// BettingPool contract. The production implementation is EthereumClient;
// tests substitute fakes.
type Client interface {
	// PlaceBet submits a bet of amountWei on one side of the pool and
	// returns the transaction hash once the network accepts it. Failures
	// surface as *TxError where a provider code is known.
	PlaceBet(ctx context.Context, poolID *big.Int, isAnswerA bool, amountWei *big.Int) (string, error)

	// WaitForReceipt blocks until the transaction is mined. A reverted
	// transaction is an error.
	WaitForReceipt(ctx context.Context, txHash string) error

	// GetPoolInfo reads the authoritative pool totals and resolution state.
	GetPoolInfo(ctx context.Context, poolID *big.Int) (domain.PoolInfo, error)

	// ResolvePool records the winning side on-chain, triggering payouts.
	ResolvePool(ctx context.Context, poolID *big.Int, isAnswerA bool) (string, error)

	// BalanceOf reads an address's current balance in wei.
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
}
