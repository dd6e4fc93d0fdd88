// Package chain talks to the BettingPool contract: pool id derivation,
// transaction submission, pool state reads, unit conversion, and the
// structured errors the settlement flow maps to user messages.
package chain

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// DerivePoolID maps a market id to its on-chain pool id: the first four
// bytes of keccak256 over the id's UTF-8 bytes, read as a big-endian
// integer. Both sides of the system derive independently, so the function
// must stay byte-for-byte stable. The 32-bit space makes collisions
// possible in principle; the contract treats the pool id as opaque and the
// market id remains the source of truth off-chain.
func DerivePoolID(marketID string) uint64 {
	sum := crypto.Keccak256([]byte(marketID))
	return uint64(binary.BigEndian.Uint32(sum[:4]))
}

// PoolIDBig returns the derived pool id as a *big.Int for ABI encoding.
func PoolIDBig(marketID string) *big.Int {
	return new(big.Int).SetUint64(DerivePoolID(marketID))
}
