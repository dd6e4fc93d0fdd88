package domain

import "math/big"

// ──────────────────────────────────────────────────────────────────────────────
// Winnings calculator
// ──────────────────────────────────────────────────────────────────────────────

// FeePercentage is the protocol fee taken from the total pool at settlement.
const FeePercentage = 5

// PoolInfo holds the authoritative pool totals in wei, as read from the
// BettingPool contract.
type PoolInfo struct {
	TotalAmountA *big.Int
	TotalAmountB *big.Int
	TotalBetsA   int64
	TotalBetsB   int64
	Resolved     bool
	WinnerIsA    bool
}

// WinningSideTotal returns the wei total staked on the resolved side.
func (p *PoolInfo) WinningSideTotal() *big.Int {
	if p.WinnerIsA {
		return p.TotalAmountA
	}
	return p.TotalAmountB
}

// BetInfo describes one user's stake for settlement.
type BetInfo struct {
	Amount    *big.Int // wei
	IsAnswerA bool
}

// WinningsResult is the outcome of the settlement math for one bet.
// All amounts are wei. Profit is negative for losing bets.
type WinningsResult struct {
	IsWinner  bool
	Winnings  *big.Int
	Profit    *big.Int
	FeeAmount *big.Int
}

// CalculateWinnings mirrors the BettingPool contract's payout formula.
//
// The contract works in integer wei and truncates on division, so this
// function stays in *big.Int for the whole computation: fee is
// totalPool*5/100 rounded down, and each winner receives
// amount*distributable/winningSideTotal rounded down. Running the same
// inputs through in any order yields the same result.
func CalculateWinnings(bet BetInfo, pool PoolInfo) WinningsResult {
	totalPool := new(big.Int).Add(pool.TotalAmountA, pool.TotalAmountB)

	fee := new(big.Int).Mul(totalPool, big.NewInt(FeePercentage))
	fee.Div(fee, big.NewInt(100))
	distributable := new(big.Int).Sub(totalPool, fee)

	isWinner := bet.IsAnswerA == pool.WinnerIsA
	if !isWinner {
		return WinningsResult{
			IsWinner:  false,
			Winnings:  big.NewInt(0),
			Profit:    new(big.Int).Neg(bet.Amount),
			FeeAmount: big.NewInt(0),
		}
	}

	winningTotal := pool.WinningSideTotal()
	if winningTotal == nil || winningTotal.Sign() == 0 {
		// Nothing staked on the winning side; no payout exists to claim.
		return WinningsResult{
			IsWinner:  true,
			Winnings:  big.NewInt(0),
			Profit:    new(big.Int).Neg(bet.Amount),
			FeeAmount: big.NewInt(0),
		}
	}

	winnings := new(big.Int).Mul(bet.Amount, distributable)
	winnings.Div(winnings, winningTotal)

	return WinningsResult{
		IsWinner:  true,
		Winnings:  winnings,
		Profit:    new(big.Int).Sub(winnings, bet.Amount),
		FeeAmount: fee,
	}
}
