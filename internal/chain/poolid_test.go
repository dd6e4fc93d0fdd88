package chain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/plaetorius/streambet/internal/chain"
	"github.com/shopspring/decimal"
)

func TestDerivePoolID_Deterministic(t *testing.T) {
	const id = "5f3c2a1e-9d8b-4c7a-b6e5-d4c3b2a1f0e9"
	first := chain.DerivePoolID(id)
	for i := 0; i < 10; i++ {
		if got := chain.DerivePoolID(id); got != first {
			t.Fatalf("DerivePoolID not stable: %d then %d", first, got)
		}
	}
	if first > math.MaxUint32 {
		t.Errorf("pool id %d exceeds 32 bits", first)
	}
}

func TestDerivePoolID_DistinctInputs(t *testing.T) {
	a := chain.DerivePoolID("market-a")
	b := chain.DerivePoolID("market-b")
	if a == b {
		t.Errorf("distinct market ids derived the same pool id %d", a)
	}
	if chain.PoolIDBig("market-a").Uint64() != a {
		t.Error("PoolIDBig should agree with DerivePoolID")
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{chain.CodeActionRejected, "Transaction was rejected in the wallet."},
		{chain.CodeInsufficientFunds, "Insufficient funds for this bet."},
		{chain.CodeInsufficientGas, "Insufficient funds to cover the bet and gas fees."},
		{"SOMETHING_NOVEL", "The bet could not be placed. Please try again."},
	}
	for _, c := range cases {
		if got := chain.UserMessage(c.code); got != c.want {
			t.Errorf("UserMessage(%q) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestTxError_AsTarget(t *testing.T) {
	var txErr *chain.TxError
	err := error(chain.NewTxError(chain.CodeActionRejected, ""))
	if !errors.As(err, &txErr) {
		t.Fatal("errors.As should find *TxError")
	}
	if txErr.Code != chain.CodeActionRejected {
		t.Errorf("code = %q, want %q", txErr.Code, chain.CodeActionRejected)
	}
	if txErr.Message == "" {
		t.Error("empty message should have been filled from the code table")
	}
}

func TestUnitConversion_RoundTrip(t *testing.T) {
	amt := decimal.NewFromFloat(0.125)
	wei := chain.EtherToWei(amt)
	if wei.String() != "125000000000000000" {
		t.Errorf("EtherToWei(0.125) = %s", wei)
	}
	back := chain.WeiToEther(wei)
	if !back.Equal(amt) {
		t.Errorf("round trip = %s, want %s", back, amt)
	}
}

func TestWeiToEther_Nil(t *testing.T) {
	if !chain.WeiToEther(nil).IsZero() {
		t.Error("nil wei should convert to zero")
	}
}
