package ledger

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/custodex/internal/domain"
)

// Property: supply conservation. Whatever sequence of transfers, approvals
// and delegated transfers runs, the balances always sum to the total supply
// and no allowance ever goes negative.

func TestProperty_SupplyConservation(t *testing.T) {
	accounts := []domain.Address{
		deployer,
		receiver,
		exchange,
		domain.DeriveAddress([]byte("fourth")),
		domain.NullAddress,
	}

	rapid.Check(t, func(t *rapid.T) {
		supply := rapid.Int64Range(0, 1000).Draw(t, "supply")
		tok, err := NewToken(domain.DeriveAddress([]byte("prop")), "Prop", "PRP", domain.Tokens(supply), deployer)
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			a := rapid.SampledFrom(accounts).Draw(t, fmt.Sprintf("a-%d", i))
			b := rapid.SampledFrom(accounts).Draw(t, fmt.Sprintf("b-%d", i))
			c := rapid.SampledFrom(accounts).Draw(t, fmt.Sprintf("c-%d", i))
			amount := domain.Tokens(rapid.Int64Range(0, 1200).Draw(t, fmt.Sprintf("amount-%d", i)))

			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op-%d", i)) {
			case 0:
				_, _ = tok.Transfer(a, b, amount)
			case 1:
				_, _ = tok.Approve(a, b, amount)
			case 2:
				before := tok.Allowance(b, a)
				_, err := tok.TransferFrom(a, b, c, amount)
				after := tok.Allowance(b, a)
				if err == nil && !before.Sub(amount).Equal(after) {
					t.Fatalf("allowance %s - %s != %s", before, amount, after)
				}
				if err != nil && !before.Equal(after) {
					t.Fatalf("failed transferFrom changed allowance %s -> %s", before, after)
				}
				if after.IsNegative() {
					t.Fatalf("negative allowance %s", after)
				}
			}

			sum := decimal.Zero
			for _, h := range tok.Holders() {
				if !h.Balance.IsPositive() {
					t.Fatalf("holder %s with non-positive balance %s", h.Account, h.Balance)
				}
				sum = sum.Add(h.Balance)
			}
			if !sum.Equal(tok.TotalSupply()) {
				t.Fatalf("sum of balances %s != total supply %s", sum, tok.TotalSupply())
			}
			if !tok.BalanceOf(domain.NullAddress).IsZero() {
				t.Fatal("null address received tokens")
			}
		}
	})
}
