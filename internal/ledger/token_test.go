package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/custodex/internal/domain"
)

var (
	deployer = domain.DeriveAddress([]byte("deployer"))
	receiver = domain.DeriveAddress([]byte("receiver"))
	exchange = domain.DeriveAddress([]byte("exchange"))
)

func newCoffee(t *testing.T) *Token {
	t.Helper()
	tok, err := NewToken(domain.DeriveAddress([]byte("cof")), "Coffee Token", "COF", domain.Tokens(1000000), deployer)
	require.NoError(t, err)
	return tok
}

func requireAmount(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestNewToken_Metadata(t *testing.T) {
	tok := newCoffee(t)

	require.Equal(t, "Coffee Token", tok.Name())
	require.Equal(t, "COF", tok.Symbol())
	require.EqualValues(t, 18, tok.Decimals())
	requireAmount(t, domain.Tokens(1000000), tok.TotalSupply())
	requireAmount(t, domain.Tokens(1000000), tok.BalanceOf(deployer))
	requireAmount(t, decimal.Zero, tok.BalanceOf(receiver))
}

func TestNewToken_Rejects(t *testing.T) {
	addr := domain.DeriveAddress([]byte("x"))

	_, err := NewToken(domain.NullAddress, "X", "X", domain.Tokens(1), deployer)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = NewToken(addr, "X", "X", domain.Tokens(1), domain.NullAddress)
	require.ErrorIs(t, err, domain.ErrInvalidRecipient)

	_, err = NewToken(addr, "X", "X", decimal.NewFromInt(-1), deployer)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestToken_Transfer(t *testing.T) {
	tok := newCoffee(t)
	amount := domain.Tokens(100)

	ev, err := tok.Transfer(deployer, receiver, amount)
	require.NoError(t, err)
	require.Equal(t, deployer, ev.From)
	require.Equal(t, receiver, ev.To)
	requireAmount(t, amount, ev.Value)
	require.Equal(t, domain.EventTransfer, ev.EventName())

	requireAmount(t, domain.Tokens(999900), tok.BalanceOf(deployer))
	requireAmount(t, amount, tok.BalanceOf(receiver))
}

func TestToken_Transfer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.Address
		to      domain.Address
		amount  decimal.Decimal
		wantErr error
	}{
		{"insufficient balance", receiver, deployer, domain.Tokens(1), domain.ErrInsufficientBalance},
		{"more than supply", deployer, receiver, domain.Tokens(100000000), domain.ErrInsufficientBalance},
		{"null recipient", deployer, domain.NullAddress, domain.Tokens(1), domain.ErrInvalidRecipient},
		{"fractional base unit", deployer, receiver, decimal.RequireFromString("0.5"), domain.ErrInvalidAmount},
		// Balance is checked before the recipient.
		{"both invalid", receiver, domain.NullAddress, domain.Tokens(1), domain.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := newCoffee(t)
			_, err := tok.Transfer(tt.from, tt.to, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)

			// No state change on failure.
			requireAmount(t, domain.Tokens(1000000), tok.BalanceOf(deployer))
			requireAmount(t, decimal.Zero, tok.BalanceOf(receiver))
		})
	}
}

func TestToken_Transfer_ZeroAmount(t *testing.T) {
	tok := newCoffee(t)

	ev, err := tok.Transfer(receiver, deployer, decimal.Zero)
	require.NoError(t, err)
	requireAmount(t, decimal.Zero, ev.Value)
	requireAmount(t, domain.Tokens(1000000), tok.BalanceOf(deployer))
}

func TestToken_Approve(t *testing.T) {
	tok := newCoffee(t)

	ev, err := tok.Approve(deployer, exchange, domain.Tokens(100))
	require.NoError(t, err)
	require.Equal(t, deployer, ev.Owner)
	require.Equal(t, exchange, ev.Spender)
	requireAmount(t, domain.Tokens(100), tok.Allowance(deployer, exchange))

	// Approve overwrites rather than accumulates.
	_, err = tok.Approve(deployer, exchange, domain.Tokens(5))
	require.NoError(t, err)
	requireAmount(t, domain.Tokens(5), tok.Allowance(deployer, exchange))

	_, err = tok.Approve(deployer, domain.NullAddress, domain.Tokens(1))
	require.ErrorIs(t, err, domain.ErrInvalidSpender)
}

func TestToken_TransferFrom(t *testing.T) {
	tok := newCoffee(t)
	_, err := tok.Approve(deployer, exchange, domain.Tokens(100))
	require.NoError(t, err)

	ev, err := tok.TransferFrom(exchange, deployer, receiver, domain.Tokens(40))
	require.NoError(t, err)
	require.Equal(t, deployer, ev.From)
	require.Equal(t, receiver, ev.To)
	require.Equal(t, exchange, ev.Spender)

	requireAmount(t, domain.Tokens(60), tok.Allowance(deployer, exchange))
	requireAmount(t, domain.Tokens(40), tok.BalanceOf(receiver))
	requireAmount(t, domain.Tokens(999960), tok.BalanceOf(deployer))
}

func TestToken_TransferFrom_Failures(t *testing.T) {
	tests := []struct {
		name      string
		allowance decimal.Decimal
		owner     domain.Address
		to        domain.Address
		amount    decimal.Decimal
		wantErr   error
	}{
		{"no allowance", decimal.Zero, deployer, receiver, domain.Tokens(1), domain.ErrInsufficientAllowance},
		{"above allowance", domain.Tokens(10), deployer, receiver, domain.Tokens(11), domain.ErrInsufficientAllowance},
		{"owner lacks balance", domain.Tokens(10), receiver, deployer, domain.Tokens(1), domain.ErrInsufficientBalance},
		{"null recipient", domain.Tokens(10), deployer, domain.NullAddress, domain.Tokens(1), domain.ErrInvalidRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := newCoffee(t)
			if tt.allowance.IsPositive() {
				_, err := tok.Approve(tt.owner, exchange, tt.allowance)
				require.NoError(t, err)
			}

			_, err := tok.TransferFrom(exchange, tt.owner, tt.to, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)
			requireAmount(t, tt.allowance, tok.Allowance(tt.owner, exchange))
			requireAmount(t, domain.Tokens(1000000), tok.BalanceOf(deployer))
		})
	}
}

func TestToken_Holders(t *testing.T) {
	tok := newCoffee(t)
	_, err := tok.Transfer(deployer, receiver, domain.Tokens(1))
	require.NoError(t, err)

	holders := tok.Holders()
	require.Len(t, holders, 2)

	sum := decimal.Zero
	for _, h := range holders {
		sum = sum.Add(h.Balance)
	}
	requireAmount(t, tok.TotalSupply(), sum)

	// Emptying a balance drops the holder.
	_, err = tok.Transfer(receiver, deployer, domain.Tokens(1))
	require.NoError(t, err)
	require.Len(t, tok.Holders(), 1)
}
