// Package ledger implements fungible-asset ledgers: per-address balances,
// per-(owner, spender) allowances, and a fixed total supply.
package ledger

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

// Metadata is the immutable description of a deployed token.
type Metadata struct {
	Address     domain.Address  `json:"address"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    int32           `json:"decimals"`
	TotalSupply decimal.Decimal `json:"total_supply"`
}

// Holding is one address's non-zero balance.
type Holding struct {
	Account domain.Address  `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// Token is a thread-safe ledger for one fungible asset. The sum of all
// balances always equals the total supply.
type Token struct {
	mu         sync.RWMutex
	meta       Metadata
	balances   map[domain.Address]decimal.Decimal
	allowances map[domain.Address]map[domain.Address]decimal.Decimal // owner → spender → amount
}

// NewToken creates a token whose whole supply (in base units) is credited
// to deployer.
func NewToken(address domain.Address, name, symbol string, totalSupply decimal.Decimal, deployer domain.Address) (*Token, error) {
	if address.IsNull() {
		return nil, domain.ErrInvalidToken
	}
	if deployer.IsNull() {
		return nil, domain.ErrInvalidRecipient
	}
	if !domain.ValidAmount(totalSupply) {
		return nil, domain.ErrInvalidAmount
	}

	t := &Token{
		meta: Metadata{
			Address:     address,
			Name:        name,
			Symbol:      symbol,
			Decimals:    domain.Decimals,
			TotalSupply: totalSupply,
		},
		balances:   make(map[domain.Address]decimal.Decimal),
		allowances: make(map[domain.Address]map[domain.Address]decimal.Decimal),
	}
	if totalSupply.IsPositive() {
		t.balances[deployer] = totalSupply
	}
	return t, nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to domain.Address, amount decimal.Decimal) (domain.TransferEvent, error) {
	if !domain.ValidAmount(amount) {
		return domain.TransferEvent{}, domain.ErrInvalidAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from].LessThan(amount) {
		return domain.TransferEvent{}, domain.ErrInsufficientBalance
	}
	if to.IsNull() {
		return domain.TransferEvent{}, domain.ErrInvalidRecipient
	}

	t.move(from, to, amount)
	return domain.TransferEvent{Token: t.meta.Address, From: from, To: to, Value: amount}, nil
}

// Approve sets spender's allowance over owner's balance to amount,
// replacing any previous value.
func (t *Token) Approve(owner, spender domain.Address, amount decimal.Decimal) (domain.ApprovalEvent, error) {
	if !domain.ValidAmount(amount) {
		return domain.ApprovalEvent{}, domain.ErrInvalidAmount
	}
	if spender.IsNull() {
		return domain.ApprovalEvent{}, domain.ErrInvalidSpender
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	spenders := t.allowances[owner]
	if spenders == nil {
		spenders = make(map[domain.Address]decimal.Decimal)
		t.allowances[owner] = spenders
	}
	if amount.IsZero() {
		delete(spenders, spender)
	} else {
		spenders[spender] = amount
	}

	return domain.ApprovalEvent{Token: t.meta.Address, Owner: owner, Spender: spender, Value: amount}, nil
}

// TransferFrom moves amount from owner to to on behalf of spender and
// consumes the same amount of spender's allowance.
func (t *Token) TransferFrom(spender, owner, to domain.Address, amount decimal.Decimal) (domain.TransferEvent, error) {
	if !domain.ValidAmount(amount) {
		return domain.TransferEvent{}, domain.ErrInvalidAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowances[owner][spender]
	if allowance.LessThan(amount) {
		return domain.TransferEvent{}, domain.ErrInsufficientAllowance
	}
	if t.balances[owner].LessThan(amount) {
		return domain.TransferEvent{}, domain.ErrInsufficientBalance
	}
	if to.IsNull() {
		return domain.TransferEvent{}, domain.ErrInvalidRecipient
	}

	t.move(owner, to, amount)
	if rest := allowance.Sub(amount); rest.IsZero() {
		delete(t.allowances[owner], spender)
	} else {
		t.allowances[owner][spender] = rest
	}

	return domain.TransferEvent{Token: t.meta.Address, From: owner, To: to, Value: amount, Spender: spender}, nil
}

// move must be called with t.mu held and balance already checked.
func (t *Token) move(from, to domain.Address, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	if rest := t.balances[from].Sub(amount); rest.IsZero() {
		delete(t.balances, from)
	} else {
		t.balances[from] = rest
	}
	t.balances[to] = t.balances[to].Add(amount)
}

// BalanceOf returns account's balance. Unknown accounts hold zero.
func (t *Token) BalanceOf(account domain.Address) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

// Allowance returns how much spender may still pull from owner.
func (t *Token) Allowance(owner, spender domain.Address) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

func (t *Token) TotalSupply() decimal.Decimal { return t.meta.TotalSupply }
func (t *Token) Name() string                  { return t.meta.Name }
func (t *Token) Symbol() string                { return t.meta.Symbol }
func (t *Token) Decimals() int32               { return t.meta.Decimals }
func (t *Token) Address() domain.Address       { return t.meta.Address }
func (t *Token) Metadata() Metadata            { return t.meta }

// Holders returns a snapshot of every non-zero balance, sorted by address.
func (t *Token) Holders() []Holding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Holding, 0, len(t.balances))
	for acct, bal := range t.balances {
		out = append(out, Holding{Account: acct, Balance: bal})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
