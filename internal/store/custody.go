package store

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

// Move is a signed change to one custody balance.
type Move struct {
	Token   domain.Address
	Account domain.Address
	Delta   decimal.Decimal
}

// CustodyStore is a thread-safe in-memory store of balances held in trust,
// keyed by token then account. Missing entries read as zero.
type CustodyStore struct {
	mu       sync.RWMutex
	balances map[domain.Address]map[domain.Address]decimal.Decimal // token → account → balance
}

// NewCustodyStore creates an empty CustodyStore.
func NewCustodyStore() *CustodyStore {
	return &CustodyStore{
		balances: make(map[domain.Address]map[domain.Address]decimal.Decimal),
	}
}

// BalanceOf returns account's custody balance of token.
func (s *CustodyStore) BalanceOf(token, account domain.Address) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[token][account]
}

// Apply performs every move or none. Moves are applied in order and it
// returns domain.ErrInsufficientCustodyBalance, leaving the store untouched,
// if any balance would go negative along the way.
func (s *CustodyStore) Apply(moves ...Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ token, account domain.Address }
	staged := make(map[key]decimal.Decimal, len(moves))

	for _, m := range moves {
		k := key{m.Token, m.Account}
		cur, ok := staged[k]
		if !ok {
			cur = s.balances[m.Token][m.Account]
		}
		next := cur.Add(m.Delta)
		if next.IsNegative() {
			return domain.ErrInsufficientCustodyBalance
		}
		staged[k] = next
	}

	for k, bal := range staged {
		accounts := s.balances[k.token]
		if accounts == nil {
			accounts = make(map[domain.Address]decimal.Decimal)
			s.balances[k.token] = accounts
		}
		if bal.IsZero() {
			delete(accounts, k.account)
			continue
		}
		accounts[k.account] = bal
	}
	return nil
}

// Total returns the sum of every custody balance of token.
func (s *CustodyStore) Total(token domain.Address) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, bal := range s.balances[token] {
		sum = sum.Add(bal)
	}
	return sum
}

// Holders returns the accounts with a non-zero custody balance of token,
// sorted by address.
func (s *CustodyStore) Holders(token domain.Address) []domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Address, 0, len(s.balances[token]))
	for acct := range s.balances[token] {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
