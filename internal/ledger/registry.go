package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

// Registry holds every deployed token, keyed by address, in deploy order.
type Registry struct {
	mu     sync.RWMutex
	tokens map[domain.Address]*Token
	order  []domain.Address
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[domain.Address]*Token),
	}
}

// Deploy creates a token with supply whole tokens (supply × 10^18 base
// units) credited to deployer, at a freshly derived address.
func (r *Registry) Deploy(name, symbol string, supply decimal.Decimal, deployer domain.Address) (*Token, error) {
	if !domain.ValidAmount(supply) {
		return nil, domain.ErrInvalidAmount
	}
	t, err := NewToken(domain.NewAddress(), name, symbol, supply.Shift(domain.Decimals), deployer)
	if err != nil {
		return nil, err
	}
	r.Add(t)
	return t, nil
}

// Add registers an already constructed token. A token at the same address
// is replaced.
func (r *Registry) Add(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[t.Address()]; !exists {
		r.order = append(r.order, t.Address())
	}
	r.tokens[t.Address()] = t
}

// Get returns the token at address, or domain.ErrTokenNotFound.
func (r *Registry) Get(address domain.Address) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[address]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return t, nil
}

// List returns every token in deploy order.
func (r *Registry) List() []*Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Token, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.tokens[addr])
	}
	return out
}
