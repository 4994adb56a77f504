package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Side is an order's role within an oriented market.
type Side string

const (
	SideBid Side = "bid" // gives Quote, gets Base
	SideAsk Side = "ask" // gives Base, gets Quote
)

// Market is an oriented token pair. Prices are quoted as units of Quote
// per unit of Base. Every order belongs to both orientations of its pair:
// it is an ask in one and a bid in the other.
type Market struct {
	Base  Address
	Quote Address
}

// Inverse returns the same pair with base and quote swapped.
func (m Market) Inverse() Market {
	return Market{Base: m.Quote, Quote: m.Base}
}

// Classify returns the side o takes in m, or false if o trades a
// different pair.
func (m Market) Classify(o Order) (Side, bool) {
	switch {
	case o.TokenGive == m.Base && o.TokenGet == m.Quote:
		return SideAsk, true
	case o.TokenGive == m.Quote && o.TokenGet == m.Base:
		return SideBid, true
	}
	return "", false
}

// BaseAmount returns how much of Base the order moves in m.
func (m Market) BaseAmount(o Order) decimal.Decimal {
	if o.TokenGive == m.Base {
		return o.AmountGive
	}
	return o.AmountGet
}

// QuoteAmount returns how much of Quote the order moves in m.
func (m Market) QuoteAmount(o Order) decimal.Decimal {
	if o.TokenGive == m.Quote {
		return o.AmountGive
	}
	return o.AmountGet
}

// Price returns the order's Quote-per-Base rate in m. It returns false
// when the order is not in m or moves no Base, which leaves the rate
// undefined.
func (m Market) Price(o Order) (decimal.Decimal, bool) {
	if _, ok := m.Classify(o); !ok {
		return decimal.Zero, false
	}
	base := m.BaseAmount(o)
	if base.IsZero() {
		return decimal.Zero, false
	}
	return m.QuoteAmount(o).Div(base), true
}

// PairRegistry tracks the token pairs that have seen at least one order.
// Pairs are unordered: registering (a, b) also covers (b, a).
type PairRegistry struct {
	mu    sync.RWMutex
	pairs map[Market]bool
}

// NewPairRegistry creates an empty PairRegistry.
func NewPairRegistry() *PairRegistry {
	return &PairRegistry{
		pairs: make(map[Market]bool),
	}
}

func canonicalPair(a, b Address) Market {
	if b < a {
		a, b = b, a
	}
	return Market{Base: a, Quote: b}
}

// Register records the pair (a, b). Safe for concurrent use.
func (r *PairRegistry) Register(a, b Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[canonicalPair(a, b)] = true
}

// Exists reports whether the pair (a, b) has been registered in either
// orientation. Safe for concurrent use.
func (r *PairRegistry) Exists(a, b Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs[canonicalPair(a, b)]
}

// List returns every registered pair in canonical orientation, sorted.
func (r *PairRegistry) List() []Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Market, 0, len(r.pairs))
	for m := range r.pairs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Quote < out[j].Quote
	})
	return out
}
