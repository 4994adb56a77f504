package store

import (
	"sync"

	"github.com/efreitasn/custodex/internal/domain"
)

type pairKey struct {
	a, b domain.Address
}

func newPairKey(x, y domain.Address) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{x, y}
}

// TradeStore is a thread-safe in-memory store for trades, keyed by the
// unordered token pair. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[pairKey][]domain.Trade
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[pairKey][]domain.Trade),
	}
}

// Append adds a trade to its pair's chronological list.
func (s *TradeStore) Append(t domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := newPairKey(t.TokenGet, t.TokenGive)
	s.trades[k] = append(s.trades[k], t)
}

// GetByPair returns all trades between tokens x and y, in either
// direction, in chronological order. Returns an empty slice if none exist.
func (s *TradeStore) GetByPair(x, y domain.Address) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[newPairKey(x, y)]

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]domain.Trade, len(trades))
	copy(result, trades)
	return result
}
