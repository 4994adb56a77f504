package store

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

// OrderStore is a thread-safe, append-only store for orders. The primary
// index is a B-tree ordered by id; a secondary index lists each maker's
// ids in creation order. Ids are allocated from 0 and never reused.
type OrderStore struct {
	mu          sync.RWMutex
	orders      *btree.BTreeG[domain.Order]
	makerOrders map[domain.Address][]uint64 // maker → ids (append-only)
	nextID      uint64
}

func orderLess(a, b domain.Order) bool {
	return a.ID < b.ID
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	const degree = 32
	return &OrderStore{
		orders:      btree.NewG[domain.Order](degree, orderLess),
		makerOrders: make(map[domain.Address][]uint64),
	}
}

// Create assigns the next id to o, stores it as open and returns the
// stored copy.
func (s *OrderStore) Create(o domain.Order) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextID
	s.nextID++
	o.Status = domain.OrderStatusOpen
	o.ClosedAt = nil
	o.Filler = ""
	o.Fee = decimal.Zero

	s.orders.ReplaceOrInsert(o)
	s.makerOrders[o.Maker] = append(s.makerOrders[o.Maker], o.ID)
	return o
}

// Get returns the order with the given id, or domain.ErrInvalidOrderID if
// that id was never allocated.
func (s *OrderStore) Get(id uint64) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders.Get(domain.Order{ID: id})
	if !ok {
		return domain.Order{}, domain.ErrInvalidOrderID
	}
	return o, nil
}

// Close moves an open order to a terminal status, recording when it
// closed and, for fills, who filled it and the fee they paid. It returns
// the terminal error of an order that is already closed.
func (s *OrderStore) Close(id uint64, status domain.OrderStatus, at time.Time, filler domain.Address, fee decimal.Decimal) (domain.Order, error) {
	if !status.Terminal() {
		return domain.Order{}, &domain.ValidationError{Message: "orders can only close as cancelled or filled"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders.Get(domain.Order{ID: id})
	if !ok {
		return domain.Order{}, domain.ErrInvalidOrderID
	}
	if err := o.TerminalError(); err != nil {
		return domain.Order{}, err
	}

	o.Status = status
	o.ClosedAt = &at
	if status == domain.OrderStatusFilled {
		o.Filler = filler
		o.Fee = fee
	}
	s.orders.ReplaceOrInsert(o)
	return o, nil
}

// NextID returns the id the next created order will receive, which is
// also the number of orders created so far.
func (s *OrderStore) NextID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// Ascend calls fn for every order in ascending id order, starting at from,
// until fn returns false.
func (s *OrderStore) Ascend(from uint64, fn func(domain.Order) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.orders.AscendGreaterOrEqual(domain.Order{ID: from}, fn)
}

// ListByMaker returns a maker's orders newest first. If status is non-nil,
// only orders with that status are included. Pagination is 1-based.
// Returns the orders for the requested page and the total count of
// matching orders before pagination.
func (s *OrderStore) ListByMaker(maker domain.Address, status *domain.OrderStatus, page, limit int) ([]domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.makerOrders[maker]

	filtered := make([]domain.Order, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		o, _ := s.orders.Get(domain.Order{ID: ids[i]})
		if status != nil && o.Status != *status {
			continue
		}
		filtered = append(filtered, o)
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}
