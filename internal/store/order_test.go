package store

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

func newTestOrder(maker domain.Address, createdAt time.Time) domain.Order {
	return domain.Order{
		Maker:      maker,
		TokenGet:   tokenA,
		AmountGet:  domain.Tokens(1),
		TokenGive:  tokenB,
		AmountGive: domain.Tokens(2),
		Timestamp:  createdAt,
	}
}

func TestOrderStore_Create_and_Get(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()

	created := s.Create(newTestOrder(alice, now))
	if created.ID != 0 {
		t.Fatalf("expected first id 0, got %d", created.ID)
	}
	if created.Status != domain.OrderStatusOpen {
		t.Fatalf("expected open status, got %s", created.Status)
	}

	got, err := s.Get(0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Maker != alice {
		t.Fatalf("expected maker alice, got %s", got.Maker)
	}
	if !got.AmountGive.Equal(domain.Tokens(2)) {
		t.Fatalf("expected amount give 2 tokens, got %s", got.AmountGive)
	}
}

func TestOrderStore_SequentialIDs(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()

	for i := uint64(0); i < 5; i++ {
		if next := s.NextID(); next != i {
			t.Fatalf("expected NextID %d, got %d", i, next)
		}
		o := s.Create(newTestOrder(alice, now))
		if o.ID != i {
			t.Fatalf("expected id %d, got %d", i, o.ID)
		}
	}
	if next := s.NextID(); next != 5 {
		t.Fatalf("expected NextID 5, got %d", next)
	}
}

func TestOrderStore_Get_NeverAllocated(t *testing.T) {
	s := NewOrderStore()
	s.Create(newTestOrder(alice, time.Now()))

	if _, err := s.Get(1); err != domain.ErrInvalidOrderID {
		t.Fatalf("expected ErrInvalidOrderID, got %v", err)
	}
}

func TestOrderStore_Close(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()
	o := s.Create(newTestOrder(alice, now))

	closedAt := now.Add(time.Minute)
	fee := domain.Tokens(1).Div(decimal.NewFromInt(10))
	filled, err := s.Close(o.ID, domain.OrderStatusFilled, closedAt, bob, fee)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if filled.Status != domain.OrderStatusFilled {
		t.Fatalf("expected filled, got %s", filled.Status)
	}
	if filled.Filler != bob || !filled.Fee.Equal(fee) {
		t.Fatalf("expected filler bob with fee %s, got %s with %s", fee, filled.Filler, filled.Fee)
	}
	if filled.ClosedAt == nil || !filled.ClosedAt.Equal(closedAt) {
		t.Fatalf("expected closed at %v, got %v", closedAt, filled.ClosedAt)
	}

	// Immutable fields are untouched.
	if !filled.Timestamp.Equal(now) || filled.Maker != alice || !filled.AmountGet.Equal(o.AmountGet) {
		t.Fatal("closing changed immutable order fields")
	}

	stored, _ := s.Get(o.ID)
	if stored.Status != domain.OrderStatusFilled {
		t.Fatalf("expected stored order filled, got %s", stored.Status)
	}
}

func TestOrderStore_Close_Terminal(t *testing.T) {
	tests := []struct {
		name    string
		first   domain.OrderStatus
		second  domain.OrderStatus
		wantErr error
	}{
		{"cancel after cancel", domain.OrderStatusCancelled, domain.OrderStatusCancelled, domain.ErrAlreadyCancelled},
		{"fill after cancel", domain.OrderStatusCancelled, domain.OrderStatusFilled, domain.ErrAlreadyCancelled},
		{"cancel after fill", domain.OrderStatusFilled, domain.OrderStatusCancelled, domain.ErrAlreadyFilled},
		{"fill after fill", domain.OrderStatusFilled, domain.OrderStatusFilled, domain.ErrAlreadyFilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewOrderStore()
			now := time.Now()
			o := s.Create(newTestOrder(alice, now))

			if _, err := s.Close(o.ID, tt.first, now, bob, decimal.Zero); err != nil {
				t.Fatalf("first close: expected no error, got %v", err)
			}
			if _, err := s.Close(o.ID, tt.second, now, bob, decimal.Zero); err != tt.wantErr {
				t.Fatalf("second close: expected %v, got %v", tt.wantErr, err)
			}

			stored, _ := s.Get(o.ID)
			if stored.Status != tt.first {
				t.Fatalf("status regressed: expected %s, got %s", tt.first, stored.Status)
			}
		})
	}
}

func TestOrderStore_Close_Invalid(t *testing.T) {
	s := NewOrderStore()
	o := s.Create(newTestOrder(alice, time.Now()))

	if _, err := s.Close(42, domain.OrderStatusCancelled, time.Now(), "", decimal.Zero); err != domain.ErrInvalidOrderID {
		t.Fatalf("expected ErrInvalidOrderID, got %v", err)
	}
	if _, err := s.Close(o.ID, domain.OrderStatusOpen, time.Now(), "", decimal.Zero); err == nil {
		t.Fatal("expected error closing to a non-terminal status")
	}
}

func TestOrderStore_Ascend(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 5; i++ {
		s.Create(newTestOrder(alice, time.Now()))
	}

	var ids []uint64
	s.Ascend(2, func(o domain.Order) bool {
		ids = append(ids, o.ID)
		return true
	})
	if len(ids) != 3 || ids[0] != 2 || ids[2] != 4 {
		t.Fatalf("expected ids [2 3 4], got %v", ids)
	}
}

func TestOrderStore_ListByMaker_ReverseChronological(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Create(newTestOrder(alice, base.Add(time.Duration(i)*time.Minute)))
	}

	orders, total := s.ListByMaker(alice, nil, 1, 10)
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(orders) != 5 {
		t.Fatalf("expected 5 orders, got %d", len(orders))
	}

	// Should be newest first.
	for i := 0; i < len(orders)-1; i++ {
		if orders[i].ID <= orders[i+1].ID {
			t.Fatalf("orders not newest first at index %d", i)
		}
	}
}

func TestOrderStore_ListByMaker_StatusFilter(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()

	closeAs := []domain.OrderStatus{
		domain.OrderStatusOpen,
		domain.OrderStatusFilled,
		domain.OrderStatusOpen,
		domain.OrderStatusCancelled,
		domain.OrderStatusOpen,
	}

	for _, st := range closeAs {
		o := s.Create(newTestOrder(alice, now))
		if st.Terminal() {
			if _, err := s.Close(o.ID, st, now, bob, decimal.Zero); err != nil {
				t.Fatalf("close: %v", err)
			}
		}
	}

	open := domain.OrderStatusOpen
	orders, total := s.ListByMaker(alice, &open, 1, 10)
	if total != 3 {
		t.Fatalf("expected total 3 open, got %d", total)
	}
	for _, o := range orders {
		if o.Status != domain.OrderStatusOpen {
			t.Fatalf("expected open status, got %s", o.Status)
		}
	}
}

func TestOrderStore_ListByMaker_Pagination(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 10; i++ {
		s.Create(newTestOrder(alice, time.Now()))
	}

	// Page 1, limit 3.
	orders, total := s.ListByMaker(alice, nil, 1, 3)
	if total != 10 || len(orders) != 3 {
		t.Fatalf("page 1: expected 3 of 10, got %d of %d", len(orders), total)
	}

	// Page 4, limit 3 → only 1 remaining.
	orders, _ = s.ListByMaker(alice, nil, 4, 3)
	if len(orders) != 1 {
		t.Fatalf("expected 1 order on page 4, got %d", len(orders))
	}

	// Page beyond range.
	orders, total = s.ListByMaker(alice, nil, 5, 3)
	if total != 10 || len(orders) != 0 {
		t.Fatalf("expected 0 of 10 beyond last page, got %d of %d", len(orders), total)
	}
}

func TestOrderStore_ListByMaker_Unknown(t *testing.T) {
	s := NewOrderStore()

	orders, total := s.ListByMaker(bob, nil, 1, 10)
	if total != 0 || len(orders) != 0 {
		t.Fatalf("expected no orders, got %d (total %d)", len(orders), total)
	}
}

func TestOrderStore_ConcurrentAccess(t *testing.T) {
	s := NewOrderStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Create(newTestOrder(alice, time.Now()))
		}()
		go func() {
			defer wg.Done()
			s.ListByMaker(alice, nil, 1, 10)
		}()
	}
	wg.Wait()

	// Every id 0..99 allocated exactly once.
	if next := s.NextID(); next != 100 {
		t.Fatalf("expected NextID 100, got %d", next)
	}
	for id := uint64(0); id < 100; id++ {
		if _, err := s.Get(id); err != nil {
			t.Fatalf("order %d should exist, got %v", id, err)
		}
	}
}
