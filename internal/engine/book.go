package engine

import (
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

// OrderBookEntry represents a single open order resting in one oriented
// market. Base and Quote are the amounts the order moves in that market.
type OrderBookEntry struct {
	Price   decimal.Decimal
	OrderID uint64
	Base    decimal.Decimal
	Quote   decimal.Decimal
}

// PriceLevel aggregates the open orders sharing one price.
type PriceLevel struct {
	Price      decimal.Decimal
	TotalBase  decimal.Decimal
	TotalQuote decimal.Decimal
	OrderCount int
}

// bidLess orders the bid side by price descending, then order id
// ascending. Min() returns the best bid.
func bidLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.OrderID < b.OrderID
}

// askLess orders the ask side by price ascending, then order id
// ascending. Min() returns the best ask.
func askLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.OrderID < b.OrderID
}

// OrderBook holds the open orders of one oriented market in two B-trees,
// with a secondary index for removal by order id. It is a read model over
// the order store: nothing here is consulted when settling a fill.
type OrderBook struct {
	market domain.Market
	mu     sync.RWMutex
	bids   *btree.BTreeG[OrderBookEntry]
	asks   *btree.BTreeG[OrderBookEntry]
	index  map[uint64]OrderBookEntry
}

// NewOrderBook creates an empty order book for market m.
func NewOrderBook(m domain.Market) *OrderBook {
	const degree = 32
	return &OrderBook{
		market: m,
		bids:   btree.NewG[OrderBookEntry](degree, bidLess),
		asks:   btree.NewG[OrderBookEntry](degree, askLess),
		index:  make(map[uint64]OrderBookEntry),
	}
}

// Market returns the oriented market this book covers.
func (ob *OrderBook) Market() domain.Market {
	return ob.market
}

// Insert places o on the side it takes in this book's market. Orders of
// other pairs, or with an undefined price, are ignored.
func (ob *OrderBook) Insert(o domain.Order) bool {
	side, ok := ob.market.Classify(o)
	if !ok {
		return false
	}
	price, ok := ob.market.Price(o)
	if !ok {
		return false
	}
	entry := OrderBookEntry{
		Price:   price,
		OrderID: o.ID,
		Base:    ob.market.BaseAmount(o),
		Quote:   ob.market.QuoteAmount(o),
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if side == domain.SideBid {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[o.ID] = entry
	return true
}

// Remove deletes an order from the book by id. Unknown ids are a no-op.
func (ob *OrderBook) Remove(orderID uint64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	// Delete is a no-op on the side that doesn't hold the entry.
	ob.bids.Delete(entry)
	ob.asks.Delete(entry)
}

// BestBid returns the highest-priced bid.
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.Min()
}

// BestAsk returns the lowest-priced ask.
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.Min()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price.Equal(entry.Price) {
			last := &levels[len(levels)-1]
			last.TotalBase = last.TotalBase.Add(entry.Base)
			last.TotalQuote = last.TotalQuote.Add(entry.Quote)
			last.OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:      entry.Price,
			TotalBase:  entry.Base,
			TotalQuote: entry.Quote,
			OrderCount: 1,
		})
		return true
	})
	return levels
}

// WalkBids iterates bids best first. The callback returns false to stop.
func (ob *OrderBook) WalkBids(fn func(OrderBookEntry) bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	ob.bids.Ascend(fn)
}

// WalkAsks iterates asks best first. The callback returns false to stop.
func (ob *OrderBook) WalkAsks(fn func(OrderBookEntry) bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	ob.asks.Ascend(fn)
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.Len()
}

// BookManager is a thread-safe map of oriented market → OrderBook. Each
// open order sits in both orientations of its pair: as an ask where it
// gives the base token and as a bid in the inverse market.
type BookManager struct {
	mu    sync.RWMutex
	books map[domain.Market]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[domain.Market]*OrderBook),
	}
}

// GetOrCreate returns the order book for m, creating one if it doesn't
// already exist.
func (bm *BookManager) GetOrCreate(m domain.Market) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[m]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[m]; ok {
		return book
	}
	book = NewOrderBook(m)
	bm.books[m] = book
	return book
}

func orientations(o domain.Order) [2]domain.Market {
	ask := domain.Market{Base: o.TokenGive, Quote: o.TokenGet}
	return [2]domain.Market{ask, ask.Inverse()}
}

// Add rests an open order in both orientations of its pair.
func (bm *BookManager) Add(o domain.Order) {
	for _, m := range orientations(o) {
		bm.GetOrCreate(m).Insert(o)
	}
}

// Remove takes a closed order out of both orientations of its pair.
func (bm *BookManager) Remove(o domain.Order) {
	for _, m := range orientations(o) {
		bm.GetOrCreate(m).Remove(o.ID)
	}
}
