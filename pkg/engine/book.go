package engine

import (
	"container/heap"
	"fmt"
	"sort"
)

// levelRef locates a resting order for O(1)-ish cancellation.
type levelRef struct {
	side  Side
	price int64
}

// OrderBook holds the resting state of one market: an arena of orders
// indexed by id, per-price FIFO queues of order ids on each side, and
// max/min heaps over level prices for O(1) best-price peeks. Levels hold
// ids rather than order pointers so snapshots never chase cycles back
// into the book.
//
// The book does no matching itself; the engine is its sole mutator.
type OrderBook struct {
	orders map[uint64]*Order // arena: id -> resting order

	bids map[int64][]uint64 // price -> FIFO queue of order ids
	asks map[int64][]uint64

	bidHeap *MaxPriceHeap
	askHeap *MinPriceHeap

	index map[uint64]levelRef // id -> (side, price)
}

func NewOrderBook() *OrderBook {
	bidHeap := &MaxPriceHeap{}
	askHeap := &MinPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &OrderBook{
		orders:  make(map[uint64]*Order),
		bids:    make(map[int64][]uint64),
		asks:    make(map[int64][]uint64),
		bidHeap: bidHeap,
		askHeap: askHeap,
		index:   make(map[uint64]levelRef),
	}
}

// Insert places a resting order at the level matching its price, appended
// to that level's FIFO queue. Only limit orders rest.
func (ob *OrderBook) Insert(o *Order) error {
	if o.Remaining <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if o.Type != Limit {
		return fmt.Errorf("%w: only limit orders can rest", ErrInvalidOrder)
	}
	if o.Price <= 0 {
		return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
	}
	if _, dup := ob.orders[o.ID]; dup {
		return fmt.Errorf("%w: duplicate order id %d", ErrInvalidOrder, o.ID)
	}

	levels := ob.bids
	if o.Side == Sell {
		levels = ob.asks
	}
	if len(levels[o.Price]) == 0 {
		// New price level.
		if o.Side == Buy {
			heap.Push(ob.bidHeap, o.Price)
		} else {
			heap.Push(ob.askHeap, o.Price)
		}
	}
	levels[o.Price] = append(levels[o.Price], o.ID)

	ob.orders[o.ID] = o
	ob.index[o.ID] = levelRef{side: o.Side, price: o.Price}
	return nil
}

// Cancel removes the order from its level and returns it. Removing the
// last order in a level deletes the level. A failed cancel leaves the
// book untouched.
func (ob *OrderBook) Cancel(id uint64) (*Order, error) {
	ref, ok := ob.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}

	levels := ob.bids
	if ref.side == Sell {
		levels = ob.asks
	}
	queue := levels[ref.price]
	for i, qid := range queue {
		if qid != id {
			continue
		}
		levels[ref.price] = append(queue[:i], queue[i+1:]...)
		if len(levels[ref.price]) == 0 {
			delete(levels, ref.price)
			ob.removePriceFromHeap(ref.side, ref.price)
		}
		o := ob.orders[id]
		delete(ob.orders, id)
		delete(ob.index, id)
		return o, nil
	}

	// Index said the order exists but the level queue disagrees.
	return nil, &InvariantError{
		Invariant: "index consistency",
		Detail:    fmt.Sprintf("order %d indexed at %s/%d but missing from level queue", id, ref.side, ref.price),
	}
}

// BestBid returns the highest bid price, ok=false when the side is empty.
func (ob *OrderBook) BestBid() (int64, bool) {
	if ob.bidHeap.Len() == 0 {
		return 0, false
	}
	return ob.bidHeap.Peek(), true
}

// BestAsk returns the lowest ask price, ok=false when the side is empty.
func (ob *OrderBook) BestAsk() (int64, bool) {
	if ob.askHeap.Len() == 0 {
		return 0, false
	}
	return ob.askHeap.Peek(), true
}

// front returns the earliest-sequence resting order at the given level.
func (ob *OrderBook) front(side Side, price int64) *Order {
	levels := ob.bids
	if side == Sell {
		levels = ob.asks
	}
	queue := levels[price]
	if len(queue) == 0 {
		return nil
	}
	return ob.orders[queue[0]]
}

// popFront removes the front order of the given level, deleting the level
// when it empties. Used by the engine when a maker fills completely.
func (ob *OrderBook) popFront(side Side, price int64) {
	levels := ob.bids
	if side == Sell {
		levels = ob.asks
	}
	queue := levels[price]
	if len(queue) == 0 {
		return
	}
	id := queue[0]
	levels[price] = queue[1:]
	if len(levels[price]) == 0 {
		delete(levels, price)
		ob.removePriceFromHeap(side, price)
	}
	delete(ob.orders, id)
	delete(ob.index, id)
}

// removePriceFromHeap drops one price entry from the side's heap.
// Linear scan, but only runs when a level empties.
func (ob *OrderBook) removePriceFromHeap(side Side, price int64) {
	if side == Buy {
		for i := 0; i < ob.bidHeap.Len(); i++ {
			if (*ob.bidHeap)[i] == price {
				heap.Remove(ob.bidHeap, i)
				return
			}
		}
		return
	}
	for i := 0; i < ob.askHeap.Len(); i++ {
		if (*ob.askHeap)[i] == price {
			heap.Remove(ob.askHeap, i)
			return
		}
	}
}

// BidDepth returns up to n aggregated bid levels sorted high to low
// (best bid first). n <= 0 returns every level. Read-only.
func (ob *OrderBook) BidDepth(n int) []PriceLevel {
	return ob.depth(ob.bids, n, func(a, b int64) bool { return a > b })
}

// AskDepth returns up to n aggregated ask levels sorted low to high
// (best ask first). n <= 0 returns every level. Read-only.
func (ob *OrderBook) AskDepth(n int) []PriceLevel {
	return ob.depth(ob.asks, n, func(a, b int64) bool { return a < b })
}

func (ob *OrderBook) depth(levels map[int64][]uint64, n int, better func(a, b int64) bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for price, queue := range levels {
		if len(queue) == 0 {
			continue
		}
		var total int64
		for _, id := range queue {
			total += ob.orders[id].Remaining
		}
		out = append(out, PriceLevel{Price: price, Qty: total})
	}
	sort.Slice(out, func(i, j int) bool { return better(out[i].Price, out[j].Price) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Lookup returns a copy of the resting order with the given id.
func (ob *OrderBook) Lookup(id uint64) (Order, bool) {
	o, ok := ob.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Len returns the number of resting orders.
func (ob *OrderBook) Len() int { return len(ob.orders) }

// RestingQty sums the remaining quantity on one side.
func (ob *OrderBook) RestingQty(side Side) int64 {
	var total int64
	for _, o := range ob.orders {
		if o.Side == side {
			total += o.Remaining
		}
	}
	return total
}
