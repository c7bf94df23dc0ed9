package engine

import (
	"errors"
	"fmt"
	"sync"
)

// MarketPolicy decides what happens to the unfilled remainder of a market
// order. Real double-auction venues differ here, so it is configuration
// rather than hard-coded behavior.
type MarketPolicy int8

const (
	// MarketDiscard drops the unfilled remainder; market orders never rest.
	MarketDiscard MarketPolicy = iota
	// MarketReject refuses the whole order up front unless the opposite
	// side can fill it completely. No partial execution happens.
	MarketReject
)

// SelfTradePolicy decides whether an incoming order may match a resting
// order with the same owner.
type SelfTradePolicy int8

const (
	// SelfTradeAllow lets the match happen; prevention is the caller's
	// policy, not the engine's.
	SelfTradeAllow SelfTradePolicy = iota
	// SelfTradeReject refuses the whole incoming order before any fill
	// when it would cross one of the owner's own resting orders.
	SelfTradeReject
)

// Config carries the engine's policy knobs.
type Config struct {
	Market    MarketPolicy
	SelfTrade SelfTradePolicy
}

// BookSnapshot is the read-only view handed to the environment layer:
// aggregated depth per side plus the trades executed since the previous
// snapshot.
type BookSnapshot struct {
	Bids   []PriceLevel
	Asks   []PriceLevel
	Trades []Trade
}

// Engine drives price-time-priority matching against an OrderBook and
// keeps the append-only trade log for the current episode. It is the sole
// mutator of its book.
//
// Submit, Cancel and Reset are totally ordered under a single writer lock
// and each runs to completion before the next begins; read-only accessors
// are served concurrently but never observe a book mid-mutation.
type Engine struct {
	mu  sync.RWMutex
	cfg Config

	book   *OrderBook
	trades []Trade

	nextID   uint64
	nextSeq  uint64
	tradeSeq uint64

	snapCursor int // trades already delivered by Snapshot
	lastPrice  int64

	halted *InvariantError
}

// New constructs an engine with an empty book and the given policies.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:  cfg,
		book: NewOrderBook(),
	}
}

// Reset discards all book state and the trade log, starting a fresh
// episode. Counters restart, so order ids are only unique within one
// episode. A halted engine becomes usable again since the corrupted book
// is thrown away.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.book = NewOrderBook()
	e.trades = nil
	e.nextID = 0
	e.nextSeq = 0
	e.tradeSeq = 0
	e.snapCursor = 0
	e.lastPrice = 0
	e.halted = nil
}

// Submit runs the incoming order through the matching loop and returns
// its assigned id plus the trades it generated, in execution order.
//
// The order crosses against the best opposite levels while marketable,
// always executing at the resting (maker) order's price. A limit
// remainder rests in the book; a market remainder is discarded or, under
// MarketReject, causes the whole order to be refused before any fill.
func (e *Engine) Submit(side Side, typ OrderType, price, qty int64, owner string) (uint64, []Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return 0, nil, ErrEngineHalted
	}
	if side != Buy && side != Sell {
		return 0, nil, fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, side)
	}
	if qty <= 0 {
		return 0, nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	switch typ {
	case Limit:
		if price <= 0 {
			return 0, nil, fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
		}
	case Market:
		price = 0 // sentinel: crosses at any price
	default:
		return 0, nil, fmt.Errorf("%w: unknown order type %d", ErrInvalidOrder, typ)
	}

	if e.cfg.SelfTrade == SelfTradeReject && e.wouldSelfTrade(side, typ, price, owner) {
		return 0, nil, fmt.Errorf("%w: owner %q", ErrSelfTrade, owner)
	}
	if typ == Market && e.cfg.Market == MarketReject {
		if avail := e.marketableQty(side, typ, price); avail < qty {
			return 0, nil, fmt.Errorf("%w: available %d, need %d", ErrMarketUnfillable, avail, qty)
		}
	}

	e.nextID++
	e.nextSeq++
	o := &Order{
		ID:        e.nextID,
		Side:      side,
		Type:      typ,
		Price:     price,
		Qty:       qty,
		Remaining: qty,
		Seq:       e.nextSeq,
		Owner:     owner,
		Status:    StatusNew,
	}

	trades := e.match(o)
	if e.halted != nil {
		return 0, trades, e.halted
	}

	if o.Remaining > 0 {
		switch o.Type {
		case Limit:
			if err := e.book.Insert(o); err != nil {
				// The order was validated above; a failed insert is a bug.
				return 0, nil, e.halt(&InvariantError{
					Invariant: "resting insert",
					Detail:    err.Error(),
				})
			}
			if o.Remaining == o.Qty {
				o.Status = StatusResting
			} else {
				o.Status = StatusPartiallyFilled
			}
		case Market:
			// Unfilled market remainder is discarded, never rested.
			if o.Remaining == o.Qty {
				o.Status = StatusCancelled
			} else {
				o.Status = StatusFilled
			}
		}
	} else {
		o.Status = StatusFilled
	}

	if err := e.checkNoCross(); err != nil {
		return 0, nil, e.halt(err)
	}
	return o.ID, trades, nil
}

// match crosses the incoming order against the opposite side while it is
// marketable, emitting trades at maker prices. The book is mutated as
// makers exhaust; the caller handles the remainder.
func (e *Engine) match(o *Order) []Trade {
	var trades []Trade
	for o.Remaining > 0 {
		bestPrice, ok := e.bestOpposite(o.Side)
		if !ok || !marketable(o, bestPrice) {
			break
		}
		maker := e.book.front(o.Side.Opposite(), bestPrice)
		if maker == nil {
			e.halt(&InvariantError{
				Invariant: "level occupancy",
				Detail:    fmt.Sprintf("best %s level %d has no front order", o.Side.Opposite(), bestPrice),
			})
			return trades
		}

		fillQty := min(o.Remaining, maker.Remaining)
		o.Remaining -= fillQty
		maker.Remaining -= fillQty
		o.Status = StatusPartiallyFilled
		maker.Status = StatusPartiallyFilled

		e.tradeSeq++
		t := Trade{
			Seq:       e.tradeSeq,
			Price:     maker.Price, // maker price, never the taker's
			Qty:       fillQty,
			TakerSide: o.Side,
		}
		if o.Side == Buy {
			t.BuyOrderID, t.SellOrderID = o.ID, maker.ID
			t.Buyer, t.Seller = o.Owner, maker.Owner
		} else {
			t.BuyOrderID, t.SellOrderID = maker.ID, o.ID
			t.Buyer, t.Seller = maker.Owner, o.Owner
		}
		e.trades = append(e.trades, t)
		trades = append(trades, t)
		e.lastPrice = t.Price

		if maker.Remaining == 0 {
			maker.Status = StatusFilled
			e.book.popFront(maker.Side, maker.Price)
		}
	}
	return trades
}

func (e *Engine) bestOpposite(side Side) (int64, bool) {
	if side == Buy {
		return e.book.BestAsk()
	}
	return e.book.BestBid()
}

// marketable reports whether the incoming order crosses the given best
// opposite price.
func marketable(o *Order, bestOpposite int64) bool {
	if o.Type == Market {
		return true
	}
	if o.Side == Buy {
		return o.Price >= bestOpposite
	}
	return o.Price <= bestOpposite
}

// wouldSelfTrade reports whether any marketable opposite resting order
// belongs to the same owner. Only consulted under SelfTradeReject.
func (e *Engine) wouldSelfTrade(side Side, typ OrderType, price int64, owner string) bool {
	probe := &Order{Side: side, Type: typ, Price: price}
	for _, rest := range e.book.orders {
		if rest.Side == side || rest.Owner != owner {
			continue
		}
		if marketable(probe, rest.Price) {
			return true
		}
	}
	return false
}

// marketableQty sums the opposite-side quantity the incoming order could
// cross. Only consulted under MarketReject.
func (e *Engine) marketableQty(side Side, typ OrderType, price int64) int64 {
	probe := &Order{Side: side, Type: typ, Price: price}
	var total int64
	for _, rest := range e.book.orders {
		if rest.Side == side {
			continue
		}
		if marketable(probe, rest.Price) {
			total += rest.Remaining
		}
	}
	return total
}

// Cancel removes a resting order. Cancelling an unknown, already filled
// or already cancelled id fails with ErrOrderNotFound and leaves the book
// unchanged.
func (e *Engine) Cancel(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return ErrEngineHalted
	}
	o, err := e.book.Cancel(id)
	if err != nil {
		var inv *InvariantError
		if errors.As(err, &inv) {
			return e.halt(inv)
		}
		return err
	}
	o.Status = StatusCancelled
	return nil
}

// Snapshot returns the full depth of both sides plus the trades executed
// since the previous Snapshot call. It takes the writer lock because it
// advances the trade cursor, but never mutates the book.
func (e *Engine) Snapshot() BookSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	since := make([]Trade, len(e.trades)-e.snapCursor)
	copy(since, e.trades[e.snapCursor:])
	e.snapCursor = len(e.trades)

	return BookSnapshot{
		Bids:   e.book.BidDepth(0),
		Asks:   e.book.AskDepth(0),
		Trades: since,
	}
}

// Depth returns the top n aggregated levels per side without touching the
// trade cursor. n <= 0 returns every level.
func (e *Engine) Depth(n int) ([]PriceLevel, []PriceLevel) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BidDepth(n), e.book.AskDepth(n)
}

// BestBid returns the highest resting bid price.
func (e *Engine) BestBid() (int64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BestBid()
}

// BestAsk returns the lowest resting ask price.
func (e *Engine) BestAsk() (int64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BestAsk()
}

// LastPrice returns the price of the most recent trade, 0 if none.
func (e *Engine) LastPrice() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPrice
}

// Trades returns a copy of the episode's full trade log.
func (e *Engine) Trades() []Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Lookup returns a copy of a resting order, ok=false if it is not in the
// book (unknown, filled, cancelled or discarded).
func (e *Engine) Lookup(id uint64) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Lookup(id)
}

// RestingOrders returns the number of orders resident in the book.
func (e *Engine) RestingOrders() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Len()
}

// RestingQty sums the remaining quantity resting on one side.
func (e *Engine) RestingQty(side Side) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.RestingQty(side)
}

// Halted returns the invariant violation that stopped the engine, if any.
func (e *Engine) Halted() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.halted == nil {
		return nil
	}
	return e.halted
}

// checkNoCross verifies the resting book is not crossed. A crossed book
// may exist only transiently inside the matching loop, never between
// calls.
func (e *Engine) checkNoCross() *InvariantError {
	bid, okBid := e.book.BestBid()
	ask, okAsk := e.book.BestAsk()
	if okBid && okAsk && bid >= ask {
		return &InvariantError{
			Invariant: "no-cross",
			Detail:    fmt.Sprintf("best bid %d >= best ask %d", bid, ask),
		}
	}
	return nil
}

// halt latches the first invariant violation; all later mutating calls
// fail with ErrEngineHalted until Reset.
func (e *Engine) halt(inv *InvariantError) error {
	if e.halted == nil {
		e.halted = inv
	}
	return inv
}
