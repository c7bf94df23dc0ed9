package sim

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/marketgym/dmarket/pkg/engine"
	"github.com/marketgym/dmarket/pkg/util"
)

// FeederConfig controls the synthetic order flow rate and shape.
type FeederConfig struct {
	BatchSize   int           // orders generated per batch
	Interval    time.Duration // how often to generate batches
	NumTraders  int           // distinct simulated owners
	StartPrice  int64         // reference price before any trade happens
	PriceBand   int64         // max deviation from the reference price
	MaxQty      int64         // order quantity drawn from [1, MaxQty]
	MarketRatio float64       // fraction of market orders
	CancelRatio float64       // fraction of cancel actions
	Seed        int64         // rng seed, 0 means time-based
}

// DefaultFeederConfig returns a modest demo load.
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		BatchSize:   10,
		Interval:    100 * time.Millisecond, // ~100 orders/sec
		NumTraders:  50,
		StartPrice:  10_000,
		PriceBand:   200,
		MaxQty:      10,
		MarketRatio: 0.1,
		CancelRatio: 0.15,
	}
}

// HighLoadConfig returns a stress-test load.
func HighLoadConfig() FeederConfig {
	return FeederConfig{
		BatchSize:   100,
		Interval:    10 * time.Millisecond, // ~10k orders/sec
		NumTraders:  200,
		StartPrice:  10_000,
		PriceBand:   500,
		MaxQty:      25,
		MarketRatio: 0.2,
		CancelRatio: 0.2,
	}
}

// Feeder pushes randomized zero-intelligence order flow into a matching
// engine: limit orders banded around the last trade price, a market-order
// mix, and cancellations of its own resting orders. It is the demo
// daemon's stand-in for real participants.
type Feeder struct {
	eng   *engine.Engine
	cfg   FeederConfig
	rng   *rand.Rand
	clock util.Clock

	live []uint64 // resting order ids this feeder placed

	// OnTrades, when set, receives every batch's executions. Used to wire
	// market-data broadcasts.
	OnTrades func([]engine.Trade)
}

// NewFeeder builds a feeder over the given engine.
func NewFeeder(eng *engine.Engine, cfg FeederConfig, clock util.Clock) *Feeder {
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &Feeder{
		eng:   eng,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		clock: clock,
	}
}

// Start launches the background generation loop and returns a cancel
// function that stops it.
func (f *Feeder) Start(ctx context.Context) context.CancelFunc {
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()

		start := f.clock.Now()
		totalOrders := 0
		totalTrades := 0

		log.Printf("[feeder] started - batch %d every %v, %d traders",
			f.cfg.BatchSize, f.cfg.Interval, f.cfg.NumTraders)

		for {
			select {
			case <-feedCtx.Done():
				elapsed := f.clock.Now().Sub(start)
				log.Printf("[feeder] stopped - %d orders, %d trades in %v",
					totalOrders, totalTrades, elapsed.Round(time.Second))
				return

			case <-ticker.C:
				orders, trades := f.batch()
				totalOrders += orders
				totalTrades += len(trades)
				if len(trades) > 0 && f.OnTrades != nil {
					f.OnTrades(trades)
				}
			}
		}
	}()

	return cancel
}

// batch generates one batch of submissions and cancels, returning the
// number of orders placed and the trades they produced.
func (f *Feeder) batch() (int, []engine.Trade) {
	var all []engine.Trade
	orders := 0
	for i := 0; i < f.cfg.BatchSize; i++ {
		if f.rng.Float64() < f.cfg.CancelRatio && len(f.live) > 0 {
			f.cancelRandom()
			continue
		}
		trades := f.submitRandom()
		orders++
		all = append(all, trades...)
	}
	return orders, all
}

func (f *Feeder) submitRandom() []engine.Trade {
	side := engine.Buy
	if f.rng.Intn(2) == 1 {
		side = engine.Sell
	}
	typ := engine.Limit
	if f.rng.Float64() < f.cfg.MarketRatio {
		typ = engine.Market
	}

	ref := f.eng.LastPrice()
	if ref == 0 {
		ref = f.cfg.StartPrice
	}
	price := ref + f.rng.Int63n(2*f.cfg.PriceBand+1) - f.cfg.PriceBand
	if price < 1 {
		price = 1
	}
	qty := 1 + f.rng.Int63n(f.cfg.MaxQty)
	owner := f.traderName(f.rng.Intn(f.cfg.NumTraders))

	id, trades, err := f.eng.Submit(side, typ, price, qty, owner)
	if err != nil {
		// Synthetic flow never sends invalid input; any failure here is
		// an engine halt and worth surfacing loudly.
		log.Printf("[feeder] submit failed: %v", err)
		return nil
	}
	if _, resting := f.eng.Lookup(id); resting {
		f.live = append(f.live, id)
		if len(f.live) > 4096 {
			// Stop tracking the oldest; it can still fill or be cancelled
			// by matching, just not by us.
			f.live = f.live[1:]
		}
	}
	return trades
}

func (f *Feeder) cancelRandom() {
	i := f.rng.Intn(len(f.live))
	id := f.live[i]
	f.live = append(f.live[:i], f.live[i+1:]...)
	if err := f.eng.Cancel(id); err != nil && !errors.Is(err, engine.ErrOrderNotFound) {
		log.Printf("[feeder] cancel failed: %v", err)
	}
}

func (f *Feeder) traderName(i int) string {
	return "trader-" + strconv.Itoa(i)
}
