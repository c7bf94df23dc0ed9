package tests

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgym/dmarket/pkg/engine"
)

// Randomized property checks over long streams of submissions and
// cancels. Failures print the seed so a run can be replayed.

func tradedQty(eng *engine.Engine) int64 {
	var total int64
	for _, tr := range eng.Trades() {
		total += tr.Qty
	}
	return total
}

func TestPropertyRandomFlowInvariants(t *testing.T) {
	const seed = 20240817
	rng := rand.New(rand.NewSource(seed))
	eng := engine.New(engine.Config{})

	var (
		submitted int64 // all accepted quantity
		discarded int64 // market remainders dropped by policy
		cancelled int64 // remaining quantity removed by cancels
		live      []uint64
	)

	for op := 0; op < 5000; op++ {
		if rng.Float64() < 0.15 && len(live) > 0 {
			// Cancel a random tracked order; it may be gone already.
			i := rng.Intn(len(live))
			id := live[i]
			live = append(live[:i], live[i+1:]...)
			if o, ok := eng.Lookup(id); ok {
				require.NoError(t, eng.Cancel(id), "seed %d op %d", seed, op)
				cancelled += o.Remaining
			} else {
				assert.ErrorIs(t, eng.Cancel(id), engine.ErrOrderNotFound,
					"seed %d op %d", seed, op)
			}
		} else {
			side := engine.Buy
			if rng.Intn(2) == 1 {
				side = engine.Sell
			}
			typ := engine.Limit
			if rng.Float64() < 0.1 {
				typ = engine.Market
			}
			price := 90 + rng.Int63n(21) // tight band forces crossings
			qty := 1 + rng.Int63n(10)

			id, trades, err := eng.Submit(side, typ, price, qty, "prop")
			require.NoError(t, err, "seed %d op %d", seed, op)
			submitted += qty

			if typ == engine.Market {
				var filled int64
				for _, tr := range trades {
					filled += tr.Qty
				}
				discarded += qty - filled
			} else if _, ok := eng.Lookup(id); ok {
				live = append(live, id)
			}
		}

		// No-cross: never observable between calls.
		bid, okBid := eng.BestBid()
		ask, okAsk := eng.BestAsk()
		if okBid && okAsk {
			require.Less(t, bid, ask, "seed %d op %d: crossed book", seed, op)
		}

		// Quantity conservation: every submitted lot is resting, traded
		// (once per side), discarded or cancelled.
		resting := eng.RestingQty(engine.Buy) + eng.RestingQty(engine.Sell)
		require.Equal(t, submitted, resting+2*tradedQty(eng)+discarded+cancelled,
			"seed %d op %d: quantity leaked", seed, op)
	}

	require.NoError(t, eng.Halted(), "seed %d", seed)
	assert.NotEmpty(t, eng.Trades(), "flow in a 20-tick band should trade")
}

func TestPropertyMakerPriceClearing(t *testing.T) {
	const seed = 7
	rng := rand.New(rand.NewSource(seed))
	eng := engine.New(engine.Config{})

	resting := make(map[uint64]int64) // id -> limit price at submission
	for op := 0; op < 2000; op++ {
		side := engine.Buy
		if rng.Intn(2) == 1 {
			side = engine.Sell
		}
		price := 95 + rng.Int63n(11)
		id, trades, err := eng.Submit(side, engine.Limit, price, 1+rng.Int63n(5), "prop")
		require.NoError(t, err)

		for _, tr := range trades {
			makerID := tr.SellOrderID
			if side == engine.Sell {
				makerID = tr.BuyOrderID
			}
			makerPrice, known := resting[makerID]
			require.True(t, known, "seed %d op %d: maker %d never rested", seed, op, makerID)
			assert.Equal(t, makerPrice, tr.Price,
				"seed %d op %d: trade must clear at the maker price", seed, op)
		}
		if _, ok := eng.Lookup(id); ok {
			resting[id] = price
		}
	}
}

func TestPropertyPriceTimePriority(t *testing.T) {
	eng := engine.New(engine.Config{})

	// Ten makers at one price; takers must consume them in submission
	// order, each fully before the next.
	makers := make([]uint64, 10)
	for i := range makers {
		id, _, err := eng.Submit(engine.Sell, engine.Limit, 100, 3, "maker")
		require.NoError(t, err)
		makers[i] = id
	}

	next := 0
	for taker := 0; taker < 15; taker++ {
		_, trades, err := eng.Submit(engine.Buy, engine.Limit, 100, 2, "taker")
		require.NoError(t, err)
		for _, tr := range trades {
			// A fill may split across two adjacent makers, never skip one.
			if tr.SellOrderID != makers[next] {
				next++
				require.Less(t, next, len(makers))
				require.Equal(t, makers[next], tr.SellOrderID,
					"fills must follow submission order")
			}
		}
	}
}
