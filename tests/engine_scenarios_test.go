package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgym/dmarket/pkg/engine"
)

// End-to-end matching scenarios driven through the public engine surface
// the environment layer uses: Submit, Cancel, Reset, Snapshot.

func TestScenarioPartialFillRests(t *testing.T) {
	eng := engine.New(engine.Config{})

	buyID, trades, err := eng.Submit(engine.Buy, engine.Limit, 10, 5, "alice")
	require.NoError(t, err)
	require.Empty(t, trades)

	_, trades, err = eng.Submit(engine.Sell, engine.Limit, 10, 3, "bob")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(10), trades[0].Price)
	assert.Equal(t, int64(3), trades[0].Qty)

	snap := eng.Snapshot()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, engine.PriceLevel{Price: 10, Qty: 2}, snap.Bids[0])
	assert.Empty(t, snap.Asks)
	require.Len(t, snap.Trades, 1)

	rest, ok := eng.Lookup(buyID)
	require.True(t, ok)
	assert.Equal(t, int64(2), rest.Remaining)
	assert.Equal(t, engine.StatusPartiallyFilled, rest.Status)
}

func TestScenarioFIFOSplitFill(t *testing.T) {
	eng := engine.New(engine.Config{})

	s1, _, err := eng.Submit(engine.Sell, engine.Limit, 9, 2, "m1")
	require.NoError(t, err)
	s2, _, err := eng.Submit(engine.Sell, engine.Limit, 9, 3, "m2")
	require.NoError(t, err)

	_, trades, err := eng.Submit(engine.Buy, engine.Limit, 9, 4, "taker")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// First submitted, first matched.
	assert.Equal(t, s1, trades[0].SellOrderID)
	assert.Equal(t, int64(2), trades[0].Qty)
	assert.Equal(t, s2, trades[1].SellOrderID)
	assert.Equal(t, int64(2), trades[1].Qty)

	rest, ok := eng.Lookup(s2)
	require.True(t, ok)
	assert.Equal(t, int64(1), rest.Remaining)
}

func TestScenarioMarketBuyAgainstEmptyAsks(t *testing.T) {
	eng := engine.New(engine.Config{})

	id, trades, err := eng.Submit(engine.Buy, engine.Market, 0, 10, "alice")
	require.NoError(t, err)
	assert.Empty(t, trades)

	// The remainder is discarded, not rested; the book stays empty.
	_, ok := eng.Lookup(id)
	assert.False(t, ok)
	snap := eng.Snapshot()
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
	assert.Empty(t, snap.Trades)
}

func TestScenarioMultiLevelSweepThenReset(t *testing.T) {
	eng := engine.New(engine.Config{})

	for _, lvl := range []struct{ price, qty int64 }{{10, 2}, {11, 3}, {12, 4}} {
		_, _, err := eng.Submit(engine.Sell, engine.Limit, lvl.price, lvl.qty, "maker")
		require.NoError(t, err)
	}

	_, trades, err := eng.Submit(engine.Buy, engine.Market, 0, 9, "taker")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	// Best price first, maker prices throughout.
	assert.Equal(t, []int64{10, 11, 12}, []int64{trades[0].Price, trades[1].Price, trades[2].Price})
	assert.Equal(t, int64(12), eng.LastPrice())

	eng.Reset()
	assert.Zero(t, eng.RestingOrders())
	assert.Empty(t, eng.Trades())
	assert.Zero(t, eng.LastPrice())
}

func TestScenarioCancelLifecycle(t *testing.T) {
	eng := engine.New(engine.Config{})

	id, _, err := eng.Submit(engine.Buy, engine.Limit, 10, 5, "alice")
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(id))
	assert.ErrorIs(t, eng.Cancel(id), engine.ErrOrderNotFound)
	assert.ErrorIs(t, eng.Cancel(9999), engine.ErrOrderNotFound)

	// A cancelled order no longer matches.
	_, trades, err := eng.Submit(engine.Sell, engine.Limit, 10, 5, "bob")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestScenarioSnapshotCursorAcrossSteps(t *testing.T) {
	eng := engine.New(engine.Config{})

	// Step 1: two trades.
	_, _, err := eng.Submit(engine.Buy, engine.Limit, 10, 2, "a")
	require.NoError(t, err)
	_, _, err = eng.Submit(engine.Buy, engine.Limit, 10, 2, "b")
	require.NoError(t, err)
	_, _, err = eng.Submit(engine.Sell, engine.Limit, 10, 4, "c")
	require.NoError(t, err)

	snap := eng.Snapshot()
	require.Len(t, snap.Trades, 2)
	assert.Less(t, snap.Trades[0].Seq, snap.Trades[1].Seq)

	// Step 2: no activity.
	assert.Empty(t, eng.Snapshot().Trades)

	// Step 3: one more trade; only it is delivered.
	_, _, err = eng.Submit(engine.Buy, engine.Limit, 10, 1, "a")
	require.NoError(t, err)
	_, _, err = eng.Submit(engine.Sell, engine.Limit, 10, 1, "c")
	require.NoError(t, err)
	snap = eng.Snapshot()
	require.Len(t, snap.Trades, 1)

	// The full log still holds everything.
	assert.Len(t, eng.Trades(), 3)
}
