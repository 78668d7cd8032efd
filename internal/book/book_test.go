package book

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimit(side Side, price float64, qty int64) *Order {
	return NewOrder(StrategyOther, side, Limit, price, qty)
}

func newMarket(side Side, qty int64) *Order {
	return NewOrder(StrategyOther, side, Market, 0, qty)
}

func TestBook_BestBidIsMax(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Buy, 99.0, 10)))
	require.NoError(t, b.Add(newLimit(Buy, 101.0, 10)))
	require.NoError(t, b.Add(newLimit(Buy, 100.0, 10)))

	price, err := b.BestBid()
	require.NoError(t, err)
	assert.Equal(t, 101.0, price)
}

func TestBook_BestAskIsMin(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Sell, 105.0, 10)))
	require.NoError(t, b.Add(newLimit(Sell, 102.0, 10)))
	require.NoError(t, b.Add(newLimit(Sell, 103.0, 10)))

	price, err := b.BestAsk()
	require.NoError(t, err)
	assert.Equal(t, 102.0, price)
}

func TestBook_EmptySideReturnsErrEmptyBook(t *testing.T) {
	b := New()
	_, err := b.BestBid()
	assert.ErrorIs(t, err, ErrEmptyBook)
	_, err = b.BestAsk()
	assert.ErrorIs(t, err, ErrEmptyBook)
}

func TestBook_MarketBuyConsumesBestAsk(t *testing.T) {
	b := New()
	resting := newLimit(Sell, 100.0, 10)
	require.NoError(t, b.Add(resting))

	incoming := newMarket(Buy, 4)
	b.Match(incoming)

	assert.True(t, incoming.Done())
	assert.Equal(t, int64(6), resting.Quantity())

	orders := b.LevelsAt(Sell, 100.0)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(6), orders[0].Quantity())
}

func TestBook_MarketBuyExhaustsLevel(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Sell, 100.0, 5)))
	require.NoError(t, b.Add(newLimit(Sell, 100.0, 5)))

	incoming := newMarket(Buy, 10)
	b.Match(incoming)

	assert.True(t, incoming.Done())
	_, err := b.BestAsk()
	assert.ErrorIs(t, err, ErrEmptyBook)
}

func TestBook_MarketResidualDiscardedSilently(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Sell, 100.0, 5)))

	incoming := newMarket(Buy, 50)
	b.Match(incoming)

	assert.Equal(t, int64(45), incoming.Quantity())
	_, err := b.BestAsk()
	assert.ErrorIs(t, err, ErrEmptyBook)
	// The residual is never inserted anywhere; there is nothing further to
	// assert beyond the book staying empty.
}

func TestBook_LimitBuyNoCrossRests(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Sell, 105.0, 10)))

	incoming := newLimit(Buy, 100.0, 10)
	b.Match(incoming)

	assert.Equal(t, int64(10), incoming.Quantity())
	price, err := b.BestBid()
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}

func TestBook_LimitBuyCrossesPartiallyFillsResidualRests(t *testing.T) {
	b := New()
	resting := newLimit(Sell, 100.0, 4)
	require.NoError(t, b.Add(resting))

	incoming := newLimit(Buy, 100.0, 10)
	b.Match(incoming)

	assert.True(t, resting.Done())
	assert.Equal(t, int64(6), incoming.Quantity())

	_, err := b.BestAsk()
	assert.ErrorIs(t, err, ErrEmptyBook)

	price, err := b.BestBid()
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, incoming.ID(), b.LevelsAt(Buy, 100.0)[0].ID())
}

func TestBook_PriceTimePriority(t *testing.T) {
	b := New()
	first := newLimit(Sell, 100.0, 5)
	second := newLimit(Sell, 100.0, 5)
	require.NoError(t, b.Add(first))
	require.NoError(t, b.Add(second))

	incoming := newLimit(Buy, 100.0, 5)
	b.Match(incoming)

	assert.True(t, first.Done())
	assert.Equal(t, int64(5), second.Quantity())
	assert.True(t, incoming.Done())
}

func TestBook_CancelRemovesTargetedOrder(t *testing.T) {
	b := New()
	a := newLimit(Buy, 100.0, 5)
	target := newLimit(Buy, 100.0, 7)
	c := newLimit(Buy, 100.0, 9)
	require.NoError(t, b.Add(a))
	require.NoError(t, b.Add(target))
	require.NoError(t, b.Add(c))

	assert.True(t, b.Cancel(target.ID()))

	remaining := b.LevelsAt(Buy, 100.0)
	require.Len(t, remaining, 2)
	assert.Equal(t, a.ID(), remaining[0].ID())
	assert.Equal(t, c.ID(), remaining[1].ID())
}

func TestBook_CancelUnknownIDIsNoop(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Buy, 100.0, 5)))
	assert.False(t, b.Cancel(999999))
}

func TestBook_CancelEmptiesLevel(t *testing.T) {
	b := New()
	o := newLimit(Buy, 100.0, 5)
	require.NoError(t, b.Add(o))
	assert.True(t, b.Cancel(o.ID()))

	_, err := b.BestBid()
	assert.ErrorIs(t, err, ErrEmptyBook)
	assert.Empty(t, b.LevelsAt(Buy, 100.0))
}

func TestBook_CancelAfterPartialFillStillWorks(t *testing.T) {
	b := New()
	resting := newLimit(Sell, 100.0, 10)
	require.NoError(t, b.Add(resting))

	incoming := newLimit(Buy, 100.0, 4)
	b.Match(incoming)
	require.Equal(t, int64(6), resting.Quantity())

	assert.True(t, b.Cancel(resting.ID()))
	_, err := b.BestAsk()
	assert.ErrorIs(t, err, ErrEmptyBook)
}

func TestBook_AddRejectsMarketOrInvalidQuantity(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.Add(newMarket(Buy, 5)), ErrInvalidOrder)
	assert.ErrorIs(t, b.Add(newLimit(Buy, 100.0, 0)), ErrInvalidOrder)
	assert.ErrorIs(t, b.Add(newLimit(Buy, 100.0, -1)), ErrInvalidOrder)
}

// TestBook_ConservationUnderConcurrentSubmission exercises the property
// that total resting quantity never exceeds what was submitted, even when
// many goroutines build orders concurrently. The book itself is still
// only ever touched by this one test goroutine (it is not safe for
// concurrent Match/Add/Cancel calls by design) — what is exercised here is
// that order id allocation via NewOrder is safe under concurrent callers,
// the way the spec's shared atomic counter must be.
func TestBook_ConservationUnderConcurrentSubmission(t *testing.T) {
	b := New()
	const n = 200

	orders := make([]*Order, n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	idx := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := newLimit(Buy, 100.0, 1)
			mu.Lock()
			orders[idx] = o
			idx++
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	var totalQty int64
	for _, o := range orders {
		require.NoError(t, b.Add(o))
		assert.False(t, seen[o.ID()], "duplicate order id allocated under concurrency")
		seen[o.ID()] = true
		totalQty += o.Quantity()
	}
	assert.Equal(t, int64(n), totalQty)

	resting := b.LevelsAt(Buy, 100.0)
	require.Len(t, resting, n)
	var restingQty int64
	for _, o := range resting {
		restingQty += o.Quantity()
	}
	assert.Equal(t, totalQty, restingQty)
}

func TestBook_LevelsOrderedBestFirst(t *testing.T) {
	b := New()
	require.NoError(t, b.Add(newLimit(Buy, 99.0, 1)))
	require.NoError(t, b.Add(newLimit(Buy, 101.0, 1)))
	require.NoError(t, b.Add(newLimit(Buy, 100.0, 1)))

	levels := b.Levels(Buy)
	require.Len(t, levels, 3)
	assert.Equal(t, 101.0, levels[0].Price)
	assert.Equal(t, 100.0, levels[1].Price)
	assert.Equal(t, 99.0, levels[2].Price)
}
