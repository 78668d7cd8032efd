package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-markets/obcore/internal/book"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within deadline")
}

func TestEngine_SubmitAndQueryBestBid(t *testing.T) {
	eng := New(16)
	defer eng.Stop()

	eng.Submit(book.NewOrder(book.StrategyOther, book.Buy, book.Limit, 100.0, 10))

	waitFor(t, func() bool {
		_, ok := eng.BestBid()
		return ok
	})

	price, ok := eng.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
}

func TestEngine_MatchCrossesRestingOrder(t *testing.T) {
	eng := New(16)
	defer eng.Stop()

	eng.Submit(book.NewOrder(book.StrategyOther, book.Sell, book.Limit, 100.0, 10))
	waitFor(t, func() bool {
		_, ok := eng.BestAsk()
		return ok
	})

	eng.Submit(book.NewOrder(book.StrategyOther, book.Buy, book.Market, 0, 4))

	waitFor(t, func() bool {
		orders := eng.LevelsAt(book.Sell, 100.0)
		return len(orders) == 1 && orders[0].Quantity() == 6
	})
}

func TestEngine_Cancel(t *testing.T) {
	eng := New(16)
	defer eng.Stop()

	o := book.NewOrder(book.StrategyOther, book.Buy, book.Limit, 100.0, 10)
	eng.Submit(o)

	waitFor(t, func() bool {
		_, ok := eng.BestBid()
		return ok
	})

	assert.True(t, eng.Cancel(o.ID()))

	waitFor(t, func() bool {
		_, ok := eng.BestBid()
		return !ok
	})
}

func TestEngine_CancelUnknownReturnsFalse(t *testing.T) {
	eng := New(16)
	defer eng.Stop()
	assert.False(t, eng.Cancel(999999))
}

func TestEngine_StatsTrackAcceptedOrders(t *testing.T) {
	eng := New(16)
	defer eng.Stop()

	for i := 0; i < 5; i++ {
		eng.Submit(book.NewOrder(book.StrategyOther, book.Buy, book.Limit, 100.0, 1))
	}

	waitFor(t, func() bool {
		_, accepted, _, _, _ := eng.Stats()
		return accepted == 5
	})
}

// TestEngine_ConcurrentSubmissionConservation mirrors the book-level
// conservation property at the engine boundary: every order submitted by
// many producer goroutines is eventually visible resting on the book with
// its full quantity, none dropped, none duplicated.
func TestEngine_ConcurrentSubmissionConservation(t *testing.T) {
	eng := New(64)
	defer eng.Stop()

	const producers = 10
	const perProducer = 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				eng.Submit(book.NewOrder(book.StrategyOther, book.Buy, book.Limit, 50.0, 1))
			}
		}()
	}
	wg.Wait()

	want := int64(producers * perProducer)
	waitFor(t, func() bool {
		orders := eng.LevelsAt(book.Buy, 50.0)
		var total int64
		for _, o := range orders {
			total += o.Quantity()
		}
		return total == want
	})
}

func TestEngine_StopDrainsQueueWithoutPanicking(t *testing.T) {
	eng := New(16)
	eng.Submit(book.NewOrder(book.StrategyOther, book.Buy, book.Limit, 100.0, 1))
	eng.Stop()
	eng.Stop() // idempotent
}
