package book

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextOrderID_UniqueUnderConcurrency(t *testing.T) {
	const n = 500
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = NextOrderID()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "order id %d allocated twice", id)
		seen[id] = true
	}
}

func TestOrder_DoneReflectsQuantity(t *testing.T) {
	o := NewOrder(StrategyOther, Buy, Limit, 100.0, 5)
	assert.False(t, o.Done())
	o.SetQuantity(0)
	assert.True(t, o.Done())
}

func TestOrder_Clone(t *testing.T) {
	o := NewOrder(StrategyHighFrequency, Sell, Market, 0, 3)
	c := o.Clone()
	c.SetQuantity(0)

	assert.Equal(t, int64(3), o.Quantity())
	assert.Equal(t, o.ID(), c.ID())
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "high_frequency", StrategyHighFrequency.String())
	assert.Equal(t, "other", StrategyOther.String())
}
