package book

import (
	"errors"

	"github.com/tidwall/btree"
)

// Failure modes per the matching core's error contract. Matching itself
// never fails — these are raised only by Add and the best-price queries.
var (
	ErrInvalidOrder = errors.New("book: invalid order")
	ErrEmptyBook    = errors.New("book: no liquidity on that side")
)

// Book is the two-sided, price-indexed order book. bids are ordered by
// price descending (best bid first); asks are ordered by price ascending
// (best ask first). Both are backed by github.com/tidwall/btree, the same
// structure fenrir/internal/engine/orderbook.go uses for its PriceLevels
// map — it gives O(log n) price-level lookup/insert/delete with ordered
// iteration for best-of-book and depth queries.
//
// Book is a single-threaded resource: every method assumes it is called
// from one goroutine at a time (the matcher). Nothing here takes a lock.
type Book struct {
	bids *btree.BTreeG[*priceLevel]
	asks *btree.BTreeG[*priceLevel]

	// index gives O(1) id->order lookup so Cancel can locate an order's
	// (side, price) without scanning every level, the way
	// execution-fairness-simulator's orderbook.Book keeps an orderIndex
	// map[uint64]*domain.Order for the same reason.
	index map[uint64]*Order
}

// New builds an empty book.
func New() *Book {
	return &Book{
		bids:  btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price > b.price }),
		asks:  btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price < b.price }),
		index: make(map[uint64]*Order),
	}
}

func (b *Book) sideTree(side Side) *btree.BTreeG[*priceLevel] {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// Add inserts order into its side's map at order.Price, appended to the
// tail of that price level. Preconditions: kind == Limit, quantity > 0.
func (b *Book) Add(o *Order) error {
	if o.Kind() != Limit || o.Quantity() <= 0 {
		return ErrInvalidOrder
	}
	b.restLimit(o)
	return nil
}

// restLimit appends a (by now already-validated, possibly partially
// filled) limit order to the tail of its own price level, creating the
// level if absent. Used both by Add and by Match when a residual rests.
func (b *Book) restLimit(o *Order) {
	tree := b.sideTree(o.Side())
	key := &priceLevel{price: o.Price()}
	level, ok := tree.Get(key)
	if !ok {
		level = newPriceLevel(o.Price())
		tree.Set(level)
	}
	level.pushBack(o)
	b.index[o.ID()] = o
}

// Cancel removes the order with the given id, wherever it rests. The
// order index resolves (side, price) in O(1); the level itself is then
// scanned front-to-back for the id, O(level_depth) as specified. Absent
// id is a silent no-op.
func (b *Book) Cancel(id uint64) bool {
	o, ok := b.index[id]
	if !ok {
		return false
	}
	tree := b.sideTree(o.Side())
	level, ok := tree.Get(&priceLevel{price: o.Price()})
	if !ok {
		delete(b.index, id)
		return false
	}
	if !level.removeByID(id) {
		return false
	}
	delete(b.index, id)
	if level.empty() {
		tree.Delete(level)
	}
	return true
}

// BestBid returns the top-of-book bid price, or ErrEmptyBook when no bids
// rest.
func (b *Book) BestBid() (float64, error) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, ErrEmptyBook
	}
	return level.price, nil
}

// BestAsk returns the top-of-book ask price, or ErrEmptyBook when no asks
// rest.
func (b *Book) BestAsk() (float64, error) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, ErrEmptyBook
	}
	return level.price, nil
}

// LevelsAt returns a snapshot of the resting orders at (side, price), for
// market-data reads. An absent level returns an empty, non-nil slice.
func (b *Book) LevelsAt(side Side, price float64) []*Order {
	tree := b.sideTree(side)
	level, ok := tree.Get(&priceLevel{price: price})
	if !ok {
		return []*Order{}
	}
	return level.snapshot()
}

// Levels returns a price-ordered snapshot of every resting level on side,
// best-of-book first. Used by depth queries and tests.
func (b *Book) Levels(side Side) []PriceLevelView {
	tree := b.sideTree(side)
	var out []PriceLevelView
	tree.Scan(func(level *priceLevel) bool {
		out = append(out, PriceLevelView{Price: level.price, Orders: level.snapshot()})
		return true
	})
	return out
}

// PriceLevelView is the read-only snapshot shape returned by Levels/LevelsAt.
type PriceLevelView struct {
	Price  float64
	Orders []*Order
}

// crosses reports whether incoming (at bestOpposite) would trade. Equality
// crosses, inclusive on both sides.
func crosses(incoming *Order, bestOpposite float64) bool {
	if incoming.Kind() != Limit {
		return true
	}
	if incoming.Side() == Buy {
		return incoming.Price() >= bestOpposite
	}
	return incoming.Price() <= bestOpposite
}

// Match crosses incoming against the opposite side with price-time
// priority, then rests any unfilled limit residual. Market orders with
// unfilled residual are silently discarded. Matching never fails:
// malformed inputs (non-positive quantity) degenerate to no-ops.
func (b *Book) Match(incoming *Order) {
	if incoming.Quantity() <= 0 {
		return
	}

	opposite := b.asks
	if incoming.Side() == Sell {
		opposite = b.bids
	}

	for incoming.Quantity() > 0 {
		level, ok := opposite.Min()
		if !ok {
			break
		}
		if !crosses(incoming, level.price) {
			break
		}

		for incoming.Quantity() > 0 && !level.empty() {
			resting := level.front()
			traded := min64(incoming.Quantity(), resting.Quantity())
			incoming.SetQuantity(incoming.Quantity() - traded)
			resting.SetQuantity(resting.Quantity() - traded)
			if resting.Done() {
				level.popFront()
				delete(b.index, resting.ID())
			}
		}

		if level.empty() {
			opposite.Delete(level)
		}
	}

	if incoming.Quantity() > 0 && incoming.Kind() == Limit {
		b.restLimit(incoming)
	}
	// Market orders with residual quantity are discarded here: nothing
	// further happens to incoming, and it is never inserted.
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
