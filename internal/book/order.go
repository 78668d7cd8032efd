// Package book implements the single-instrument limit order book: the
// price-indexed, price-time-priority matching core described in the
// system's matching pipeline. It has no knowledge of the wire protocol,
// the intake queue, or the matcher goroutine that drives it — those are
// internal/net and internal/engine, respectively. The book itself is a
// single-threaded resource: callers own the discipline of only ever
// touching one from a single goroutine.
package book

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Strategy is the closed set of client categories an Order may be tagged
// with. Matching never reads it; it is carried opaquely for downstream
// reporting.
type Strategy int

const (
	StrategyQuantLongTerm Strategy = iota
	StrategyHighFrequency
	StrategyHedgeFund
	StrategyAlgorithmic
	StrategyInvestmentBank
	StrategyPensionFund
	StrategyInsurance
	StrategyOther
)

func (s Strategy) String() string {
	switch s {
	case StrategyQuantLongTerm:
		return "quant_long_term"
	case StrategyHighFrequency:
		return "high_frequency"
	case StrategyHedgeFund:
		return "hedge_fund"
	case StrategyAlgorithmic:
		return "algorithmic"
	case StrategyInvestmentBank:
		return "investment_bank"
	case StrategyPensionFund:
		return "pension_fund"
	case StrategyInsurance:
		return "insurance"
	default:
		return "other"
	}
}

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Kind distinguishes market orders (price ignored, willing to trade at any
// price) from limit orders (bounded by Price, may rest on the book).
type Kind int

const (
	Limit Kind = iota
	Market
)

func (k Kind) String() string {
	if k == Market {
		return "market"
	}
	return "limit"
}

// Status is managed by the owning component; matching's decisions never
// depend on it.
type Status int

const (
	Pending Status = iota
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// idCounter is the single process-wide monotonic order-id source. A plain
// atomic fetch-and-increment is sufficient correctness-wise: ids only need
// to be unique and increasing within a process, never reused, and observed
// consistently across every producer goroutine that constructs an Order.
var idCounter atomic.Uint64

// NextOrderID draws the next identifier from the shared counter. Exported
// so the net boundary can stamp an id before an order ever reaches the
// queue, should a caller need the id ahead of construction (it currently
// doesn't — NewOrder draws its own — but the counter itself must stay a
// single shared instance across the process either way).
func NextOrderID() uint64 {
	return idCounter.Add(1)
}

// Order is an immutable identity plus mutable residual quantity and
// status. id, Side, Kind, and CreatedAt never change after construction;
// Quantity only decreases via matching and never crosses zero from above.
type Order struct {
	id        uint64
	strategy  Strategy
	side      Side
	kind      Kind
	price     float64
	quantity  int64
	status    Status
	createdAt time.Time
}

// NewOrder constructs a pending order with a freshly drawn id. Market
// orders should be submitted with price 0 by convention; matching ignores
// price on market orders regardless.
func NewOrder(strategy Strategy, side Side, kind Kind, price float64, quantity int64) *Order {
	return &Order{
		id:        NextOrderID(),
		strategy:  strategy,
		side:      side,
		kind:      kind,
		price:     price,
		quantity:  quantity,
		status:    Pending,
		createdAt: time.Now(),
	}
}

func (o *Order) ID() uint64           { return o.id }
func (o *Order) Strategy() Strategy   { return o.strategy }
func (o *Order) Side() Side           { return o.side }
func (o *Order) Kind() Kind           { return o.kind }
func (o *Order) Price() float64       { return o.price }
func (o *Order) Quantity() int64      { return o.quantity }
func (o *Order) Status() Status       { return o.status }
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// SetQuantity is the only mutator matching uses; it never drives the
// residual below zero.
func (o *Order) SetQuantity(q int64) { o.quantity = q }
func (o *Order) SetPrice(p float64)  { o.price = p }
func (o *Order) SetKind(k Kind)      { o.kind = k }
func (o *Order) SetStatus(s Status)  { o.status = s }

// Done reports whether the order has no residual left to match.
func (o *Order) Done() bool { return o.quantity <= 0 }

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%d side=%s kind=%s price=%.4f qty=%d status=%s strategy=%s}",
		o.id, o.side, o.kind, o.price, o.quantity, o.status, o.strategy)
}

// Clone returns a shallow copy, used when a snapshot must outlive the
// book's own mutation of the original (e.g. LevelsAt reads).
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
