// Package engine owns the single matcher goroutine: the one thread of
// control ever allowed to touch an internal/book.Book. Every producer
// goroutine — one per connection in internal/net — reaches the book only
// by pushing a command onto the intake queue and, for commands that need
// an answer, waiting on a reply channel the matcher closes over.
package engine

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lattice-markets/obcore/internal/book"
	"github.com/lattice-markets/obcore/internal/queue"
)

// defaultQueueCapacity matches the reference implementation's intake queue:
// a power of two, sized to absorb bursts without producers blocking under
// normal load.
const defaultQueueCapacity = 1024

// idleBackoff is how long the matcher goroutine sleeps after finding the
// queue empty, mirroring the reference engine's
// `std::this_thread::sleep_for(std::chrono::microseconds(100))`.
const idleBackoff = 100 * time.Microsecond

// opsSampleInterval is how often the matcher goroutine refreshes the
// current-orders-per-second gauge surfaced by GetPerformanceStats.
const opsSampleInterval = 500 * time.Millisecond

// kind distinguishes the three things a producer can ask the matcher to
// do. Submit never replies; Cancel and Query always do, so the caller can
// block until its own request has been serialized through the same
// single-writer pipeline as every order.
type kind int

const (
	cmdSubmit kind = iota
	cmdCancel
	cmdQuery
)

// queryOp distinguishes the read-only operations carried by a cmdQuery
// command.
type queryOp int

const (
	queryBestBid queryOp = iota
	queryBestAsk
	queryLevelsAt
)

type command struct {
	op kind

	// cmdSubmit
	order *book.Order

	// cmdCancel
	cancelID uint64

	// cmdQuery
	query      queryOp
	querySide  book.Side
	queryPrice float64

	reply chan reply
}

// reply carries every possible query answer; the caller only reads the
// field relevant to the query it issued.
type reply struct {
	price  float64
	orders []*book.Order
	ok     bool
	found  bool
}

// Engine couples the intake queue to the book and drives the single
// consumer goroutine that drains it. Construction starts the goroutine;
// Stop joins it.
type Engine struct {
	q    *queue.Ring[command]
	book *book.Book

	stopped atomic.Bool
	done    chan struct{}

	processed atomic.Uint64
	accepted  atomic.Uint64
	startedAt time.Time

	// currentOpsBits and peakOpsBits hold float64 orders-per-second rates
	// as their IEEE-754 bit pattern, the way a plain atomic.Uint64 is
	// conventionally used to publish a float across goroutines without a
	// mutex. currentOps is refreshed every opsSampleInterval by the
	// matcher goroutine itself; peakOps is the running max of every
	// sample taken.
	currentOpsBits atomic.Uint64
	peakOpsBits    atomic.Uint64

	opsSampleAt   time.Time
	opsSampleDone uint64
}

// New builds an Engine with the given intake queue capacity (rounded up to
// a power of two) and immediately starts its matcher goroutine.
func New(capacity int) *Engine {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	now := time.Now()
	e := &Engine{
		q:           queue.NewRing[command](capacity),
		book:        book.New(),
		done:        make(chan struct{}),
		startedAt:   now,
		opsSampleAt: now,
	}
	go e.run()
	return e
}

// Submit enqueues order for matching. It busy-yields until the intake
// queue accepts it: the queue never drops an order, it only ever makes a
// producer retry, exactly as the reference engine's
// `while (!queue.push(order)) yield();` loop does.
func (e *Engine) Submit(o *book.Order) {
	cmd := command{op: cmdSubmit, order: o}
	for !e.q.Push(cmd) {
		runtime.Gosched()
	}
}

// Cancel removes a resting order by id and reports whether it was found.
// The cancel itself executes inside the matcher goroutine so it observes
// a consistent view of the book relative to any order ahead of it in the
// queue.
func (e *Engine) Cancel(id uint64) bool {
	r := e.roundTrip(command{op: cmdCancel, cancelID: id})
	return r.found
}

// BestBid returns the current top-of-book bid price.
func (e *Engine) BestBid() (float64, bool) {
	r := e.roundTrip(command{op: cmdQuery, query: queryBestBid})
	return r.price, r.ok
}

// BestAsk returns the current top-of-book ask price.
func (e *Engine) BestAsk() (float64, bool) {
	r := e.roundTrip(command{op: cmdQuery, query: queryBestAsk})
	return r.price, r.ok
}

// LevelsAt returns a snapshot of the resting orders at (side, price).
func (e *Engine) LevelsAt(side book.Side, price float64) []*book.Order {
	r := e.roundTrip(command{op: cmdQuery, query: queryLevelsAt, querySide: side, queryPrice: price})
	return r.orders
}

// roundTrip pushes cmd (which must carry a reply channel) and blocks for
// the matcher's answer. Like Submit, pushing itself busy-yields under
// queue pressure.
func (e *Engine) roundTrip(cmd command) reply {
	cmd.reply = make(chan reply, 1)
	for !e.q.Push(cmd) {
		runtime.Gosched()
	}
	return <-cmd.reply
}

// Stats returns the engine's lifetime processed-command and accepted-order
// counters, its current and peak orders-per-second rate, and its uptime,
// for internal/metrics and GetPerformanceStats.
func (e *Engine) Stats() (processed, accepted uint64, currentOps, peakOps float64, uptime time.Duration) {
	return e.processed.Load(), e.accepted.Load(),
		math.Float64frombits(e.currentOpsBits.Load()),
		math.Float64frombits(e.peakOpsBits.Load()),
		time.Since(e.startedAt)
}

// QueueDepth reports the intake queue's instantaneous occupancy.
func (e *Engine) QueueDepth() int { return e.q.Len() }

// QueueCapacity reports the intake queue's fixed configured capacity.
func (e *Engine) QueueCapacity() int { return e.q.Cap() }

// Stop signals the matcher goroutine to exit, then blocks until it has.
// A command already being applied runs to completion; commands still
// sitting in the ring are discarded without being applied (a queued cancel
// or query gets a zero reply). Orders still sitting unqueued in producer
// goroutines are not this Engine's concern.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	<-e.done
}

// run is the sole goroutine ever allowed to call into e.book. It pops
// commands in FIFO order and applies them one at a time; when the queue
// is empty it backs off briefly rather than spinning hot. The stop flag is
// checked between commands; once set, whatever is still queued is drained
// and discarded unapplied.
func (e *Engine) run() {
	defer close(e.done)
	for {
		if e.stopped.Load() {
			for _, cmd := range e.q.Drain() {
				if cmd.reply != nil {
					cmd.reply <- reply{}
				}
			}
			return
		}
		cmd, ok := e.q.Pop()
		if !ok {
			time.Sleep(idleBackoff)
			e.maybeSampleOps()
			continue
		}
		e.apply(cmd)
		e.processed.Add(1)
		if cmd.op == cmdSubmit {
			e.opsSampleDone++
		}
		e.maybeSampleOps()
	}
}

// maybeSampleOps refreshes the current-ops gauge once opsSampleInterval has
// elapsed since the last sample, and folds it into the running peak. Only
// the matcher goroutine calls this, so opsSampleAt/opsSampleDone need no
// synchronization; the published rate itself is read cross-goroutine via
// currentOpsBits/peakOpsBits.
func (e *Engine) maybeSampleOps() {
	now := time.Now()
	elapsed := now.Sub(e.opsSampleAt)
	if elapsed < opsSampleInterval {
		return
	}
	rate := float64(e.opsSampleDone) / elapsed.Seconds()
	e.currentOpsBits.Store(math.Float64bits(rate))
	e.opsSampleAt = now
	e.opsSampleDone = 0

	for {
		prev := math.Float64frombits(e.peakOpsBits.Load())
		if rate <= prev {
			return
		}
		if e.peakOpsBits.CompareAndSwap(math.Float64bits(prev), math.Float64bits(rate)) {
			return
		}
	}
}

func (e *Engine) apply(cmd command) {
	switch cmd.op {
	case cmdSubmit:
		e.book.Match(cmd.order)
		e.accepted.Add(1)
	case cmdCancel:
		found := e.book.Cancel(cmd.cancelID)
		cmd.reply <- reply{found: found}
	case cmdQuery:
		e.applyQuery(cmd)
	default:
		log.Error().Int("op", int(cmd.op)).Msg("engine: unknown command kind")
	}
}

func (e *Engine) applyQuery(cmd command) {
	switch cmd.query {
	case queryBestBid:
		price, err := e.book.BestBid()
		cmd.reply <- reply{price: price, ok: err == nil}
	case queryBestAsk:
		price, err := e.book.BestAsk()
		cmd.reply <- reply{price: price, ok: err == nil}
	case queryLevelsAt:
		orders := e.book.LevelsAt(cmd.querySide, cmd.queryPrice)
		cmd.reply <- reply{orders: orders, ok: true}
	default:
		cmd.reply <- reply{}
	}
}
