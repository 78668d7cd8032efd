// Package queue implements the bounded, multi-producer/single-consumer
// intake queue that decouples order-submitting goroutines from the single
// matcher goroutine. No third-party library in this module's dependency
// graph provides a lock-free ring buffer — this is exactly the kind of
// mechanical, allocation-free data structure the standard library's
// sync/atomic is the right tool for, and it is what every pack repo reaches
// for whenever it needs this (see DESIGN.md).
//
// The design is a bounded Vyukov-style MPSC ring: each slot carries a
// sequence number that a producer CASes forward on push and the consumer
// advances on pop. It never blocks and never drops — a full queue simply
// fails Push, and the caller (internal/engine.Engine.Submit) busy-yields
// and retries, exactly as the spec's original C++ lock-free queue does
// (`while (!order_queue_.push(raw_ptr)) { std::this_thread::yield(); }`).
package queue

import "sync/atomic"

type slot[T any] struct {
	seq   atomic.Uint64
	value T
}

// Ring is a bounded multi-producer/single-consumer queue. Capacity must be
// a power of two; NewRing rounds up if it isn't.
type Ring[T any] struct {
	mask  uint64
	slots []slot[T]

	// enqueuePos is advanced by producers via CAS; dequeuePos is advanced
	// by the single consumer only and needs no synchronization against
	// itself, only against the producers' reads of slot sequence numbers.
	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
}

// NewRing builds a ring of the given capacity (reference: 1024), rounded
// up to the next power of two.
func NewRing[T any](capacity int) *Ring[T] {
	capacity = nextPow2(capacity)
	r := &Ring[T]{
		mask:  uint64(capacity - 1),
		slots: make([]slot[T], capacity),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the queue's fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.slots) }

// Len reports an instantaneous, best-effort occupancy count, for
// queue-depth metrics only — it is not linearizable with concurrent
// pushes/pops.
func (r *Ring[T]) Len() int {
	enq := r.enqueuePos.Load()
	deq := r.dequeuePos.Load()
	if enq < deq {
		return 0
	}
	n := int(enq - deq)
	if n > len(r.slots) {
		return len(r.slots)
	}
	return n
}

// Push attempts a single non-blocking enqueue. It returns false if the
// queue is full; callers that must not lose the item retry (the spec
// calls this "busy-yield").
func (r *Ring[T]) Push(v T) bool {
	pos := r.enqueuePos.Load()
	for {
		s := &r.slots[pos&r.mask]
		seq := s.seq.Load()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			// Slot is free for this position. Claim it.
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				s.value = v
				s.seq.Store(pos + 1)
				return true
			}
			pos = r.enqueuePos.Load()
		case diff < 0:
			// Slot has not been freed by the consumer yet: full.
			return false
		default:
			// Another producer has already claimed this position.
			pos = r.enqueuePos.Load()
		}
	}
}

// Pop attempts a single non-blocking dequeue. Only the single designated
// consumer goroutine may call this.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	pos := r.dequeuePos.Load()
	s := &r.slots[pos&r.mask]
	seq := s.seq.Load()
	diff := int64(seq) - int64(pos+1)

	if diff != 0 {
		// Nothing published at this position yet.
		return zero, false
	}

	v := s.value
	s.value = zero
	s.seq.Store(pos + r.mask + 1)
	r.dequeuePos.Store(pos + 1)
	return v, true
}

// Drain empties the queue, returning every item still queued in FIFO
// order. Used on shutdown: residual orders in the intake queue are
// destroyed without being matched, per the queue's documented lifetime
// contract.
func (r *Ring[T]) Drain() []T {
	var out []T
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}
