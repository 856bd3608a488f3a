// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSC is a multi-producer single-consumer bounded queue.
//
// The producer side is the same turn-counter protocol as [MPMC]:
// producers race a CAS on the enqueue position and publish through the
// claimed slot's counter. The consumer side exploits its exclusivity —
// the single consumer keeps the dequeue position in a plain
// single-writer atomic, checks one slot's turn, and never needs a CAS
// or a retry loop.
//
// Memory: n slots (64+ bytes per slot)
type MPSC[T any] struct {
	_    pad
	enq  atomix.Uint64 // next producer position (CAS)
	_    pad
	deq  atomix.Uint64 // next consumer position (single writer)
	_    pad
	ring []ringSlot[T]
	mask uint64
}

// NewMPSC creates a new MPSC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewMPSC[T any](capacity int) *MPSC[T] {
	ring := newRing[T](capacity)
	return &MPSC[T]{ring: ring, mask: uint64(len(ring)) - 1}
}

// size returns the ring's slot count, which is also the lap length of
// the turn counters.
func (q *MPSC[T]) size() uint64 {
	return q.mask + 1
}

// Enqueue adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue is full.
func (q *MPSC[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		pos := q.enq.LoadAcquire()
		slot := &q.ring[pos&q.mask]
		turn := slot.turn.LoadAcquire()

		switch {
		case turn == pos:
			if q.enq.CompareAndSwapAcqRel(pos, pos+1) {
				slot.elem = *elem
				slot.turn.StoreRelease(pos + 1)
				return nil
			}
		case int64(turn-pos) < 0:
			// The consumer has not freed this slot's lap yet.
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPSC[T]) Dequeue() (T, error) {
	var zero T
	pos := q.deq.LoadRelaxed()
	slot := &q.ring[pos&q.mask]
	if slot.turn.LoadAcquire() != pos+1 {
		// The producer for pos has not published yet.
		return zero, ErrWouldBlock
	}

	elem := slot.elem
	slot.elem = zero
	// Hand the slot to the next lap's producer, then step forward.
	slot.turn.StoreRelease(pos + q.size())
	q.deq.StoreRelease(pos + 1)
	return elem, nil
}

// Cap returns the queue capacity.
func (q *MPSC[T]) Cap() int {
	return len(q.ring)
}

// Len returns the approximate number of queued elements.
func (q *MPSC[T]) Len() int {
	used := q.enq.LoadAcquire() - q.deq.LoadAcquire()
	if int64(used) < 0 {
		return 0
	}
	if used > q.size() {
		return int(q.size())
	}
	return int(used)
}
