// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPMC is a multi-producer multi-consumer bounded queue.
//
// Every slot carries a turn counter that encodes whose move it is:
// turn == pos means the producer claiming ring position pos may write,
// turn == pos+1 means the consumer at position pos may read, and after
// the read the counter jumps a whole lap ahead (pos + size) to hand
// the slot to the producer that will next land on it. A thread whose
// position does not match the turn either lost a claim race (the turn
// is ahead — retry) or found the ring full/empty (the turn is behind —
// report ErrWouldBlock).
//
// The turn publish is the linearization point of an enqueue; a
// successful dequeue synchronizes-with its enqueue through the
// acquire load of the same counter. The counters double as ABA
// protection: a position is only ever valid for one lap.
//
// Memory: n slots (64+ bytes per slot)
type MPMC[T any] struct {
	_    pad
	enq  atomix.Uint64 // next producer position
	_    pad
	deq  atomix.Uint64 // next consumer position
	_    pad
	ring []ringSlot[T]
	mask uint64
}

// ringSlot pairs an element with the turn counter coordinating access
// to it.
type ringSlot[T any] struct {
	turn atomix.Uint64
	elem T
	_    padShort // Pad to cache line
}

// newRing allocates the slot array and deals every slot its first
// turn: slot i starts owned by the producer that will claim position i
// of lap zero.
func newRing[T any](capacity int) []ringSlot[T] {
	if capacity < 2 {
		panic("conc: capacity must be >= 2")
	}
	ring := make([]ringSlot[T], roundToPow2(capacity))
	for i := range ring {
		ring[i].turn.StoreRelaxed(uint64(i))
	}
	return ring
}

// NewMPMC creates a new MPMC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewMPMC[T any](capacity int) *MPMC[T] {
	ring := newRing[T](capacity)
	return &MPMC[T]{ring: ring, mask: uint64(len(ring)) - 1}
}

// size returns the ring's slot count, which is also the lap length of
// the turn counters.
func (q *MPMC[T]) size() uint64 {
	return q.mask + 1
}

// Enqueue adds an element to the queue.
// Returns ErrWouldBlock if the queue is full.
func (q *MPMC[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		pos := q.enq.LoadAcquire()
		slot := &q.ring[pos&q.mask]
		turn := slot.turn.LoadAcquire()

		switch {
		case turn == pos:
			// Our turn to write; race the other producers for it.
			if q.enq.CompareAndSwapAcqRel(pos, pos+1) {
				slot.elem = *elem
				slot.turn.StoreRelease(pos + 1)
				return nil
			}
		case int64(turn-pos) < 0:
			// The slot still holds the previous lap's element.
			return ErrWouldBlock
		}
		// Turn is ahead: another producer claimed pos first. Reload.
		sw.Once()
	}
}

// Dequeue removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPMC[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	for {
		pos := q.deq.LoadAcquire()
		slot := &q.ring[pos&q.mask]
		turn := slot.turn.LoadAcquire()

		switch {
		case turn == pos+1:
			// Our turn to read; race the other consumers for it.
			if q.deq.CompareAndSwapAcqRel(pos, pos+1) {
				elem := slot.elem
				var zero T
				slot.elem = zero
				// Hand the slot to the next lap's producer.
				slot.turn.StoreRelease(pos + q.size())
				return elem, nil
			}
		case int64(turn-(pos+1)) < 0:
			// The producer for pos has not published yet.
			var zero T
			return zero, ErrWouldBlock
		}
		// Turn is ahead: another consumer claimed pos first. Reload.
		sw.Once()
	}
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int {
	return len(q.ring)
}

// Len returns the approximate number of queued elements.
func (q *MPMC[T]) Len() int {
	used := q.enq.LoadAcquire() - q.deq.LoadAcquire()
	if int64(used) < 0 {
		return 0
	}
	if used > q.size() {
		return int(q.size())
	}
	return int(used)
}
