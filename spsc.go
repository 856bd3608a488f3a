// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import "code.hybscloud.com/atomix"

// SPSC is a single-producer single-consumer bounded queue.
//
// The ring keeps two free-running positions: enq, advanced only by the
// producer, and deq, advanced only by the consumer. Each side also
// keeps a stale snapshot of the other side's position and refreshes it
// only when the snapshot makes the ring look full (producer) or empty
// (consumer). In the steady state neither side touches the other's
// cache line.
//
// Memory: O(capacity) with minimal per-slot overhead
type SPSC[T any] struct {
	buffer []T
	mask   uint64
	_      pad
	// producer side
	enq     atomix.Uint64
	deqSeen uint64 // producer's snapshot of deq
	_       pad
	// consumer side
	deq     atomix.Uint64
	enqSeen uint64 // consumer's snapshot of enq
	_       pad
}

// NewSPSC creates a new SPSC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 2 {
		panic("conc: capacity must be >= 2")
	}
	return &SPSC[T]{
		buffer: make([]T, roundToPow2(capacity)),
		mask:   uint64(roundToPow2(capacity)) - 1,
	}
}

// Enqueue adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSC[T]) Enqueue(elem *T) error {
	pos := q.enq.LoadRelaxed()
	if pos-q.deqSeen == uint64(len(q.buffer)) {
		// The snapshot says full; get a fresh view before giving up.
		q.deqSeen = q.deq.LoadAcquire()
		if pos-q.deqSeen == uint64(len(q.buffer)) {
			return ErrWouldBlock
		}
	}

	q.buffer[pos&q.mask] = *elem
	q.enq.StoreRelease(pos + 1)
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSC[T]) Dequeue() (T, error) {
	var zero T
	pos := q.deq.LoadRelaxed()
	if pos == q.enqSeen {
		// The snapshot says empty; get a fresh view before giving up.
		q.enqSeen = q.enq.LoadAcquire()
		if pos == q.enqSeen {
			return zero, ErrWouldBlock
		}
	}

	slot := &q.buffer[pos&q.mask]
	elem := *slot
	*slot = zero
	q.deq.StoreRelease(pos + 1)
	return elem, nil
}

// Cap returns the queue capacity.
func (q *SPSC[T]) Cap() int {
	return len(q.buffer)
}

// Len returns the approximate number of queued elements.
// Exact when the queue is not concurrently modified.
func (q *SPSC[T]) Len() int {
	used := q.enq.LoadAcquire() - q.deq.LoadAcquire()
	if int64(used) < 0 {
		return 0
	}
	return int(used)
}
