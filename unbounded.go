// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// segmentSize is the number of slots per linked block of an unbounded queue.
const segmentSize = 256

// segEntry pairs a value with its publish flag. The flag is set with
// release ordering after the value store; a consumer's acquire load of
// the flag synchronizes-with the producing store.
type segEntry[T any] struct {
	ready atomix.Bool
	data  T
}

// segment is one fixed-size block of an unbounded multi-producer queue.
// Producers reserve slots by fetch-add on writeIdx; the reservation that
// lands exactly on segmentSize links the successor block. Blocks are
// never reused, so sequence-style lap counters are unnecessary and
// drained blocks are simply dropped for the garbage collector.
type segment[T any] struct {
	writeIdx atomix.Uint64
	_        padShort
	readIdx  atomix.Uint64 // multi-consumer variants only
	_        padShort
	next     atomic.Pointer[segment[T]]
	slots    [segmentSize]segEntry[T]
}

// UnboundedSPSC is a single-producer single-consumer unbounded queue
// built from linked fixed-size blocks. Enqueue never reports full; it
// allocates a new block when the current one fills.
type UnboundedSPSC[T any] struct {
	_       pad
	length  atomix.Int64
	_       pad
	tailSeg *spscSegment[T] // producer-owned
	tailIdx uint64
	_       pad
	headSeg *spscSegment[T] // consumer-owned
	headIdx uint64
}

type spscSegment[T any] struct {
	commit atomix.Uint64 // number of published slots
	_      padShort
	next   atomic.Pointer[spscSegment[T]]
	slots  [segmentSize]T
}

// NewUnboundedSPSC creates a new unbounded SPSC queue.
func NewUnboundedSPSC[T any]() *UnboundedSPSC[T] {
	seg := &spscSegment[T]{}
	return &UnboundedSPSC[T]{tailSeg: seg, headSeg: seg}
}

// Enqueue adds an element to the queue (producer only). Always succeeds.
func (q *UnboundedSPSC[T]) Enqueue(elem *T) error {
	if q.tailIdx == segmentSize {
		next := &spscSegment[T]{}
		q.tailSeg.next.Store(next)
		q.tailSeg = next
		q.tailIdx = 0
	}

	q.tailSeg.slots[q.tailIdx] = *elem
	q.tailIdx++
	q.tailSeg.commit.StoreRelease(q.tailIdx)
	q.length.Add(1)
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *UnboundedSPSC[T]) Dequeue() (T, error) {
	if q.headIdx == segmentSize {
		next := q.headSeg.next.Load()
		if next == nil {
			var zero T
			return zero, ErrWouldBlock
		}
		q.headSeg = next
		q.headIdx = 0
	}

	if q.headIdx >= q.headSeg.commit.LoadAcquire() {
		var zero T
		return zero, ErrWouldBlock
	}

	elem := q.headSeg.slots[q.headIdx]
	var zero T
	q.headSeg.slots[q.headIdx] = zero
	q.headIdx++
	q.length.Add(-1)
	return elem, nil
}

// Len returns the approximate number of queued elements.
func (q *UnboundedSPSC[T]) Len() int {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// UnboundedMPSC is a multi-producer single-consumer unbounded queue.
//
// Producers reserve slots in the tail block by fetch-add; the single
// consumer walks the block chain without CAS. FIFO holds per producer;
// across producers the order is slot reservation order.
type UnboundedMPSC[T any] struct {
	_       pad
	length  atomix.Int64
	_       pad
	tail    atomic.Pointer[segment[T]]
	_       pad
	headSeg *segment[T] // consumer-owned
	headIdx uint64
}

// NewUnboundedMPSC creates a new unbounded MPSC queue.
func NewUnboundedMPSC[T any]() *UnboundedMPSC[T] {
	seg := &segment[T]{}
	q := &UnboundedMPSC[T]{headSeg: seg}
	q.tail.Store(seg)
	return q
}

// Enqueue adds an element to the queue (multiple producers safe).
// Always succeeds.
func (q *UnboundedMPSC[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		seg := q.tail.Load()
		i := seg.writeIdx.AddAcqRel(1) - 1

		if i < segmentSize {
			seg.slots[i].data = *elem
			seg.slots[i].ready.StoreRelease(true)
			q.length.Add(1)
			return nil
		}

		// The reservation that lands exactly on the block boundary links
		// the successor; later reservations wait for the new tail.
		if i == segmentSize {
			next := &segment[T]{}
			seg.next.Store(next)
			q.tail.Store(next)
		} else {
			sw.Once()
		}
	}
}

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *UnboundedMPSC[T]) Dequeue() (T, error) {
	if q.headIdx == segmentSize {
		next := q.headSeg.next.Load()
		if next == nil {
			var zero T
			return zero, ErrWouldBlock
		}
		q.headSeg = next
		q.headIdx = 0
	}

	entry := &q.headSeg.slots[q.headIdx]
	if !entry.ready.LoadAcquire() {
		var zero T
		return zero, ErrWouldBlock
	}

	elem := entry.data
	var zero T
	entry.data = zero
	q.headIdx++
	q.length.Add(-1)
	return elem, nil
}

// Len returns the approximate number of queued elements.
func (q *UnboundedMPSC[T]) Len() int {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// UnboundedMPMC is a multi-producer multi-consumer unbounded queue.
//
// Producers reserve slots by fetch-add in the tail block; consumers
// claim published slots by CAS on the head block's read index. Blocks
// are dropped once fully drained. Enqueue order across producers is
// the order in which slot reservations linearized.
type UnboundedMPMC[T any] struct {
	_      pad
	length atomix.Int64
	_      pad
	tail   atomic.Pointer[segment[T]]
	_      pad
	head   atomic.Pointer[segment[T]]
}

// NewUnboundedMPMC creates a new unbounded MPMC queue.
func NewUnboundedMPMC[T any]() *UnboundedMPMC[T] {
	seg := &segment[T]{}
	q := &UnboundedMPMC[T]{}
	q.tail.Store(seg)
	q.head.Store(seg)
	return q
}

// Enqueue adds an element to the queue. Always succeeds.
func (q *UnboundedMPMC[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		seg := q.tail.Load()
		i := seg.writeIdx.AddAcqRel(1) - 1

		if i < segmentSize {
			seg.slots[i].data = *elem
			seg.slots[i].ready.StoreRelease(true)
			q.length.Add(1)
			return nil
		}

		if i == segmentSize {
			next := &segment[T]{}
			seg.next.Store(next)
			q.tail.Store(next)
		} else {
			sw.Once()
		}
	}
}

// Dequeue removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
//
// A slot that is reserved but not yet published reads as empty; the
// caller retries, preserving the non-blocking contract.
func (q *UnboundedMPMC[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	for {
		seg := q.head.Load()
		r := seg.readIdx.LoadAcquire()

		if r >= segmentSize {
			next := seg.next.Load()
			if next == nil {
				var zero T
				return zero, ErrWouldBlock
			}
			q.head.CompareAndSwap(seg, next)
			continue
		}

		entry := &seg.slots[r]
		if !entry.ready.LoadAcquire() {
			var zero T
			return zero, ErrWouldBlock
		}

		if seg.readIdx.CompareAndSwapAcqRel(r, r+1) {
			elem := entry.data
			var zero T
			entry.data = zero
			q.length.Add(-1)
			return elem, nil
		}
		sw.Once()
	}
}

// Len returns the approximate number of queued elements.
func (q *UnboundedMPMC[T]) Len() int {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
