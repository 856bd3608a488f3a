// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import "unsafe"

// slotReuseLimit bounds recycling: only task slots whose total footprint
// (header + declared payload) stays below it are recycled. Oversized slots are
// dropped for the garbage collector after their task finishes: letting
// a gigantic task enter the reuse pool would eventually leave only
// oversized blocks circulating.
const slotReuseLimit = 128

// slotPoolCapacity bounds the free list of recycled slots.
const slotPoolCapacity = 256

// slotHeaderSize is the fixed part of every task slot.
const slotHeaderSize = unsafe.Sizeof(taskSlot{})

// taskSlot is the heap-resident carrier of one scheduled task: the
// type-erased invoke/cancel trampolines bound at schedule time, plus
// the declared payload footprint that gates recycling. Exactly one of
// invoke or cancel runs before the slot is released.
type taskSlot struct {
	// payloadSize is the declared footprint of the bound callable
	// state (callable word, future pointer, result value). It is
	// preserved across recycling so a re-handout can reject a slot
	// that is too small for a new request.
	payloadSize uintptr

	// gen increments on every release; tests use it to observe that
	// recycling actually happened.
	gen uint64

	// invoke runs the callable on a worker and resolves the future.
	invoke func()

	// cancel resolves the future with ErrBrokenPromise without
	// running the callable.
	cancel func()
}

// clear destroys the slot contents in place. The storage stays valid
// for recycling.
func (s *taskSlot) clear() {
	s.invoke = nil
	s.cancel = nil
	s.gen++
}

// slotPool recycles task slots through a lock-free MPMC free list.
// All workers share it.
type slotPool struct {
	free *MPMC[*taskSlot]
}

func newSlotPool() *slotPool {
	return &slotPool{free: NewMPMC[*taskSlot](slotPoolCapacity)}
}

// acquire returns a recycled slot whose declared payload capacity is
// at least payloadSize, or a fresh one. Recycled slots that are too
// small for the request are dropped instead of handed out.
func (p *slotPool) acquire(payloadSize uintptr) *taskSlot {
	if slotHeaderSize+payloadSize < slotReuseLimit {
		for attempt := 0; attempt < 3; attempt++ {
			s, err := p.free.Dequeue()
			if err != nil {
				break
			}
			if s.payloadSize >= payloadSize {
				return s
			}
		}
	}
	return &taskSlot{payloadSize: payloadSize}
}

// release destroys the slot contents in place and returns the slot to
// the free list when its footprint is below the reuse limit. Oversized
// slots, and slots that do not fit the free list, are left to the
// garbage collector.
func (p *slotPool) release(s *taskSlot) {
	s.clear()
	if slotHeaderSize+s.payloadSize < slotReuseLimit {
		_ = p.free.Enqueue(&s)
	}
}

// drain empties the free list at pool teardown.
func (p *slotPool) drain() {
	for {
		if _, err := p.free.Dequeue(); err != nil {
			return
		}
	}
}
