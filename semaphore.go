// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Semaphore is a counting semaphore with monotonic timed waits.
//
// Post adds permits and wakes waiters; WaitThenDecrement blocks until a
// permit is available and consumes exactly one. Permits are handed
// directly to queued waiters in FIFO order, so a wait that reports
// success has consumed exactly one permit.
//
// All timed waits run against the monotonic clock and are insensitive
// to wall-clock adjustments. Several host OS semaphores default to
// wall-clock deadlines; this implementation layers its own monotonic
// deadline instead of relying on them.
type Semaphore struct {
	mu      sync.Mutex
	permits uint
	waiters []chan struct{} // FIFO; each buffered for one permit hand-off
	clock   clockz.Clock
}

// NewSemaphore creates a semaphore holding initialCount permits.
func NewSemaphore(initialCount uint) *Semaphore {
	return &Semaphore{permits: initialCount}
}

// WithClock sets the clock used for timed waits. Defaults to the real
// clock; tests can install a fake.
func (s *Semaphore) WithClock(clock clockz.Clock) *Semaphore {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
	return s
}

func (s *Semaphore) getClock() clockz.Clock {
	if s.clock == nil {
		return clockz.RealClock
	}
	return s.clock
}

// Post adds count permits, handing them to pending waiters first.
// A successful wait synchronizes-with the Post that produced its permit.
func (s *Semaphore) Post(count uint) {
	s.mu.Lock()
	for count > 0 && len(s.waiters) > 0 {
		w := s.waiters[0]
		copy(s.waiters, s.waiters[1:])
		s.waiters[len(s.waiters)-1] = nil
		s.waiters = s.waiters[:len(s.waiters)-1]
		w <- struct{}{} // buffered, never blocks
		count--
	}
	s.permits += count
	s.mu.Unlock()
}

// WaitThenDecrement blocks until a permit is available, then consumes
// one atomically.
func (s *Semaphore) WaitThenDecrement() {
	s.mu.Lock()
	if s.permits > 0 {
		s.permits--
		s.mu.Unlock()
		return
	}
	w := make(chan struct{}, 1)
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	<-w
}

// WaitForThenDecrement blocks until a permit is available or the
// patience elapses. Returns true if a permit was consumed (exactly
// once), false on timeout.
func (s *Semaphore) WaitForThenDecrement(patience time.Duration) bool {
	s.mu.Lock()
	if s.permits > 0 {
		s.permits--
		s.mu.Unlock()
		return true
	}
	w := make(chan struct{}, 1)
	s.waiters = append(s.waiters, w)
	clock := s.getClock()
	s.mu.Unlock()

	select {
	case <-w:
		return true
	case <-clock.After(patience):
		s.mu.Lock()
		removed := s.removeWaiter(w)
		s.mu.Unlock()
		if !removed {
			// A Post already handed this waiter a permit; consume it.
			<-w
			return true
		}
		return false
	}
}

// removeWaiter unlinks w from the wait queue. Returns false when w is
// no longer queued, meaning a Post has signalled it. Callers must hold mu.
func (s *Semaphore) removeWaiter(w chan struct{}) bool {
	for i := range s.waiters {
		if s.waiters[i] == w {
			copy(s.waiters[i:], s.waiters[i+1:])
			s.waiters[len(s.waiters)-1] = nil
			s.waiters = s.waiters[:len(s.waiters)-1]
			return true
		}
	}
	return false
}
