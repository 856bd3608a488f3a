// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Latch blocks waiters while its counter is above zero.
//
// Post raises the counter, CountDown lowers it. Waiters release when
// the counter reaches zero; waiters arriving while the counter already
// is zero pass straight through. A Post after the latch has released
// re-arms it: later waiters block again until the counter returns to
// zero.
//
// There must be no waiters pending when a Latch is discarded.
type Latch struct {
	mu    sync.Mutex
	count uint
	zero  chan struct{} // closed while count == 0
	clock clockz.Clock
}

// NewLatch creates a latch with the given initial counter.
func NewLatch(initialCount uint) *Latch {
	l := &Latch{count: initialCount, zero: make(chan struct{})}
	if initialCount == 0 {
		close(l.zero)
	}
	return l
}

// WithClock sets the clock used for timed waits. Defaults to the real
// clock; tests can install a fake.
func (l *Latch) WithClock(clock clockz.Clock) *Latch {
	l.mu.Lock()
	l.clock = clock
	l.mu.Unlock()
	return l
}

func (l *Latch) getClock() clockz.Clock {
	if l.clock == nil {
		return clockz.RealClock
	}
	return l.clock
}

// Post increments the counter by count, re-arming the latch if it had
// already released its waiters.
func (l *Latch) Post(count uint) {
	if count == 0 {
		return
	}
	l.mu.Lock()
	if l.count == 0 {
		l.zero = make(chan struct{})
	}
	l.count += count
	l.mu.Unlock()
}

// CountDown decrements the counter by count, releasing all pending
// waiters when it reaches zero. Counting down below zero is a
// precondition violation and panics.
func (l *Latch) CountDown(count uint) {
	if count == 0 {
		return
	}
	l.mu.Lock()
	if count > l.count {
		l.mu.Unlock()
		panic("conc: latch counted down below zero")
	}
	l.count -= count
	if l.count == 0 {
		close(l.zero)
	}
	l.mu.Unlock()
}

// Wait blocks until the counter reaches zero. Returns immediately if
// it already is zero.
func (l *Latch) Wait() {
	l.mu.Lock()
	ch := l.zero
	l.mu.Unlock()
	<-ch
}

// WaitFor blocks until the counter reaches zero or the patience
// elapses. Returns true if zero was observed, false on timeout.
// The deadline is monotonic and insensitive to wall-clock adjustments.
func (l *Latch) WaitFor(patience time.Duration) bool {
	l.mu.Lock()
	if l.count == 0 {
		l.mu.Unlock()
		return true
	}
	ch := l.zero
	clock := l.getClock()
	l.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-clock.After(patience):
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
}
