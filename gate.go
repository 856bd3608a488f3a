// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/zoobzio/clockz"
)

// Gate lets threads through only if opened.
//
// It blocks all waiters while closed and lets all of them through at
// once when opened. Close is cheap and does not affect waiters that
// have already passed through. Windows and .NET developers know this
// primitive as a "ManualResetEvent".
//
// There must be no waiters pending when a Gate is discarded.
type Gate struct {
	mu    sync.Mutex
	open  atomix.Bool
	ch    chan struct{} // closed while the gate is open
	clock clockz.Clock
}

// NewGate creates a gate in an open or closed state.
func NewGate(initiallyOpen bool) *Gate {
	g := &Gate{ch: make(chan struct{})}
	if initiallyOpen {
		g.open.StoreRelease(true)
		close(g.ch)
	}
	return g
}

// WithClock sets the clock used for timed waits. Defaults to the real
// clock; tests can install a fake.
func (g *Gate) WithClock(clock clockz.Clock) *Gate {
	g.mu.Lock()
	g.clock = clock
	g.mu.Unlock()
	return g
}

func (g *Gate) getClock() clockz.Clock {
	if g.clock == nil {
		return clockz.RealClock
	}
	return g.clock
}

// Open opens the gate, letting all current and future waiters through.
func (g *Gate) Open() {
	g.mu.Lock()
	if !g.open.Load() {
		g.open.StoreRelease(true)
		close(g.ch)
	}
	g.mu.Unlock()
}

// Close closes the gate, making future waiters block in front of it.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.open.Load() {
		g.open.StoreRelease(false)
		g.ch = make(chan struct{})
	}
	g.mu.Unlock()
}

// Set opens (true) or closes (false) the gate.
func (g *Gate) Set(opened bool) {
	if opened {
		g.Open()
	} else {
		g.Close()
	}
}

// IsOpen reports whether the gate is currently open.
func (g *Gate) IsOpen() bool {
	return g.open.LoadAcquire()
}

// Wait blocks until the gate is open. Returns immediately if it
// already is. A normal return means the gate was observed open at
// some point during the call.
func (g *Gate) Wait() {
	if g.open.LoadAcquire() {
		return
	}
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	<-ch
}

// WaitFor blocks until the gate is open or the patience elapses.
// Returns true if the gate was observed open, false on timeout.
// The deadline is monotonic and insensitive to wall-clock adjustments.
func (g *Gate) WaitFor(patience time.Duration) bool {
	if g.open.LoadAcquire() {
		return true
	}
	g.mu.Lock()
	ch := g.ch
	clock := g.getClock()
	g.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-clock.After(patience):
		// The open may have raced the timer; prefer the pass-through.
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
}
