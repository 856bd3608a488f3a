// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"time"

	"code.hybscloud.com/atomix"
	"github.com/zoobzio/clockz"
)

// Future is the one-shot completion handle returned by [Submit].
//
// It resolves exactly once, to one of:
//   - the callable's return value
//   - a [*PanicError] when the callable panicked on the worker
//   - [ErrBrokenPromise] when the task was cancelled at pool shutdown
//
// The scheduling call site owns the Future; the worker holds the
// sending side inside the task slot and releases it on invocation or
// cancellation.
type Future[R any] struct {
	resolved atomix.Uint64 // 0 pending, 1 resolved
	done     chan struct{}
	value    R
	err      error
	clock    clockz.Clock
}

func newFuture[R any](clock clockz.Clock) *Future[R] {
	return &Future[R]{done: make(chan struct{}), clock: clock}
}

// resolve publishes the task's return value. First resolution wins.
func (f *Future[R]) resolve(value R) {
	if f.resolved.CompareAndSwapAcqRel(0, 1) {
		f.value = value
		close(f.done)
	}
}

// fail publishes a panic or broken-promise outcome. First resolution wins.
func (f *Future[R]) fail(err error) {
	if f.resolved.CompareAndSwapAcqRel(0, 1) {
		f.err = err
		close(f.done)
	}
}

// Get blocks until the task resolves and returns its value, the
// recovered panic as a [*PanicError], or [ErrBrokenPromise].
func (f *Future[R]) Get() (R, error) {
	<-f.done
	return f.value, f.err
}

// GetFor waits up to patience for the task to resolve. The middle
// return is false when the deadline elapsed first.
func (f *Future[R]) GetFor(patience time.Duration) (R, bool, error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	case <-f.getClock().After(patience):
		select {
		case <-f.done:
			return f.value, true, f.err
		default:
			var zero R
			return zero, false, nil
		}
	}
}

// Done returns a channel closed when the task has resolved.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[R]) getClock() clockz.Clock {
	if f.clock == nil {
		return clockz.RealClock
	}
	return f.clock
}
