// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue: the queue is full (backpressure)
// For Dequeue: the queue is empty (no data available)
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrBrokenPromise resolves a [Future] whose task was cancelled at thread
// pool shutdown instead of being executed.
var ErrBrokenPromise = errors.New("conc: task cancelled before execution")

// ErrInvalidConfig is returned by NewThreadPool when the worker bounds are
// zero or inverted.
var ErrInvalidConfig = errors.New("conc: invalid thread pool configuration")

// ErrShutdownTimeout is returned by ThreadPool.Close when the workers did
// not exit within the shutdown patience. Workers stuck inside a user task
// keep running until the task returns.
var ErrShutdownTimeout = errors.New("conc: workers did not exit within shutdown patience")

// ErrAffinityNotSupported is returned by the CPU affinity setters on
// platforms where thread affinity masks cannot be applied. Callers may
// fall back to [AllCPUs].
var ErrAffinityNotSupported = errors.New("conc: cpu affinity not supported on this platform")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// IsBrokenPromise reports whether err resolves from a cancelled task.
func IsBrokenPromise(err error) bool {
	return errors.Is(err, ErrBrokenPromise)
}

// PanicError carries a panic recovered from a user callable executed on
// a worker thread. The worker never aborts the process because of a user
// panic; the value and stack are routed through the task's [Future].
type PanicError struct {
	// Value is the value the callable panicked with.
	Value any
	// Stack is the worker stack captured at recovery.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("conc: task panicked: %v", e.Value)
}
