// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conc is the concurrency core of the hybscloud support
// libraries: lock-free FIFO queues, single-owner item buffers,
// blocking wait primitives with monotonic timed waits, and a thread
// pool that packages callables into reusable heap slots and
// dispatches them to worker threads.
//
// # Queues
//
// Bounded queues come in three producer/consumer classes:
//
//	q := conc.NewSPSC[Event](1024)   // one producer, one consumer
//	q := conc.NewMPSC[Event](4096)   // many producers, one consumer
//	q := conc.NewMPMC[*Request](4096) // many of each
//
// Unbounded segmented queues share the same interface and never report
// full; they allocate fixed-size blocks on demand:
//
//	q := conc.NewUnboundedMPMC[Job]()
//
// The builder selects the algorithm from declared constraints:
//
//	q := conc.Build[Event](conc.New(1024).SingleProducer().SingleConsumer()) // → SPSC
//	q := conc.Build[Event](conc.NewUnbounded().SingleConsumer())             // → unbounded MPSC
//
// All queue operations are non-blocking. Enqueue on a full bounded
// queue and Dequeue on an empty queue return [ErrWouldBlock], a
// control flow signal sourced from [code.hybscloud.com/iox]:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Enqueue(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if conc.IsWouldBlock(err) {
//	        backoff.Wait() // adaptive backpressure
//	        continue
//	    }
//	    return err
//	}
//
// Bounded capacity rounds up to the next power of 2; minimum capacity
// is 2 and constructors panic below it. Violating a queue's access
// class (two producers on SPSC, ...) is undefined behavior.
//
// # Wait primitives
//
// [Gate] blocks all waiters while closed and releases them together on
// Open. [Latch] blocks waiters until its counter reaches zero, and
// re-arms if posted again afterwards. [Semaphore] is a counting
// semaphore whose Post hands permits directly to queued waiters.
//
// Every timed wait (WaitFor, WaitForThenDecrement) takes a relative
// patience, runs against the monotonic clock, and reports timeout as
// false. The clock is injectable via WithClock for tests:
//
//	sem := conc.NewSemaphore(0).WithClock(fakeClock)
//
// # Buffers
//
// [RingBuffer] and [ShiftBuffer] are single-owner FIFO buffers for
// batched item transfer: Write copies in, Shove moves in, Read moves
// out. They are not safe for concurrent use; use the queues for
// cross-goroutine transfer.
//
// # Thread pool
//
// [ThreadPool] keeps a minimum set of worker threads alive, grows
// lazily toward a maximum under load, and shrinks back after idling.
// [Submit] schedules a callable and returns a one-shot [Future]:
//
//	pool, _ := conc.NewThreadPool(2, 8)
//	defer pool.Close()
//
//	f := conc.Submit(pool, func() int { return compute() })
//	result, err := f.Get()
//
// A panic inside the callable is captured into the Future as a
// [*PanicError]; the worker thread survives. Closing the pool destroys
// every task still queued without running it and resolves its Future
// with [ErrBrokenPromise] — a Future never hangs.
//
// Workers are goroutines locked to OS threads, so per-thread facilities
// remain meaningful: [BelongsToThreadPool] reports whether the caller
// is a pool worker, [CurrentThreadID] identifies the thread, and the
// CPU affinity mask of the current or another thread can be read and
// written where the platform allows it.
//
// # Error handling
//
// The queues and primitives never log and never print; all signalling
// is through return values or the Future. [ErrWouldBlock] and timeout
// (false) are control flow, not failures. See [IsWouldBlock],
// [IsBrokenPromise], [IsNonFailure].
//
// # Race detection
//
// Go's race detector cannot observe happens-before relationships
// established through atomic memory orderings on separate variables,
// and reports false positives for the lock-free queues. Concurrency
// tests for those variants are excluded via //go:build !race; see
// RaceEnabled.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/spin] for CPU
// pause instructions, [code.hybscloud.com/iox] for semantic errors,
// github.com/zoobzio/clockz for injectable monotonic clocks, and
// github.com/zoobzio/metricz / hookz for thread pool observability.
package conc
