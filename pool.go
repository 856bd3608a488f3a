// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
)

const (
	// workerHeartBeat is how long an idle worker sleeps on the task
	// semaphore before checking shutdown and idle-exit conditions.
	// Workers are woken immediately through the semaphore when work
	// arrives; the heart beat only matters while idle.
	workerHeartBeat = 50 * time.Millisecond

	// idleShutDownHeartBeats is the number of consecutive idle heart
	// beats after which a worker above the minimum exits voluntarily.
	idleShutDownHeartBeats = 10

	// shutdownPatience bounds how long Close waits for workers to exit.
	shutdownPatience = 5 * time.Second
)

// Worker slot states. A slot is reserved by a CAS from Empty or Dead
// to Starting before the worker goroutine spawns.
const (
	workerEmpty uint64 = iota
	workerStarting
	workerRunning
	workerShuttingDown
	workerDead
)

// Metric keys exposed through [ThreadPool.Metrics].
const (
	PoolTasksScheduled = metricz.Key("conc.pool.tasks.scheduled")
	PoolTasksExecuted  = metricz.Key("conc.pool.tasks.executed")
	PoolTasksCancelled = metricz.Key("conc.pool.tasks.cancelled")
	PoolTasksPanicked  = metricz.Key("conc.pool.tasks.panicked")
	PoolWorkersLive    = metricz.Key("conc.pool.workers.live")
	PoolTasksPending   = metricz.Key("conc.pool.tasks.pending")
)

// Hook keys for pool lifecycle events.
const (
	PoolEventWorkerStart   = hookz.Key("pool.worker.start")
	PoolEventWorkerExit    = hookz.Key("pool.worker.exit")
	PoolEventTaskDone      = hookz.Key("pool.task.done")
	PoolEventTaskCancelled = hookz.Key("pool.task.cancelled")
)

// PoolEvent is emitted through hookz on worker and task lifecycle
// transitions.
type PoolEvent struct {
	// WorkerIndex is the worker's slot index, or -1 for task events
	// raised outside a worker.
	WorkerIndex int
	// ThreadID is the worker's OS thread id (0 where unavailable).
	ThreadID uint64
	// Timestamp is the pool clock's time of the event.
	Timestamp time.Time
	// Err is nil in every event the pool emits: a task's panic is not
	// reported here and reaches the caller only through its Future as a
	// [*PanicError].
	Err error
}

// ThreadPool distributes tasks to a bounded set of worker threads.
//
// Workers are goroutines locked to OS threads. A minimum set is
// spawned up front and stays alive; the pool lazily grows toward the
// maximum under load and shrinks back when workers stay idle. Tasks
// enter through [Submit] (or [ThreadPool.Go]) and flow through an
// unbounded MPMC queue; one semaphore permit per task lets one worker
// through to claim it.
//
// Closing the pool cancels every task still in the queue without
// running it; tasks already executing finish first. Each cancelled
// task's Future resolves with ErrBrokenPromise, so no handle ever
// hangs.
type ThreadPool struct {
	minWorkers int
	maxWorkers int

	_           pad
	workerCount atomix.Int64 // live workers
	_           pad
	taskCount   atomix.Int64 // tasks scheduled but not yet claimed
	_           pad
	shuttingDown atomix.Bool
	_            pad

	tasks         *UnboundedMPMC[*taskSlot]
	taskSemaphore *Semaphore
	lightsOut     *Latch // reaches zero iff every worker has exited
	slots         *slotPool
	workerStatus  []atomix.Uint64

	clock   clockz.Clock
	metrics *metricz.Registry
	hooks   *hookz.Hooks[PoolEvent]

	closeOnce sync.Once
	closeErr  error
}

// DefaultMinWorkers guesses a good number of workers to keep alive:
// 2 for six cores or less, 4 for fourteen cores or less, and the
// rounded square root of the core count above that.
func DefaultMinWorkers() int {
	root := int(math.Sqrt(float64(runtime.NumCPU())) + 0.5)
	switch {
	case root >= 4:
		return root
	case root >= 3:
		return 4
	default:
		return 2
	}
}

// DefaultMaxWorkers guesses a good worker ceiling: the core count plus
// [DefaultMinWorkers], so finished workers leave schedulable threads
// for every core while user code reacts to results.
func DefaultMaxWorkers() int {
	return runtime.NumCPU() + DefaultMinWorkers()
}

// NewThreadPool creates a pool that keeps minWorkers threads alive and
// grows up to maxWorkers under load. Returns ErrInvalidConfig when
// either bound is zero or minWorkers exceeds maxWorkers.
func NewThreadPool(minWorkers, maxWorkers int) (*ThreadPool, error) {
	if minWorkers < 1 || maxWorkers < 1 || minWorkers > maxWorkers {
		return nil, fmt.Errorf("%w: min=%d, max=%d", ErrInvalidConfig, minWorkers, maxWorkers)
	}

	metrics := metricz.New()
	metrics.Counter(PoolTasksScheduled)
	metrics.Counter(PoolTasksExecuted)
	metrics.Counter(PoolTasksCancelled)
	metrics.Counter(PoolTasksPanicked)
	metrics.Gauge(PoolWorkersLive)
	metrics.Gauge(PoolTasksPending)

	p := &ThreadPool{
		minWorkers:    minWorkers,
		maxWorkers:    maxWorkers,
		tasks:         NewUnboundedMPMC[*taskSlot](),
		taskSemaphore: NewSemaphore(0),
		lightsOut:     NewLatch(0),
		slots:         newSlotPool(),
		workerStatus:  make([]atomix.Uint64, maxWorkers),
		metrics:       metrics,
		hooks:         hookz.New[PoolEvent](),
	}

	for i := 0; i < minWorkers; i++ {
		p.addWorker()
	}
	return p, nil
}

// NewDefaultThreadPool creates a pool with the platform-derived
// default worker bounds.
func NewDefaultThreadPool() *ThreadPool {
	p, err := NewThreadPool(DefaultMinWorkers(), DefaultMaxWorkers())
	if err != nil {
		panic(err) // unreachable: the defaults are always valid
	}
	return p
}

// WithClock sets the clock used for heart beats, timed waits and event
// timestamps. Defaults to the real clock; tests can install a fake.
func (p *ThreadPool) WithClock(clock clockz.Clock) *ThreadPool {
	p.clock = clock
	p.taskSemaphore.WithClock(clock)
	p.lightsOut.WithClock(clock)
	return p
}

func (p *ThreadPool) getClock() clockz.Clock {
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

// Metrics returns the pool's metric registry.
func (p *ThreadPool) Metrics() *metricz.Registry {
	return p.metrics
}

// OnWorkerStart registers a hook invoked when a worker begins running.
func (p *ThreadPool) OnWorkerStart(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventWorkerStart, handler)
	return err
}

// OnWorkerExit registers a hook invoked when a worker exits.
func (p *ThreadPool) OnWorkerExit(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventWorkerExit, handler)
	return err
}

// OnTaskDone registers a hook invoked after each executed task.
func (p *ThreadPool) OnTaskDone(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventTaskDone, handler)
	return err
}

// OnTaskCancelled registers a hook invoked for each task destroyed at
// shutdown without execution.
func (p *ThreadPool) OnTaskCancelled(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventTaskCancelled, handler)
	return err
}

func (p *ThreadPool) emit(key hookz.Key, ev PoolEvent) {
	ev.Timestamp = p.getClock().Now()
	_ = p.hooks.Emit(context.Background(), key, ev) //nolint:errcheck // observers must not fail the pool
}

// taskPayloadSize declares the footprint of a bound callable of result
// type R: the callable word, the future pointer, and the result value.
// It gates slot recycling against the reuse limit.
func taskPayloadSize[R any]() uintptr {
	var zero R
	return unsafe.Sizeof(zero) + 2*uintptr(ptrSize)
}

// Submit schedules fn on a worker thread and returns its completion
// handle. It never blocks and returns before fn runs.
//
// A panic inside fn is captured into the Future as a [*PanicError];
// the worker keeps running. When the pool is closing or closed, the
// Future resolves ErrBrokenPromise and fn is never invoked.
func Submit[R any](p *ThreadPool, fn func() R) *Future[R] {
	f := newFuture[R](p.getClock())
	p.metrics.Counter(PoolTasksScheduled).Inc()

	if p.shuttingDown.LoadAcquire() {
		p.metrics.Counter(PoolTasksCancelled).Inc()
		f.fail(ErrBrokenPromise)
		return f
	}

	s := p.slots.acquire(taskPayloadSize[R]())
	s.invoke = func() {
		defer func() {
			if r := recover(); r != nil {
				p.metrics.Counter(PoolTasksPanicked).Inc()
				f.fail(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		f.resolve(fn())
	}
	s.cancel = func() {
		f.fail(ErrBrokenPromise)
	}

	p.submit(s)
	return f
}

// Go schedules fn without a result. The task still participates in
// cancellation accounting; only the completion handle is dropped.
func (p *ThreadPool) Go(fn func()) {
	_ = Submit(p, func() struct{} {
		fn()
		return struct{}{}
	})
}

func (p *ThreadPool) submit(s *taskSlot) {
	_ = p.tasks.Enqueue(&s) //nolint:errcheck // unbounded enqueue cannot fail
	pending := p.taskCount.Add(1)
	p.metrics.Gauge(PoolTasksPending).Set(float64(pending))

	// Wake up a worker (or keep the next finishing worker awake).
	p.taskSemaphore.Post(1)

	// Close may have raced past the enqueue above; make sure nothing
	// is left behind unresolved.
	if p.shuttingDown.LoadAcquire() {
		p.cancelRemainingTasks()
	}
}

// addWorker reserves a free worker slot via CAS and spawns a worker in
// it. Returns false when the pool is shutting down or full.
func (p *ThreadPool) addWorker() bool {
	if p.shuttingDown.LoadAcquire() {
		return false
	}
	for index := range p.workerStatus {
		status := p.workerStatus[index].LoadAcquire()
		if status != workerEmpty && status != workerDead {
			continue
		}
		if !p.workerStatus[index].CompareAndSwapAcqRel(status, workerStarting) {
			continue // another thread took the slot
		}
		live := p.workerCount.Add(1)
		p.metrics.Gauge(PoolWorkersLive).Set(float64(live))
		p.lightsOut.Post(1)
		go p.runWorker(index)
		return true
	}
	return false
}

// runWorker is the body of one worker thread.
func (p *ThreadPool) runWorker(index int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid := registerPoolThread()
	p.workerStatus[index].StoreRelease(workerRunning)
	p.emit(PoolEventWorkerStart, PoolEvent{WorkerIndex: index, ThreadID: tid})

	// departed is set when the idle path has already given up this
	// worker's count; the exit path must not decrement twice.
	departed := false
	defer func() {
		unregisterPoolThread(tid)
		p.workerStatus[index].StoreRelease(workerDead)
		live := p.workerCount.Load()
		if !departed {
			live = p.workerCount.Add(-1)
		}
		p.metrics.Gauge(PoolWorkersLive).Set(float64(live))
		p.emit(PoolEventWorkerExit, PoolEvent{WorkerIndex: index, ThreadID: tid})
		p.lightsOut.CountDown(1)
	}()

	idleHeartBeats := 0
	for {
		if p.shuttingDown.LoadAcquire() {
			p.workerStatus[index].StoreRelease(workerShuttingDown)
			p.cancelRemainingTasks()
			return
		}

		// One permit per scheduled task lets one worker through.
		// The timeout is the idle heart beat.
		woken := p.taskSemaphore.WaitForThenDecrement(workerHeartBeat)
		if !woken {
			idleHeartBeats++
			if idleHeartBeats > idleShutDownHeartBeats {
				if p.tryRetire() {
					p.workerStatus[index].StoreRelease(workerShuttingDown)
					departed = true
					return
				}
				idleHeartBeats = idleShutDownHeartBeats
			}
		}

		// Lazy growth: when tasks outnumber the live workers and the
		// pool has room, spawn another worker.
		live := p.workerCount.Load()
		if int(live) < p.maxWorkers && p.taskCount.Load() > live+1 {
			p.addWorker()
		}

		slot, err := p.tasks.Dequeue()
		if err != nil {
			continue
		}
		pending := p.taskCount.Add(-1)
		p.metrics.Gauge(PoolTasksPending).Set(float64(pending))

		// A worker that has observed the shutdown flag cancels rather
		// than executes anything it dequeues afterwards.
		if p.shuttingDown.LoadAcquire() {
			p.cancelSlot(slot, index, tid)
			continue
		}

		idleHeartBeats = 0
		slot.invoke()
		p.metrics.Counter(PoolTasksExecuted).Inc()
		p.emit(PoolEventTaskDone, PoolEvent{WorkerIndex: index, ThreadID: tid})
		p.slots.release(slot)
	}
}

// tryRetire gives up this worker's count if the pool stays at or above
// the minimum. The decrement is speculative and restored on failure,
// matching the reservation the status byte cannot express.
func (p *ThreadPool) tryRetire() bool {
	old := p.workerCount.Add(-1) + 1
	if old > int64(p.minWorkers) {
		return true
	}
	p.workerCount.Add(1)
	return false
}

// cancelSlot destroys one task without invoking it. Its future
// resolves ErrBrokenPromise. The slot is not recycled: cancellation
// only happens on the way down.
func (p *ThreadPool) cancelSlot(s *taskSlot, workerIndex int, tid uint64) {
	s.cancel()
	s.clear()
	p.metrics.Counter(PoolTasksCancelled).Inc()
	p.emit(PoolEventTaskCancelled, PoolEvent{WorkerIndex: workerIndex, ThreadID: tid})
}

// cancelRemainingTasks fast-forwards through the queue, destroying
// every task without invocation.
func (p *ThreadPool) cancelRemainingTasks() {
	for {
		slot, err := p.tasks.Dequeue()
		if err != nil {
			return
		}
		pending := p.taskCount.Add(-1)
		p.metrics.Gauge(PoolTasksPending).Set(float64(pending))
		p.cancelSlot(slot, -1, 0)
	}
}

// Close shuts the pool down: no new workers spawn, every worker is
// woken, tasks still queued are destroyed through the cancel path, and
// their futures resolve ErrBrokenPromise. Tasks already executing
// finish first. Close waits up to five seconds for the workers and
// returns ErrShutdownTimeout if any are still stuck in user code.
// Close is idempotent.
func (p *ThreadPool) Close() error {
	p.closeOnce.Do(func() {
		p.shuttingDown.StoreRelease(true)

		// One wake-up per possible worker; each sees the flag and
		// refuses to wait on the semaphore again.
		p.taskSemaphore.Post(uint(p.maxWorkers))

		if !p.lightsOut.WaitFor(shutdownPatience) {
			p.closeErr = ErrShutdownTimeout
		}

		// Workers drain on their way out; this catches tasks that
		// raced in after the last worker left.
		p.cancelRemainingTasks()
		p.slots.drain()
		p.hooks.Close()
	})
	return p.closeErr
}
