// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/conc"
)

// TestThreadPoolComputesResult schedules a compute task and reads its
// result through the completion handle.
func TestThreadPoolComputesResult(t *testing.T) {
	pool, err := conc.NewThreadPool(2, 4)
	require.NoError(t, err)
	defer pool.Close()

	f := conc.Submit(pool, func() int {
		a, b := 12, 34
		return a*b - a - b
	})

	result, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 362, result)
}

// TestThreadPoolInvalidConfig rejects zero or inverted worker bounds.
func TestThreadPoolInvalidConfig(t *testing.T) {
	for _, bounds := range [][2]int{{0, 1}, {1, 0}, {0, 0}, {4, 2}} {
		_, err := conc.NewThreadPool(bounds[0], bounds[1])
		require.ErrorIs(t, err, conc.ErrInvalidConfig, "bounds %v", bounds)
	}
}

// TestThreadPoolDefaults sanity-checks the platform-derived bounds.
func TestThreadPoolDefaults(t *testing.T) {
	minWorkers := conc.DefaultMinWorkers()
	maxWorkers := conc.DefaultMaxWorkers()
	require.GreaterOrEqual(t, minWorkers, 2)
	require.Greater(t, maxWorkers, minWorkers)

	pool := conc.NewDefaultThreadPool()
	require.NoError(t, pool.Close())
}

// TestThreadPoolPanicSurfaces routes a panic in the callable through
// the completion handle without killing the worker.
func TestThreadPoolPanicSurfaces(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 1)
	require.NoError(t, err)
	defer pool.Close()

	f := conc.Submit(pool, func() int {
		panic("underflow")
	})

	_, err = f.Get()
	var pe *conc.PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "underflow", pe.Value)
	require.NotEmpty(t, pe.Stack)

	// The worker survived the panic and keeps executing tasks.
	g := conc.Submit(pool, func() int { return 7 })
	result, err := g.Get()
	require.NoError(t, err)
	require.Equal(t, 7, result)
}

// TestThreadPoolShutdownCancelsQueuedTasks destroys the pool while a
// sleep task occupies the only worker; the queued compute task must
// resolve ErrBrokenPromise and never run.
func TestThreadPoolShutdownCancelsQueuedTasks(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 1)
	require.NoError(t, err)

	sleeper := conc.Submit(pool, func() struct{} {
		conc.Sleep(100 * time.Millisecond)
		return struct{}{}
	})

	// Make sure the worker has claimed the sleeper before the compute
	// task is queued behind it.
	time.Sleep(20 * time.Millisecond)

	compute := conc.Submit(pool, func() int {
		a, b := 12, 34
		return a*b - a - b
	})

	require.NoError(t, pool.Close())

	_, err = compute.Get()
	require.ErrorIs(t, err, conc.ErrBrokenPromise)
	require.True(t, conc.IsBrokenPromise(err))

	// The in-flight sleeper was allowed to finish.
	_, err = sleeper.Get()
	require.NoError(t, err)
}

// TestThreadPoolNoFutureEverHangs floods a small pool, closes it
// mid-flight and requires every handle to resolve one way or the
// other.
func TestThreadPoolNoFutureEverHangs(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 2)
	require.NoError(t, err)

	var executed atomix.Int64
	futures := make([]*conc.Future[int], 0, 200)
	for i := range 200 {
		futures = append(futures, conc.Submit(pool, func() int {
			executed.Add(1)
			return i
		}))
	}

	require.NoError(t, pool.Close())

	resolved := make(chan struct{})
	go func() {
		for _, f := range futures {
			_, _ = f.Get()
		}
		close(resolved)
	}()

	select {
	case <-resolved:
	case <-time.After(10 * time.Second):
		t.Fatalf("a future hung after Close")
	}

	// Every future resolved to exactly one of the two outcomes.
	broken := 0
	for _, f := range futures {
		_, err := f.Get()
		if err != nil {
			require.ErrorIs(t, err, conc.ErrBrokenPromise)
			broken++
		}
	}
	require.Equal(t, int64(len(futures)-broken), executed.Load())
}

// TestThreadPoolSubmitAfterClose resolves ErrBrokenPromise immediately.
func TestThreadPoolSubmitAfterClose(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 1)
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	ran := false
	f := conc.Submit(pool, func() int {
		ran = true
		return 1
	})

	_, err = f.Get()
	require.ErrorIs(t, err, conc.ErrBrokenPromise)
	require.False(t, ran)
}

// TestThreadPoolGrowsUnderLoad checks lazy growth: a pool with one
// base worker spawns more when tasks outnumber the live workers.
func TestThreadPoolGrowsUnderLoad(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 4)
	require.NoError(t, err)
	defer pool.Close()

	var started atomix.Int64
	require.NoError(t, pool.OnWorkerStart(func(context.Context, conc.PoolEvent) error {
		started.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	wg.Add(12)
	for range 12 {
		pool.Go(func() {
			defer wg.Done()
			conc.Sleep(100 * time.Millisecond)
		})
	}
	wg.Wait()

	require.Greater(t, started.Load(), int64(0), "grown workers fire the start hook")
}

// TestThreadPoolGo runs fire-and-forget tasks.
func TestThreadPoolGo(t *testing.T) {
	pool, err := conc.NewThreadPool(2, 4)
	require.NoError(t, err)
	defer pool.Close()

	var wg sync.WaitGroup
	var sum atomix.Int64
	wg.Add(10)
	for i := 1; i <= 10; i++ {
		pool.Go(func() {
			defer wg.Done()
			sum.Add(int64(i))
		})
	}
	wg.Wait()
	require.Equal(t, int64(55), sum.Load())
}

// TestThreadPoolWorkerThreadIdentity verifies pool membership and
// thread ids as seen from inside and outside a task.
func TestThreadPoolWorkerThreadIdentity(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 1)
	require.NoError(t, err)
	defer pool.Close()

	require.False(t, conc.BelongsToThreadPool())

	type identity struct {
		belongs bool
		tid     uint64
	}
	f := conc.Submit(pool, func() identity {
		return identity{belongs: conc.BelongsToThreadPool(), tid: conc.CurrentThreadID()}
	})
	id, err := f.Get()
	require.NoError(t, err)

	if id.tid == 0 {
		t.Skip("platform exposes no thread id")
	}
	require.True(t, id.belongs)
	require.NotEqual(t, conc.CurrentThreadID(), id.tid)
}

// TestThreadPoolTaskHooks observes done and cancelled task events.
func TestThreadPoolTaskHooks(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 1)
	require.NoError(t, err)

	var done, cancelled atomix.Int64
	require.NoError(t, pool.OnTaskDone(func(context.Context, conc.PoolEvent) error {
		done.Add(1)
		return nil
	}))
	require.NoError(t, pool.OnTaskCancelled(func(context.Context, conc.PoolEvent) error {
		cancelled.Add(1)
		return nil
	}))

	f := conc.Submit(pool, func() int { return 1 })
	_, err = f.Get()
	require.NoError(t, err)

	blocker := conc.Submit(pool, func() struct{} {
		conc.Sleep(50 * time.Millisecond)
		return struct{}{}
	})
	time.Sleep(10 * time.Millisecond)
	victim := conc.Submit(pool, func() int { return 2 })

	require.NoError(t, pool.Close())
	_, _ = blocker.Get()
	_, err = victim.Get()

	require.GreaterOrEqual(t, done.Load(), int64(1))
	if errors.Is(err, conc.ErrBrokenPromise) {
		require.GreaterOrEqual(t, cancelled.Load(), int64(1))
	}
}

// TestFutureGetFor probes a handle before and after resolution.
func TestFutureGetFor(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 1)
	require.NoError(t, err)
	defer pool.Close()

	release := make(chan struct{})
	f := conc.Submit(pool, func() int {
		<-release
		return 42
	})

	_, ok, err := f.GetFor(20 * time.Millisecond)
	require.False(t, ok)
	require.NoError(t, err)

	close(release)
	<-f.Done()

	result, ok, err := f.GetFor(time.Second)
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

// TestThreadPoolCloseIdempotent calls Close twice.
func TestThreadPoolCloseIdempotent(t *testing.T) {
	pool, err := conc.NewThreadPool(1, 2)
	require.NoError(t, err)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
}
