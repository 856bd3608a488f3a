// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

import (
	"time"

	"github.com/cornelk/hashmap"
)

// poolThreadIDs is the process-wide set of OS threads currently locked
// by live pool workers. Backs BelongsToThreadPool.
var poolThreadIDs = hashmap.New[uint64, struct{}]()

// Sleep suspends the calling goroutine for at least d of monotonic
// time. It never returns early and is insensitive to wall-clock
// adjustments during the call.
func Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d) // carries a monotonic reading
	for {
		time.Sleep(d)
		d = time.Until(deadline)
		if d <= 0 {
			return
		}
	}
}

// BelongsToThreadPool reports whether the caller runs on a thread pool
// worker. Workers lock their goroutine to an OS thread for their whole
// lifetime, so the goroutine-to-thread binding is stable.
func BelongsToThreadPool() bool {
	_, ok := poolThreadIDs.Get(CurrentThreadID())
	return ok
}

// registerPoolThread records the calling worker's OS thread id.
// Returns the id for later unregistration.
func registerPoolThread() uint64 {
	tid := CurrentThreadID()
	if tid != 0 {
		poolThreadIDs.Set(tid, struct{}{})
	}
	return tid
}

func unregisterPoolThread(tid uint64) {
	if tid != 0 {
		poolThreadIDs.Del(tid)
	}
}

// CPUMask is a bit mask over the first 64 logical CPUs. Bit i set
// means the thread may run on CPU i.
type CPUMask uint64

// AllCPUs is the mask covering every CPU. It is also the sentinel
// reported on systems with more logical CPUs than the mask can
// express, and on platforms without affinity support.
const AllCPUs = CPUMask(^uint64(0))

// GetCPUAffinityMask returns the affinity mask of the calling thread.
// Lock the goroutine with runtime.LockOSThread first for a meaningful
// per-thread answer.
func GetCPUAffinityMask() (CPUMask, error) {
	return getAffinity(0)
}

// SetCPUAffinityMask restricts the calling thread to the CPUs in mask.
// Returns ErrAffinityNotSupported when the OS or hardware forbids the
// requested mask; callers may fall back to [AllCPUs].
func SetCPUAffinityMask(mask CPUMask) error {
	return setAffinity(0, mask)
}

// GetThreadCPUAffinityMask returns the affinity mask of the thread
// identified by tid.
func GetThreadCPUAffinityMask(tid uint64) (CPUMask, error) {
	return getAffinity(int(tid))
}

// SetThreadCPUAffinityMask restricts the thread identified by tid to
// the CPUs in mask.
func SetThreadCPUAffinityMask(tid uint64, mask CPUMask) error {
	return setAffinity(int(tid), mask)
}
