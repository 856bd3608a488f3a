// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package conc

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// CurrentThreadID returns the OS thread id of the calling thread.
// Lock the goroutine with runtime.LockOSThread when the id must stay
// meaningful beyond the call.
func CurrentThreadID() uint64 {
	return uint64(unix.Gettid())
}

func getAffinity(tid int) (CPUMask, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(tid, &set); err != nil {
		return 0, fmt.Errorf("conc: sched_getaffinity: %w", err)
	}
	if runtime.NumCPU() > 64 {
		return AllCPUs, nil
	}
	var mask CPUMask
	for cpu := 0; cpu < 64; cpu++ {
		if set.IsSet(cpu) {
			mask |= 1 << cpu
		}
	}
	return mask, nil
}

func setAffinity(tid int, mask CPUMask) error {
	var set unix.CPUSet
	set.Zero()
	for cpu := 0; cpu < 64; cpu++ {
		if mask&(1<<cpu) != 0 {
			set.Set(cpu)
		}
	}
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EPERM) {
			return fmt.Errorf("%w: %v", ErrAffinityNotSupported, err)
		}
		return fmt.Errorf("conc: sched_setaffinity: %w", err)
	}
	return nil
}
