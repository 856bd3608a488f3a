// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build windows

package conc

import "golang.org/x/sys/windows"

// CurrentThreadID returns the OS thread id of the calling thread.
// Lock the goroutine with runtime.LockOSThread when the id must stay
// meaningful beyond the call.
func CurrentThreadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}

func getAffinity(_ int) (CPUMask, error) {
	return AllCPUs, nil
}

func setAffinity(_ int, _ CPUMask) error {
	return ErrAffinityNotSupported
}
