// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux && !windows

package conc

// CurrentThreadID returns 0: the platform exposes no stable thread id
// to user code. BelongsToThreadPool reports false on such platforms.
func CurrentThreadID() uint64 {
	return 0
}

func getAffinity(_ int) (CPUMask, error) {
	return AllCPUs, nil
}

func setAffinity(_ int, _ CPUMask) error {
	return ErrAffinityNotSupported
}
