//go:build linux

package rt

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinThread pins the calling OS thread to one logical CPU. PE ids beyond
// the CPU count wrap around. Errors are swallowed: under cgroup or
// container restrictions the call may fail with EPERM, and the fallback is
// simply no pinning.
func pinThread(pe int) {
	ncpu := runtime.NumCPU()
	if ncpu <= 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(pe % ncpu)
	_ = unix.SchedSetaffinity(0, &set)
}
