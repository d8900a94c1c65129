//go:build !linux

package rt

// pinThread is a no-op on platforms without sched_setaffinity(2).
func pinThread(pe int) {}
