//go:build linux

package cpu

import "golang.org/x/sys/unix"

// Current returns the logical CPU the calling thread is executing on, or 0
// when the kernel cannot say.
func Current() int {
	c, _, err := unix.Getcpu()
	if err != nil {
		return 0
	}
	return c
}

// Pin pins the calling OS thread to a single logical CPU. Callers must hold
// runtime.LockOSThread for the pin to mean anything. On cgroup-restricted
// systems the call may fail with EPERM or EINVAL; the thread simply stays
// unpinned.
func Pin(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
