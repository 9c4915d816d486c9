//go:build !linux

package cpu

// Current returns 0 on platforms without a current-CPU query.
func Current() int {
	return 0
}

// Pin is a no-op on platforms without thread affinity syscalls.
func Pin(cpuID int) error {
	return nil
}
