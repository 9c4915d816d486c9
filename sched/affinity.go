package sched

import "sync/atomic"

// AtomicCPU records which processor a runnable unit is currently assigned
// to, or "unassigned". It is a single-writer-wins slot: once set, only the
// processor that dequeues the unit may clear it, which makes CPU stickiness
// race-safe when multiple wake events race to enqueue the same unit.
//
// The id is stored shifted by one so the zero value is unassigned.
type AtomicCPU struct {
	v atomic.Uint32
}

// SetIfNone assigns cpu to the cell only if it is currently unassigned.
// It returns the cell's assignment after the attempt: (cpu, true) when the
// claim succeeded, or (existing, false) when another processor already owns
// the unit.
func (c *AtomicCPU) SetIfNone(cpu int) (int, bool) {
	for {
		if c.v.CompareAndSwap(0, uint32(cpu)+1) {
			return cpu, true
		}
		if cur := c.v.Load(); cur != 0 {
			return int(cur - 1), false
		}
		// The owner cleared the cell between the swap and the load; retry.
	}
}

// SetToNone clears the assignment. Only the processor currently dequeuing
// the unit may call this.
func (c *AtomicCPU) SetToNone() {
	c.v.Store(0)
}

// Get returns the current assignment, or (-1, false) when unassigned.
func (c *AtomicCPU) Get() (int, bool) {
	cur := c.v.Load()
	if cur == 0 {
		return -1, false
	}
	return int(cur - 1), true
}
