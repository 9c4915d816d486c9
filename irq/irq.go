// Package irq models per-processor interrupt masking for a fixed set of
// processors, together with the irq-disabling lock the run queues are
// guarded by. Tick sources must check Enabled before delivering a tick to a
// processor; a masked processor's ticks are lost, matching a disabled timer
// interrupt line.
package irq

import (
	"sync"
	"sync/atomic"
)

// Controller tracks the interrupt mask depth of each processor. Masking
// nests: a processor is enabled only when its depth is zero. Out-of-range
// processor ids (callers running on unmanaged OS threads) are treated as
// permanently enabled no-ops.
type Controller struct {
	depth []atomic.Int32
}

// NewController creates a controller for nrCPUs processors, all enabled.
func NewController(nrCPUs int) *Controller {
	return &Controller{depth: make([]atomic.Int32, nrCPUs)}
}

// DisableLocal masks interrupts on the given processor.
func (c *Controller) DisableLocal(cpu int) {
	if c == nil || cpu < 0 || cpu >= len(c.depth) {
		return
	}
	c.depth[cpu].Add(1)
}

// EnableLocal undoes one DisableLocal on the given processor.
func (c *Controller) EnableLocal(cpu int) {
	if c == nil || cpu < 0 || cpu >= len(c.depth) {
		return
	}
	c.depth[cpu].Add(-1)
}

// Enabled reports whether interrupts may be delivered to the processor.
func (c *Controller) Enabled(cpu int) bool {
	if c == nil || cpu < 0 || cpu >= len(c.depth) {
		return true
	}
	return c.depth[cpu].Load() == 0
}

// SpinLock is the mutual-exclusion lock guarding one run queue. Acquiring
// it with LockIrqDisabled masks the calling processor's interrupts for the
// whole critical section, so the tick handler on that processor cannot
// reenter the lock while it is held.
type SpinLock struct {
	mu sync.Mutex
}

// Guard releases the lock and restores the caller's interrupt mask.
type Guard struct {
	l   *SpinLock
	c   *Controller
	cpu int
}

// LockIrqDisabled masks interrupts on localCPU (the processor making the
// call, which need not be the processor owning the lock) and acquires the
// lock. The returned guard must be unlocked on the same goroutine.
func (l *SpinLock) LockIrqDisabled(c *Controller, localCPU int) Guard {
	c.DisableLocal(localCPU)
	l.mu.Lock()
	return Guard{l: l, c: c, cpu: localCPU}
}

// Unlock releases the lock and unmasks the caller's interrupts.
func (g Guard) Unlock() {
	g.l.mu.Unlock()
	g.c.EnableLocal(g.cpu)
}
