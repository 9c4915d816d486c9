// Package sched defines the boundary between the preemptive scheduler core
// and the runnable-unit abstraction. The scheduler only sees units through
// the Runnable interface, so the core can be exercised with lightweight mock
// units in tests.
package sched

// Priority is a runnable unit's static priority. Lower values mean higher
// priority; values below RealTimeThreshold place the unit in the real-time
// class.
type Priority uint16

// RealTimeThreshold separates the real-time class from the normal class.
const RealTimeThreshold Priority = 100

// IsRealTime reports whether p falls in the real-time class.
func (p Priority) IsRealTime() bool {
	return p < RealTimeThreshold
}

// EnqueueFlags tells Enqueue how the unit entered the runnable state.
type EnqueueFlags uint8

const (
	// EnqueueSpawn admits a freshly created unit. The unit's affinity cell
	// must be unassigned.
	EnqueueSpawn EnqueueFlags = iota
	// EnqueueWake re-admits a unit that blocked or yielded earlier. The unit
	// may still carry the affinity of the queue that last owned it.
	EnqueueWake
)

func (f EnqueueFlags) String() string {
	switch f {
	case EnqueueSpawn:
		return "spawn"
	case EnqueueWake:
		return "wake"
	default:
		return "unknown"
	}
}

// UpdateFlags tells UpdateCurrent why it is being called. Only UpdateTick is
// a conditional check; every other value forces a resched.
type UpdateFlags uint8

const (
	// UpdateTick is a periodic timer tick on the owning processor.
	UpdateTick UpdateFlags = iota
	// UpdateYield is an explicit yield by the current unit.
	UpdateYield
	// UpdateWait means the current unit is about to block.
	UpdateWait
	// UpdateExit means the current unit is terminating.
	UpdateExit
)

func (f UpdateFlags) String() string {
	switch f {
	case UpdateTick:
		return "tick"
	case UpdateYield:
		return "yield"
	case UpdateWait:
		return "wait"
	case UpdateExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Runnable is the scheduler's view of a schedulable unit. Implementations
// must be safe for shared ownership: a queue, the spawner, and wakers may
// all hold the same handle, and the affinity cell is the single source of
// truth for which run queue owns scheduling rights.
type Runnable interface {
	// Priority returns the unit's static priority.
	Priority() Priority
	// CPU returns the unit's affinity cell.
	CPU() *AtomicCPU
}

// LocalRunQueue is the dispatch-side view of one processor's run queue.
// All methods must be called with the queue's lock held; the scheduler's
// local accessor arranges that. A single locked view serves both the
// read-only and the mutating dispatch operations.
type LocalRunQueue interface {
	// Current returns the unit occupying the processor, or nil when idle.
	Current() Runnable

	// UpdateCurrent reports whether a resched (PickNextCurrent call) is
	// warranted. For UpdateTick this is true iff the current unit's quantum
	// just expired or a real-time unit is waiting behind a normal-class
	// current. Any other flag value forces true. Preemption of normal work
	// by real-time arrivals is therefore detected at tick granularity, not
	// at enqueue time.
	UpdateCurrent(flags UpdateFlags) bool

	// PickNextCurrent promotes the next waiting unit to current, preferring
	// the real-time FIFO, and pushes the previous current (if any) to the
	// tail of its own class. Returns nil when both FIFOs are empty, leaving
	// the queue untouched; the caller must idle.
	PickNextCurrent() Runnable

	// DequeueCurrent removes and returns the current unit, clearing its
	// affinity cell, or nil when the processor is idle. Used when the
	// current unit blocks or exits.
	DequeueCurrent() Runnable
}

// Scheduler is the global entry point surface of the scheduler core.
type Scheduler interface {
	// Enqueue admits a runnable unit into exactly one processor's run queue
	// and returns the processor id it was placed on. ok is false when a
	// concurrent affinity race invalidated the attempt; the caller must not
	// assume the unit was admitted.
	Enqueue(r Runnable, flags EnqueueFlags) (cpu int, ok bool)

	// LocalRunQueueWith grants f exclusive access to the given processor's
	// run queue. The cpu argument must identify the processor making the
	// call; the dispatch loop and the tick handler of a processor are the
	// only legitimate callers for that processor's queue.
	LocalRunQueueWith(cpu int, f func(rq LocalRunQueue))

	// NumCPUs returns the number of run queues, fixed at construction.
	NumCPUs() int
}
