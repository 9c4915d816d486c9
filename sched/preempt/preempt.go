// Package preempt implements the preemptive scheduler core.
//
// Real-time units are placed in the real-time FIFO of their processor's run
// queue and are always dispatched ahead of normal units. Normal units run
// round-robin with a fixed tick quantum and are preempted, at tick
// granularity, as soon as real-time work is pending.
package preempt

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kestrelos/preempt/irq"
	"github.com/kestrelos/preempt/sched"
	"github.com/kestrelos/preempt/sched/internal/registry"
)

// Policy selects a candidate processor for a unit being enqueued.
type Policy = registry.Policy

// LoadView is the load information handed to a Policy.
type LoadView = registry.LoadView

// PolicyFactory creates a Policy instance.
type PolicyFactory = registry.PolicyFactory

// RegisterPolicy registers a placement-policy factory under a name, usually
// from an init function.
func RegisterPolicy(name string, factory PolicyFactory) error {
	return registry.RegisterNewPolicy(name, factory)
}

// NewPolicy instantiates the placement policy registered under name.
func NewPolicy(name string) (Policy, error) {
	return registry.NewPolicy(name)
}

// RegisteredPolicies returns the names of all registered placement policies.
func RegisteredPolicies() []string {
	return registry.RegisteredNames()
}

// Options configures a Scheduler.
type Options struct {
	// NumCPUs is the number of per-processor run queues. Required.
	NumCPUs int
	// QuantumTicks overrides DefaultQuantumTicks when non-zero.
	QuantumTicks uint32
	// Policy is the placement policy; defaults to round-robin.
	Policy Policy
	// IRQ is the interrupt-mask controller shared with the tick sources;
	// one is created when nil.
	IRQ *irq.Controller
	// CurrentCPU reports the processor the enqueuing caller runs on, used
	// to mask the caller's interrupts around cross-processor enqueues.
	// Callers on unmanaged threads may return -1. Defaults to that.
	CurrentCPU func() int
	// Logger receives scheduler diagnostics; defaults to slog.Default().
	Logger *slog.Logger
}

// Scheduler owns one locked run queue per processor and exposes the global
// enqueue entry point plus the CPU-local dispatch accessor. It is built
// once at startup and never resized or torn down.
type Scheduler struct {
	quantum    uint32
	policy     Policy
	irqc       *irq.Controller
	currentCPU func() int
	logger     *slog.Logger

	rqs  []*lockedRunQueue
	load []atomic.Int64

	stats Stats
}

type lockedRunQueue struct {
	mu irq.SpinLock
	rq runQueue
}

var _ sched.Scheduler = (*Scheduler)(nil)
var _ LoadView = (*Scheduler)(nil)

// New builds a Scheduler with one run queue per processor.
func New(opts Options) (*Scheduler, error) {
	if opts.NumCPUs <= 0 {
		return nil, fmt.Errorf("scheduler needs at least one cpu, got %d", opts.NumCPUs)
	}

	policy := opts.Policy
	if policy == nil {
		var err error
		policy, err = NewPolicy("roundrobin")
		if err != nil {
			return nil, err
		}
	}

	irqc := opts.IRQ
	if irqc == nil {
		irqc = irq.NewController(opts.NumCPUs)
	}

	currentCPU := opts.CurrentCPU
	if currentCPU == nil {
		currentCPU = func() int { return -1 }
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		quantum:    opts.QuantumTicks,
		policy:     policy,
		irqc:       irqc,
		currentCPU: currentCPU,
		logger:     logger.With("component", "preempt"),
		rqs:        make([]*lockedRunQueue, opts.NumCPUs),
		load:       make([]atomic.Int64, opts.NumCPUs),
	}
	for i := range s.rqs {
		s.rqs[i] = &lockedRunQueue{}
	}
	return s, nil
}

// NumCPUs returns the number of run queues.
func (s *Scheduler) NumCPUs() int {
	return len(s.rqs)
}

// QueuedOn returns the approximate number of units owned by the given
// processor, including its current unit.
func (s *Scheduler) QueuedOn(cpu int) int {
	if cpu < 0 || cpu >= len(s.load) {
		return 0
	}
	return int(s.load[cpu].Load())
}

// IRQ returns the interrupt-mask controller tick sources must consult.
func (s *Scheduler) IRQ() *irq.Controller {
	return s.irqc
}

// Enqueue admits a runnable unit into exactly one processor's run queue.
//
// The placement policy proposes a candidate, then the unit's affinity cell
// is claimed with set-if-unassigned. A cell that is already assigned means
// the unit is still logically owned by some queue (legal only for wake
// enqueues), and that queue's processor becomes the target instead. The
// claim is re-validated under the target's irq-disabled lock; if a
// concurrent dequeue-and-wake on another processor won the race in between,
// the enqueue is abandoned and (-1, false) is returned.
func (s *Scheduler) Enqueue(r sched.Runnable, flags sched.EnqueueFlags) (int, bool) {
	stillInRQ := false
	target := s.policy.SelectCPU(r, s)
	if target < 0 || target >= len(s.rqs) {
		target = 0
	}

	if prev, ok := r.CPU().SetIfNone(target); !ok {
		// A fresh spawn must never carry a pre-existing affinity; seeing one
		// here is a logic bug in the caller, surfaced as a counter rather
		// than a fault.
		if flags == sched.EnqueueSpawn {
			s.stats.SpawnAffinityViolations.Add(1)
			s.logger.Error("spawn enqueue found unit already assigned", "cpu", prev)
		}
		stillInRQ = true
		target = prev
	}

	l := s.rqs[target]
	g := l.mu.LockIrqDisabled(s.irqc, s.currentCPU())
	defer g.Unlock()

	if stillInRQ {
		if _, ok := r.CPU().SetIfNone(target); !ok {
			s.stats.EnqueueRejected.Add(1)
			return -1, false
		}
	}

	l.rq.enqueueEntity(newEntity(r, s.quantum))
	s.load[target].Add(1)

	switch flags {
	case sched.EnqueueSpawn:
		s.stats.EnqueueSpawn.Add(1)
	default:
		s.stats.EnqueueWake.Add(1)
	}
	if r.Priority().IsRealTime() {
		s.stats.RealTimeEnqueues.Add(1)
	}
	return target, true
}

// LocalRunQueueWith grants f exclusive, irq-masked access to cpu's run
// queue. cpu must identify the processor making the call; by construction
// the only cross-processor queue access in the scheduler is Enqueue, so
// lock contention is bounded to the queue owner and one enqueuer at a time.
func (s *Scheduler) LocalRunQueueWith(cpu int, f func(rq sched.LocalRunQueue)) {
	l := s.rqs[cpu]
	g := l.mu.LockIrqDisabled(s.irqc, cpu)
	defer g.Unlock()

	f(&localRunQueue{s: s, cpu: cpu, rq: &l.rq})
}

// localRunQueue adapts a locked runQueue to the sched.LocalRunQueue
// interface, maintaining the scheduler's counters as a side effect.
type localRunQueue struct {
	s   *Scheduler
	cpu int
	rq  *runQueue
}

var _ sched.LocalRunQueue = (*localRunQueue)(nil)

func (q *localRunQueue) Current() sched.Runnable {
	return q.rq.currentRunnable()
}

func (q *localRunQueue) UpdateCurrent(flags sched.UpdateFlags) bool {
	if flags != sched.UpdateTick {
		q.s.stats.ForcedRescheds.Add(1)
		return true
	}

	q.s.stats.Ticks.Add(1)
	if q.rq.current == nil {
		return false
	}
	expired, preempt := q.rq.updateCurrentTick()
	if expired {
		q.s.stats.QuantumExpirations.Add(1)
	}
	if preempt && !expired {
		q.s.stats.RealTimePreemptions.Add(1)
	}
	return expired || preempt
}

func (q *localRunQueue) PickNextCurrent() sched.Runnable {
	next := q.rq.pickNextCurrent()
	if next == nil {
		q.s.stats.IdlePicks.Add(1)
		return nil
	}
	q.s.stats.Dispatches.Add(1)
	return next
}

func (q *localRunQueue) DequeueCurrent() sched.Runnable {
	r := q.rq.dequeueCurrent()
	if r == nil {
		return nil
	}
	q.s.load[q.cpu].Add(-1)
	q.s.stats.Dequeues.Add(1)
	return r
}
