package preempt

import (
	"sync/atomic"

	"github.com/kestrelos/preempt/sched"
)

func init() {
	// Register the built-in placement policies.
	for name, factory := range map[string]PolicyFactory{
		"fixed":       func() (Policy, error) { return &fixedPolicy{}, nil },
		"roundrobin":  func() (Policy, error) { return &roundRobinPolicy{}, nil },
		"leastloaded": func() (Policy, error) { return &leastLoadedPolicy{}, nil },
	} {
		if err := RegisterPolicy(name, factory); err != nil {
			panic(err)
		}
	}
}

// fixedPolicy always proposes processor 0. Mainly useful for single-CPU
// setups and deterministic tests.
type fixedPolicy struct{}

func (*fixedPolicy) Name() string { return "fixed" }

func (*fixedPolicy) SelectCPU(r sched.Runnable, view LoadView) int {
	return 0
}

// roundRobinPolicy cycles candidates across processors. Affinity stickiness
// still wins: a unit that already belongs to a queue keeps its processor
// regardless of the candidate proposed here.
type roundRobinPolicy struct {
	next atomic.Uint64
}

func (*roundRobinPolicy) Name() string { return "roundrobin" }

func (p *roundRobinPolicy) SelectCPU(r sched.Runnable, view LoadView) int {
	n := view.NumCPUs()
	if n <= 1 {
		return 0
	}
	return int((p.next.Add(1) - 1) % uint64(n))
}

// leastLoadedPolicy proposes the processor owning the fewest units. The
// load counts are approximate; ties go to the lowest id.
type leastLoadedPolicy struct{}

func (*leastLoadedPolicy) Name() string { return "leastloaded" }

func (*leastLoadedPolicy) SelectCPU(r sched.Runnable, view LoadView) int {
	best := 0
	bestLoad := view.QueuedOn(0)
	for cpu := 1; cpu < view.NumCPUs(); cpu++ {
		if load := view.QueuedOn(cpu); load < bestLoad {
			best, bestLoad = cpu, load
		}
	}
	return best
}
