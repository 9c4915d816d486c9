package preempt

import (
	"sync/atomic"

	"github.com/kestrelos/preempt/util"
)

// Stats holds the scheduler's monotonic counters. All fields are updated
// atomically under the relevant run-queue lock or lock-free on enqueue.
type Stats struct {
	EnqueueSpawn            atomic.Uint64
	EnqueueWake             atomic.Uint64
	EnqueueRejected         atomic.Uint64
	RealTimeEnqueues        atomic.Uint64
	SpawnAffinityViolations atomic.Uint64

	Dispatches          atomic.Uint64
	IdlePicks           atomic.Uint64
	Dequeues            atomic.Uint64
	Ticks               atomic.Uint64
	QuantumExpirations  atomic.Uint64
	RealTimePreemptions atomic.Uint64
	ForcedRescheds      atomic.Uint64
}

// Snapshot is a point-in-time, JSON-encodable view of the scheduler state.
type Snapshot struct {
	TimestampNs  uint64  `json:"timestamp_ns"`
	NrCPUs       int     `json:"nr_cpus"`
	NrQueued     int64   `json:"nr_queued"`
	QueuedPerCPU []int64 `json:"queued_per_cpu"`

	EnqueueSpawn            uint64 `json:"enqueue_spawn"`
	EnqueueWake             uint64 `json:"enqueue_wake"`
	EnqueueRejected         uint64 `json:"enqueue_rejected"`
	RealTimeEnqueues        uint64 `json:"real_time_enqueues"`
	SpawnAffinityViolations uint64 `json:"spawn_affinity_violations"`

	Dispatches          uint64 `json:"dispatches"`
	IdlePicks           uint64 `json:"idle_picks"`
	Dequeues            uint64 `json:"dequeues"`
	Ticks               uint64 `json:"ticks"`
	QuantumExpirations  uint64 `json:"quantum_expirations"`
	RealTimePreemptions uint64 `json:"real_time_preemptions"`
	ForcedRescheds      uint64 `json:"forced_rescheds"`
}

// Stats returns the live counter block.
func (s *Scheduler) Stats() *Stats {
	return &s.stats
}

// Snapshot captures the current counters and per-CPU load.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		TimestampNs:  util.Now(),
		NrCPUs:       len(s.rqs),
		QueuedPerCPU: make([]int64, len(s.load)),

		EnqueueSpawn:            s.stats.EnqueueSpawn.Load(),
		EnqueueWake:             s.stats.EnqueueWake.Load(),
		EnqueueRejected:         s.stats.EnqueueRejected.Load(),
		RealTimeEnqueues:        s.stats.RealTimeEnqueues.Load(),
		SpawnAffinityViolations: s.stats.SpawnAffinityViolations.Load(),

		Dispatches:          s.stats.Dispatches.Load(),
		IdlePicks:           s.stats.IdlePicks.Load(),
		Dequeues:            s.stats.Dequeues.Load(),
		Ticks:               s.stats.Ticks.Load(),
		QuantumExpirations:  s.stats.QuantumExpirations.Load(),
		RealTimePreemptions: s.stats.RealTimePreemptions.Load(),
		ForcedRescheds:      s.stats.ForcedRescheds.Load(),
	}
	for i := range s.load {
		n := s.load[i].Load()
		snap.QueuedPerCPU[i] = n
		snap.NrQueued += n
	}
	return snap
}
