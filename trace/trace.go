// Package trace records scheduling events for offline analysis. The core
// dispatch path never records anything itself; the harness driving the
// scheduler does, so the hot path stays allocation-free when tracing is
// off.
package trace

// Kind classifies a scheduling event.
type Kind string

const (
	KindEnqueue  Kind = "enqueue"
	KindDispatch Kind = "dispatch"
	KindDequeue  Kind = "dequeue"
	KindPreempt  Kind = "preempt"
	KindIdle     Kind = "idle"
)

// Event is one observed scheduling decision.
type Event struct {
	Seq    uint64 // per-run sequence number assigned by the producer
	TimeNs uint64 // wall clock of the observation
	CPU    int    // processor the decision happened on
	Pid    int32  // unit involved, 0 when none (idle picks)
	Kind   Kind
}

// Recorder consumes scheduling events. Implementations must tolerate
// concurrent Record calls from multiple processors.
type Recorder interface {
	Record(ev Event)
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Record(Event) {}

func (Nop) Close() error { return nil }
