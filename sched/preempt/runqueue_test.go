package preempt

import (
	"testing"

	"github.com/kestrelos/preempt/sched"
)

// testUnit is the lightweight mock runnable the core is tested against.
type testUnit struct {
	name string
	prio sched.Priority
	cpu  sched.AtomicCPU
}

func newTestUnit(name string, prio sched.Priority) *testUnit {
	return &testUnit{name: name, prio: prio}
}

func (u *testUnit) Priority() sched.Priority { return u.prio }
func (u *testUnit) CPU() *sched.AtomicCPU    { return &u.cpu }

func unitName(r sched.Runnable) string {
	if r == nil {
		return "<none>"
	}
	return r.(*testUnit).name
}

// TestTimeSliceQuantumAccounting verifies an entity ticked exactly quantum
// times reports exhaustion exactly once, at the last tick and not before.
func TestTimeSliceQuantumAccounting(t *testing.T) {
	ts := newTimeSlice(0)

	for i := 1; i < DefaultQuantumTicks; i++ {
		if ts.elapse() {
			t.Fatalf("elapse reported exhaustion at tick %d; want only at %d", i, DefaultQuantumTicks)
		}
	}
	if !ts.elapse() {
		t.Fatalf("elapse did not report exhaustion at tick %d", DefaultQuantumTicks)
	}
	// The counter wrapped; the next full quantum starts over.
	if ts.elapse() {
		t.Error("elapse reported exhaustion immediately after wrapping")
	}
}

// TestTimeSliceCustomQuantum verifies the quantum override.
func TestTimeSliceCustomQuantum(t *testing.T) {
	ts := newTimeSlice(3)

	got := []bool{ts.elapse(), ts.elapse(), ts.elapse(), ts.elapse()}
	want := []bool{false, false, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tick %d exhaustion = %v; want %v", i+1, got[i], want[i])
		}
	}
}

// TestPickPrefersRealTime verifies real-time precedence at a dispatch
// decision when both FIFOs are non-empty.
func TestPickPrefersRealTime(t *testing.T) {
	var rq runQueue
	rq.enqueueEntity(newEntity(newTestUnit("normal", 120), 0))
	rq.enqueueEntity(newEntity(newTestUnit("rt", 10), 0))

	if got := unitName(rq.pickNextCurrent()); got != "rt" {
		t.Errorf("pickNextCurrent = %s; want rt", got)
	}
	if got := unitName(rq.pickNextCurrent()); got != "normal" {
		t.Errorf("second pickNextCurrent = %s; want normal", got)
	}
}

// TestPickRoundRobinWithinClass verifies FIFO fairness: N same-class
// entities rotate in enqueue order across repeated picks.
func TestPickRoundRobinWithinClass(t *testing.T) {
	var rq runQueue
	names := []string{"e1", "e2", "e3"}
	for _, name := range names {
		rq.enqueueEntity(newEntity(newTestUnit(name, 120), 0))
	}

	want := []string{"e1", "e2", "e3", "e1", "e2", "e3", "e1"}
	for i, expected := range want {
		if got := unitName(rq.pickNextCurrent()); got != expected {
			t.Fatalf("pick %d = %s; want %s", i, got, expected)
		}
	}
}

// TestPickOnEmptyQueueLeavesStateUnchanged verifies idle correctness: a
// pick on an empty run queue returns no work and mutates nothing.
func TestPickOnEmptyQueueLeavesStateUnchanged(t *testing.T) {
	var rq runQueue

	if got := rq.pickNextCurrent(); got != nil {
		t.Fatalf("pickNextCurrent on empty queue = %v; want nil", got)
	}
	if rq.current != nil || len(rq.realTime) != 0 || len(rq.normal) != 0 {
		t.Error("empty pick mutated the run queue")
	}

	// Same with an occupied current slot: the current entity stays put.
	u := newTestUnit("cur", 120)
	rq.enqueueEntity(newEntity(u, 0))
	rq.pickNextCurrent()

	if got := rq.pickNextCurrent(); got != nil {
		t.Fatalf("pickNextCurrent with empty FIFOs = %v; want nil", got)
	}
	if rq.currentRunnable() != sched.Runnable(u) {
		t.Error("empty pick displaced the current entity")
	}
}

// TestRunToCompletionOrder verifies the spec scenario: enqueue R (real
// time), A, B (normal) and dispatch with run-to-completion; order is
// R, A, B.
func TestRunToCompletionOrder(t *testing.T) {
	var rq runQueue
	r := newTestUnit("R", 50)
	a := newTestUnit("A", 120)
	b := newTestUnit("B", 120)
	r.cpu.SetIfNone(0)
	a.cpu.SetIfNone(0)
	b.cpu.SetIfNone(0)

	rq.enqueueEntity(newEntity(r, 0))
	rq.enqueueEntity(newEntity(a, 0))
	rq.enqueueEntity(newEntity(b, 0))

	var order []string
	for i := 0; i < 3; i++ {
		order = append(order, unitName(rq.pickNextCurrent()))
		if got := rq.dequeueCurrent(); got == nil {
			t.Fatalf("dequeueCurrent %d returned nil", i)
		}
	}

	want := []string{"R", "A", "B"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order = %v; want %v", order, want)
		}
	}
}

// TestTickPreemptsNormalForRealTime verifies the spec scenario: a normal
// current with an unexpired quantum must be rescheduled at the next tick
// once real-time work arrives, and the pick demotes it to the normal tail.
func TestTickPreemptsNormalForRealTime(t *testing.T) {
	var rq runQueue
	a := newTestUnit("A", 120)
	rq.enqueueEntity(newEntity(a, 0))
	rq.pickNextCurrent()

	// A is current, quantum far from expiry.
	if expired, preempt := rq.updateCurrentTick(); expired || preempt {
		t.Fatalf("tick with empty real-time FIFO = (%v, %v); want (false, false)", expired, preempt)
	}

	r := newTestUnit("R", 10)
	rq.enqueueEntity(newEntity(r, 0))

	expired, preempt := rq.updateCurrentTick()
	if expired {
		t.Error("quantum reported expired after two ticks")
	}
	if !preempt {
		t.Error("tick did not request preemption with real-time work pending")
	}

	if got := unitName(rq.pickNextCurrent()); got != "R" {
		t.Errorf("pick after preemption = %s; want R", got)
	}
	if len(rq.normal) != 1 || unitName(rq.normal[0].runnable) != "A" {
		t.Error("preempted normal unit is not at the normal FIFO tail")
	}
}

// TestRealTimeCurrentNotPreemptedByRealTime verifies a real-time current
// is not rescheduled just because more real-time work is waiting.
func TestRealTimeCurrentNotPreemptedByRealTime(t *testing.T) {
	var rq runQueue
	rq.enqueueEntity(newEntity(newTestUnit("rt1", 10), 0))
	rq.pickNextCurrent()
	rq.enqueueEntity(newEntity(newTestUnit("rt2", 10), 0))

	if expired, preempt := rq.updateCurrentTick(); expired || preempt {
		t.Errorf("tick on real-time current = (%v, %v); want (false, false)", expired, preempt)
	}
}

// TestPreemptedEntityKeepsRemainingTicks verifies the documented fairness
// policy: a preempted entity resumes with its remaining ticks, not a fresh
// quantum.
func TestPreemptedEntityKeepsRemainingTicks(t *testing.T) {
	var rq runQueue
	a := newTestUnit("A", 120)
	rq.enqueueEntity(newEntity(a, 4))
	rq.pickNextCurrent()

	// Burn two of A's four ticks, then preempt it with a real-time unit.
	rq.updateCurrentTick()
	rq.updateCurrentTick()
	rq.enqueueEntity(newEntity(newTestUnit("R", 10), 4))
	rq.pickNextCurrent()

	// R leaves; A resumes with two ticks left.
	rq.dequeueCurrent()
	if got := unitName(rq.pickNextCurrent()); got != "A" {
		t.Fatalf("pick after R left = %s; want A", got)
	}
	if expired, _ := rq.updateCurrentTick(); expired {
		t.Fatal("A expired with one remaining tick unconsumed")
	}
	if expired, _ := rq.updateCurrentTick(); !expired {
		t.Error("A did not expire at its retained fourth tick")
	}
}

// TestDequeueCurrentClearsAffinity verifies dequeue releases the affinity
// cell and idles the processor.
func TestDequeueCurrentClearsAffinity(t *testing.T) {
	var rq runQueue
	u := newTestUnit("u", 120)
	u.cpu.SetIfNone(2)
	rq.enqueueEntity(newEntity(u, 0))
	rq.pickNextCurrent()

	got := rq.dequeueCurrent()
	if got != sched.Runnable(u) {
		t.Fatalf("dequeueCurrent = %v; want the enqueued unit", got)
	}
	if _, ok := u.cpu.Get(); ok {
		t.Error("affinity cell still assigned after dequeue")
	}
	if rq.currentRunnable() != nil {
		t.Error("current occupied after dequeue")
	}

	if rq.dequeueCurrent() != nil {
		t.Error("dequeueCurrent on idle queue returned a unit")
	}
}

// TestTickOnIdleQueue verifies a tick with no current unit requests no
// resched.
func TestTickOnIdleQueue(t *testing.T) {
	var rq runQueue

	if expired, preempt := rq.updateCurrentTick(); expired || preempt {
		t.Errorf("tick on idle queue = (%v, %v); want (false, false)", expired, preempt)
	}
}
