package preempt

import "github.com/kestrelos/preempt/sched"

// DefaultQuantumTicks is the number of ticks an entity may run before
// mandatory rotation.
const DefaultQuantumTicks = 100

// timeSlice counts elapsed ticks within a fixed quantum. A fresh slice
// starts at zero, so a newly promoted entity gets a full quantum before its
// first expiry.
type timeSlice struct {
	elapsedTicks uint32
	quantum      uint32
}

func newTimeSlice(quantum uint32) timeSlice {
	if quantum == 0 {
		quantum = DefaultQuantumTicks
	}
	return timeSlice{quantum: quantum}
}

// elapse advances the counter by one tick modulo the quantum and reports
// whether it just wrapped to zero, the quantum-exhausted signal.
func (t *timeSlice) elapse() bool {
	t.elapsedTicks = (t.elapsedTicks + 1) % t.quantum
	return t.elapsedTicks == 0
}

// entity wraps a runnable unit with its scheduling bookkeeping while the
// unit is queued or running. The slice is minted fresh on enqueue and is
// NOT reset when a preempted entity rotates back to its class FIFO: a unit
// preempted mid-quantum resumes with its remaining ticks intact. That is
// the fairness policy, not an accident.
type entity struct {
	runnable sched.Runnable
	slice    timeSlice
}

func newEntity(r sched.Runnable, quantum uint32) *entity {
	return &entity{runnable: r, slice: newTimeSlice(quantum)}
}

func (e *entity) isRealTime() bool {
	return e.runnable.Priority().IsRealTime()
}

func (e *entity) tick() bool {
	return e.slice.elapse()
}

// runQueue holds one processor's work: at most one running entity plus two
// FIFO waiting lists split by class. A given runnable unit appears in at
// most one slot across the whole scheduler; the enqueue/dequeue protocol
// enforces that. Callers must hold the owning lock.
type runQueue struct {
	current  *entity
	realTime []*entity
	normal   []*entity
}

func (rq *runQueue) currentRunnable() sched.Runnable {
	if rq.current == nil {
		return nil
	}
	return rq.current.runnable
}

// updateCurrentTick charges one tick to the current entity and reports
// whether its quantum expired and whether pending real-time work should
// preempt a normal-class current.
func (rq *runQueue) updateCurrentTick() (expired, preempt bool) {
	cur := rq.current
	if cur == nil {
		return false, false
	}
	expired = cur.tick()
	preempt = !cur.isRealTime() && len(rq.realTime) > 0
	return expired, preempt
}

// pickNextCurrent pops the front of the real-time FIFO, falling back to the
// normal FIFO, and promotes it to current. The previous current, if any, is
// pushed to the tail of its own class: round-robin within a class, and a
// running normal-class unit demoted behind any real-time arrival. Returns
// nil with the queue untouched when both FIFOs are empty.
func (rq *runQueue) pickNextCurrent() sched.Runnable {
	var next *entity
	switch {
	case len(rq.realTime) > 0:
		next = rq.realTime[0]
		rq.realTime = rq.realTime[1:]
	case len(rq.normal) > 0:
		next = rq.normal[0]
		rq.normal = rq.normal[1:]
	default:
		return nil
	}

	if prev := rq.current; prev != nil {
		if prev.isRealTime() {
			rq.realTime = append(rq.realTime, prev)
		} else {
			rq.normal = append(rq.normal, prev)
		}
	}
	rq.current = next
	return next.runnable
}

// dequeueCurrent removes and returns the current unit, clearing its
// affinity cell, leaving the processor idle until the next pick. Returns
// nil when there is no current unit.
func (rq *runQueue) dequeueCurrent() sched.Runnable {
	cur := rq.current
	if cur == nil {
		return nil
	}
	rq.current = nil

	r := cur.runnable
	r.CPU().SetToNone()
	return r
}

// enqueueEntity appends e to the FIFO of its class.
func (rq *runQueue) enqueueEntity(e *entity) {
	if e.isRealTime() {
		rq.realTime = append(rq.realTime, e)
	} else {
		rq.normal = append(rq.normal, e)
	}
}
