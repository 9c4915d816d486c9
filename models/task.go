package models

import "github.com/kestrelos/preempt/sched"

// Task is a concrete runnable unit used by the simulator, examples, and
// tests. A *Task is a shared-ownership handle: run queues, the spawner, and
// wakers may all hold it at once, and its affinity cell is the single
// source of truth for which run queue owns its scheduling rights.
type Task struct {
	Pid       int32  // pid that uniquely identifies the task
	Name      string // human-readable label for logs and traces
	WorkTicks uint64 // total ticks of work the task represents

	prio sched.Priority
	cpu  sched.AtomicCPU
}

var _ sched.Runnable = (*Task)(nil)

// NewTask creates a task with the given identity and static priority.
func NewTask(pid int32, name string, prio sched.Priority) *Task {
	return &Task{Pid: pid, Name: name, prio: prio}
}

// Priority returns the task's static priority.
func (t *Task) Priority() sched.Priority {
	return t.prio
}

// CPU returns the task's affinity cell.
func (t *Task) CPU() *sched.AtomicCPU {
	return &t.cpu
}

// IsRealTime reports whether the task belongs to the real-time class.
func (t *Task) IsRealTime() bool {
	return t.prio.IsRealTime()
}
