// Package sim drives the scheduler core with a synthetic multi-processor
// workload: one dispatch goroutine per processor delivering periodic ticks,
// plus a waker re-admitting blocked tasks. It is the in-tree stand-in for
// the kernel's dispatch loop and timer interrupt.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelos/preempt/cpu"
	"github.com/kestrelos/preempt/models"
	"github.com/kestrelos/preempt/sched"
	"github.com/kestrelos/preempt/sched/preempt"
	"github.com/kestrelos/preempt/trace"
	"github.com/kestrelos/preempt/util"
)

// Options configures a simulation run.
type Options struct {
	CPUs          int
	TickInterval  time.Duration
	Duration      time.Duration
	NormalTasks   int
	RealTimeTasks int
	// WorkTicks is the work budget per task; a task finishes for good once
	// it has consumed it.
	WorkTicks uint64
	// BlockEvery makes tasks block (dequeue + delayed wake) each time they
	// consume this many ticks; 0 disables blocking.
	BlockEvery uint64
	// Pin locks each dispatch goroutine to an OS thread pinned to its
	// processor id.
	Pin      bool
	Logger   *slog.Logger
	Recorder trace.Recorder
}

// taskState is the simulator-side bookkeeping for one task. remaining is
// only touched by the processor currently running the task, so it needs no
// lock; blockedAtNs is written by the runner and read by the waker after a
// channel hand-off.
type taskState struct {
	task        *models.Task
	remaining   uint64
	blockedAtNs uint64
}

// Sim owns one simulation run.
type Sim struct {
	opts   Options
	sched  *preempt.Scheduler
	logger *slog.Logger
	rec    trace.Recorder

	states map[int32]*taskState

	wakeCh chan *taskState
	stopCh chan struct{}
	wg     sync.WaitGroup

	seq       atomic.Uint64
	completed atomic.Uint64
	wakes     atomic.Uint64
	// avgWakeNs is a running average of wake-to-enqueue latency.
	avgWakeNs atomic.Uint64
}

// New builds a simulation around an existing scheduler. The scheduler must
// have at least opts.CPUs run queues.
func New(opts Options, s *preempt.Scheduler) (*Sim, error) {
	if opts.CPUs <= 0 || opts.CPUs > s.NumCPUs() {
		return nil, fmt.Errorf("sim cpus %d out of range for %d run queues", opts.CPUs, s.NumCPUs())
	}
	if opts.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = trace.Nop{}
	}

	return &Sim{
		opts:   opts,
		sched:  s,
		logger: logger.With("component", "sim"),
		rec:    rec,
		states: make(map[int32]*taskState),
		wakeCh: make(chan *taskState, opts.NormalTasks+opts.RealTimeTasks+1),
		stopCh: make(chan struct{}),
	}, nil
}

// Completed returns the number of tasks that consumed their whole budget.
func (s *Sim) Completed() uint64 {
	return s.completed.Load()
}

// Wakes returns the number of successful wake re-enqueues.
func (s *Sim) Wakes() uint64 {
	return s.wakes.Load()
}

// AvgWakeLatencyNs returns the running average wake-to-enqueue latency.
func (s *Sim) AvgWakeLatencyNs() uint64 {
	return s.avgWakeNs.Load()
}

// Run spawns the workload, starts the per-processor dispatch loops and the
// waker, and blocks until the configured duration elapses or ctx is
// cancelled.
func (s *Sim) Run(ctx context.Context) error {
	s.spawnTasks()

	for c := 0; c < s.opts.CPUs; c++ {
		s.wg.Add(1)
		go s.dispatchLoop(c)
	}
	s.wg.Add(1)
	go s.waker()

	s.logger.Info("simulation started",
		"cpus", s.opts.CPUs,
		"normal_tasks", s.opts.NormalTasks,
		"real_time_tasks", s.opts.RealTimeTasks,
		"tick_interval", s.opts.TickInterval)

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(s.opts.Duration):
	}

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("simulation finished",
		"completed", s.completed.Load(),
		"wakes", s.wakes.Load())
	return err
}

func (s *Sim) spawnTasks() {
	pid := int32(1)
	spawn := func(name string, prio sched.Priority) {
		t := models.NewTask(pid, name, prio)
		t.WorkTicks = s.opts.WorkTicks
		s.states[pid] = &taskState{task: t, remaining: s.opts.WorkTicks}
		pid++

		target, ok := s.sched.Enqueue(t, sched.EnqueueSpawn)
		if !ok {
			s.logger.Error("spawn enqueue rejected", "pid", t.Pid)
			return
		}
		s.record(trace.KindEnqueue, target, t.Pid)
	}

	for i := 0; i < s.opts.RealTimeTasks; i++ {
		spawn(fmt.Sprintf("rt-%d", i), 50)
	}
	for i := 0; i < s.opts.NormalTasks; i++ {
		spawn(fmt.Sprintf("normal-%d", i), 120)
	}
}

// dispatchLoop is one processor's dispatch loop plus tick handler. Ticks
// are delivered only while the processor's interrupts are unmasked, the
// same discipline a hardware timer line follows.
func (s *Sim) dispatchLoop(cpuID int) {
	defer s.wg.Done()

	if s.opts.Pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := cpu.Pin(cpuID); err != nil {
			s.logger.Warn("cpu pin failed", "cpu", cpuID, "error", err)
		}
	}

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
		if !s.sched.IRQ().Enabled(cpuID) {
			continue
		}
		s.tick(cpuID)
	}
}

// tick performs one timer interrupt's worth of work on a processor.
func (s *Sim) tick(cpuID int) {
	s.sched.LocalRunQueueWith(cpuID, func(rq sched.LocalRunQueue) {
		cur := rq.Current()
		if cur == nil {
			if next := rq.PickNextCurrent(); next != nil {
				s.record(trace.KindDispatch, cpuID, next.(*models.Task).Pid)
			} else {
				s.record(trace.KindIdle, cpuID, 0)
			}
			return
		}

		task := cur.(*models.Task)
		st := s.states[task.Pid]
		st.remaining--

		switch {
		case st.remaining == 0:
			rq.UpdateCurrent(sched.UpdateExit)
			rq.DequeueCurrent()
			s.completed.Add(1)
			s.record(trace.KindDequeue, cpuID, task.Pid)
		case s.opts.BlockEvery > 0 && st.remaining%s.opts.BlockEvery == 0:
			rq.UpdateCurrent(sched.UpdateWait)
			rq.DequeueCurrent()
			st.blockedAtNs = util.Now()
			s.record(trace.KindDequeue, cpuID, task.Pid)
			select {
			case s.wakeCh <- st:
			case <-s.stopCh:
			}
		default:
			if !rq.UpdateCurrent(sched.UpdateTick) {
				return
			}
			s.record(trace.KindPreempt, cpuID, task.Pid)
		}

		if next := rq.PickNextCurrent(); next != nil {
			s.record(trace.KindDispatch, cpuID, next.(*models.Task).Pid)
		}
	})
}

// waker re-admits blocked tasks after a short sleep, exercising the wake
// enqueue path (and, under the round-robin policy, the affinity stickiness
// protocol) from outside the dispatch loops.
func (s *Sim) waker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case st := <-s.wakeCh:
			select {
			case <-time.After(s.opts.TickInterval * 2):
			case <-s.stopCh:
				return
			}
			target, ok := s.sched.Enqueue(st.task, sched.EnqueueWake)
			if !ok {
				// Still owned by a run queue; nothing to do.
				continue
			}
			s.wakes.Add(1)
			latency := util.SaturatingSub(util.Now(), st.blockedAtNs)
			s.avgWakeNs.Store(util.CalcAvg(s.avgWakeNs.Load(), latency))
			s.record(trace.KindEnqueue, target, st.task.Pid)
		}
	}
}

func (s *Sim) record(kind trace.Kind, cpuID int, pid int32) {
	s.rec.Record(trace.Event{
		Seq:    s.seq.Add(1),
		TimeNs: util.Now(),
		CPU:    cpuID,
		Pid:    pid,
		Kind:   kind,
	})
}
