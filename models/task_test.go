package models

import "testing"

// TestNewTask verifies identity, classification, and a fresh affinity cell.
func TestNewTask(t *testing.T) {
	rt := NewTask(7, "rt-worker", 50)
	normal := NewTask(8, "batch", 120)

	if rt.Pid != 7 || rt.Name != "rt-worker" {
		t.Errorf("rt task identity = (%d, %q); want (7, rt-worker)", rt.Pid, rt.Name)
	}
	if !rt.IsRealTime() {
		t.Error("priority 50 task not classified real-time")
	}
	if normal.IsRealTime() {
		t.Error("priority 120 task classified real-time")
	}
	if got := rt.Priority(); got != 50 {
		t.Errorf("Priority = %d; want 50", got)
	}
	if _, assigned := rt.CPU().Get(); assigned {
		t.Error("fresh task already bound to a processor")
	}
}
