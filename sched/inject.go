package sched

import (
	"fmt"
	"sync"
)

var (
	injectMu sync.RWMutex
	injected Scheduler
)

// Inject installs s as the process-wide active scheduler. It may be called
// exactly once, before the first scheduling decision; later calls fail.
func Inject(s Scheduler) error {
	if s == nil {
		return fmt.Errorf("scheduler cannot be nil")
	}

	injectMu.Lock()
	defer injectMu.Unlock()

	if injected != nil {
		return fmt.Errorf("a scheduler is already injected")
	}
	injected = s
	return nil
}

// Injected returns the installed scheduler, or nil before Inject.
func Injected() Scheduler {
	injectMu.RLock()
	defer injectMu.RUnlock()
	return injected
}

// The following helpers are intended for tests only.
func clearInjectedForTests() {
	injectMu.Lock()
	defer injectMu.Unlock()
	injected = nil
}
