// Package registry holds the placement-policy factory registry. Policies
// register themselves by name in an init function and are instantiated from
// configuration when a scheduler is built.
package registry

import (
	"fmt"
	"sync"

	"github.com/kestrelos/preempt/sched"
)

// LoadView exposes the approximate load a placement policy may consult when
// choosing a processor. Counts are maintained lock-free and may lag the run
// queues slightly; the affinity re-validation in enqueue makes any choice
// safe regardless.
type LoadView interface {
	// NumCPUs returns the number of processors.
	NumCPUs() int
	// QueuedOn returns the approximate number of units owned by the given
	// processor's run queue, including its current unit.
	QueuedOn(cpu int) int
}

// Policy selects a candidate processor for a runnable unit being enqueued.
// The only hard requirement is that SelectCPU returns a valid processor id;
// the affinity-claiming protocol handles every race beyond that.
type Policy interface {
	Name() string
	SelectCPU(r sched.Runnable, view LoadView) int
}

// PolicyFactory creates a Policy instance.
type PolicyFactory func() (Policy, error)

var (
	// policyRegistry stores registered policy factories by name.
	policyRegistry = make(map[string]PolicyFactory)
	registryMutex  sync.RWMutex
)

// RegisterNewPolicy registers a policy factory under a name. This should be
// called from the init() function of each policy implementation.
func RegisterNewPolicy(name string, factory PolicyFactory) error {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("policy factory cannot be nil")
	}
	if _, exists := policyRegistry[name]; exists {
		return fmt.Errorf("policy '%s' is already registered", name)
	}

	policyRegistry[name] = factory
	return nil
}

// NewPolicy instantiates the policy registered under name.
func NewPolicy(name string) (Policy, error) {
	registryMutex.RLock()
	factory, exists := policyRegistry[name]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown placement policy: %s", name)
	}
	return factory()
}

// RegisteredNames returns the names of all registered policies.
func RegisteredNames() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(policyRegistry))
	for name := range policyRegistry {
		names = append(names, name)
	}
	return names
}

// The following helpers are intended for tests only.
func ClearRegistryForTests() {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	policyRegistry = make(map[string]PolicyFactory)
}

func SnapshotRegistryForTests() map[string]PolicyFactory {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	copyMap := make(map[string]PolicyFactory, len(policyRegistry))
	for k, v := range policyRegistry {
		copyMap[k] = v
	}
	return copyMap
}

func RestoreRegistryForTests(m map[string]PolicyFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	policyRegistry = m
}
