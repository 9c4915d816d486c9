// Package cpu answers the processor-count and current-processor queries the
// scheduler core consumes, and pins dispatch threads to logical CPUs where
// the platform supports it.
package cpu

import "runtime"

// Topology answers the processor queries available at any point scheduler
// operations run.
type Topology interface {
	// NumCPUs returns the number of schedulable processors.
	NumCPUs() int
	// CurrentCPU returns the processor the caller is executing on. The
	// answer is only stable for callers on a pinned, locked OS thread.
	CurrentCPU() int
}

// SystemTopology reports the host's topology.
type SystemTopology struct {
	n int
}

// NewSystemTopology builds a topology over the host's logical CPUs, capped
// at maxCPUs when maxCPUs > 0.
func NewSystemTopology(maxCPUs int) SystemTopology {
	n := runtime.NumCPU()
	if maxCPUs > 0 && maxCPUs < n {
		n = maxCPUs
	}
	return SystemTopology{n: n}
}

func (t SystemTopology) NumCPUs() int {
	return t.n
}

func (t SystemTopology) CurrentCPU() int {
	return Current()
}
