package allocator

import (
	"time"

	"github.com/gobwas/glob"
)

// Availability is a worker's readiness state.
type Availability string

const (
	WorkerAvailable Availability = "available"
	WorkerBusy      Availability = "busy"
	WorkerOffline   Availability = "offline"
)

// WorkerProfile describes a capacity-bounded executor.
//
// Invariant: CurrentLoad never exceeds Capacity after a successful
// allocation. Load and effort share a unit (hours of estimated work).
type WorkerProfile struct {
	ID                    string
	Capacity              float64
	CurrentLoad           float64
	Specializations       []string // glob patterns matched against item classes
	PerformanceScore      float64  // in [0,1]
	Availability          Availability
	CompletedTasks        int
	AverageCompletionTime time.Duration
}

// worker is the allocator's internal registration record. The embedded
// profile is mutated under the allocator lock; compiled specialization
// globs are built once at registration.
type worker struct {
	profile  WorkerProfile
	patterns []glob.Glob
	inFlight map[string]float64 // task ID -> effort charged
}

func newWorker(profile WorkerProfile) *worker {
	w := &worker{
		profile:  profile,
		inFlight: make(map[string]float64),
	}
	if w.profile.Availability == "" {
		w.profile.Availability = WorkerAvailable
	}
	if w.profile.PerformanceScore <= 0 {
		w.profile.PerformanceScore = 0.5
	}
	if w.profile.PerformanceScore > 1 {
		w.profile.PerformanceScore = 1
	}
	for _, pattern := range profile.Specializations {
		if g, err := glob.Compile(pattern); err == nil {
			w.patterns = append(w.patterns, g)
		}
	}
	return w
}

// matches counts how many specialization patterns match the class.
func (w *worker) matches(class string) int {
	n := 0
	for _, g := range w.patterns {
		if g.Match(class) {
			n++
		}
	}
	return n
}

func (w *worker) spareCapacity() float64 {
	return w.profile.Capacity - w.profile.CurrentLoad
}

func (w *worker) loadRatio() float64 {
	if w.profile.Capacity <= 0 {
		return 1
	}
	return w.profile.CurrentLoad / w.profile.Capacity
}
