package resource

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fairlead/apportion/internal/event"
	"github.com/fairlead/apportion/internal/logging"
	"github.com/fairlead/apportion/internal/workload"
)

// Default prediction values for tasks that carry no resource hints.
const (
	defaultTaskMemoryMB = 256.0
	defaultTaskCPUCores = 0.25
)

// Utilization thresholds that grade a resource as a bottleneck.
const (
	cpuBottleneckThreshold  = 0.80
	memBottleneckThreshold  = 0.85
	diskBottleneckThreshold = 0.90
)

// workerSafetyMargin keeps headroom when sizing the worker pool.
const workerSafetyMargin = 0.8

// Bottleneck describes a resource under pressure.
type Bottleneck struct {
	Resource    string
	Severity    event.BottleneckSeverity
	Utilization float64
	Impact      string
}

// Suggestion is an optimization advisory derived from observed pressure.
type Suggestion struct {
	Action string
	Reason string
}

// Usage is a task's predicted resource footprint.
type Usage struct {
	MemoryMB float64
	CPUCores float64
}

// AllocationPlan is the outcome of a greedy admission pass.
type AllocationPlan struct {
	Admitted []string // task IDs that fit, in admission order
	Rejected []string // task IDs that did not fit this pass
}

// Monitor samples host capacity on a fixed interval and answers
// capacity questions from the latest snapshot. Start is idempotent.
type Monitor struct {
	mu       sync.Mutex
	bus      *event.Bus
	logger   *logging.Logger
	latest   Snapshot
	lastTick cpuTicks
	stop     chan struct{}
	done     chan struct{}
	running  bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithBus publishes snapshot and bottleneck events to the given bus.
func WithBus(bus *event.Bus) MonitorOption {
	return func(m *Monitor) {
		m.bus = bus
	}
}

// WithLogger attaches a logger. Defaults to the no-op logger.
func WithLogger(logger *logging.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger.WithComponent("resource")
		}
	}
}

// NewMonitor creates a monitor and takes an initial snapshot so that
// capacity queries work before Start is called.
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.latest, m.lastTick = takeSnapshot(cpuTicks{})
	return m
}

// Snapshot returns the most recent capacity snapshot.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// Refresh takes a fresh snapshot immediately and returns it.
func (m *Monitor) Refresh() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest, m.lastTick = takeSnapshot(m.lastTick)
	return m.latest
}

// ---- Capacity planning ----

// OptimalWorkers returns the worker count the host can sustain:
// min(cpu cores, available memory / per-worker footprint) scaled by a
// safety margin, never below 1.
func (m *Monitor) OptimalWorkers() int {
	snap := m.Snapshot()
	return OptimalWorkersFor(snap)
}

// OptimalWorkersFor computes the sustainable worker count for an
// arbitrary snapshot.
func OptimalWorkersFor(snap Snapshot) int {
	byCPU := snap.CPU.Cores
	byMem := int(snap.Memory.AvailableMB / PerWorkerFootprintMB)
	workers := byCPU
	if byMem < workers {
		workers = byMem
	}
	workers = int(float64(workers) * workerSafetyMargin)
	if workers < 1 {
		return 1
	}
	return workers
}

// PredictUsage estimates a task's resource footprint. Explicit hints
// on the item win; otherwise memory defaults to 256MB scaled by
// (1+priority/10), and cpu to 0.25 cores scaled by (1+priority/20)
// and by (1+log10(minutes+1)) of the estimated duration.
func (m *Monitor) PredictUsage(item workload.WorkItem) Usage {
	mem := item.MemoryMB
	if mem <= 0 {
		mem = defaultTaskMemoryMB * (1 + float64(item.Priority)/10)
	}

	cpu := item.CPUCores
	if cpu <= 0 {
		minutes := item.EstimatedDuration.Minutes()
		if minutes < 0 {
			minutes = 0
		}
		cpu = defaultTaskCPUCores * (1 + float64(item.Priority)/20) * (1 + math.Log10(minutes+1))
	}

	return Usage{MemoryMB: mem, CPUCores: cpu}
}

// AllocateResources admits tasks against the remaining memory and cpu
// pools, highest priority first. Tasks that do not fit are reported in
// the plan and announced on the bus; they are not retried within the
// same pass.
func (m *Monitor) AllocateResources(items []workload.WorkItem) AllocationPlan {
	snap := m.Snapshot()
	memPool := snap.Memory.AvailableMB
	cpuPool := float64(snap.CPU.Cores)

	ordered := make([]workload.WorkItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	var plan AllocationPlan
	for _, item := range ordered {
		usage := m.PredictUsage(item)
		if usage.MemoryMB <= memPool && usage.CPUCores <= cpuPool {
			memPool -= usage.MemoryMB
			cpuPool -= usage.CPUCores
			plan.Admitted = append(plan.Admitted, item.ID)
			continue
		}
		plan.Rejected = append(plan.Rejected, item.ID)
		m.logger.Warn("task does not fit resource pools",
			"task", item.ID, "memory_mb", usage.MemoryMB, "cpu_cores", usage.CPUCores)
		if m.bus != nil {
			m.bus.Publish(event.NewResourceAllocationFailedEvent(item.ID, usage.MemoryMB, usage.CPUCores))
		}
	}
	return plan
}

// ---- Bottleneck detection ----

// DetectBottlenecks grades resource pressure from the latest snapshot.
func (m *Monitor) DetectBottlenecks() []Bottleneck {
	return DetectBottlenecksFor(m.Snapshot())
}

// DetectBottlenecksFor grades resource pressure for an arbitrary
// snapshot. Advisory only; never blocks allocation.
func DetectBottlenecksFor(snap Snapshot) []Bottleneck {
	var found []Bottleneck
	if snap.CPU.Usage > cpuBottleneckThreshold {
		found = append(found, Bottleneck{
			Resource:    "cpu",
			Severity:    event.SeverityMedium,
			Utilization: snap.CPU.Usage,
			Impact:      "task throughput degraded, queue times growing",
		})
	}
	if snap.Memory.TotalMB > 0 {
		memUsage := snap.Memory.UsedMB / snap.Memory.TotalMB
		if memUsage > memBottleneckThreshold {
			found = append(found, Bottleneck{
				Resource:    "memory",
				Severity:    event.SeverityHigh,
				Utilization: memUsage,
				Impact:      "risk of worker eviction, new workers cannot start",
			})
		}
	}
	if snap.Disk.Usage > diskBottleneckThreshold {
		found = append(found, Bottleneck{
			Resource:    "disk",
			Severity:    event.SeverityCritical,
			Utilization: snap.Disk.Usage,
			Impact:      "writes may fail, host stability at risk",
		})
	}
	return found
}

// SuggestOptimizations turns detected bottlenecks into actions, and
// suggests shrinking the pool when the host is mostly idle.
func (m *Monitor) SuggestOptimizations() []Suggestion {
	snap := m.Snapshot()
	var suggestions []Suggestion
	for _, b := range DetectBottlenecksFor(snap) {
		switch b.Resource {
		case "cpu":
			suggestions = append(suggestions, Suggestion{
				Action: "reduce concurrent workers or defer low-priority tasks",
				Reason: "cpu utilization above threshold",
			})
		case "memory":
			suggestions = append(suggestions, Suggestion{
				Action: "scale out to another host or lower per-worker memory",
				Reason: "memory utilization above threshold",
			})
		case "disk":
			suggestions = append(suggestions, Suggestion{
				Action: "free disk space before scheduling more work",
				Reason: "disk nearly full",
			})
		}
	}
	if snap.CPU.Usage > 0 && snap.CPU.Usage < 0.5 {
		suggestions = append(suggestions, Suggestion{
			Action: "scale down the worker pool",
			Reason: "host utilization below half capacity",
		})
	}
	return suggestions
}

// ---- Periodic sampling ----

// Start begins periodic sampling. Calling Start while the monitor is
// already running is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	m.logger.Info("resource monitoring started", "interval", interval.String())

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop halts periodic sampling and waits for the sampler to exit.
// Stopping a monitor that is not running is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("resource monitoring stopped")
}

// Running reports whether the periodic sampler is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) sample() {
	m.mu.Lock()
	m.latest, m.lastTick = takeSnapshot(m.lastTick)
	snap := m.latest
	m.mu.Unlock()

	if m.bus == nil {
		return
	}
	m.bus.Publish(event.NewResourceSnapshotEvent(
		snap.CPU.Usage,
		uint64(snap.Memory.UsedMB),
		uint64(snap.Memory.TotalMB),
		OptimalWorkersFor(snap),
	))
	for _, b := range DetectBottlenecksFor(snap) {
		m.logger.Warn("bottleneck detected",
			"resource", b.Resource, "severity", string(b.Severity), "utilization", b.Utilization)
		m.bus.Publish(event.NewBottleneckDetectedEvent(b.Resource, b.Severity, b.Utilization, b.Impact))
	}
}
