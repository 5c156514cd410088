// Package allocator binds work items to registered workers.
//
// Workers advertise capacity in effort hours; a task's effort is its
// estimated duration. Allocation filters to available workers with
// room for the task, then picks one by the configured strategy. Tasks
// with no qualifying worker are queued, not lost, and retried whenever
// capacity frees up.
package allocator

import (
	"sort"
	"sync"
	"time"

	"github.com/fairlead/apportion/internal/errors"
	"github.com/fairlead/apportion/internal/event"
	"github.com/fairlead/apportion/internal/logging"
	"github.com/fairlead/apportion/internal/workload"
)

// Strategy selects among qualifying workers.
type Strategy string

const (
	// StrategyRoundRobin takes the first qualifying worker in rotation.
	StrategyRoundRobin Strategy = "round-robin"

	// StrategySpecialized prefers workers whose specialization patterns
	// match the task's class.
	StrategySpecialized Strategy = "specialized"

	// StrategyPerformance prefers the highest performance score.
	StrategyPerformance Strategy = "performance"

	// StrategyLoadBalanced prefers the lowest load ratio. Default.
	StrategyLoadBalanced Strategy = "load-balanced"
)

// ValidStrategies lists the accepted strategy names.
func ValidStrategies() []Strategy {
	return []Strategy{StrategyRoundRobin, StrategySpecialized, StrategyPerformance, StrategyLoadBalanced}
}

// AllocationResult reports a successful binding.
type AllocationResult struct {
	TaskID              string
	WorkerID            string
	Confidence          float64
	EstimatedCompletion time.Duration
	Alternatives        []string // up to 3 worker IDs, best first
}

// maxAlternatives bounds the ranked fallback list.
const maxAlternatives = 3

// Allocator owns the worker registry and the pending-task queue.
type Allocator struct {
	mu       sync.Mutex
	workers  map[string]*worker
	order    []string // registration order, for round-robin
	rrNext   int
	queue    []workload.WorkItem
	analyzer *workload.Analyzer
	strategy Strategy
	bus      *event.Bus
	logger   *logging.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithStrategy sets the selection strategy. Unknown names keep the
// load-balanced default.
func WithStrategy(s Strategy) Option {
	return func(a *Allocator) {
		switch s {
		case StrategyRoundRobin, StrategySpecialized, StrategyPerformance, StrategyLoadBalanced:
			a.strategy = s
		}
	}
}

// WithAnalyzer supplies the analyzer used for effort estimation.
func WithAnalyzer(an *workload.Analyzer) Option {
	return func(a *Allocator) {
		if an != nil {
			a.analyzer = an
		}
	}
}

// WithBus publishes allocation lifecycle events to the given bus.
func WithBus(bus *event.Bus) Option {
	return func(a *Allocator) {
		a.bus = bus
	}
}

// WithLogger attaches a logger. Defaults to the no-op logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger.WithComponent("allocator")
		}
	}
}

// New creates an allocator with the load-balanced strategy.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		workers:  make(map[string]*worker),
		analyzer: workload.NewAnalyzer(),
		strategy: StrategyLoadBalanced,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allocator) publish(e event.Event) {
	if a.bus != nil {
		a.bus.Publish(e)
	}
}

// ---- Registry ----

// RegisterWorker adds a worker to the pool, then retries queued tasks
// against the new capacity. Re-registering an ID replaces the profile
// but keeps its in-flight bookkeeping.
func (a *Allocator) RegisterWorker(profile WorkerProfile) error {
	if profile.ID == "" {
		return errors.NewValidationError("worker id must not be empty").WithField("id")
	}
	if profile.Capacity <= 0 {
		return errors.NewValidationError("worker capacity must be positive").
			WithField("capacity").WithValue(profile.Capacity)
	}

	a.mu.Lock()
	if existing, ok := a.workers[profile.ID]; ok {
		inFlight := existing.inFlight
		load := existing.profile.CurrentLoad
		replacement := newWorker(profile)
		replacement.inFlight = inFlight
		replacement.profile.CurrentLoad = load
		a.workers[profile.ID] = replacement
	} else {
		a.workers[profile.ID] = newWorker(profile)
		a.order = append(a.order, profile.ID)
	}
	a.mu.Unlock()

	a.logger.Info("worker registered", "worker", profile.ID, "capacity", profile.Capacity)
	a.publish(event.NewWorkerRegisteredEvent(profile.ID, profile.Capacity))
	a.retryQueued()
	return nil
}

// UnregisterWorker removes a worker and returns its in-flight task IDs
// to the pending queue.
func (a *Allocator) UnregisterWorker(workerID string) ([]string, error) {
	a.mu.Lock()
	w, ok := a.workers[workerID]
	if !ok {
		a.mu.Unlock()
		return nil, errors.NewNotFoundError("worker", workerID)
	}
	delete(a.workers, workerID)
	for i, id := range a.order {
		if id == workerID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}

	requeued := make([]string, 0, len(w.inFlight))
	for taskID, effort := range w.inFlight {
		requeued = append(requeued, taskID)
		a.queue = append(a.queue, workload.WorkItem{
			ID:                taskID,
			EstimatedDuration: time.Duration(effort * float64(time.Hour)),
		})
	}
	sort.Strings(requeued)
	a.mu.Unlock()

	a.logger.Info("worker unregistered", "worker", workerID, "requeued", len(requeued))
	a.publish(event.NewWorkerUnregisteredEvent(workerID, requeued))
	return requeued, nil
}

// Worker returns a copy of the worker's current profile.
func (a *Allocator) Worker(workerID string) (WorkerProfile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.workers[workerID]
	if !ok {
		return WorkerProfile{}, errors.NewNotFoundError("worker", workerID)
	}
	return w.profile, nil
}

// Workers returns copies of all registered profiles in registration order.
func (a *Allocator) Workers() []WorkerProfile {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]WorkerProfile, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.workers[id].profile)
	}
	return out
}

// SetAvailability updates a worker's readiness state.
func (a *Allocator) SetAvailability(workerID string, state Availability) error {
	a.mu.Lock()
	w, ok := a.workers[workerID]
	if !ok {
		a.mu.Unlock()
		return errors.NewNotFoundError("worker", workerID)
	}
	w.profile.Availability = state
	a.mu.Unlock()

	if state == WorkerAvailable {
		a.retryQueued()
	}
	return nil
}

// ---- Allocation ----

// Effort returns the task's estimated effort in hours.
func (a *Allocator) Effort(item workload.WorkItem) float64 {
	return a.analyzer.EstimateDuration(item).Hours()
}

// Allocate binds a task to a worker. When no available worker has
// spare capacity for the task's effort it is queued and a
// *errors.NoAvailableWorkerError comes back.
func (a *Allocator) Allocate(item workload.WorkItem) (AllocationResult, error) {
	effort := a.Effort(item)
	a.publish(event.NewAllocationStartedEvent(item.ID, effort))

	a.mu.Lock()
	result, err := a.allocateLocked(item, effort)
	var rejectedBy string
	if err != nil {
		// An available worker without room means the task was rejected
		// on capacity, not pool emptiness.
		for _, id := range a.order {
			if a.workers[id].profile.Availability == WorkerAvailable {
				rejectedBy = id
				break
			}
		}
	}
	a.mu.Unlock()

	if err != nil {
		if rejectedBy != "" {
			a.publish(event.NewAllocationRejectedEvent(item.ID, rejectedBy, "would exceed capacity"))
		}
		a.logger.Warn("no worker available, task queued", "task", item.ID, "effort_hours", effort)
		a.publish(event.NewTaskQueuedEvent(item.ID, "no available worker"))
		return AllocationResult{}, err
	}

	a.logger.Info("task allocated",
		"task", item.ID, "worker", result.WorkerID, "confidence", result.Confidence)
	a.publish(event.NewAllocationCompletedEvent(
		result.TaskID, result.WorkerID, result.Confidence, result.EstimatedCompletion))
	return result, nil
}

// allocateLocked performs selection and the load mutation under the
// allocator lock, keeping capacity checks serialized.
func (a *Allocator) allocateLocked(item workload.WorkItem, effort float64) (AllocationResult, error) {
	candidates := a.qualifying(effort)
	if len(candidates) == 0 {
		a.queue = append(a.queue, item)
		return AllocationResult{}, errors.NewNoAvailableWorkerError(item.ID, effort)
	}

	ranked := a.rank(candidates, item)
	chosen := ranked[0]

	chosen.profile.CurrentLoad += effort
	chosen.inFlight[item.ID] = effort
	if chosen.spareCapacity() <= 0 {
		chosen.profile.Availability = WorkerBusy
	}

	var alternatives []string
	for _, w := range ranked[1:] {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, w.profile.ID)
	}

	return AllocationResult{
		TaskID:              item.ID,
		WorkerID:            chosen.profile.ID,
		Confidence:          a.confidence(chosen, item),
		EstimatedCompletion: eta(effort, chosen),
		Alternatives:        alternatives,
	}, nil
}

// qualifying returns available workers with spare capacity for the
// effort, in registration order.
func (a *Allocator) qualifying(effort float64) []*worker {
	var out []*worker
	for _, id := range a.order {
		w := a.workers[id]
		if w.profile.Availability != WorkerAvailable {
			continue
		}
		if w.spareCapacity() < effort {
			continue
		}
		out = append(out, w)
	}
	return out
}

// rank orders candidates best-first according to the strategy.
func (a *Allocator) rank(candidates []*worker, item workload.WorkItem) []*worker {
	ranked := make([]*worker, len(candidates))
	copy(ranked, candidates)

	switch a.strategy {
	case StrategyRoundRobin:
		if n := len(ranked); n > 0 {
			offset := a.rrNext % n
			a.rrNext++
			ranked = append(ranked[offset:], ranked[:offset]...)
		}
	case StrategySpecialized:
		class := item.EffectiveClass()
		sort.SliceStable(ranked, func(i, j int) bool {
			si := float64(ranked[i].matches(class))*10 + ranked[i].profile.PerformanceScore
			sj := float64(ranked[j].matches(class))*10 + ranked[j].profile.PerformanceScore
			return si > sj
		})
	case StrategyPerformance:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].profile.PerformanceScore > ranked[j].profile.PerformanceScore
		})
	default: // load-balanced
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].loadRatio() < ranked[j].loadRatio()
		})
	}
	return ranked
}

// confidence scores how reliable the binding is expected to be.
func (a *Allocator) confidence(w *worker, item workload.WorkItem) float64 {
	score := 0.5
	if w.profile.PerformanceScore > 0.9 {
		score += 0.2
	}
	if w.profile.CompletedTasks > 10 {
		score += 0.1
	}
	specialization := 0.1 * float64(w.matches(item.EffectiveClass()))
	if specialization > 0.2 {
		specialization = 0.2
	}
	score += specialization
	if score > 1 {
		score = 1
	}
	return score
}

// eta converts effort hours into wall time, stretched by the worker's
// performance and current load.
func eta(effort float64, w *worker) time.Duration {
	hours := effort * (2 - w.profile.PerformanceScore) * (1 + w.loadRatio()*0.5)
	return time.Duration(hours * float64(time.Hour))
}

// ---- Completion ----

// Deallocate releases the task's load from its worker, updates the
// worker's completion statistics, and retries queued tasks against the
// freed capacity.
func (a *Allocator) Deallocate(taskID string, actual time.Duration, success bool) error {
	a.mu.Lock()
	var owner *worker
	for _, w := range a.workers {
		if _, ok := w.inFlight[taskID]; ok {
			owner = w
			break
		}
	}
	if owner == nil {
		a.mu.Unlock()
		return errors.NewNotFoundError("task", taskID)
	}

	effort := owner.inFlight[taskID]
	delete(owner.inFlight, taskID)
	owner.profile.CurrentLoad -= effort
	if owner.profile.CurrentLoad < 0 {
		owner.profile.CurrentLoad = 0
	}
	if owner.profile.Availability == WorkerBusy {
		owner.profile.Availability = WorkerAvailable
	}
	if success {
		prior := owner.profile.AverageCompletionTime * time.Duration(owner.profile.CompletedTasks)
		owner.profile.CompletedTasks++
		owner.profile.AverageCompletionTime = (prior + actual) / time.Duration(owner.profile.CompletedTasks)
	}
	workerID := owner.profile.ID
	a.mu.Unlock()

	a.logger.Info("task deallocated", "task", taskID, "worker", workerID, "success", success)
	a.publish(event.NewTaskCompletedEvent(taskID, workerID, actual, success))
	a.retryQueued()
	return nil
}

// ---- Queue ----

// QueuedTasks returns the IDs of tasks waiting for capacity.
func (a *Allocator) QueuedTasks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.queue))
	for i, item := range a.queue {
		out[i] = item.ID
	}
	return out
}

// claimOrder sorts pending tasks by dependency level, then descending
// priority, so prerequisites and urgent work claim freed capacity
// first. Cyclic references among queued tasks collapse to level 0
// rather than blocking the pass.
func (a *Allocator) claimOrder(pending []workload.WorkItem) {
	graph := a.analyzer.BuildGraph(pending)
	levels := make(map[string]int, len(pending))
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if lvl, ok := levels[id]; ok {
			return lvl
		}
		levels[id] = 0 // guards cycles during the walk
		lvl := 0
		for _, dep := range graph.Dependencies(id) {
			if dl := levelOf(dep) + 1; dl > lvl {
				lvl = dl
			}
		}
		levels[id] = lvl
		return lvl
	}
	for _, item := range pending {
		levelOf(item.ID)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if li, lj := levels[pending[i].ID], levels[pending[j].ID]; li != lj {
			return li < lj
		}
		return pending[i].Priority > pending[j].Priority
	})
}

// retryQueued attempts to place queued tasks in claim order. Tasks
// that still do not fit stay queued without re-emitting queue events.
func (a *Allocator) retryQueued() {
	a.mu.Lock()
	pending := a.queue
	a.queue = nil
	a.claimOrder(pending)

	var placed []AllocationResult
	for _, item := range pending {
		result, err := a.allocateLocked(item, a.Effort(item))
		if err != nil {
			continue // allocateLocked requeued it
		}
		placed = append(placed, result)
	}
	a.mu.Unlock()

	for _, result := range placed {
		a.logger.Info("queued task allocated", "task", result.TaskID, "worker", result.WorkerID)
		a.publish(event.NewAllocationCompletedEvent(
			result.TaskID, result.WorkerID, result.Confidence, result.EstimatedCompletion))
	}
}
