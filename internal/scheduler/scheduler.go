// Package scheduler wires the planning components into a single owned
// state object. Each Scheduler instance carries its own worker
// registry, history, event bus, and monitors, so independent
// schedulers never share state.
package scheduler

import (
	"sync"
	"time"

	"github.com/fairlead/apportion/internal/allocator"
	"github.com/fairlead/apportion/internal/config"
	"github.com/fairlead/apportion/internal/event"
	"github.com/fairlead/apportion/internal/history"
	"github.com/fairlead/apportion/internal/logging"
	"github.com/fairlead/apportion/internal/partition"
	"github.com/fairlead/apportion/internal/rebalance"
	"github.com/fairlead/apportion/internal/resource"
	"github.com/fairlead/apportion/internal/workload"
)

// Scheduler owns the full planning pipeline for one workload.
type Scheduler struct {
	cfg         *config.Config
	logger      *logging.Logger
	bus         *event.Bus
	history     *history.Estimator
	analyzer    *workload.Analyzer
	partitioner *partition.Partitioner
	monitor     *resource.Monitor
	allocator   *allocator.Allocator
	rebalancer  *rebalance.Rebalancer

	mu      sync.Mutex
	classes map[string]string // task ID -> class, for completion feedback
	started bool
}

// New assembles a scheduler from the given configuration. A nil config
// uses the defaults; a nil logger discards output.
func New(cfg *config.Config, logger *logging.Logger) *Scheduler {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	bus := event.NewBus()
	hist := history.NewEstimator()

	opts := []workload.AnalyzerOption{
		workload.WithBaseUnit(cfg.Scheduler.BaseUnit()),
	}
	if cfg.History.Enabled {
		opts = append(opts, workload.WithHistory(hist))
	}
	analyzer := workload.NewAnalyzer(opts...)
	partitioner := partition.New(analyzer)

	return &Scheduler{
		cfg:         cfg,
		logger:      logger.WithComponent("scheduler"),
		bus:         bus,
		history:     hist,
		analyzer:    analyzer,
		partitioner: partitioner,
		monitor: resource.NewMonitor(
			resource.WithBus(bus),
			resource.WithLogger(logger),
		),
		allocator: allocator.New(
			allocator.WithStrategy(allocator.Strategy(cfg.Scheduler.Strategy)),
			allocator.WithAnalyzer(analyzer),
			allocator.WithBus(bus),
			allocator.WithLogger(logger),
		),
		rebalancer: rebalance.New(partitioner,
			rebalance.WithBus(bus),
			rebalance.WithLogger(logger),
		),
		classes: make(map[string]string),
	}
}

// Start launches the background samplers enabled in the configuration.
// Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.cfg.Monitor.Enabled {
		s.monitor.Start(s.cfg.Monitor.Interval())
	}
	if s.cfg.Rebalance.Enabled {
		s.rebalancer.Start(s.cfg.Rebalance.Interval())
	}
	s.logger.Info("scheduler started", "strategy", s.cfg.Scheduler.Strategy)
}

// Close stops the background samplers and drops all subscriptions.
func (s *Scheduler) Close() {
	s.monitor.Stop()
	s.rebalancer.Stop()
	s.bus.Clear()
	s.logger.Info("scheduler closed")
}

// Bus exposes the event bus for subscribers.
func (s *Scheduler) Bus() *event.Bus {
	return s.bus
}

// Monitor exposes the resource monitor for capacity queries.
func (s *Scheduler) Monitor() *resource.Monitor {
	return s.monitor
}

// ---- Analysis and planning ----

// Analyze enriches the items and returns the aggregate view.
func (s *Scheduler) Analyze(items []workload.WorkItem) workload.Analysis {
	return s.analyzer.Analyze(items)
}

// Plan partitions items into the active shard plan. With a fixed
// worker count configured it divides by size; otherwise the host's
// resource budget bounds the shard count.
func (s *Scheduler) Plan(items []workload.WorkItem) []workload.WorkShard {
	var shards []workload.WorkShard
	if workers := s.cfg.Scheduler.Workers; workers > 0 {
		shards = s.partitioner.DivideBySize(items, workers)
	} else {
		shards = s.partitioner.DivideByResourceNeeds(items, s.monitor.Snapshot())
	}
	s.rebalancer.SetPlan(shards)
	return s.rebalancer.Plan()
}

// PlanByComplexity partitions items under the configured complexity
// threshold and installs the result as the active plan.
func (s *Scheduler) PlanByComplexity(items []workload.WorkItem) []workload.WorkShard {
	shards := s.partitioner.DivideByComplexity(items, s.cfg.Scheduler.ComplexityThreshold)
	s.rebalancer.SetPlan(shards)
	return s.rebalancer.Plan()
}

// PlanByDependencies partitions items into dependency tiers and
// installs the result as the active plan. Cyclic inputs leave the
// current plan in place.
func (s *Scheduler) PlanByDependencies(items []workload.WorkItem) ([]workload.WorkShard, error) {
	shards, err := s.partitioner.DivideByDependencies(items, nil)
	if err != nil {
		return nil, err
	}
	s.rebalancer.SetPlan(shards)
	return s.rebalancer.Plan(), nil
}

// ---- Workers ----

// RegisterWorker adds a worker to the pool.
func (s *Scheduler) RegisterWorker(profile allocator.WorkerProfile) error {
	return s.allocator.RegisterWorker(profile)
}

// UnregisterWorker removes a worker; its in-flight tasks return to the
// pending queue.
func (s *Scheduler) UnregisterWorker(workerID string) ([]string, error) {
	return s.allocator.UnregisterWorker(workerID)
}

// Workers lists the registered worker profiles.
func (s *Scheduler) Workers() []allocator.WorkerProfile {
	return s.allocator.Workers()
}

// ---- Task lifecycle ----

// Submit allocates a task to a worker, or queues it when nothing fits.
func (s *Scheduler) Submit(item workload.WorkItem) (allocator.AllocationResult, error) {
	s.mu.Lock()
	s.classes[item.ID] = item.EffectiveClass()
	s.mu.Unlock()
	return s.allocator.Allocate(item)
}

// Complete reports a task's outcome. Successful completions feed the
// class history so future estimates learn from observed durations.
func (s *Scheduler) Complete(taskID string, actual time.Duration, success bool) error {
	if err := s.allocator.Deallocate(taskID, actual, success); err != nil {
		return err
	}
	if success && s.cfg.History.Enabled {
		s.mu.Lock()
		class, ok := s.classes[taskID]
		delete(s.classes, taskID)
		s.mu.Unlock()
		if ok {
			s.history.Record(class, actual)
		}
	}
	return nil
}

// Queued lists tasks waiting for worker capacity.
func (s *Scheduler) Queued() []string {
	return s.allocator.QueuedTasks()
}

// ---- Runtime feedback ----

// Feedback records shard progress for the rebalancer.
func (s *Scheduler) Feedback(fb workload.RuntimeFeedback) {
	s.rebalancer.Report(fb)
}

// RebalanceNow forces an immediate laggard evaluation. Returns true
// when the plan changed.
func (s *Scheduler) RebalanceNow() bool {
	return s.rebalancer.RebalanceNow()
}

// ActivePlan returns the current shard plan.
func (s *Scheduler) ActivePlan() []workload.WorkShard {
	return s.rebalancer.Plan()
}
