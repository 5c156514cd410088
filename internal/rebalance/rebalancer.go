// Package rebalance watches shard progress and moves outstanding work
// away from laggards.
//
// The rebalancer owns the active shard plan. Execution feedback flows
// in through Report; either a periodic sweep or an explicit
// RebalanceNow call compares per-shard throughput and hands the
// slowest shard's remaining items to the partitioner for
// redistribution. Plans are replaced wholesale; callers drain
// in-flight work before applying a new plan.
package rebalance

import (
	"sync"
	"time"

	"github.com/fairlead/apportion/internal/event"
	"github.com/fairlead/apportion/internal/logging"
	"github.com/fairlead/apportion/internal/partition"
	"github.com/fairlead/apportion/internal/workload"
)

// laggardRatio marks a shard as slow when its throughput falls below
// this fraction of the mean across reporting shards.
const laggardRatio = 0.5

// Rebalancer redistributes outstanding work using runtime feedback.
type Rebalancer struct {
	mu          sync.Mutex
	partitioner *partition.Partitioner
	bus         *event.Bus
	logger      *logging.Logger
	shards      []workload.WorkShard
	feedback    map[string]workload.RuntimeFeedback
	stop        chan struct{}
	done        chan struct{}
	running     bool
}

// Option configures a Rebalancer.
type Option func(*Rebalancer)

// WithBus publishes rebalance lifecycle events to the given bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Rebalancer) {
		r.bus = bus
	}
}

// WithLogger attaches a logger. Defaults to the no-op logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Rebalancer) {
		if logger != nil {
			r.logger = logger.WithComponent("rebalance")
		}
	}
}

// New creates a rebalancer around the given partitioner. A nil
// partitioner gets a default one.
func New(p *partition.Partitioner, opts ...Option) *Rebalancer {
	if p == nil {
		p = partition.New(nil)
	}
	r := &Rebalancer{
		partitioner: p,
		logger:      logging.NopLogger(),
		feedback:    make(map[string]workload.RuntimeFeedback),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPlan replaces the active shard plan and clears stale feedback.
// Draft shards are activated.
func (r *Rebalancer) SetPlan(shards []workload.WorkShard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shards = make([]workload.WorkShard, len(shards))
	copy(r.shards, shards)
	for i := range r.shards {
		if r.shards[i].State == workload.ShardDraft {
			r.shards[i].State = workload.ShardActive
		}
	}
	r.feedback = make(map[string]workload.RuntimeFeedback)
}

// Plan returns a copy of the active shard plan.
func (r *Rebalancer) Plan() []workload.WorkShard {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workload.WorkShard, len(r.shards))
	copy(out, r.shards)
	return out
}

// Report records the latest feedback for a shard. Feedback naming a
// shard outside the active plan is dropped.
func (r *Rebalancer) Report(fb workload.RuntimeFeedback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shards {
		if s.ID == fb.ShardID {
			r.feedback[fb.ShardID] = fb
			return
		}
	}
	r.logger.Debug("feedback for unknown shard dropped", "shard", fb.ShardID)
}

// laggardLocked picks the slowest shard with outstanding work, or nil
// when throughput is even enough to leave the plan alone. Needs at
// least two reporting shards for a meaningful comparison.
func (r *Rebalancer) laggardLocked() *workload.RuntimeFeedback {
	if len(r.feedback) < 2 {
		return nil
	}
	var sum float64
	for _, fb := range r.feedback {
		sum += fb.CurrentThroughput
	}
	mean := sum / float64(len(r.feedback))
	if mean <= 0 {
		// Uniformly stalled pool: throughput cannot separate the
		// shards, so fall back to the latest estimated completion
		// among those with outstanding work.
		var worst *workload.RuntimeFeedback
		for id := range r.feedback {
			fb := r.feedback[id]
			if fb.RemainingCount == 0 || fb.EstimatedCompletion.IsZero() {
				continue
			}
			if worst == nil || fb.EstimatedCompletion.After(worst.EstimatedCompletion) {
				worst = &fb
			}
		}
		return worst
	}

	var worst *workload.RuntimeFeedback
	for id := range r.feedback {
		fb := r.feedback[id]
		if fb.RemainingCount == 0 {
			continue
		}
		if fb.CurrentThroughput >= mean*laggardRatio {
			continue
		}
		if worst == nil || fb.CurrentThroughput < worst.CurrentThroughput ||
			(fb.CurrentThroughput == worst.CurrentThroughput &&
				fb.EstimatedCompletion.After(worst.EstimatedCompletion)) {
			worst = &fb
		}
	}
	return worst
}

// RebalanceNow evaluates the recorded feedback and, when a laggard
// exists, redistributes its outstanding items. Returns true when the
// plan changed.
func (r *Rebalancer) RebalanceNow() bool {
	r.mu.Lock()
	worst := r.laggardLocked()
	if worst == nil {
		r.mu.Unlock()
		return false
	}
	fb := *worst
	shards := r.shards
	r.mu.Unlock()

	r.logger.Info("rebalancing away from laggard",
		"shard", fb.ShardID, "throughput", fb.CurrentThroughput, "remaining", fb.RemainingCount)
	if r.bus != nil {
		r.bus.Publish(event.NewRebalanceStartedEvent(fb.ShardID, "throughput below pool mean"))
	}

	rebalanced := r.partitioner.Rebalance(shards, fb)

	moved := 0
	for i := range shards {
		if shards[i].ID == fb.ShardID {
			for j := range rebalanced {
				if rebalanced[j].ID == fb.ShardID {
					moved = shards[i].Len() - rebalanced[j].Len()
				}
			}
		}
	}

	r.mu.Lock()
	r.shards = rebalanced
	delete(r.feedback, fb.ShardID)
	r.mu.Unlock()

	r.logger.Info("rebalance applied", "shard", fb.ShardID, "moved", moved)
	if r.bus != nil {
		r.bus.Publish(event.NewRebalanceCompletedEvent(fb.ShardID, moved, len(rebalanced)))
	}
	return true
}

// ---- Periodic sweep ----

// Start begins periodic rebalance sweeps. Starting a running
// rebalancer is a no-op.
func (r *Rebalancer) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	stop, done := r.stop, r.done
	r.mu.Unlock()

	r.logger.Info("rebalance sweep started", "interval", interval.String())

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.RebalanceNow()
			}
		}
	}()
}

// Stop halts the periodic sweep and waits for it to exit.
func (r *Rebalancer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("rebalance sweep stopped")
}

// Running reports whether the periodic sweep is active.
func (r *Rebalancer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
