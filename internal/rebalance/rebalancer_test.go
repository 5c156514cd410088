package rebalance

import (
	"testing"
	"time"

	"github.com/fairlead/apportion/internal/event"
	"github.com/fairlead/apportion/internal/partition"
	"github.com/fairlead/apportion/internal/workload"
)

func twoShardPlan(t *testing.T) []workload.WorkShard {
	t.Helper()
	p := partition.New(nil)
	items := []workload.WorkItem{
		{ID: "a", Size: 10}, {ID: "b", Size: 10},
		{ID: "c", Size: 10}, {ID: "d", Size: 10},
	}
	shards := p.DivideBySize(items, 2)
	if len(shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(shards))
	}
	return shards
}

func TestSetPlanActivatesDrafts(t *testing.T) {
	r := New(nil)
	r.SetPlan(twoShardPlan(t))
	for _, s := range r.Plan() {
		if s.State != workload.ShardActive {
			t.Errorf("expected active shard, got %s", s.State)
		}
	}
}

func TestRebalanceNowMovesLaggardWork(t *testing.T) {
	bus := event.NewBus()
	rec := event.NewRecorder(bus)
	defer rec.Close()

	r := New(nil, WithBus(bus))
	plan := twoShardPlan(t)
	r.SetPlan(plan)

	r.Report(workload.RuntimeFeedback{
		ShardID: plan[0].ID, CompletedCount: 0, RemainingCount: 2, CurrentThroughput: 0.1,
	})
	r.Report(workload.RuntimeFeedback{
		ShardID: plan[1].ID, CompletedCount: 2, RemainingCount: 0, CurrentThroughput: 5,
	})

	if !r.RebalanceNow() {
		t.Fatal("expected a rebalance to happen")
	}

	var donor workload.WorkShard
	for _, s := range r.Plan() {
		if s.ID == plan[0].ID {
			donor = s
		}
	}
	if donor.Len() != 0 {
		t.Errorf("expected laggard drained, still holds %d items", donor.Len())
	}
	if donor.State != workload.ShardRebalanced {
		t.Errorf("expected rebalanced state, got %s", donor.State)
	}

	types := map[string]bool{}
	for _, e := range rec.Drain() {
		types[e.EventType()] = true
	}
	if !types["rebalance.started"] || !types["rebalance.completed"] {
		t.Errorf("expected rebalance events, recorded %v", types)
	}
}

func TestRebalanceNowNoLaggard(t *testing.T) {
	r := New(nil)
	plan := twoShardPlan(t)
	r.SetPlan(plan)

	// Even throughput: nothing to do.
	r.Report(workload.RuntimeFeedback{ShardID: plan[0].ID, RemainingCount: 2, CurrentThroughput: 3})
	r.Report(workload.RuntimeFeedback{ShardID: plan[1].ID, RemainingCount: 2, CurrentThroughput: 3.2})
	if r.RebalanceNow() {
		t.Error("expected no rebalance for even throughput")
	}
}

func TestStalledPoolFallsBackToLatestCompletion(t *testing.T) {
	r := New(nil)
	plan := twoShardPlan(t)
	r.SetPlan(plan)

	// Zero throughput everywhere: the shard expected to finish last
	// donates its outstanding work.
	now := time.Now()
	r.Report(workload.RuntimeFeedback{
		ShardID: plan[0].ID, RemainingCount: 1, CurrentThroughput: 0,
		EstimatedCompletion: now.Add(time.Hour),
	})
	r.Report(workload.RuntimeFeedback{
		ShardID: plan[1].ID, RemainingCount: 5, CurrentThroughput: 0,
		EstimatedCompletion: now.Add(6 * time.Hour),
	})

	if !r.RebalanceNow() {
		t.Fatal("expected stalled pool to rebalance on estimated completion")
	}
	var donor workload.WorkShard
	for _, s := range r.Plan() {
		if s.ID == plan[1].ID {
			donor = s
		}
	}
	if donor.State != workload.ShardRebalanced {
		t.Errorf("expected latest-finishing shard drained, state %s", donor.State)
	}
}

func TestStalledPoolWithoutEstimatesStaysPut(t *testing.T) {
	r := New(nil)
	plan := twoShardPlan(t)
	r.SetPlan(plan)

	r.Report(workload.RuntimeFeedback{ShardID: plan[0].ID, RemainingCount: 2, CurrentThroughput: 0})
	r.Report(workload.RuntimeFeedback{ShardID: plan[1].ID, RemainingCount: 2, CurrentThroughput: 0})
	if r.RebalanceNow() {
		t.Error("expected no rebalance without completion estimates")
	}
}

func TestRebalanceNeedsTwoReports(t *testing.T) {
	r := New(nil)
	plan := twoShardPlan(t)
	r.SetPlan(plan)
	r.Report(workload.RuntimeFeedback{ShardID: plan[0].ID, RemainingCount: 2, CurrentThroughput: 0.1})
	if r.RebalanceNow() {
		t.Error("expected no rebalance with a single report")
	}
}

func TestReportUnknownShardDropped(t *testing.T) {
	r := New(nil)
	r.SetPlan(twoShardPlan(t))
	r.Report(workload.RuntimeFeedback{ShardID: "ghost", CurrentThroughput: 0.1})
	r.Report(workload.RuntimeFeedback{ShardID: "ghost2", CurrentThroughput: 9})
	if r.RebalanceNow() {
		t.Error("expected dropped feedback to trigger nothing")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	r := New(nil)
	r.Start(10 * time.Millisecond)
	r.Start(10 * time.Millisecond)
	if !r.Running() {
		t.Error("expected sweep running")
	}
	r.Stop()
	r.Stop()
	if r.Running() {
		t.Error("expected sweep stopped")
	}
}
