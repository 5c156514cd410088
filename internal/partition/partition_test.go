package partition

import (
	"testing"
	"time"

	"github.com/fairlead/apportion/internal/errors"
	"github.com/fairlead/apportion/internal/resource"
	"github.com/fairlead/apportion/internal/workload"
)

func sizes(shards []workload.WorkShard) []float64 {
	out := make([]float64, len(shards))
	for i, s := range shards {
		out[i] = s.TotalSize
	}
	return out
}

func TestDivideBySizeBalances(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Size: 10},
		{ID: "b", Size: 20},
		{ID: "c", Size: 15},
		{ID: "d", Size: 5},
	}
	shards := p.DivideBySize(items, 2)
	if len(shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(shards))
	}
	total := shards[0].TotalSize + shards[1].TotalSize
	if total != 50 {
		t.Errorf("expected total 50, got %v", total)
	}
	// Greedy optimum for these inputs is a perfect 25/25 split.
	if shards[0].TotalSize != 25 || shards[1].TotalSize != 25 {
		t.Errorf("expected 25/25 split, got %v", sizes(shards))
	}
}

func TestDivideBySizeExactWorkerCount(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{{ID: "a", Size: 3}}
	shards := p.DivideBySize(items, 5)
	if len(shards) != 5 {
		t.Fatalf("expected 5 shards including empties, got %d", len(shards))
	}
	nonEmpty := 0
	for _, s := range shards {
		nonEmpty += s.Len()
	}
	if nonEmpty != 1 {
		t.Errorf("expected exactly 1 placed item, got %d", nonEmpty)
	}
}

func TestDivideBySizeZeroWorkers(t *testing.T) {
	p := New(nil)
	if shards := p.DivideBySize([]workload.WorkItem{{ID: "a"}}, 0); shards != nil {
		t.Errorf("expected no shards for zero workers, got %d", len(shards))
	}
}

func TestDivideBySizeFloorsNonPositive(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Size: -4},
		{ID: "b"},
		{ID: "c", Size: 2},
	}
	shards := p.DivideBySize(items, 2)
	var total float64
	for _, s := range shards {
		total += s.TotalSize
	}
	if total != 4 {
		t.Errorf("expected floored total 4, got %v", total)
	}
}

func TestDivideByComplexityThreshold(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Complexity: 1},
		{ID: "b", Complexity: 3},
		{ID: "c", Complexity: 6},
		{ID: "d", Complexity: 10},
	}
	shards := p.DivideByComplexity(items, 10)
	if len(shards) < 2 {
		t.Fatalf("expected at least 2 shards, got %d", len(shards))
	}
	placed := 0
	for _, s := range shards {
		placed += s.Len()
		if s.TotalComplexity > 10 && s.Len() > 1 {
			t.Errorf("shard exceeds threshold with %d items: %v", s.Len(), s.TotalComplexity)
		}
	}
	if placed != 4 {
		t.Errorf("expected all 4 items placed, got %d", placed)
	}
}

func TestDivideByComplexityIsolatesOversize(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "huge", Complexity: 25},
		{ID: "small", Complexity: 2},
	}
	shards := p.DivideByComplexity(items, 10)
	var soloFound bool
	for _, s := range shards {
		if s.Len() == 1 && s.Items[0].ID == "huge" {
			soloFound = true
		}
	}
	if !soloFound {
		t.Errorf("expected oversize item isolated in its own shard: %+v", shards)
	}
}

func TestDivideByDependenciesLevels(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"c"}},
		{ID: "c"},
		{ID: "d"},
	}
	shards, err := p.DivideByDependencies(items, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shards) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(shards))
	}

	tier := map[string]int{}
	for i, s := range shards {
		for _, item := range s.Items {
			tier[item.ID] = i
		}
	}
	// Every dependency sits in an earlier tier than its dependent.
	for _, item := range items {
		for _, dep := range item.Dependencies {
			if tier[dep] >= tier[item.ID] {
				t.Errorf("dependency %s (tier %d) not before %s (tier %d)",
					dep, tier[dep], item.ID, tier[item.ID])
			}
		}
	}
	if tier["c"] != 0 || tier["d"] != 0 {
		t.Errorf("expected roots in tier 0, got %v", tier)
	}
}

func TestDivideByDependenciesRejectsCycle(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}
	_, err := p.DivideByDependencies(items, nil)
	if !errors.Is(err, errors.ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestDivideByResourceNeedsBoundsWorkers(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Size: 1}, {ID: "b", Size: 1}, {ID: "c", Size: 1},
	}
	snap := resource.Snapshot{
		CPU:    resource.CPUInfo{Cores: 8},
		Memory: resource.MemoryInfo{AvailableMB: 1024}, // bounds to 2 workers
	}
	shards := p.DivideByResourceNeeds(items, snap)
	if len(shards) != 2 {
		t.Errorf("expected memory-bounded 2 shards, got %d", len(shards))
	}

	// A starved host still gets one shard so nothing is dropped.
	starved := resource.Snapshot{CPU: resource.CPUInfo{Cores: 0}}
	shards = p.DivideByResourceNeeds(items, starved)
	if len(shards) != 1 || shards[0].Len() != 3 {
		t.Errorf("expected a single catch-all shard, got %+v", shards)
	}
}

func TestRebalanceMovesOutstandingItems(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{
		{ID: "a", Size: 10}, {ID: "b", Size: 10},
		{ID: "c", Size: 10}, {ID: "d", Size: 10},
	}
	shards := p.DivideBySize(items, 2)
	donor := shards[0]

	rebalanced := p.Rebalance(shards, workload.RuntimeFeedback{
		ShardID:        donor.ID,
		CompletedCount: 1,
		RemainingCount: donor.Len() - 1,
	})

	// Inputs untouched.
	if shards[0].Len() != 2 || shards[0].State != workload.ShardDraft {
		t.Errorf("input shard mutated: %+v", shards[0])
	}

	var newDonor, other workload.WorkShard
	for _, s := range rebalanced {
		if s.ID == donor.ID {
			newDonor = s
		} else {
			other = s
		}
	}
	if newDonor.Len() != 1 {
		t.Errorf("expected donor to keep its completed item, got %d items", newDonor.Len())
	}
	if newDonor.State != workload.ShardRebalanced {
		t.Errorf("expected donor state rebalanced, got %s", newDonor.State)
	}
	if other.Len() != 3 {
		t.Errorf("expected receiver to hold 3 items, got %d", other.Len())
	}

	// Item count is conserved.
	total := 0
	for _, s := range rebalanced {
		total += s.Len()
	}
	if total != 4 {
		t.Errorf("expected 4 items after rebalance, got %d", total)
	}
}

func TestRebalanceUnknownShardIsNoop(t *testing.T) {
	p := New(nil)
	shards := p.DivideBySize([]workload.WorkItem{{ID: "a"}, {ID: "b"}}, 2)
	out := p.Rebalance(shards, workload.RuntimeFeedback{ShardID: "nope"})
	if len(out) != 2 || out[0].Len() != shards[0].Len() {
		t.Errorf("expected unchanged plan, got %+v", out)
	}
}

func TestOptimizeDistributionNoop(t *testing.T) {
	p := New(nil)
	items := []workload.WorkItem{{ID: "a", Size: 9}, {ID: "b", Size: 1}}
	shards := p.DivideBySize(items, 2)
	balance, efficiency := Balance(shards)
	d := Distribution{Shards: shards, Balance: balance, Efficiency: efficiency}

	// Already balanced: untouched.
	good := Distribution{Shards: shards, Balance: 0.95, Efficiency: 0.9}
	if out := p.OptimizeDistribution(good, SystemMetrics{ThroughputPerSec: 50}); out.Balance != 0.95 {
		t.Errorf("expected well-balanced plan returned unchanged, got %+v", out)
	}

	// Constrained system: deferred even though the plan is skewed.
	constrained := SystemMetrics{ThroughputPerSec: 0.2}
	if out := p.OptimizeDistribution(d, constrained); out.Balance != d.Balance {
		t.Errorf("expected optimization deferred under low throughput")
	}

	// Healthy system with a skewed plan: repacked and rescored.
	healthy := SystemMetrics{ThroughputPerSec: 20, AvgLatency: 100 * time.Millisecond}
	out := p.OptimizeDistribution(d, healthy)
	if len(out.Shards) != 2 {
		t.Errorf("expected shard count preserved, got %d", len(out.Shards))
	}
	if out.Balance < d.Balance {
		t.Errorf("expected balance not to regress: %v -> %v", d.Balance, out.Balance)
	}
}

func TestBalanceScores(t *testing.T) {
	even := []workload.WorkShard{{TotalSize: 10, Items: make([]workload.WorkItem, 1)},
		{TotalSize: 10, Items: make([]workload.WorkItem, 1)}}
	if b, e := Balance(even); b != 1 || e != 1 {
		t.Errorf("expected perfect scores for even shards, got %v/%v", b, e)
	}
	if b, _ := Balance(nil); b != 1 {
		t.Errorf("expected 1 for empty plan, got %v", b)
	}
}
