// Package partition divides sets of work items into execution shards.
//
// Four strategies are offered: by size (least-loaded greedy), by
// complexity bound, by dependency level, and by host resource budget.
// All of them are pure over their inputs; shard plans are values the
// caller applies or discards.
package partition

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fairlead/apportion/internal/resource"
	"github.com/fairlead/apportion/internal/workload"
)

// DefaultComplexityThreshold caps a shard's complexity budget when the
// caller passes a non-positive threshold.
const DefaultComplexityThreshold = 10.0

// Partitioner produces shard plans from work item sets.
type Partitioner struct {
	analyzer *workload.Analyzer
}

// New creates a partitioner. A nil analyzer gets a default one.
func New(analyzer *workload.Analyzer) *Partitioner {
	if analyzer == nil {
		analyzer = workload.NewAnalyzer()
	}
	return &Partitioner{analyzer: analyzer}
}

func newShard(index int) *workload.WorkShard {
	return &workload.WorkShard{
		ID:          fmt.Sprintf("shard-%s", uuid.NewString()[:8]),
		WorkerIndex: index,
		State:       workload.ShardDraft,
	}
}

func (p *Partitioner) addItem(s *workload.WorkShard, item workload.WorkItem) {
	s.Add(item, p.analyzer.CalculateComplexity(item), p.analyzer.EstimateDuration(item))
}

func finalize(shards []*workload.WorkShard) []workload.WorkShard {
	out := make([]workload.WorkShard, len(shards))
	for i, s := range shards {
		out[i] = *s
	}
	return out
}

// ---- By size ----

// DivideBySize splits items across exactly workerCount shards, largest
// items first, each assigned to the shard with the smallest running
// total. A non-positive worker count yields no shards. Empty shards
// are kept so the result length always equals workerCount.
func (p *Partitioner) DivideBySize(items []workload.WorkItem, workerCount int) []workload.WorkShard {
	if workerCount <= 0 {
		return nil
	}

	ordered := make([]workload.WorkItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectiveSize() > ordered[j].EffectiveSize()
	})

	shards := make([]*workload.WorkShard, workerCount)
	for i := range shards {
		shards[i] = newShard(i)
	}

	for _, item := range ordered {
		least := 0
		for i := 1; i < len(shards); i++ {
			if shards[i].TotalSize < shards[least].TotalSize {
				least = i
			}
		}
		p.addItem(shards[least], item)
	}
	return finalize(shards)
}

// ---- By complexity ----

// DivideByComplexity packs items into shards bounded by a complexity
// threshold, highest complexity first. An item whose own complexity
// exceeds the threshold gets a shard to itself rather than being
// dropped. Non-positive thresholds fall back to the default.
func (p *Partitioner) DivideByComplexity(items []workload.WorkItem, threshold float64) []workload.WorkShard {
	if len(items) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultComplexityThreshold
	}

	ordered := make([]workload.WorkItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return p.analyzer.CalculateComplexity(ordered[i]) > p.analyzer.CalculateComplexity(ordered[j])
	})

	var shards []*workload.WorkShard
	current := newShard(0)
	for _, item := range ordered {
		c := p.analyzer.CalculateComplexity(item)
		switch {
		case c > threshold:
			// Oversize items are isolated.
			if current.Len() > 0 {
				shards = append(shards, current)
			}
			solo := newShard(len(shards))
			p.addItem(solo, item)
			shards = append(shards, solo)
			current = newShard(len(shards))
		case current.TotalComplexity+c > threshold && current.Len() > 0:
			shards = append(shards, current)
			current = newShard(len(shards))
			p.addItem(current, item)
		default:
			p.addItem(current, item)
		}
	}
	if current.Len() > 0 {
		shards = append(shards, current)
	}
	for i, s := range shards {
		s.WorkerIndex = i
	}
	return finalize(shards)
}

// ---- By dependencies ----

// DivideByDependencies groups items into tiers by dependency depth:
// roots at level 0, every other item one past its deepest dependency.
// Shards come back in tier order so no shard depends on a later one.
// Cyclic graphs are rejected with a *errors.CycleError.
func (p *Partitioner) DivideByDependencies(items []workload.WorkItem, graph *workload.DependencyGraph) ([]workload.WorkShard, error) {
	if graph == nil {
		graph = p.analyzer.BuildGraph(items)
	}
	levels, err := p.Levels(graph)
	if err != nil {
		return nil, err
	}

	maxLevel := 0
	for _, item := range items {
		if lvl := levels[item.ID]; lvl > maxLevel {
			maxLevel = lvl
		}
	}

	shards := make([]*workload.WorkShard, maxLevel+1)
	for i := range shards {
		shards[i] = newShard(i)
	}
	for _, item := range items {
		p.addItem(shards[levels[item.ID]], item)
	}

	// Drop empty trailing tiers that appear when items were empty.
	var kept []*workload.WorkShard
	for _, s := range shards {
		if s.Len() > 0 {
			s.WorkerIndex = len(kept)
			kept = append(kept, s)
		}
	}
	return finalize(kept), nil
}

// Levels returns each item's dependency depth, for callers that need
// the tier assignment without the shards. The graph must be acyclic.
func (p *Partitioner) Levels(graph *workload.DependencyGraph) (map[string]int, error) {
	if err := p.analyzer.DetectCycle(graph); err != nil {
		return nil, err
	}
	levels := make(map[string]int, graph.Size())
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if lvl, ok := levels[id]; ok {
			return lvl
		}
		lvl := 0
		for _, dep := range graph.Dependencies(id) {
			if dl := levelOf(dep) + 1; dl > lvl {
				lvl = dl
			}
		}
		levels[id] = lvl
		return lvl
	}
	for id := range graph.Nodes {
		levelOf(id)
	}
	return levels, nil
}

// ---- By resource needs ----

// DivideByResourceNeeds bounds the worker count by the host's cpu and
// memory budget, then delegates to DivideBySize. The bound never drops
// below one so every item stays accounted for.
func (p *Partitioner) DivideByResourceNeeds(items []workload.WorkItem, snap resource.Snapshot) []workload.WorkShard {
	byCPU := snap.CPU.Cores
	byMem := int(snap.Memory.AvailableMB / resource.PerWorkerFootprintMB)
	workers := byCPU
	if byMem < workers {
		workers = byMem
	}
	if workers < 1 {
		workers = 1
	}
	return p.DivideBySize(items, workers)
}

// ---- Rebalance ----

// Rebalance redistributes the outstanding items of the shard named by
// the feedback into the other shards, least-loaded first. Completed
// items stay on the donor, which is marked rebalanced. Inputs are
// never mutated; the result is a fresh shard set. Feedback naming an
// unknown shard, or a plan with nowhere to move items to, returns an
// unchanged copy.
func (p *Partitioner) Rebalance(shards []workload.WorkShard, fb workload.RuntimeFeedback) []workload.WorkShard {
	out := make([]*workload.WorkShard, len(shards))
	donorIdx := -1
	for i := range shards {
		clone := shards[i]
		clone.Items = append([]workload.WorkItem(nil), shards[i].Items...)
		out[i] = &clone
		if clone.ID == fb.ShardID {
			donorIdx = i
		}
	}
	if donorIdx < 0 || len(shards) < 2 {
		return finalize(out)
	}

	donor := out[donorIdx]
	completed := fb.CompletedCount
	if completed < 0 {
		completed = 0
	}
	if completed > len(donor.Items) {
		completed = len(donor.Items)
	}
	moved := donor.Items[completed:]
	if len(moved) == 0 {
		return finalize(out)
	}

	// Rebuild the donor around its completed prefix.
	kept := donor.Items[:completed]
	rebuilt := &workload.WorkShard{
		ID:          donor.ID,
		WorkerIndex: donor.WorkerIndex,
		State:       workload.ShardRebalanced,
	}
	for _, item := range kept {
		p.addItem(rebuilt, item)
	}
	out[donorIdx] = rebuilt

	ordered := make([]workload.WorkItem, len(moved))
	copy(ordered, moved)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectiveSize() > ordered[j].EffectiveSize()
	})
	for _, item := range ordered {
		least := -1
		for i, s := range out {
			if i == donorIdx {
				continue
			}
			if least < 0 || s.TotalSize < out[least].TotalSize {
				least = i
			}
		}
		p.addItem(out[least], item)
	}
	return finalize(out)
}

// ---- Optimize ----

// Good-enough thresholds for an existing distribution.
const (
	goodBalance    = 0.8
	goodEfficiency = 0.8
)

// Constraint thresholds under which optimization is deferred.
const (
	lowThroughputPerSec = 1.0
	highLatency         = 2 * time.Second
)

// Distribution is a shard plan plus its quality scores.
type Distribution struct {
	Shards     []workload.WorkShard
	Balance    float64 // min/max shard size ratio, 1 is even
	Efficiency float64 // mean/max shard size ratio
}

// SystemMetrics carries the runtime signals OptimizeDistribution
// consults before touching a plan.
type SystemMetrics struct {
	ThroughputPerSec float64
	AvgLatency       time.Duration
}

// Balance scores a shard plan: min/max of the non-empty shard sizes
// and mean/max across all shards.
func Balance(shards []workload.WorkShard) (balance, efficiency float64) {
	if len(shards) == 0 {
		return 1, 1
	}
	minSize, maxSize, sum := -1.0, 0.0, 0.0
	for _, s := range shards {
		sum += s.TotalSize
		if s.TotalSize > maxSize {
			maxSize = s.TotalSize
		}
		if s.Len() > 0 && (minSize < 0 || s.TotalSize < minSize) {
			minSize = s.TotalSize
		}
	}
	if maxSize == 0 {
		return 1, 1
	}
	if minSize < 0 {
		minSize = 0
	}
	return minSize / maxSize, (sum / float64(len(shards))) / maxSize
}

// OptimizeDistribution returns the distribution unchanged when it is
// already balanced or when the metrics show the system is resource
// constrained; optimization under pressure would thrash. Otherwise it
// repacks all items by size into the same number of shards and
// rescores the result.
func (p *Partitioner) OptimizeDistribution(d Distribution, m SystemMetrics) Distribution {
	if d.Balance >= goodBalance && d.Efficiency >= goodEfficiency {
		return d
	}
	if m.ThroughputPerSec < lowThroughputPerSec || m.AvgLatency > highLatency {
		return d
	}

	var items []workload.WorkItem
	for _, s := range d.Shards {
		items = append(items, s.Items...)
	}
	repacked := p.DivideBySize(items, len(d.Shards))
	balance, efficiency := Balance(repacked)
	return Distribution{Shards: repacked, Balance: balance, Efficiency: efficiency}
}
