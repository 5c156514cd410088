package workload

import "time"

// ItemState represents the current state of a work item in the
// allocation lifecycle.
type ItemState string

const (
	// ItemUnallocated indicates the item has not been offered to a worker.
	ItemUnallocated ItemState = "unallocated"

	// ItemQueued indicates no worker could accept the item; it is parked
	// pending capacity.
	ItemQueued ItemState = "queued"

	// ItemAllocated indicates the item is bound to a worker.
	ItemAllocated ItemState = "allocated"

	// ItemCompleted indicates execution finished. Terminal.
	ItemCompleted ItemState = "completed"
)

// String returns the string representation of the item state.
func (s ItemState) String() string {
	return string(s)
}

// IsTerminal returns true if this state represents a final state.
func (s ItemState) IsTerminal() bool {
	return s == ItemCompleted
}

// WorkItem is the minimal schedulable unit. Every field except ID is
// optional: missing values are defaulted by the analyzer, never rejected.
type WorkItem struct {
	// ID uniquely identifies the item.
	ID string

	// Class groups items that share timing behavior for historical
	// duration estimation. Defaults to the ID when empty.
	Class string

	// Size is the item's relative size. Non-positive sizes are floored
	// to 1 wherever sizes are summed.
	Size float64

	// Complexity is a synthetic scalar estimating relative difficulty.
	// Zero means unset; the analyzer derives a value.
	Complexity float64

	// EstimatedDuration is an explicit duration estimate. Zero means unset.
	EstimatedDuration time.Duration

	// Dependencies lists the IDs of items that must complete first,
	// in declaration order.
	Dependencies []string

	// Priority orders competing items; higher runs sooner. Zero is neutral.
	Priority int

	// MemoryMB is an optional memory requirement hint for admission.
	MemoryMB float64

	// CPUCores is an optional CPU requirement hint for admission.
	CPUCores float64
}

// EffectiveClass returns the class used for historical estimation,
// defaulting to the item ID.
func (w WorkItem) EffectiveClass() string {
	if w.Class != "" {
		return w.Class
	}
	return w.ID
}

// EffectiveSize returns the item's size with the non-positive floor applied.
func (w WorkItem) EffectiveSize() float64 {
	if w.Size <= 0 {
		return 1
	}
	return w.Size
}

// DependencyGraph maps work item IDs to items and to their dependency
// edges. The graph must be acyclic for dependency-based operations;
// other operations ignore edges entirely.
type DependencyGraph struct {
	Nodes map[string]WorkItem
	Edges map[string][]string // item ID -> IDs it depends on
}

// Item returns the node with the given ID, or false if absent.
func (g *DependencyGraph) Item(id string) (WorkItem, bool) {
	item, ok := g.Nodes[id]
	return item, ok
}

// Dependencies returns the dependency IDs of the given item that exist
// as nodes in the graph. Dangling references are skipped: a dependency
// on an unknown item is a soft condition, not an error.
func (g *DependencyGraph) Dependencies(id string) []string {
	var deps []string
	for _, dep := range g.Edges[id] {
		if _, ok := g.Nodes[dep]; ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.Nodes)
}

// ShardState represents the lifecycle state of a work shard.
type ShardState string

const (
	// ShardDraft indicates the shard was produced by a partitioner but
	// not yet handed to execution.
	ShardDraft ShardState = "draft"

	// ShardActive indicates the shard's items are being executed.
	ShardActive ShardState = "active"

	// ShardRebalanced indicates the shard donated its outstanding items
	// to other shards during a rebalance.
	ShardRebalanced ShardState = "rebalanced"

	// ShardRetired indicates the shard finished. Terminal.
	ShardRetired ShardState = "retired"
)

// String returns the string representation of the shard state.
func (s ShardState) String() string {
	return string(s)
}

// WorkShard is a batch of work items assigned to a worker slot as a unit.
//
// Invariant: TotalSize equals the sum of the items' effective sizes
// (non-positive sizes floored to 1).
type WorkShard struct {
	ID                string
	Items             []WorkItem
	TotalSize         float64
	TotalComplexity   float64
	EstimatedDuration time.Duration
	WorkerIndex       int
	State             ShardState
}

// Add appends an item to the shard and updates the totals.
func (s *WorkShard) Add(item WorkItem, complexity float64, duration time.Duration) {
	s.Items = append(s.Items, item)
	s.TotalSize += item.EffectiveSize()
	s.TotalComplexity += complexity
	s.EstimatedDuration += duration
}

// Len returns the number of items in the shard.
func (s *WorkShard) Len() int {
	return len(s.Items)
}

// RuntimeFeedback reports a shard's observed progress so outstanding
// work can be redistributed away from laggards.
type RuntimeFeedback struct {
	ShardID             string
	CompletedCount      int
	RemainingCount      int
	CurrentThroughput   float64 // items per second
	EstimatedCompletion time.Time
}

// ComplexityHistogram buckets items by complexity:
// <2 low, 2-4 medium, 5-7 high, >7 critical.
type ComplexityHistogram struct {
	Low      int
	Medium   int
	High     int
	Critical int
}

// Analysis is the aggregate result of analyzing a work item set.
type Analysis struct {
	TotalItems             int
	TotalSize              float64
	TotalComplexity        float64
	TotalEstimatedDuration time.Duration
	Histogram              ComplexityHistogram
	Graph                  *DependencyGraph
	CriticalPath           []string
	CriticalPathDuration   time.Duration
}
