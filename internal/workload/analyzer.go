// Package workload models schedulable work and derives the planning
// signals the partitioner and allocator consume: complexity scores,
// duration estimates, dependency graphs, and critical paths.
//
// The analyzer degrades rather than rejects. Missing sizes, classes,
// and estimates are defaulted; a cyclic dependency graph disables
// critical-path analysis but the rest of the analysis still runs.
// Only dependency-ordered partitioning treats a cycle as fatal.
package workload

import (
	"math"
	"sort"
	"time"

	"github.com/fairlead/apportion/internal/errors"
)

// DefaultBaseUnit is the duration assigned to one unit of complexity
// when no explicit estimate or history is available.
const DefaultBaseUnit = 30 * time.Minute

// ClassEstimator provides historical duration estimates keyed by item
// class. Estimate returns false when no history exists for the class.
type ClassEstimator interface {
	Estimate(classID string) (time.Duration, bool)
}

// Analyzer derives planning signals from raw work items.
type Analyzer struct {
	history  ClassEstimator
	baseUnit time.Duration
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithHistory wires a historical estimator into duration estimation.
func WithHistory(h ClassEstimator) AnalyzerOption {
	return func(a *Analyzer) {
		a.history = h
	}
}

// WithBaseUnit overrides the per-complexity-unit fallback duration.
func WithBaseUnit(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.baseUnit = d
		}
	}
}

// NewAnalyzer creates an analyzer with the given options.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		baseUnit: DefaultBaseUnit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ---- Complexity ----

// CalculateComplexity returns the item's complexity, deriving it when
// unset:
//
//	log2(size+1)*0.8 + len(dependencies)*0.5 + priority*0.3
//
// floored to a minimum of 1. An explicit positive complexity wins.
func (a *Analyzer) CalculateComplexity(item WorkItem) float64 {
	if item.Complexity > 0 {
		return item.Complexity
	}
	c := math.Log2(item.EffectiveSize()+1)*0.8 +
		float64(len(item.Dependencies))*0.5 +
		float64(item.Priority)*0.3
	if c < 1 {
		return 1
	}
	return c
}

// ---- Duration estimation ----

// EstimateDuration returns the item's estimated duration using the
// first available source: explicit estimate, then class history, then
// complexity times the base unit.
func (a *Analyzer) EstimateDuration(item WorkItem) time.Duration {
	return a.EstimateDurationWithRecord(item, 0)
}

// EstimateDurationWithRecord is EstimateDuration with a caller-supplied
// observed duration that takes precedence over stored class history
// when positive. An explicit estimate on the item still wins.
func (a *Analyzer) EstimateDurationWithRecord(item WorkItem, observed time.Duration) time.Duration {
	if item.EstimatedDuration > 0 {
		return item.EstimatedDuration
	}
	if observed > 0 {
		return observed
	}
	if a.history != nil {
		if d, ok := a.history.Estimate(item.EffectiveClass()); ok && d > 0 {
			return d
		}
	}
	return time.Duration(a.CalculateComplexity(item) * float64(a.baseUnit))
}

// ---- Dependency graph ----

// BuildGraph constructs a dependency graph from the given items.
// Duplicate IDs keep the last occurrence. Edges are recorded as
// declared; dangling references are filtered at traversal time.
func (a *Analyzer) BuildGraph(items []WorkItem) *DependencyGraph {
	g := &DependencyGraph{
		Nodes: make(map[string]WorkItem, len(items)),
		Edges: make(map[string][]string, len(items)),
	}
	for _, item := range items {
		g.Nodes[item.ID] = item
		if len(item.Dependencies) > 0 {
			g.Edges[item.ID] = append([]string(nil), item.Dependencies...)
		}
	}
	return g
}

// DetectCycle reports whether the graph contains a dependency cycle.
// When it does, the returned error is a *errors.CycleError naming the
// items on the cycle in path order.
func (a *Analyzer) DetectCycle(g *DependencyGraph) error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(id string) *errors.CycleError
	visit = func(id string) *errors.CycleError {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range g.Dependencies(id) {
			switch state[dep] {
			case visiting:
				// Trim the stack to the cycle entry point.
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				return errors.NewCycleError(append([]string(nil), stack[start:]...))
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	// Deterministic traversal order keeps the reported cycle stable.
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---- Critical path ----

// CriticalPath returns the dependency chain with the largest summed
// estimated duration, ordered from the deepest dependency to the final
// item, along with that total. The graph must be acyclic; call
// DetectCycle first.
func (a *Analyzer) CriticalPath(g *DependencyGraph) ([]string, time.Duration) {
	type pathInfo struct {
		duration time.Duration
		next     string // the dependency continuing the longest chain
	}
	memo := make(map[string]pathInfo, len(g.Nodes))

	var longest func(id string) pathInfo
	longest = func(id string) pathInfo {
		if info, ok := memo[id]; ok {
			return info
		}
		item := g.Nodes[id]
		info := pathInfo{duration: a.EstimateDuration(item)}
		var best pathInfo
		for _, dep := range g.Dependencies(id) {
			if sub := longest(dep); sub.duration > best.duration {
				best = sub
				best.next = dep
			}
		}
		info.duration += best.duration
		info.next = best.next
		memo[id] = info
		return info
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var bestID string
	var bestDur time.Duration
	for _, id := range ids {
		if info := longest(id); info.duration > bestDur {
			bestID, bestDur = id, info.duration
		}
	}
	if bestID == "" {
		return nil, 0
	}

	// Walk the chain end-first, then reverse into dependency order.
	var chain []string
	for id := bestID; id != ""; id = memo[id].next {
		chain = append(chain, id)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, bestDur
}

// ---- Aggregate analysis ----

// Analyze computes the aggregate view of an item set: totals, the
// complexity histogram, the dependency graph, and, when the graph is
// acyclic, the critical path. A cyclic graph yields an empty critical
// path; partitioning strategies that ignore dependencies remain usable.
func (a *Analyzer) Analyze(items []WorkItem) Analysis {
	analysis := Analysis{
		TotalItems: len(items),
		Graph:      a.BuildGraph(items),
	}
	for _, item := range items {
		c := a.CalculateComplexity(item)
		analysis.TotalSize += item.EffectiveSize()
		analysis.TotalComplexity += c
		analysis.TotalEstimatedDuration += a.EstimateDuration(item)
		switch {
		case c < 2:
			analysis.Histogram.Low++
		case c < 5:
			analysis.Histogram.Medium++
		case c < 8:
			analysis.Histogram.High++
		default:
			analysis.Histogram.Critical++
		}
	}
	if err := a.DetectCycle(analysis.Graph); err == nil {
		analysis.CriticalPath, analysis.CriticalPathDuration = a.CriticalPath(analysis.Graph)
	}
	return analysis
}
