package workload

import (
	"math"
	"testing"
	"time"

	"github.com/fairlead/apportion/internal/errors"
)

type stubHistory map[string]time.Duration

func (s stubHistory) Estimate(classID string) (time.Duration, bool) {
	d, ok := s[classID]
	return d, ok
}

func TestCalculateComplexityExplicitWins(t *testing.T) {
	a := NewAnalyzer()
	item := WorkItem{ID: "a", Complexity: 7.5, Size: 1000, Priority: 9}
	if got := a.CalculateComplexity(item); got != 7.5 {
		t.Errorf("expected explicit complexity 7.5, got %v", got)
	}
}

func TestCalculateComplexityDerived(t *testing.T) {
	a := NewAnalyzer()
	item := WorkItem{
		ID:           "a",
		Size:         15,
		Dependencies: []string{"b", "c"},
		Priority:     2,
	}
	want := math.Log2(16)*0.8 + 2*0.5 + 2*0.3
	if got := a.CalculateComplexity(item); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCalculateComplexityFloor(t *testing.T) {
	a := NewAnalyzer()
	// Size 0 floors to 1; log2(2)*0.8 = 0.8 < 1.
	if got := a.CalculateComplexity(WorkItem{ID: "a"}); got != 1 {
		t.Errorf("expected floor of 1, got %v", got)
	}
}

func TestEstimateDurationPrecedence(t *testing.T) {
	hist := stubHistory{"build": 45 * time.Minute}
	a := NewAnalyzer(WithHistory(hist))

	// Explicit estimate wins over history.
	explicit := WorkItem{ID: "a", Class: "build", EstimatedDuration: 10 * time.Minute}
	if got := a.EstimateDuration(explicit); got != 10*time.Minute {
		t.Errorf("expected explicit 10m, got %v", got)
	}

	// A passed-in observed duration beats stored history.
	passed := WorkItem{ID: "b", Class: "build"}
	if got := a.EstimateDurationWithRecord(passed, 25*time.Minute); got != 25*time.Minute {
		t.Errorf("expected passed-in 25m, got %v", got)
	}

	// History wins over derivation.
	fromHistory := WorkItem{ID: "b", Class: "build"}
	if got := a.EstimateDuration(fromHistory); got != 45*time.Minute {
		t.Errorf("expected historical 45m, got %v", got)
	}

	// No estimate, no history: complexity times the base unit.
	derived := WorkItem{ID: "c", Class: "deploy", Complexity: 2}
	if got := a.EstimateDuration(derived); got != 60*time.Minute {
		t.Errorf("expected derived 60m, got %v", got)
	}
}

func TestEstimateDurationClassDefaultsToID(t *testing.T) {
	hist := stubHistory{"task-1": 20 * time.Minute}
	a := NewAnalyzer(WithHistory(hist))
	if got := a.EstimateDuration(WorkItem{ID: "task-1"}); got != 20*time.Minute {
		t.Errorf("expected 20m via ID-keyed history, got %v", got)
	}
}

func TestBuildGraphSkipsDanglingAtTraversal(t *testing.T) {
	a := NewAnalyzer()
	g := a.BuildGraph([]WorkItem{
		{ID: "a", Dependencies: []string{"b", "ghost"}},
		{ID: "b"},
	})
	deps := g.Dependencies("a")
	if len(deps) != 1 || deps[0] != "b" {
		t.Errorf("expected dangling dependency filtered, got %v", deps)
	}
}

func TestDetectCycleNamesParticipants(t *testing.T) {
	a := NewAnalyzer()
	g := a.BuildGraph([]WorkItem{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"c"}},
		{ID: "c", Dependencies: []string{"a"}},
	})
	err := a.DetectCycle(g)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, errors.ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}
	var cycleErr *errors.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.ItemIDs) != 3 {
		t.Errorf("expected 3 cycle participants, got %v", cycleErr.ItemIDs)
	}
}

func TestDetectCycleSelfLoop(t *testing.T) {
	a := NewAnalyzer()
	g := a.BuildGraph([]WorkItem{{ID: "a", Dependencies: []string{"a"}}})
	if err := a.DetectCycle(g); err == nil {
		t.Error("expected self-dependency to be a cycle")
	}
}

func TestDetectCycleAcyclic(t *testing.T) {
	a := NewAnalyzer()
	g := a.BuildGraph([]WorkItem{
		{ID: "a", Dependencies: []string{"b", "c"}},
		{ID: "b", Dependencies: []string{"c"}},
		{ID: "c"},
	})
	if err := a.DetectCycle(g); err != nil {
		t.Errorf("expected no cycle, got %v", err)
	}
}

func TestCriticalPath(t *testing.T) {
	a := NewAnalyzer()
	g := a.BuildGraph([]WorkItem{
		{ID: "a", EstimatedDuration: 10 * time.Minute, Dependencies: []string{"b", "c"}},
		{ID: "b", EstimatedDuration: 30 * time.Minute},
		{ID: "c", EstimatedDuration: 50 * time.Minute, Dependencies: []string{"d"}},
		{ID: "d", EstimatedDuration: 20 * time.Minute},
	})
	path, total := a.CriticalPath(g)
	want := []string{"d", "c", "a"}
	if len(path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("expected path %v, got %v", want, path)
		}
	}
	if total != 80*time.Minute {
		t.Errorf("expected 80m, got %v", total)
	}
}

func TestCriticalPathSingleItem(t *testing.T) {
	a := NewAnalyzer()
	g := a.BuildGraph([]WorkItem{{ID: "only", EstimatedDuration: time.Hour}})
	path, total := a.CriticalPath(g)
	if len(path) != 1 || path[0] != "only" {
		t.Errorf("expected [only], got %v", path)
	}
	if total != time.Hour {
		t.Errorf("expected 1h, got %v", total)
	}
}

func TestAnalyzeHistogram(t *testing.T) {
	a := NewAnalyzer()
	items := []WorkItem{
		{ID: "a", Complexity: 1},  // low
		{ID: "b", Complexity: 3},  // medium
		{ID: "c", Complexity: 6},  // high
		{ID: "d", Complexity: 10}, // critical
		{ID: "e", Complexity: 4.9},
	}
	analysis := a.Analyze(items)
	h := analysis.Histogram
	if h.Low != 1 || h.Medium != 2 || h.High != 1 || h.Critical != 1 {
		t.Errorf("unexpected histogram: %+v", h)
	}
	if analysis.TotalItems != 5 {
		t.Errorf("expected 5 items, got %d", analysis.TotalItems)
	}
}

func TestAnalyzeCyclicGraphSkipsCriticalPath(t *testing.T) {
	a := NewAnalyzer()
	analysis := a.Analyze([]WorkItem{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	})
	if analysis.CriticalPath != nil {
		t.Errorf("expected no critical path for cyclic graph, got %v", analysis.CriticalPath)
	}
	if analysis.TotalItems != 2 {
		t.Errorf("expected totals to be computed anyway, got %d items", analysis.TotalItems)
	}
}

func TestShardAddMaintainsTotals(t *testing.T) {
	shard := &WorkShard{ID: "shard-0", State: ShardDraft}
	shard.Add(WorkItem{ID: "a", Size: 10}, 2, 30*time.Minute)
	shard.Add(WorkItem{ID: "b"}, 1, 15*time.Minute) // size floors to 1
	if shard.TotalSize != 11 {
		t.Errorf("expected total size 11, got %v", shard.TotalSize)
	}
	if shard.TotalComplexity != 3 {
		t.Errorf("expected total complexity 3, got %v", shard.TotalComplexity)
	}
	if shard.EstimatedDuration != 45*time.Minute {
		t.Errorf("expected 45m, got %v", shard.EstimatedDuration)
	}
	if shard.Len() != 2 {
		t.Errorf("expected 2 items, got %d", shard.Len())
	}
}

func TestItemStateTerminal(t *testing.T) {
	if ItemAllocated.IsTerminal() {
		t.Error("allocated must not be terminal")
	}
	if !ItemCompleted.IsTerminal() {
		t.Error("completed must be terminal")
	}
}
