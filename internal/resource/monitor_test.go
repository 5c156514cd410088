package resource

import (
	"math"
	"testing"
	"time"

	"github.com/fairlead/apportion/internal/workload"
)

func testSnapshot() Snapshot {
	return Snapshot{
		CPU:    CPUInfo{Cores: 8, Usage: 0.3},
		Memory: MemoryInfo{TotalMB: 16384, AvailableMB: 8192, UsedMB: 8192},
		Taken:  time.Now(),
	}
}

func TestOptimalWorkersFor(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want int
	}{
		{
			name: "cpu bound",
			snap: Snapshot{
				CPU:    CPUInfo{Cores: 4},
				Memory: MemoryInfo{AvailableMB: 16384},
			},
			// min(4, 32) * 0.8 = 3
			want: 3,
		},
		{
			name: "memory bound",
			snap: Snapshot{
				CPU:    CPUInfo{Cores: 16},
				Memory: MemoryInfo{AvailableMB: 2048},
			},
			// min(16, 4) * 0.8 = 3
			want: 3,
		},
		{
			name: "floor of one",
			snap: Snapshot{
				CPU:    CPUInfo{Cores: 1},
				Memory: MemoryInfo{AvailableMB: 256},
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptimalWorkersFor(tt.snap); got != tt.want {
				t.Errorf("expected %d workers, got %d", tt.want, got)
			}
		})
	}
}

func TestCPUUsageBetween(t *testing.T) {
	prev := cpuTicks{idle: 100, total: 200}
	cur := cpuTicks{idle: 150, total: 400}
	// 200 new ticks, 50 idle: 75% busy.
	if got := cpuUsageBetween(prev, cur); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("expected 0.75, got %v", got)
	}
	// First sample has no baseline.
	if got := cpuUsageBetween(cpuTicks{}, cur); got != 0 {
		t.Errorf("expected 0 without baseline, got %v", got)
	}
}

func TestPredictUsageDefaults(t *testing.T) {
	m := NewMonitor()

	// Explicit hints pass through untouched.
	explicit := workload.WorkItem{ID: "a", MemoryMB: 1024, CPUCores: 2}
	u := m.PredictUsage(explicit)
	if u.MemoryMB != 1024 || u.CPUCores != 2 {
		t.Errorf("expected explicit hints preserved, got %+v", u)
	}

	// Defaults scale with priority.
	defaulted := m.PredictUsage(workload.WorkItem{ID: "b", Priority: 10})
	if defaulted.MemoryMB != 512 {
		t.Errorf("expected 256*(1+10/10)=512MB, got %v", defaulted.MemoryMB)
	}
	if defaulted.CPUCores <= 0.25 {
		t.Errorf("expected priority-scaled cpu above the default, got %v", defaulted.CPUCores)
	}

	// Long durations raise the cpu estimate.
	short := m.PredictUsage(workload.WorkItem{ID: "c", EstimatedDuration: time.Minute})
	long := m.PredictUsage(workload.WorkItem{ID: "d", EstimatedDuration: 100 * time.Hour})
	if long.CPUCores <= short.CPUCores {
		t.Errorf("expected longer task to predict more cpu: %v vs %v", long.CPUCores, short.CPUCores)
	}
}

func TestPredictUsageCPUFormula(t *testing.T) {
	m := NewMonitor()

	// 0.25 x (1+priority/20) x (1+log10(minutes+1)).
	u := m.PredictUsage(workload.WorkItem{ID: "a", Priority: 10, EstimatedDuration: time.Hour})
	wantCPU := 0.25 * 1.5 * (1 + math.Log10(61))
	if math.Abs(u.CPUCores-wantCPU) > 1e-9 {
		t.Errorf("CPUCores = %v, want %v", u.CPUCores, wantCPU)
	}
	// Memory keeps its own priority factor.
	if u.MemoryMB != 512 {
		t.Errorf("MemoryMB = %v, want 256*(1+10/10)=512", u.MemoryMB)
	}
}

func TestAllocateResourcesGreedyAdmission(t *testing.T) {
	m := NewMonitor()
	m.latest = Snapshot{
		CPU:    CPUInfo{Cores: 2},
		Memory: MemoryInfo{TotalMB: 2048, AvailableMB: 1000},
	}

	items := []workload.WorkItem{
		{ID: "small", MemoryMB: 300, CPUCores: 0.5, Priority: 1},
		{ID: "big", MemoryMB: 900, CPUCores: 1, Priority: 5},
		{ID: "tiny", MemoryMB: 50, CPUCores: 0.1, Priority: 0},
	}
	plan := m.AllocateResources(items)

	// Priority order: big (900) admitted first, small (300) no longer
	// fits in the remaining 100MB, tiny (50) does.
	if len(plan.Admitted) != 2 || plan.Admitted[0] != "big" || plan.Admitted[1] != "tiny" {
		t.Errorf("unexpected admissions: %v", plan.Admitted)
	}
	if len(plan.Rejected) != 1 || plan.Rejected[0] != "small" {
		t.Errorf("unexpected rejections: %v", plan.Rejected)
	}
}

func TestDetectBottlenecksSeverities(t *testing.T) {
	snap := Snapshot{
		CPU:    CPUInfo{Cores: 4, Usage: 0.9},
		Memory: MemoryInfo{TotalMB: 1000, UsedMB: 900},
		Disk:   DiskInfo{Usage: 0.95},
	}
	found := DetectBottlenecksFor(snap)
	if len(found) != 3 {
		t.Fatalf("expected 3 bottlenecks, got %d", len(found))
	}
	severities := map[string]string{}
	for _, b := range found {
		severities[b.Resource] = string(b.Severity)
	}
	if severities["cpu"] != "medium" || severities["memory"] != "high" || severities["disk"] != "critical" {
		t.Errorf("unexpected severity grading: %v", severities)
	}
}

func TestDetectBottlenecksQuietHost(t *testing.T) {
	if found := DetectBottlenecksFor(testSnapshot()); len(found) != 0 {
		t.Errorf("expected no bottlenecks, got %v", found)
	}
}

func TestSuggestOptimizationsScaleDown(t *testing.T) {
	m := NewMonitor()
	m.latest = testSnapshot() // 30% cpu
	suggestions := m.SuggestOptimizations()
	if len(suggestions) == 0 {
		t.Fatal("expected a scale-down suggestion for an idle host")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	m := NewMonitor()
	m.Start(10 * time.Millisecond)
	m.Start(10 * time.Millisecond) // no-op
	if !m.Running() {
		t.Error("expected monitor running")
	}
	m.Stop()
	m.Stop() // no-op
	if m.Running() {
		t.Error("expected monitor stopped")
	}
}
