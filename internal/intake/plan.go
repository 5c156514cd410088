// Package intake loads work plans from YAML files and optionally
// watches them for changes.
package intake

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fairlead/apportion/internal/allocator"
	"github.com/fairlead/apportion/internal/workload"
)

// Plan is the parsed form of an on-disk work plan: the items to
// schedule and, optionally, the worker pool to schedule them onto.
type Plan struct {
	Name    string
	Items   []workload.WorkItem
	Workers []WorkerSpec
}

// planDoc is the raw YAML document shape.
type planDoc struct {
	Name    string       `yaml:"name"`
	Items   []itemSpec   `yaml:"items"`
	Workers []WorkerSpec `yaml:"workers"`
}

// itemSpec is a work item as written in a plan file. Durations are
// strings in Go syntax ("45m", "1h30m").
type itemSpec struct {
	ID                string   `yaml:"id"`
	Class             string   `yaml:"class"`
	Size              float64  `yaml:"size"`
	Complexity        float64  `yaml:"complexity"`
	EstimatedDuration string   `yaml:"estimated_duration"`
	Dependencies      []string `yaml:"dependencies"`
	Priority          int      `yaml:"priority"`
	MemoryMB          float64  `yaml:"memory_mb"`
	CPUCores          float64  `yaml:"cpu_cores"`
}

func (s itemSpec) item() (workload.WorkItem, error) {
	item := workload.WorkItem{
		ID:           s.ID,
		Class:        s.Class,
		Size:         s.Size,
		Complexity:   s.Complexity,
		Dependencies: s.Dependencies,
		Priority:     s.Priority,
		MemoryMB:     s.MemoryMB,
		CPUCores:     s.CPUCores,
	}
	if s.EstimatedDuration != "" {
		d, err := time.ParseDuration(s.EstimatedDuration)
		if err != nil {
			return item, fmt.Errorf("item %q: invalid estimated_duration: %w", s.ID, err)
		}
		item.EstimatedDuration = d
	}
	return item, nil
}

// WorkerSpec describes a worker in a plan file.
type WorkerSpec struct {
	ID              string   `yaml:"id"`
	Capacity        float64  `yaml:"capacity"`
	Specializations []string `yaml:"specializations,omitempty"`
	Performance     float64  `yaml:"performance,omitempty"`
}

// Profile converts the entry into a registrable worker profile.
func (w WorkerSpec) Profile() allocator.WorkerProfile {
	return allocator.WorkerProfile{
		ID:               w.ID,
		Capacity:         w.Capacity,
		Specializations:  w.Specializations,
		PerformanceScore: w.Performance,
	}
}

// LoadPlan reads and parses a plan file. Items without IDs are
// rejected here rather than defaulted; an anonymous item can never be
// completed or tracked.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan parses plan YAML.
func ParsePlan(data []byte) (*Plan, error) {
	var doc planDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}

	plan := &Plan{Name: doc.Name, Workers: doc.Workers}
	seen := make(map[string]bool, len(doc.Items))
	for i, spec := range doc.Items {
		if spec.ID == "" {
			return nil, fmt.Errorf("parsing plan: item %d has no id", i)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("parsing plan: duplicate item id %q", spec.ID)
		}
		seen[spec.ID] = true
		item, err := spec.item()
		if err != nil {
			return nil, fmt.Errorf("parsing plan: %w", err)
		}
		plan.Items = append(plan.Items, item)
	}
	for i, w := range doc.Workers {
		if w.ID == "" {
			return nil, fmt.Errorf("parsing plan: worker %d has no id", i)
		}
	}
	return plan, nil
}
