// Package history provides duration learning from completed work.
//
// The Estimator keeps a bounded per-class window of observed durations
// and produces a recency-weighted average. Work items that share a class
// (e.g. "unit-test", "migration") inherit each other's timing history,
// which feeds the analyzer's duration estimates and, through them, every
// partitioning and allocation decision.
package history

import (
	"sync"
	"time"
)

// maxRecordsPerClass bounds the per-class history window.
// The oldest record is evicted first once the window is full.
const maxRecordsPerClass = 10

// Record is a single observed task duration.
type Record struct {
	ClassID        string
	ActualDuration time.Duration
	Timestamp      time.Time
}

// Estimator stores bounded per-class duration history and computes
// recency-weighted averages. It is safe for concurrent use.
type Estimator struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewEstimator creates an empty estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		records: make(map[string][]Record),
	}
}

// Record appends an observed duration for the class. When the class
// window is full the oldest record is evicted (FIFO).
func (e *Estimator) Record(classID string, d time.Duration) {
	if classID == "" || d <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	recs := append(e.records[classID], Record{
		ClassID:        classID,
		ActualDuration: d,
		Timestamp:      time.Now(),
	})
	if len(recs) > maxRecordsPerClass {
		recs = recs[len(recs)-maxRecordsPerClass:]
	}
	e.records[classID] = recs
}

// Estimate returns the recency-weighted average duration for the class.
// Records are weighted linearly by age: the oldest record has weight 1,
// the newest weight N. A single record is returned verbatim. The second
// return value is false when no history exists, signalling the caller to
// fall back to complexity-based estimation.
func (e *Estimator) Estimate(classID string) (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	recs := e.records[classID]
	switch len(recs) {
	case 0:
		return 0, false
	case 1:
		return recs[0].ActualDuration, true
	}

	var weighted float64
	var totalWeight float64
	for i, rec := range recs {
		w := float64(i + 1)
		weighted += w * float64(rec.ActualDuration)
		totalWeight += w
	}
	return time.Duration(weighted / totalWeight), true
}

// Count returns the number of stored records for the class.
func (e *Estimator) Count(classID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records[classID])
}

// Classes returns the IDs of all classes with at least one record.
func (e *Estimator) Classes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.records))
	for id := range e.records {
		out = append(out, id)
	}
	return out
}
