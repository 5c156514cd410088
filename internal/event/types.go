package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g. "allocation.completed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Allocation Events
// -----------------------------------------------------------------------------

// AllocationStartedEvent is emitted when the allocator begins matching a
// task against the worker registry.
type AllocationStartedEvent struct {
	baseEvent
	TaskID string  // Task being allocated
	Effort float64 // Estimated effort in hours
}

// NewAllocationStartedEvent creates an AllocationStartedEvent.
func NewAllocationStartedEvent(taskID string, effort float64) AllocationStartedEvent {
	return AllocationStartedEvent{
		baseEvent: newBaseEvent("allocation.started"),
		TaskID:    taskID,
		Effort:    effort,
	}
}

// AllocationCompletedEvent is emitted when a task is bound to a worker.
type AllocationCompletedEvent struct {
	baseEvent
	TaskID     string        // Allocated task
	WorkerID   string        // Chosen worker
	Confidence float64       // Allocator's self-assessed reliability, 0-1
	ETA        time.Duration // Estimated completion time
}

// NewAllocationCompletedEvent creates an AllocationCompletedEvent.
func NewAllocationCompletedEvent(taskID, workerID string, confidence float64, eta time.Duration) AllocationCompletedEvent {
	return AllocationCompletedEvent{
		baseEvent:  newBaseEvent("allocation.completed"),
		TaskID:     taskID,
		WorkerID:   workerID,
		Confidence: confidence,
		ETA:        eta,
	}
}

// AllocationRejectedEvent is emitted when an allocation would exceed a
// worker's capacity. The task is queued; this event is informational.
type AllocationRejectedEvent struct {
	baseEvent
	TaskID   string // Task that was refused
	WorkerID string // Worker whose capacity would be exceeded
	Reason   string // Human-readable rejection reason
}

// NewAllocationRejectedEvent creates an AllocationRejectedEvent.
func NewAllocationRejectedEvent(taskID, workerID, reason string) AllocationRejectedEvent {
	return AllocationRejectedEvent{
		baseEvent: newBaseEvent("allocation.rejected"),
		TaskID:    taskID,
		WorkerID:  workerID,
		Reason:    reason,
	}
}

// TaskQueuedEvent is emitted when a task cannot be placed and is parked
// in the pending queue.
type TaskQueuedEvent struct {
	baseEvent
	TaskID string // Queued task
	Reason string // Why it could not be placed
}

// NewTaskQueuedEvent creates a TaskQueuedEvent.
func NewTaskQueuedEvent(taskID, reason string) TaskQueuedEvent {
	return TaskQueuedEvent{
		baseEvent: newBaseEvent("task.queued"),
		TaskID:    taskID,
		Reason:    reason,
	}
}

// TaskCompletedEvent is emitted when the execution layer reports a task
// finished and the allocator has released the worker's load.
type TaskCompletedEvent struct {
	baseEvent
	TaskID         string        // Completed task
	WorkerID       string        // Worker that executed it
	ActualDuration time.Duration // Observed duration
	Success        bool          // Whether execution succeeded
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(taskID, workerID string, actual time.Duration, success bool) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent:      newBaseEvent("task.completed"),
		TaskID:         taskID,
		WorkerID:       workerID,
		ActualDuration: actual,
		Success:        success,
	}
}

// -----------------------------------------------------------------------------
// Worker Lifecycle Events
// -----------------------------------------------------------------------------

// WorkerRegisteredEvent is emitted when a worker joins the registry.
type WorkerRegisteredEvent struct {
	baseEvent
	WorkerID string  // New worker
	Capacity float64 // Worker's capacity in effort units
}

// NewWorkerRegisteredEvent creates a WorkerRegisteredEvent.
func NewWorkerRegisteredEvent(workerID string, capacity float64) WorkerRegisteredEvent {
	return WorkerRegisteredEvent{
		baseEvent: newBaseEvent("worker.registered"),
		WorkerID:  workerID,
		Capacity:  capacity,
	}
}

// WorkerUnregisteredEvent is emitted when a worker leaves the registry.
// Any tasks it held in flight are returned to the pending queue.
type WorkerUnregisteredEvent struct {
	baseEvent
	WorkerID string   // Departed worker
	Requeued []string // Task IDs returned to pending
}

// NewWorkerUnregisteredEvent creates a WorkerUnregisteredEvent.
func NewWorkerUnregisteredEvent(workerID string, requeued []string) WorkerUnregisteredEvent {
	return WorkerUnregisteredEvent{
		baseEvent: newBaseEvent("worker.unregistered"),
		WorkerID:  workerID,
		Requeued:  requeued,
	}
}

// -----------------------------------------------------------------------------
// Rebalance Events
// -----------------------------------------------------------------------------

// RebalanceStartedEvent is emitted when the rebalancer decides to
// redistribute a lagging shard's outstanding work.
type RebalanceStartedEvent struct {
	baseEvent
	ShardID string // Donor shard whose items will migrate
	Reason  string // Why the shard was selected
}

// NewRebalanceStartedEvent creates a RebalanceStartedEvent.
func NewRebalanceStartedEvent(shardID, reason string) RebalanceStartedEvent {
	return RebalanceStartedEvent{
		baseEvent: newBaseEvent("rebalance.started"),
		ShardID:   shardID,
		Reason:    reason,
	}
}

// RebalanceCompletedEvent is emitted when a new shard plan has been
// produced. The plan is advisory until the caller drains and applies it.
type RebalanceCompletedEvent struct {
	baseEvent
	ShardID    string // Donor shard
	MovedItems int    // Items migrated out of the donor
	ShardCount int    // Shards in the new plan
}

// NewRebalanceCompletedEvent creates a RebalanceCompletedEvent.
func NewRebalanceCompletedEvent(shardID string, movedItems, shardCount int) RebalanceCompletedEvent {
	return RebalanceCompletedEvent{
		baseEvent:  newBaseEvent("rebalance.completed"),
		ShardID:    shardID,
		MovedItems: movedItems,
		ShardCount: shardCount,
	}
}

// -----------------------------------------------------------------------------
// Resource Events
// -----------------------------------------------------------------------------

// BottleneckSeverity grades how constrained a resource is.
type BottleneckSeverity string

const (
	SeverityMedium   BottleneckSeverity = "medium"
	SeverityHigh     BottleneckSeverity = "high"
	SeverityCritical BottleneckSeverity = "critical"
)

// BottleneckDetectedEvent is emitted when a host resource crosses its
// utilization threshold. Advisory only; allocation is never blocked.
type BottleneckDetectedEvent struct {
	baseEvent
	Resource    string             // "cpu", "memory", or "disk"
	Severity    BottleneckSeverity // Graded severity
	Utilization float64            // Observed utilization, fraction in [0,1]
	Impact      string             // Human-readable impact description
}

// NewBottleneckDetectedEvent creates a BottleneckDetectedEvent.
func NewBottleneckDetectedEvent(resource string, severity BottleneckSeverity, utilization float64, impact string) BottleneckDetectedEvent {
	return BottleneckDetectedEvent{
		baseEvent:   newBaseEvent("bottleneck.detected"),
		Resource:    resource,
		Severity:    severity,
		Utilization: utilization,
		Impact:      impact,
	}
}

// ResourceSnapshotEvent is emitted by the periodic sampler with the
// latest host capacity reading.
type ResourceSnapshotEvent struct {
	baseEvent
	CPUUsage       float64 // CPU utilization, fraction in [0,1]
	MemoryUsedMB   uint64  // Used memory in MB
	MemoryTotalMB  uint64  // Total memory in MB
	OptimalWorkers int     // Capacity-bounded worker recommendation
}

// NewResourceSnapshotEvent creates a ResourceSnapshotEvent.
func NewResourceSnapshotEvent(cpuUsage float64, memUsedMB, memTotalMB uint64, optimalWorkers int) ResourceSnapshotEvent {
	return ResourceSnapshotEvent{
		baseEvent:      newBaseEvent("resource.snapshot"),
		CPUUsage:       cpuUsage,
		MemoryUsedMB:   memUsedMB,
		MemoryTotalMB:  memTotalMB,
		OptimalWorkers: optimalWorkers,
	}
}

// ResourceAllocationFailedEvent is emitted when greedy admission cannot
// fit a task into the remaining resource pools. The task is not retried
// within the same admission pass.
type ResourceAllocationFailedEvent struct {
	baseEvent
	TaskID   string  // Task that did not fit
	MemoryMB float64 // Predicted memory need
	CPUCores float64 // Predicted CPU need
}

// NewResourceAllocationFailedEvent creates a ResourceAllocationFailedEvent.
func NewResourceAllocationFailedEvent(taskID string, memoryMB, cpuCores float64) ResourceAllocationFailedEvent {
	return ResourceAllocationFailedEvent{
		baseEvent: newBaseEvent("resource.allocation_failed"),
		TaskID:    taskID,
		MemoryMB:  memoryMB,
		CPUCores:  cpuCores,
	}
}
