// Package errors provides centralized error definitions and error handling
// utilities for the Apportion scheduler. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from the scheduling subsystems:
//   - CycleError: a dependency cycle in the work graph (fatal for
//     dependency-based partitioning only)
//   - NoAvailableWorkerError: no registered worker can accept a task
//     (non-fatal; the task is queued)
//   - AllocationError: an allocation attempt failed or was rejected
//
// Semantic errors represent common error conditions:
//   - ValidationError: malformed input (usually handled by defaulting,
//     not failure)
//   - NotFoundError: resource not found
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewCycleError([]string{"a", "b", "c"})
//	err := errors.NewNoAvailableWorkerError("task-1", 4.5)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	var cycleErr *errors.CycleError
//	if errors.As(err, &cycleErr) { ... }
//
// # Error Classification
//
// Soft scheduling conditions (missing data, zero workers, imbalance) never
// surface as errors at all: callers default and degrade. Only structural
// impossibilities (true cycles) and explicit capacity refusals are errors,
// and of those only NoAvailableWorker is retryable.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo Severity = iota
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Scheduling sentinel errors
var (
	// ErrDependencyCycle indicates a circular dependency between work items.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrNoAvailableWorker indicates that no registered worker can accept a task.
	ErrNoAvailableWorker = New("no available worker")
	// ErrAllocationRejected indicates an allocation would exceed worker capacity.
	ErrAllocationRejected = New("allocation rejected")
	// ErrResourceExhausted indicates host resources cannot admit more work.
	// This is advisory; it never blocks allocation.
	ErrResourceExhausted = New("resources exhausted")
	// ErrWorkerNotFound indicates that a worker could not be found.
	ErrWorkerNotFound = New("worker not found")
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrMonitorRunning indicates the resource monitor is already sampling.
	ErrMonitorRunning = New("monitor already running")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// CycleError reports a dependency cycle in the work graph, naming the
// involved item IDs. It is fatal only for dependency-based partitioning;
// other partition strategies ignore dependencies entirely.
//
// Example:
//
//	err := errors.NewCycleError([]string{"a", "b"})
//	fmt.Println(err) // "dependency cycle detected: a -> b -> a"
type CycleError struct {
	baseError
	ItemIDs []string
}

// NewCycleError creates a CycleError naming the items on the cycle,
// in traversal order.
func NewCycleError(itemIDs []string) *CycleError {
	return &CycleError{
		baseError: baseError{
			message:   "dependency cycle detected",
			cause:     ErrDependencyCycle,
			severity:  SeverityError,
			retryable: false,
		},
		ItemIDs: itemIDs,
	}
}

// Error returns the formatted error message.
func (e *CycleError) Error() string {
	if len(e.ItemIDs) == 0 {
		return "dependency cycle detected"
	}
	path := strings.Join(e.ItemIDs, " -> ")
	return fmt.Sprintf("dependency cycle detected: %s -> %s", path, e.ItemIDs[0])
}

// Is checks if this error matches the target.
func (e *CycleError) Is(target error) bool {
	if _, ok := target.(*CycleError); ok {
		return true
	}
	return errors.Is(ErrDependencyCycle, target) || e.baseError.Is(target)
}

// NoAvailableWorkerError indicates that no registered worker had the spare
// capacity (or availability) for a task. The task is queued, not dropped,
// so the condition is retryable: the next deallocation retries the queue.
type NoAvailableWorkerError struct {
	baseError
	TaskID string
	Effort float64
}

// NewNoAvailableWorkerError creates a NoAvailableWorkerError for the task.
func NewNoAvailableWorkerError(taskID string, effort float64) *NoAvailableWorkerError {
	return &NoAvailableWorkerError{
		baseError: baseError{
			message:   "no available worker",
			cause:     ErrNoAvailableWorker,
			severity:  SeverityWarning,
			retryable: true,
		},
		TaskID: taskID,
		Effort: effort,
	}
}

// Error returns the formatted error message.
func (e *NoAvailableWorkerError) Error() string {
	return fmt.Sprintf("no available worker for task %s (effort %.1f); task queued", e.TaskID, e.Effort)
}

// Is checks if this error matches the target.
func (e *NoAvailableWorkerError) Is(target error) bool {
	if _, ok := target.(*NoAvailableWorkerError); ok {
		return true
	}
	return errors.Is(ErrNoAvailableWorker, target) || e.baseError.Is(target)
}

// AllocationError represents a failed or rejected allocation attempt.
//
// Example:
//
//	err := errors.NewAllocationError("capacity exceeded", errors.ErrAllocationRejected).
//		WithTaskID("task-1").WithWorkerID("w-2")
type AllocationError struct {
	baseError
	TaskID   string
	WorkerID string
}

// NewAllocationError creates a new AllocationError.
func NewAllocationError(message string, cause error) *AllocationError {
	return &AllocationError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *AllocationError) WithTaskID(id string) *AllocationError {
	e.TaskID = id
	return e
}

// WithWorkerID adds a worker ID to the error context.
func (e *AllocationError) WithWorkerID(id string) *AllocationError {
	e.WorkerID = id
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AllocationError) WithRetryable(r bool) *AllocationError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AllocationError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.WorkerID != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.WorkerID))
	}

	prefix := "allocation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("allocation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AllocationError) Is(target error) bool {
	if _, ok := target.(*AllocationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state. In the scheduling
// core most malformed input is handled by defaulting rather than failing;
// ValidationError is reserved for inputs that cannot be defaulted, such
// as an empty worker ID at registration.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("worker", "w-1")
//	fmt.Println(err) // "worker 'w-1' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:  SeverityWarning,
			retryable: false,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	switch e.ResourceType {
	case "worker":
		if errors.Is(ErrWorkerNotFound, target) {
			return true
		}
	case "task":
		if errors.Is(ErrTaskNotFound, target) {
			return true
		}
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// classified is implemented by all errors in this package.
type classified interface {
	error
	Severity() Severity
	IsRetryable() bool
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. NoAvailableWorker is the canonical retryable
// condition: queued tasks are retried when capacity frees up.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ce classified
	if As(err, &ce) {
		return ce.IsRetryable()
	}
	return Is(err, ErrNoAvailableWorker)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't carry a severity.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}

	var ce classified
	if As(err, &ce) {
		return ce.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to partition workload")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
