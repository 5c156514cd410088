package errors

import (
	"strings"
	"testing"
)

func TestCycleError_NamesInvolvedIDs(t *testing.T) {
	err := NewCycleError([]string{"a", "b", "c"})

	msg := err.Error()
	for _, id := range []string{"a", "b", "c"} {
		if !strings.Contains(msg, id) {
			t.Errorf("Error() = %q, missing id %q", msg, id)
		}
	}
	if !strings.Contains(msg, "a -> b -> c -> a") {
		t.Errorf("Error() = %q, want cycle path closing back to the first id", msg)
	}
}

func TestCycleError_MatchesSentinel(t *testing.T) {
	err := NewCycleError([]string{"x", "y"})

	if !Is(err, ErrDependencyCycle) {
		t.Error("CycleError should match ErrDependencyCycle")
	}

	var cycleErr *CycleError
	if !As(err, &cycleErr) {
		t.Fatal("As() failed to extract *CycleError")
	}
	if len(cycleErr.ItemIDs) != 2 {
		t.Errorf("ItemIDs = %v, want 2 ids", cycleErr.ItemIDs)
	}
}

func TestCycleError_EmptyIDs(t *testing.T) {
	err := NewCycleError(nil)
	if err.Error() != "dependency cycle detected" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNoAvailableWorkerError(t *testing.T) {
	err := NewNoAvailableWorkerError("task-1", 4.5)

	if !Is(err, ErrNoAvailableWorker) {
		t.Error("should match ErrNoAvailableWorker")
	}
	if !IsRetryable(err) {
		t.Error("NoAvailableWorkerError should be retryable")
	}
	if !strings.Contains(err.Error(), "task-1") {
		t.Errorf("Error() = %q, missing task id", err.Error())
	}
	if !strings.Contains(err.Error(), "queued") {
		t.Errorf("Error() = %q, should mention queueing", err.Error())
	}
}

func TestAllocationError_Context(t *testing.T) {
	err := NewAllocationError("capacity exceeded", ErrAllocationRejected).
		WithTaskID("task-9").
		WithWorkerID("w-2")

	msg := err.Error()
	if !strings.Contains(msg, "task=task-9") {
		t.Errorf("Error() = %q, missing task context", msg)
	}
	if !strings.Contains(msg, "worker=w-2") {
		t.Errorf("Error() = %q, missing worker context", msg)
	}
	if !Is(err, ErrAllocationRejected) {
		t.Error("should unwrap to ErrAllocationRejected")
	}
	if IsRetryable(err) {
		t.Error("rejected allocations are not retryable")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("worker ID cannot be empty").
		WithField("id").
		WithValue("")

	if !strings.Contains(err.Error(), "field=id") {
		t.Errorf("Error() = %q, missing field context", err.Error())
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestNotFoundError_SentinelMapping(t *testing.T) {
	tests := []struct {
		resourceType string
		sentinel     error
	}{
		{"worker", ErrWorkerNotFound},
		{"task", ErrTaskNotFound},
	}

	for _, tt := range tests {
		err := NewNotFoundError(tt.resourceType, "id-1")
		if !Is(err, tt.sentinel) {
			t.Errorf("NotFoundError(%q) should match %v", tt.resourceType, tt.sentinel)
		}
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityInfo},
		{"cycle", NewCycleError([]string{"a"}), SeverityError},
		{"no worker", NewNoAvailableWorkerError("t", 1), SeverityWarning},
		{"validation", NewValidationError("bad"), SeverityWarning},
		{"plain", New("boom"), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := New("root cause")
	wrapped := Wrapf(base, "partitioning %d items", 3)
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base via Is")
	}
	if !strings.Contains(wrapped.Error(), "partitioning 3 items") {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestSeverity_String(t *testing.T) {
	if SeverityCritical.String() != "critical" {
		t.Errorf("String() = %q", SeverityCritical.String())
	}
	if Severity(99).String() != "unknown" {
		t.Errorf("String() = %q", Severity(99).String())
	}
}
