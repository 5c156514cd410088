package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidStrategies returns the list of valid allocation strategy names
func ValidStrategies() []string {
	return []string{"round-robin", "specialized", "performance", "load-balanced"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateMonitor()...)
	errors = append(errors, c.validateRebalance()...)
	errors = append(errors, c.validateIntake()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.Strategy != "" && !slices.Contains(ValidStrategies(), c.Scheduler.Strategy) {
		errors = append(errors, ValidationError{
			Field:   "scheduler.strategy",
			Value:   c.Scheduler.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
		})
	}

	// 0 means derive from host resources
	if c.Scheduler.Workers < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.workers",
			Value:   c.Scheduler.Workers,
			Message: "must be non-negative (0 derives from host resources)",
		})
	}

	const maxWorkers = 1024
	if c.Scheduler.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "scheduler.workers",
			Value:   c.Scheduler.Workers,
			Message: fmt.Sprintf("exceeds maximum of %d", maxWorkers),
		})
	}

	if c.Scheduler.ComplexityThreshold <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.complexity_threshold",
			Value:   c.Scheduler.ComplexityThreshold,
			Message: "must be positive",
		})
	}

	if c.Scheduler.BaseUnitMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.base_unit_minutes",
			Value:   c.Scheduler.BaseUnitMinutes,
			Message: "must be positive",
		})
	}

	return errors
}

// validateMonitor validates the MonitorConfig
func (c *Config) validateMonitor() []ValidationError {
	var errors []ValidationError

	const minInterval = 1
	const maxInterval = 3600

	if c.Monitor.IntervalSeconds < minInterval {
		errors = append(errors, ValidationError{
			Field:   "monitor.interval_seconds",
			Value:   c.Monitor.IntervalSeconds,
			Message: fmt.Sprintf("must be at least %ds", minInterval),
		})
	}
	if c.Monitor.IntervalSeconds > maxInterval {
		errors = append(errors, ValidationError{
			Field:   "monitor.interval_seconds",
			Value:   c.Monitor.IntervalSeconds,
			Message: fmt.Sprintf("exceeds maximum of %ds", maxInterval),
		})
	}

	return errors
}

// validateRebalance validates the RebalanceConfig
func (c *Config) validateRebalance() []ValidationError {
	var errors []ValidationError

	if c.Rebalance.IntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "rebalance.interval_seconds",
			Value:   c.Rebalance.IntervalSeconds,
			Message: "must be at least 1s",
		})
	}

	return errors
}

// validateIntake validates the IntakeConfig
func (c *Config) validateIntake() []ValidationError {
	var errors []ValidationError

	if c.Intake.PlanFile == "" {
		errors = append(errors, ValidationError{
			Field:   "intake.plan_file",
			Value:   c.Intake.PlanFile,
			Message: "cannot be empty",
		})
	}

	const minDebounce = 10
	const maxDebounce = 60000
	if c.Intake.DebounceMs < minDebounce {
		errors = append(errors, ValidationError{
			Field:   "intake.debounce_ms",
			Value:   c.Intake.DebounceMs,
			Message: fmt.Sprintf("must be at least %dms", minDebounce),
		})
	}
	if c.Intake.DebounceMs > maxDebounce {
		errors = append(errors, ValidationError{
			Field:   "intake.debounce_ms",
			Value:   c.Intake.DebounceMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxDebounce),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
