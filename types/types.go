package types

import (
	"time"
)

// Status represents the possible states of a component test run
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
	StatusSkip  Status = "skip"
)

// IsFailure reports whether the status should fail the overall run.
// Errored runs count as failures: the runner never delivered a verdict.
func (s Status) IsFailure() bool {
	return s == StatusFail || s == StatusError
}

// Component identifies one independently testable unit of the workspace.
// The registry guarantees names are unique; order in the registry is the
// reporting order.
type Component struct {
	Name    string         `yaml:"name"`
	Timeout *time.Duration `yaml:"timeout,omitempty"`
}

// Outcome captures the result of running one component's test suite.
// Created exactly once per component per run and never mutated afterwards.
type Outcome struct {
	Component Component
	Status    Status
	Error     error         // Populated for fail/error outcomes
	Output    string        // Tail of the captured runner output, ANSI-stripped
	Duration  time.Duration // Wall clock time of all attempts combined
	Attempts  int           // Runner invocations made; >1 only when retries fired
	TimedOut  bool          // The per-component timeout converted this run to an error
}

// Passed reports whether the component's tests ran and passed.
func (o *Outcome) Passed() bool {
	return o != nil && o.Status == StatusPass
}
