// Package runner provides the orchestration core: it invokes the external
// test runner once per registered component and aggregates the outcomes.
//
// The main components are:
//   - Executor: invokes the external runner process for a single component
//     with timeout handling and bounded output capture
//   - Orchestrator: schedules component runs (serial or worker pool),
//     applies the fail-fast and retry policy, and assembles the RunReport
//   - RunReport: the aggregate of all component outcomes for one run,
//     including the overall verdict consumed by the process boundary
//
// Per-component failures never escape RunAll; they are recorded in the
// report. Only configuration and environment problems surface as errors.
package runner
