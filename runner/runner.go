package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/pbtc-infra/pbtc-acceptor/metrics"
	"github.com/pbtc-infra/pbtc-acceptor/registry"
	"github.com/pbtc-infra/pbtc-acceptor/types"
)

var _ Orchestrator = (*orchestrator)(nil)

// Policy controls how the orchestrator schedules component runs.
type Policy struct {
	// FailFast stops issuing further component runs as soon as one
	// outcome is failed or errored; remaining components are recorded as
	// skipped rather than run.
	FailFast bool
	// Concurrency is the number of components whose suites may execute
	// at the same time. 1 means strictly sequential.
	Concurrency int
	// Retries re-invokes the runner on an errored outcome (never on a
	// failed one) up to this many additional times.
	Retries int
}

// Orchestrator runs the test suite for each component in the registry and
// produces a RunReport.
type Orchestrator interface {
	RunAll(ctx context.Context) (*RunReport, error)
}

// Config contains orchestrator configuration
type Config struct {
	Registry *registry.Registry
	Executor Executor
	Policy   Policy
	Log      log.Logger
	Progress ProgressIndicator
}

type orchestrator struct {
	registry *registry.Registry
	executor Executor
	policy   Policy
	log      log.Logger
	progress ProgressIndicator
}

// NewOrchestrator creates an orchestrator over the given registry and
// executor.
func NewOrchestrator(cfg Config) (Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	if cfg.Policy.Concurrency < 1 {
		cfg.Policy.Concurrency = 1
	}
	if cfg.Policy.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("Very high concurrency requested", "concurrency", cfg.Policy.Concurrency,
			"cap", MaxReasonableConcurrency)
		cfg.Policy.Concurrency = MaxReasonableConcurrency
	}
	if cfg.Policy.Retries < 0 {
		return nil, fmt.Errorf("retries cannot be negative")
	}

	return &orchestrator{
		registry: cfg.Registry,
		executor: cfg.Executor,
		policy:   cfg.Policy,
		log:      cfg.Log,
		progress: cfg.Progress,
	}, nil
}

// RunAll runs every registered component and always produces a report,
// even if every component fails. Only an empty registry surfaces as an
// error; per-component failures are captured in the report.
func (o *orchestrator) RunAll(ctx context.Context) (*RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	components := o.registry.Components()
	if len(components) == 0 {
		return nil, fmt.Errorf("registry has no components")
	}

	runID := uuid.New().String()
	start := time.Now()

	o.log.Info("Starting component test run",
		"run_id", runID,
		"components", len(components),
		"concurrency", o.policy.Concurrency,
		"failFast", o.policy.FailFast)

	o.progress.StartRun(len(components))

	var outcomes []*types.Outcome
	if o.policy.Concurrency > 1 && len(components) > 1 {
		outcomes = o.runParallel(ctx, runID, components)
	} else {
		outcomes = o.runSerial(ctx, runID, components)
	}

	o.progress.CompleteRun()

	report := buildReport(runID, outcomes, start)
	o.log.Info("Component test run finished", "run_id", runID, "status", report.Status, "duration", report.WallClockTime)

	return report, nil
}

// runSerial executes components one at a time in registry order.
func (o *orchestrator) runSerial(ctx context.Context, runID string, components []types.Component) []*types.Outcome {
	outcomes := make([]*types.Outcome, 0, len(components))
	halted := false

	for _, component := range components {
		if halted || ctx.Err() != nil {
			outcome := skippedOutcome(component)
			o.recordOutcome(runID, outcome)
			outcomes = append(outcomes, outcome)
			continue
		}

		o.progress.StartComponent(component.Name)
		outcome := o.executeWithRetry(ctx, component)
		o.progress.CompleteComponent(component.Name, outcome.Status, outcome.Duration)
		o.recordOutcome(runID, outcome)
		outcomes = append(outcomes, outcome)

		if o.policy.FailFast && outcome.Status.IsFailure() {
			o.log.Warn("Halting run after failure (fail-fast)",
				"component", component.Name, "status", outcome.Status)
			halted = true
		}
	}

	return outcomes
}

// executeWithRetry invokes the executor, retrying only errored outcomes.
// A failed outcome is a definitive signal and is never retried.
func (o *orchestrator) executeWithRetry(ctx context.Context, component types.Component) *types.Outcome {
	outcome := o.executor.Execute(ctx, component)

	for attempt := 1; attempt <= o.policy.Retries; attempt++ {
		if outcome.Status != types.StatusError || outcome.TimedOut || ctx.Err() != nil {
			break
		}
		o.log.Warn("Runner invocation errored, retrying",
			"component", component.Name,
			"attempt", attempt+1,
			"error", outcome.Error)

		retry := o.executor.Execute(ctx, component)
		retry.Attempts += outcome.Attempts
		retry.Duration += outcome.Duration
		outcome = retry
	}

	return outcome
}

func (o *orchestrator) recordOutcome(runID string, outcome *types.Outcome) {
	metrics.RecordComponent(runID, outcome.Component.Name, outcome.Status)
}

// skippedOutcome records a component that was intentionally not run, due
// to fail-fast or cancellation.
func skippedOutcome(component types.Component) *types.Outcome {
	return &types.Outcome{
		Component: component,
		Status:    types.StatusSkip,
	}
}
