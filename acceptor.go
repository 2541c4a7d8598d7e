package acceptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/pbtc-infra/pbtc-acceptor/exitcodes"
	"github.com/pbtc-infra/pbtc-acceptor/metrics"
	"github.com/pbtc-infra/pbtc-acceptor/registry"
	"github.com/pbtc-infra/pbtc-acceptor/runner"
	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// acceptor orchestrates component test runs over the configured registry.
type acceptor struct {
	ctx          context.Context
	config       *Config
	version      string
	registry     *registry.Registry
	orchestrator runner.Orchestrator
	report       *runner.RunReport

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"componentsFile", config.ComponentsFile,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"failFast", config.FailFast,
		"concurrency", config.Concurrency,
		"retries", config.Retries)

	reg, err := registry.NewRegistry(registry.Config{
		Log:            config.Log,
		ComponentsFile: config.ComponentsFile,
		DefaultTimeout: config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	// Flag takes precedence over the components file, which takes
	// precedence over the built-in default.
	binary := config.RunnerBinary
	if binary == "" {
		binary = reg.RunnerBinary()
	}

	executor, err := runner.NewCommandExecutor(runner.ExecutorConfig{
		Binary:        binary,
		CaptureOutput: config.CaptureOutput,
		Log:           config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	orchestrator, err := runner.NewOrchestrator(runner.Config{
		Registry: reg,
		Executor: executor,
		Policy: runner.Policy{
			FailFast:    config.FailFast,
			Concurrency: config.Concurrency,
			Retries:     config.Retries,
		},
		Log:      config.Log,
		Progress: runner.NewLogProgressIndicator(config.Log, config.ProgressInterval),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	config.Log.Info("acceptor.New: created registry and orchestrator", "components", len(reg.Components()))

	return &acceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		orchestrator:     orchestrator,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the component suites once, or periodically at the configured
// interval. Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)

	if a.config.RunOnce {
		a.config.Log.Info("Starting pbtc-acceptor in run-once mode")
	} else {
		a.config.Log.Info("Starting pbtc-acceptor in continuous mode", "interval", a.config.RunInterval)
	}

	// Run components immediately on startup
	err := a.runComponents()
	if err != nil {
		a.config.Log.Error("Runtime error running components", "error", err)
		return NewRuntimeError(err)
	}

	// If in run-once mode, trigger shutdown and return
	if a.config.RunOnce {
		a.config.Log.Info("Run completed, exiting (run-once mode)")

		if a.report != nil && a.report.Status != types.StatusPass {
			a.config.Log.Warn("Run-once completed without overall success, returning exit code 1",
				"status", a.report.Status)
			return NewRunFailureError(a.report.String())
		}

		// Only need to call this when we're in run-once mode and the run passed
		go func() {
			a.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	// Start a goroutine for periodic execution
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic run goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic runner")
					return
				}

				a.config.Log.Info("Running periodic component tests")
				if err := a.runComponents(); err != nil {
					a.config.Log.Error("Error running periodic component tests", "error", err)
				}

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic runner")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic runner")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("pbtc-acceptor started successfully")
	return nil
}

// runComponents runs all component suites and processes the results
func (a *acceptor) runComponents() error {
	a.config.Log.Info("Running all components...")
	report, err := a.orchestrator.RunAll(a.ctx)
	if err != nil {
		// This is a runtime error, not a component failure
		a.config.Log.Error("Runtime error running components", "error", err)
		return err
	}
	a.report = report

	a.printResultsTable()
	fmt.Println(a.report.String())

	metrics.RecordRun(
		report.RunID,
		string(report.Status),
		report.Stats.Total,
		report.Stats.Passed,
		report.Stats.Failed+report.Stats.Errored,
		report.WallClockTime,
	)

	a.config.Log.Info("Run completed", "run_id", report.RunID, "status", report.Status)
	return nil
}

// Stop stops the pbtc-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping pbtc-acceptor")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new runs
	a.running.Store(false)

	a.config.Log.Debug("Sending done signal to goroutines")
	close(a.done)

	a.config.Log.Info("pbtc-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the pbtc-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return !a.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (a *acceptor) WaitForShutdown(ctx context.Context) error {
	a.config.Log.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.config.Log.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		a.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}

// printResultsTable prints the component results to the console.
func (a *acceptor) printResultsTable() {
	a.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Component Test Results (%s)", formatDuration(a.report.WallClockTime)))

	t.AppendHeader(table.Row{
		"Component", "Duration", "Attempts", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Component", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Attempts", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, outcome := range a.report.Outcomes {
		attempts := "-"
		if outcome.Attempts > 0 {
			attempts = fmt.Sprintf("%d", outcome.Attempts)
		}
		t.AppendRow(table.Row{
			outcome.Component.Name,
			formatDuration(outcome.Duration),
			attempts,
			getResultString(outcome.Status),
			summarizeError(outcome.Error),
		})
	}

	switch a.report.Status {
	case types.StatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.StatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		formatDuration(a.report.Duration),
		"",
		getResultString(a.report.Status),
		fmt.Sprintf("%d passed, %d failed, %d errored, %d skipped",
			a.report.Stats.Passed,
			a.report.Stats.Failed,
			a.report.Stats.Errored,
			a.report.Stats.Skipped),
	})

	t.Render()
}
