package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtc-infra/pbtc-acceptor/registry"
	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// newTestRegistry writes a components file for the given names and loads it.
func newTestRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()

	content := "components:\n"
	for _, name := range names {
		content += fmt.Sprintf("  - name: %s\n", name)
	}

	path := filepath.Join(t.TempDir(), "components.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg, err := registry.NewRegistry(registry.Config{ComponentsFile: path})
	require.NoError(t, err)
	return reg
}

// stubExecutor returns scripted outcomes and records every invocation.
type stubExecutor struct {
	mu    sync.Mutex
	calls []string
	// statuses maps component name to the status of each successive
	// invocation; the last entry repeats once exhausted.
	statuses map[string][]types.Status
	seen     map[string]int
	delay    time.Duration
}

func newStubExecutor(statuses map[string][]types.Status) *stubExecutor {
	return &stubExecutor{
		statuses: statuses,
		seen:     make(map[string]int),
	}
}

func (s *stubExecutor) Execute(ctx context.Context, component types.Component) *types.Outcome {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls = append(s.calls, component.Name)
	script := s.statuses[component.Name]
	i := s.seen[component.Name]
	s.seen[component.Name]++
	s.mu.Unlock()

	status := types.StatusPass
	if len(script) > 0 {
		if i >= len(script) {
			i = len(script) - 1
		}
		status = script[i]
	}

	outcome := &types.Outcome{
		Component: component,
		Status:    status,
		Attempts:  1,
		Duration:  time.Millisecond,
	}
	if status.IsFailure() {
		outcome.Error = fmt.Errorf("component %q did not pass", component.Name)
	}
	return outcome
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestOrchestrator(t *testing.T, reg *registry.Registry, executor Executor, policy Policy) Orchestrator {
	t.Helper()
	orchestrator, err := NewOrchestrator(Config{
		Registry: reg,
		Executor: executor,
		Policy:   policy,
	})
	require.NoError(t, err)
	return orchestrator
}

func statusesOf(report *RunReport) []types.Status {
	statuses := make([]types.Status, len(report.Outcomes))
	for i, outcome := range report.Outcomes {
		statuses[i] = outcome.Status
	}
	return statuses
}

func TestRunAllAllPass(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta")
	executor := newStubExecutor(nil)
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, []types.Status{types.StatusPass, types.StatusPass}, statusesOf(report))
	assert.Equal(t, types.StatusPass, report.Status)
	assert.Equal(t, 2, report.Stats.Passed)
	assert.NotEmpty(t, report.RunID)
}

func TestRunAllPartialFailure(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta")
	executor := newStubExecutor(map[string][]types.Status{
		"alpha": {types.StatusFail},
	})
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	// Without fail-fast the run continues past the failure
	assert.Equal(t, []types.Status{types.StatusFail, types.StatusPass}, statusesOf(report))
	assert.Equal(t, types.StatusFail, report.Status)
	assert.Equal(t, 2, executor.callCount())
}

func TestRunAllFailFast(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta", "gamma")
	executor := newStubExecutor(map[string][]types.Status{
		"alpha": {types.StatusFail},
	})
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{FailFast: true})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.Status{types.StatusFail, types.StatusSkip, types.StatusSkip}, statusesOf(report))
	assert.Equal(t, types.StatusFail, report.Status)
	assert.Equal(t, 1, executor.callCount(), "no further runner invocations after the failure")
	assert.Equal(t, 2, report.Stats.Skipped)
}

func TestRunAllFailFastOnErrored(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta")
	executor := newStubExecutor(map[string][]types.Status{
		"alpha": {types.StatusError},
	})
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{FailFast: true})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.Status{types.StatusError, types.StatusSkip}, statusesOf(report))
	assert.Equal(t, 1, executor.callCount())
}

func TestRunAllRetriesErrored(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	executor := newStubExecutor(map[string][]types.Status{
		"alpha": {types.StatusError, types.StatusPass},
	})
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{Retries: 1})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusPass, report.Outcomes[0].Status)
	assert.Equal(t, 2, report.Outcomes[0].Attempts)
	assert.Equal(t, types.StatusPass, report.Status)
}

func TestRunAllNeverRetriesFailed(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	executor := newStubExecutor(map[string][]types.Status{
		"alpha": {types.StatusFail, types.StatusPass},
	})
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{Retries: 3})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	// A failed suite is a definitive signal; only one invocation happens
	assert.Equal(t, 1, executor.callCount())
	assert.Equal(t, types.StatusFail, report.Outcomes[0].Status)
}

func TestRunAllRetriesExhausted(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	executor := newStubExecutor(map[string][]types.Status{
		"alpha": {types.StatusError, types.StatusError, types.StatusError},
	})
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{Retries: 2})

	report, err := orchestrator.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, executor.callCount())
	assert.Equal(t, types.StatusError, report.Outcomes[0].Status)
	assert.Equal(t, 3, report.Outcomes[0].Attempts)
	assert.Equal(t, types.StatusFail, report.Status)
}

func TestRunAllIdempotent(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta", "gamma")
	statuses := map[string][]types.Status{
		"beta": {types.StatusFail},
	}

	first, err := newTestOrchestrator(t, reg, newStubExecutor(statuses), Policy{}).RunAll(context.Background())
	require.NoError(t, err)
	second, err := newTestOrchestrator(t, reg, newStubExecutor(statuses), Policy{}).RunAll(context.Background())
	require.NoError(t, err)

	// Two runs over the same registry with a deterministic runner agree
	// structurally; only IDs and timing differ.
	assert.Equal(t, statusesOf(first), statusesOf(second))
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Stats.Passed, second.Stats.Passed)
	assert.Equal(t, first.Stats.Failed, second.Stats.Failed)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunAllCancelledBeforeStart(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta")
	executor := newStubExecutor(nil)
	orchestrator := newTestOrchestrator(t, reg, executor, Policy{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := orchestrator.RunAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []types.Status{types.StatusSkip, types.StatusSkip}, statusesOf(report))
	assert.Equal(t, types.StatusSkip, report.Status)
	assert.Equal(t, 0, executor.callCount())
}

func TestNewOrchestratorValidation(t *testing.T) {
	reg := newTestRegistry(t, "alpha")

	t.Run("missing registry", func(t *testing.T) {
		_, err := NewOrchestrator(Config{Executor: newStubExecutor(nil)})
		require.Error(t, err)
	})

	t.Run("missing executor", func(t *testing.T) {
		_, err := NewOrchestrator(Config{Registry: reg})
		require.Error(t, err)
	})

	t.Run("negative retries", func(t *testing.T) {
		_, err := NewOrchestrator(Config{
			Registry: reg,
			Executor: newStubExecutor(nil),
			Policy:   Policy{Retries: -1},
		})
		require.Error(t, err)
	})

	t.Run("concurrency defaults to one", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(Config{
			Registry: reg,
			Executor: newStubExecutor(nil),
			Policy:   Policy{Concurrency: 0},
		})
		require.NoError(t, err)
		require.NotNil(t, orchestrator)
	})
}
