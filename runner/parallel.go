package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// componentWork represents one component run handed to a worker. The index
// keeps outcomes in registry order regardless of completion order.
type componentWork struct {
	index     int
	component types.Component
}

// componentWorkResult carries a finished outcome back to the coordinator.
type componentWorkResult struct {
	index   int
	outcome *types.Outcome
}

// runParallel executes components through a bounded worker pool. Each run
// owns its own output buffer; the coordinating goroutine is the only
// writer to the outcome slice, so workers never share report state.
func (o *orchestrator) runParallel(ctx context.Context, runID string, components []types.Component) []*types.Outcome {
	concurrency := o.policy.Concurrency
	if concurrency > len(components) {
		concurrency = len(components)
	}

	bufferSize := min(concurrency*2, len(components))
	workCh := make(chan componentWork, bufferSize)
	resultCh := make(chan componentWorkResult, bufferSize)

	// Set once a failure is observed under fail-fast; workers then skip
	// any work they have not yet started. In-flight runs complete and are
	// recorded as-is.
	var halted atomic.Bool

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, runID, &halted, workCh, resultCh)
		}()
	}

	// Feed every component; workers drain the channel even when halted,
	// turning unstarted work into skipped outcomes.
	go func() {
		defer close(workCh)
		for i, component := range components {
			workCh <- componentWork{index: i, component: component}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]*types.Outcome, len(components))
	for result := range resultCh {
		outcomes[result.index] = result.outcome
	}

	return outcomes
}

// worker processes component runs until the work channel closes.
func (o *orchestrator) worker(ctx context.Context, runID string, halted *atomic.Bool, workCh <-chan componentWork, resultCh chan<- componentWorkResult) {
	for work := range workCh {
		var outcome *types.Outcome

		if ctx.Err() != nil || (o.policy.FailFast && halted.Load()) {
			outcome = skippedOutcome(work.component)
		} else {
			o.progress.StartComponent(work.component.Name)
			outcome = o.executeWithRetry(ctx, work.component)
			o.progress.CompleteComponent(work.component.Name, outcome.Status, outcome.Duration)

			if o.policy.FailFast && outcome.Status.IsFailure() {
				o.log.Warn("Halting run after failure (fail-fast)",
					"component", work.component.Name, "status", outcome.Status)
				halted.Store(true)
			}
		}

		o.recordOutcome(runID, outcome)
		resultCh <- componentWorkResult{index: work.index, outcome: outcome}
	}
}
