package runner

import (
	"fmt"
	"time"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// Stats aggregates outcome counts for a run.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Errored int
	Skipped int

	StartTime time.Time
	EndTime   time.Time
}

// RunReport is the aggregate of all component outcomes for one run of the
// orchestrator. Outcomes appear in registry order. The overall status is
// pass only if every component passed.
type RunReport struct {
	RunID    string
	Outcomes []*types.Outcome
	Stats    Stats
	Status   types.Status

	// Duration is the sum of component durations; WallClockTime is the
	// elapsed time of the run. They differ under parallel execution.
	Duration      time.Duration
	WallClockTime time.Duration
}

// buildReport assembles a report from per-component outcomes, preserving
// registry order.
func buildReport(runID string, outcomes []*types.Outcome, start time.Time) *RunReport {
	report := &RunReport{
		RunID:    runID,
		Outcomes: outcomes,
		Stats:    Stats{StartTime: start},
	}

	for _, outcome := range outcomes {
		report.Stats.Total++
		report.Duration += outcome.Duration
		switch outcome.Status {
		case types.StatusPass:
			report.Stats.Passed++
		case types.StatusFail:
			report.Stats.Failed++
		case types.StatusError:
			report.Stats.Errored++
		case types.StatusSkip:
			report.Stats.Skipped++
		}
	}

	report.Stats.EndTime = time.Now()
	report.WallClockTime = time.Since(start)
	report.Status = determineRunStatus(report.Stats)

	return report
}

// determineRunStatus derives the overall verdict from the outcome counts.
// Success requires a non-empty run in which every component passed; a run
// that only skipped is reported as skip rather than fail so callers can
// tell "nothing failed" apart from "something failed".
func determineRunStatus(stats Stats) types.Status {
	switch {
	case stats.Total == 0:
		return types.StatusSkip
	case stats.Failed > 0 || stats.Errored > 0:
		return types.StatusFail
	case stats.Skipped > 0:
		return types.StatusSkip
	default:
		return types.StatusPass
	}
}

// String renders the one-line summary printed at the end of a run.
func (r *RunReport) String() string {
	return fmt.Sprintf("run %s: %d components: %d passed, %d failed, %d errored, %d skipped [%s] (%.1fs)",
		r.RunID,
		r.Stats.Total,
		r.Stats.Passed,
		r.Stats.Failed,
		r.Stats.Errored,
		r.Stats.Skipped,
		r.Status,
		r.WallClockTime.Seconds(),
	)
}
