package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

var _ Executor = (*commandExecutor)(nil)

// ErrRunnerNotFound indicates the external runner binary could not be
// located at all. This is fatal and aborts the whole run before any
// outcome is produced.
var ErrRunnerNotFound = errors.New("test runner binary not found")

// Executor runs the external test runner for a single component and maps
// the process result onto an outcome. Implementations must be safe for
// concurrent use.
type Executor interface {
	Execute(ctx context.Context, component types.Component) *types.Outcome
}

// ExecutorConfig configures a command executor.
type ExecutorConfig struct {
	// Binary is the runner executable; defaults to DefaultRunnerBinary.
	Binary string
	// CaptureOutput retains a bounded tail of the runner's combined
	// stdout/stderr in each outcome.
	CaptureOutput bool
	// Log is the logger for per-invocation diagnostics.
	Log log.Logger
	// CmdBuilder constructs the command to run; defaults to
	// exec.CommandContext. Tests inject a builder to avoid spawning the
	// real runner.
	CmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// commandExecutor implements Executor by invoking the runner binary as
// `<binary> test -p <component>` per component.
type commandExecutor struct {
	binary        string
	captureOutput bool
	log           log.Logger
	cmdBuilder    func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewCommandExecutor creates an executor for the external runner binary.
// It verifies up front that the binary is resolvable; a missing runner is
// returned as ErrRunnerNotFound so callers can abort before running
// anything.
func NewCommandExecutor(cfg ExecutorConfig) (Executor, error) {
	if cfg.Binary == "" {
		cfg.Binary = DefaultRunnerBinary
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = exec.CommandContext
	}

	if _, err := exec.LookPath(cfg.Binary); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrRunnerNotFound, cfg.Binary, err)
	}

	return &commandExecutor{
		binary:        cfg.Binary,
		captureOutput: cfg.CaptureOutput,
		log:           cfg.Log,
		cmdBuilder:    cfg.CmdBuilder,
	}, nil
}

// Execute runs the component's test suite once and classifies the result.
// It never returns an error; every invocation yields exactly one outcome.
func (e *commandExecutor) Execute(ctx context.Context, component types.Component) *types.Outcome {
	outcome := &types.Outcome{
		Component: component,
		Attempts:  1,
	}

	runCtx := ctx
	var cancel context.CancelFunc
	var timeout time.Duration
	if component.Timeout != nil && *component.Timeout > 0 {
		timeout = *component.Timeout
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := e.cmdBuilder(runCtx, e.binary, TestCommand, PackageFlag, component.Name)

	var tail *tailBuffer
	if e.captureOutput {
		tail = newTailBuffer(defaultOutputTailBytes)
		cmd.Stdout = tail
		cmd.Stderr = tail
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	e.log.Debug("Invoking runner", "binary", e.binary, "component", component.Name, "timeout", timeout)

	start := time.Now()
	runErr := cmd.Run()
	outcome.Duration = time.Since(start)

	switch {
	case timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.Status = types.StatusError
		outcome.TimedOut = true
		outcome.Error = fmt.Errorf("component %q timed out after %v", component.Name, timeout)
	case ctx.Err() != nil:
		outcome.Status = types.StatusError
		outcome.Error = fmt.Errorf("component %q canceled: %w", component.Name, context.Cause(ctx))
	case runErr == nil:
		outcome.Status = types.StatusPass
	default:
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) {
			// The runner started and reported failure via its exit code.
			outcome.Status = types.StatusFail
			outcome.Error = fmt.Errorf("component %q tests failed: runner exited with code %d", component.Name, exitErr.ExitCode())
		} else {
			// The runner could not be invoked for this component.
			outcome.Status = types.StatusError
			outcome.Error = fmt.Errorf("failed to invoke runner for component %q: %w", component.Name, runErr)
		}
	}

	if tail != nil {
		outcome.Output = cleanOutput(tail)
	}

	return outcome
}

// cleanOutput strips ANSI escapes from the captured tail and marks
// truncation so readers know earlier output was dropped.
func cleanOutput(tail *tailBuffer) string {
	out := stripansi.Strip(string(tail.Bytes()))
	out = strings.TrimRight(out, "\n")
	if tail.Truncated() && out != "" {
		out = "[output truncated]\n" + out
	}
	return out
}
