package runner

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// scriptBuilder swaps the real runner invocation for a shell script while
// recording the command the executor asked for.
func scriptBuilder(script string, recorded *[]string) func(ctx context.Context, name string, arg ...string) *exec.Cmd {
	return func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		if recorded != nil {
			*recorded = append([]string{name}, arg...)
		}
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
}

func newScriptExecutor(t *testing.T, script string, capture bool) Executor {
	t.Helper()
	executor, err := NewCommandExecutor(ExecutorConfig{
		Binary:        "sh",
		CaptureOutput: capture,
		CmdBuilder:    scriptBuilder(script, nil),
	})
	require.NoError(t, err)
	return executor
}

func TestNewCommandExecutorMissingBinary(t *testing.T) {
	_, err := NewCommandExecutor(ExecutorConfig{
		Binary: "definitely-not-a-real-runner-binary",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunnerNotFound))
	assert.Contains(t, err.Error(), "definitely-not-a-real-runner-binary")
}

func TestExecuteCommandLine(t *testing.T) {
	var recorded []string
	executor, err := NewCommandExecutor(ExecutorConfig{
		Binary:     "sh",
		CmdBuilder: scriptBuilder("exit 0", &recorded),
	})
	require.NoError(t, err)

	outcome := executor.Execute(context.Background(), types.Component{Name: "chain"})

	assert.Equal(t, types.StatusPass, outcome.Status)
	assert.Equal(t, []string{"sh", TestCommand, PackageFlag, "chain"}, recorded)
}

func TestExecuteClassification(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		wantStatus types.Status
		wantErr    string
	}{
		{
			name:       "zero exit is a pass",
			script:     "exit 0",
			wantStatus: types.StatusPass,
		},
		{
			name:       "nonzero exit is a failure",
			script:     "exit 3",
			wantStatus: types.StatusFail,
			wantErr:    "exited with code 3",
		},
		{
			name:       "unstartable command is an error",
			script:     "",
			wantStatus: types.StatusError,
			wantErr:    "failed to invoke runner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var executor Executor
			var err error
			if tt.script == "" {
				executor, err = NewCommandExecutor(ExecutorConfig{
					Binary: "sh",
					CmdBuilder: func(ctx context.Context, name string, arg ...string) *exec.Cmd {
						return exec.CommandContext(ctx, "/nonexistent/runner-binary")
					},
				})
			} else {
				executor, err = NewCommandExecutor(ExecutorConfig{
					Binary:     "sh",
					CmdBuilder: scriptBuilder(tt.script, nil),
				})
			}
			require.NoError(t, err)

			outcome := executor.Execute(context.Background(), types.Component{Name: "chain"})

			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, 1, outcome.Attempts)
			assert.False(t, outcome.TimedOut)
			if tt.wantErr != "" {
				require.Error(t, outcome.Error)
				assert.Contains(t, outcome.Error.Error(), tt.wantErr)
			} else {
				assert.NoError(t, outcome.Error)
			}
		})
	}
}

func TestExecuteCapturesOutput(t *testing.T) {
	executor := newScriptExecutor(t, "echo stdout line; echo stderr line 1>&2; exit 1", true)

	outcome := executor.Execute(context.Background(), types.Component{Name: "db"})

	assert.Equal(t, types.StatusFail, outcome.Status)
	assert.Contains(t, outcome.Output, "stdout line")
	assert.Contains(t, outcome.Output, "stderr line")
}

func TestExecuteDiscardsOutputWhenCaptureDisabled(t *testing.T) {
	executor := newScriptExecutor(t, "echo noisy output", false)

	outcome := executor.Execute(context.Background(), types.Component{Name: "db"})

	assert.Equal(t, types.StatusPass, outcome.Status)
	assert.Empty(t, outcome.Output)
}

func TestExecuteStripsANSIEscapes(t *testing.T) {
	executor := newScriptExecutor(t, `printf 'test \033[0;32mok\033[0m\n'`, true)

	outcome := executor.Execute(context.Background(), types.Component{Name: "db"})

	assert.Equal(t, "test ok", outcome.Output)
}

func TestExecuteTimeout(t *testing.T) {
	executor := newScriptExecutor(t, "sleep 10", false)

	timeout := 50 * time.Millisecond
	outcome := executor.Execute(context.Background(), types.Component{
		Name:    "sync",
		Timeout: &timeout,
	})

	assert.Equal(t, types.StatusError, outcome.Status)
	assert.True(t, outcome.TimedOut)
	require.Error(t, outcome.Error)
	assert.Contains(t, outcome.Error.Error(), "timed out")
	assert.Less(t, outcome.Duration, 5*time.Second)
}

func TestExecuteCancelled(t *testing.T) {
	executor := newScriptExecutor(t, "sleep 10", false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	outcome := executor.Execute(ctx, types.Component{Name: "sync"})

	assert.Equal(t, types.StatusError, outcome.Status)
	assert.False(t, outcome.TimedOut, "cancellation is not a timeout")
	require.Error(t, outcome.Error)
	assert.Contains(t, outcome.Error.Error(), "canceled")
}
