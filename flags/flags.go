package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "PBTC_ACCEPTOR"

var (
	Components = &cli.StringFlag{
		Name:    "components",
		Value:   "components.yaml",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COMPONENTS"),
		Usage:   "Path to the components file listing the units to test (eg. 'components.yaml')",
	}
	RunnerBinary = &cli.StringFlag{
		Name:    "runner-binary",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNNER_BINARY"),
		Usage:   "Path to the external test runner binary; overrides the components file setting",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	FailFast = &cli.BoolFlag{
		Name:    "fail-fast",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_FAST"),
		Usage:   "Stop issuing component runs after the first failed or errored component; remaining components are skipped",
	}
	Parallelism = &cli.IntFlag{
		Name:    "parallelism",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLELISM"),
		Usage:   "Number of components whose test suites may run concurrently",
	}
	NoCapture = &cli.BoolFlag{
		Name:    "no-capture",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_CAPTURE"),
		Usage:   "Discard runner output instead of retaining a tail per component",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Default per-component timeout; 0 disables it. Components may override in the components file.",
	}
	Retries = &cli.IntFlag{
		Name:    "retries",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RETRIES"),
		Usage:   "Number of times to retry a component whose runner errored (failed tests are never retried)",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between periodic progress updates; 0 disables them",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Components,
	RunnerBinary,
	RunInterval,
	FailFast,
	Parallelism,
	NoCapture,
	Timeout,
	Retries,
	ProgressInterval,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
