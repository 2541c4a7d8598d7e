package acceptor

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/pbtc-infra/pbtc-acceptor/flags"
)

// Config holds the application configuration
type Config struct {
	ComponentsFile   string        // Path to the components file (the registry's source of truth)
	RunnerBinary     string        // External runner binary; empty means components-file setting, then the default
	RunInterval      time.Duration // Interval between runs
	RunOnce          bool          // Indicates if the service should exit after one run
	FailFast         bool          // Stop issuing component runs after the first failure
	Concurrency      int           // Number of components that may run concurrently
	CaptureOutput    bool          // Retain a tail of runner output per component
	Timeout          time.Duration // Default per-component timeout, can be overridden per component
	Retries          int           // Retry bound for errored (not failed) component runs
	ProgressInterval time.Duration // Interval between progress updates; 0 disables them
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger, componentsFile string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if componentsFile == "" {
		return nil, errors.New("components file is required")
	}

	absComponentsFile, err := filepath.Abs(componentsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for components file '%s': %w", componentsFile, err)
	}

	concurrency := ctx.Int(flags.Parallelism.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("parallelism must be at least 1, got %d", concurrency)
	}

	retries := ctx.Int(flags.Retries.Name)
	if retries < 0 {
		return nil, fmt.Errorf("retries cannot be negative, got %d", retries)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		ComponentsFile:   absComponentsFile,
		RunnerBinary:     ctx.String(flags.RunnerBinary.Name),
		RunInterval:      runInterval,
		RunOnce:          runOnce,
		FailFast:         ctx.Bool(flags.FailFast.Name),
		Concurrency:      concurrency,
		CaptureOutput:    !ctx.Bool(flags.NoCapture.Name),
		Timeout:          ctx.Duration(flags.Timeout.Name),
		Retries:          retries,
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Log:              log,
	}, nil
}
