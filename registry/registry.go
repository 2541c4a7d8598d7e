package registry

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// Registry holds the ordered list of components to be tested.
// It is loaded once at construction time and never mutated during a run.
type Registry struct {
	config     Config
	runner     RunnerConfig
	components []types.Component
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	ComponentsFile string
	DefaultTimeout time.Duration
}

// RunnerConfig carries the optional runner overrides declared in the
// components file.
type RunnerConfig struct {
	Binary string `yaml:"binary,omitempty"`
}

// componentsFile is the YAML shape of the components file.
type componentsFile struct {
	Runner     RunnerConfig      `yaml:"runner,omitempty"`
	Components []types.Component `yaml:"components"`
}

// NewRegistry creates a new registry instance from the components file.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ComponentsFile == "" {
		return nil, fmt.Errorf("components file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	if err := r.loadComponents(cfg.ComponentsFile); err != nil {
		return nil, fmt.Errorf("failed to load components: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(components)", len(r.components))

	return r, nil
}

// loadComponents reads and validates the components file.
func (r *Registry) loadComponents(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := validateComponents(cfg.Components); err != nil {
		return err
	}

	components := make([]types.Component, len(cfg.Components))
	copy(components, cfg.Components)
	for i := range components {
		if components[i].Timeout == nil && r.config.DefaultTimeout > 0 {
			timeout := r.config.DefaultTimeout
			components[i].Timeout = &timeout
		}
	}

	r.runner = cfg.Runner
	r.components = components

	return nil
}

// validateComponents enforces the registry invariants: at least one
// component, no empty names, no duplicate names.
func validateComponents(components []types.Component) error {
	if len(components) == 0 {
		return fmt.Errorf("no components configured; there is nothing to test")
	}

	seen := make(map[string]struct{}, len(components))
	for i, c := range components {
		if c.Name == "" {
			return fmt.Errorf("component at index %d has an empty name", i)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("duplicate component %q in registry", c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	return nil
}

// Components returns the ordered component list. The returned slice is a
// copy; callers cannot mutate registry state through it.
func (r *Registry) Components() []types.Component {
	components := make([]types.Component, len(r.components))
	copy(components, r.components)
	return components
}

// RunnerBinary returns the runner binary declared in the components file,
// or empty if the file does not override it.
func (r *Registry) RunnerBinary() string {
	return r.runner.Binary
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadConfig loads a components config from a file
func loadConfig(path string) (*componentsFile, error) {
	log.Debug("Reading components file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading components file: %w", err)
	}

	var cfg componentsFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing components file: %w", err)
	}

	return &cfg, nil
}
