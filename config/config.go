// Package config loads the scheduler and simulator configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchedulerConfig holds the core scheduling parameters.
type SchedulerConfig struct {
	// QuantumTicks is the time slice length; 0 means the built-in default
	// of 100 ticks.
	QuantumTicks uint32 `yaml:"quantum_ticks"`
}

// PlacementConfig selects the CPU placement policy by registered name.
type PlacementConfig struct {
	Policy string `yaml:"policy"`
}

// APIConfig configures the stats HTTP endpoint.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TraceConfig configures the scheduling-event trace recorder.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimConfig holds the simulation workload parameters.
type SimConfig struct {
	CPUs           int    `yaml:"cpus"`
	TickIntervalUs uint64 `yaml:"tick_interval_us"`
	DurationMs     uint64 `yaml:"duration_ms"`
	NormalTasks    int    `yaml:"normal_tasks"`
	RealTimeTasks  int    `yaml:"real_time_tasks"`
	WorkTicks      uint64 `yaml:"work_ticks"`
	BlockEvery     uint64 `yaml:"block_every"`
	Pin            bool   `yaml:"pin"`
}

// Config is the root configuration document.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Placement PlacementConfig `yaml:"placement"`
	API       APIConfig       `yaml:"api_config"`
	Trace     TraceConfig     `yaml:"trace"`
	Log       LogConfig       `yaml:"log"`
	Sim       SimConfig       `yaml:"sim"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{QuantumTicks: 100},
		Placement: PlacementConfig{Policy: "roundrobin"},
		API:       APIConfig{Enabled: false, Addr: ":8099"},
		Trace:     TraceConfig{Enabled: false, Path: "sched_trace.db"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Sim: SimConfig{
			CPUs:           2,
			TickIntervalUs: 1000,
			DurationMs:     2000,
			NormalTasks:    8,
			RealTimeTasks:  2,
			WorkTicks:      500,
			BlockEvery:     0,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Placement.Policy == "" {
		return fmt.Errorf("placement policy cannot be empty")
	}
	if c.Sim.CPUs <= 0 {
		return fmt.Errorf("sim cpus must be positive, got %d", c.Sim.CPUs)
	}
	if c.Sim.TickIntervalUs == 0 {
		return fmt.Errorf("sim tick_interval_us must be positive")
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("api_config addr cannot be empty when enabled")
	}
	if c.Trace.Enabled && c.Trace.Path == "" {
		return fmt.Errorf("trace path cannot be empty when enabled")
	}
	return nil
}
