package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefault verifies the built-in configuration is valid and carries the
// documented values.
func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scheduler.QuantumTicks != 100 {
		t.Errorf("QuantumTicks = %d; want 100", cfg.Scheduler.QuantumTicks)
	}
	if cfg.Placement.Policy != "roundrobin" {
		t.Errorf("Policy = %q; want roundrobin", cfg.Placement.Policy)
	}
	if cfg.Sim.CPUs != 2 {
		t.Errorf("Sim.CPUs = %d; want 2", cfg.Sim.CPUs)
	}
}

// TestLoad verifies YAML values override the defaults and untouched fields
// keep them.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
scheduler:
  quantum_ticks: 50
placement:
  policy: leastloaded
api_config:
  enabled: true
  addr: ":9000"
sim:
  cpus: 4
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.QuantumTicks != 50 {
		t.Errorf("QuantumTicks = %d; want 50", cfg.Scheduler.QuantumTicks)
	}
	if cfg.Placement.Policy != "leastloaded" {
		t.Errorf("Policy = %q; want leastloaded", cfg.Placement.Policy)
	}
	if !cfg.API.Enabled || cfg.API.Addr != ":9000" {
		t.Errorf("API = %+v; want enabled at :9000", cfg.API)
	}
	if cfg.Sim.CPUs != 4 {
		t.Errorf("Sim.CPUs = %d; want 4", cfg.Sim.CPUs)
	}
	// A field the document does not mention keeps its default.
	if cfg.Sim.NormalTasks != 8 {
		t.Errorf("Sim.NormalTasks = %d; want default 8", cfg.Sim.NormalTasks)
	}
}

// TestLoadMissingFile verifies a missing path is an error.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded; want error")
	}
}

// TestValidate verifies the rejection rules.
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyPolicy", func(c *Config) { c.Placement.Policy = "" }},
		{"ZeroCPUs", func(c *Config) { c.Sim.CPUs = 0 }},
		{"ZeroTickInterval", func(c *Config) { c.Sim.TickIntervalUs = 0 }},
		{"APIEnabledNoAddr", func(c *Config) { c.API.Enabled = true; c.API.Addr = "" }},
		{"TraceEnabledNoPath", func(c *Config) { c.Trace.Enabled = true; c.Trace.Path = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
