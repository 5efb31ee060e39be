package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 7*24*time.Hour, cfg.Cache.Retention.Std())
	assert.Equal(t, []types.Severity{types.SeverityHigh, types.SeverityCritical}, cfg.Scan.Gate)
	assert.Equal(t, "kind", cfg.Cluster.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Cluster.ReadyTimeout.Std())
	assert.Equal(t, 200, cfg.Cluster.ProbeStatus)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Image.Name = "registry.local/app"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		option string
	}{
		{"missing image name", func(c *Config) { c.Image.Name = "" }, "image.name"},
		{"missing tag", func(c *Config) { c.Image.Tag = "" }, "image.tag"},
		{"zero retention", func(c *Config) { c.Cache.Retention = 0 }, "cache.retention"},
		{"zero scan timeout", func(c *Config) { c.Scan.Timeout = 0 }, "scan.timeout"},
		{"empty scan command", func(c *Config) { c.Scan.Command = nil }, "scan.command"},
		{"unknown severity", func(c *Config) { c.Scan.Gate = []types.Severity{"SEVERE"} }, "scan.gate"},
		{"zero replicas", func(c *Config) { c.Cluster.Workload.Replicas = 0 }, "cluster.workload.replicas"},
	}

	assert.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errdefs.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.option)
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gantry.yaml")
	data := `
image:
  name: registry.local/app
  tag: v1.2.3
cache:
  retention: 48h
scan:
  gate: [CRITICAL]
cluster:
  name: smoke
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "registry.local/app", cfg.Image.Name)
	assert.Equal(t, "v1.2.3", cfg.Image.Tag)
	assert.Equal(t, 48*time.Hour, cfg.Cache.Retention.Std())
	assert.Equal(t, []types.Severity{types.SeverityCritical}, cfg.Scan.Gate)
	assert.Equal(t, "smoke", cfg.Cluster.Name)
	// untouched options keep their defaults
	assert.Equal(t, "kind", cfg.Cluster.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Scan.Timeout.Std())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gantry.yaml")
	assert.Error(t, err)
}

func TestGateSet(t *testing.T) {
	cfg := DefaultConfig()
	set := cfg.GateSet()
	assert.True(t, set[types.SeverityHigh])
	assert.True(t, set[types.SeverityCritical])
	assert.False(t, set[types.SeverityLow])
}
