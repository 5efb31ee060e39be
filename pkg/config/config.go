package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/types"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use "30s" / "7d"-style
// strings ("d" is accepted as 24h)
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// parseDuration extends time.ParseDuration with a day suffix
func parseDuration(raw string) (time.Duration, error) {
	if n := len(raw); n > 1 && raw[n-1] == 'd' {
		var days float64
		if _, err := fmt.Sscanf(raw[:n-1], "%g", &days); err == nil {
			return time.Duration(days * float64(24*time.Hour)), nil
		}
	}
	return time.ParseDuration(raw)
}

// Config enumerates every option the orchestrator recognizes. There is no
// ambient environment lookup; everything the engine needs is passed in here.
type Config struct {
	// DataDir holds the cache and run databases
	DataDir string `yaml:"dataDir"`

	Image    ImageConfig    `yaml:"image"`
	Build    BuildConfig    `yaml:"build"`
	Cache    CacheConfig    `yaml:"cache"`
	Scan     ScanConfig     `yaml:"scan"`
	Registry RegistryConfig `yaml:"registry"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Log      LogConfig      `yaml:"log"`

	// MetricsAddr, when set, exposes a Prometheus /metrics listener for
	// the lifetime of the process
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

// ImageConfig names the image the pipeline produces
type ImageConfig struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
}

// BuildConfig locates the build context
type BuildConfig struct {
	ContextDir string `yaml:"contextDir"`
	Dockerfile string `yaml:"dockerfile"`
}

// CacheConfig controls the build-layer cache store
type CacheConfig struct {
	// Retention is the window after which entries are treated as misses
	Retention Duration `yaml:"retention"`
}

// ScanConfig controls the vulnerability scanner invocation and gate
type ScanConfig struct {
	// Command is the external scanner invocation; the token "{image}" is
	// replaced with the image reference
	Command []string `yaml:"command"`
	Timeout Duration `yaml:"timeout"`
	// Gate lists the severities that fail the run when present
	Gate []types.Severity `yaml:"gate"`
}

// RegistryConfig holds the push target and credentials reference
type RegistryConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	// PasswordFile is read at push time; the password itself never lives
	// in the config file
	PasswordFile string `yaml:"passwordFile"`
}

// ClusterConfig controls the ephemeral verification cluster
type ClusterConfig struct {
	// Provider is the external cluster tooling binary (e.g. "kind")
	Provider     string         `yaml:"provider"`
	Name         string         `yaml:"name"`
	ReadyTimeout Duration       `yaml:"readyTimeout"`
	PollInterval Duration       `yaml:"pollInterval"`
	ProbePath    string         `yaml:"probePath"`
	ProbeStatus  int            `yaml:"probeStatus"`
	Workload     WorkloadConfig `yaml:"workload"`
}

// WorkloadConfig describes the deployed workload
type WorkloadConfig struct {
	Name     string `yaml:"name"`
	Replicas int    `yaml:"replicas"`
	Port     int    `yaml:"port"`
	NodePort int    `yaml:"nodePort"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a Config with every option set to its default
func DefaultConfig() *Config {
	return &Config{
		DataDir: "/var/lib/gantry",
		Image: ImageConfig{
			Tag: "latest",
		},
		Build: BuildConfig{
			ContextDir: ".",
			Dockerfile: "Dockerfile",
		},
		Cache: CacheConfig{
			Retention: Duration(7 * 24 * time.Hour),
		},
		Scan: ScanConfig{
			Command: []string{"trivy", "image", "--format", "json", "{image}"},
			Timeout: Duration(5 * time.Minute),
			Gate:    []types.Severity{types.SeverityHigh, types.SeverityCritical},
		},
		Cluster: ClusterConfig{
			Provider:     "kind",
			Name:         "gantry-verify",
			ReadyTimeout: Duration(2 * time.Minute),
			PollInterval: Duration(2 * time.Second),
			ProbePath:    "/",
			ProbeStatus:  200,
			Workload: WorkloadConfig{
				Name:     "app",
				Replicas: 1,
				Port:     8080,
				NodePort: 30080,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// GateSet returns the configured gate as a set keyed by severity
func (c *Config) GateSet() map[types.Severity]bool {
	set := make(map[types.Severity]bool, len(c.Scan.Gate))
	for _, s := range c.Scan.Gate {
		set[s] = true
	}
	return set
}

// Validate checks the configuration before any step executes
func (c *Config) Validate() error {
	if c.Image.Name == "" {
		return &errdefs.ConfigError{Option: "image.name", Reason: "required"}
	}
	if c.Image.Tag == "" {
		return &errdefs.ConfigError{Option: "image.tag", Reason: "required"}
	}
	if c.Build.ContextDir == "" {
		return &errdefs.ConfigError{Option: "build.contextDir", Reason: "required"}
	}
	if c.Cache.Retention <= 0 {
		return &errdefs.ConfigError{Option: "cache.retention", Reason: "must be positive"}
	}
	if c.Scan.Timeout <= 0 {
		return &errdefs.ConfigError{Option: "scan.timeout", Reason: "must be positive"}
	}
	if len(c.Scan.Command) == 0 {
		return &errdefs.ConfigError{Option: "scan.command", Reason: "required"}
	}
	for _, s := range c.Scan.Gate {
		if s.Rank() == 0 {
			return &errdefs.ConfigError{Option: "scan.gate", Reason: fmt.Sprintf("unknown severity %q", s)}
		}
	}
	if c.Cluster.ReadyTimeout <= 0 {
		return &errdefs.ConfigError{Option: "cluster.readyTimeout", Reason: "must be positive"}
	}
	if c.Cluster.PollInterval <= 0 {
		return &errdefs.ConfigError{Option: "cluster.pollInterval", Reason: "must be positive"}
	}
	if c.Cluster.Workload.Replicas < 1 {
		return &errdefs.ConfigError{Option: "cluster.workload.replicas", Reason: "must be at least 1"}
	}
	return nil
}
