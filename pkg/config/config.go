package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the harness's on-disk configuration.
type Config struct {
	Framework  FrameworkConfig  `yaml:"framework"`
	Harness    HarnessConfig    `yaml:"harness"`
	Docker     DockerConfig     `yaml:"docker"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Reporting  ReportingConfig  `yaml:"reporting"`
	Emergency  EmergencyConfig  `yaml:"emergency"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Safety     SafetyConfig     `yaml:"safety"`
}

// FrameworkConfig contains general framework settings
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// HarnessConfig selects the deployer backend (§4.8) and carries the
// per-backend references and defaults the core treats as opaque: node
// image/binary references and per-role default ports. The core never
// interprets these; only the chosen Deployer implementation does.
type HarnessConfig struct {
	// Backend is one of "local", "compose", "k8s".
	Backend string `yaml:"backend"`

	// ReadinessTimeout bounds how long a Deployer waits for every node to
	// answer consensus_info (and, for executors, DA membership) after
	// bring-up. Zero disables the wait.
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`

	// BasePorts are the first node's ports; validator i's port is Base+i for
	// each kind, and executor i's is Base+executorPortOffset+i (see
	// pkg/deploy/ports.go).
	BaseNetworkPort int `yaml:"base_network_port"`
	BaseDAPort      int `yaml:"base_da_port"`
	BaseBlendPort   int `yaml:"base_blend_port"`
	BaseAPIPort     int `yaml:"base_api_port"`
	BaseTestingPort int `yaml:"base_testing_port"`

	Local   LocalBackendConfig   `yaml:"local"`
	Compose ComposeBackendConfig `yaml:"compose"`
	K8s     K8sBackendConfig     `yaml:"k8s"`
}

// LocalBackendConfig configures the in-process/child-process deployer.
type LocalBackendConfig struct {
	ValidatorBinary string `yaml:"validator_binary"`
	ExecutorBinary  string `yaml:"executor_binary"`
	WorkDir         string `yaml:"work_dir"`
}

// ComposeBackendConfig configures the Docker Compose deployer.
type ComposeBackendConfig struct {
	NodeImage     string `yaml:"node_image"`
	ProjectDir    string `yaml:"project_dir"`
	ProjectName   string `yaml:"project_name"`
	LabelSelector string `yaml:"label_selector"`
}

// K8sBackendConfig configures the Kubernetes-via-Helm deployer.
type K8sBackendConfig struct {
	NodeImage     string `yaml:"node_image"`
	Namespace     string `yaml:"namespace"`
	ChartPath     string `yaml:"chart_path"`
	ReleaseName   string `yaml:"release_name"`
	KubeconfigEnv string `yaml:"kubeconfig_env"`
}

// DockerConfig contains Docker settings shared by sidecar-style tooling.
type DockerConfig struct {
	SidecarImage string `yaml:"sidecar_image"`
	PullPolicy   string `yaml:"pull_policy"`
}

// PrometheusConfig contains Prometheus connection settings
type PrometheusConfig struct {
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ReportingConfig contains reporting and output settings
type ReportingConfig struct {
	OutputDir string   `yaml:"output_dir"`
	KeepLastN int      `yaml:"keep_last_n"`
	Formats   []string `yaml:"formats"`
}

// EmergencyConfig contains emergency stop settings
type EmergencyConfig struct {
	StopFile           string        `yaml:"stop_file"`
	AutoCleanupTimeout time.Duration `yaml:"auto_cleanup_timeout"`
}

// ExecutionConfig contains test execution settings
type ExecutionConfig struct {
	DefaultMode         string        `yaml:"default_mode"`
	DefaultWarmup       time.Duration `yaml:"default_warmup"`
	DefaultCooldown     time.Duration `yaml:"default_cooldown"`
	MaxConcurrentFaults int           `yaml:"max_concurrent_faults"`
}

// SafetyConfig contains safety limits
type SafetyConfig struct {
	MaxDuration         time.Duration `yaml:"max_duration"`
	RequireConfirmation bool          `yaml:"require_confirmation"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Harness: HarnessConfig{
			Backend:          "local",
			ReadinessTimeout: 2 * time.Minute,
			BaseNetworkPort:  18000,
			BaseDAPort:       18100,
			BaseBlendPort:    18200,
			BaseAPIPort:      18300,
			BaseTestingPort:  18400,
			Local: LocalBackendConfig{
				ValidatorBinary: "nomos-node",
				ExecutorBinary:  "nomos-executor",
				WorkDir:         "./.harness-run",
			},
			Compose: ComposeBackendConfig{
				NodeImage:     "nomos/node:latest",
				ProjectDir:    "./deploy/compose",
				ProjectName:   "nomos-harness",
				LabelSelector: "com.nomos.harness.run",
			},
			K8s: K8sBackendConfig{
				NodeImage:   "nomos/node:latest",
				Namespace:   "nomos-harness",
				ChartPath:   "./deploy/chart",
				ReleaseName: "nomos-harness",
			},
		},
		Docker: DockerConfig{
			SidecarImage: "jhkimqd/chaos-utils:latest",
			PullPolicy:   "if_not_present",
		},
		Prometheus: PrometheusConfig{
			URL:             "http://localhost:9090",
			Timeout:         30 * time.Second,
			RefreshInterval: 15 * time.Second,
		},
		Reporting: ReportingConfig{
			OutputDir: "./reports",
			KeepLastN: 50,
			Formats:   []string{"json", "html"},
		},
		Emergency: EmergencyConfig{
			StopFile:           "/tmp/nomos-harness-emergency-stop",
			AutoCleanupTimeout: 5 * time.Minute,
		},
		Execution: ExecutionConfig{
			DefaultMode:         "sequential",
			DefaultWarmup:       30 * time.Second,
			DefaultCooldown:     30 * time.Second,
			MaxConcurrentFaults: 5,
		},
		Safety: SafetyConfig{
			MaxDuration:         1 * time.Hour,
			RequireConfirmation: true,
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	prometheusURLEnvSet := os.Getenv("PROMETHEUS_URL") != ""
	prometheusURLEnv := os.Getenv("PROMETHEUS_URL")

	expandedData := []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if prometheusURLEnvSet {
		cfg.Prometheus.URL = prometheusURLEnv
	}

	return cfg, nil
}

// Save writes configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Harness.Backend {
	case "local", "compose", "k8s":
	default:
		return fmt.Errorf("harness.backend must be one of local/compose/k8s, got %q", c.Harness.Backend)
	}

	if c.Docker.SidecarImage == "" {
		return fmt.Errorf("docker.sidecar_image is required")
	}

	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}

	if c.Execution.MaxConcurrentFaults < 1 {
		return fmt.Errorf("execution.max_concurrent_faults must be at least 1")
	}

	return nil
}
