// Package config loads, merges, and validates the pipeline's
// operating configuration: a YAML file with environment-variable
// expansion, built-in defaults merged in for anything the file omits,
// secrets loaded from a local .env file, and fail-fast validation
// before the process is allowed to start accepting webhooks.
//
// Grounded on the teacher's `pkg/config` package: `loader.go`'s
// YAML-plus-env-expansion load step, `merge.go`'s mergo-based
// built-in/user merge, and `validator.go`'s `Validator.ValidateAll()`
// fail-fast chain — generalized from tarsy's alert-pipeline sections
// (agents, chains, MCP servers) to this pipeline's own surface: HTTP
// port, permit capacities, idempotency sizing, the fault trigger
// table, gate thresholds, and webhook/LLM credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sealedreview/reviewpipeline/pkg/fault"
)

// FaultTriggerConfig is the YAML-friendly shape of a fault.Trigger;
// fault.Trigger itself has no yaml tags since pkg/fault has no
// business knowing about the config file format.
type FaultTriggerConfig struct {
	Kind        string  `yaml:"kind"`
	Probability float64 `yaml:"probability,omitempty"`
}

func (c FaultTriggerConfig) toTrigger() (fault.Trigger, error) {
	switch fault.TriggerKind(c.Kind) {
	case fault.TriggerAlways, fault.TriggerNever:
		return fault.Trigger{Kind: fault.TriggerKind(c.Kind)}, nil
	case fault.TriggerProb:
		return fault.Trigger{Kind: fault.TriggerProb, Probability: c.Probability}, nil
	default:
		return fault.Trigger{}, fmt.Errorf("unknown trigger kind %q", c.Kind)
	}
}

// GateThresholds overrides pkg/precheck's gate rule; zero values mean
// "use the compiled-in default".
type GateThresholds struct {
	HighCountManualReview int `yaml:"high_count_manual_review,omitempty"`
}

// YAMLConfig is the on-disk shape of the pipeline config file.
type YAMLConfig struct {
	Port                   int                           `yaml:"port"`
	PipelinePermitCapacity int                            `yaml:"pipeline_permit_capacity"`
	LLMPermitCapacity      int                            `yaml:"llm_permit_capacity"`
	IdempotencyTTL         string                         `yaml:"idempotency_ttl"`
	IdempotencyMaxEntries  int                            `yaml:"idempotency_max_entries"`
	FaultsEnabled          *bool                          `yaml:"faults_enabled,omitempty"`
	FaultTriggers          map[string]FaultTriggerConfig  `yaml:"fault_triggers,omitempty"`
	GateThresholds         *GateThresholds                `yaml:"gate_thresholds,omitempty"`
	SharedStoreDSN         string                         `yaml:"shared_store_dsn,omitempty"`
}

// Config is the fully resolved, validated configuration the bootstrap
// uses to wire every singleton.
type Config struct {
	Port                   int
	PipelinePermitCapacity int
	LLMPermitCapacity      int
	IdempotencyTTL         time.Duration
	IdempotencyMaxEntries  int
	FaultsEnabled          bool
	FaultTriggers          map[fault.Code]fault.Trigger
	GateHighCountOverride  int

	SharedStoreDSN string

	GitHubAppID         string
	GitHubPrivateKeyPEM string
	WebhookSharedSecret string
	LLMAPIKey           string
}

func defaultYAMLConfig() YAMLConfig {
	enabled := false
	return YAMLConfig{
		Port:                   8080,
		PipelinePermitCapacity: 10,
		LLMPermitCapacity:      3,
		IdempotencyTTL:         "1h",
		IdempotencyMaxEntries:  1000,
		FaultsEnabled:          &enabled,
	}
}

// Load reads configPath (a YAML file; missing file is not an error —
// the built-in defaults apply), expands ${VAR} references against the
// process environment, loads envPath as a dotenv file if present (a
// missing .env file is not an error either — real deployments set
// secrets directly in the environment), merges the result over the
// built-in defaults, and validates the outcome.
func Load(configPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading %s: %w", envPath, err)
		}
	}

	yc := defaultYAMLConfig()
	if configPath != "" {
		if err := loadYAMLOver(&yc, configPath); err != nil {
			return nil, err
		}
	}

	cfg, err := resolve(yc)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	v := NewValidator(cfg)
	if err := v.ValidateAll(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func loadYAMLOver(dst *YAMLConfig, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var loaded YAMLConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := mergo.Merge(dst, loaded, mergo.WithOverride); err != nil {
		return fmt.Errorf("config: merging %s: %w", path, err)
	}
	return nil
}

func resolve(yc YAMLConfig) (*Config, error) {
	ttl, err := time.ParseDuration(yc.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("config: idempotency_ttl: %w", err)
	}

	triggers := make(map[fault.Code]fault.Trigger, len(yc.FaultTriggers))
	for code, tc := range yc.FaultTriggers {
		trig, err := tc.toTrigger()
		if err != nil {
			return nil, fmt.Errorf("config: fault_triggers[%s]: %w", code, err)
		}
		triggers[fault.Code(code)] = trig
	}

	faultsEnabled := false
	if yc.FaultsEnabled != nil {
		faultsEnabled = *yc.FaultsEnabled
	}

	gateOverride := 0
	if yc.GateThresholds != nil {
		gateOverride = yc.GateThresholds.HighCountManualReview
	}

	return &Config{
		Port:                   yc.Port,
		PipelinePermitCapacity: yc.PipelinePermitCapacity,
		LLMPermitCapacity:      yc.LLMPermitCapacity,
		IdempotencyTTL:         ttl,
		IdempotencyMaxEntries:  yc.IdempotencyMaxEntries,
		FaultsEnabled:          faultsEnabled,
		FaultTriggers:          triggers,
		GateHighCountOverride:  gateOverride,
		SharedStoreDSN:         yc.SharedStoreDSN,
	}, nil
}

// applyEnvOverrides pulls the secrets spec.md §6 lists as "environment
// inputs" — these are never read from the YAML file, only the
// environment, so a secret never ends up checked into a config file.
func (c *Config) applyEnvOverrides() {
	c.GitHubAppID = os.Getenv("GITHUB_APP_ID")
	c.GitHubPrivateKeyPEM = os.Getenv("GITHUB_PRIVATE_KEY")
	c.WebhookSharedSecret = os.Getenv("WEBHOOK_SHARED_SECRET")
	c.LLMAPIKey = os.Getenv("LLM_API_KEY")
	if dsn := os.Getenv("SHARED_STORE_DSN"); dsn != "" {
		c.SharedStoreDSN = dsn
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := parsePositiveInt(port); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("FAULTS_ENABLED"); v != "" {
		c.FaultsEnabled = v == "true" || v == "1"
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("not positive: %s", s)
	}
	return n, nil
}
