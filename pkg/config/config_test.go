package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealedreview/reviewpipeline/pkg/fault"
)

func withEnv(t *testing.T, key, val string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, val))
	t.Cleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_DefaultsOnlyWhenNoYAMLFile(t *testing.T) {
	withEnv(t, "WEBHOOK_SHARED_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10, cfg.PipelinePermitCapacity)
	assert.Equal(t, 3, cfg.LLMPermitCapacity)
	assert.Equal(t, 1000, cfg.IdempotencyMaxEntries)
	assert.False(t, cfg.FaultsEnabled)
	assert.Equal(t, "s3cret", cfg.WebhookSharedSecret)
}

func TestLoad_YAMLOverridesMergeOverDefaults(t *testing.T) {
	withEnv(t, "WEBHOOK_SHARED_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
llm_permit_capacity: 5
pipeline_permit_capacity: 8
gate_thresholds:
  high_count_manual_review: 7
`), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 8, cfg.PipelinePermitCapacity)
	assert.Equal(t, 5, cfg.LLMPermitCapacity)
	assert.Equal(t, 7, cfg.GateHighCountOverride)
	assert.Equal(t, 1000, cfg.IdempotencyMaxEntries, "fields absent from the file keep their default")
}

func TestLoad_ExpandsEnvVarsInYAML(t *testing.T) {
	withEnv(t, "WEBHOOK_SHARED_SECRET", "s3cret")
	withEnv(t, "REVIEWPIPELINE_DSN", "postgres://example/reviewpipeline")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
shared_store_dsn: ${REVIEWPIPELINE_DSN}
`), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://example/reviewpipeline", cfg.SharedStoreDSN)
}

func TestLoad_FaultTriggersFromYAML(t *testing.T) {
	withEnv(t, "WEBHOOK_SHARED_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
faults_enabled: true
fault_triggers:
  LLM_TIMEOUT:
    kind: p
    probability: 0.25
  DECISION_WRITE_FAILURE:
    kind: never
`), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.True(t, cfg.FaultsEnabled)
	require.Contains(t, cfg.FaultTriggers, fault.LLMTimeout)
	assert.Equal(t, fault.TriggerProb, cfg.FaultTriggers[fault.LLMTimeout].Kind)
	assert.InDelta(t, 0.25, cfg.FaultTriggers[fault.LLMTimeout].Probability, 1e-9)
	assert.Equal(t, fault.TriggerNever, cfg.FaultTriggers[fault.DecisionWriteFailure].Kind)
}

func TestLoad_DotenvFileLoadsSecrets(t *testing.T) {
	os.Unsetenv("WEBHOOK_SHARED_SECRET")
	os.Unsetenv("LLM_API_KEY")

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("WEBHOOK_SHARED_SECRET=from-dotenv\nLLM_API_KEY=abc123\n"), 0o600))

	cfg, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.WebhookSharedSecret)
	assert.Equal(t, "abc123", cfg.LLMAPIKey)
}

func TestLoad_EnvOverridesWinOverYAML(t *testing.T) {
	withEnv(t, "WEBHOOK_SHARED_SECRET", "from-env")
	withEnv(t, "PORT", "7000")
	withEnv(t, "FAULTS_ENABLED", "true")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
faults_enabled: false
`), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.WebhookSharedSecret)
	assert.Equal(t, 7000, cfg.Port, "PORT env var overrides the YAML port")
	assert.True(t, cfg.FaultsEnabled, "FAULTS_ENABLED env var overrides the YAML value")
}

func TestLoad_MissingWebhookSecretFailsValidation(t *testing.T) {
	os.Unsetenv("WEBHOOK_SHARED_SECRET")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "WEBHOOK_SHARED_SECRET")
}

func TestValidateAll_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 70000
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "network validation failed")
}

func TestValidateAll_LLMCapacityExceedsPipeline(t *testing.T) {
	cfg := validConfig()
	cfg.PipelinePermitCapacity = 2
	cfg.LLMPermitCapacity = 5
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "concurrency validation failed")
}

func TestValidateAll_NonPositiveIdempotencyTTL(t *testing.T) {
	cfg := validConfig()
	cfg.IdempotencyTTL = 0
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "idempotency validation failed")
}

func TestValidateAll_UnknownFaultCode(t *testing.T) {
	cfg := validConfig()
	cfg.FaultTriggers = map[fault.Code]fault.Trigger{
		fault.Code("not_a_real_code"): {Kind: fault.TriggerAlways},
	}
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "fault trigger validation failed")
}

func TestValidateAll_BadTriggerProbability(t *testing.T) {
	cfg := validConfig()
	cfg.FaultTriggers = map[fault.Code]fault.Trigger{
		fault.LLMTimeout: {Kind: fault.TriggerProb, Probability: 1.5},
	}
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "fault trigger validation failed")
}

func TestValidateAll_NegativeGateThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.GateHighCountOverride = -1
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "gate threshold validation failed")
}

func TestValidateAll_MissingWebhookSecret(t *testing.T) {
	cfg := validConfig()
	cfg.WebhookSharedSecret = ""
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "credential validation failed")
}

func validConfig() *Config {
	return &Config{
		Port:                   8080,
		PipelinePermitCapacity: 10,
		LLMPermitCapacity:      3,
		IdempotencyTTL:         time.Hour,
		IdempotencyMaxEntries:  1000,
		WebhookSharedSecret:    "s3cret",
	}
}
