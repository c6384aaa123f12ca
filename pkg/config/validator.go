package config

import (
	"fmt"

	"github.com/sealedreview/reviewpipeline/pkg/fault"
)

// Validator validates a resolved Config comprehensively, stopping at
// the first failure — the same fail-fast shape as the teacher's
// Validator.ValidateAll().
type Validator struct {
	cfg *Config
}

// NewValidator builds a validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every check in order: network, concurrency,
// idempotency, fault table, gate thresholds, credentials.
func (v *Validator) ValidateAll() error {
	if err := v.validateNetwork(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	if err := v.validateConcurrency(); err != nil {
		return fmt.Errorf("concurrency validation failed: %w", err)
	}
	if err := v.validateIdempotency(); err != nil {
		return fmt.Errorf("idempotency validation failed: %w", err)
	}
	if err := v.validateFaultTriggers(); err != nil {
		return fmt.Errorf("fault trigger validation failed: %w", err)
	}
	if err := v.validateGateThresholds(); err != nil {
		return fmt.Errorf("gate threshold validation failed: %w", err)
	}
	if err := v.validateCredentials(); err != nil {
		return fmt.Errorf("credential validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateNetwork() error {
	if v.cfg.Port < 1 || v.cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", v.cfg.Port)
	}
	return nil
}

func (v *Validator) validateConcurrency() error {
	if v.cfg.PipelinePermitCapacity < 1 {
		return fmt.Errorf("pipeline_permit_capacity must be at least 1, got %d", v.cfg.PipelinePermitCapacity)
	}
	if v.cfg.LLMPermitCapacity < 1 {
		return fmt.Errorf("llm_permit_capacity must be at least 1, got %d", v.cfg.LLMPermitCapacity)
	}
	if v.cfg.LLMPermitCapacity > v.cfg.PipelinePermitCapacity {
		return fmt.Errorf("llm_permit_capacity (%d) must not exceed pipeline_permit_capacity (%d)", v.cfg.LLMPermitCapacity, v.cfg.PipelinePermitCapacity)
	}
	return nil
}

func (v *Validator) validateIdempotency() error {
	if v.cfg.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency_ttl must be positive, got %v", v.cfg.IdempotencyTTL)
	}
	if v.cfg.IdempotencyMaxEntries < 1 {
		return fmt.Errorf("idempotency_max_entries must be at least 1, got %d", v.cfg.IdempotencyMaxEntries)
	}
	return nil
}

func (v *Validator) validateFaultTriggers() error {
	known := make(map[fault.Code]bool, len(fault.AllCodes))
	for _, c := range fault.AllCodes {
		known[c] = true
	}
	for code, trig := range v.cfg.FaultTriggers {
		if !known[code] {
			return fmt.Errorf("unknown fault code %q", code)
		}
		switch trig.Kind {
		case fault.TriggerAlways, fault.TriggerNever:
		case fault.TriggerProb:
			if trig.Probability < 0 || trig.Probability > 1 {
				return fmt.Errorf("fault_triggers[%s].probability must be in [0,1], got %v", code, trig.Probability)
			}
		default:
			return fmt.Errorf("fault_triggers[%s]: unknown trigger kind %q", code, trig.Kind)
		}
	}
	return nil
}

func (v *Validator) validateGateThresholds() error {
	if v.cfg.GateHighCountOverride < 0 {
		return fmt.Errorf("gate_thresholds.high_count_manual_review must be non-negative, got %d", v.cfg.GateHighCountOverride)
	}
	return nil
}

// validateCredentials only checks presence where the value is about
// to be used for something the pipeline cannot function without; it
// never validates the credential's correctness (out of scope — that
// belongs to the external collaborators per spec.md §1).
func (v *Validator) validateCredentials() error {
	if v.cfg.WebhookSharedSecret == "" {
		return fmt.Errorf("WEBHOOK_SHARED_SECRET is required")
	}
	return nil
}
