// Package metrics maintains the process-wide counters the
// /metrics endpoint snapshots: uptime, shared-store mode, per-path
// counters, load-shed/duplicate counts, LLM invocation/fallback rate,
// token/cost accounting, and both semaphores' occupancy.
//
// Grounded on the teacher's `pkg/queue/pool.go` `PoolHealth`/
// `WorkerHealth` read-only snapshot shape, generalized from a worker
// pool's in-flight/peak/available counters to the review pipeline's own
// concurrency and decision-path counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// ShareStoreMode mirrors spec.md §4.15's enumerated values.
type ShareStoreMode string

const (
	ModeSingleInstance ShareStoreMode = "single-instance"
	ModeDistributed    ShareStoreMode = "distributed"
	ModeDegraded       ShareStoreMode = "degraded"
)

// SemaphoreSnapshot mirrors pkg/permit.Semaphore's occupancy fields.
type SemaphoreSnapshot struct {
	InFlight  int `json:"in_flight"`
	Peak      int `json:"peak"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// SemaphoreSource is the minimal read accessor pkg/permit.Semaphore
// provides; kept as an interface so Registry does not import
// pkg/permit directly (the two packages are wired together by
// cmd/reviewpipeline's SetSources call, not by one another).
type SemaphoreSource interface {
	InFlight() int
	Max() int
	Peak() int
}

func snapshotSemaphore(s SemaphoreSource) SemaphoreSnapshot {
	if s == nil {
		return SemaphoreSnapshot{}
	}
	inFlight, capacity := s.InFlight(), s.Max()
	available := capacity - inFlight
	if available < 0 {
		available = 0
	}
	return SemaphoreSnapshot{
		InFlight:  inFlight,
		Peak:      s.Peak(),
		Available: available,
		Capacity:  capacity,
	}
}

// IdempotencyGuardSource is the minimal read accessor pkg/idempotency
// guards provide.
type IdempotencyGuardSource interface {
	Size() int
	BackendKind() string
}

// Snapshot is the full read-only view the /metrics endpoint serializes.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	SharedStoreEnabled bool           `json:"shared_store_enabled"`
	SharedStoreHealthy bool           `json:"shared_store_healthy"`
	SharedStoreMode    ShareStoreMode `json:"shared_store_mode"`

	DecisionPathCounts map[string]int64 `json:"decision_path_counts"`

	LoadShedCount int64 `json:"load_shed_count"`
	DuplicateCount int64 `json:"duplicate_count"`

	LLMInvocationCount int64   `json:"llm_invocation_count"`
	LLMFallbackCount   int64   `json:"llm_fallback_count"`
	LLMFallbackRate    float64 `json:"llm_fallback_rate"`

	LLMPromptTokens     int64   `json:"llm_prompt_tokens"`
	LLMCompletionTokens int64   `json:"llm_completion_tokens"`
	LLMEstimatedCostUSD float64 `json:"llm_estimated_cost_usd"`

	PipelineSemaphore SemaphoreSnapshot `json:"pipeline_semaphore"`
	LLMSemaphore      SemaphoreSnapshot `json:"llm_semaphore"`

	IdempotencyGuardSize        int    `json:"idempotency_guard_size"`
	IdempotencyGuardMaxSize     int    `json:"idempotency_guard_max_size"`
	IdempotencyGuardTTLSeconds  float64 `json:"idempotency_guard_ttl_seconds"`
	IdempotencyGuardBackendKind string `json:"idempotency_guard_backend_kind"`
}

// Registry holds every scalar counter as an atomic. The per-path
// decision counters are the exception: they live in a map guarded by
// an RWMutex, so Snapshot takes its read lock while copying them and a
// writer adding a new path key waits for that copy to finish.
type Registry struct {
	startedAt time.Time

	sharedStoreEnabled atomic.Bool
	sharedStoreHealthy atomic.Bool
	sharedStoreMode    atomic.Value // ShareStoreMode

	decisionPathCounts sync_map

	loadShed   atomic.Int64
	duplicates atomic.Int64

	llmInvocations atomic.Int64
	llmFallbacks   atomic.Int64

	llmPromptTokens     atomic.Int64
	llmCompletionTokens atomic.Int64
	llmCostMicros       atomic.Int64 // USD * 1e6, integer to keep the counter atomic

	pipelineSemaphore SemaphoreSource
	llmSemaphore      SemaphoreSource
	idempotencyGuard  IdempotencyGuardSource
	guardMaxSize      int
	guardTTL          time.Duration
}

// New builds a registry; the two semaphore sources and the
// idempotency guard are wired in afterward via SetSources since they
// are constructed after the registry during bootstrap.
func New() *Registry {
	r := &Registry{startedAt: time.Now()}
	r.sharedStoreMode.Store(ModeSingleInstance)
	return r
}

// SetSources wires the concurrency/guard snapshot sources once they
// exist; calling it more than once simply replaces the wiring.
// guardMaxSize and guardTTL are the static configuration values the
// guard was built with (not observable through IdempotencyGuardSource,
// which only exposes the current size and backend kind).
func (r *Registry) SetSources(pipelineSem, llmSem SemaphoreSource, guard IdempotencyGuardSource, guardMaxSize int, guardTTL time.Duration) {
	r.pipelineSemaphore = pipelineSem
	r.llmSemaphore = llmSem
	r.idempotencyGuard = guard
	r.guardMaxSize = guardMaxSize
	r.guardTTL = guardTTL
}

// SetSharedStoreState records the current shared-store health/mode;
// cmd/reviewpipeline calls it once at boot.
func (r *Registry) SetSharedStoreState(enabled, healthy bool, mode ShareStoreMode) {
	r.sharedStoreEnabled.Store(enabled)
	r.sharedStoreHealthy.Store(healthy)
	r.sharedStoreMode.Store(mode)
}

// IncrDecisionPath increments the counter for a named decision path
// (e.g. "ai_review", "silent_exit_safe", "manual_review_warning").
func (r *Registry) IncrDecisionPath(path string) {
	r.decisionPathCounts.incr(path)
}

func (r *Registry) IncrLoadShed()  { r.loadShed.Add(1) }
func (r *Registry) IncrDuplicate() { r.duplicates.Add(1) }

func (r *Registry) IncrLLMInvocation() { r.llmInvocations.Add(1) }
func (r *Registry) IncrLLMFallback()   { r.llmFallbacks.Add(1) }

// RecordLLMUsage accumulates token counts and an estimated cost in
// USD, stored as integer micro-dollars so the counter stays atomic.
func (r *Registry) RecordLLMUsage(promptTokens, completionTokens int64, costUSD float64) {
	r.llmPromptTokens.Add(promptTokens)
	r.llmCompletionTokens.Add(completionTokens)
	r.llmCostMicros.Add(int64(costUSD * 1_000_000))
}

// Snapshot materializes the current state of every counter.
func (r *Registry) Snapshot() Snapshot {
	invocations := r.llmInvocations.Load()
	fallbacks := r.llmFallbacks.Load()
	var rate float64
	if invocations > 0 {
		rate = float64(fallbacks) / float64(invocations)
	}

	guardSize, guardKind := 0, "none"
	if r.idempotencyGuard != nil {
		guardSize = r.idempotencyGuard.Size()
		guardKind = r.idempotencyGuard.BackendKind()
	}

	mode, _ := r.sharedStoreMode.Load().(ShareStoreMode)

	return Snapshot{
		UptimeSeconds: time.Since(r.startedAt).Seconds(),

		SharedStoreEnabled: r.sharedStoreEnabled.Load(),
		SharedStoreHealthy: r.sharedStoreHealthy.Load(),
		SharedStoreMode:    mode,

		DecisionPathCounts: r.decisionPathCounts.snapshot(),

		LoadShedCount:  r.loadShed.Load(),
		DuplicateCount: r.duplicates.Load(),

		LLMInvocationCount: invocations,
		LLMFallbackCount:   fallbacks,
		LLMFallbackRate:    rate,

		LLMPromptTokens:     r.llmPromptTokens.Load(),
		LLMCompletionTokens: r.llmCompletionTokens.Load(),
		LLMEstimatedCostUSD: float64(r.llmCostMicros.Load()) / 1_000_000,

		PipelineSemaphore: snapshotSemaphore(r.pipelineSemaphore),
		LLMSemaphore:      snapshotSemaphore(r.llmSemaphore),

		IdempotencyGuardSize:        guardSize,
		IdempotencyGuardMaxSize:     r.guardMaxSize,
		IdempotencyGuardTTLSeconds:  r.guardTTL.Seconds(),
		IdempotencyGuardBackendKind: guardKind,
	}
}
