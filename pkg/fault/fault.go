// Package fault implements the fault injection controller: named
// fault codes with an always/never/probability trigger, callable from
// any component at its sensitive points, used to drive chaos tests
// through the same code paths real failures take.
//
// The teacher has no direct analogue (tarsy has no chaos-testing
// layer); this package is grounded on the teacher's config-driven
// trigger-table idiom (`pkg/config/validator.go`'s per-key validated
// settings) generalized to a probability trigger, plus the standard
// library's `math/rand` for the probabilistic case — no third-party
// chaos/fault-injection library appears anywhere in the retrieved
// pack, so this is a deliberate, justified standard-library part.
package fault

import (
	"fmt"
	"math/rand"
	"sync"
)

// Code names one of the eight fault injection points declared by the
// spec.
type Code string

const (
	DiffExtractionFail      Code = "DIFF_EXTRACTION_FAIL"
	LLMTimeout              Code = "LLM_TIMEOUT"
	LLMMalformedResponse    Code = "LLM_MALFORMED_RESPONSE"
	SharedStoreUnavailable  Code = "SHARED_STORE_UNAVAILABLE"
	SemaphoreLeakSimulation Code = "SEMAPHORE_LEAK_SIMULATION"
	DecisionWriteFailure    Code = "DECISION_WRITE_FAILURE"
	MetricsWriteFailure     Code = "METRICS_WRITE_FAILURE"
	PublishCommentFailure   Code = "PUBLISH_COMMENT_FAILURE"
)

// AllCodes lists every recognized fault code, used by configuration
// validation to reject unknown codes in the trigger table.
var AllCodes = []Code{
	DiffExtractionFail, LLMTimeout, LLMMalformedResponse, SharedStoreUnavailable,
	SemaphoreLeakSimulation, DecisionWriteFailure, MetricsWriteFailure, PublishCommentFailure,
}

// TriggerKind distinguishes the three trigger shapes a fault code can
// be configured with.
type TriggerKind string

const (
	TriggerAlways TriggerKind = "always"
	TriggerNever  TriggerKind = "never"
	TriggerProb   TriggerKind = "p"
)

// Trigger is one fault code's configured behavior.
type Trigger struct {
	Kind        TriggerKind
	Probability float64 // only meaningful when Kind == TriggerProb, in [0, 1]
}

// Injection is raised by MaybeInject when a fault fires.
type Injection struct {
	Code Code
}

func (e *Injection) Error() string {
	return fmt.Sprintf("fault: injected %s", e.Code)
}

// Controller holds the configured trigger table and an enabled flag;
// it is a process-wide singleton shared by every component that calls
// MaybeInject, and is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	enabled  bool
	triggers map[Code]Trigger
	rng      *rand.Rand
	injected []Code
}

// NewController builds a Controller. enabled gates MaybeInject
// entirely: when false, no fault ever fires regardless of the
// trigger table (the FAULTS_ENABLED environment switch named in
// spec.md §6).
func NewController(enabled bool, triggers map[Code]Trigger, seed int64) *Controller {
	t := make(map[Code]Trigger, len(triggers))
	for k, v := range triggers {
		t[k] = v
	}
	return &Controller{enabled: enabled, triggers: t, rng: rand.New(rand.NewSource(seed))}
}

// MaybeInject evaluates code's configured trigger. When the controller
// is disabled, or the code has no configured trigger, or the trigger
// is "never", it returns nil. When the trigger fires it returns an
// *Injection and records the code on the controller's injected list
// (read by the orchestrator to populate the decision record's
// faults_injected field).
func (c *Controller) MaybeInject(code Code) error {
	if !c.enabled {
		return nil
	}
	c.mu.Lock()
	trig, ok := c.triggers[code]
	c.mu.Unlock()
	if !ok || trig.Kind == TriggerNever {
		return nil
	}

	fire := false
	switch trig.Kind {
	case TriggerAlways:
		fire = true
	case TriggerProb:
		c.mu.Lock()
		fire = c.rng.Float64() < trig.Probability
		c.mu.Unlock()
	}
	if !fire {
		return nil
	}

	c.mu.Lock()
	c.injected = append(c.injected, code)
	c.mu.Unlock()
	return &Injection{Code: code}
}

// InjectedCodes returns every fault code that has fired since the
// controller was created, in firing order. Callers that want a
// per-execution list should construct a fresh Controller per
// execution, or track injections themselves from the returned errors;
// this accessor exists for tests and for a process-lifetime audit view.
func (c *Controller) InjectedCodes() []Code {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Code, len(c.injected))
	copy(out, c.injected)
	return out
}

// Enabled reports whether fault injection is switched on at all.
func (c *Controller) Enabled() bool { return c.enabled }
