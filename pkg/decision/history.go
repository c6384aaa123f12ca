package decision

import (
	"context"
	"log/slog"
	"sync"
)

const (
	localHistoryBound  = 100
	sharedHistoryBound = 500
)

// History is the append-only ring-buffer contract shared by both
// backends. Append and GetRecent never propagate an error: decision
// persistence is best-effort (spec.md §4.12), unlike proof generation.
type History interface {
	Append(ctx context.Context, rec Record)
	GetRecent(ctx context.Context, n int) []Record
	Get(ctx context.Context, reviewID string) (Record, bool)
}

// LocalHistory is an in-memory ring buffer bound to 100 entries.
type LocalHistory struct {
	mu      sync.Mutex
	entries []Record // oldest first
	bound   int
}

// NewLocalHistory builds the in-memory backend.
func NewLocalHistory() *LocalHistory {
	return &LocalHistory{bound: localHistoryBound}
}

func (h *LocalHistory) Append(_ context.Context, rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, rec)
	if len(h.entries) > h.bound {
		h.entries = h.entries[len(h.entries)-h.bound:]
	}
}

// GetRecent returns the n newest entries, newest first.
func (h *LocalHistory) GetRecent(_ context.Context, n int) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = h.entries[len(h.entries)-1-i]
	}
	return out
}

func (h *LocalHistory) Get(_ context.Context, reviewID string) (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ReviewID == reviewID {
			return h.entries[i], true
		}
	}
	return Record{}, false
}

// SharedBackend is the minimal contract this package needs from
// pkg/sharedstore.
type SharedBackend interface {
	AppendDecision(ctx context.Context, reviewID string, payload []byte) error
	RecentDecisions(ctx context.Context, n int) ([][]byte, error)
	DecisionByID(ctx context.Context, reviewID string) ([]byte, bool, error)
}

// Codec marshals/unmarshals a Record to the shared backend's payload
// format, kept as an injected function rather than a hard dependency
// on encoding/json so tests can use a trivial stand-in.
type Codec interface {
	Marshal(Record) ([]byte, error)
	Unmarshal([]byte) (Record, error)
}

// SharedHistory wraps a SharedBackend, bound to 500 entries
// server-side (the bound is enforced by the backend's own retention,
// not by this type); it also keeps a local fallback so Append/GetRecent
// never block on a degraded store.
type SharedHistory struct {
	backend SharedBackend
	codec   Codec
	local   *LocalHistory
	logger  *slog.Logger
}

// NewSharedHistory builds the shared-store backend.
func NewSharedHistory(backend SharedBackend, codec Codec) *SharedHistory {
	return &SharedHistory{backend: backend, codec: codec, local: NewLocalHistory(), logger: slog.Default().With("component", "decision_history")}
}

func (h *SharedHistory) Append(ctx context.Context, rec Record) {
	h.local.Append(ctx, rec)
	payload, err := h.codec.Marshal(rec)
	if err != nil {
		h.logger.Warn("failed to encode decision record for shared history", "error", err, "review_id", rec.ReviewID)
		return
	}
	if err := h.backend.AppendDecision(ctx, rec.ReviewID, payload); err != nil {
		h.logger.Warn("shared decision history unavailable, kept only locally", "error", err, "review_id", rec.ReviewID)
	}
}

func (h *SharedHistory) GetRecent(ctx context.Context, n int) []Record {
	raws, err := h.backend.RecentDecisions(ctx, n)
	if err != nil {
		h.logger.Warn("shared decision history unavailable, serving local fallback", "error", err)
		return h.local.GetRecent(ctx, n)
	}
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		if rec, err := h.codec.Unmarshal(raw); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

func (h *SharedHistory) Get(ctx context.Context, reviewID string) (Record, bool) {
	raw, found, err := h.backend.DecisionByID(ctx, reviewID)
	if err != nil || !found {
		if err != nil {
			h.logger.Warn("shared decision lookup unavailable, trying local fallback", "error", err, "review_id", reviewID)
		}
		return h.local.Get(ctx, reviewID)
	}
	rec, err := h.codec.Unmarshal(raw)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

var _ History = (*LocalHistory)(nil)
var _ History = (*SharedHistory)(nil)
