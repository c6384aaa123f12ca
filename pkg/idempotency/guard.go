// Package idempotency implements the idempotency guard: a key to
// first-seen mapping with a TTL, backed either by an in-memory
// FIFO-evicted map or a shared Postgres-backed atomic set-if-absent,
// fail-open on shared-store unavailability.
//
// Grounded on the teacher's fail-open/fail-closed pairing idiom
// (`pkg/masking/service.go`'s `MaskAlertData`, which returns the
// original data rather than erroring when masking fails) applied here
// to the shared backend: an unreachable store must never block a
// webhook, it must behave as though the event were new.
package idempotency

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status is the result of a check-and-mark call.
type Status string

const (
	StatusNew             Status = "new"
	StatusDuplicateRecent  Status = "duplicate_recent"
)

// Result is returned by Guard.CheckAndMark.
type Result struct {
	Status      Status
	FirstSeenAt time.Time
}

// Guard is the public idempotency contract, implemented by both
// backends below.
type Guard interface {
	CheckAndMark(ctx context.Context, key string) (Result, error)
	BackendKind() string
	Size() int
}

const (
	defaultTTL      = time.Hour
	defaultCapacity = 1000
)

// localEntry is one tracked key in the in-memory backend.
type localEntry struct {
	key       string
	firstSeen time.Time
	lastSeen  time.Time
	count     int
	expiresAt time.Time
}

// LocalGuard is the in-memory FIFO-evicted backend: map lookups
// protected by a mutex, a doubly linked list tracking insertion order
// for O(1) eviction of the oldest entry once MaxEntries is reached,
// and a lazy TTL sweep performed on every call rather than a
// background goroutine.
type LocalGuard struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element // value: *localEntry
	order      *list.List
}

// NewLocalGuard builds the in-memory backend. ttl<=0 and
// maxEntries<=0 fall back to the spec's defaults (3600s, 1000 entries).
func NewLocalGuard(ttl time.Duration, maxEntries int) *LocalGuard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCapacity
	}
	return &LocalGuard{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (g *LocalGuard) BackendKind() string { return "local" }

func (g *LocalGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// CheckAndMark never returns an error for the local backend; ctx is
// accepted only to satisfy the Guard interface shared with the
// shared-store backend.
func (g *LocalGuard) CheckAndMark(_ context.Context, key string) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.sweepExpiredLocked(now)

	if el, ok := g.entries[key]; ok {
		entry := el.Value.(*localEntry)
		if entry.expiresAt.After(now) {
			entry.lastSeen = now
			entry.count++
			return Result{Status: StatusDuplicateRecent, FirstSeenAt: entry.firstSeen}, nil
		}
		// Expired: treat as new, refresh in place.
		g.order.Remove(el)
		delete(g.entries, key)
	}

	g.evictIfFullLocked()

	entry := &localEntry{key: key, firstSeen: now, lastSeen: now, count: 1, expiresAt: now.Add(g.ttl)}
	el := g.order.PushBack(entry)
	g.entries[key] = el
	return Result{Status: StatusNew, FirstSeenAt: now}, nil
}

func (g *LocalGuard) sweepExpiredLocked(now time.Time) {
	for el := g.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*localEntry)
		if entry.expiresAt.Before(now) {
			g.order.Remove(el)
			delete(g.entries, entry.key)
		}
		el = next
	}
}

func (g *LocalGuard) evictIfFullLocked() {
	for len(g.entries) >= g.maxEntries {
		oldest := g.order.Front()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*localEntry)
		g.order.Remove(oldest)
		delete(g.entries, entry.key)
	}
}

// SharedBackend is the minimal contract this package needs from
// pkg/sharedstore, kept as an interface here so this package has no
// direct dependency on the Postgres driver stack.
type SharedBackend interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (inserted bool, firstSeenAt time.Time, err error)
}

// SharedGuard wraps a SharedBackend, failing open (returning
// StatusNew) whenever the backend call errors.
type SharedGuard struct {
	backend SharedBackend
	ttl     time.Duration
	logger  *slog.Logger
}

// NewSharedGuard builds the shared-store backend.
func NewSharedGuard(backend SharedBackend, ttl time.Duration) *SharedGuard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SharedGuard{backend: backend, ttl: ttl, logger: slog.Default().With("component", "idempotency_guard")}
}

func (g *SharedGuard) BackendKind() string { return "shared" }

// Size is not tracked client-side for the shared backend; -1 signals
// "unknown" to metrics rather than a misleading 0.
func (g *SharedGuard) Size() int { return -1 }

func (g *SharedGuard) CheckAndMark(ctx context.Context, key string) (Result, error) {
	inserted, firstSeen, err := g.backend.SetIfAbsent(ctx, key, g.ttl)
	if err != nil {
		g.logger.Warn("shared idempotency store unavailable, failing open", "error", err)
		return Result{Status: StatusNew, FirstSeenAt: time.Now()}, nil
	}
	if inserted {
		return Result{Status: StatusNew, FirstSeenAt: firstSeen}, nil
	}
	return Result{Status: StatusDuplicateRecent, FirstSeenAt: firstSeen}, nil
}
