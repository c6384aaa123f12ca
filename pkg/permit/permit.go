// Package permit implements the two-level semaphore: bounded
// concurrent capacity with try_acquire-only semantics (no queueing —
// a saturated semaphore sheds load rather than making callers wait),
// with a local in-process backend and a shared Postgres-backed one.
//
// The local backend is grounded directly on
// `golang.org/x/sync/semaphore.Weighted.TryAcquire`, a precise fit:
// it is already non-blocking-on-demand and already tracks available
// capacity, which is exactly "try_acquire only, no queueing". The
// shared backend is grounded on `pkg/sharedstore`'s atomic
// compare-and-increment lease, itself grounded on the teacher's
// `pkg/database` connection pooling idiom.
package permit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Semaphore is the public two-level-semaphore contract shared by both
// backends.
type Semaphore interface {
	TryAcquire(ctx context.Context) bool
	Release(ctx context.Context)
	InFlight() int
	Max() int
	Peak() int
}

// LocalSemaphore wraps semaphore.Weighted with in-flight and peak
// tracking, as spec.md §4.15 requires for the metrics snapshot.
type LocalSemaphore struct {
	weighted *semaphore.Weighted
	max      int64
	inFlight int64
	peak     int64
}

// NewLocalSemaphore builds a local semaphore bounding max concurrent
// permits.
func NewLocalSemaphore(max int) *LocalSemaphore {
	return &LocalSemaphore{weighted: semaphore.NewWeighted(int64(max)), max: int64(max)}
}

// TryAcquire attempts to take one permit without blocking. ctx is
// accepted to satisfy the shared Semaphore interface; the underlying
// x/sync call is always non-blocking regardless of ctx's deadline.
func (s *LocalSemaphore) TryAcquire(_ context.Context) bool {
	if !s.weighted.TryAcquire(1) {
		return false
	}
	n := atomic.AddInt64(&s.inFlight, 1)
	for {
		peak := atomic.LoadInt64(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt64(&s.peak, peak, n) {
			break
		}
	}
	return true
}

// Release returns one permit. It never goes below zero: a Release
// call with no matching successful TryAcquire is a caller bug, but
// this method still clamps defensively rather than corrupting the
// semaphore's internal count.
func (s *LocalSemaphore) Release(_ context.Context) {
	for {
		n := atomic.LoadInt64(&s.inFlight)
		if n <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&s.inFlight, n, n-1) {
			s.weighted.Release(1)
			return
		}
	}
}

func (s *LocalSemaphore) InFlight() int { return int(atomic.LoadInt64(&s.inFlight)) }
func (s *LocalSemaphore) Max() int      { return int(s.max) }
func (s *LocalSemaphore) Peak() int     { return int(atomic.LoadInt64(&s.peak)) }

// SharedBackend is the minimal contract this package needs from
// pkg/sharedstore.
type SharedBackend interface {
	TryAcquireLease(ctx context.Context, name string, max int, heartbeatTTL time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name string) error
	LeaseInFlight(ctx context.Context, name string) (int, error)
}

const defaultHeartbeatTTL = 5 * time.Minute

// SharedSemaphore wraps a SharedBackend lease named Name.
type SharedSemaphore struct {
	backend      SharedBackend
	name         string
	max          int
	heartbeatTTL time.Duration
	peak         int64
}

// NewSharedSemaphore builds the shared backend for a lease named name,
// bounding max concurrent permits across every process sharing the store.
func NewSharedSemaphore(backend SharedBackend, name string, max int) *SharedSemaphore {
	return &SharedSemaphore{backend: backend, name: name, max: max, heartbeatTTL: defaultHeartbeatTTL}
}

func (s *SharedSemaphore) TryAcquire(ctx context.Context) bool {
	acquired, err := s.backend.TryAcquireLease(ctx, s.name, s.max, s.heartbeatTTL)
	if err != nil || !acquired {
		return false
	}
	if n, err := s.backend.LeaseInFlight(ctx, s.name); err == nil {
		for {
			peak := atomic.LoadInt64(&s.peak)
			if int64(n) <= peak || atomic.CompareAndSwapInt64(&s.peak, peak, int64(n)) {
				break
			}
		}
	}
	return true
}

func (s *SharedSemaphore) Release(ctx context.Context) {
	_ = s.backend.ReleaseLease(ctx, s.name)
}

func (s *SharedSemaphore) InFlight() int {
	n, err := s.backend.LeaseInFlight(context.Background(), s.name)
	if err != nil {
		return 0
	}
	return n
}

func (s *SharedSemaphore) Max() int  { return s.max }
func (s *SharedSemaphore) Peak() int { return int(atomic.LoadInt64(&s.peak)) }
