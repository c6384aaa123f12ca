package permit

import "context"

// WithPermit tries to acquire sem, runs fn only if it succeeded, and
// guarantees release on every exit path including a panic inside fn —
// the orchestrator's "release in a guaranteed-execute cleanup" rule
// from spec.md §4.8 and §4.11. Returns (false, nil) when the permit
// was refused (load-shed) without invoking fn at all.
func WithPermit(ctx context.Context, sem Semaphore, fn func() error) (acquired bool, err error) {
	if !sem.TryAcquire(ctx) {
		return false, nil
	}
	defer sem.Release(ctx)
	return true, fn()
}
