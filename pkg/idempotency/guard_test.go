package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGuard_NewThenDuplicate(t *testing.T) {
	g := NewLocalGuard(time.Hour, 10)
	r1, err := g.CheckAndMark(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, r1.Status)

	r2, err := g.CheckAndMark(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicateRecent, r2.Status)
	assert.Equal(t, r1.FirstSeenAt, r2.FirstSeenAt)
}

func TestLocalGuard_ExpiresAfterTTL(t *testing.T) {
	g := NewLocalGuard(10*time.Millisecond, 10)
	_, err := g.CheckAndMark(context.Background(), "k1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	r, err := g.CheckAndMark(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, r.Status)
}

func TestLocalGuard_FIFOEvictionWhenFull(t *testing.T) {
	g := NewLocalGuard(time.Hour, 2)
	ctx := context.Background()
	_, _ = g.CheckAndMark(ctx, "a")
	_, _ = g.CheckAndMark(ctx, "b")
	_, _ = g.CheckAndMark(ctx, "c") // evicts "a"

	assert.Equal(t, 2, g.Size())
	r, err := g.CheckAndMark(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, r.Status, "a should have been evicted and treated as new")
}

type fakeSharedBackend struct {
	err       error
	inserted  bool
	firstSeen time.Time
}

func (f *fakeSharedBackend) SetIfAbsent(context.Context, string, time.Duration) (bool, time.Time, error) {
	return f.inserted, f.firstSeen, f.err
}

func TestSharedGuard_FailsOpenOnBackendError(t *testing.T) {
	backend := &fakeSharedBackend{err: errors.New("connection refused")}
	g := NewSharedGuard(backend, time.Hour)
	r, err := g.CheckAndMark(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, r.Status)
}

func TestSharedGuard_DuplicateWhenNotInserted(t *testing.T) {
	seenAt := time.Now().Add(-time.Minute)
	backend := &fakeSharedBackend{inserted: false, firstSeen: seenAt}
	g := NewSharedGuard(backend, time.Hour)
	r, err := g.CheckAndMark(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicateRecent, r.Status)
	assert.Equal(t, seenAt, r.FirstSeenAt)
}

var _ Guard = (*LocalGuard)(nil)
var _ Guard = (*SharedGuard)(nil)
