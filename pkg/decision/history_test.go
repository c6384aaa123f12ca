package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string) Record { return Record{ReviewID: id} }

func TestLocalHistory_NewestFirst(t *testing.T) {
	h := NewLocalHistory()
	ctx := context.Background()
	h.Append(ctx, rec("a"))
	h.Append(ctx, rec("b"))
	h.Append(ctx, rec("c"))

	recent := h.GetRecent(ctx, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ReviewID)
	assert.Equal(t, "b", recent[1].ReviewID)
}

func TestLocalHistory_BoundedAt100(t *testing.T) {
	h := NewLocalHistory()
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		h.Append(ctx, rec(string(rune('a'+i%26))))
	}
	assert.Len(t, h.entries, localHistoryBound)
}

func TestLocalHistory_GetByID(t *testing.T) {
	h := NewLocalHistory()
	ctx := context.Background()
	h.Append(ctx, rec("target"))

	found, ok := h.Get(ctx, "target")
	require.True(t, ok)
	assert.Equal(t, "target", found.ReviewID)

	_, ok = h.Get(ctx, "missing")
	assert.False(t, ok)
}

type fakeSharedBackend struct {
	appendErr error
	recentErr error
}

func (f *fakeSharedBackend) AppendDecision(context.Context, string, []byte) error { return f.appendErr }
func (f *fakeSharedBackend) RecentDecisions(context.Context, int) ([][]byte, error) {
	return nil, f.recentErr
}
func (f *fakeSharedBackend) DecisionByID(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("unavailable")
}

func TestSharedHistory_FallsBackToLocalOnBackendError(t *testing.T) {
	backend := &fakeSharedBackend{appendErr: errors.New("unreachable"), recentErr: errors.New("unreachable")}
	h := NewSharedHistory(backend, JSONCodec{})
	ctx := context.Background()

	h.Append(ctx, rec("x")) // must not panic or block despite backend error
	recent := h.GetRecent(ctx, 5)
	require.Len(t, recent, 1)
	assert.Equal(t, "x", recent[0].ReviewID)
}
