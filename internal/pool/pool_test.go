package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolOrderAndPop(t *testing.T) {
	t.Parallel()
	p := New("volume")
	now := time.Now()
	p.Push(Handle{ID: "a1", CreatedAt: now})
	p.Push(Handle{ID: "a2", CreatedAt: now})
	p.Push(Handle{ID: "a3", CreatedAt: now})

	assert.Equal(t, []string{"a1", "a2", "a3"}, p.IDs())
	assert.Equal(t, "a2", p.At(1).ID)

	// LIFO drain.
	h, ok := p.PopLast()
	require.True(t, ok)
	assert.Equal(t, "a3", h.ID)
	h, _ = p.PopLast()
	assert.Equal(t, "a2", h.ID)
	h, _ = p.PopLast()
	assert.Equal(t, "a1", h.ID)

	_, ok = p.PopLast()
	assert.False(t, ok)
	assert.Zero(t, p.Len())
}

func TestRemainderDeduplicates(t *testing.T) {
	t.Parallel()
	r := NewRemainder()
	r.Add("server", "s1")
	r.Add("server", "s1")
	r.Add("server", "s2")
	r.Add("volume", "s1")

	assert.Equal(t, []string{"s1", "s2"}, r.Of("server"))
	assert.Equal(t, []string{"s1"}, r.Of("volume"))
	assert.Equal(t, 3, r.Len())
	assert.Len(t, r.All(), 2)
}
