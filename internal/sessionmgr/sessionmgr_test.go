package sessionmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateReturnsUniqueLiveIDs(t *testing.T) {
	m := NewManager(1)
	seen := make(map[uint32]struct{})
	for i := 0; i < 1000; i++ {
		id := m.Allocate()
		_, dup := seen[id]
		assert.False(t, dup, "allocate returned a duplicate id")
		seen[id] = struct{}{}
		assert.True(t, m.IsActive(id))
	}
	assert.Equal(t, 1000, m.Count())
}

func TestReleaseFreesIDForReuse(t *testing.T) {
	m := NewManager(2)
	id := m.Allocate()
	assert.Equal(t, 1, m.Count())
	m.Release(id)
	assert.Equal(t, 0, m.Count())
	assert.False(t, m.IsActive(id))
}

func TestReleaseUnknownIDIsNoop(t *testing.T) {
	m := NewManager(3)
	assert.NotPanics(t, func() { m.Release(12345) })
}
