package objstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simidx/model"
)

func TestMemory(t *testing.T) {
	m := NewMemory[string]()
	v := model.Vector{1, 2}
	m.Put(1, v, "a")
	v[0] = 9

	got, err := m.Vector(1)
	require.NoError(t, err)
	assert.Equal(t, model.Vector{1, 2}, got)

	d, ok := m.Data(1)
	require.True(t, ok)
	assert.Equal(t, "a", d)
	assert.Equal(t, 1, m.Len())

	m.Delete(1)
	_, err = m.Vector(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok = m.Data(1)
	assert.False(t, ok)
}

func TestMemoryRange(t *testing.T) {
	m := NewMemory[int]()
	for i := 1; i <= 5; i++ {
		m.Put(model.ObjectID(i), model.Vector{float64(i)}, i)
	}

	seen := 0
	m.Range(func(id model.ObjectID, v model.Vector) bool {
		assert.Equal(t, float64(id), v[0])
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}
