package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighborListSort(t *testing.T) {
	l := NeighborList{}
	l.Add(3, 1)
	l.Add(1, 7)
	l.Add(2, 4)
	l.Add(1, 2)

	l.Sort()

	require.True(t, l.IsSorted())
	assert.Equal(t, []ObjectID{2, 7, 4, 1}, l.IDs())
}

func TestNeighborListKDistance(t *testing.T) {
	l := NeighborList{{1, 1}, {2, 2}, {3, 3}}

	d, ok := l.KDistance(2)
	require.True(t, ok)
	assert.Equal(t, 2.0, d)

	_, ok = l.KDistance(4)
	assert.False(t, ok)

	_, ok = l.KDistance(0)
	assert.False(t, ok)
}

func TestNeighborListTruncateTies(t *testing.T) {
	l := NeighborList{{1, 1}, {2, 2}, {2, 3}, {2, 4}, {5, 5}}

	tests := []struct {
		name string
		k    int
		want []ObjectID
	}{
		{"BeforeTie", 1, []ObjectID{1}},
		{"IntoTie", 2, []ObjectID{1, 2, 3, 4}},
		{"LastOfTie", 4, []ObjectID{1, 2, 3, 4}},
		{"All", 10, []ObjectID{1, 2, 3, 4, 5}},
		{"Zero", 0, []ObjectID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.TruncateTies(tt.k).IDs())
		})
	}
}

func TestVectorClone(t *testing.T) {
	v := Vector{1, 2}
	c := v.Clone()
	c[0] = 9

	assert.Equal(t, 1.0, v[0])
	assert.Equal(t, 2, c.Dim())
	assert.True(t, NeighborList{{0, 3}}.Contains(3))
}
