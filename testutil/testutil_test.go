package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/model"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], 1.0)
	assert.GreaterOrEqual(t, v[1][0], 0.0)
}

func TestUniformRangeVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformRangeVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], 1.0)
	assert.GreaterOrEqual(t, v[1][0], -1.0)
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	for _, vec := range v {
		assert.InDelta(t, 1.0, floats.Norm(vec, 2), 1e-9)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Equal(t, 100, len(v))
	assert.Equal(t, 32, len(v[0]))
}

func TestGridVectors(t *testing.T) {
	rng := NewRNG(4711)

	for _, vec := range rng.GridVectors(50, 3, 4) {
		for _, x := range vec {
			assert.Contains(t, []float64{0, 1, 2, 3}, x)
		}
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
}

func TestBruteForce(t *testing.T) {
	vecs := []model.Vector{{0, 0}, {3, 4}, {1, 0}, {0, 2}}
	q := model.Vector{0, 0}

	knn := BruteForceKNN(distance.Euclidean, vecs, q, 2)
	require.Len(t, knn, 2)
	assert.Equal(t, []model.ObjectID{0, 2}, knn.IDs())

	rng := BruteForceRange(distance.Euclidean, vecs, q, 2)
	assert.Equal(t, []model.ObjectID{0, 2, 3}, rng.IDs())

	assert.InDelta(t, 1.0, QuantileDistance(distance.Euclidean, vecs, q, 0.5), 1e-12)
}

func TestComputeRecall(t *testing.T) {
	truth := model.NeighborList{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	approx := model.NeighborList{{ID: 1}, {ID: 4}, {ID: 9}}

	assert.InDelta(t, 0.5, ComputeRecall(truth, approx), 1e-12)
	assert.Equal(t, 1.0, ComputeRecall(nil, approx))
}

func TestSameDistances(t *testing.T) {
	a := model.NeighborList{{Distance: 1, ID: 1}, {Distance: 2, ID: 2}}
	b := model.NeighborList{{Distance: 1, ID: 7}, {Distance: 2, ID: 2}}

	assert.True(t, SameDistances(a, b, 0))
	assert.False(t, SameDistances(a, b[:1], 0))
}
