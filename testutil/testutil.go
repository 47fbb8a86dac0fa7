package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) []model.Vector {
	return r.fill(num, dimensions, func() float64 { return r.rand.Float64() })
}

// UniformRangeVectors generates random vectors with values in range [-1, 1).
func (r *RNG) UniformRangeVectors(num int, dimensions int) []model.Vector {
	return r.fill(num, dimensions, func() float64 { return r.rand.Float64()*2 - 1 })
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
func (r *RNG) GaussianVectors(num int, dimensions int) []model.Vector {
	return r.fill(num, dimensions, func() float64 { return r.rand.NormFloat64() })
}

// GridVectors generates vectors with integer coordinates in [0, side).
// Many pairs share a distance, which exercises tie handling.
func (r *RNG) GridVectors(num, dimensions, side int) []model.Vector {
	return r.fill(num, dimensions, func() float64 { return float64(r.rand.Intn(side)) })
}

func (r *RNG) fill(num, dimensions int, next func() float64) []model.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dimensions)
	vectors := make([]model.Vector, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = next()
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
func (r *RNG) UnitVectors(num int, dimensions int) []model.Vector {
	vectors := r.GaussianVectors(num, dimensions)
	for _, vec := range vectors {
		norm := floats.Norm(vec, 2)
		if norm == 0 {
			norm = 1
		}
		floats.Scale(1/norm, vec)
	}
	return vectors
}

// ClusteredVectors generates vectors clustered around random centroids.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float64) []model.Vector {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([]model.Vector, num)
	for i := range num {
		centroid := centroids[i%clusters]
		vec := make(model.Vector, dim)
		for j := range dim {
			vec[j] = centroid[j] + r.rand.NormFloat64()*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// BruteForceKNN returns the exact k nearest vectors to query. IDs are the
// positions in vectors.
func BruteForceKNN(dist distance.Func, vectors []model.Vector, query model.Vector, k int) model.NeighborList {
	all := distances(dist, vectors, query)
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// BruteForceRange returns every vector within radius of query.
func BruteForceRange(dist distance.Func, vectors []model.Vector, query model.Vector, radius float64) model.NeighborList {
	all := distances(dist, vectors, query)
	end := 0
	for end < len(all) && all[end].Distance <= radius {
		end++
	}
	return all[:end]
}

func distances(dist distance.Func, vectors []model.Vector, query model.Vector) model.NeighborList {
	all := make(model.NeighborList, 0, len(vectors))
	for i, v := range vectors {
		all.Add(dist.Distance(query, v), model.ObjectID(i))
	}
	all.Sort()
	return all
}

// QuantileDistance returns the p-quantile of the distances from query to
// vectors.
func QuantileDistance(dist distance.Func, vectors []model.Vector, query model.Vector, p float64) float64 {
	ds := make([]float64, len(vectors))
	for i, v := range vectors {
		ds[i] = dist.Distance(query, v)
	}
	slices.Sort(ds)
	return stat.Quantile(p, stat.Empirical, ds, nil)
}

// ComputeRecall returns the fraction of groundTruth ids found in approximate.
func ComputeRecall(groundTruth, approximate model.NeighborList) float64 {
	if len(groundTruth) == 0 {
		return 1
	}
	hits := 0
	for _, n := range groundTruth {
		if approximate.Contains(n.ID) {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}

// SameDistances reports whether a and b hold the same distances in the same
// order, within tol. Ties may legally resolve to different ids.
func SameDistances(a, b model.NeighborList, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].Distance-b[i].Distance) > tol {
			return false
		}
	}
	return true
}
