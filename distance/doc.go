// Package distance provides pluggable distance functions for similarity indexes.
//
// Every function implements Func. Functions that honor the triangle inequality
// report IsMetric() == true; metric trees rely on this for correct pruning and
// silently lose recall (rather than failing) when it is violated.
//
// Functions that can lower-bound the distance from a point to an axis-aligned
// bounding box additionally implement Spatial, which is required by the R*-tree.
//
// # Supported Functions
//
//   - Euclidean: L2 distance (metric, spatial)
//   - Manhattan: L1 distance (metric, spatial)
//   - Chebyshev: L∞ distance (metric, spatial)
//   - Minkowski(p): Lp distance (metric for p >= 1, spatial)
//   - SquaredEuclidean: squared L2 (spatial, not metric)
//   - Angular: angle between vectors normalized to [0, 1] (metric, not spatial)
//   - Cosine: 1 - cosine similarity (neither)
//
// # Usage
//
//	d := distance.Euclidean.Distance(a, b)
//	lb := distance.Euclidean.MinDist(q, distance.Rect{Min: lo, Max: hi})
package distance
