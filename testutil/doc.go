// Package testutil provides testing utilities for simidx.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors and computing exact
// answers to nearest neighbor and range queries.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 2) // uniform [0, 1)
//
// # Exact Search (Ground Truth)
//
//	want := testutil.BruteForceKNN(distance.Euclidean, vecs, query, k)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(want, got)
package testutil
