// Package model defines core types used throughout simidx.
//
// # Identity Types
//
//   - ObjectID: dense, registry-owned handle of an indexed object (uint64)
//
// # Data Types
//
//   - Vector: feature vector of an object (float64 coordinates)
//   - Neighbor: immutable (distance, id) pair produced by a query
//   - NeighborList: growable list of neighbors with a stable distance sort
package model
