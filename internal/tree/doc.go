// Package tree implements the paged tree engine shared by the metric and the
// spatial index.
//
// A Tree owns the structural algorithms: descent and overflow handling on
// insert, condensation with forced reinsertion on delete, level-by-level bulk
// loading, best-first branch-and-bound KNN and range search, and the
// consistency check. Everything that depends on the kind of covering
// aggregate (routing object with covering radius, or bounding box) is
// delegated to a Strategy value.
//
// Nodes live in a pagestore.Store and reference their children by page id.
// A Tree is not safe for concurrent mutation: writers must be serialized
// externally, while searches may run concurrently with each other.
package tree
