// Package simidx provides embedded similarity indexes answering exact
// k-nearest-neighbor and range queries.
//
// Two tree families share one paged engine:
//
//   - M-tree: indexes objects of any metric space. Directory entries carry a
//     routing object and a covering radius; pruning relies on the triangle
//     inequality.
//   - R*-tree: indexes points of a vector space. Directory entries carry a
//     bounding rectangle; pruning uses the per-axis minimum distance to it.
//
// # Quick Start
//
//	idx, err := simidx.MTree[string](3).
//	    Euclidean().
//	    Capacity(32).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	id, _ := idx.Insert(ctx, simidx.Object[string]{Vector: simidx.Vector{1, 2, 3}, Data: "a"})
//	results, _ := idx.KNN(ctx, simidx.Vector{1, 2, 2.5}, 5)
//
// # Queries
//
// KNN returns the k nearest objects sorted by distance and then id. When
// several objects tie at the k-th distance the default query returns an
// unspecified subset of them; the WithTies option (or SearchBuilder.WithTies)
// returns all of them. Range returns every object within a radius.
//
// # Storage
//
// Tree nodes live in a page store. The default is an in-memory arena; badger,
// sqlite and compressed blob stores (memory, local directory, S3, MinIO) are
// available in the pagestore and blobstore packages, optionally behind an
// LRU of decoded nodes. Vectors and payloads are kept in memory.
//
// # Identifiers
//
// Object ids are allocated by the index. Deleted ids are not handed out again
// until Compact is called.
//
// # Concurrency
//
// An Index is safe for concurrent use. Mutations are serialized; queries run
// in parallel under a shared lock. BatchKNN fans a set of queries out to a
// bounded worker pool.
package simidx
