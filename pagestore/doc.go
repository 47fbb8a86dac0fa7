// Package pagestore persists tree nodes as pages addressed by node.PageID.
//
// A Store allocates page ids, reads and writes nodes, and keeps one header
// record describing the tree (kind, distance, dimension, capacity, root,
// height, size). All operations are synchronous and blocking.
//
// # Built-in Implementations
//
//   - Memory: in-process arena, the default
//   - Blob: compressed pages in a blobstore.Store (local, S3, MinIO)
//   - Badger: pages in a badger key-value store, on disk or in memory
//   - SQLite: pages in a SQLite table
//   - Cached: decoded-node LRU cache in front of any Store
//
// Nodes returned by Read may be shared with the store. Callers that modify a
// node must hand it back to Write.
package pagestore
