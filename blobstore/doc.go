// Package blobstore provides named blob storage for persisted index pages.
//
// Store is the interface for reading and writing whole blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - Memory: in-process map, for tests and ephemeral indexes
//   - Local: local directory with atomic temp-file + rename writes
//   - s3.Store: Amazon S3 with multipart uploads and paginated listing
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
