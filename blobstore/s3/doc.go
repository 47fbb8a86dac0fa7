// Package s3 provides an Amazon S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/cities/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	pages := pagestore.NewBlob(store)
//	idx, err := simidx.MTree[string](2).PageStore(pages).Build()
//
// # Features
//
//   - Multipart uploads for large blobs
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
