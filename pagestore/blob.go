package pagestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/simidx/blobstore"
	"github.com/hupe1980/simidx/codec"
	"github.com/hupe1980/simidx/internal/compress"
	"github.com/hupe1980/simidx/node"
	"github.com/hupe1980/simidx/resource"
)

const (
	blobPagePrefix = "pages/"
	blobHeaderName = "header"
)

// Options configures the persistent page stores.
type Options struct {
	// Compression of serialized pages. Default: CompressionLZ4 for Blob, CompressionNone otherwise.
	Compression Compression
	// Resource throttles page I/O (Blob) or bounds cached memory (Cached). Optional.
	Resource *resource.Controller
	// Context bounds blob store calls. Default: context.Background().
	Context context.Context
	// Codec encodes the header. Default: codec.Default.
	Codec codec.Codec
}

// Option configures a page store.
type Option func(o *Options)

// WithCompression sets the page compression.
func WithCompression(c Compression) Option {
	return func(o *Options) { o.Compression = c }
}

// WithResourceController sets the resource controller.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *Options) { o.Resource = rc }
}

// WithContext sets the context used for blob store calls.
func WithContext(ctx context.Context) Option {
	return func(o *Options) { o.Context = ctx }
}

// WithCodec sets the header codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

func buildOptions(defaults Options, optFns []Option) Options {
	opts := defaults
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	return opts
}

// Blob stores every page as one compressed blob named "pages/<id>".
type Blob struct {
	store blobstore.Store
	opts  Options

	mu     sync.Mutex
	alloc  *allocator
	closed bool
}

// NewBlob opens a page store over a blob store, recovering allocated pages
// from the blobs already present.
func NewBlob(store blobstore.Store, optFns ...Option) (*Blob, error) {
	opts := buildOptions(Options{Compression: CompressionLZ4}, optFns)

	names, err := store.List(opts.Context, blobPagePrefix)
	if err != nil {
		return nil, fmt.Errorf("pagestore: list pages: %w", err)
	}

	alloc := newAllocator()
	for _, name := range names {
		id, err := strconv.ParseUint(strings.TrimPrefix(name, blobPagePrefix), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		alloc.mark(node.PageID(id))
	}
	alloc.reclaim()

	return &Blob{store: store, opts: opts, alloc: alloc}, nil
}

func pageName(id node.PageID) string {
	return fmt.Sprintf("%s%08d", blobPagePrefix, uint64(id))
}

// Read fetches, decompresses and decodes a page.
func (b *Blob) Read(id node.PageID) (*node.Node, error) {
	b.mu.Lock()
	closed, live := b.closed, b.alloc.contains(id)
	b.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if !live {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}

	block, err := b.store.Get(b.opts.Context, pageName(id))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
		}
		return nil, err
	}
	if err := b.opts.Resource.AcquireIO(b.opts.Context, len(block)); err != nil {
		return nil, err
	}

	data, err := compress.Decode(block)
	if err != nil {
		return nil, fmt.Errorf("pagestore: %s: %w", id, err)
	}
	return DecodeNode(id, data)
}

// Write encodes, compresses and uploads a page.
func (b *Blob) Write(n *node.Node) (node.PageID, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return node.NoPage, ErrClosed
	}
	err := b.alloc.assign(n)
	b.mu.Unlock()
	if err != nil {
		return node.NoPage, err
	}

	block, err := compress.Encode(EncodeNode(n), b.opts.Compression)
	if err != nil {
		return node.NoPage, err
	}
	if err := b.opts.Resource.AcquireIO(b.opts.Context, len(block)); err != nil {
		return node.NoPage, err
	}
	if err := b.store.Put(b.opts.Context, pageName(n.ID), block); err != nil {
		return node.NoPage, err
	}
	return n.ID, nil
}

// Free deletes a page blob.
func (b *Blob) Free(id node.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.alloc.contains(id) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if err := b.store.Delete(b.opts.Context, pageName(id)); err != nil {
		return err
	}
	b.alloc.release(id)
	return nil
}

// ReadHeader reads the header blob.
func (b *Blob) ReadHeader() (Header, error) {
	data, err := b.store.Get(b.opts.Context, blobHeaderName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Header{}, ErrNoHeader
		}
		return Header{}, err
	}

	var h Header
	if err := b.opts.Codec.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("pagestore: decode header: %w", err)
	}
	return h, nil
}

// WriteHeader writes the header blob.
func (b *Blob) WriteHeader(h Header) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	h.NextPage = b.alloc.next
	b.mu.Unlock()

	data, err := b.opts.Codec.Marshal(h)
	if err != nil {
		return err
	}
	return b.store.Put(b.opts.Context, blobHeaderName, data)
}

// Pages returns the number of allocated pages.
func (b *Blob) Pages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alloc.count()
}

// Close marks the store closed. The blob store itself is owned by the caller.
func (b *Blob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
