package pagestore

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/simidx/internal/compress"
	"github.com/hupe1980/simidx/node"
)

var (
	// ErrPageNotFound is returned when a page id is not allocated.
	ErrPageNotFound = errors.New("pagestore: page not found")

	// ErrNoHeader is returned by ReadHeader on a store that never had a header written.
	ErrNoHeader = errors.New("pagestore: no header")

	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("pagestore: closed")
)

// Store is the page store contract used by the tree engine.
type Store interface {
	// Read returns the node stored at id.
	Read(id node.PageID) (*node.Node, error)
	// Write stores n. A node with ID == node.NoPage is assigned a fresh page
	// id, which is set on n and returned.
	Write(n *node.Node) (node.PageID, error)
	// Free releases a page. Its id may be reused by later allocations.
	Free(id node.PageID) error
	// ReadHeader returns the stored header or ErrNoHeader.
	ReadHeader() (Header, error)
	// WriteHeader replaces the stored header.
	WriteHeader(h Header) error
	// Pages returns the number of allocated pages.
	Pages() int
	// Close releases the resources held by the store.
	Close() error
}

// Header describes the tree persisted in a store.
type Header struct {
	Kind      string      `json:"kind"`
	Distance  string      `json:"distance"`
	Dimension int         `json:"dimension"`
	Capacity  int         `json:"capacity"`
	MinFill   int         `json:"min_fill"`
	Root      node.PageID `json:"root"`
	Height    int         `json:"height"`
	Size      int         `json:"size"`
	NextPage  node.PageID `json:"next_page"`
}

// Compression selects the block compression of serialized pages.
type Compression = compress.Type

// Supported compressions.
const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(name string) (Compression, error) {
	return compress.Parse(name)
}

// allocator hands out page ids and tracks which ones are live.
// Callers synchronize access.
type allocator struct {
	live *bitset.BitSet
	free []node.PageID
	next node.PageID
}

func newAllocator() *allocator {
	return &allocator{live: bitset.New(64), next: 1}
}

// mark records an existing page found while opening a store.
func (a *allocator) mark(id node.PageID) {
	a.live.Set(uint(id))
	if id >= a.next {
		a.next = id + 1
	}
}

// reclaim puts every unused id below next on the free list.
func (a *allocator) reclaim() {
	a.free = a.free[:0]
	for id := a.next - 1; id >= 1; id-- {
		if !a.live.Test(uint(id)) {
			a.free = append(a.free, id)
		}
	}
}

func (a *allocator) alloc() node.PageID {
	var id node.PageID
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		id = a.next
		a.next++
	}
	a.live.Set(uint(id))
	return id
}

func (a *allocator) release(id node.PageID) bool {
	if !a.contains(id) {
		return false
	}
	a.live.Clear(uint(id))
	a.free = append(a.free, id)
	return true
}

func (a *allocator) contains(id node.PageID) bool {
	return id != node.NoPage && a.live.Test(uint(id))
}

func (a *allocator) count() int {
	return int(a.live.Count())
}

// assign allocates an id for a new node or validates the id of an existing one.
func (a *allocator) assign(n *node.Node) error {
	if n.ID == node.NoPage {
		n.ID = a.alloc()
		return nil
	}
	if !a.contains(n.ID) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, n.ID)
	}
	return nil
}
