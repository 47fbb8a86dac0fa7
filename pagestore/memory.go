package pagestore

import (
	"fmt"
	"sync"

	"github.com/hupe1980/simidx/node"
)

// Memory is an arena page store: nodes are kept in a slice indexed by page id.
//
// Memory stores the node pointers handed to Write without copying them.
type Memory struct {
	mu     sync.RWMutex
	pages  []*node.Node
	alloc  *allocator
	header *Header
	closed bool
}

// NewMemory creates an empty arena.
func NewMemory() *Memory {
	return &Memory{
		pages: make([]*node.Node, 1, 64),
		alloc: newAllocator(),
	}
}

// Read returns the node at id.
func (m *Memory) Read(id node.PageID) (*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if !m.alloc.contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	return m.pages[id], nil
}

// Write stores n, allocating a page id if needed.
func (m *Memory) Write(n *node.Node) (node.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return node.NoPage, ErrClosed
	}
	if err := m.alloc.assign(n); err != nil {
		return node.NoPage, err
	}
	for int(n.ID) >= len(m.pages) {
		m.pages = append(m.pages, nil)
	}
	m.pages[n.ID] = n
	return n.ID, nil
}

// Free releases a page.
func (m *Memory) Free(id node.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.alloc.release(id) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	m.pages[id] = nil
	return nil
}

// ReadHeader returns the header.
func (m *Memory) ReadHeader() (Header, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.header == nil {
		return Header{}, ErrNoHeader
	}
	return *m.header, nil
}

// WriteHeader replaces the header.
func (m *Memory) WriteHeader(h Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	h.NextPage = m.alloc.next
	m.header = &h
	return nil
}

// Pages returns the number of allocated pages.
func (m *Memory) Pages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alloc.count()
}

// Close drops all pages.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.pages = nil
	return nil
}
