// Package objstore provides the object store collaborator of the tree engine.
//
// Trees only keep object ids in their leaves and resolve vectors through a
// Reader whenever an exact distance is needed.
package objstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/simidx/model"
)

// ErrNotFound is returned when an object is not stored.
var ErrNotFound = errors.New("objstore: object not found")

// Reader resolves object ids to vectors.
type Reader interface {
	Vector(id model.ObjectID) (model.Vector, error)
}

// Memory is a thread-safe in-memory object store with an attached payload.
type Memory[T any] struct {
	mu      sync.RWMutex
	vectors map[model.ObjectID]model.Vector
	data    map[model.ObjectID]T
}

// NewMemory creates an empty store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		vectors: make(map[model.ObjectID]model.Vector),
		data:    make(map[model.ObjectID]T),
	}
}

// Put stores a copy of v and its payload under id.
func (m *Memory[T]) Put(id model.ObjectID, v model.Vector, data T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = v.Clone()
	m.data[id] = data
}

// Vector implements Reader. The returned vector must not be modified.
func (m *Memory[T]) Vector(id model.ObjectID) (model.Vector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

// Data returns the payload stored for id.
func (m *Memory[T]) Data(id model.ObjectID) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[id]
	return d, ok
}

// Delete removes id from the store.
func (m *Memory[T]) Delete(id model.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	delete(m.data, id)
}

// Len returns the number of stored objects.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Range calls fn for every stored object until fn returns false.
// The iteration order is unspecified.
func (m *Memory[T]) Range(fn func(id model.ObjectID, v model.Vector) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, v := range m.vectors {
		if !fn(id, v) {
			return
		}
	}
}
