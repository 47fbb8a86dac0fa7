// Package registry owns the lifecycle of object identifiers.
//
// Identifiers are dense and allocated in increasing order. A released id is
// never handed out again until Compact has been called, so stale handles held
// by callers cannot silently alias a newer object between compactions.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/simidx/model"
)

// ErrUnknownID is returned when releasing an id that is not live.
var ErrUnknownID = errors.New("registry: unknown object id")

// Registry allocates and tracks live object ids.
type Registry struct {
	mu       sync.RWMutex
	next     model.ObjectID
	live     *roaring64.Bitmap
	released *roaring64.Bitmap // dead, waiting for compaction
	reuse    []model.ObjectID  // dead and compacted, safe to hand out
}

// New creates an empty registry. The first allocated id is 1.
func New() *Registry {
	return &Registry{
		next:     1,
		live:     roaring64.New(),
		released: roaring64.New(),
	}
}

// Allocate returns a fresh unique id.
func (r *Registry) Allocate() model.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocate()
}

// AllocateN returns n fresh unique ids.
func (r *Registry) AllocateN(n int) []model.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]model.ObjectID, n)
	for i := range ids {
		ids[i] = r.allocate()
	}
	return ids
}

func (r *Registry) allocate() model.ObjectID {
	var id model.ObjectID
	if n := len(r.reuse); n > 0 {
		id = r.reuse[n-1]
		r.reuse = r.reuse[:n-1]
	} else {
		id = r.next
		r.next++
	}
	r.live.Add(uint64(id))
	return id
}

// Release invalidates a live id.
func (r *Registry) Release(id model.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live.Contains(uint64(id)) {
		return fmt.Errorf("%w: %s", ErrUnknownID, id)
	}
	r.live.Remove(uint64(id))
	r.released.Add(uint64(id))
	return nil
}

// Live reports whether id is currently allocated.
func (r *Registry) Live(id model.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live.Contains(uint64(id))
}

// Len returns the number of live ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(r.live.GetCardinality())
}

// Pending returns the number of released ids awaiting compaction.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(r.released.GetCardinality())
}

// Compact makes all released ids eligible for reuse and returns how many were recycled.
func (r *Registry) Compact() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int(r.released.GetCardinality())
	if n == 0 {
		return 0
	}
	for _, id := range r.released.ToArray() {
		r.reuse = append(r.reuse, model.ObjectID(id))
	}
	// allocate pops from the end: keep the smallest id last.
	slices.SortFunc(r.reuse, func(a, b model.ObjectID) int { return cmp.Compare(b, a) })
	r.released.Clear()
	return n
}

// Snapshot returns the live ids in ascending order.
func (r *Registry) Snapshot() []model.ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]model.ObjectID, 0, r.live.GetCardinality())
	it := r.live.Iterator()
	for it.HasNext() {
		ids = append(ids, model.ObjectID(it.Next()))
	}
	return ids
}
