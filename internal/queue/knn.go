package queue

import (
	"math"

	"github.com/hupe1980/simidx/model"
)

// KNNHeap collects the k smallest (distance, id) pairs.
// It is a max-heap on distance: the root is the worst accepted pair.
type KNNHeap struct {
	k     int
	items []model.Neighbor
}

// NewKNNHeap creates a heap bounded to k pairs.
func NewKNNHeap(k int) *KNNHeap {
	return &KNNHeap{k: k, items: make([]model.Neighbor, 0, k)}
}

// K returns the capacity of the heap.
func (h *KNNHeap) K() int { return h.k }

// Len returns the number of pairs held.
func (h *KNNHeap) Len() int { return len(h.items) }

// Full reports whether the heap holds k pairs.
func (h *KNNHeap) Full() bool { return len(h.items) >= h.k }

// Threshold returns the current acceptance bound: the k-th smallest distance
// when full, +Inf otherwise.
func (h *KNNHeap) Threshold() float64 {
	if !h.Full() {
		return math.Inf(1)
	}
	return h.items[0].Distance
}

// Offer inserts the pair if fewer than k pairs are held or distance is
// strictly smaller than the worst accepted one. Ties exactly at the boundary
// are rejected. It reports whether the pair was accepted.
func (h *KNNHeap) Offer(distance float64, id model.ObjectID) bool {
	if len(h.items) < h.k {
		h.items = append(h.items, model.Neighbor{Distance: distance, ID: id})
		h.siftUp(len(h.items) - 1)
		return true
	}
	if h.k == 0 || distance >= h.items[0].Distance {
		return false
	}
	h.items[0] = model.Neighbor{Distance: distance, ID: id}
	h.siftDown(0)
	return true
}

// Drain empties the heap and returns its pairs sorted ascending.
func (h *KNNHeap) Drain() model.NeighborList {
	out := make(model.NeighborList, len(h.items))
	copy(out, h.items)
	h.items = h.items[:0]
	out.Sort()
	return out
}

func (h *KNNHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Distance <= h.items[parent].Distance {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *KNNHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && h.items[right].Distance > h.items[left].Distance {
			child = right
		}
		if h.items[child].Distance <= h.items[i].Distance {
			break
		}
		h.items[i], h.items[child] = h.items[child], h.items[i]
		i = child
	}
}
