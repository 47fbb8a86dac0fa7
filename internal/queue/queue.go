// Package queue implements the search-local priority queues used by tree traversal.
//
// Both queues are value-based binary heaps that do NOT implement container/heap
// to avoid interface overhead. They are never shared between goroutines.
package queue

import (
	"github.com/hupe1980/simidx/node"
)

// Anchor is the query distance to a routing object, if one is known.
type Anchor struct {
	Distance float64
	Valid    bool
}

// Candidate is a node waiting to be expanded by a best-first search.
type Candidate struct {
	LowerBound float64     // lower bound on the distance from the query to anything below Page
	Page       node.PageID // node to expand
	Routing    Anchor      // query distance to the routing object of the entry that led here
}

// CandidateQueue is a min-heap of candidates ordered by LowerBound.
type CandidateQueue struct {
	items []Candidate
}

// NewCandidateQueue creates a queue with the given initial capacity.
func NewCandidateQueue(capacity int) *CandidateQueue {
	return &CandidateQueue{items: make([]Candidate, 0, capacity)}
}

// Len returns the number of queued candidates.
func (q *CandidateQueue) Len() int { return len(q.items) }

// Reset clears the queue for reuse.
func (q *CandidateQueue) Reset() { q.items = q.items[:0] }

// Push inserts a candidate while maintaining the heap invariant.
func (q *CandidateQueue) Push(c Candidate) {
	q.items = append(q.items, c)
	q.siftUp(len(q.items) - 1)
}

// Peek returns the candidate with the smallest lower bound.
func (q *CandidateQueue) Peek() (Candidate, bool) {
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the candidate with the smallest lower bound.
func (q *CandidateQueue) Pop() (Candidate, bool) {
	n := len(q.items)
	if n == 0 {
		return Candidate{}, false
	}
	top := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return top, true
}

func (q *CandidateQueue) less(i, j int) bool {
	return q.items[i].LowerBound < q.items[j].LowerBound
}

func (q *CandidateQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *CandidateQueue) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && q.less(right, left) {
			child = right
		}
		if !q.less(child, i) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}
}
