package tree

import (
	"math"

	"github.com/hupe1980/simidx/internal/queue"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// SearchStats counts the work done by one query.
type SearchStats struct {
	NodesRead int
	Distances int
	Pruned    int
}

// Add accumulates o into s.
func (s *SearchStats) Add(o SearchStats) {
	s.NodesRead += o.NodesRead
	s.Distances += o.Distances
	s.Pruned += o.Pruned
}

// Filter restricts the objects a query may return.
type Filter func(id model.ObjectID) bool

// collector consumes accepted objects and defines the acceptance bound.
type collector interface {
	accept() float64
	offer(d float64, id model.ObjectID)
}

type knnCollector struct {
	heap *queue.KNNHeap
}

func (c *knnCollector) accept() float64 { return c.heap.Threshold() }

func (c *knnCollector) offer(d float64, id model.ObjectID) { c.heap.Offer(d, id) }

type rangeCollector struct {
	radius float64
	list   model.NeighborList
}

func (c *rangeCollector) accept() float64 { return c.radius }

func (c *rangeCollector) offer(d float64, id model.ObjectID) { c.list.Add(d, id) }

// KNN returns the k nearest objects to q, sorted by distance and then id.
// When several objects tie at the k-th distance, which of them are returned
// is unspecified.
func (t *Tree) KNN(q model.Vector, k int) (model.NeighborList, error) {
	res, _, err := t.KNNWithStats(q, k, nil)
	return res, err
}

// KNNWithStats is KNN with an optional filter, reporting search statistics.
func (t *Tree) KNNWithStats(q model.Vector, k int, filter Filter) (model.NeighborList, SearchStats, error) {
	var stats SearchStats
	if k < 1 {
		return nil, stats, ErrInvalidK
	}
	if err := t.checkDim(q); err != nil {
		return nil, stats, err
	}

	c := &knnCollector{heap: queue.NewKNNHeap(k)}
	if err := t.search(q, c, filter, &stats); err != nil {
		return nil, stats, err
	}
	return c.heap.Drain(), stats, nil
}

// KNNWithTies returns the k nearest objects plus every further object at
// exactly the k-th distance.
func (t *Tree) KNNWithTies(q model.Vector, k int) (model.NeighborList, error) {
	res, _, err := t.KNNWithTiesStats(q, k, nil)
	return res, err
}

// KNNWithTiesStats is KNNWithTies with an optional filter, reporting search
// statistics. It over-requests 2k neighbors and doubles the request while all
// of them tie with the k-th.
func (t *Tree) KNNWithTiesStats(q model.Vector, k int, filter Filter) (model.NeighborList, SearchStats, error) {
	var total SearchStats
	if k < 1 {
		return nil, total, ErrInvalidK
	}

	for want := 2 * k; ; want *= 2 {
		res, stats, err := t.KNNWithStats(q, want, filter)
		total.Add(stats)
		if err != nil {
			return nil, total, err
		}

		kth, ok := res.KDistance(k)
		if !ok || len(res) < want || res[want-1].Distance != kth {
			return res.TruncateTies(k), total, nil
		}
	}
}

// Range returns every object within radius of q, sorted by distance and then id.
func (t *Tree) Range(q model.Vector, radius float64) (model.NeighborList, error) {
	res, _, err := t.RangeWithStats(q, radius, nil)
	return res, err
}

// RangeWithStats is Range with an optional filter, reporting search statistics.
func (t *Tree) RangeWithStats(q model.Vector, radius float64, filter Filter) (model.NeighborList, SearchStats, error) {
	var stats SearchStats
	if radius < 0 || math.IsNaN(radius) {
		return nil, stats, ErrInvalidRadius
	}
	if err := t.checkDim(q); err != nil {
		return nil, stats, err
	}

	c := &rangeCollector{radius: radius}
	if err := t.search(q, c, filter, &stats); err != nil {
		return nil, stats, err
	}
	c.list.Sort()
	return c.list, stats, nil
}

// search runs the best-first branch-and-bound traversal. Candidates are
// popped in order of their lower bound; the search ends once the smallest
// lower bound exceeds the acceptance bound of the collector.
func (t *Tree) search(v model.Vector, c collector, filter Filter, stats *SearchStats) error {
	q := &Query{Vector: v, Stats: stats}

	cq := queue.NewCandidateQueue(4 * t.cfg.Capacity)
	cq.Push(queue.Candidate{Page: t.root})

	for cq.Len() > 0 {
		cand, _ := cq.Pop()
		accept := c.accept()
		if cand.LowerBound > accept {
			break
		}

		n, err := t.store.Read(cand.Page)
		if err != nil {
			return err
		}
		stats.NodesRead++

		for i := range n.Entries {
			e := &n.Entries[i]
			if n.Leaf && filter != nil && !filter(e.Object) {
				continue
			}

			b, ok, err := t.strategy.Bound(q, cand.Routing, e, accept)
			if err != nil {
				return err
			}
			if !ok || b.LowerBound > accept {
				stats.Pruned++
				continue
			}

			if n.Leaf {
				c.offer(b.LowerBound, e.Object)
				accept = c.accept()
				continue
			}
			cq.Push(queue.Candidate{LowerBound: b.LowerBound, Page: e.Child, Routing: b.Anchor})
		}
	}
	return nil
}

// Walk visits every node depth-first, parents before children. Returning an
// error from fn stops the walk.
func (t *Tree) Walk(fn func(n *node.Node) error) error {
	var visit func(id node.PageID) error
	visit = func(id node.PageID) error {
		n, err := t.store.Read(id)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		if n.Leaf {
			return nil
		}
		for i := range n.Entries {
			if err := visit(n.Entries[i].Child); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.root)
}
