package mtree

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/queue"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
	"github.com/hupe1980/simidx/objstore"
)

// Strategy is the tree.Strategy of metric trees.
type Strategy struct {
	dist    distance.Func
	objects objstore.Reader
	opts    Options
	rng     *rand.Rand
}

var _ tree.Strategy = (*Strategy)(nil)

// New creates a metric strategy. Leaf vectors are fetched from objects.
func New(dist distance.Func, objects objstore.Reader, opts Options) *Strategy {
	return &Strategy{
		dist:    dist,
		objects: objects,
		opts:    opts,
		rng:     rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// Kind returns tree.KindMTree.
func (s *Strategy) Kind() tree.Kind { return tree.KindMTree }

// Distance returns the distance function.
func (s *Strategy) Distance() distance.Func { return s.dist }

// Options returns the split policy.
func (s *Strategy) Options() Options { return s.opts }

// vector returns the routing vector of a directory entry or the object vector
// of a leaf entry.
func (s *Strategy) vector(e *node.Entry) (model.Vector, error) {
	if e.IsDirectory() {
		return e.Routing, nil
	}
	return s.objects.Vector(e.Object)
}

func (s *Strategy) vectors(entries []node.Entry) ([]model.Vector, error) {
	vecs := make([]model.Vector, len(entries))
	for i := range entries {
		v, err := s.vector(&entries[i])
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

// LeafEntry returns an entry referencing id.
func (s *Strategy) LeafEntry(id model.ObjectID, _ model.Vector) node.Entry {
	return node.Entry{Object: id}
}

// ChooseSubtree prefers the closest routing object whose ball already covers
// e, and otherwise the one needing the smallest radius increase.
func (s *Strategy) ChooseSubtree(n *node.Node, e *node.Entry) (int, error) {
	v, err := s.vector(e)
	if err != nil {
		return -1, err
	}

	best, bestInside := -1, false
	bestKey := math.Inf(1)
	for slot := range n.Entries {
		dir := &n.Entries[slot]
		d := s.dist.Distance(dir.Routing, v)
		inside := d+e.Radius <= dir.Radius

		key := d
		if !inside {
			key = d + e.Radius - dir.Radius
		}
		switch {
		case inside && !bestInside:
			best, bestInside, bestKey = slot, true, key
		case inside == bestInside && key < bestKey:
			best, bestKey = slot, key
		}
	}
	if best < 0 {
		return -1, fmt.Errorf("%w: no subtree in %s", tree.ErrInternal, n)
	}
	return best, nil
}

// Extend grows the covering radius of dir to include e.
func (s *Strategy) Extend(dir *node.Entry, e *node.Entry) error {
	v, err := s.vector(e)
	if err != nil {
		return err
	}
	dir.Radius = max(dir.Radius, s.dist.Distance(dir.Routing, v)+e.Radius)
	return nil
}

// Attach sets the distance of e to the routing object of parent.
func (s *Strategy) Attach(parent *node.Entry, e *node.Entry) error {
	if parent == nil {
		e.ParentDistance = 0
		return nil
	}
	v, err := s.vector(e)
	if err != nil {
		return err
	}
	e.ParentDistance = s.dist.Distance(parent.Routing, v)
	return nil
}

// Promote builds the directory entry of child around pivot, or around the
// entry with the smallest covering radius when pivot is zero.
func (s *Strategy) Promote(child *node.Node, pivot tree.Pivot) (node.Entry, error) {
	if child.Len() == 0 {
		return node.Entry{}, fmt.Errorf("%w: promote empty %s", tree.ErrInternal, child)
	}

	vecs, err := s.vectors(child.Entries)
	if err != nil {
		return node.Entry{}, err
	}
	if pivot.IsZero() {
		i := s.center(child.Entries, vecs)
		pivot = tree.Pivot{Object: child.Entries[i].Object, Vector: vecs[i]}
	}

	radius := 0.0
	for i := range child.Entries {
		d := s.dist.Distance(pivot.Vector, vecs[i])
		child.Entries[i].ParentDistance = d
		radius = max(radius, d+child.Entries[i].Radius)
	}

	return node.Entry{
		Object:  pivot.Object,
		Child:   child.ID,
		Routing: pivot.Vector.Clone(),
		Radius:  radius,
	}, nil
}

// center returns the entry minimizing the covering radius of entries when
// used as routing object.
func (s *Strategy) center(entries []node.Entry, vecs []model.Vector) int {
	best, bestRadius := 0, math.Inf(1)
	for i := range entries {
		r := 0.0
		for j := range entries {
			if i != j {
				r = max(r, s.dist.Distance(vecs[i], vecs[j])+entries[j].Radius)
			}
			if r >= bestRadius {
				break
			}
		}
		if r < bestRadius {
			best, bestRadius = i, r
		}
	}
	return best
}

// Refresh recomputes the covering radius of dir from the parent distances
// stored in child.
func (s *Strategy) Refresh(dir *node.Entry, child *node.Node) error {
	radius := 0.0
	for i := range child.Entries {
		e := &child.Entries[i]
		radius = max(radius, e.ParentDistance+e.Radius)
	}
	dir.Radius = radius
	return nil
}

// Bound applies the parent distance pre-filter and then the covering radius
// lower bound.
func (s *Strategy) Bound(q *tree.Query, parent queue.Anchor, e *node.Entry, accept float64) (tree.Bound, bool, error) {
	if parent.Valid && math.Abs(parent.Distance-e.ParentDistance) > accept+e.Radius {
		return tree.Bound{}, false, nil
	}

	v, err := s.vector(e)
	if err != nil {
		return tree.Bound{}, false, err
	}
	d := s.dist.Distance(q.Vector, v)
	if q.Stats != nil {
		q.Stats.Distances++
	}

	if !e.IsDirectory() {
		return tree.Bound{LowerBound: d}, true, nil
	}
	return tree.Bound{
		LowerBound: max(d-e.Radius, 0),
		Anchor:     queue.Anchor{Distance: d, Valid: true},
	}, true, nil
}

// tolerance absorbs rounding in radii built from sums of distances.
func tolerance(radius float64) float64 {
	return 1e-9 * (1 + radius)
}

// Contains reports whether v lies inside the covering ball of dir.
func (s *Strategy) Contains(dir *node.Entry, v model.Vector) (bool, error) {
	return s.dist.Distance(dir.Routing, v) <= dir.Radius+tolerance(dir.Radius), nil
}

// Verify checks the parent distances of child's entries and that the
// covering radius of dir reaches every object below it.
func (s *Strategy) Verify(dir *node.Entry, child *node.Node, objects []model.ObjectID) error {
	tol := tolerance(dir.Radius)

	for i := range child.Entries {
		e := &child.Entries[i]
		v, err := s.vector(e)
		if err != nil {
			return err
		}
		d := s.dist.Distance(dir.Routing, v)
		if math.Abs(d-e.ParentDistance) > tol {
			return fmt.Errorf("entry %d of %s stores parent distance %g, actual %g", i, child.ID, e.ParentDistance, d)
		}
		if d+e.Radius > dir.Radius+tol {
			return fmt.Errorf("covering radius %g does not reach entry %d of %s at %g", dir.Radius, i, child.ID, d+e.Radius)
		}
	}

	for _, id := range objects {
		v, err := s.objects.Vector(id)
		if err != nil {
			return err
		}
		if d := s.dist.Distance(dir.Routing, v); d > dir.Radius+tol {
			return fmt.Errorf("covering radius %g below distance %g to %s", dir.Radius, d, id)
		}
	}
	return nil
}
