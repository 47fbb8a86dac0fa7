package rstar

import (
	"fmt"
	"strings"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/queue"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
	"github.com/hupe1980/simidx/objstore"
)

// BulkMethod selects the grouping heuristic of bulk loading.
type BulkMethod int

const (
	// STR is Sort-Tile-Recursive packing.
	STR BulkMethod = iota
	// MaxExtension recursively halves along the axis of largest extent.
	MaxExtension
	// OneDim sorts by the first coordinate only.
	OneDim
)

func (m BulkMethod) String() string {
	switch m {
	case STR:
		return "str"
	case MaxExtension:
		return "maxext"
	case OneDim:
		return "onedim"
	default:
		return fmt.Sprintf("BulkMethod(%d)", int(m))
	}
}

// ParseBulkMethod parses the names returned by BulkMethod.String.
func ParseBulkMethod(name string) (BulkMethod, error) {
	switch strings.ToLower(name) {
	case "", "str":
		return STR, nil
	case "maxext":
		return MaxExtension, nil
	case "onedim":
		return OneDim, nil
	}
	return 0, fmt.Errorf("rstar: unknown bulk method %q", name)
}

// Options configures the spatial strategy.
type Options struct {
	Bulk BulkMethod
}

// Strategy is the tree.Strategy of spatial trees.
type Strategy struct {
	dist    distance.Spatial
	objects objstore.Reader
	opts    Options
}

var _ tree.Strategy = (*Strategy)(nil)

// New creates a spatial strategy. dist must implement distance.Spatial.
func New(dist distance.Func, objects objstore.Reader, opts Options) (*Strategy, error) {
	sp, ok := dist.(distance.Spatial)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no rectangle lower bound", tree.ErrInvalidDistance, dist.Name())
	}
	return &Strategy{dist: sp, objects: objects, opts: opts}, nil
}

// Kind returns tree.KindRStar.
func (s *Strategy) Kind() tree.Kind { return tree.KindRStar }

// Distance returns the distance function.
func (s *Strategy) Distance() distance.Func { return s.dist }

// Options returns the options.
func (s *Strategy) Options() Options { return s.opts }

// LeafEntry returns an entry whose box is the point v.
func (s *Strategy) LeafEntry(id model.ObjectID, v model.Vector) node.Entry {
	return node.Entry{Object: id, Box: distance.Point(v)}
}

// ChooseSubtree picks the entry needing the least overlap enlargement when
// the children are leaves, and the least area enlargement otherwise. Ties go
// to the smaller area enlargement, then to the smaller area.
func (s *Strategy) ChooseSubtree(n *node.Node, e *node.Entry) (int, error) {
	if n.Len() == 0 {
		return -1, fmt.Errorf("%w: no subtree in %s", tree.ErrInternal, n)
	}

	best := -1
	var bestOverlap, bestEnlarge, bestArea float64
	for slot := range n.Entries {
		box := n.Entries[slot].Box
		enlarge := box.Enlargement(e.Box)
		area := box.Area()

		overlap := 0.0
		if n.Level == 1 {
			grown := box.Union(e.Box)
			for j := range n.Entries {
				if j != slot {
					overlap += grown.Overlap(n.Entries[j].Box) - box.Overlap(n.Entries[j].Box)
				}
			}
		}

		if best < 0 || less3(overlap, enlarge, area, bestOverlap, bestEnlarge, bestArea) {
			best, bestOverlap, bestEnlarge, bestArea = slot, overlap, enlarge, area
		}
	}
	return best, nil
}

func less3(a1, a2, a3, b1, b2, b3 float64) bool {
	if a1 != b1 {
		return a1 < b1
	}
	if a2 != b2 {
		return a2 < b2
	}
	return a3 < b3
}

// Extend grows the box of dir to cover e.
func (s *Strategy) Extend(dir *node.Entry, e *node.Entry) error {
	dir.Box = dir.Box.Union(e.Box)
	return nil
}

// Attach is a no-op; spatial entries have no parent distance.
func (s *Strategy) Attach(_ *node.Entry, e *node.Entry) error {
	e.ParentDistance = 0
	return nil
}

// Promote returns a directory entry whose box is the union of child's boxes.
func (s *Strategy) Promote(child *node.Node, _ tree.Pivot) (node.Entry, error) {
	if child.Len() == 0 {
		return node.Entry{}, fmt.Errorf("%w: promote empty %s", tree.ErrInternal, child)
	}
	return node.Entry{Child: child.ID, Box: union(child.Entries)}, nil
}

// Refresh tightens the box of dir to child.
func (s *Strategy) Refresh(dir *node.Entry, child *node.Node) error {
	dir.Box = union(child.Entries)
	return nil
}

func union(entries []node.Entry) distance.Rect {
	var box distance.Rect
	for i := range entries {
		box = box.Union(entries[i].Box)
	}
	return box
}

// Bound returns MinDist to the box for directory entries and the exact
// distance for leaf entries.
func (s *Strategy) Bound(q *tree.Query, _ queue.Anchor, e *node.Entry, _ float64) (tree.Bound, bool, error) {
	if q.Stats != nil {
		q.Stats.Distances++
	}
	if e.IsDirectory() {
		return tree.Bound{LowerBound: s.dist.MinDist(q.Vector, e.Box)}, true, nil
	}

	v, err := s.objects.Vector(e.Object)
	if err != nil {
		return tree.Bound{}, false, err
	}
	return tree.Bound{LowerBound: s.dist.Distance(q.Vector, v)}, true, nil
}

// Contains reports whether v lies inside the box of dir.
func (s *Strategy) Contains(dir *node.Entry, v model.Vector) (bool, error) {
	return dir.Box.ContainsPoint(v), nil
}

// Verify checks that the box of dir equals the union of child's boxes and,
// for leaves, that every entry box is the point of its object.
func (s *Strategy) Verify(dir *node.Entry, child *node.Node, _ []model.ObjectID) error {
	if got := union(child.Entries); !got.Equal(dir.Box) {
		return fmt.Errorf("stored box %s, recomputed %s", dir.Box, got)
	}
	if !child.Leaf {
		return nil
	}

	for i := range child.Entries {
		e := &child.Entries[i]
		v, err := s.objects.Vector(e.Object)
		if err != nil {
			return err
		}
		if !e.Box.Equal(distance.Point(v)) {
			return fmt.Errorf("entry %d of %s has box %s for %s at %v", i, child.ID, e.Box, e.Object, v)
		}
	}
	return nil
}
