package tree

import (
	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/queue"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// Kind names a tree family.
type Kind string

// Supported kinds.
const (
	KindMTree Kind = "mtree"
	KindRStar Kind = "rstar"
)

// Pivot is the routing object chosen for a group of entries.
// Spatial strategies leave it empty.
type Pivot struct {
	Object model.ObjectID
	Vector model.Vector
}

// IsZero reports whether no pivot was chosen.
func (p Pivot) IsZero() bool { return p.Vector == nil }

// Group is a set of entries destined for one node.
type Group struct {
	Entries []node.Entry
	Pivot   Pivot
}

// Query is the per-search state handed to Strategy.Bound.
type Query struct {
	Vector model.Vector
	Stats  *SearchStats
}

// Bound is the outcome of evaluating one entry against a query.
type Bound struct {
	// LowerBound is the exact distance for leaf entries and a lower bound on
	// the distance to any object of the subtree for directory entries.
	LowerBound float64
	// Anchor is the query distance to the entry's routing object, if known.
	Anchor queue.Anchor
}

// Strategy captures everything that differs between tree families.
//
// Implementations are used under the tree's external single-writer
// discipline: mutating methods are never called concurrently, while Bound and
// Contains may be called concurrently by searches.
type Strategy interface {
	// Kind identifies the tree family.
	Kind() Kind
	// Distance returns the distance function.
	Distance() distance.Func

	// LeafEntry creates the leaf entry of an object.
	LeafEntry(id model.ObjectID, v model.Vector) node.Entry
	// ChooseSubtree returns the slot of directory node n that should receive e.
	ChooseSubtree(n *node.Node, e *node.Entry) (int, error)
	// Extend grows the aggregate of dir so that it covers e.
	Extend(dir *node.Entry, e *node.Entry) error
	// Attach sets the parent distance of e relative to parent (nil for the root).
	Attach(parent *node.Entry, e *node.Entry) error
	// Promote creates the directory entry for child using pivot (chosen by the
	// strategy when zero) and updates the parent distances of child's entries.
	Promote(child *node.Node, pivot Pivot) (node.Entry, error)
	// Refresh recomputes the aggregate of dir from child, keeping its routing object.
	Refresh(dir *node.Entry, child *node.Node) error

	// Split divides the entries of an overflowing node into two groups whose
	// sizes lie in [minFill, len(entries)-minFill].
	Split(entries []node.Entry, minFill int) (Group, Group, error)
	// Partition groups bulk load items into len(sizes) groups with the given sizes.
	Partition(items []node.Entry, sizes []int) ([]Group, error)

	// Bound evaluates e for a query. parent is the query distance to the
	// routing object of the node holding e. It returns false when a cheap
	// pre-filter proves that e cannot contain anything within accept.
	Bound(q *Query, parent queue.Anchor, e *node.Entry, accept float64) (Bound, bool, error)
	// Contains reports whether the subtree of dir may hold an object at v.
	Contains(dir *node.Entry, v model.Vector) (bool, error)
	// Verify checks that dir correctly covers child, whose subtree holds objects.
	Verify(dir *node.Entry, child *node.Node, objects []model.ObjectID) error
}
