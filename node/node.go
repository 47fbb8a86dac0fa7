// Package node defines the paged node representation shared by all tree variants.
//
// A Node is a fixed-capacity container of Entries, tagged as leaf or directory.
// Nodes are owned exclusively by their tree and addressed by a PageID; parent and
// child links are page ids, never live references.
package node

import (
	"fmt"
	"slices"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/model"
)

// PageID addresses a node inside a page store.
type PageID uint64

// NoPage is the zero PageID. Nodes that were never written carry it.
const NoPage PageID = 0

// String returns a string representation of the PageID.
func (p PageID) String() string {
	return fmt.Sprintf("Page(%d)", uint64(p))
}

// Entry is a slot of a node.
//
// Leaf entries reference an object (Object). Directory entries reference a child
// node (Child) and carry the aggregate covering information of its subtree:
// a routing object with covering radius (metric trees) or a bounding box
// (spatial trees). The aggregate is always a valid upper bound of the subtree's
// extent; it may be loose after deletions but never underestimates.
type Entry struct {
	// Object is the indexed object (leaf) or the routing object (directory).
	Object model.ObjectID
	// Child is the page of the subtree (directory entries only).
	Child PageID
	// Routing is a copy of the routing object's vector (metric directory entries).
	Routing model.Vector
	// Radius is the covering radius around Routing (metric directory entries).
	Radius float64
	// Box is the minimum bounding rectangle of the entry (spatial trees).
	Box distance.Rect
	// ParentDistance is the distance to the routing object of the parent entry.
	ParentDistance float64
}

// IsDirectory reports whether the entry points to a subtree.
func (e *Entry) IsDirectory() bool { return e.Child != NoPage }

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.Routing = e.Routing.Clone()
	e.Box = e.Box.Clone()
	return e
}

// String returns a string representation of the Entry.
func (e Entry) String() string {
	if e.IsDirectory() {
		return fmt.Sprintf("Dir(%s routing=%s r=%g box=%s pd=%g)", e.Child, e.Object, e.Radius, e.Box, e.ParentDistance)
	}
	return fmt.Sprintf("Leaf(%s pd=%g)", e.Object, e.ParentDistance)
}

// Node is an ordered list of entries.
type Node struct {
	ID      PageID
	Leaf    bool
	Level   int // 0 for leaves, increasing towards the root
	Entries []Entry
}

// NewLeaf creates an empty leaf node.
func NewLeaf(capacity int) *Node {
	return &Node{Leaf: true, Entries: make([]Entry, 0, capacity+1)}
}

// NewDirectory creates an empty directory node at the given level.
func NewDirectory(level, capacity int) *Node {
	return &Node{Level: level, Entries: make([]Entry, 0, capacity+1)}
}

// Len returns the number of entries.
func (n *Node) Len() int { return len(n.Entries) }

// IsLeaf reports whether n holds object entries.
func (n *Node) IsLeaf() bool { return n.Leaf }

// Add appends an entry and returns its slot.
func (n *Node) Add(e Entry) int {
	n.Entries = append(n.Entries, e)
	return len(n.Entries) - 1
}

// Replace overwrites the entry at slot.
func (n *Node) Replace(slot int, e Entry) {
	n.Entries[slot] = e
}

// Remove deletes the entry at slot, keeping the order of the remaining entries.
func (n *Node) Remove(slot int) Entry {
	e := n.Entries[slot]
	n.Entries = slices.Delete(n.Entries, slot, slot+1)
	return e
}

// Find returns the slot of the entry pointing to child, or -1.
func (n *Node) Find(child PageID) int {
	return slices.IndexFunc(n.Entries, func(e Entry) bool { return e.Child == child })
}

// FindObject returns the slot of the leaf entry for id, or -1.
func (n *Node) FindObject(id model.ObjectID) int {
	return slices.IndexFunc(n.Entries, func(e Entry) bool { return e.Object == id })
}

// Full reports whether the node holds capacity entries; one more insert overflows it.
func (n *Node) Full(capacity int) bool { return len(n.Entries) >= capacity }

// Overflow reports whether the node holds more than capacity entries and must split.
func (n *Node) Overflow(capacity int) bool { return len(n.Entries) > capacity }

// Underflow reports whether the node holds fewer than minimum entries.
func (n *Node) Underflow(minimum int) bool { return len(n.Entries) < minimum }

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := &Node{ID: n.ID, Leaf: n.Leaf, Level: n.Level, Entries: make([]Entry, len(n.Entries), cap(n.Entries))}
	for i, e := range n.Entries {
		c.Entries[i] = e.Clone()
	}
	return c
}

// String returns a string representation of the Node.
func (n *Node) String() string {
	kind := "Dir"
	if n.Leaf {
		kind = "Leaf"
	}
	return fmt.Sprintf("%sNode(%s level=%d entries=%d)", kind, n.ID, n.Level, len(n.Entries))
}
