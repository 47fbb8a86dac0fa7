package tree

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// Check verifies the structural invariants of the whole tree:
//
//   - every non-root node holds between MinFill and Capacity entries, the
//     root at most Capacity and a directory root at least two
//   - node levels decrease by one per step and all leaves sit at level 0
//   - the tracked height and size match the recomputed ones
//   - no object and no page is referenced twice, and no page is unreachable
//   - every directory aggregate covers its subtree (see Strategy.Verify)
//
// The first violation is returned as a *CorruptionError.
func (t *Tree) Check() error {
	root, err := t.store.Read(t.root)
	if err != nil {
		return err
	}
	if root.Level+1 != t.height {
		return corruptf(root.ID, -1, "tracked height %d, root level %d", t.height, root.Level)
	}
	if !root.Leaf && root.Len() < 2 {
		return corruptf(root.ID, -1, "directory root holds %d entries", root.Len())
	}

	c := &checker{
		t:       t,
		objects: bitset.New(uint(t.size + 1)),
		pages:   bitset.New(uint(t.store.Pages() + 1)),
	}
	if _, err := c.visit(root, true); err != nil {
		return err
	}

	if c.count != t.size {
		return corruptf(root.ID, -1, "tracked size %d, found %d objects", t.size, c.count)
	}
	if reachable := int(c.pages.Count()); reachable != t.store.Pages() {
		return corruptf(root.ID, -1, "%d pages allocated, %d reachable", t.store.Pages(), reachable)
	}
	return nil
}

type checker struct {
	t       *Tree
	objects *bitset.BitSet
	pages   *bitset.BitSet
	count   int
}

// visit checks n and its subtree and returns the objects stored below n.
func (c *checker) visit(n *node.Node, isRoot bool) ([]model.ObjectID, error) {
	if c.pages.Test(uint(n.ID)) {
		return nil, corruptf(n.ID, -1, "page referenced twice")
	}
	c.pages.Set(uint(n.ID))

	if n.Leaf != (n.Level == 0) {
		return nil, corruptf(n.ID, -1, "leaf flag %t at level %d", n.Leaf, n.Level)
	}
	if n.Overflow(c.t.cfg.Capacity) {
		return nil, corruptf(n.ID, -1, "%d entries exceed capacity %d", n.Len(), c.t.cfg.Capacity)
	}
	if !isRoot && n.Underflow(c.t.cfg.MinFill) {
		return nil, corruptf(n.ID, -1, "%d entries below minimum fill %d", n.Len(), c.t.cfg.MinFill)
	}

	if n.Leaf {
		objects := make([]model.ObjectID, 0, n.Len())
		for slot := range n.Entries {
			e := &n.Entries[slot]
			if e.IsDirectory() {
				return nil, corruptf(n.ID, slot, "directory entry in leaf")
			}
			if c.objects.Test(uint(e.Object)) {
				return nil, corruptf(n.ID, slot, "%s indexed twice", e.Object)
			}
			c.objects.Set(uint(e.Object))
			objects = append(objects, e.Object)
		}
		c.count += len(objects)
		return objects, nil
	}

	var all []model.ObjectID
	for slot := range n.Entries {
		e := &n.Entries[slot]
		if !e.IsDirectory() {
			return nil, corruptf(n.ID, slot, "leaf entry in directory")
		}

		child, err := c.t.store.Read(e.Child)
		if err != nil {
			return nil, err
		}
		if child.Level != n.Level-1 {
			return nil, corruptf(n.ID, slot, "child %s at level %d below level %d", child.ID, child.Level, n.Level)
		}

		objects, err := c.visit(child, false)
		if err != nil {
			return nil, err
		}
		if err := c.t.strategy.Verify(e, child, objects); err != nil {
			return nil, corruptf(n.ID, slot, "%v", err)
		}
		all = append(all, objects...)
	}
	return all, nil
}
