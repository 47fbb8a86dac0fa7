package tree

import (
	"errors"

	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// Item is an object handed to BulkLoad.
type Item struct {
	ID     model.ObjectID
	Vector model.Vector
}

// GroupSizes returns the sizes of the ceil(n/capacity) near-equal groups that
// n items are split into. Sizes differ by at most one, so every group holds at
// least capacity/2 entries whenever more than one group is needed.
func GroupSizes(n, capacity int) []int {
	if n <= 0 {
		return nil
	}
	g := (n + capacity - 1) / capacity
	sizes := make([]int, g)
	q, r := n/g, n%g
	for i := range sizes {
		sizes[i] = q
		if i < r {
			sizes[i]++
		}
	}
	return sizes
}

// BulkLoad builds the tree from items level by level: the items are grouped
// into leaves, the leaves into directory nodes, and so on until a single
// group remains, which becomes the root.
func (t *Tree) BulkLoad(items []Item) error {
	if t.size > 0 {
		return ErrNotEmpty
	}

	entries := make([]node.Entry, len(items))
	for i, it := range items {
		if err := t.checkDim(it.Vector); err != nil {
			return err
		}
		entries[i] = t.strategy.LeafEntry(it.ID, it.Vector)
	}

	oldRoot := t.root
	root, height, written, err := t.build(entries)
	if err != nil {
		// Release the pages of the partial build; the old root stays.
		errs := []error{err}
		for _, id := range written {
			errs = append(errs, t.store.Free(id))
		}
		return errors.Join(errs...)
	}
	if root != oldRoot {
		if err := t.store.Free(oldRoot); err != nil {
			return err
		}
	}

	t.root = root
	t.height = height
	t.size = len(items)
	return t.Flush()
}

// build returns the root and height of the tree built from entries, and the
// pages it wrote, also on failure.
func (t *Tree) build(entries []node.Entry) (node.PageID, int, []node.PageID, error) {
	var written []node.PageID
	for level := 0; ; level++ {
		if err := t.checkLevel(entries, level); err != nil {
			return node.NoPage, 0, written, err
		}

		if len(entries) <= t.cfg.Capacity {
			if level > 0 && len(entries) == 1 {
				return entries[0].Child, level, written, nil
			}
			root := &node.Node{Leaf: level == 0, Level: level, Entries: withSpare(entries, t.cfg.Capacity)}
			for i := range root.Entries {
				if err := t.strategy.Attach(nil, &root.Entries[i]); err != nil {
					return node.NoPage, 0, written, err
				}
			}
			id, err := t.store.Write(root)
			if err != nil {
				return node.NoPage, 0, written, err
			}
			return id, level + 1, append(written, id), nil
		}

		next, err := t.buildLevel(entries, level)
		for i := range next {
			written = append(written, next[i].Child)
		}
		if err != nil {
			return node.NoPage, 0, written, err
		}
		entries = next
	}
}

// checkLevel rejects leaf entries among directory items and vice versa.
func (t *Tree) checkLevel(entries []node.Entry, level int) error {
	for i := range entries {
		if dir := entries[i].IsDirectory(); dir != (level > 0) {
			if dir {
				return internalf("directory entry for %s among leaf items", entries[i].Child)
			}
			return internalf("leaf entry for %s where a subtree was expected at level %d", entries[i].Object, level)
		}
	}
	return nil
}

// buildLevel partitions entries into nodes at level and returns their
// directory entries. On failure it returns the entries of the nodes already
// written.
func (t *Tree) buildLevel(entries []node.Entry, level int) ([]node.Entry, error) {
	groups, err := t.strategy.Partition(entries, GroupSizes(len(entries), t.cfg.Capacity))
	if err != nil {
		return nil, err
	}

	total := 0
	next := make([]node.Entry, 0, len(groups))
	for _, g := range groups {
		if err := t.checkGroup(g.Entries, false); err != nil {
			return next, err
		}
		if err := t.checkLevel(g.Entries, level); err != nil {
			return next, err
		}
		total += len(g.Entries)

		n := &node.Node{Leaf: level == 0, Level: level, Entries: withSpare(g.Entries, t.cfg.Capacity)}
		de, err := t.materialize(n, g.Pivot)
		if err != nil {
			return next, err
		}
		next = append(next, de)
	}
	if total != len(entries) {
		return next, internalf("partition returned %d of %d entries", total, len(entries))
	}
	return next, nil
}
