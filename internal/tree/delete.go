package tree

import (
	"slices"

	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// orphan is an entry of a dissolved node waiting for reinsertion at level.
type orphan struct {
	entry node.Entry
	level int
}

// Delete removes object id, whose vector is v.
//
// Non-root nodes that fall below the minimum fill are dissolved and their
// entries are reinserted at their original level. A directory root left with
// a single child is replaced by that child.
func (t *Tree) Delete(id model.ObjectID, v model.Vector) error {
	if err := t.checkDim(v); err != nil {
		return err
	}

	path, leaf, slot, err := t.locate(id, v)
	if err != nil {
		return err
	}
	leaf.Remove(slot)

	orphans, err := t.condense(leaf, path)
	if err != nil {
		return err
	}

	// Higher subtrees first, so that lower entries see the final shape.
	slices.SortStableFunc(orphans, func(a, b orphan) int { return b.level - a.level })
	for _, o := range orphans {
		if err := t.insertEntry(o.entry, o.level); err != nil {
			return err
		}
	}

	if err := t.shrinkRoot(); err != nil {
		return err
	}

	t.size--
	return t.Flush()
}

// locate finds the leaf holding id, descending only into subtrees whose
// aggregate may contain v.
func (t *Tree) locate(id model.ObjectID, v model.Vector) ([]step, *node.Node, int, error) {
	root, err := t.store.Read(t.root)
	if err != nil {
		return nil, nil, -1, err
	}

	var path []step
	var visit func(n *node.Node) (*node.Node, int, error)
	visit = func(n *node.Node) (*node.Node, int, error) {
		if n.Leaf {
			if slot := n.FindObject(id); slot >= 0 {
				return n, slot, nil
			}
			return nil, -1, nil
		}
		for slot := range n.Entries {
			ok, err := t.strategy.Contains(&n.Entries[slot], v)
			if err != nil {
				return nil, -1, err
			}
			if !ok {
				continue
			}
			child, err := t.store.Read(n.Entries[slot].Child)
			if err != nil {
				return nil, -1, err
			}
			path = append(path, step{n: n, slot: slot})
			leaf, at, err := visit(child)
			if err != nil || leaf != nil {
				return leaf, at, err
			}
			path = path[:len(path)-1]
		}
		return nil, -1, nil
	}

	leaf, slot, err := visit(root)
	if err != nil {
		return nil, nil, -1, err
	}
	if leaf == nil {
		return nil, nil, -1, ErrNotFound
	}
	return path, leaf, slot, nil
}

// condense walks from n to the root, dissolving underflowing nodes and
// refreshing the aggregates of the surviving ones.
func (t *Tree) condense(n *node.Node, path []step) ([]orphan, error) {
	var orphans []orphan

	for i := len(path) - 1; i >= 0; i-- {
		parent, slot := path[i].n, path[i].slot

		if n.Underflow(t.cfg.MinFill) {
			parent.Remove(slot)
			for _, e := range n.Entries {
				orphans = append(orphans, orphan{entry: e, level: n.Level})
			}
			if err := t.store.Free(n.ID); err != nil {
				return nil, err
			}
		} else {
			if err := t.write(n); err != nil {
				return nil, err
			}
			if err := t.strategy.Refresh(&parent.Entries[slot], n); err != nil {
				return nil, err
			}
		}
		n = parent
	}

	return orphans, t.write(n)
}

// shrinkRoot replaces a directory root holding one entry by its child.
func (t *Tree) shrinkRoot() error {
	for {
		root, err := t.store.Read(t.root)
		if err != nil {
			return err
		}
		if root.Leaf || root.Len() != 1 {
			return nil
		}

		child, err := t.store.Read(root.Entries[0].Child)
		if err != nil {
			return err
		}
		for i := range child.Entries {
			if err := t.strategy.Attach(nil, &child.Entries[i]); err != nil {
				return err
			}
		}
		if err := t.write(child); err != nil {
			return err
		}
		if err := t.store.Free(root.ID); err != nil {
			return err
		}

		t.root = child.ID
		t.height--
	}
}
