package tree

import (
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// step records the slot taken in a directory node during a descent.
type step struct {
	n    *node.Node
	slot int
}

// parentEntry returns the entry pointing at the node below path[i], or nil
// when that node is the root.
func parentEntry(path []step, i int) *node.Entry {
	if i < 0 {
		return nil
	}
	return &path[i].n.Entries[path[i].slot]
}

// Insert adds object id with vector v.
func (t *Tree) Insert(id model.ObjectID, v model.Vector) error {
	if err := t.checkDim(v); err != nil {
		return err
	}

	e := t.strategy.LeafEntry(id, v)
	if err := t.insertEntry(e, 0); err != nil {
		return err
	}

	t.size++
	return t.Flush()
}

// insertEntry places e into a node at level, splitting overflowing nodes
// bottom-up. Leaf entries go to level 0; a directory entry whose child sits at
// level l goes to level l+1.
func (t *Tree) insertEntry(e node.Entry, level int) error {
	n, err := t.store.Read(t.root)
	if err != nil {
		return err
	}
	if n.Level < level {
		return internalf("insert at level %d above root level %d", level, n.Level)
	}

	var path []step
	for n.Level > level {
		if n.Leaf || n.Len() == 0 {
			return internalf("descent reached %s at level %d", n, n.Level)
		}
		slot, err := t.strategy.ChooseSubtree(n, &e)
		if err != nil {
			return err
		}
		if err := t.strategy.Extend(&n.Entries[slot], &e); err != nil {
			return err
		}
		path = append(path, step{n: n, slot: slot})

		if n, err = t.store.Read(n.Entries[slot].Child); err != nil {
			return err
		}
	}

	if err := t.strategy.Attach(parentEntry(path, len(path)-1), &e); err != nil {
		return err
	}
	n.Add(e)

	// Each ancestor must cover the ball of the entry below it, not only e.
	if err := t.widen(path, len(path), &e); err != nil {
		return err
	}

	return t.adjust(n, path)
}

// adjust splits n while it overflows, propagating towards the root, and
// writes every node on the path.
func (t *Tree) adjust(n *node.Node, path []step) error {
	for i := len(path) - 1; ; i-- {
		if !n.Overflow(t.cfg.Capacity) {
			if err := t.write(n); err != nil {
				return err
			}
			for j := i; j >= 0; j-- {
				if err := t.write(path[j].n); err != nil {
					return err
				}
			}
			return nil
		}

		left, right, err := t.split(n)
		if err != nil {
			return err
		}

		if i < 0 {
			return t.growRoot(n.Level, left, right)
		}

		parent := path[i].n
		grand := parentEntry(path, i-1)
		if err := t.strategy.Attach(grand, &left); err != nil {
			return err
		}
		if err := t.strategy.Attach(grand, &right); err != nil {
			return err
		}
		parent.Replace(path[i].slot, left)
		parent.Add(right)
		if err := t.widen(path, i, &left, &right); err != nil {
			return err
		}
		n = parent
	}
}

// widen extends the ancestors of path[i].n so that each directory entry
// covers the entries of the node it points to after added were placed into
// path[i].n.
func (t *Tree) widen(path []step, i int, added ...*node.Entry) error {
	grand := parentEntry(path, i-1)
	if grand == nil {
		return nil
	}
	for _, e := range added {
		if err := t.strategy.Extend(grand, e); err != nil {
			return err
		}
	}
	for j := i - 1; j > 0; j-- {
		if err := t.strategy.Extend(parentEntry(path, j-1), parentEntry(path, j)); err != nil {
			return err
		}
	}
	return nil
}

// split divides n into n and a new sibling, writes both and returns their
// directory entries.
func (t *Tree) split(n *node.Node) (node.Entry, node.Entry, error) {
	g1, g2, err := t.strategy.Split(n.Entries, t.cfg.MinFill)
	if err != nil {
		return node.Entry{}, node.Entry{}, err
	}
	if err := t.checkGroup(g1.Entries, false); err != nil {
		return node.Entry{}, node.Entry{}, err
	}
	if err := t.checkGroup(g2.Entries, false); err != nil {
		return node.Entry{}, node.Entry{}, err
	}

	sibling := &node.Node{Leaf: n.Leaf, Level: n.Level, Entries: withSpare(g2.Entries, t.cfg.Capacity)}
	n.Entries = withSpare(g1.Entries, t.cfg.Capacity)

	left, err := t.materialize(n, g1.Pivot)
	if err != nil {
		return node.Entry{}, node.Entry{}, err
	}
	right, err := t.materialize(sibling, g2.Pivot)
	if err != nil {
		return node.Entry{}, node.Entry{}, err
	}
	return left, right, nil
}

// materialize promotes n, writes it and returns its directory entry.
func (t *Tree) materialize(n *node.Node, pivot Pivot) (node.Entry, error) {
	de, err := t.strategy.Promote(n, pivot)
	if err != nil {
		return node.Entry{}, err
	}
	id, err := t.store.Write(n)
	if err != nil {
		return node.Entry{}, err
	}
	de.Child = id
	return de, nil
}

// growRoot installs a new root above the two halves of a split root.
func (t *Tree) growRoot(childLevel int, left, right node.Entry) error {
	root := node.NewDirectory(childLevel+1, t.cfg.Capacity)
	for _, e := range []node.Entry{left, right} {
		if err := t.strategy.Attach(nil, &e); err != nil {
			return err
		}
		root.Add(e)
	}

	id, err := t.store.Write(root)
	if err != nil {
		return err
	}
	t.root = id
	t.height++
	return nil
}

// checkGroup validates the size of a split or bulk load group.
func (t *Tree) checkGroup(entries []node.Entry, isRoot bool) error {
	if len(entries) > t.cfg.Capacity {
		return internalf("group of %d entries exceeds capacity %d", len(entries), t.cfg.Capacity)
	}
	if !isRoot && len(entries) < t.cfg.MinFill {
		return internalf("group of %d entries is below minimum fill %d", len(entries), t.cfg.MinFill)
	}
	return nil
}

func withSpare(entries []node.Entry, capacity int) []node.Entry {
	out := make([]node.Entry, len(entries), capacity+1)
	copy(out, entries)
	return out
}
