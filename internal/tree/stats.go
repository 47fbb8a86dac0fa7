package tree

import (
	"github.com/hupe1980/simidx/node"
)

// Stats describes the shape of a tree.
type Stats struct {
	Kind        Kind
	Height      int
	Size        int
	Nodes       int
	Leaves      int
	Pages       int
	NodesPerLvl []int // index 0 holds the leaves
	AvgFill     float64
}

// Stats walks the tree and reports its shape.
func (t *Tree) Stats() (Stats, error) {
	s := Stats{
		Kind:        t.strategy.Kind(),
		Height:      t.height,
		Size:        t.size,
		Pages:       t.store.Pages(),
		NodesPerLvl: make([]int, t.height),
	}

	entries := 0
	err := t.Walk(func(n *node.Node) error {
		s.Nodes++
		if n.Leaf {
			s.Leaves++
		}
		if n.Level < len(s.NodesPerLvl) {
			s.NodesPerLvl[n.Level]++
		}
		entries += n.Len()
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	if s.Nodes > 0 {
		s.AvgFill = float64(entries) / float64(s.Nodes*t.cfg.Capacity)
	}
	return s, nil
}

// RootEntry summarizes the root node.
type RootEntry struct {
	Page  node.PageID
	Level int
	Leaf  bool
	Len   int
	Entry node.Entry // covering aggregate of the whole tree
}

// Root returns the root page together with a directory entry covering the
// whole tree. The aggregate of an empty tree is the zero entry.
func (t *Tree) Root() (RootEntry, error) {
	root, err := t.store.Read(t.root)
	if err != nil {
		return RootEntry{}, err
	}

	re := RootEntry{Page: root.ID, Level: root.Level, Leaf: root.Leaf, Len: root.Len()}
	if root.Len() == 0 {
		re.Entry.Child = root.ID
		return re, nil
	}

	// Promote rewrites parent distances, so it works on a copy.
	e, err := t.strategy.Promote(root.Clone(), Pivot{})
	if err != nil {
		return RootEntry{}, err
	}
	e.Child = root.ID
	re.Entry = e
	return re, nil
}
