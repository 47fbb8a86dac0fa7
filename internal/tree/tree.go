package tree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
	"github.com/hupe1980/simidx/pagestore"
)

// DefaultCapacity is the default maximum number of entries per node.
const DefaultCapacity = 32

// Config holds the structural settings of a tree.
type Config struct {
	// Dimension is the length of every indexed vector.
	Dimension int
	// Capacity is the maximum number of entries per node. Default: DefaultCapacity.
	Capacity int
	// MinFill is the minimum number of entries of a non-root node.
	// Default: Capacity/2. Must lie in [1, Capacity/2].
	MinFill int
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.MinFill == 0 {
		c.MinFill = max(1, c.Capacity/2)
	}
	return c
}

// Validate checks the settings.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Dimension < 1 {
		return fmt.Errorf("%w: dimension %d", ErrInvalidConfig, c.Dimension)
	}
	if c.Capacity < 3 {
		return fmt.Errorf("%w: capacity %d is below 3", ErrInvalidConfig, c.Capacity)
	}
	if c.MinFill < 1 || c.MinFill > c.Capacity/2 {
		return fmt.Errorf("%w: min fill %d outside [1, %d]", ErrInvalidConfig, c.MinFill, c.Capacity/2)
	}
	return nil
}

// Tree is the generic paged tree.
type Tree struct {
	strategy Strategy
	store    pagestore.Store
	cfg      Config

	root   node.PageID
	height int
	size   int
}

// New creates an empty tree in store, which must not hold a tree yet.
func New(s Strategy, store pagestore.Store, cfg Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := store.ReadHeader(); err == nil {
		return nil, fmt.Errorf("%w: store already holds a tree", ErrNotEmpty)
	} else if !errors.Is(err, pagestore.ErrNoHeader) {
		return nil, err
	}

	t := &Tree{
		strategy: s,
		store:    store,
		cfg:      cfg.withDefaults(),
		height:   1,
	}

	root := node.NewLeaf(t.cfg.Capacity)
	id, err := store.Write(root)
	if err != nil {
		return nil, err
	}
	t.root = id

	if err := t.Flush(); err != nil {
		return nil, err
	}
	return t, nil
}

// Open attaches to the tree persisted in store. The strategy must match the
// kind and distance function recorded in the header.
func Open(s Strategy, store pagestore.Store, dimension int) (*Tree, error) {
	h, err := store.ReadHeader()
	if err != nil {
		return nil, err
	}
	if h.Kind != string(s.Kind()) {
		return nil, fmt.Errorf("%w: stored kind %q, strategy kind %q", ErrDistanceMismatch, h.Kind, s.Kind())
	}
	if h.Distance != s.Distance().Name() {
		return nil, fmt.Errorf("%w: stored distance %q, configured %q", ErrDistanceMismatch, h.Distance, s.Distance().Name())
	}
	if dimension != 0 && h.Dimension != dimension {
		return nil, &ErrDimensionMismatch{Expected: h.Dimension, Actual: dimension}
	}

	cfg := Config{Dimension: h.Dimension, Capacity: h.Capacity, MinFill: h.MinFill}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Tree{
		strategy: s,
		store:    store,
		cfg:      cfg,
		root:     h.Root,
		height:   h.Height,
		size:     h.Size,
	}, nil
}

// Flush writes the header describing the current root, height and size.
func (t *Tree) Flush() error {
	return t.store.WriteHeader(pagestore.Header{
		Kind:      string(t.strategy.Kind()),
		Distance:  t.strategy.Distance().Name(),
		Dimension: t.cfg.Dimension,
		Capacity:  t.cfg.Capacity,
		MinFill:   t.cfg.MinFill,
		Root:      t.root,
		Height:    t.height,
		Size:      t.size,
	})
}

// Config returns the effective settings.
func (t *Tree) Config() Config { return t.cfg }

// Strategy returns the strategy.
func (t *Tree) Strategy() Strategy { return t.strategy }

// Height returns the number of levels; a tree whose root is a leaf has height 1.
func (t *Tree) Height() int { return t.height }

// Len returns the number of indexed objects.
func (t *Tree) Len() int { return t.size }

// RootPage returns the page of the root node.
func (t *Tree) RootPage() node.PageID { return t.root }

// Node returns the node stored at page, for inspection.
func (t *Tree) Node(page node.PageID) (*node.Node, error) {
	return t.store.Read(page)
}

func (t *Tree) checkDim(v model.Vector) error {
	if len(v) != t.cfg.Dimension {
		return &ErrDimensionMismatch{Expected: t.cfg.Dimension, Actual: len(v)}
	}
	return nil
}

func (t *Tree) write(n *node.Node) error {
	_, err := t.store.Write(n)
	return err
}
