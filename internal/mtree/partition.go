package mtree

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// Partition groups bulk load items by recursive balanced bisection: the items
// are ordered by how much closer they are to one of two far-apart pivots and
// cut so that each half receives whole groups. Each final group is routed by
// the member minimizing its covering radius.
func (s *Strategy) Partition(items []node.Entry, sizes []int) ([]tree.Group, error) {
	total := 0
	for _, n := range sizes {
		total += n
	}
	if total != len(items) {
		return nil, fmt.Errorf("%w: group sizes sum to %d for %d items", tree.ErrInternal, total, len(items))
	}

	vecs, err := s.vectors(items)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}

	p := &partitioner{s: s, items: items, vecs: vecs}
	p.bisect(idx, sizes)
	return p.groups, nil
}

type partitioner struct {
	s      *Strategy
	items  []node.Entry
	vecs   []model.Vector
	groups []tree.Group
}

func (p *partitioner) bisect(idx []int, sizes []int) {
	if len(sizes) == 1 {
		p.emit(idx)
		return
	}

	a := p.farthest(idx[0], idx)
	b := p.farthest(a, idx)

	key := make(map[int]float64, len(idx))
	for _, x := range idx {
		key[x] = p.s.dist.Distance(p.vecs[x], p.vecs[a]) - p.s.dist.Distance(p.vecs[x], p.vecs[b])
	}
	slices.SortStableFunc(idx, func(x, y int) int { return cmp.Compare(key[x], key[y]) })

	half := len(sizes) / 2
	cut := 0
	for _, n := range sizes[:half] {
		cut += n
	}
	p.bisect(idx[:cut], sizes[:half])
	p.bisect(idx[cut:], sizes[half:])
}

// farthest returns the member of idx farthest from from.
func (p *partitioner) farthest(from int, idx []int) int {
	best, bestD := idx[0], -1.0
	for _, x := range idx {
		if d := p.s.dist.Distance(p.vecs[from], p.vecs[x]); d > bestD {
			best, bestD = x, d
		}
	}
	return best
}

func (p *partitioner) emit(idx []int) {
	entries := make([]node.Entry, len(idx))
	vecs := make([]model.Vector, len(idx))
	for i, x := range idx {
		entries[i] = p.items[x]
		vecs[i] = p.vecs[x]
	}

	c := p.s.center(entries, vecs)
	p.groups = append(p.groups, tree.Group{
		Entries: entries,
		Pivot:   tree.Pivot{Object: entries[c].Object, Vector: vecs[c]},
	})
}
