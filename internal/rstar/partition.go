package rstar

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// Partition groups bulk load items with the configured bulk method. Items
// are ordered by the centers of their boxes.
func (s *Strategy) Partition(items []node.Entry, sizes []int) ([]tree.Group, error) {
	total := 0
	for _, n := range sizes {
		total += n
	}
	if total != len(items) {
		return nil, fmt.Errorf("%w: group sizes sum to %d for %d items", tree.ErrInternal, total, len(items))
	}
	if len(items) == 0 {
		return nil, nil
	}

	p := &partitioner{
		items:   items,
		centers: make([]model.Vector, len(items)),
		dim:     items[0].Box.Dim(),
	}
	for i := range items {
		p.centers[i] = items[i].Box.Center()
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}

	switch s.opts.Bulk {
	case STR:
		p.tile(idx, sizes, 0)
	case MaxExtension:
		p.bisect(idx, sizes)
	case OneDim:
		p.sortAxis(idx, 0)
		p.chunk(idx, sizes)
	default:
		return nil, fmt.Errorf("rstar: unknown bulk method %s", s.opts.Bulk)
	}
	return p.groups, nil
}

type partitioner struct {
	items   []node.Entry
	centers []model.Vector
	dim     int
	groups  []tree.Group
}

func (p *partitioner) sortAxis(idx []int, axis int) {
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(p.centers[a][axis], p.centers[b][axis])
	})
}

func (p *partitioner) chunk(idx []int, sizes []int) {
	off := 0
	for _, n := range sizes {
		p.emit(idx[off : off+n])
		off += n
	}
}

// tile is Sort-Tile-Recursive: sort on axis, cut into about
// ceil(g^(1/r)) slabs of whole groups where r is the number of remaining
// axes, and tile every slab on the next axis.
func (p *partitioner) tile(idx []int, sizes []int, axis int) {
	p.sortAxis(idx, axis)
	if axis == p.dim-1 || len(sizes) == 1 {
		p.chunk(idx, sizes)
		return
	}

	remaining := float64(p.dim - axis)
	slabs := int(math.Ceil(math.Pow(float64(len(sizes)), 1/remaining)))
	slabs = min(max(slabs, 1), len(sizes))

	q, r := len(sizes)/slabs, len(sizes)%slabs
	off, g := 0, 0
	for i := range slabs {
		count := q
		if i < r {
			count++
		}
		n := 0
		for _, sz := range sizes[g : g+count] {
			n += sz
		}
		p.tile(idx[off:off+n], sizes[g:g+count], axis+1)
		off += n
		g += count
	}
}

// bisect halves the groups along the axis on which the centers of idx
// spread the most.
func (p *partitioner) bisect(idx []int, sizes []int) {
	if len(sizes) == 1 {
		p.emit(idx)
		return
	}

	axis, widest := 0, -1.0
	for a := range p.dim {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, x := range idx {
			lo = min(lo, p.centers[x][a])
			hi = max(hi, p.centers[x][a])
		}
		if hi-lo > widest {
			axis, widest = a, hi-lo
		}
	}
	p.sortAxis(idx, axis)

	half := len(sizes) / 2
	cut := 0
	for _, n := range sizes[:half] {
		cut += n
	}
	p.bisect(idx[:cut], sizes[:half])
	p.bisect(idx[cut:], sizes[half:])
}

func (p *partitioner) emit(idx []int) {
	p.groups = append(p.groups, group(p.items, idx))
}
