package rstar

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/node"
)

// Split implements the R*-tree topological split. The split axis minimizes
// the sum of margins over all admissible distributions of the entries sorted
// by lower and by upper box bound. Along that axis the distribution with the
// least overlap wins, ties broken by the smaller total area.
func (s *Strategy) Split(entries []node.Entry, minFill int) (tree.Group, tree.Group, error) {
	n := len(entries)
	if n < 2 || 2*minFill > n {
		return tree.Group{}, tree.Group{}, fmt.Errorf("%w: cannot split %d entries with minimum fill %d", tree.ErrInternal, n, minFill)
	}
	m := max(minFill, 1)
	dim := entries[0].Box.Dim()

	bestAxis, bestMargin := 0, math.Inf(1)
	for axis := range dim {
		margin := 0.0
		for _, order := range sortedByAxis(entries, axis) {
			prefix, suffix := sweep(entries, order)
			for k := m; k <= n-m; k++ {
				margin += prefix[k-1].Margin() + suffix[k].Margin()
			}
		}
		if margin < bestMargin {
			bestAxis, bestMargin = axis, margin
		}
	}

	var best []int
	bestK := 0
	bestOverlap, bestArea := math.Inf(1), math.Inf(1)
	for _, order := range sortedByAxis(entries, bestAxis) {
		prefix, suffix := sweep(entries, order)
		for k := m; k <= n-m; k++ {
			left, right := prefix[k-1], suffix[k]
			overlap := left.Overlap(right)
			area := left.Area() + right.Area()
			if overlap < bestOverlap || (overlap == bestOverlap && area < bestArea) {
				best, bestK, bestOverlap, bestArea = order, k, overlap, area
			}
		}
	}

	return group(entries, best[:bestK]), group(entries, best[bestK:]), nil
}

// sortedByAxis returns the entry orders by lower and by upper bound on axis.
func sortedByAxis(entries []node.Entry, axis int) [2][]int {
	lower := make([]int, len(entries))
	for i := range lower {
		lower[i] = i
	}
	upper := slices.Clone(lower)

	slices.SortStableFunc(lower, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(entries[a].Box.Min[axis], entries[b].Box.Min[axis]),
			cmp.Compare(entries[a].Box.Max[axis], entries[b].Box.Max[axis]),
		)
	})
	slices.SortStableFunc(upper, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(entries[a].Box.Max[axis], entries[b].Box.Max[axis]),
			cmp.Compare(entries[a].Box.Min[axis], entries[b].Box.Min[axis]),
		)
	})
	return [2][]int{lower, upper}
}

// sweep returns prefix[i], the union of the first i+1 entries of order, and
// suffix[i], the union of the entries from i on.
func sweep(entries []node.Entry, order []int) ([]distance.Rect, []distance.Rect) {
	n := len(order)
	prefix := make([]distance.Rect, n)
	suffix := make([]distance.Rect, n)

	var acc distance.Rect
	for i, x := range order {
		acc = acc.Union(entries[x].Box)
		prefix[i] = acc
	}
	acc = distance.Rect{}
	for i := n - 1; i >= 0; i-- {
		acc = acc.Union(entries[order[i]].Box)
		suffix[i] = acc
	}
	return prefix, suffix
}

func group(entries []node.Entry, idx []int) tree.Group {
	g := tree.Group{Entries: make([]node.Entry, len(idx))}
	for i, x := range idx {
		g.Entries[i] = entries[x]
	}
	return g
}
