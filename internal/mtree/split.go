package mtree

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

// splitState holds the pairwise distances of the entries being split.
type splitState struct {
	entries []node.Entry
	vecs    []model.Vector
	dist    [][]float64
}

func (s *Strategy) newSplitState(entries []node.Entry) (*splitState, error) {
	vecs, err := s.vectors(entries)
	if err != nil {
		return nil, err
	}

	n := len(entries)
	flat := make([]float64, n*n)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = flat[i*n : (i+1)*n]
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := s.dist.Distance(vecs[i], vecs[j])
			dist[i][j], dist[j][i] = d, d
		}
	}
	return &splitState{entries: entries, vecs: vecs, dist: dist}, nil
}

// radius returns the covering radius of members around pivot.
func (st *splitState) radius(pivot int, members []int) float64 {
	r := 0.0
	for _, m := range members {
		r = max(r, st.dist[pivot][m]+st.entries[m].Radius)
	}
	return r
}

func (st *splitState) group(pivot int, members []int) tree.Group {
	g := tree.Group{
		Entries: make([]node.Entry, len(members)),
		Pivot:   tree.Pivot{Object: st.entries[pivot].Object, Vector: st.vecs[pivot]},
	}
	for i, m := range members {
		g.Entries[i] = st.entries[m]
	}
	return g
}

// farthest returns the entry farthest from a, never a itself.
func (st *splitState) farthest(a int) int {
	best, bestD := -1, -1.0
	for x := range st.entries {
		if x != a && st.dist[a][x] > bestD {
			best, bestD = x, st.dist[a][x]
		}
	}
	return best
}

// Split promotes two routing objects and distributes the entries among them.
func (s *Strategy) Split(entries []node.Entry, minFill int) (tree.Group, tree.Group, error) {
	if len(entries) < 2 || 2*minFill > len(entries) {
		return tree.Group{}, tree.Group{}, fmt.Errorf("%w: cannot split %d entries with minimum fill %d", tree.ErrInternal, len(entries), minFill)
	}

	st, err := s.newSplitState(entries)
	if err != nil {
		return tree.Group{}, tree.Group{}, err
	}

	var p1, p2 int
	var a, b []int
	switch s.opts.Promotion {
	case MMRad:
		p1, p2, a, b = s.promoteMMRad(st, minFill)
	case MLBDist:
		p1, p2 = s.promoteMLBDist(st)
		a, b = s.distribute(st, p1, p2, minFill)
	case FarthestPoints:
		p1 = st.farthest(0)
		p2 = st.farthest(p1)
		a, b = s.distribute(st, p1, p2, minFill)
	case Random:
		p1 = s.rng.IntN(len(entries))
		p2 = s.rng.IntN(len(entries) - 1)
		if p2 >= p1 {
			p2++
		}
		a, b = s.distribute(st, p1, p2, minFill)
	default:
		return tree.Group{}, tree.Group{}, fmt.Errorf("mtree: unknown promotion %s", s.opts.Promotion)
	}

	return st.group(p1, a), st.group(p2, b), nil
}

// promoteMMRad evaluates every pair of routing objects.
func (s *Strategy) promoteMMRad(st *splitState, minFill int) (int, int, []int, []int) {
	var p1, p2 int
	var a, b []int
	bestMax, bestSum := math.Inf(1), math.Inf(1)

	for i := range st.entries {
		for j := i + 1; j < len(st.entries); j++ {
			ga, gb := s.distribute(st, i, j, minFill)
			ra, rb := st.radius(i, ga), st.radius(j, gb)
			if m, sum := max(ra, rb), ra+rb; m < bestMax || (m == bestMax && sum < bestSum) {
				bestMax, bestSum = m, sum
				p1, p2, a, b = i, j, ga, gb
			}
		}
	}
	return p1, p2, a, b
}

// promoteMLBDist pairs the entry nearest to the old routing object with the
// farthest one. Without usable parent distances it falls back to the
// farthest pair.
func (s *Strategy) promoteMLBDist(st *splitState) (int, int) {
	lo, hi := 0, 0
	for i := range st.entries {
		pd := st.entries[i].ParentDistance
		if pd < st.entries[lo].ParentDistance {
			lo = i
		}
		if pd > st.entries[hi].ParentDistance {
			hi = i
		}
	}
	if lo == hi || st.entries[lo].ParentDistance == st.entries[hi].ParentDistance {
		lo = st.farthest(0)
		hi = st.farthest(lo)
	}
	return lo, hi
}

func (s *Strategy) distribute(st *splitState, p1, p2, minFill int) ([]int, []int) {
	if s.opts.Distribution == Hyperplane {
		return st.hyperplane(p1, p2, minFill)
	}
	return st.balanced(p1, p2)
}

// balanced lets both pivots alternately take their nearest unassigned entry.
func (st *splitState) balanced(p1, p2 int) ([]int, []int) {
	n := len(st.entries)
	byP1 := make([]int, 0, n-2)
	for x := range n {
		if x != p1 && x != p2 {
			byP1 = append(byP1, x)
		}
	}
	byP2 := slices.Clone(byP1)
	slices.SortStableFunc(byP1, func(x, y int) int { return cmp.Compare(st.dist[p1][x], st.dist[p1][y]) })
	slices.SortStableFunc(byP2, func(x, y int) int { return cmp.Compare(st.dist[p2][x], st.dist[p2][y]) })

	assigned := make([]bool, n)
	a := append(make([]int, 0, n/2+1), p1)
	b := append(make([]int, 0, n/2+1), p2)
	i, j := 0, 0
	for turn := 0; turn < n-2; turn++ {
		if turn%2 == 0 {
			for assigned[byP1[i]] {
				i++
			}
			assigned[byP1[i]] = true
			a = append(a, byP1[i])
		} else {
			for assigned[byP2[j]] {
				j++
			}
			assigned[byP2[j]] = true
			b = append(b, byP2[j])
		}
	}
	return a, b
}

// hyperplane assigns every entry to its nearer pivot and then moves the
// entries closest to the other side until both groups reach minFill.
func (st *splitState) hyperplane(p1, p2, minFill int) ([]int, []int) {
	a, b := []int{p1}, []int{p2}
	for x := range st.entries {
		if x == p1 || x == p2 {
			continue
		}
		d1, d2 := st.dist[p1][x], st.dist[p2][x]
		if d1 < d2 || (d1 == d2 && len(a) <= len(b)) {
			a = append(a, x)
		} else {
			b = append(b, x)
		}
	}

	a, b = st.rebalance(a, b, p1, p2, minFill)
	b, a = st.rebalance(b, a, p2, p1, minFill)
	return a, b
}

// rebalance moves entries from donor to short until short holds minFill.
// The donor's pivot never moves.
func (st *splitState) rebalance(short, donor []int, pShort, pDonor, minFill int) ([]int, []int) {
	if len(short) >= minFill {
		return short, donor
	}

	movable := make([]int, 0, len(donor))
	for _, x := range donor {
		if x != pDonor {
			movable = append(movable, x)
		}
	}
	slices.SortStableFunc(movable, func(x, y int) int {
		return cmp.Compare(st.dist[pShort][x]-st.dist[pDonor][x], st.dist[pShort][y]-st.dist[pDonor][y])
	})

	need := minFill - len(short)
	moved := make(map[int]bool, need)
	for _, x := range movable[:need] {
		short = append(short, x)
		moved[x] = true
	}

	kept := donor[:0:0]
	for _, x := range donor {
		if !moved[x] {
			kept = append(kept, x)
		}
	}
	return short, kept
}
