package model

import (
	"cmp"
	"slices"
)

// NeighborList is a growable list of (distance, id) pairs.
type NeighborList []Neighbor

// Add appends a pair to the list.
func (l *NeighborList) Add(distance float64, id ObjectID) {
	*l = append(*l, Neighbor{Distance: distance, ID: id})
}

// Len returns the number of pairs.
func (l NeighborList) Len() int { return len(l) }

// Sort orders the list by ascending distance. Equal distances are ordered
// by ascending id so that output order is reproducible.
func (l NeighborList) Sort() {
	slices.SortStableFunc(l, compareNeighbors)
}

func compareNeighbors(a, b Neighbor) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// IsSorted reports whether the list is in Sort order.
func (l NeighborList) IsSorted() bool {
	return slices.IsSortedFunc(l, compareNeighbors)
}

// IDs returns the ids in list order.
func (l NeighborList) IDs() []ObjectID {
	ids := make([]ObjectID, len(l))
	for i, n := range l {
		ids[i] = n.ID
	}
	return ids
}

// KDistance returns the distance of the k-th pair (1-based) of a sorted list.
// It reports false if the list holds fewer than k pairs.
func (l NeighborList) KDistance(k int) (float64, bool) {
	if k < 1 || k > len(l) {
		return 0, false
	}
	return l[k-1].Distance, true
}

// TruncateTies keeps the first k pairs of a sorted list plus every further
// pair whose distance equals the k-th distance.
func (l NeighborList) TruncateTies(k int) NeighborList {
	if k >= len(l) {
		return l
	}
	if k < 1 {
		return l[:0]
	}
	kd := l[k-1].Distance
	end := k
	for end < len(l) && l[end].Distance == kd {
		end++
	}
	return l[:end]
}

// Contains reports whether id is part of the list.
func (l NeighborList) Contains(id ObjectID) bool {
	return slices.ContainsFunc(l, func(n Neighbor) bool { return n.ID == id })
}
