package model

import (
	"fmt"
	"slices"
)

// ObjectID is a dense, opaque handle for an indexed object.
// It is owned by the identifier registry: created on insert and invalidated on delete.
type ObjectID uint64

// InvalidObjectID is never handed out by the registry.
const InvalidObjectID ObjectID = 0

// String returns a string representation of the ObjectID.
func (id ObjectID) String() string {
	return fmt.Sprintf("Obj(%d)", uint64(id))
}

// Vector is the feature representation of an object.
type Vector []float64

// Dim returns the dimensionality of the vector.
func (v Vector) Dim() int { return len(v) }

// Clone returns a copy of v that does not share the backing array.
func (v Vector) Clone() Vector {
	return slices.Clone(v)
}

// Neighbor is a (distance, id) pair. Values are immutable once produced.
type Neighbor struct {
	Distance float64
	ID       ObjectID
}

// String returns a string representation of the Neighbor.
func (n Neighbor) String() string {
	return fmt.Sprintf("%s@%g", n.ID, n.Distance)
}
