package distance

import (
	"fmt"
	"math"

	"github.com/hupe1980/simidx/model"
)

// Rect is an axis-aligned minimum bounding rectangle (MBR).
type Rect struct {
	Min model.Vector
	Max model.Vector
}

// Point returns the degenerate rectangle covering exactly v.
func Point(v model.Vector) Rect {
	return Rect{Min: v.Clone(), Max: v.Clone()}
}

// Dim returns the dimensionality of the rectangle.
func (r Rect) Dim() int { return len(r.Min) }

// IsZero reports whether r is the empty zero value.
func (r Rect) IsZero() bool { return len(r.Min) == 0 }

// Clone returns a deep copy of r.
func (r Rect) Clone() Rect {
	return Rect{Min: r.Min.Clone(), Max: r.Max.Clone()}
}

// Union returns the smallest rectangle covering r and o.
// The zero Rect acts as the identity.
func (r Rect) Union(o Rect) Rect {
	if r.IsZero() {
		return o.Clone()
	}
	if o.IsZero() {
		return r.Clone()
	}
	u := Rect{Min: make(model.Vector, len(r.Min)), Max: make(model.Vector, len(r.Max))}
	for i := range r.Min {
		u.Min[i] = math.Min(r.Min[i], o.Min[i])
		u.Max[i] = math.Max(r.Max[i], o.Max[i])
	}
	return u
}

// Area returns the volume of r.
func (r Rect) Area() float64 {
	a := 1.0
	for i := range r.Min {
		a *= r.Max[i] - r.Min[i]
	}
	return a
}

// Margin returns the sum of the edge lengths of r.
func (r Rect) Margin() float64 {
	var m float64
	for i := range r.Min {
		m += r.Max[i] - r.Min[i]
	}
	return m
}

// Overlap returns the volume of the intersection of r and o.
func (r Rect) Overlap(o Rect) float64 {
	a := 1.0
	for i := range r.Min {
		lo := math.Max(r.Min[i], o.Min[i])
		hi := math.Min(r.Max[i], o.Max[i])
		if hi <= lo {
			return 0
		}
		a *= hi - lo
	}
	return a
}

// Enlargement returns how much r's area grows to also cover o.
func (r Rect) Enlargement(o Rect) float64 {
	return r.Union(o).Area() - r.Area()
}

// Contains reports whether o lies completely inside r.
func (r Rect) Contains(o Rect) bool {
	for i := range r.Min {
		if o.Min[i] < r.Min[i] || o.Max[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether v lies inside r.
func (r Rect) ContainsPoint(v model.Vector) bool {
	for i := range r.Min {
		if v[i] < r.Min[i] || v[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// Center returns the midpoint of r.
func (r Rect) Center() model.Vector {
	c := make(model.Vector, len(r.Min))
	for i := range r.Min {
		c[i] = (r.Min[i] + r.Max[i]) / 2
	}
	return c
}

// Equal reports whether r and o describe the same rectangle.
func (r Rect) Equal(o Rect) bool {
	if len(r.Min) != len(o.Min) {
		return false
	}
	for i := range r.Min {
		if r.Min[i] != o.Min[i] || r.Max[i] != o.Max[i] {
			return false
		}
	}
	return true
}

// String returns a string representation of the Rect.
func (r Rect) String() string {
	return fmt.Sprintf("Rect(%v..%v)", []float64(r.Min), []float64(r.Max))
}
