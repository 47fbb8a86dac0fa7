package distance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/simidx/model"
)

// Func computes the distance between two objects.
// Implementations must be deterministic and safe for concurrent use.
type Func interface {
	// Name returns the stable name used in configuration and persisted headers.
	Name() string
	// Distance returns the distance between a and b.
	Distance(a, b model.Vector) float64
	// IsMetric reports whether the function satisfies the triangle inequality.
	IsMetric() bool
}

// Spatial is a Func that can lower-bound the distance to a bounding box.
type Spatial interface {
	Func
	// MinDist returns the distance from q to the nearest point of r.
	MinDist(q model.Vector, r Rect) float64
}

// Built-in distance functions.
var (
	Euclidean        Spatial = lpNorm{p: 2, name: "euclidean"}
	Manhattan        Spatial = lpNorm{p: 1, name: "manhattan"}
	Chebyshev        Spatial = lpNorm{p: math.Inf(1), name: "chebyshev"}
	SquaredEuclidean Spatial = squaredEuclidean{}
	Angular          Func    = angular{}
	Cosine           Func    = cosine{}
)

// Minkowski returns the Lp distance for the given p.
// It is a metric for p >= 1.
func Minkowski(p float64) Spatial {
	switch p {
	case 1:
		return Manhattan
	case 2:
		return Euclidean
	}
	if math.IsInf(p, 1) {
		return Chebyshev
	}
	return lpNorm{p: p, name: "minkowski:" + strconv.FormatFloat(p, 'g', -1, 64)}
}

// ByName returns a built-in distance function by its stable name.
func ByName(name string) (Func, error) {
	switch strings.ToLower(name) {
	case "euclidean", "l2", "":
		return Euclidean, nil
	case "manhattan", "l1":
		return Manhattan, nil
	case "chebyshev", "linf":
		return Chebyshev, nil
	case "squared_euclidean", "squaredeuclidean":
		return SquaredEuclidean, nil
	case "angular":
		return Angular, nil
	case "cosine":
		return Cosine, nil
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(name), "minkowski:"); ok {
		p, err := strconv.ParseFloat(rest, 64)
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("distance: invalid minkowski order %q", rest)
		}
		return Minkowski(p), nil
	}
	return nil, fmt.Errorf("distance: unknown function %q", name)
}

type lpNorm struct {
	p    float64
	name string
}

func (f lpNorm) Name() string { return f.name }

func (f lpNorm) IsMetric() bool { return f.p >= 1 }

func (f lpNorm) Distance(a, b model.Vector) float64 {
	return floats.Distance(a, b, f.p)
}

func (f lpNorm) MinDist(q model.Vector, r Rect) float64 {
	gap := make([]float64, len(q))
	for i, x := range q {
		gap[i] = axisGap(x, r.Min[i], r.Max[i])
	}
	return floats.Norm(gap, f.p)
}

type squaredEuclidean struct{}

func (squaredEuclidean) Name() string { return "squared_euclidean" }

func (squaredEuclidean) IsMetric() bool { return false }

func (squaredEuclidean) Distance(a, b model.Vector) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func (squaredEuclidean) MinDist(q model.Vector, r Rect) float64 {
	var sum float64
	for i, x := range q {
		g := axisGap(x, r.Min[i], r.Max[i])
		sum += g * g
	}
	return sum
}

type angular struct{}

func (angular) Name() string { return "angular" }

func (angular) IsMetric() bool { return true }

func (angular) Distance(a, b model.Vector) float64 {
	return math.Acos(cosineSimilarity(a, b)) / math.Pi
}

type cosine struct{}

func (cosine) Name() string { return "cosine" }

func (cosine) IsMetric() bool { return false }

func (cosine) Distance(a, b model.Vector) float64 {
	return 1 - cosineSimilarity(a, b)
}

func cosineSimilarity(a, b model.Vector) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	s := floats.Dot(a, b) / (na * nb)
	// Clamp rounding noise so Acos stays defined.
	return math.Max(-1, math.Min(1, s))
}

// axisGap is the per-axis distance from x to the interval [lo, hi].
func axisGap(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo - x
	case x > hi:
		return x - hi
	default:
		return 0
	}
}
