package simidx

import (
	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/mtree"
	"github.com/hupe1980/simidx/internal/rstar"
	"github.com/hupe1980/simidx/pagestore"
	"github.com/hupe1980/simidx/resource"
)

// Promotion selects the routing objects of an M-tree node split.
type Promotion = mtree.Promotion

// Promotion policies.
const (
	PromoteMMRad    = mtree.MMRad
	PromoteMLBDist  = mtree.MLBDist
	PromoteFarthest = mtree.FarthestPoints
	PromoteRandom   = mtree.Random
)

// Distribution assigns the entries of an M-tree split to the routing objects.
type Distribution = mtree.Distribution

// Distribution policies.
const (
	DistributeBalanced   = mtree.Balanced
	DistributeHyperplane = mtree.Hyperplane
)

// BulkMethod selects how an R*-tree groups objects during BulkLoad.
type BulkMethod = rstar.BulkMethod

// Bulk load partitioners.
const (
	BulkSTR          = rstar.STR
	BulkMaxExtension = rstar.MaxExtension
	BulkOneDim       = rstar.OneDim
)

// settings is the state shared by both builders and the YAML config.
type settings struct {
	kind      Kind
	dimension int
	distance  distance.Func
	capacity  int
	minFill   int
	mtree     mtree.Options
	rstar     rstar.Options
	store     pagestore.Store
	options   options
}

// =============================================================================
// M-tree Builder (Immutable)
// =============================================================================

// MTree creates a new M-tree builder with the specified dimension.
// The M-tree indexes objects of any metric space; the default distance is Euclidean.
//
// The builder is immutable - each method returns a new builder with the updated configuration.
//
// Example:
//
//	idx, err := simidx.MTree[string](64).
//	    Manhattan().
//	    Capacity(48).
//	    Split(simidx.PromoteMMRad, simidx.DistributeBalanced).
//	    Build()
func MTree[T any](dimension int) MTreeBuilder[T] {
	return MTreeBuilder[T]{s: settings{
		kind:      KindMTree,
		dimension: dimension,
		distance:  distance.Euclidean,
		mtree:     mtree.DefaultOptions(),
	}}
}

// MTreeBuilder is an immutable fluent builder for M-tree indexes.
type MTreeBuilder[T any] struct {
	s settings
}

// Euclidean sets the distance function to the L2 distance.
func (b MTreeBuilder[T]) Euclidean() MTreeBuilder[T] {
	b.s.distance = distance.Euclidean
	return b
}

// Manhattan sets the distance function to the L1 distance.
func (b MTreeBuilder[T]) Manhattan() MTreeBuilder[T] {
	b.s.distance = distance.Manhattan
	return b
}

// Chebyshev sets the distance function to the L-infinity distance.
func (b MTreeBuilder[T]) Chebyshev() MTreeBuilder[T] {
	b.s.distance = distance.Chebyshev
	return b
}

// Angular sets the distance function to the angle between vectors.
func (b MTreeBuilder[T]) Angular() MTreeBuilder[T] {
	b.s.distance = distance.Angular
	return b
}

// Distance sets a custom distance function.
// Pruning is only exact when f satisfies the triangle inequality.
func (b MTreeBuilder[T]) Distance(f distance.Func) MTreeBuilder[T] {
	b.s.distance = f
	return b
}

// Capacity sets the maximum number of entries per node.
// Default: 32. Must be at least 3.
func (b MTreeBuilder[T]) Capacity(c int) MTreeBuilder[T] {
	b.s.capacity = c
	return b
}

// MinFill sets the minimum number of entries of a non-root node.
// Default: Capacity/2.
func (b MTreeBuilder[T]) MinFill(m int) MTreeBuilder[T] {
	b.s.minFill = m
	return b
}

// Split sets the promotion and distribution policies of node splits.
// Default: PromoteMMRad with DistributeBalanced.
func (b MTreeBuilder[T]) Split(p Promotion, d Distribution) MTreeBuilder[T] {
	b.s.mtree.Promotion = p
	b.s.mtree.Distribution = d
	return b
}

// Seed seeds the PromoteRandom policy.
func (b MTreeBuilder[T]) Seed(seed uint64) MTreeBuilder[T] {
	b.s.mtree.Seed = seed
	return b
}

// PageStore sets the store holding the tree nodes. The store must be empty.
// Default: an in-memory arena.
func (b MTreeBuilder[T]) PageStore(ps pagestore.Store) MTreeBuilder[T] {
	b.s.store = ps
	return b
}

// Logger sets the structured logger for operation tracing.
func (b MTreeBuilder[T]) Logger(l *Logger) MTreeBuilder[T] {
	b.s.options.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b MTreeBuilder[T]) Metrics(mc MetricsCollector) MTreeBuilder[T] {
	b.s.options.metricsCollector = mc
	return b
}

// Resources sets the controller bounding BatchKNN concurrency.
func (b MTreeBuilder[T]) Resources(rc *resource.Controller) MTreeBuilder[T] {
	b.s.options.resources = rc
	return b
}

// Build creates the M-tree index.
func (b MTreeBuilder[T]) Build(optFns ...Option) (*Index[T], error) {
	return newIndex[T](b.s, optFns)
}

// MustBuild creates the M-tree index, panicking on error.
func (b MTreeBuilder[T]) MustBuild(optFns ...Option) *Index[T] {
	idx, err := b.Build(optFns...)
	if err != nil {
		panic(err)
	}
	return idx
}

// =============================================================================
// R*-tree Builder (Immutable)
// =============================================================================

// RStarTree creates a new R*-tree builder with the specified dimension.
// The R*-tree indexes points of a vector space under an Lp-style distance;
// the default distance is Euclidean.
//
// Example:
//
//	idx, err := simidx.RStarTree[string](2).
//	    Capacity(64).
//	    Bulk(simidx.BulkSTR).
//	    Build()
func RStarTree[T any](dimension int) RStarBuilder[T] {
	return RStarBuilder[T]{s: settings{
		kind:      KindRStar,
		dimension: dimension,
		distance:  distance.Euclidean,
		rstar:     rstar.Options{Bulk: rstar.STR},
	}}
}

// RStarBuilder is an immutable fluent builder for R*-tree indexes.
type RStarBuilder[T any] struct {
	s settings
}

// Euclidean sets the distance function to the L2 distance.
func (b RStarBuilder[T]) Euclidean() RStarBuilder[T] {
	b.s.distance = distance.Euclidean
	return b
}

// Manhattan sets the distance function to the L1 distance.
func (b RStarBuilder[T]) Manhattan() RStarBuilder[T] {
	b.s.distance = distance.Manhattan
	return b
}

// Chebyshev sets the distance function to the L-infinity distance.
func (b RStarBuilder[T]) Chebyshev() RStarBuilder[T] {
	b.s.distance = distance.Chebyshev
	return b
}

// SquaredEuclidean sets the distance function to the squared L2 distance.
func (b RStarBuilder[T]) SquaredEuclidean() RStarBuilder[T] {
	b.s.distance = distance.SquaredEuclidean
	return b
}

// Distance sets a custom distance function. It must implement distance.Spatial,
// otherwise Build fails with ErrInvalidDistance.
func (b RStarBuilder[T]) Distance(f distance.Func) RStarBuilder[T] {
	b.s.distance = f
	return b
}

// Capacity sets the maximum number of entries per node.
// Default: 32. Must be at least 3.
func (b RStarBuilder[T]) Capacity(c int) RStarBuilder[T] {
	b.s.capacity = c
	return b
}

// MinFill sets the minimum number of entries of a non-root node.
// Default: Capacity/2.
func (b RStarBuilder[T]) MinFill(m int) RStarBuilder[T] {
	b.s.minFill = m
	return b
}

// Bulk sets the partitioner used by BulkLoad.
// Default: BulkSTR.
func (b RStarBuilder[T]) Bulk(m BulkMethod) RStarBuilder[T] {
	b.s.rstar.Bulk = m
	return b
}

// PageStore sets the store holding the tree nodes. The store must be empty.
// Default: an in-memory arena.
func (b RStarBuilder[T]) PageStore(ps pagestore.Store) RStarBuilder[T] {
	b.s.store = ps
	return b
}

// Logger sets the structured logger for operation tracing.
func (b RStarBuilder[T]) Logger(l *Logger) RStarBuilder[T] {
	b.s.options.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b RStarBuilder[T]) Metrics(mc MetricsCollector) RStarBuilder[T] {
	b.s.options.metricsCollector = mc
	return b
}

// Resources sets the controller bounding BatchKNN concurrency.
func (b RStarBuilder[T]) Resources(rc *resource.Controller) RStarBuilder[T] {
	b.s.options.resources = rc
	return b
}

// Build creates the R*-tree index.
func (b RStarBuilder[T]) Build(optFns ...Option) (*Index[T], error) {
	return newIndex[T](b.s, optFns)
}

// MustBuild creates the R*-tree index, panicking on error.
func (b RStarBuilder[T]) MustBuild(optFns ...Option) *Index[T] {
	idx, err := b.Build(optFns...)
	if err != nil {
		panic(err)
	}
	return idx
}
