package simidx

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/mtree"
	"github.com/hupe1980/simidx/internal/registry"
	"github.com/hupe1980/simidx/internal/rstar"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/objstore"
	"github.com/hupe1980/simidx/pagestore"
	"github.com/hupe1980/simidx/resource"
)

// ObjectID is the handle of an indexed object.
type ObjectID = model.ObjectID

// Vector is the feature vector of an object.
type Vector = model.Vector

// Neighbor is a (distance, id) pair produced by a query.
type Neighbor = model.Neighbor

// SearchStats counts the work done by one query.
type SearchStats = tree.SearchStats

// Kind names a tree family.
type Kind string

// Supported tree families.
const (
	KindMTree Kind = Kind(tree.KindMTree)
	KindRStar Kind = Kind(tree.KindRStar)
)

// Object is a vector together with its payload.
type Object[T any] struct {
	Vector Vector
	Data   T
}

// SearchResult is a neighbor enriched with the payload of the object.
type SearchResult[T any] struct {
	Neighbor

	// Data is the payload stored with the object.
	Data T
}

// FilterFunc restricts the objects a query may return.
type FilterFunc func(id ObjectID) bool

// KNNOptions contains options for KNN queries.
type KNNOptions struct {
	// Filter excludes objects for which it returns false.
	Filter FilterFunc

	// WithTies includes every object at exactly the k-th distance, so more
	// than k results may be returned. Without it, which of several tied
	// objects is returned is unspecified.
	WithTies bool
}

// RootInfo summarizes the root node and the aggregate covering the whole index.
type RootInfo struct {
	Page  uint64
	Level int
	Leaf  bool
	Len   int
	// Routing and Radius describe the covering ball of an M-tree.
	Routing Vector
	Radius  float64
	// Box is the bounding rectangle of an R*-tree.
	Box distance.Rect
}

// Stats describes the shape of an index.
type Stats struct {
	Kind          Kind
	Height        int
	Size          int
	Nodes         int
	Leaves        int
	Pages         int
	NodesPerLevel []int // index 0 holds the leaves
	AvgFill       float64
	// PendingIDs counts deleted ids that become reusable after Compact.
	PendingIDs int
}

// Index is a paged similarity index over objects with payloads of type T.
//
// Mutations are serialized by an internal lock; queries share a read lock
// and may run concurrently with each other.
type Index[T any] struct {
	mu sync.RWMutex

	id        string
	kind      Kind
	dimension int
	tree      *tree.Tree
	store     pagestore.Store
	objects   *objstore.Memory[T]
	registry  *registry.Registry
	resources *resource.Controller
	metrics   MetricsCollector
	logger    *Logger
	closed    bool
}

func newIndex[T any](s settings, optFns []Option) (*Index[T], error) {
	o := applyOptions(s.options, optFns)

	if s.distance == nil {
		return nil, fmt.Errorf("%w: no distance function", ErrInvalidDistance)
	}

	objects := objstore.NewMemory[T]()

	var strategy tree.Strategy
	switch s.kind {
	case KindMTree:
		strategy = mtree.New(s.distance, objects, s.mtree)
	case KindRStar:
		st, err := rstar.New(s.distance, objects, s.rstar)
		if err != nil {
			return nil, translateError(err)
		}
		strategy = st
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, s.kind)
	}

	store := s.store
	if store == nil {
		store = pagestore.NewMemory()
	}

	t, err := tree.New(strategy, store, tree.Config{
		Dimension: s.dimension,
		Capacity:  s.capacity,
		MinFill:   s.minFill,
	})
	if err != nil {
		return nil, translateError(err)
	}

	id := uuid.NewString()
	idx := &Index[T]{
		id:        id,
		kind:      s.kind,
		dimension: s.dimension,
		tree:      t,
		store:     store,
		objects:   objects,
		registry:  registry.New(),
		resources: o.resources,
		metrics:   o.metricsCollector,
		logger:    o.logger.WithIndex(id, s.kind),
	}
	cfg := t.Config()
	idx.logger.Debug("index created",
		"distance", s.distance.Name(),
		"dimension", cfg.Dimension,
		"capacity", cfg.Capacity,
		"min_fill", cfg.MinFill,
	)
	return idx, nil
}

// ID returns the instance id used to tag log records.
func (idx *Index[T]) ID() string { return idx.id }

// Kind returns the tree family.
func (idx *Index[T]) Kind() Kind { return idx.kind }

// Dimension returns the length of every indexed vector.
func (idx *Index[T]) Dimension() int { return idx.dimension }

// Distance returns the distance function.
func (idx *Index[T]) Distance() distance.Func { return idx.tree.Strategy().Distance() }

func (idx *Index[T]) checkDim(v Vector) error {
	if len(v) != idx.dimension {
		return &ErrDimensionMismatch{Expected: idx.dimension, Actual: len(v)}
	}
	return nil
}

// Insert adds an object and returns its id.
//
// A failed insert releases the id and the payload. When the page store fails
// while a split is written, pages of the tree may already have changed; run
// Check before trusting the index again.
func (idx *Index[T]) Insert(ctx context.Context, obj Object[T]) (ObjectID, error) {
	start := time.Now()
	id, err := idx.insert(ctx, obj)
	idx.metrics.RecordInsert(time.Since(start), err)
	idx.logger.LogInsert(ctx, id, len(obj.Vector), err)
	return id, err
}

func (idx *Index[T]) insert(ctx context.Context, obj Object[T]) (ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return model.InvalidObjectID, err
	}
	if err := idx.checkDim(obj.Vector); err != nil {
		return model.InvalidObjectID, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return model.InvalidObjectID, ErrClosed
	}

	id := idx.registry.Allocate()
	idx.objects.Put(id, obj.Vector, obj.Data)
	if err := idx.tree.Insert(id, obj.Vector); err != nil {
		idx.objects.Delete(id)
		_ = idx.registry.Release(id)
		return model.InvalidObjectID, translateError(err)
	}
	return id, nil
}

// BulkLoad builds the index from objs in one pass. The index must be empty.
// The returned ids are in the order of objs. On failure the pages written so
// far are freed and the index stays empty.
func (idx *Index[T]) BulkLoad(ctx context.Context, objs []Object[T]) ([]ObjectID, error) {
	start := time.Now()
	ids, err := idx.bulkLoad(ctx, objs)
	idx.metrics.RecordBulkLoad(len(objs), time.Since(start), err)
	idx.logger.LogBulkLoad(ctx, len(objs), idx.Height(), err)
	return ids, err
}

func (idx *Index[T]) bulkLoad(ctx context.Context, objs []Object[T]) ([]ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, obj := range objs {
		if err := idx.checkDim(obj.Vector); err != nil {
			return nil, err
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil, ErrClosed
	}
	if idx.tree.Len() > 0 {
		return nil, fmt.Errorf("%w: holds %d objects", ErrNotEmpty, idx.tree.Len())
	}

	ids := idx.registry.AllocateN(len(objs))
	items := make([]tree.Item, len(objs))
	for i, obj := range objs {
		idx.objects.Put(ids[i], obj.Vector, obj.Data)
		items[i] = tree.Item{ID: ids[i], Vector: obj.Vector}
	}

	if err := idx.tree.BulkLoad(items); err != nil {
		for _, id := range ids {
			idx.objects.Delete(id)
			_ = idx.registry.Release(id)
		}
		return nil, translateError(err)
	}
	return ids, nil
}

// Delete removes an object. Its id stays invalid until Compact makes it
// eligible for reuse.
func (idx *Index[T]) Delete(ctx context.Context, id ObjectID) error {
	start := time.Now()
	err := idx.delete(ctx, id)
	idx.metrics.RecordDelete(time.Since(start), err)
	idx.logger.LogDelete(ctx, id, err)
	return err
}

func (idx *Index[T]) delete(ctx context.Context, id ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	if !idx.registry.Live(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	v, err := idx.objects.Vector(id)
	if err != nil {
		return translateError(err)
	}
	if err := idx.tree.Delete(id, v); err != nil {
		return translateError(err)
	}
	idx.objects.Delete(id)
	return translateError(idx.registry.Release(id))
}

// Get returns the payload of an object.
func (idx *Index[T]) Get(id ObjectID) (T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var zero T
	if idx.closed {
		return zero, ErrClosed
	}
	data, ok := idx.objects.Data(id)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, nil
}

// Vector returns a copy of the vector of an object.
func (idx *Index[T]) Vector(id ObjectID) (Vector, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	v, err := idx.objects.Vector(id)
	if err != nil {
		return nil, translateError(err)
	}
	return v.Clone(), nil
}

// KNN returns the k nearest objects to q, sorted by distance and then id.
func (idx *Index[T]) KNN(ctx context.Context, q Vector, k int, optFns ...func(o *KNNOptions)) ([]SearchResult[T], error) {
	var opts KNNOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.knn(ctx, q, k, opts)
}

// knn runs one query under the read lock held by the caller.
func (idx *Index[T]) knn(ctx context.Context, q Vector, k int, opts KNNOptions) ([]SearchResult[T], error) {
	start := time.Now()
	var (
		res   model.NeighborList
		stats SearchStats
		err   error
	)
	switch {
	case idx.closed:
		err = ErrClosed
	case ctx.Err() != nil:
		err = ctx.Err()
	case k < 1:
		err = fmt.Errorf("%w: got %d", ErrInvalidK, k)
	default:
		if err = idx.checkDim(q); err != nil {
			break
		}
		filter := idx.filter(opts.Filter)
		if opts.WithTies {
			res, stats, err = idx.tree.KNNWithTiesStats(q, k, filter)
		} else {
			res, stats, err = idx.tree.KNNWithStats(q, k, filter)
		}
		err = translateError(err)
	}

	results := idx.enrich(res)
	idx.metrics.RecordSearch(k, stats, time.Since(start), err)
	idx.logger.LogSearch(ctx, k, len(results), stats, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Range returns every object within radius of q, sorted by distance and then id.
func (idx *Index[T]) Range(ctx context.Context, q Vector, radius float64) ([]SearchResult[T], error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.rangeQuery(ctx, q, radius, nil)
}

func (idx *Index[T]) rangeQuery(ctx context.Context, q Vector, radius float64, fn FilterFunc) ([]SearchResult[T], error) {
	start := time.Now()
	var (
		res   model.NeighborList
		stats SearchStats
		err   error
	)
	switch {
	case idx.closed:
		err = ErrClosed
	case ctx.Err() != nil:
		err = ctx.Err()
	default:
		if err = idx.checkDim(q); err != nil {
			break
		}
		res, stats, err = idx.tree.RangeWithStats(q, radius, idx.filter(fn))
		err = translateError(err)
	}

	results := idx.enrich(res)
	idx.metrics.RecordSearch(0, stats, time.Since(start), err)
	idx.logger.LogSearch(ctx, 0, len(results), stats, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (idx *Index[T]) filter(fn FilterFunc) tree.Filter {
	if fn == nil {
		return nil
	}
	return tree.Filter(fn)
}

func (idx *Index[T]) enrich(res model.NeighborList) []SearchResult[T] {
	if len(res) == 0 {
		return nil
	}
	results := make([]SearchResult[T], len(res))
	for i, n := range res {
		results[i].Neighbor = n
		results[i].Data, _ = idx.objects.Data(n.ID)
	}
	return results
}

// BatchKNN answers several KNN queries concurrently. The result at position i
// belongs to queries[i]. The first failing query cancels the rest.
//
// Concurrency is bounded by the resource controller, or by GOMAXPROCS when
// none is configured.
func (idx *Index[T]) BatchKNN(ctx context.Context, queries []Vector, k int, optFns ...func(o *KNNOptions)) ([][]SearchResult[T], error) {
	var opts KNNOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}

	workers := runtime.GOMAXPROCS(0)
	if idx.resources != nil {
		workers = int(idx.resources.Config().MaxQueryWorkers)
	}

	results := make([][]SearchResult[T], len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range queries {
		g.Go(func() error {
			if err := idx.resources.AcquireWorker(gctx); err != nil {
				return err
			}
			defer idx.resources.ReleaseWorker()

			res, err := idx.knn(gctx, q, k, opts)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Height returns the number of levels of the tree.
func (idx *Index[T]) Height() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Height()
}

// Len returns the number of indexed objects.
func (idx *Index[T]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Root summarizes the root node.
func (idx *Index[T]) Root() (RootInfo, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return RootInfo{}, ErrClosed
	}
	re, err := idx.tree.Root()
	if err != nil {
		return RootInfo{}, translateError(err)
	}
	return RootInfo{
		Page:    uint64(re.Page),
		Level:   re.Level,
		Leaf:    re.Leaf,
		Len:     re.Len,
		Routing: re.Entry.Routing,
		Radius:  re.Entry.Radius,
		Box:     re.Entry.Box,
	}, nil
}

// Stats walks the tree and reports its shape.
func (idx *Index[T]) Stats() (Stats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return Stats{}, ErrClosed
	}
	s, err := idx.tree.Stats()
	if err != nil {
		return Stats{}, translateError(err)
	}
	return Stats{
		Kind:          idx.kind,
		Height:        s.Height,
		Size:          s.Size,
		Nodes:         s.Nodes,
		Leaves:        s.Leaves,
		Pages:         s.Pages,
		NodesPerLevel: s.NodesPerLvl,
		AvgFill:       s.AvgFill,
		PendingIDs:    idx.registry.Pending(),
	}, nil
}

// Check verifies the structural invariants of the tree and that the tree,
// the object store and the id registry agree on the indexed objects.
// Violations are reported as *CorruptionError or wrap ErrCorrupt.
func (idx *Index[T]) Check(ctx context.Context) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return ErrClosed
	}

	err := translateError(idx.tree.Check())
	if err == nil {
		err = idx.checkObjects()
	}
	idx.logger.LogCheck(ctx, idx.tree.Len(), idx.tree.Height(), err)
	return err
}

func (idx *Index[T]) checkObjects() error {
	live, stored, indexed := idx.registry.Len(), idx.objects.Len(), idx.tree.Len()
	if live != indexed || stored != indexed {
		return fmt.Errorf("%w: %d live ids, %d stored objects, %d indexed objects", ErrCorrupt, live, stored, indexed)
	}
	for _, id := range idx.registry.Snapshot() {
		if _, ok := idx.objects.Data(id); !ok {
			return fmt.Errorf("%w: live %s has no stored object", ErrCorrupt, id)
		}
	}
	return nil
}

// Compact makes the ids of deleted objects eligible for reuse and returns how
// many were recycled. Handles to deleted objects must not be used afterwards.
func (idx *Index[T]) Compact(ctx context.Context) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return 0, ErrClosed
	}
	n := idx.registry.Compact()
	idx.logger.LogCompact(ctx, n)
	return n, nil
}

// Flush persists the tree header to the page store.
func (idx *Index[T]) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	return translateError(idx.tree.Flush())
}

// Close flushes the tree header and closes the page store.
// Closing a closed index is a no-op.
func (idx *Index[T]) Close() error {
	if idx == nil {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true

	var firstErr error
	if err := idx.tree.Flush(); err != nil {
		firstErr = err
	}
	if err := idx.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return translateError(firstErr)
}
