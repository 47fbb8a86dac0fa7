package simidx

import (
	"context"
	"errors"
	"iter"
)

// Search creates a new fluent search builder for the given query vector.
// Without KNN or Range the builder runs a 10-nearest-neighbor query.
//
// Example:
//
//	results, err := idx.Search(query).
//	    KNN(10).
//	    WithTies().
//	    Execute(ctx)
//
//	// Or with streaming:
//	for result, err := range idx.Search(query).Range(0.5).Stream(ctx) {
//	    if err != nil { break }
//	    process(result)
//	}
func (idx *Index[T]) Search(query Vector) *SearchBuilder[T] {
	return &SearchBuilder[T]{
		idx:   idx,
		query: query,
		k:     10,
	}
}

// SearchBuilder is a fluent builder for constructing queries.
type SearchBuilder[T any] struct {
	idx    *Index[T]
	query  Vector
	k      int
	radius float64
	ranged bool
	ties   bool
	filter FilterFunc
}

// KNN turns the query into a k-nearest-neighbor query.
func (sb *SearchBuilder[T]) KNN(k int) *SearchBuilder[T] {
	sb.k = k
	sb.ranged = false
	return sb
}

// Range turns the query into a range query returning every object within radius.
func (sb *SearchBuilder[T]) Range(radius float64) *SearchBuilder[T] {
	sb.radius = radius
	sb.ranged = true
	return sb
}

// WithTies makes a KNN query include every object at exactly the k-th distance.
func (sb *SearchBuilder[T]) WithTies() *SearchBuilder[T] {
	sb.ties = true
	return sb
}

// Filter sets a filter function for search results.
// Only objects where filter(id) returns true are considered.
func (sb *SearchBuilder[T]) Filter(fn FilterFunc) *SearchBuilder[T] {
	sb.filter = fn
	return sb
}

// Execute runs the query and returns the results, nearest first.
func (sb *SearchBuilder[T]) Execute(ctx context.Context) ([]SearchResult[T], error) {
	if sb.ranged {
		sb.idx.mu.RLock()
		defer sb.idx.mu.RUnlock()
		return sb.idx.rangeQuery(ctx, sb.query, sb.radius, sb.filter)
	}
	return sb.idx.KNN(ctx, sb.query, sb.k, func(o *KNNOptions) {
		o.Filter = sb.filter
		o.WithTies = sb.ties
	})
}

// MustExecute runs the query, panicking on error.
func (sb *SearchBuilder[T]) MustExecute(ctx context.Context) []SearchResult[T] {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// Stream returns an iterator over the results, nearest first.
// Breaking out of the loop stops the iteration.
//
// Example:
//
//	for result, err := range idx.Search(query).KNN(100).Stream(ctx) {
//	    if err != nil { break }
//	    if result.Distance > 100.0 { break }
//	    process(result)
//	}
func (sb *SearchBuilder[T]) Stream(ctx context.Context) iter.Seq2[SearchResult[T], error] {
	return func(yield func(SearchResult[T], error) bool) {
		results, err := sb.Execute(ctx)
		if err != nil {
			yield(SearchResult[T]{}, err)
			return
		}
		for _, r := range results {
			if err := ctx.Err(); err != nil {
				yield(SearchResult[T]{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// First returns only the nearest result, or ErrNotFound if there is none.
func (sb *SearchBuilder[T]) First(ctx context.Context) (SearchResult[T], error) {
	if !sb.ranged {
		sb.k = 1
		sb.ties = false
	}
	results, err := sb.Execute(ctx)
	if err != nil {
		return SearchResult[T]{}, err
	}
	if len(results) == 0 {
		return SearchResult[T]{}, ErrNotFound
	}
	return results[0], nil
}

// Count executes the query and returns the number of results.
func (sb *SearchBuilder[T]) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// Exists reports whether at least one object matches the query.
func (sb *SearchBuilder[T]) Exists(ctx context.Context) (bool, error) {
	_, err := sb.First(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}
