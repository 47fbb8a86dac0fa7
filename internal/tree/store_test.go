package tree_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simidx/blobstore"
	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/mtree"
	"github.com/hupe1980/simidx/internal/rstar"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/objstore"
	"github.com/hupe1980/simidx/pagestore"
	"github.com/hupe1980/simidx/testutil"
)

func TestPageStoreBackends(t *testing.T) {
	rng := testutil.NewRNG(17)
	data := rng.UniformVectors(300, 3)
	queries := rng.UniformVectors(5, 3)

	backends := []struct {
		name string
		open func(t *testing.T) pagestore.Store
	}{
		{"Memory", func(*testing.T) pagestore.Store { return pagestore.NewMemory() }},
		{"Blob", func(t *testing.T) pagestore.Store {
			s, err := pagestore.NewBlob(blobstore.NewMemoryStore())
			require.NoError(t, err)
			return s
		}},
		{"BlobZSTD", func(t *testing.T) pagestore.Store {
			s, err := pagestore.NewBlob(blobstore.NewMemoryStore(), pagestore.WithCompression(pagestore.CompressionZSTD))
			require.NoError(t, err)
			return s
		}},
		{"Badger", func(t *testing.T) pagestore.Store {
			s, err := pagestore.NewBadger("")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{"SQLite", func(t *testing.T) pagestore.Store {
			s, err := pagestore.NewSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{"Cached", func(t *testing.T) pagestore.Store {
			inner, err := pagestore.NewBadger("")
			require.NoError(t, err)
			s, err := pagestore.NewCached(inner, 16)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}

	for _, k := range kinds {
		ref := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 3, Capacity: 8})
		ref.insert(t, data)
		for i := 0; i < 100; i++ {
			require.NoError(t, ref.tree.Delete(model.ObjectID(i), data[i]))
		}

		for _, b := range backends {
			t.Run(k.name+"/"+b.name, func(t *testing.T) {
				f := newFixture(t, k.factory, b.open(t), tree.Config{Dimension: 3, Capacity: 8})
				f.insert(t, data)
				for i := 0; i < 100; i++ {
					require.NoError(t, f.tree.Delete(model.ObjectID(i), data[i]))
				}

				require.NoError(t, f.tree.Check())
				assert.Equal(t, ref.tree.Height(), f.tree.Height())

				for _, q := range queries {
					want, err := ref.tree.KNN(q, 7)
					require.NoError(t, err)
					got, err := f.tree.KNN(q, 7)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				}
			})
		}
	}
}

func TestOpen(t *testing.T) {
	data := testutil.NewRNG(23).UniformVectors(200, 2)

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := pagestore.NewSQLite(filepath.Join(dir, "tree.db"))
			require.NoError(t, err)

			f := newFixture(t, k.factory, store, tree.Config{Dimension: 2, Capacity: 10, MinFill: 3})
			f.insert(t, data)
			want, err := f.tree.KNN(model.Vector{0.5, 0.5}, 5)
			require.NoError(t, err)
			require.NoError(t, store.Close())

			store, err = pagestore.NewSQLite(filepath.Join(dir, "tree.db"))
			require.NoError(t, err)
			defer store.Close()

			_, err = tree.New(k.factory(t, f.objects), store, tree.Config{Dimension: 2})
			assert.ErrorIs(t, err, tree.ErrNotEmpty)

			reopened, err := tree.Open(k.factory(t, f.objects), store, 2)
			require.NoError(t, err)
			assert.Equal(t, f.tree.Len(), reopened.Len())
			assert.Equal(t, f.tree.Height(), reopened.Height())
			assert.Equal(t, f.tree.RootPage(), reopened.RootPage())
			assert.Equal(t, 3, reopened.Config().MinFill)
			require.NoError(t, reopened.Check())

			got, err := reopened.KNN(model.Vector{0.5, 0.5}, 5)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			_, err = tree.Open(mtree.New(distance.Manhattan, f.objects, mtree.DefaultOptions()), store, 2)
			assert.ErrorIs(t, err, tree.ErrDistanceMismatch)

			var dimErr *tree.ErrDimensionMismatch
			_, err = tree.Open(k.factory(t, f.objects), store, 3)
			assert.ErrorAs(t, err, &dimErr)
		})
	}
}

func TestOpenRejectsOtherKind(t *testing.T) {
	store := pagestore.NewMemory()
	f := newFixture(t, metric(mtree.DefaultOptions()), store, tree.Config{Dimension: 2})
	f.insert(t, []model.Vector{{1, 2}})

	s, err := rstar.New(distance.Euclidean, f.objects, rstar.Options{})
	require.NoError(t, err)
	_, err = tree.Open(s, store, 2)
	assert.ErrorIs(t, err, tree.ErrDistanceMismatch)

	_, err = tree.Open(s, pagestore.NewMemory(), 2)
	assert.ErrorIs(t, err, pagestore.ErrNoHeader)
}

func TestSplitPolicies(t *testing.T) {
	rng := testutil.NewRNG(31)
	data := rng.ClusteredVectors(400, 3, 4, 0.2)
	queries := rng.GaussianVectors(5, 3)

	for _, p := range []mtree.Promotion{mtree.MMRad, mtree.MLBDist, mtree.FarthestPoints, mtree.Random} {
		for _, d := range []mtree.Distribution{mtree.Balanced, mtree.Hyperplane} {
			t.Run(p.String()+"/"+d.String(), func(t *testing.T) {
				opts := mtree.Options{Promotion: p, Distribution: d, Seed: 7}
				f := newFixture(t, metric(opts), pagestore.NewMemory(), tree.Config{Dimension: 3, Capacity: 6})
				f.insert(t, data)
				require.NoError(t, f.tree.Check())

				for _, q := range queries {
					got, err := f.tree.KNN(q, 8)
					require.NoError(t, err)
					assert.True(t, testutil.SameDistances(testutil.BruteForceKNN(distance.Euclidean, data, q, 8), got, 0))
				}
			})
		}
	}

	for _, m := range []rstar.BulkMethod{rstar.STR, rstar.MaxExtension, rstar.OneDim} {
		t.Run("Bulk/"+m.String(), func(t *testing.T) {
			f := newFixture(t, spatial(rstar.Options{Bulk: m}), pagestore.NewMemory(), tree.Config{Dimension: 3, Capacity: 12})
			f.bulk(t, data)
			require.NoError(t, f.tree.Check())
			assert.Equal(t, expectedHeight(len(data), 12), f.tree.Height())

			for _, q := range queries {
				got, err := f.tree.KNN(q, 8)
				require.NoError(t, err)
				assert.True(t, testutil.SameDistances(testutil.BruteForceKNN(distance.Euclidean, data, q, 8), got, 0))
			}
		})
	}
}

func TestOtherDistances(t *testing.T) {
	rng := testutil.NewRNG(37)
	data := rng.UniformRangeVectors(300, 4)
	q := rng.UniformRangeVectors(1, 4)[0]

	tests := []struct {
		name    string
		dist    distance.Func
		spatial bool
	}{
		{"Manhattan", distance.Manhattan, true},
		{"Chebyshev", distance.Chebyshev, true},
		{"Minkowski3", distance.Minkowski(3), true},
		{"SquaredEuclidean", distance.SquaredEuclidean, true},
		{"Angular", distance.Angular, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factories := []strategyFactory{}
			if tt.dist.IsMetric() {
				factories = append(factories, func(_ *testing.T, objects objstore.Reader) tree.Strategy {
					return mtree.New(tt.dist, objects, mtree.DefaultOptions())
				})
			}
			if tt.spatial {
				factories = append(factories, func(t *testing.T, objects objstore.Reader) tree.Strategy {
					s, err := rstar.New(tt.dist, objects, rstar.Options{})
					require.NoError(t, err)
					return s
				})
			}
			require.NotEmpty(t, factories)

			want := testutil.BruteForceKNN(tt.dist, data, q, 10)
			for _, factory := range factories {
				f := newFixture(t, factory, pagestore.NewMemory(), tree.Config{Dimension: 4, Capacity: 10})
				f.insert(t, data)
				got, err := f.tree.KNN(q, 10)
				require.NoError(t, err)
				assert.True(t, testutil.SameDistances(want, got, 0), "%s: want %v, got %v", f.tree.Strategy().Kind(), want, got)
			}
		})
	}
}
