package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/mtree"
	"github.com/hupe1980/simidx/internal/rstar"
	"github.com/hupe1980/simidx/internal/tree"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/objstore"
	"github.com/hupe1980/simidx/pagestore"
	"github.com/hupe1980/simidx/testutil"
)

type strategyFactory func(t *testing.T, objects objstore.Reader) tree.Strategy

func metric(opts mtree.Options) strategyFactory {
	return func(_ *testing.T, objects objstore.Reader) tree.Strategy {
		return mtree.New(distance.Euclidean, objects, opts)
	}
}

func spatial(opts rstar.Options) strategyFactory {
	return func(t *testing.T, objects objstore.Reader) tree.Strategy {
		s, err := rstar.New(distance.Euclidean, objects, opts)
		require.NoError(t, err)
		return s
	}
}

var kinds = []struct {
	name    string
	factory strategyFactory
}{
	{"MTree", metric(mtree.DefaultOptions())},
	{"RStar", spatial(rstar.Options{})},
}

type fixture struct {
	tree    *tree.Tree
	objects *objstore.Memory[struct{}]
	vecs    []model.Vector
}

func newFixture(t *testing.T, factory strategyFactory, store pagestore.Store, cfg tree.Config) *fixture {
	t.Helper()

	objects := objstore.NewMemory[struct{}]()
	tr, err := tree.New(factory(t, objects), store, cfg)
	require.NoError(t, err)
	return &fixture{tree: tr, objects: objects}
}

func (f *fixture) insert(t *testing.T, vecs []model.Vector) {
	t.Helper()
	for _, v := range vecs {
		id := model.ObjectID(len(f.vecs))
		f.objects.Put(id, v, struct{}{})
		f.vecs = append(f.vecs, v)
		require.NoError(t, f.tree.Insert(id, v))
	}
}

func (f *fixture) bulk(t *testing.T, vecs []model.Vector) {
	t.Helper()
	items := make([]tree.Item, len(vecs))
	for i, v := range vecs {
		id := model.ObjectID(len(f.vecs))
		f.objects.Put(id, v, struct{}{})
		f.vecs = append(f.vecs, v)
		items[i] = tree.Item{ID: id, Vector: v}
	}
	require.NoError(t, f.tree.BulkLoad(items))
}

// expectedHeight is the height of a bulk loaded tree with n objects.
func expectedHeight(n, capacity int) int {
	h := 1
	for n > capacity {
		n = len(tree.GroupSizes(n, capacity))
		h++
	}
	return h
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     tree.Config
		wantErr bool
	}{
		{"Defaults", tree.Config{Dimension: 2}, false},
		{"Explicit", tree.Config{Dimension: 2, Capacity: 10, MinFill: 3}, false},
		{"MinimumCapacity", tree.Config{Dimension: 2, Capacity: 3}, false},
		{"NoDimension", tree.Config{}, true},
		{"SmallCapacity", tree.Config{Dimension: 2, Capacity: 2}, true},
		{"MinFillTooLarge", tree.Config{Dimension: 2, Capacity: 10, MinFill: 6}, true},
		{"NegativeMinFill", tree.Config{Dimension: 2, Capacity: 10, MinFill: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, tree.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmptyTree(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2})

			assert.Equal(t, 1, f.tree.Height())
			assert.Equal(t, 0, f.tree.Len())
			assert.Equal(t, tree.DefaultCapacity, f.tree.Config().Capacity)
			assert.Equal(t, tree.DefaultCapacity/2, f.tree.Config().MinFill)

			res, err := f.tree.KNN(model.Vector{0, 0}, 3)
			require.NoError(t, err)
			assert.Empty(t, res)

			res, err = f.tree.Range(model.Vector{0, 0}, 10)
			require.NoError(t, err)
			assert.Empty(t, res)

			root, err := f.tree.Root()
			require.NoError(t, err)
			assert.True(t, root.Leaf)
			assert.Equal(t, 0, root.Len)

			require.NoError(t, f.tree.Check())
		})
	}
}

func TestKNNMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(4711)
	data := rng.UniformVectors(1000, 2)
	queries := rng.UniformVectors(20, 2)

	for _, k := range kinds {
		for _, mode := range []string{"Insert", "BulkLoad"} {
			t.Run(k.name+"/"+mode, func(t *testing.T) {
				f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 20})
				if mode == "Insert" {
					f.insert(t, data)
				} else {
					f.bulk(t, data)
				}

				require.NoError(t, f.tree.Check())
				assert.Equal(t, len(data), f.tree.Len())
				assert.Greater(t, f.tree.Height(), 1)

				for _, q := range queries {
					for _, kk := range []int{1, 5, 20} {
						got, err := f.tree.KNN(q, kk)
						require.NoError(t, err)
						want := testutil.BruteForceKNN(distance.Euclidean, data, q, kk)
						assert.True(t, got.IsSorted())
						assert.True(t, testutil.SameDistances(want, got, 0), "k=%d: want %v, got %v", kk, want, got)
					}
				}
			})
		}
	}
}

func TestCheckAfterEveryInsert(t *testing.T) {
	rng := testutil.NewRNG(97)
	data := rng.UniformVectors(600, 2)

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 4})
			for i, v := range data {
				f.insert(t, []model.Vector{v})
				require.NoError(t, f.tree.Check(), "after insert %d", i)
			}
			assert.Greater(t, f.tree.Height(), 3)

			// Deletes reinsert orphans at directory levels.
			for i := 0; i < len(data); i += 3 {
				require.NoError(t, f.tree.Delete(model.ObjectID(i), data[i]))
				require.NoError(t, f.tree.Check(), "after delete %d", i)
			}
		})
	}
}

func TestRangeMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(42)
	data := rng.UniformVectors(1000, 2)
	q := model.Vector{0.5, 0.5}
	radius := testutil.QuantileDistance(distance.Euclidean, data, q, 0.5)
	want := testutil.BruteForceRange(distance.Euclidean, data, q, radius)

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			inc := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 20})
			inc.insert(t, data)
			bulk := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 20})
			bulk.bulk(t, data)

			got1, err := inc.tree.Range(q, radius)
			require.NoError(t, err)
			got2, err := bulk.tree.Range(q, radius)
			require.NoError(t, err)

			assert.Equal(t, want.IDs(), got1.IDs())
			assert.Equal(t, got1, got2)

			none, err := inc.tree.Range(model.Vector{10, 10}, 1)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestDelete(t *testing.T) {
	rng := testutil.NewRNG(7)
	data := rng.UniformVectors(1000, 2)
	queries := rng.UniformVectors(10, 2)

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 20})
			f.insert(t, data)

			var survivors []model.Vector
			for i, v := range data {
				if i%2 == 0 {
					require.NoError(t, f.tree.Delete(model.ObjectID(i), v))
				} else {
					survivors = append(survivors, v)
				}
			}

			require.NoError(t, f.tree.Check())
			assert.Equal(t, 500, f.tree.Len())

			for _, q := range queries {
				got, err := f.tree.KNN(q, 10)
				require.NoError(t, err)
				want := testutil.BruteForceKNN(distance.Euclidean, survivors, q, 10)
				assert.True(t, testutil.SameDistances(want, got, 0))
				for _, n := range got {
					assert.Equal(t, uint64(1), uint64(n.ID)%2, "deleted %s returned", n.ID)
				}
			}

			assert.ErrorIs(t, f.tree.Delete(0, data[0]), tree.ErrNotFound)
			assert.ErrorIs(t, f.tree.Delete(5000, data[1]), tree.ErrNotFound)

			for i := 1; i < len(data); i += 2 {
				require.NoError(t, f.tree.Delete(model.ObjectID(i), data[i]))
			}
			require.NoError(t, f.tree.Check())
			assert.Equal(t, 0, f.tree.Len())
			assert.Equal(t, 1, f.tree.Height())
		})
	}
}

func TestDeleteFromBulkLoad(t *testing.T) {
	data := testutil.NewRNG(99).UniformVectors(300, 3)

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 3, Capacity: 8})
			f.bulk(t, data)

			for i := 0; i < 200; i++ {
				require.NoError(t, f.tree.Delete(model.ObjectID(i), data[i]))
			}
			require.NoError(t, f.tree.Check())

			got, err := f.tree.KNN(data[250], 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, model.ObjectID(250), got[0].ID)
		})
	}
}

func TestKNNWithTies(t *testing.T) {
	points := []model.Vector{{1, 0}, {0, 1}, {-1, 0}, {3, 3}}
	q := model.Vector{0, 0}

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 3})
			f.insert(t, points)

			res, err := f.tree.KNN(q, 2)
			require.NoError(t, err)
			assert.Len(t, res, 2)

			res, err = f.tree.KNNWithTies(q, 2)
			require.NoError(t, err)
			require.Len(t, res, 3)
			assert.Equal(t, []model.ObjectID{0, 1, 2}, res.IDs())

			res, err = f.tree.KNNWithTies(q, 3)
			require.NoError(t, err)
			assert.Len(t, res, 3)
		})
	}
}

func TestKNNWithTiesOnGrid(t *testing.T) {
	rng := testutil.NewRNG(3)
	data := rng.GridVectors(400, 2, 5)
	q := model.Vector{2, 2}

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 10})
			f.insert(t, data)

			res, err := f.tree.KNNWithTies(q, 1)
			require.NoError(t, err)

			nearest := testutil.BruteForceKNN(distance.Euclidean, data, q, 1)
			all := testutil.BruteForceRange(distance.Euclidean, data, q, nearest[0].Distance)
			assert.Equal(t, all.IDs(), res.IDs())
		})
	}
}

func TestBulkLoadHeight(t *testing.T) {
	const capacity = 20

	for _, k := range kinds {
		for _, n := range []int{0, 1, 20, 21, 400, 401, 8001} {
			data := testutil.NewRNG(int64(n)).UniformVectors(n, 2)
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: capacity})
			f.bulk(t, data)

			assert.Equal(t, expectedHeight(n, capacity), f.tree.Height(), "%s n=%d", k.name, n)
			assert.Equal(t, n, f.tree.Len())
			require.NoError(t, f.tree.Check(), "%s n=%d", k.name, n)
		}
	}
}

func TestGroupSizes(t *testing.T) {
	tests := []struct {
		n, capacity int
		want        []int
	}{
		{0, 4, nil},
		{3, 4, []int{3}},
		{4, 4, []int{4}},
		{5, 4, []int{3, 2}},
		{9, 4, []int{3, 3, 3}},
		{10, 4, []int{4, 3, 3}},
	}

	for _, tt := range tests {
		sizes := tree.GroupSizes(tt.n, tt.capacity)
		assert.Equal(t, tt.want, sizes, "n=%d", tt.n)
		for _, s := range sizes {
			if len(sizes) > 1 {
				assert.GreaterOrEqual(t, s, tt.capacity/2)
			}
			assert.LessOrEqual(t, s, tt.capacity)
		}
	}
}

func TestBulkLoadRequiresEmptyTree(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2})
			f.insert(t, []model.Vector{{1, 1}})

			err := f.tree.BulkLoad([]tree.Item{{ID: 9, Vector: model.Vector{2, 2}}})
			assert.ErrorIs(t, err, tree.ErrNotEmpty)
		})
	}
}

func TestInvalidArguments(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2})
			f.insert(t, []model.Vector{{1, 1}, {2, 2}})

			_, err := f.tree.KNN(model.Vector{0, 0}, 0)
			assert.ErrorIs(t, err, tree.ErrInvalidK)
			_, err = f.tree.KNNWithTies(model.Vector{0, 0}, -1)
			assert.ErrorIs(t, err, tree.ErrInvalidK)
			_, err = f.tree.Range(model.Vector{0, 0}, -0.5)
			assert.ErrorIs(t, err, tree.ErrInvalidRadius)

			var dimErr *tree.ErrDimensionMismatch
			_, err = f.tree.KNN(model.Vector{0, 0, 0}, 1)
			require.ErrorAs(t, err, &dimErr)
			assert.Equal(t, 2, dimErr.Expected)
			assert.Equal(t, 3, dimErr.Actual)

			assert.ErrorAs(t, f.tree.Insert(7, model.Vector{1}), &dimErr)
			assert.ErrorAs(t, f.tree.Delete(0, model.Vector{1}), &dimErr)
			assert.Equal(t, 2, f.tree.Len())
		})
	}
}

func TestSearchStatsAndFilter(t *testing.T) {
	data := testutil.NewRNG(11).UniformVectors(2000, 2)
	q := model.Vector{0.25, 0.75}

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 16})
			f.bulk(t, data)

			even := func(id model.ObjectID) bool { return id%2 == 0 }
			res, stats, err := f.tree.KNNWithStats(q, 10, even)
			require.NoError(t, err)
			require.Len(t, res, 10)
			for _, n := range res {
				assert.True(t, even(n.ID))
			}

			assert.Positive(t, stats.NodesRead)
			assert.Positive(t, stats.Distances)
			assert.Positive(t, stats.Pruned)
			assert.Less(t, stats.Distances, len(data))

			st, err := f.tree.Stats()
			require.NoError(t, err)
			assert.Less(t, stats.NodesRead, st.Nodes)

			_, rstats, err := f.tree.RangeWithStats(q, 0.05, even)
			require.NoError(t, err)
			assert.Positive(t, rstats.NodesRead)

			var total tree.SearchStats
			total.Add(stats)
			total.Add(rstats)
			assert.Equal(t, stats.NodesRead+rstats.NodesRead, total.NodesRead)
		})
	}
}

func TestStatsAndRoot(t *testing.T) {
	data := testutil.NewRNG(5).UniformVectors(500, 2)

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t, k.factory, pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 10})
			f.insert(t, data)

			st, err := f.tree.Stats()
			require.NoError(t, err)
			assert.Equal(t, f.tree.Height(), st.Height)
			assert.Equal(t, 500, st.Size)
			assert.Equal(t, st.Leaves, st.NodesPerLvl[0])
			assert.Equal(t, 1, st.NodesPerLvl[st.Height-1])
			assert.Equal(t, st.Nodes, st.Pages)
			assert.Greater(t, st.AvgFill, 0.4)
			assert.LessOrEqual(t, st.AvgFill, 1.0)

			root, err := f.tree.Root()
			require.NoError(t, err)
			assert.Equal(t, f.tree.RootPage(), root.Page)
			assert.Equal(t, f.tree.Height()-1, root.Level)

			switch f.tree.Strategy().Kind() {
			case tree.KindMTree:
				for _, v := range data {
					assert.LessOrEqual(t, distance.Euclidean.Distance(root.Entry.Routing, v), root.Entry.Radius+1e-9)
				}
			case tree.KindRStar:
				for _, v := range data {
					assert.True(t, root.Entry.Box.ContainsPoint(v))
				}
			}
		})
	}
}

func TestCheckDetectsCorruption(t *testing.T) {
	data := testutil.NewRNG(13).UniformVectors(200, 2)

	t.Run("MTreeRadius", func(t *testing.T) {
		f := newFixture(t, metric(mtree.DefaultOptions()), pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 8})
		f.insert(t, data)
		require.NoError(t, f.tree.Check())

		root, err := f.tree.Node(f.tree.RootPage())
		require.NoError(t, err)
		root.Entries[0].Radius = 0

		err = f.tree.Check()
		require.ErrorIs(t, err, tree.ErrCorrupt)
		var ce *tree.CorruptionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, root.ID, ce.Page)
		assert.Equal(t, 0, ce.Slot)
	})

	t.Run("MTreeParentDistance", func(t *testing.T) {
		f := newFixture(t, metric(mtree.DefaultOptions()), pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 8})
		f.insert(t, data)

		root, err := f.tree.Node(f.tree.RootPage())
		require.NoError(t, err)
		child, err := f.tree.Node(root.Entries[1].Child)
		require.NoError(t, err)
		child.Entries[0].ParentDistance += 1

		assert.ErrorIs(t, f.tree.Check(), tree.ErrCorrupt)
	})

	t.Run("RStarBox", func(t *testing.T) {
		f := newFixture(t, spatial(rstar.Options{}), pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 8})
		f.insert(t, data)
		require.NoError(t, f.tree.Check())

		root, err := f.tree.Node(f.tree.RootPage())
		require.NoError(t, err)
		root.Entries[0].Box = distance.Point(root.Entries[0].Box.Min)

		var ce *tree.CorruptionError
		assert.ErrorAs(t, f.tree.Check(), &ce)
	})

	t.Run("DuplicateObject", func(t *testing.T) {
		f := newFixture(t, spatial(rstar.Options{}), pagestore.NewMemory(), tree.Config{Dimension: 2, Capacity: 8})
		f.insert(t, data[:4])

		root, err := f.tree.Node(f.tree.RootPage())
		require.NoError(t, err)
		root.Entries[1].Object = root.Entries[0].Object

		assert.ErrorIs(t, f.tree.Check(), tree.ErrCorrupt)
	})
}
