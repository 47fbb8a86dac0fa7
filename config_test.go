package simidx_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simidx"
	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/testutil"
)

const sampleConfig = `
kind: rstar
dimension: 2
distance: manhattan
capacity: 12
min_fill: 4
bulk: maxext
store:
  type: blob
  compression: zstd
  cache_pages: 64
  blob:
    type: local
    path: ./pages
resources:
  max_query_workers: 2
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := simidx.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "rstar", cfg.Kind)
	assert.Equal(t, 2, cfg.Dimension)
	assert.Equal(t, "manhattan", cfg.Distance)
	assert.Equal(t, 12, cfg.Capacity)
	assert.Equal(t, 4, cfg.MinFill)
	assert.Equal(t, "maxext", cfg.Bulk)
	assert.Equal(t, "blob", cfg.Store.Type)
	assert.Equal(t, "zstd", cfg.Store.Compression)
	assert.Equal(t, 64, cfg.Store.CachePages)
	assert.Equal(t, "local", cfg.Store.Blob.Type)
	assert.Equal(t, "./pages", cfg.Store.Blob.Path)
	assert.Equal(t, int64(2), cfg.Resources.MaxQueryWorkers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())

	_, err = simidx.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = simidx.LoadConfig(writeConfig(t, "kind: [unclosed"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := simidx.Config{Kind: "mtree", Dimension: 4}

	tests := []struct {
		name   string
		modify func(c *simidx.Config)
		want   error
	}{
		{"Valid", func(*simidx.Config) {}, nil},
		{"DefaultKind", func(c *simidx.Config) { c.Kind = "" }, nil},
		{"UnknownKind", func(c *simidx.Config) { c.Kind = "kdtree" }, simidx.ErrInvalidConfig},
		{"ZeroDimension", func(c *simidx.Config) { c.Dimension = 0 }, simidx.ErrInvalidConfig},
		{"NegativeCapacity", func(c *simidx.Config) { c.Capacity = -1 }, simidx.ErrInvalidConfig},
		{"UnknownDistance", func(c *simidx.Config) { c.Distance = "hamming" }, simidx.ErrInvalidDistance},
		{"AngularRStar", func(c *simidx.Config) { c.Kind = "rstar"; c.Distance = "angular" }, simidx.ErrInvalidDistance},
		{"AngularMTree", func(c *simidx.Config) { c.Distance = "angular" }, nil},
		{"UnknownPromotion", func(c *simidx.Config) { c.Split.Promotion = "best" }, simidx.ErrInvalidConfig},
		{"UnknownDistribution", func(c *simidx.Config) { c.Split.Distribution = "even" }, simidx.ErrInvalidConfig},
		{"UnknownBulk", func(c *simidx.Config) { c.Bulk = "hilbert" }, simidx.ErrInvalidConfig},
		{"UnknownStore", func(c *simidx.Config) { c.Store.Type = "redis" }, simidx.ErrInvalidConfig},
		{"SQLiteWithoutPath", func(c *simidx.Config) { c.Store.Type = "sqlite" }, simidx.ErrInvalidConfig},
		{"UnknownCompression", func(c *simidx.Config) { c.Store.Compression = "brotli" }, simidx.ErrInvalidConfig},
		{"NegativeCache", func(c *simidx.Config) { c.Store.CachePages = -1 }, simidx.ErrInvalidConfig},
		{"LocalWithoutPath", func(c *simidx.Config) { c.Store.Blob.Type = "local" }, simidx.ErrInvalidConfig},
		{"S3WithoutBucket", func(c *simidx.Config) { c.Store.Blob.Type = "s3" }, simidx.ErrInvalidConfig},
		{"MinioWithoutEndpoint", func(c *simidx.Config) {
			c.Store.Blob.Type = "minio"
			c.Store.Blob.Bucket = "pages"
		}, simidx.ErrInvalidConfig},
		{"UnknownBlob", func(c *simidx.Config) { c.Store.Blob.Type = "ftp" }, simidx.ErrInvalidConfig},
		{"BadLogLevel", func(c *simidx.Config) { c.Log.Level = "loud" }, simidx.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(29).UniformVectors(300, 2)

	tests := []struct {
		name string
		cfg  func(dir string) simidx.Config
	}{
		{"Memory", func(string) simidx.Config {
			return simidx.Config{Kind: "mtree", Dimension: 2, Distance: "manhattan", Capacity: 8}
		}},
		{"Badger", func(string) simidx.Config {
			return simidx.Config{Kind: "mtree", Dimension: 2, Distance: "manhattan", Capacity: 8,
				Store: simidx.StoreConfig{Type: "badger"}}
		}},
		{"SQLite", func(dir string) simidx.Config {
			return simidx.Config{Kind: "rstar", Dimension: 2, Distance: "manhattan", Capacity: 8,
				Store: simidx.StoreConfig{Type: "sqlite", Path: filepath.Join(dir, "pages.db"), CachePages: 16}}
		}},
		{"LocalBlob", func(dir string) simidx.Config {
			return simidx.Config{Kind: "rstar", Dimension: 2, Distance: "manhattan", Capacity: 8, Bulk: "onedim",
				Store: simidx.StoreConfig{Type: "blob", Compression: "lz4",
					Blob: simidx.BlobConfig{Type: "local", Path: filepath.Join(dir, "pages")}}}
		}},
		{"MemoryBlob", func(string) simidx.Config {
			return simidx.Config{Kind: "mtree", Dimension: 2, Distance: "manhattan", Capacity: 8,
				Split: simidx.SplitConfig{Promotion: "farthest", Distribution: "hyperplane"},
				Store: simidx.StoreConfig{Type: "blob", Compression: "zstd", CachePages: 8}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := simidx.NewFromConfig[int](ctx, tt.cfg(t.TempDir()))
			require.NoError(t, err)
			defer idx.Close()

			_, err = idx.BulkLoad(ctx, objects(vecs[:200]))
			require.NoError(t, err)
			for i, v := range vecs[200:] {
				_, err := idx.Insert(ctx, simidx.Object[int]{Vector: v, Data: 200 + i})
				require.NoError(t, err)
			}
			require.NoError(t, idx.Check(ctx))

			q := vecs[0]
			want := testutil.BruteForceKNN(distance.Manhattan, vecs, q, 6)
			got, err := idx.KNN(ctx, q, 6)
			require.NoError(t, err)
			assert.Equal(t, want.IDs(), positions(got))

			batch, err := idx.BatchKNN(ctx, vecs[:10], 3)
			require.NoError(t, err)
			assert.Len(t, batch, 10)
		})
	}

	_, err := simidx.NewFromConfig[int](ctx, simidx.Config{Dimension: 0})
	assert.ErrorIs(t, err, simidx.ErrInvalidConfig)
}
