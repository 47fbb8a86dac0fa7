package simidx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/simidx/blobstore"
	blobminio "github.com/hupe1980/simidx/blobstore/minio"
	blobs3 "github.com/hupe1980/simidx/blobstore/s3"
	"github.com/hupe1980/simidx/codec"
	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/internal/mtree"
	"github.com/hupe1980/simidx/internal/rstar"
	"github.com/hupe1980/simidx/pagestore"
	"github.com/hupe1980/simidx/resource"
)

// Config describes an index in a YAML file.
//
// Example:
//
//	kind: mtree
//	dimension: 64
//	distance: euclidean
//	capacity: 32
//	split:
//	  promotion: mmrad
//	  distribution: balanced
//	store:
//	  type: blob
//	  compression: zstd
//	  cache_pages: 1024
//	  blob:
//	    type: local
//	    path: ./pages
//	log:
//	  level: info
//	  format: json
type Config struct {
	Kind      string         `yaml:"kind"`
	Dimension int            `yaml:"dimension"`
	Distance  string         `yaml:"distance"`
	Capacity  int            `yaml:"capacity"`
	MinFill   int            `yaml:"min_fill"`
	Split     SplitConfig    `yaml:"split"`
	Bulk      string         `yaml:"bulk"`
	Store     StoreConfig    `yaml:"store"`
	Resources ResourceConfig `yaml:"resources"`
	Log       LogConfig      `yaml:"log"`
}

// SplitConfig selects the M-tree split policies.
type SplitConfig struct {
	Promotion    string `yaml:"promotion"`
	Distribution string `yaml:"distribution"`
	Seed         uint64 `yaml:"seed"`
}

// StoreConfig selects the page store.
type StoreConfig struct {
	// Type is one of "memory" (default), "badger", "sqlite" or "blob".
	Type string `yaml:"type"`
	// Path is the badger directory or the sqlite file. An empty badger path
	// runs badger in memory.
	Path string `yaml:"path"`
	// Compression of blob pages: "none", "lz4" or "zstd".
	Compression string `yaml:"compression"`
	// CachePages wraps the store in an LRU of decoded nodes when positive.
	CachePages int        `yaml:"cache_pages"`
	Blob       BlobConfig `yaml:"blob"`
}

// BlobConfig selects the blob store of a "blob" page store.
type BlobConfig struct {
	// Type is one of "memory" (default), "local", "s3" or "minio".
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// ResourceConfig bounds memory, query workers and page I/O.
type ResourceConfig struct {
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes"`
	MaxQueryWorkers    int64 `yaml:"max_query_workers"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

func (r ResourceConfig) controller() *resource.Controller {
	workers := r.MaxQueryWorkers
	if workers <= 0 {
		workers = int64(runtime.GOMAXPROCS(0))
	}
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   r.MemoryLimitBytes,
		MaxQueryWorkers:    workers,
		IOLimitBytesPerSec: r.IOLimitBytesPerSec,
	})
}

// LogConfig selects the logger.
type LogConfig struct {
	// Level is a slog level name. An empty level disables logging.
	Level string `yaml:"level"`
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("simidx: read config: %w", err)
	}
	var cfg Config
	if err := (codec.YAML{}).Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("simidx: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the names and numbers of the config without opening any store.
func (c Config) Validate() error {
	_, err := c.settings()
	return err
}

func (c Config) settings() (settings, error) {
	var s settings
	switch Kind(strings.ToLower(c.Kind)) {
	case KindMTree, "":
		s.kind = KindMTree
	case KindRStar:
		s.kind = KindRStar
	default:
		return s, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, c.Kind)
	}

	if c.Dimension < 1 {
		return s, fmt.Errorf("%w: dimension %d", ErrInvalidConfig, c.Dimension)
	}
	s.dimension = c.Dimension
	if c.Capacity < 0 || c.MinFill < 0 {
		return s, fmt.Errorf("%w: negative capacity or min fill", ErrInvalidConfig)
	}
	s.capacity = c.Capacity
	s.minFill = c.MinFill

	dist, err := distance.ByName(c.Distance)
	if err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidDistance, err)
	}
	if _, ok := dist.(distance.Spatial); !ok && s.kind == KindRStar {
		return s, fmt.Errorf("%w: %s cannot bound rectangles", ErrInvalidDistance, dist.Name())
	}
	s.distance = dist

	s.mtree = mtree.DefaultOptions()
	if s.mtree.Promotion, err = mtree.ParsePromotion(c.Split.Promotion); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.mtree.Distribution, err = mtree.ParseDistribution(c.Split.Distribution); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Split.Seed != 0 {
		s.mtree.Seed = c.Split.Seed
	}
	if s.rstar.Bulk, err = rstar.ParseBulkMethod(c.Bulk); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch strings.ToLower(c.Store.Type) {
	case "", "memory", "badger", "sqlite", "blob":
	default:
		return s, fmt.Errorf("%w: unknown page store %q", ErrInvalidConfig, c.Store.Type)
	}
	if strings.EqualFold(c.Store.Type, "sqlite") && c.Store.Path == "" {
		return s, fmt.Errorf("%w: sqlite store needs a path", ErrInvalidConfig)
	}
	if _, err := pagestore.ParseCompression(c.Store.Compression); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Store.CachePages < 0 {
		return s, fmt.Errorf("%w: cache pages %d", ErrInvalidConfig, c.Store.CachePages)
	}
	switch strings.ToLower(c.Store.Blob.Type) {
	case "", "memory":
	case "local":
		if c.Store.Blob.Path == "" {
			return s, fmt.Errorf("%w: local blob store needs a path", ErrInvalidConfig)
		}
	case "s3", "minio":
		if c.Store.Blob.Bucket == "" {
			return s, fmt.Errorf("%w: %s blob store needs a bucket", ErrInvalidConfig, c.Store.Blob.Type)
		}
		if strings.EqualFold(c.Store.Blob.Type, "minio") && c.Store.Blob.Endpoint == "" {
			return s, fmt.Errorf("%w: minio blob store needs an endpoint", ErrInvalidConfig)
		}
	default:
		return s, fmt.Errorf("%w: unknown blob store %q", ErrInvalidConfig, c.Store.Blob.Type)
	}

	if _, err := c.Log.level(); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return s, nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return level, nil
	}
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

func (l LogConfig) logger() *Logger {
	if l.Level == "" {
		return nil
	}
	level, _ := l.level()
	if strings.EqualFold(l.Format, "json") {
		return NewJSONLogger(level)
	}
	return NewTextLogger(level)
}

// NewFromConfig creates an index described by cfg, opening the configured
// page store. Options override the logger and resources of the config.
func NewFromConfig[T any](ctx context.Context, cfg Config, optFns ...Option) (*Index[T], error) {
	s, err := cfg.settings()
	if err != nil {
		return nil, err
	}

	s.options = options{logger: cfg.Log.logger(), resources: cfg.Resources.controller()}
	s.options = applyOptions(s.options, optFns)

	store, err := cfg.Store.open(ctx, s.options.resources)
	if err != nil {
		return nil, err
	}
	s.store = store

	idx, err := newIndex[T](s, nil)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return idx, nil
}

func (c StoreConfig) open(ctx context.Context, rc *resource.Controller) (pagestore.Store, error) {
	compression, err := pagestore.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	opts := []pagestore.Option{
		pagestore.WithCompression(compression),
		pagestore.WithResourceController(rc),
		pagestore.WithContext(ctx),
	}

	var store pagestore.Store
	switch strings.ToLower(c.Type) {
	case "", "memory":
		store = pagestore.NewMemory()
	case "badger":
		store, err = pagestore.NewBadger(c.Path, opts...)
	case "sqlite":
		store, err = pagestore.NewSQLite(c.Path, opts...)
	case "blob":
		var blobs blobstore.Store
		if blobs, err = c.Blob.open(ctx); err == nil {
			store, err = pagestore.NewBlob(blobs, opts...)
		}
	default:
		err = fmt.Errorf("%w: unknown page store %q", ErrInvalidConfig, c.Type)
	}
	if err != nil {
		return nil, err
	}

	if c.CachePages > 0 {
		cached, err := pagestore.NewCached(store, c.CachePages, opts...)
		if err != nil {
			return nil, errors.Join(err, store.Close())
		}
		store = cached
	}
	return store, nil
}

func (c BlobConfig) open(ctx context.Context) (blobstore.Store, error) {
	switch strings.ToLower(c.Type) {
	case "", "memory":
		return blobstore.NewMemoryStore(), nil
	case "local":
		return blobstore.NewLocalStore(c.Path)
	case "s3":
		var opts []blobs3.Option
		if c.Prefix != "" {
			opts = append(opts, blobs3.WithPrefix(c.Prefix))
		}
		if c.Region != "" {
			opts = append(opts, blobs3.WithRegion(c.Region))
		}
		return blobs3.New(ctx, c.Bucket, opts...)
	case "minio":
		client, err := minio.New(c.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
			Secure: c.Secure,
			Region: c.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("simidx: minio client: %w", err)
		}
		return blobminio.NewStore(client, c.Bucket, c.Prefix), nil
	}
	return nil, fmt.Errorf("%w: unknown blob store %q", ErrInvalidConfig, c.Type)
}
