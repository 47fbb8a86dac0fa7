package pagestore

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/simidx/blobstore"
	"github.com/hupe1980/simidx/node"
	"github.com/hupe1980/simidx/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()

	t.Run("EmptyHeader", func(t *testing.T) {
		_, err := s.ReadHeader()
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	leaf := sampleLeaf()
	dir := sampleDirectory()

	t.Run("Allocate", func(t *testing.T) {
		id1, err := s.Write(leaf)
		require.NoError(t, err)
		id2, err := s.Write(dir)
		require.NoError(t, err)

		assert.NotEqual(t, node.NoPage, id1)
		assert.NotEqual(t, id1, id2)
		assert.Equal(t, id1, leaf.ID)
		assert.Equal(t, id2, dir.ID)
		assert.Equal(t, 2, s.Pages())
	})

	t.Run("ReadBack", func(t *testing.T) {
		got, err := s.Read(dir.ID)
		require.NoError(t, err)
		assert.Equal(t, dir.Level, got.Level)
		assert.Equal(t, dir.Entries, got.Entries)
	})

	t.Run("Overwrite", func(t *testing.T) {
		updated := leaf.Clone()
		updated.Add(node.Entry{Object: 99})
		id, err := s.Write(updated)
		require.NoError(t, err)
		assert.Equal(t, leaf.ID, id)

		got, err := s.Read(leaf.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Len())
	})

	t.Run("Free", func(t *testing.T) {
		require.NoError(t, s.Free(leaf.ID))
		_, err := s.Read(leaf.ID)
		assert.ErrorIs(t, err, ErrPageNotFound)
		assert.ErrorIs(t, s.Free(leaf.ID), ErrPageNotFound)
		assert.Equal(t, 1, s.Pages())

		// A write to a freed page is rejected.
		stale := node.NewLeaf(4)
		stale.ID = leaf.ID
		_, err = s.Write(stale)
		assert.ErrorIs(t, err, ErrPageNotFound)

		// The freed id is reused.
		id, err := s.Write(node.NewLeaf(4))
		require.NoError(t, err)
		assert.Equal(t, leaf.ID, id)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := s.Read(12345)
		assert.ErrorIs(t, err, ErrPageNotFound)
	})

	t.Run("Header", func(t *testing.T) {
		h := Header{Kind: "mtree", Distance: "euclidean", Dimension: 2, Capacity: 20, MinFill: 10, Root: dir.ID, Height: 3, Size: 100}
		require.NoError(t, s.WriteHeader(h))

		got, err := s.ReadHeader()
		require.NoError(t, err)
		assert.Equal(t, h.Kind, got.Kind)
		assert.Equal(t, h.Root, got.Root)
		assert.Equal(t, h.Size, got.Size)
		assert.Greater(t, got.NextPage, dir.ID)
	})
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	testStoreContract(t, s)

	require.NoError(t, s.Close())
	_, err := s.Read(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBlob(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
			s, err := NewBlob(blobstore.NewMemoryStore(), WithCompression(c), WithResourceController(rc))
			require.NoError(t, err)
			testStoreContract(t, s)
		})
	}
}

func TestBlob_Reopen(t *testing.T) {
	bs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	s, err := NewBlob(bs)
	require.NoError(t, err)

	var ids []node.PageID
	for range 3 {
		id, err := s.Write(sampleLeaf())
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.Free(ids[1]))
	require.NoError(t, s.Close())

	reopened, err := NewBlob(bs)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Pages())

	got, err := reopened.Read(ids[2])
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	// The hole left by the freed page is reused first.
	id, err := reopened.Write(node.NewLeaf(4))
	require.NoError(t, err)
	assert.Equal(t, ids[1], id)
}

func TestBadger(t *testing.T) {
	s, err := NewBadger("")
	require.NoError(t, err)
	defer s.Close()
	testStoreContract(t, s)
}

func TestBadger_Reopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadger(dir, WithCompression(CompressionZSTD))
	require.NoError(t, err)
	id, err := s.Write(sampleDirectory())
	require.NoError(t, err)
	require.NoError(t, s.WriteHeader(Header{Kind: "rstar", Root: id}))
	require.NoError(t, s.Close())

	s, err = NewBadger(dir)
	require.NoError(t, err)
	defer s.Close()

	h, err := s.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, id, h.Root)

	got, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, sampleDirectory().Entries, got.Entries)
	assert.Equal(t, 1, s.Pages())
}

func TestSQLite(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		s, err := NewSQLite(":memory:")
		require.NoError(t, err)
		defer s.Close()
		testStoreContract(t, s)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index", "pages.db")
		s, err := NewSQLite(path, WithCompression(CompressionLZ4))
		require.NoError(t, err)
		testStoreContract(t, s)
		pages := s.Pages()
		require.NoError(t, s.Close())

		s, err = NewSQLite(path)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, pages, s.Pages())

		h, err := s.ReadHeader()
		require.NoError(t, err)
		assert.Equal(t, "mtree", h.Kind)
	})
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}
