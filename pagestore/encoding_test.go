package pagestore

import (
	"math"
	"testing"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDirectory() *node.Node {
	n := node.NewDirectory(2, 4)
	n.Add(node.Entry{
		Object:         7,
		Child:          3,
		Routing:        model.Vector{1.5, -2},
		Radius:         0.75,
		ParentDistance: 1.25,
	})
	n.Add(node.Entry{
		Child: 9,
		Box:   distance.Rect{Min: model.Vector{0, 0}, Max: model.Vector{1, math.MaxFloat64}},
	})
	return n
}

func sampleLeaf() *node.Node {
	n := node.NewLeaf(4)
	n.Add(node.Entry{Object: 1, ParentDistance: 0.5})
	n.Add(node.Entry{Object: 1 << 40})
	return n
}

func TestEncodeDecodeNode(t *testing.T) {
	for _, tc := range []struct {
		name string
		n    *node.Node
	}{
		{"Directory", sampleDirectory()},
		{"Leaf", sampleLeaf()},
		{"EmptyLeaf", node.NewLeaf(4)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeNode(42, EncodeNode(tc.n))
			require.NoError(t, err)

			assert.Equal(t, node.PageID(42), got.ID)
			assert.Equal(t, tc.n.Leaf, got.Leaf)
			assert.Equal(t, tc.n.Level, got.Level)
			require.Len(t, got.Entries, len(tc.n.Entries))
			for i := range tc.n.Entries {
				assert.Equal(t, tc.n.Entries[i], got.Entries[i])
			}
		})
	}
}

func TestDecodeNode_Corrupt(t *testing.T) {
	data := EncodeNode(sampleDirectory())

	t.Run("Truncated", func(t *testing.T) {
		_, err := DecodeNode(1, data[:len(data)-3])
		assert.ErrorIs(t, err, ErrCorruptPage)
	})

	t.Run("Trailing", func(t *testing.T) {
		_, err := DecodeNode(1, append(data, 0))
		assert.ErrorIs(t, err, ErrCorruptPage)
	})

	t.Run("Version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 99
		_, err := DecodeNode(1, bad)
		assert.ErrorIs(t, err, ErrCorruptPage)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := DecodeNode(1, nil)
		assert.ErrorIs(t, err, ErrCorruptPage)
	})
}

func TestSizeOf(t *testing.T) {
	assert.Greater(t, SizeOf(sampleDirectory()), SizeOf(node.NewLeaf(4)))
}
