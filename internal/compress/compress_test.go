package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("routing-object-"), 200)
	random := make([]byte, 2048)
	rand.New(rand.NewSource(1)).Read(random)

	for _, typ := range []Type{None, LZ4, ZSTD} {
		for name, data := range map[string][]byte{"compressible": compressible, "random": random, "empty": {}} {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				block, err := Encode(data, typ)
				require.NoError(t, err)

				got, err := Decode(block)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestEncodeShrinksCompressible(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 1024)
	for _, typ := range []Type{LZ4, ZSTD} {
		block, err := Encode(data, typ)
		require.NoError(t, err)
		assert.Less(t, len(block), len(data)/2, typ.String())
		assert.Equal(t, byte(typ), block[0])
	}
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorruptBlock)

	block, err := Encode(bytes.Repeat([]byte("abc"), 500), LZ4)
	require.NoError(t, err)
	_, err = Decode(block[:len(block)-10])
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

func TestParse(t *testing.T) {
	for _, typ := range []Type{None, LZ4, ZSTD} {
		got, err := Parse(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := Parse("snappy")
	assert.Error(t, err)
}
