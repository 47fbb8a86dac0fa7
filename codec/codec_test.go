package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type header struct {
	Kind   string `json:"kind" yaml:"kind"`
	Root   uint64 `json:"root" yaml:"root"`
	Height int    `json:"height" yaml:"height"`
}

func TestCodecs(t *testing.T) {
	for _, name := range []string{"json", "yaml"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			in := header{Kind: "mtree", Root: 7, Height: 3}
			var out header
			require.NoError(t, c.Unmarshal(MustMarshal(c, in), &out))
			assert.Equal(t, in, out)
		})
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}
