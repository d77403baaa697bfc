package compress

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overviewLike 近似一个带满错误窗口的快照
func overviewLike() []byte {
	var b bytes.Buffer
	b.WriteString(`{"id":"a1","status":"running","summary":{"errors":[`)
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, `{"key":"session:%d","error":"ERR wrong number of arguments"},`, i)
	}
	b.WriteString(`]}}`)
	return b.Bytes()
}

func TestRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":    {},
		"small":    []byte("172.17.0.1:7001@42"),
		"overview": overviewLike(),
	}

	for _, typ := range []Type{TypeNone, TypeSnappy, TypeZstd, TypeLZ4} {
		c, err := New(typ)
		require.NoError(t, err)
		assert.Equal(t, string(typ), c.Name())

		for name, in := range inputs {
			t.Run(string(typ)+"/"+name, func(t *testing.T) {
				packed, err := c.Compress(in)
				require.NoError(t, err)
				out, err := c.Decompress(packed)
				require.NoError(t, err)
				assert.Equal(t, len(in), len(out))
				assert.True(t, bytes.Equal(in, out))
			})
		}
	}
}

func TestCompressShrinksSnapshots(t *testing.T) {
	in := overviewLike()
	for _, typ := range []Type{TypeSnappy, TypeZstd, TypeLZ4} {
		c, err := New(typ)
		require.NoError(t, err)
		packed, err := c.Compress(in)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(in)/2, typ)
	}
}

func TestNew(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "none", c.Name())

	c, err = New("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, "zstd", c.Name())

	_, err = New("brotli")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecompressGarbage(t *testing.T) {
	for _, typ := range []Type{TypeSnappy, TypeZstd, TypeLZ4} {
		c, err := New(typ)
		require.NoError(t, err)
		_, err = c.Decompress([]byte("definitely not compressed"))
		assert.Error(t, err, typ)
	}
}
