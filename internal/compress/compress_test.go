package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "lz4", LZ4.String())
	assert.Equal(t, "zstd", Zstd.String())
	assert.Equal(t, "unknown(9)", Tag(9).String())

	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseTag(name)
		require.NoError(t, err)
		assert.Equal(t, name, tag.String())
	}
	_, err := ParseTag("gzip")
	assert.Error(t, err)
}

func TestPackUnpack(t *testing.T) {
	data := bytes.Repeat([]byte("U+0000-00FF, U+0131, U+0152-0153\n"), 200)

	for _, tag := range []Tag{None, LZ4, Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			frame, err := Pack(data, tag)
			require.NoError(t, err)
			if tag != None {
				assert.Less(t, len(frame), len(data))
			}

			out, stored, err := Unpack(frame)
			require.NoError(t, err)
			assert.Equal(t, tag, stored)
			assert.Equal(t, data, out)
		})
	}
}

func TestPack_IncompressibleFallsBackToNone(t *testing.T) {
	data := make([]byte, 4096)
	_, err := rand.Read(data)
	require.NoError(t, err)

	frame, err := Pack(data, Zstd)
	require.NoError(t, err)

	out, stored, err := Unpack(frame)
	require.NoError(t, err)
	assert.Equal(t, None, stored)
	assert.Equal(t, data, out)
}

func TestUnpack_Errors(t *testing.T) {
	_, _, err := Unpack(nil)
	assert.ErrorIs(t, err, ErrTruncated)

	frame, err := Pack([]byte("abc"), None)
	require.NoError(t, err)
	_, _, err = Unpack(frame[:len(frame)-1])
	assert.ErrorContains(t, err, "does not match")

	frame[0] = 7
	_, _, err = Unpack(frame)
	assert.ErrorContains(t, err, "unsupported compression tag")
}
