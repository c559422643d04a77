package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"seehuhn.de/go/sfnt"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/subsetter"
	"github.com/jonathan/webfont-splitter/internal/types"
)

type compressorFunc func(ctx context.Context, font []byte) ([]byte, error)

func (f compressorFunc) Compress(ctx context.Context, font []byte) ([]byte, error) {
	return f(ctx, font)
}

func TestWOFF2_Header(t *testing.T) {
	out, err := NewWOFF2().Compress(context.Background(), goregular.TTF)
	require.NoError(t, err)

	assert.Equal(t, []byte("wOF2"), out[0:4])
	assert.Equal(t, uint32(0x00010000), binary.BigEndian.Uint32(out[4:]))
	assert.Equal(t, uint32(len(out)), binary.BigEndian.Uint32(out[8:]))
	assert.Zero(t, len(out)%4)
	assert.Less(t, len(out), len(goregular.TTF))
}

func TestWOFF2_Deterministic(t *testing.T) {
	a, err := NewWOFF2().Compress(context.Background(), gomono.TTF)
	require.NoError(t, err)
	b, err := NewWOFF2().Compress(context.Background(), gomono.TTF)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	fast, err := WOFF2{Quality: 4}.Compress(context.Background(), gomono.TTF)
	require.NoError(t, err)
	assert.NotEqual(t, a, fast, "quality is part of the output")
}

func TestWOFF2_QualityZero(t *testing.T) {
	best, err := NewWOFF2().Compress(context.Background(), gomono.TTF)
	require.NoError(t, err)

	w := NewWOFF2()
	w.Quality = 0
	fastest, err := w.Compress(context.Background(), gomono.TTF)
	require.NoError(t, err)
	assert.NotEqual(t, best, fastest)

	decoded, err := DecodeWOFF2(fastest)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded)
}

func TestWOFF2_RoundTrip(t *testing.T) {
	out, err := NewWOFF2().Compress(context.Background(), goregular.TTF)
	require.NoError(t, err)

	decoded, err := DecodeWOFF2(out)
	require.NoError(t, err)

	orig, err := sfnt.Read(bytes.NewReader(goregular.TTF))
	require.NoError(t, err)
	font, err := sfnt.Read(bytes.NewReader(decoded))
	require.NoError(t, err)

	assert.Equal(t, orig.FamilyName, font.FamilyName)
	assert.Equal(t, orig.NumGlyphs(), font.NumGlyphs())
	origCov, err := repertoire.Coverage(orig)
	require.NoError(t, err)
	cov, err := repertoire.Coverage(font)
	require.NoError(t, err)
	assert.True(t, origCov.Equal(cov))
}

// Build, encode and decode every bucket and check the decoded font covers
// exactly the bucket's codepoints.
func TestBuildEncodeDecode_CoverageEqualsBucket(t *testing.T) {
	rep, src, err := repertoire.ReadBytes("Go-Regular.ttf", goregular.TTF, nil)
	require.NoError(t, err)

	buckets := []*charset.Set{
		charset.FromRange('A', 'Z'),
		charset.FromRange('0', '9'),
		charset.New('é', 'ñ', '€', '—'),
	}
	for _, cps := range buckets {
		cps = cps.Intersect(rep.Coverage)
		t.Run(cps.String(), func(t *testing.T) {
			artifact, err := subsetter.Build(context.Background(), subsetter.Native{}, rep.ID, src,
				subsetterBucket(cps))
			require.NoError(t, err)

			woff, err := Encode(context.Background(), NewWOFF2(), artifact.FontBytes)
			require.NoError(t, err)

			sfntBytes, err := DecodeWOFF2(woff)
			require.NoError(t, err)
			font, err := sfnt.Read(bytes.NewReader(sfntBytes))
			require.NoError(t, err)
			cov, err := repertoire.Coverage(font)
			require.NoError(t, err)
			assert.True(t, cov.Equal(cps), "decoded %s want %s", cov, cps)
		})
	}
}

func TestEncode_Failures(t *testing.T) {
	_, err := Encode(context.Background(), NewWOFF2(), nil)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, CompressionFailure, encErr.Kind)

	_, err = Encode(context.Background(), NewWOFF2(), []byte("not a font at all"))
	require.ErrorAs(t, err, &encErr)

	boom := errors.New("boom")
	_, err = Encode(context.Background(), compressorFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, boom
	}), []byte{1})
	assert.ErrorIs(t, err, boom)

	_, err = Encode(context.Background(), compressorFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, nil
	}), []byte{1})
	assert.ErrorContains(t, err, "no output")
}

func TestUIntBase128(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x81, 0x00}},
		{63, []byte{0x3F}},
		{16384, []byte{0x81, 0x80, 0x00}},
		{0xFFFFFFFF, []byte{0x8F, 0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, tt := range tests {
		got := appendUIntBase128(nil, tt.v)
		assert.Equal(t, tt.want, got, "encode %d", tt.v)

		v, n, err := readUIntBase128(got)
		require.NoError(t, err)
		assert.Equal(t, tt.v, v)
		assert.Equal(t, len(got), n)
	}

	_, _, err := readUIntBase128([]byte{0x80, 0x01})
	assert.ErrorContains(t, err, "leading zero")
	_, _, err = readUIntBase128([]byte{0x81})
	assert.ErrorContains(t, err, "truncated")
}

func TestDirectoryEntry(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x05}, appendDirectoryEntry(nil, "cmap", 5))
	assert.Equal(t, []byte{0xC0 | 10, 0x81, 0x00}, appendDirectoryEntry(nil, "glyf", 128))
	assert.Equal(t, []byte{0xC0 | 11, 0x02}, appendDirectoryEntry(nil, "loca", 2))
	assert.Equal(t, []byte{63, 'D', 'S', 'I', 'G', 0x08}, appendDirectoryEntry(nil, "DSIG", 8))
}

func TestDecodeWOFF2_Errors(t *testing.T) {
	_, err := DecodeWOFF2([]byte("wOFF"))
	assert.ErrorContains(t, err, "not a WOFF2 file")

	out, err := NewWOFF2().Compress(context.Background(), goregular.TTF)
	require.NoError(t, err)
	_, err = DecodeWOFF2(out[:60])
	assert.Error(t, err)
}

func TestWoff2Compress_Missing(t *testing.T) {
	w := Woff2Compress{Binary: "woff2_compress-not-installed"}
	assert.False(t, w.Available())
	_, err := w.Compress(context.Background(), goregular.TTF)
	assert.ErrorContains(t, err, "not found in PATH")
}

func TestWoff2Compress_Output(t *testing.T) {
	w := Woff2Compress{}
	if !w.Available() {
		t.Skip("woff2_compress not installed")
	}
	out, err := w.Compress(context.Background(), goregular.TTF)
	require.NoError(t, err)
	assert.Equal(t, []byte("wOF2"), out[0:4])
}

func subsetterBucket(cps *charset.Set) types.SubsetBucket {
	return types.SubsetBucket{Name: "test", Codepoints: cps}
}
