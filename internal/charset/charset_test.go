package charset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanges_MinimalAndSorted(t *testing.T) {
	s := New('C', 'A', 'B', 'Z', 0x20AC, 'E')

	ranges := s.Ranges()
	assert.Equal(t, []Range{
		{Lo: 'A', Hi: 'C'},
		{Lo: 'E', Hi: 'E'},
		{Lo: 'Z', Hi: 'Z'},
		{Lo: 0x20AC, Hi: 0x20AC},
	}, ranges)
	assert.Equal(t, "U+41-43, U+45, U+5A, U+20AC", s.String())
}

func TestRanges_Empty(t *testing.T) {
	var s *Set
	assert.Empty(t, s.Ranges())
	assert.Equal(t, "", s.String())
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []rune
		count int
	}{
		{name: "single", input: "U+41", want: []rune{'A'}, count: 1},
		{name: "interval", input: "U+41-43", want: []rune{'A', 'B', 'C'}, count: 3},
		{name: "list", input: "U+41, u+61-62", want: []rune{'A', 'a', 'b'}, count: 3},
		{name: "wildcard", input: "U+4?", count: 16},
		{name: "whitespace separated", input: "U+30 U+31", want: []rune{'0', '1'}, count: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.count, s.Len())
			for _, cp := range tt.want {
				assert.True(t, s.Contains(cp), "expected U+%X", cp)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"41", "U+", "U+ZZ", "U+50-40", "U+110000", "U+4?-50"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestParse_RoundTripsFormat(t *testing.T) {
	s := New('a', 'b', 'c', 0x1F600, 0x1F601, 0x3000)
	parsed, err := Parse(s.String())
	require.NoError(t, err)
	assert.True(t, s.Equal(parsed))
}

func TestSetOperations(t *testing.T) {
	a := New('A', 'B', 'C')
	b := New('B', 'C', 'D')

	assert.Equal(t, []rune{'A', 'B', 'C', 'D'}, a.Union(b).Runes())
	assert.Equal(t, []rune{'B', 'C'}, a.Intersect(b).Runes())
	assert.Equal(t, []rune{'A'}, a.Difference(b).Runes())
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(New('X')))
	assert.False(t, a.Intersects(nil))

	// operations never mutate their operands
	assert.Equal(t, []rune{'A', 'B', 'C'}, a.Runes())
}

func TestAddRange_Clamps(t *testing.T) {
	s := New()
	s.AddRange(0x10FFFE, 0x10FFFF+5)
	assert.Equal(t, 2, s.Len())

	s.AddRange(10, 5)
	assert.Equal(t, 2, s.Len())
}

func TestChunk(t *testing.T) {
	s := FromRange('a', 'j')

	chunks := s.Chunk(4)
	require.Len(t, chunks, 3)
	assert.Equal(t, []rune{'a', 'b', 'c', 'd'}, chunks[0].Runes())
	assert.Equal(t, []rune{'e', 'f', 'g', 'h'}, chunks[1].Runes())
	assert.Equal(t, []rune{'i', 'j'}, chunks[2].Runes())

	assert.Len(t, s.Chunk(0), 1)
	assert.Len(t, s.Chunk(100), 1)
	assert.Nil(t, New().Chunk(3))
}

func TestJSON(t *testing.T) {
	type doc struct {
		Codepoints *Set `json:"codepoints"`
	}

	data, err := json.Marshal(doc{Codepoints: New('A', 'B', 'Z')})
	require.NoError(t, err)
	assert.JSONEq(t, `{"codepoints":"U+41-42, U+5A"}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []rune{'A', 'B', 'Z'}, out.Codepoints.Runes())
}

func TestBinary(t *testing.T) {
	s := New('x', 0x4E00, 0x1F600)
	data, err := s.MarshalBinary()
	require.NoError(t, err)

	var out Set
	require.NoError(t, out.UnmarshalBinary(data))
	assert.True(t, s.Equal(&out))
}

func TestMinMax(t *testing.T) {
	s := New('q', 'b', 'z')
	assert.Equal(t, 'b', s.Min())
	assert.Equal(t, 'z', s.Max())
	assert.Equal(t, rune(-1), New().Min())
}
