// Package charset provides codepoint sets backed by roaring bitmaps and the
// unicode-range serialization used in stylesheets.
package charset

import (
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// MaxCodepoint is the largest Unicode scalar value.
const MaxCodepoint = 0x10FFFF

// Set is a set of Unicode codepoints. A nil *Set is a valid empty set for all
// read-only operations.
type Set struct {
	bm *roaring.Bitmap
}

// New returns a set holding the given codepoints.
func New(cps ...rune) *Set {
	s := &Set{bm: roaring.New()}
	for _, cp := range cps {
		s.Add(cp)
	}
	return s
}

// FromRange returns the set of codepoints lo..hi inclusive.
func FromRange(lo, hi rune) *Set {
	s := New()
	s.AddRange(lo, hi)
	return s
}

func fromBitmap(bm *roaring.Bitmap) *Set {
	return &Set{bm: bm}
}

func (s *Set) bitmap() *roaring.Bitmap {
	if s == nil || s.bm == nil {
		return roaring.New()
	}
	return s.bm
}

// Add inserts a codepoint. Values outside the Unicode range are ignored.
func (s *Set) Add(cp rune) {
	if cp < 0 || cp > MaxCodepoint {
		return
	}
	if s.bm == nil {
		s.bm = roaring.New()
	}
	s.bm.Add(uint32(cp))
}

// AddRange inserts lo..hi inclusive, clamped to the Unicode range.
func (s *Set) AddRange(lo, hi rune) {
	if lo < 0 {
		lo = 0
	}
	if hi > MaxCodepoint {
		hi = MaxCodepoint
	}
	if hi < lo {
		return
	}
	if s.bm == nil {
		s.bm = roaring.New()
	}
	s.bm.AddRange(uint64(lo), uint64(hi)+1)
}

// AddSet inserts every codepoint of o.
func (s *Set) AddSet(o *Set) {
	if o == nil || o.bm == nil {
		return
	}
	if s.bm == nil {
		s.bm = roaring.New()
	}
	s.bm.Or(o.bm)
}

// Remove deletes a codepoint.
func (s *Set) Remove(cp rune) {
	if s == nil || s.bm == nil || cp < 0 {
		return
	}
	s.bm.Remove(uint32(cp))
}

// RemoveSet deletes every codepoint of o.
func (s *Set) RemoveSet(o *Set) {
	if s == nil || s.bm == nil || o == nil || o.bm == nil {
		return
	}
	s.bm.AndNot(o.bm)
}

// Contains reports whether cp is in the set.
func (s *Set) Contains(cp rune) bool {
	if s == nil || s.bm == nil || cp < 0 {
		return false
	}
	return s.bm.Contains(uint32(cp))
}

// Len returns the number of codepoints.
func (s *Set) Len() int {
	if s == nil || s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether the set has no codepoints.
func (s *Set) IsEmpty() bool {
	return s == nil || s.bm == nil || s.bm.IsEmpty()
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return fromBitmap(s.bitmap().Clone())
}

// Union returns s ∪ o.
func (s *Set) Union(o *Set) *Set {
	return fromBitmap(roaring.Or(s.bitmap(), o.bitmap()))
}

// Intersect returns s ∩ o.
func (s *Set) Intersect(o *Set) *Set {
	return fromBitmap(roaring.And(s.bitmap(), o.bitmap()))
}

// Difference returns s \ o.
func (s *Set) Difference(o *Set) *Set {
	return fromBitmap(roaring.AndNot(s.bitmap(), o.bitmap()))
}

// Intersects reports whether s and o share at least one codepoint.
func (s *Set) Intersects(o *Set) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return false
	}
	return s.bm.Intersects(o.bm)
}

// Equal reports whether both sets hold the same codepoints.
func (s *Set) Equal(o *Set) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return s.IsEmpty() && o.IsEmpty()
	}
	return s.bm.Equals(o.bm)
}

// Min returns the smallest codepoint, or -1 for an empty set.
func (s *Set) Min() rune {
	if s.IsEmpty() {
		return -1
	}
	return rune(s.bm.Minimum())
}

// Max returns the largest codepoint, or -1 for an empty set.
func (s *Set) Max() rune {
	if s.IsEmpty() {
		return -1
	}
	return rune(s.bm.Maximum())
}

// Runes returns the codepoints in ascending order.
func (s *Set) Runes() []rune {
	if s.IsEmpty() {
		return nil
	}
	arr := s.bm.ToArray()
	out := make([]rune, len(arr))
	for i, v := range arr {
		out[i] = rune(v)
	}
	return out
}

// Each calls fn for every codepoint in ascending order until fn returns false.
func (s *Set) Each(fn func(cp rune) bool) {
	if s.IsEmpty() {
		return
	}
	it := s.bm.Iterator()
	for it.HasNext() {
		if !fn(rune(it.Next())) {
			return
		}
	}
}

// Chunk splits the set into consecutive pieces of at most size codepoints,
// walking codepoints in ascending order. A size <= 0 returns the whole set.
func (s *Set) Chunk(size int) []*Set {
	if s.IsEmpty() {
		return nil
	}
	if size <= 0 || s.Len() <= size {
		return []*Set{s.Clone()}
	}
	var chunks []*Set
	cur := New()
	s.Each(func(cp rune) bool {
		cur.Add(cp)
		if cur.Len() == size {
			chunks = append(chunks, cur)
			cur = New()
		}
		return true
	})
	if !cur.IsEmpty() {
		chunks = append(chunks, cur)
	}
	return chunks
}

// String returns the unicode-range serialization of the set.
func (s *Set) String() string {
	return FormatRanges(s.Ranges())
}

// MarshalJSON encodes the set as a unicode-range string.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a unicode-range string.
func (s *Set) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("codepoint set must be a unicode-range string: %w", err)
	}
	parsed, err := Parse(str)
	if err != nil {
		return err
	}
	s.bm = parsed.bitmap()
	return nil
}

// MarshalBinary returns the portable roaring serialization.
func (s *Set) MarshalBinary() ([]byte, error) {
	bm := s.bitmap().Clone()
	bm.RunOptimize()
	return bm.ToBytes()
}

// UnmarshalBinary reads the portable roaring serialization.
func (s *Set) UnmarshalBinary(data []byte) error {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("failed to decode codepoint bitmap: %w", err)
	}
	if !bm.IsEmpty() && bm.Maximum() > MaxCodepoint {
		return fmt.Errorf("codepoint bitmap holds value U+%X beyond U+10FFFF", bm.Maximum())
	}
	s.bm = bm
	return nil
}
