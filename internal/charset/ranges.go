package charset

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive run of codepoints.
type Range struct {
	Lo rune `json:"lo" cbor:"1,keyasint"`
	Hi rune `json:"hi" cbor:"2,keyasint"`
}

// String formats the range in unicode-range notation.
func (r Range) String() string {
	if r.Lo == r.Hi {
		return fmt.Sprintf("U+%X", r.Lo)
	}
	return fmt.Sprintf("U+%X-%X", r.Lo, r.Hi)
}

// Ranges returns the minimal sorted list of contiguous ranges covering
// exactly the set.
func (s *Set) Ranges() []Range {
	var out []Range
	s.Each(func(cp rune) bool {
		if n := len(out); n > 0 && out[n-1].Hi+1 == cp {
			out[n-1].Hi = cp
		} else {
			out = append(out, Range{Lo: cp, Hi: cp})
		}
		return true
	})
	return out
}

// FromRanges builds a set from inclusive ranges.
func FromRanges(ranges []Range) *Set {
	s := New()
	for _, r := range ranges {
		s.AddRange(r.Lo, r.Hi)
	}
	return s
}

// FormatRanges joins ranges the way the unicode-range descriptor expects.
func FormatRanges(ranges []Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// Parse reads a unicode-range value such as "U+0000-00FF, U+0131, U+4??".
// Tokens may be separated by commas or whitespace.
func Parse(value string) (*Set, error) {
	s := New()
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	for _, field := range fields {
		lo, hi, err := parseToken(field)
		if err != nil {
			return nil, err
		}
		s.AddRange(lo, hi)
	}
	return s, nil
}

func parseToken(tok string) (rune, rune, error) {
	body, ok := strings.CutPrefix(strings.ToUpper(tok), "U+")
	if !ok {
		return 0, 0, fmt.Errorf("invalid unicode-range token %q: missing U+ prefix", tok)
	}

	if strings.Contains(body, "?") {
		if strings.Contains(body, "-") {
			return 0, 0, fmt.Errorf("invalid unicode-range token %q: wildcard in interval", tok)
		}
		lo, err := parseHex(strings.ReplaceAll(body, "?", "0"), tok)
		if err != nil {
			return 0, 0, err
		}
		hi, err := parseHex(strings.ReplaceAll(body, "?", "F"), tok)
		if err != nil {
			return 0, 0, err
		}
		return lo, hi, nil
	}

	loStr, hiStr, isInterval := strings.Cut(body, "-")
	lo, err := parseHex(loStr, tok)
	if err != nil {
		return 0, 0, err
	}
	if !isInterval {
		return lo, lo, nil
	}
	hi, err := parseHex(hiStr, tok)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("invalid unicode-range token %q: end before start", tok)
	}
	return lo, hi, nil
}

func parseHex(digits, tok string) (rune, error) {
	if digits == "" || len(digits) > 6 {
		return 0, fmt.Errorf("invalid unicode-range token %q", tok)
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid unicode-range token %q: %w", tok, err)
	}
	if v > MaxCodepoint {
		return 0, fmt.Errorf("invalid unicode-range token %q: beyond U+10FFFF", tok)
	}
	return rune(v), nil
}
