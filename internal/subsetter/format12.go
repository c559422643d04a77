package subsetter

import (
	"encoding/binary"
	"sort"

	"seehuhn.de/go/sfnt/glyph"
)

type format12Group struct {
	start, end rune
	startGID   glyph.ID
}

// encodeFormat12 builds a segmented coverage cmap subtable. Groups merge
// runs of consecutive codepoints mapped to consecutive glyphs.
func encodeFormat12(m map[rune]glyph.ID) []byte {
	cps := make([]rune, 0, len(m))
	for cp := range m {
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i] < cps[j] })

	var groups []format12Group
	for _, cp := range cps {
		gid := m[cp]
		if n := len(groups); n > 0 {
			g := &groups[n-1]
			if cp == g.end+1 && gid == g.startGID+glyph.ID(cp-g.start) {
				g.end = cp
				continue
			}
		}
		groups = append(groups, format12Group{start: cp, end: cp, startGID: gid})
	}

	length := 16 + 12*len(groups)
	buf := make([]byte, length)
	binary.BigEndian.PutUint16(buf[0:], 12)
	binary.BigEndian.PutUint32(buf[4:], uint32(length))
	binary.BigEndian.PutUint32(buf[12:], uint32(len(groups)))
	for i, g := range groups {
		off := 16 + 12*i
		binary.BigEndian.PutUint32(buf[off:], uint32(g.start))
		binary.BigEndian.PutUint32(buf[off+4:], uint32(g.end))
		binary.BigEndian.PutUint32(buf[off+8:], uint32(g.startGID))
	}
	return buf
}
