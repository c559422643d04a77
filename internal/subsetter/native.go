package subsetter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyf"
	"seehuhn.de/go/sfnt/glyph"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
)

// Native subsets in-process. Layout tables (GDEF, GSUB, GPOS) are dropped
// and a fresh cmap covering exactly the requested codepoints is written.
type Native struct{}

var errNoCMap = errors.New("font has no cmap")

func (Native) Subset(ctx context.Context, src *repertoire.Source, cps *charset.Set) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Font.CMapTable == nil {
		return nil, errNoCMap
	}
	subtable, err := src.Font.CMapTable.GetBest()
	if err != nil {
		return nil, fmt.Errorf("failed to select cmap subtable: %w", err)
	}

	numGlyphs := src.Font.NumGlyphs()
	mapped := make(map[rune]glyph.ID)
	used := map[glyph.ID]bool{0: true}
	cps.Each(func(cp rune) bool {
		gid := subtable.Lookup(cp)
		if gid != 0 && int(gid) < numGlyphs {
			mapped[cp] = gid
			used[gid] = true
		}
		return true
	})
	if len(mapped) == 0 {
		return nil, fmt.Errorf("none of the %d requested codepoints is mapped by the font", cps.Len())
	}

	if outlines, ok := src.Font.Outlines.(*glyf.Outlines); ok {
		closeComponents(outlines, used)
	}

	glyphs := make([]glyph.ID, 0, len(used))
	for gid := range used {
		if gid != 0 {
			glyphs = append(glyphs, gid)
		}
	}
	sort.Slice(glyphs, func(i, j int) bool { return glyphs[i] < glyphs[j] })
	glyphs = append([]glyph.ID{0}, glyphs...)

	newGID := make(map[glyph.ID]glyph.ID, len(glyphs))
	for i, gid := range glyphs {
		newGID[gid] = glyph.ID(i)
	}
	remapped := make(map[rune]glyph.ID, len(mapped))
	for cp, gid := range mapped {
		remapped[cp] = newGID[gid]
	}

	font := src.Font.Clone()
	font.CMapTable = nil
	font.Gdef = nil
	font.Gsub = nil
	font.Gpos = nil

	subset := font.Subset(glyphs)
	subset.CMapTable = encodeCMap(remapped)

	var buf bytes.Buffer
	if _, err := subset.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write subset font: %w", err)
	}
	return buf.Bytes(), nil
}

// closeComponents adds the components of composite glyphs, transitively.
func closeComponents(outlines *glyf.Outlines, used map[glyph.ID]bool) {
	queue := make([]glyph.ID, 0, len(used))
	for gid := range used {
		queue = append(queue, gid)
	}
	for len(queue) > 0 {
		gid := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if int(gid) >= len(outlines.Glyphs) {
			continue
		}
		for _, comp := range outlines.Glyphs[gid].Components() {
			if !used[comp] {
				used[comp] = true
				queue = append(queue, comp)
			}
		}
	}
}

// encodeCMap writes a format 4 subtable for the BMP and, when supplementary
// codepoints are present, a format 12 subtable covering everything.
func encodeCMap(m map[rune]glyph.ID) cmap.Table {
	bmp := cmap.Format4{}
	supplementary := false
	for cp, gid := range m {
		if cp <= 0xFFFF {
			bmp[uint16(cp)] = gid
		} else {
			supplementary = true
		}
	}

	format4 := bmp.Encode(0)
	table := cmap.Table{
		{PlatformID: 0, EncodingID: 3}: format4,
		{PlatformID: 3, EncodingID: 1}: format4,
	}
	if supplementary {
		format12 := encodeFormat12(m)
		table[cmap.Key{PlatformID: 0, EncodingID: 4}] = format12
		table[cmap.Key{PlatformID: 3, EncodingID: 10}] = format12
	}
	return table
}
