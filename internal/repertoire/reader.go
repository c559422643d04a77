package repertoire

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
	"seehuhn.de/go/sfnt"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// Source is a parsed source font together with its raw bytes. It is shared
// read-only by every bucket build of one font.
type Source struct {
	Name   string
	Data   []byte
	Digest string
	Font   *sfnt.Font
}

// Options overrides metadata that would otherwise come from the font file
type Options struct {
	Family    string
	StyleName string
	// Restrict limits the coverage to these codepoints when non-nil.
	Restrict *charset.Set
}

// Read loads a font file from disk
func Read(path string, opts *Options) (*types.FontRepertoire, *Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &Error{
			Source:  path,
			Message: "failed to read font file",
			Cause:   err,
		}
	}
	return ReadBytes(path, data, opts)
}

// ReadBytes parses font data already in memory
func ReadBytes(name string, data []byte, opts *Options) (*types.FontRepertoire, *Source, error) {
	if opts == nil {
		opts = &Options{}
	}
	if len(data) == 0 {
		return nil, nil, &Error{Source: name, Message: "font data is empty"}
	}

	font, err := sfnt.Read(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &Error{
			Source:  name,
			Message: "failed to parse font",
			Cause:   err,
		}
	}

	coverage, err := Coverage(font)
	if err != nil {
		return nil, nil, &Error{
			Source:  name,
			Message: "failed to read cmap",
			Cause:   err,
		}
	}
	if opts.Restrict != nil {
		coverage = coverage.Intersect(opts.Restrict)
	}

	sum := blake3.Sum256(data)
	src := &Source{
		Name:   name,
		Data:   data,
		Digest: hex.EncodeToString(sum[:]),
		Font:   font,
	}

	family := opts.Family
	if family == "" {
		family = font.FamilyName
	}
	if family == "" {
		family = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	styleName := opts.StyleName
	if styleName == "" {
		styleName = describeStyle(font)
	}

	weight := InferWeight(styleName)
	if opts.StyleName == "" && font.Weight != 0 {
		weight = types.FontWeight(font.Weight)
	}

	rep := &types.FontRepertoire{
		ID:        fontID(family, styleName, src.Digest),
		Source:    name,
		Family:    family,
		StyleName: styleName,
		Style:     InferStyle(styleName),
		Weight:    weight,
		Version:   ExtractVersion(fmt.Sprint(font.Version)),
		Coverage:  coverage,
	}
	return rep, src, nil
}

// Coverage returns every codepoint the font maps to a real glyph
func Coverage(font *sfnt.Font) (*charset.Set, error) {
	if font.CMapTable == nil {
		return charset.New(), nil
	}
	subtable, err := font.CMapTable.GetBest()
	if err != nil {
		return nil, err
	}

	numGlyphs := font.NumGlyphs()
	low, high := subtable.CodeRange()
	if low < 0 {
		low = 0
	}
	if high > charset.MaxCodepoint {
		high = charset.MaxCodepoint
	}

	cov := charset.New()
	for cp := low; cp <= high; cp++ {
		if cp >= 0xD800 && cp <= 0xDFFF {
			continue
		}
		gid := subtable.Lookup(cp)
		if gid != 0 && int(gid) < numGlyphs {
			cov.Add(cp)
		}
	}
	return cov, nil
}

func describeStyle(font *sfnt.Font) string {
	var parts []string
	if font.Weight != 0 && types.FontWeight(font.Weight) != types.WeightRegular {
		parts = append(parts, weightName(types.FontWeight(font.Weight)))
	}
	switch {
	case font.IsItalic:
		parts = append(parts, "Italic")
	case font.IsOblique:
		parts = append(parts, "Oblique")
	}
	if len(parts) == 0 {
		return "Regular"
	}
	return strings.Join(parts, " ")
}

func fontID(family, styleName, digest string) string {
	id := ExtractName(family)
	if style := ExtractName(styleName); style != "" && !strings.EqualFold(style, "regular") {
		id += "_" + style
	}
	if id == "" {
		id = "font"
	}
	return id + "-" + digest[:12]
}
