package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/andybalholm/brotli"
	"seehuhn.de/go/sfnt/header"
)

const (
	woff2Signature  = 0x774F4632 // "wOF2"
	woff2HeaderSize = 48

	// DefaultQuality is the Brotli quality used for WOFF2 output
	DefaultQuality = 11
	// DefaultWindow is the Brotli log2 window size
	DefaultWindow = 22

	// maxDecodedSize guards DecodeWOFF2 against decompression bombs.
	maxDecodedSize = 64 << 20
)

// knownTags is the WOFF2 known-table list; the index is stored in the
// flags byte instead of the tag.
var knownTags = [...]string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

var knownTagIndex = func() map[string]byte {
	m := make(map[string]byte, len(knownTags))
	for i, tag := range knownTags {
		m[tag] = byte(i)
	}
	return m
}()

const (
	arbitraryTag = 63
	// nullTransformGlyf is transform version 3, meaning "not transformed"
	// for glyf and loca; version 0 is the null transform for every other table.
	nullTransformGlyf = 3 << 6
)

// WOFF2 is an in-process WOFF2 encoder. Tables are stored untransformed and
// compressed as one Brotli stream, so output depends only on the input
// bytes and the quality settings. Quality 0 is Brotli's fastest level; use
// NewWOFF2 for the defaults.
type WOFF2 struct {
	Quality int
	Window  int
}

// NewWOFF2 returns an encoder with the default quality and window
func NewWOFF2() WOFF2 {
	return WOFF2{Quality: DefaultQuality, Window: DefaultWindow}
}

type woff2Table struct {
	tag  string
	data []byte
}

func (w WOFF2) Compress(ctx context.Context, font []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := bytes.NewReader(font)
	info, err := header.Read(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read sfnt header: %w", err)
	}
	if len(info.Toc) == 0 {
		return nil, errors.New("font has no tables")
	}

	tables := make([]woff2Table, 0, len(info.Toc))
	for tag := range info.Toc {
		data, err := info.ReadTableBytes(r, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %q: %w", tag, err)
		}
		tables = append(tables, woff2Table{tag: tag, data: data})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].tag < tables[j].tag })

	quality, window := w.Quality, w.Window
	if window == 0 {
		window = DefaultWindow
	}

	var stream bytes.Buffer
	bw := brotli.NewWriterOptions(&stream, brotli.WriterOptions{Quality: quality, LGWin: window})
	var directory []byte
	totalSfntSize := uint32(12 + 16*len(tables))
	for _, t := range tables {
		directory = appendDirectoryEntry(directory, t.tag, uint32(len(t.data)))
		totalSfntSize += (uint32(len(t.data)) + 3) &^ 3
		if _, err := bw.Write(t.data); err != nil {
			return nil, fmt.Errorf("brotli: %w", err)
		}
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}

	compressed := stream.Bytes()
	length := woff2HeaderSize + len(directory) + len(compressed)
	padded := (length + 3) &^ 3

	out := make([]byte, woff2HeaderSize, padded)
	binary.BigEndian.PutUint32(out[0:], woff2Signature)
	binary.BigEndian.PutUint32(out[4:], info.ScalerType)
	binary.BigEndian.PutUint32(out[8:], uint32(padded))
	binary.BigEndian.PutUint16(out[12:], uint16(len(tables)))
	binary.BigEndian.PutUint32(out[16:], totalSfntSize)
	binary.BigEndian.PutUint32(out[20:], uint32(len(compressed)))
	binary.BigEndian.PutUint16(out[24:], 1)
	// minor version, metadata and private block fields stay zero

	out = append(out, directory...)
	out = append(out, compressed...)
	for len(out) < padded {
		out = append(out, 0)
	}
	return out, nil
}

func appendDirectoryEntry(dst []byte, tag string, origLength uint32) []byte {
	var flags byte
	idx, known := knownTagIndex[tag]
	if known {
		flags = idx
	} else {
		flags = arbitraryTag
	}
	if tag == "glyf" || tag == "loca" {
		flags |= nullTransformGlyf
	}
	dst = append(dst, flags)
	if !known {
		dst = append(dst, tag...)
	}
	return appendUIntBase128(dst, origLength)
}

// appendUIntBase128 writes v as big-endian base-128 with continuation bits
func appendUIntBase128(dst []byte, v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v != 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[i:]...)
}

func readUIntBase128(data []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 5 && i < len(data); i++ {
		b := data[i]
		if i == 0 && b == 0x80 {
			return 0, 0, errors.New("UIntBase128 has a leading zero")
		}
		if v&0xFE000000 != 0 {
			return 0, 0, errors.New("UIntBase128 overflows")
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("UIntBase128 is truncated")
}

// DecodeWOFF2 reconstructs the sfnt font from a WOFF2 file whose tables are
// untransformed, as produced by WOFF2.Compress.
func DecodeWOFF2(data []byte) ([]byte, error) {
	if len(data) < woff2HeaderSize || binary.BigEndian.Uint32(data) != woff2Signature {
		return nil, errors.New("not a WOFF2 file")
	}
	flavor := binary.BigEndian.Uint32(data[4:])
	numTables := int(binary.BigEndian.Uint16(data[12:]))
	compressedSize := int(binary.BigEndian.Uint32(data[20:]))

	pos := woff2HeaderSize
	type entry struct {
		tag    string
		length uint32
	}
	entries := make([]entry, 0, numTables)
	var total uint64
	for i := 0; i < numTables; i++ {
		if pos >= len(data) {
			return nil, errors.New("table directory is truncated")
		}
		flags := data[pos]
		pos++
		var tag string
		if idx := flags & 0x3F; idx == arbitraryTag {
			if pos+4 > len(data) {
				return nil, errors.New("table directory is truncated")
			}
			tag = string(data[pos : pos+4])
			pos += 4
		} else if int(idx) < len(knownTags) {
			tag = knownTags[idx]
		} else {
			return nil, fmt.Errorf("unknown table index %d", idx)
		}

		transform := flags >> 6
		glyfLike := tag == "glyf" || tag == "loca"
		if (glyfLike && transform != 3) || (!glyfLike && transform != 0) {
			return nil, fmt.Errorf("table %q uses transform %d, which is not supported", tag, transform)
		}

		length, n, err := readUIntBase128(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", tag, err)
		}
		pos += n
		total += uint64(length)
		entries = append(entries, entry{tag: tag, length: length})
	}
	if total > maxDecodedSize {
		return nil, fmt.Errorf("decoded tables would exceed %d bytes", maxDecodedSize)
	}
	if pos+compressedSize > len(data) {
		return nil, errors.New("compressed stream is truncated")
	}

	stream, err := io.ReadAll(io.LimitReader(brotli.NewReader(bytes.NewReader(data[pos:pos+compressedSize])), int64(total)+1))
	if err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	if uint64(len(stream)) != total {
		return nil, fmt.Errorf("decompressed %d bytes, directory declares %d", len(stream), total)
	}

	tables := make(map[string][]byte, len(entries))
	off := 0
	for _, e := range entries {
		tables[e.tag] = stream[off : off+int(e.length)]
		off += int(e.length)
	}

	var out bytes.Buffer
	if _, err := header.Write(&out, flavor, tables); err != nil {
		return nil, fmt.Errorf("failed to write sfnt: %w", err)
	}
	return out.Bytes(), nil
}
