// Package compress frames byte payloads with a one-byte algorithm tag and
// the uncompressed length, so data packages and cache files can be read back
// without knowing how they were written.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm of a frame. The values are
// written to disk and must not change.
type Tag uint8

const (
	// None stores the payload as-is.
	None Tag = 0
	// LZ4 is block-mode LZ4, used for cache entries where decode speed matters.
	LZ4 Tag = 1
	// Zstd is zstd at the default level, used for data packages.
	Zstd Tag = 2
)

func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseTag parses a tag from its string form
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// maxFrameSize bounds the declared uncompressed size of a frame.
const maxFrameSize = 256 << 20

var (
	errIncompressible = errors.New("data is incompressible")

	// ErrTruncated is returned for frames shorter than their header.
	ErrTruncated = errors.New("compressed frame is truncated")
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack compresses data with the given algorithm and prepends the frame
// header. Incompressible input is stored with None so Pack never grows the
// payload by more than the header.
func Pack(data []byte, tag Tag) ([]byte, error) {
	payload, err := compressPayload(data, tag)
	if errors.Is(err, errIncompressible) {
		payload, tag = data, None
	} else if err != nil {
		return nil, err
	}

	header := make([]byte, 1, 1+binary.MaxVarintLen64)
	header[0] = byte(tag)
	header = binary.AppendUvarint(header, uint64(len(data)))
	return append(header, payload...), nil
}

// Unpack reverses Pack. The returned tag is the one actually stored.
func Unpack(frame []byte) ([]byte, Tag, error) {
	if len(frame) < 2 {
		return nil, 0, ErrTruncated
	}
	tag := Tag(frame[0])
	size, n := binary.Uvarint(frame[1:])
	if n <= 0 {
		return nil, 0, ErrTruncated
	}
	if size > maxFrameSize {
		return nil, 0, fmt.Errorf("compressed frame declares %d bytes, limit is %d", size, maxFrameSize)
	}
	data, err := decompressPayload(frame[1+n:], tag, int(size))
	if err != nil {
		return nil, 0, err
	}
	return data, tag, nil
}

func compressPayload(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		bound := lz4.CompressBlockBound(len(data))
		dst := make([]byte, bound)
		written, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return dst[:written], nil
	case Zstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func decompressPayload(payload []byte, tag Tag, size int) ([]byte, error) {
	switch tag {
	case None:
		if len(payload) != size {
			return nil, fmt.Errorf("uncompressed frame: size %d does not match expected %d", len(payload), size)
		}
		return payload, nil
	case LZ4:
		dst := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return dst, nil
	case Zstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
