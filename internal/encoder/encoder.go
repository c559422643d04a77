// Package encoder turns subset fonts into WOFF2 files.
package encoder

import (
	"context"
	"fmt"

	"github.com/jonathan/webfont-splitter/internal/tool"
)

// Compressor converts sfnt bytes to the wire format. Identical input must
// always produce identical output.
type Compressor interface {
	Compress(ctx context.Context, font []byte) ([]byte, error)
}

// Encode runs c and wraps any failure in an EncodingError
func Encode(ctx context.Context, c Compressor, font []byte) ([]byte, error) {
	if len(font) == 0 {
		return nil, &EncodingError{Kind: CompressionFailure, Message: "font data is empty"}
	}
	out, err := c.Compress(ctx, font)
	if err != nil {
		return nil, &EncodingError{Kind: CompressionFailure, Message: "compressor failed", Cause: err}
	}
	if len(out) == 0 {
		return nil, &EncodingError{Kind: CompressionFailure, Message: "compressor produced no output"}
	}
	return out, nil
}

// Woff2Compress runs Google's woff2_compress binary, which applies the glyf
// and loca transforms the native encoder skips.
type Woff2Compress struct {
	// Binary defaults to "woff2_compress".
	Binary string
}

func (w Woff2Compress) invocation() tool.Invocation {
	bin := w.Binary
	if bin == "" {
		bin = "woff2_compress"
	}
	return tool.Invocation{
		Binary:      bin,
		InstallHint: "Install the woff2 tools (e.g. apt install woff2, brew install woff2)",
		InputName:   "font.ttf",
		OutputName:  "font.woff2",
		Args: func(in, _ string) []string {
			return []string{in}
		},
	}
}

// Available reports whether the woff2_compress binary can be found
func (w Woff2Compress) Available() bool {
	return w.invocation().Available()
}

func (w Woff2Compress) Compress(ctx context.Context, font []byte) ([]byte, error) {
	out, err := w.invocation().Run(ctx, font)
	if err != nil {
		return nil, fmt.Errorf("woff2_compress: %w", err)
	}
	return out, nil
}
