// Package subsetter materializes one subset bucket as a standalone font.
package subsetter

import (
	"bytes"
	"context"
	"fmt"

	"seehuhn.de/go/sfnt"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// Subsetter is a glyph subsetting engine. Implementations must keep exactly
// the glyphs reachable from cps and must not modify src.
type Subsetter interface {
	Subset(ctx context.Context, src *repertoire.Source, cps *charset.Set) ([]byte, error)
}

// Func adapts a plain function to Subsetter
type Func func(ctx context.Context, src *repertoire.Source, cps *charset.Set) ([]byte, error)

func (f Func) Subset(ctx context.Context, src *repertoire.Source, cps *charset.Set) ([]byte, error) {
	return f(ctx, src, cps)
}

// Build runs the engine for one bucket and checks that the output is a
// readable font mapping at least one codepoint. The returned artifact has
// FontBytes set; encoding and storage fill in the rest.
func Build(ctx context.Context, s Subsetter, fontID string, src *repertoire.Source, bucket types.SubsetBucket) (*types.SubsetArtifact, error) {
	if bucket.Codepoints.IsEmpty() {
		return nil, &SubsettingError{
			Kind:    EmptyResult,
			FontID:  fontID,
			Bucket:  bucket.Name,
			Message: "bucket has no codepoints",
		}
	}

	out, err := s.Subset(ctx, src, bucket.Codepoints)
	if err != nil {
		return nil, &SubsettingError{
			Kind:    EngineFailure,
			FontID:  fontID,
			Bucket:  bucket.Name,
			Message: "engine failed",
			Cause:   err,
		}
	}

	font, err := sfnt.Read(bytes.NewReader(out))
	if err != nil {
		return nil, &SubsettingError{
			Kind:    EngineFailure,
			FontID:  fontID,
			Bucket:  bucket.Name,
			Message: "engine output is not a readable font",
			Cause:   err,
		}
	}
	cov, err := repertoire.Coverage(font)
	if err != nil {
		return nil, &SubsettingError{
			Kind:    EngineFailure,
			FontID:  fontID,
			Bucket:  bucket.Name,
			Message: "engine output has an unreadable cmap",
			Cause:   err,
		}
	}
	if font.NumGlyphs() <= 1 || cov.IsEmpty() {
		return nil, &SubsettingError{
			Kind:    EmptyResult,
			FontID:  fontID,
			Bucket:  bucket.Name,
			Message: fmt.Sprintf("engine produced %d glyphs mapping no codepoints", font.NumGlyphs()),
		}
	}

	return &types.SubsetArtifact{
		FontID:    fontID,
		Bucket:    bucket,
		FontBytes: out,
	}, nil
}
