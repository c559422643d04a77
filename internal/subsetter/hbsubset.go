package subsetter

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/tool"
)

// HBSubset runs HarfBuzz's hb-subset binary. It keeps layout tables for
// the retained glyphs, which Native drops.
type HBSubset struct {
	// Binary defaults to "hb-subset".
	Binary string
}

func (h HBSubset) invocation(cps *charset.Set) tool.Invocation {
	bin := h.Binary
	if bin == "" {
		bin = "hb-subset"
	}
	unicodes := UnicodesArg(cps)
	return tool.Invocation{
		Binary:      bin,
		InstallHint: "Install HarfBuzz (e.g. apt install libharfbuzz-bin, brew install harfbuzz)",
		InputName:   "source.font",
		OutputName:  "subset.ttf",
		Args: func(in, out string) []string {
			return []string{
				"--font-file=" + in,
				"--output-file=" + out,
				"--unicodes=" + unicodes,
				"--no-hinting",
				"--desubroutinize",
			}
		},
	}
}

// Available reports whether the hb-subset binary can be found
func (h HBSubset) Available() bool {
	return h.invocation(charset.New()).Available()
}

func (h HBSubset) Subset(ctx context.Context, src *repertoire.Source, cps *charset.Set) ([]byte, error) {
	return h.invocation(cps).Run(ctx, src.Data)
}

// UnicodesArg formats a set as hb-subset's --unicodes list, e.g. "41-5A,20AC"
func UnicodesArg(cps *charset.Set) string {
	ranges := cps.Ranges()
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		if r.Lo == r.Hi {
			parts[i] = fmt.Sprintf("%X", r.Lo)
		} else {
			parts[i] = fmt.Sprintf("%X-%X", r.Lo, r.Hi)
		}
	}
	return strings.Join(parts, ",")
}
