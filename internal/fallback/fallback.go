// Package fallback resolves the reserved "fallback" font: a set of bundled
// sources that together render as much of Unicode as possible under one
// family name.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/rangetable"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// ReservedID is the font stack entry that selects the fallback sources
const ReservedID = "fallback"

// IsReserved reports whether a font reference names the fallback font
func IsReserved(ref string) bool {
	return strings.EqualFold(strings.TrimSpace(ref), ReservedID)
}

// Loader returns the raw bytes of a fallback source
type Loader interface {
	Load(ctx context.Context, src Source) ([]byte, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, src Source) ([]byte, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, src Source) ([]byte, error) {
	return f(ctx, src)
}

// Fetcher retrieves remote font files
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DirLoader reads sources from a local directory and downloads the ones
// that are missing when a Fetcher is configured.
type DirLoader struct {
	Dir     string
	Fetcher Fetcher
}

// Load implements Loader
func (l *DirLoader) Load(ctx context.Context, src Source) ([]byte, error) {
	if l.Dir != "" {
		data, err := os.ReadFile(filepath.Join(l.Dir, src.File))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Source: src.Name, Message: "failed to read source file", Cause: err}
		}
	}
	if src.URL == "" || l.Fetcher == nil {
		return nil, &Error{Source: src.Name, Message: fmt.Sprintf("%s not found and no download configured", src.File)}
	}
	data, err := l.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, &Error{Source: src.Name, Message: "failed to download source", Cause: err}
	}
	return data, nil
}

// Resolved is one fallback source that contributes codepoints
type Resolved struct {
	Source     Source
	Repertoire *types.FontRepertoire
	Font       *repertoire.Source
}

// Result is the outcome of resolving the fallback font
type Result struct {
	Family      string
	Fonts       []Resolved
	Diagnostics []types.Diagnostic
	// Uncovered holds assigned codepoints no loaded source can render.
	Uncovered *charset.Set
}

// ErrNoSources is returned when not a single fallback source could be used
var ErrNoSources = errors.New("no fallback source could be loaded")

// Resolve loads the bundled manifest's sources through loader
func Resolve(ctx context.Context, loader Loader) (*Result, error) {
	m, err := Bundled()
	if err != nil {
		return nil, err
	}
	return ResolveManifest(ctx, m, loader)
}

// ResolveManifest walks the sources in priority order. Each source keeps only
// the assigned codepoints it renders that no earlier source claimed.
func ResolveManifest(ctx context.Context, m *Manifest, loader Loader) (*Result, error) {
	universal := Assigned()
	claimed := charset.New()
	res := &Result{Family: m.Family}

	for _, src := range m.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := loader.Load(ctx, src)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, diagnostic(src, "failed to load source", err))
			continue
		}

		restrict := src.Declared.Intersect(universal).Difference(claimed)
		rep, font, err := repertoire.ReadBytes(src.File, data, &repertoire.Options{
			Family:   m.Family,
			Restrict: restrict,
		})
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, diagnostic(src, "failed to read source", err))
			continue
		}
		if rep.Coverage.IsEmpty() {
			continue
		}

		rep.ID = sourceID(src, font.Digest)
		claimed.AddSet(rep.Coverage)
		res.Fonts = append(res.Fonts, Resolved{Source: src, Repertoire: rep, Font: font})
	}

	res.Uncovered = universal.Difference(claimed)
	if len(res.Fonts) == 0 {
		return res, ErrNoSources
	}
	return res, nil
}

// Assigned returns every codepoint assigned in the Unicode version known to
// the runtime, minus surrogates.
func Assigned() *charset.Set {
	rt := rangetable.Assigned(unicode.Version)
	if rt == nil {
		rt = rangetable.Assigned("15.0.0")
	}

	set := charset.New()
	if rt == nil {
		return set
	}
	for _, r := range rt.R16 {
		addStrided(set, rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	for _, r := range rt.R32 {
		addStrided(set, rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	set.RemoveSet(charset.FromRange(0xD800, 0xDFFF))
	return set
}

func addStrided(set *charset.Set, lo, hi, stride rune) {
	if stride <= 1 {
		set.AddRange(lo, hi)
		return
	}
	for cp := lo; cp <= hi; cp += stride {
		set.Add(cp)
	}
}

func sourceID(src Source, digest string) string {
	name := repertoire.ExtractName(src.Name)
	if name == "" {
		name = "source"
	}
	return ReservedID + "_" + name + "-" + digest[:12]
}

func diagnostic(src Source, msg string, err error) types.Diagnostic {
	return types.Diagnostic{
		FontID:  ReservedID,
		Source:  src.Name,
		Stage:   types.StageFallback,
		Message: fmt.Sprintf("%s: %v", msg, err),
	}
}
