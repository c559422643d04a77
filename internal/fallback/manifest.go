package fallback

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/schemas"
	embedded "github.com/jonathan/webfont-splitter/schemas"
)

//go:embed fallback.json
var bundledManifest []byte

// Source is one font listed in the fallback manifest
type Source struct {
	Name         string       `json:"name"`
	File         string       `json:"file"`
	URL          string       `json:"url,omitempty"`
	UnicodeRange string       `json:"unicode_range"`
	Declared     *charset.Set `json:"-"`
}

// Manifest lists fallback sources in priority order
type Manifest struct {
	Family  string   `json:"family"`
	Sources []Source `json:"sources"`
}

var (
	manifestOnce sync.Once
	manifest     *Manifest
	manifestErr  error
)

// Bundled returns the manifest compiled into the binary
func Bundled() (*Manifest, error) {
	manifestOnce.Do(func() {
		manifest, manifestErr = ParseManifest(bundledManifest)
	})
	return manifest, manifestErr
}

// ParseManifest validates and decodes a manifest document
func ParseManifest(data []byte) (*Manifest, error) {
	if err := schemas.Validate(embedded.FallbackManifest, data); err != nil {
		return nil, &Error{Source: "manifest", Message: "invalid manifest", Cause: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &Error{Source: "manifest", Message: "failed to parse manifest", Cause: err}
	}

	seen := make(map[string]bool, len(m.Sources))
	for i := range m.Sources {
		src := &m.Sources[i]
		key := strings.ToLower(src.Name)
		if seen[key] {
			return nil, &Error{Source: src.Name, Message: "duplicate source name"}
		}
		seen[key] = true

		declared, err := charset.Parse(src.UnicodeRange)
		if err != nil {
			return nil, &Error{
				Source:  src.Name,
				Message: fmt.Sprintf("invalid unicode_range %q", src.UnicodeRange),
				Cause:   err,
			}
		}
		src.Declared = declared
	}
	return &m, nil
}
