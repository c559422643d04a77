// Package types provides type definitions for structured data used throughout the webfont-splitter system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"

	"github.com/jonathan/webfont-splitter/internal/charset"
)

// FontStyle is the CSS font-style of a face
type FontStyle string

const (
	StyleNormal  FontStyle = "normal"
	StyleItalic  FontStyle = "italic"
	StyleOblique FontStyle = "oblique"
)

// IsRegular reports whether the style can be omitted from a rule
func (s FontStyle) IsRegular() bool {
	return s == "" || s == StyleNormal
}

// FontWeight is the CSS numeric font-weight of a face
type FontWeight int

const (
	WeightThin       FontWeight = 100
	WeightExtraLight FontWeight = 200
	WeightLight      FontWeight = 300
	WeightRegular    FontWeight = 400
	WeightMedium     FontWeight = 500
	WeightSemiBold   FontWeight = 600
	WeightBold       FontWeight = 700
	WeightExtraBold  FontWeight = 800
	WeightBlack      FontWeight = 900
	WeightExtraBlack FontWeight = 950
)

// IsRegular reports whether the weight can be omitted from a rule
func (w FontWeight) IsRegular() bool {
	return w == 0 || w == WeightRegular
}

func (w FontWeight) String() string {
	return fmt.Sprintf("%d", int(w))
}

// FontRepertoire identifies a source font and holds its codepoint coverage
type FontRepertoire struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	Family    string       `json:"family"`
	StyleName string       `json:"style_name,omitempty"`
	Style     FontStyle    `json:"style"`
	Weight    FontWeight   `json:"weight"`
	Version   string       `json:"version,omitempty"`
	Coverage  *charset.Set `json:"coverage"`
}
