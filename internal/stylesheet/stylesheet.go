// Package stylesheet assembles @font-face rules for the stored subsets and
// renders them as CSS.
package stylesheet

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/types"
	"github.com/jonathan/webfont-splitter/internal/usage"
)

// Emitted is one stored subset ready to become a rule
type Emitted struct {
	Font     *types.FontRepertoire
	Artifact *types.SubsetArtifact
	URI      string
}

// PageRelevance maps page → font ID → relevant bucket indexes
type PageRelevance map[string]map[string]usage.IndexSet

// Emit builds one rule per artifact, in input order. With a nil relevance
// (basic mode) no per-page rule lists are produced.
func Emit(artifacts []Emitted, relevance PageRelevance) *types.StylesheetDocument {
	doc := &types.StylesheetDocument{
		Rules: make([]types.FontFaceRule, 0, len(artifacts)),
	}
	for _, a := range artifacts {
		doc.Rules = append(doc.Rules, Rule(a))
	}

	if relevance == nil {
		return doc
	}

	doc.Pages = make(map[string][]types.FontFaceRule, len(relevance))
	for page, fonts := range relevance {
		rules := []types.FontFaceRule{}
		for _, rule := range doc.Rules {
			if fonts[rule.FontID].Has(rule.BucketIndex) {
				rules = append(rules, rule)
			}
		}
		doc.Pages[page] = rules
	}
	return doc
}

// Rule converts one emitted subset into an @font-face record
func Rule(a Emitted) types.FontFaceRule {
	return types.FontFaceRule{
		FontID:       a.Font.ID,
		BucketIndex:  a.Artifact.Bucket.Index,
		BucketName:   a.Artifact.Bucket.Name,
		Family:       a.Font.Family,
		Style:        a.Font.Style,
		Weight:       a.Font.Weight,
		UnicodeRange: charset.FormatRanges(a.Artifact.Bucket.Codepoints.Ranges()),
		URI:          a.URI,
	}
}

// Pages returns the page names of doc in lexical order
func Pages(doc *types.StylesheetDocument) []string {
	pages := make([]string, 0, len(doc.Pages))
	for page := range doc.Pages {
		pages = append(pages, page)
	}
	sort.Strings(pages)
	return pages
}

// Render writes rules as CSS
func Render(w io.Writer, rules []types.FontFaceRule) error {
	var sb strings.Builder
	for i, rule := range rules {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeRule(&sb, rule)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderString is Render into a string
func RenderString(rules []types.FontFaceRule) string {
	var sb strings.Builder
	_ = Render(&sb, rules)
	return sb.String()
}

func writeRule(sb *strings.Builder, rule types.FontFaceRule) {
	sb.WriteString("@font-face {\n")
	fmt.Fprintf(sb, "  font-family: %s;\n", quote(rule.Family))
	if !rule.Style.IsRegular() {
		fmt.Fprintf(sb, "  font-style: %s;\n", rule.Style)
	}
	if !rule.Weight.IsRegular() {
		fmt.Fprintf(sb, "  font-weight: %s;\n", rule.Weight)
	}
	fmt.Fprintf(sb, "  unicode-range: %s;\n", rule.UnicodeRange)
	fmt.Fprintf(sb, "  src: url(%s) format(\"woff2\");\n", quote(rule.URI))
	sb.WriteString("}\n")
}

// quote returns s as a double-quoted CSS string
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n' || r == '\r' || r == '\f':
			fmt.Fprintf(&sb, "\\%x ", r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
