package usage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// ScanOptions configures ScanWebroot
type ScanOptions struct {
	// IgnoreSelectors removes matching elements before text is collected.
	IgnoreSelectors []string
	Logger          *zap.Logger
}

// Scanner extracts the codepoints a page renders
type Scanner struct {
	ignore []cascadia.Selector
	logger *zap.Logger
}

// NewScanner compiles the ignore selectors
func NewScanner(opts ScanOptions) (*Scanner, error) {
	s := &Scanner{logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	for _, sel := range opts.IgnoreSelectors {
		compiled, err := cascadia.Compile(sel)
		if err != nil {
			return nil, &Error{Path: sel, Message: "invalid ignore selector", Cause: err}
		}
		s.ignore = append(s.ignore, compiled)
	}
	return s, nil
}

// ScanWebroot walks every *.html file under root. Pages are keyed by their
// slash-separated path relative to root and returned in lexical order.
func ScanWebroot(ctx context.Context, root string, opts ScanOptions) ([]types.GlyphUsageSet, error) {
	s, err := NewScanner(opts)
	if err != nil {
		return nil, err
	}

	var pages []types.GlyphUsageSet
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return &Error{Path: p, Message: "failed to open page", Cause: err}
		}
		defer f.Close() //nolint:errcheck

		page, err := s.ScanHTML(filepath.ToSlash(rel), f, os.DirFS(root))
		if err != nil {
			return err
		}
		s.logger.Debug("scanned page",
			zap.String("page", page.Page),
			zap.Int("codepoints", page.Codepoints.Len()))
		pages = append(pages, *page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// ScanHTML collects the rendered text of one page: body text, a few
// user-visible attributes and CSS content strings from inline and linked
// stylesheets. Linked stylesheets are resolved against site when non-nil.
func (s *Scanner) ScanHTML(page string, r io.Reader, site fs.FS) (*types.GlyphUsageSet, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &Error{Path: page, Message: "failed to parse HTML", Cause: err}
	}

	cps := charset.New()

	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		s.addCSS(page, sel.Text(), cps)
	})
	if site != nil {
		doc.Find(`link[rel~="stylesheet"][href]`).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			name, ok := localPath(page, href)
			if !ok {
				return
			}
			data, err := fs.ReadFile(site, name)
			if err != nil {
				s.logger.Debug("skipping stylesheet", zap.String("page", page), zap.String("href", href), zap.Error(err))
				return
			}
			s.addCSS(name, string(data), cps)
		})
	}

	doc.Find("script, style, template, link, meta").Remove()
	for _, m := range s.ignore {
		doc.FindMatcher(m).Remove()
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	addText(root.Text(), cps)
	root.Find("[alt], [title], [placeholder], input[value]").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"alt", "title", "placeholder", "value"} {
			if v, ok := sel.Attr(attr); ok {
				addText(v, cps)
			}
		}
	})

	return &types.GlyphUsageSet{Page: page, Codepoints: cps}, nil
}

func (s *Scanner) addCSS(name, text string, cps *charset.Set) {
	sheet, err := parser.Parse(text)
	if err != nil {
		s.logger.Debug("skipping unparsable stylesheet", zap.String("source", name), zap.Error(err))
		return
	}
	var walk func(rules []*css.Rule)
	walk = func(rules []*css.Rule) {
		for _, rule := range rules {
			for _, decl := range rule.Declarations {
				if strings.EqualFold(decl.Property, "content") {
					for _, str := range CSSStrings(decl.Value) {
						addText(str, cps)
					}
				}
			}
			walk(rule.Rules)
		}
	}
	walk(sheet.Rules)
}

// localPath resolves a stylesheet href relative to the page. Remote URLs
// are not followed.
func localPath(page, href string) (string, bool) {
	if href == "" || strings.Contains(href, "://") || strings.HasPrefix(href, "//") || strings.HasPrefix(href, "data:") {
		return "", false
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	var p string
	if strings.HasPrefix(href, "/") {
		p = path.Clean(strings.TrimPrefix(href, "/"))
	} else {
		p = path.Join(path.Dir(page), href)
	}
	if !fs.ValidPath(p) {
		return "", false
	}
	return p, true
}

func addText(text string, cps *charset.Set) {
	for _, form := range []string{text, norm.NFC.String(text), norm.NFD.String(text)} {
		for _, r := range form {
			if r == unicode.ReplacementChar || unicode.IsControl(r) {
				continue
			}
			cps.Add(r)
		}
	}
}

// CSSStrings returns the quoted strings of a CSS value with escapes decoded,
// e.g. `"\201C" attr(title) "x"` yields ["“", "x"].
func CSSStrings(value string) []string {
	var out []string
	for i := 0; i < len(value); i++ {
		quote := value[i]
		if quote != '"' && quote != '\'' {
			continue
		}
		var sb strings.Builder
		j := i + 1
		for j < len(value) && value[j] != quote {
			if value[j] != '\\' || j+1 >= len(value) {
				sb.WriteByte(value[j])
				j++
				continue
			}
			j++
			k := j
			for k < len(value) && k-j < 6 && isHex(value[k]) {
				k++
			}
			if k == j {
				if value[j] != '\n' {
					sb.WriteByte(value[j])
				}
				j++
				continue
			}
			n, _ := strconv.ParseUint(value[j:k], 16, 32)
			if n == 0 || n > charset.MaxCodepoint || (n >= 0xD800 && n <= 0xDFFF) {
				sb.WriteRune(unicode.ReplacementChar)
			} else {
				sb.WriteRune(rune(n))
			}
			j = k
			if j < len(value) && (value[j] == ' ' || value[j] == '\t' || value[j] == '\n') {
				j++
			}
		}
		out = append(out, sb.String())
		i = j
	}
	return out
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
