package repertoire

import (
	"strings"
	"unicode"

	"github.com/jonathan/webfont-splitter/internal/types"
)

// weightKeywords is checked in order; compound names come before the plain
// keyword they contain.
var weightKeywords = []struct {
	keys   []string
	weight types.FontWeight
}{
	{[]string{"regular", "normal", "book"}, types.WeightRegular},
	{[]string{"thin", "hairline"}, types.WeightThin},
	{[]string{"extralight", "extra light", "ultralight", "ultra light"}, types.WeightExtraLight},
	{[]string{"light"}, types.WeightLight},
	{[]string{"medium"}, types.WeightMedium},
	{[]string{"semibold", "semi bold", "demibold", "demi bold"}, types.WeightSemiBold},
	{[]string{"extrabold", "extra bold", "ultrabold", "ultra bold"}, types.WeightExtraBold},
	{[]string{"extrablack", "extra black", "ultrablack", "ultra black"}, types.WeightExtraBlack},
	{[]string{"black", "heavy"}, types.WeightBlack},
	{[]string{"bold"}, types.WeightBold},
}

// InferStyle maps a style name such as "Bold Italic" to a CSS font-style
func InferStyle(styleName string) types.FontStyle {
	s := strings.ToLower(styleName)
	switch {
	case strings.Contains(s, "italic"):
		return types.StyleItalic
	case strings.Contains(s, "oblique"):
		return types.StyleOblique
	default:
		return types.StyleNormal
	}
}

// InferWeight maps a style name such as "SemiBold" to a CSS font-weight
func InferWeight(styleName string) types.FontWeight {
	s := strings.ToLower(styleName)
	for _, kw := range weightKeywords {
		for _, key := range kw.keys {
			if strings.Contains(s, key) {
				return kw.weight
			}
		}
	}
	return types.WeightRegular
}

func weightName(w types.FontWeight) string {
	switch {
	case w <= 150:
		return "Thin"
	case w <= 250:
		return "ExtraLight"
	case w <= 350:
		return "Light"
	case w <= 450:
		return "Regular"
	case w <= 550:
		return "Medium"
	case w <= 650:
		return "SemiBold"
	case w <= 750:
		return "Bold"
	case w <= 850:
		return "ExtraBold"
	case w <= 925:
		return "Black"
	default:
		return "ExtraBlack"
	}
}

// ExtractName keeps the first 20 letters and digits of s
func ExtractName(s string) string {
	var sb strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			n++
			if n == 20 {
				break
			}
		}
	}
	return sb.String()
}

// ExtractVersion turns "Version 2.137;hotconv" into "2.137"
func ExtractVersion(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len("version ") && strings.EqualFold(s[:len("version ")], "version ") {
		s = s[len("version "):]
	}
	var sb strings.Builder
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			break
		}
		sb.WriteRune(r)
		if sb.Len() == 20 {
			break
		}
	}
	return strings.Trim(sb.String(), ".")
}
