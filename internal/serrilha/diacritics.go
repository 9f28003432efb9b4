package serrilha

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripDiacritics removes combining accent marks ("mista" == "místa").
func stripDiacritics(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// canonicalizeKeyword upper-cases s and strips diacritics plus the
// separator characters the classification keyword tables are matched
// against after ("_", "-", "/", whitespace).
func canonicalizeKeyword(s string) string {
	s = stripDiacritics(s)
	s = strings.ToUpper(s)
	replacer := strings.NewReplacer("_", "", "-", "", "/", "", " ", "", "\t", "")
	return replacer.Replace(s)
}
