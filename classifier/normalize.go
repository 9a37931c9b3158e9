package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips combining marks so "café" and "cafe" share one token.
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize lowercases text, strips diacritics and splits on any run of
// non-letter, non-digit runes.
func Tokenize(text string) []string {
	folded, _, err := transform.String(foldAccents, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
