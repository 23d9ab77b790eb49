package converter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks returns a new transformer each time: a transform.Chain keeps state
// and cannot be shared between goroutines.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Identifier turns an arbitrary name into a valid prim name: ASCII letters,
// digits and '_', not starting with a digit. Returns "" if nothing usable is left.
func Identifier(name string) string {
	s, _, err := transform.String(stripMarks(), name)
	if err != nil {
		s = name
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	id := b.String()
	if strings.Trim(id, "_") == "" {
		return ""
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return id
}
