package security

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeDisplayName normalises to NFC, drops control and format characters,
// collapses whitespace and HTML-escapes what is left.
func SanitizeDisplayName(raw string) string {
	s := norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}

	return html.EscapeString(strings.TrimSpace(b.String()))
}
